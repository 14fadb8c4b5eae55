package store

import (
	"context"
	"testing"
	"time"

	"github.com/iraqaf/assurance/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2026, 4, d, 6, 0, 0, 0, time.UTC)
}

func TestMemory_LatestScores(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.SaveScore(ctx, &models.RequirementScore{RequirementID: "a", ComplianceScore: 40, ComputedAt: day(1)}))
	require.NoError(t, m.SaveScore(ctx, &models.RequirementScore{RequirementID: "a", ComplianceScore: 70, ComputedAt: day(2)}))
	require.NoError(t, m.SaveScore(ctx, &models.RequirementScore{RequirementID: "b", ComplianceScore: 55, ComputedAt: day(1)}))

	latest, err := m.LatestScores(ctx)
	require.NoError(t, err)

	require.Len(t, latest, 2)
	assert.Equal(t, 70.0, latest["a"].ComplianceScore, "Newer score wins")
	assert.Equal(t, 55.0, latest["b"].ComplianceScore)
}

func TestMemory_OpenAndCloseGaps(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.SaveGap(ctx, &models.ComplianceGap{GapID: "g1", RequirementID: "a", CreatedAt: day(1)}))
	require.NoError(t, m.SaveGap(ctx, &models.ComplianceGap{GapID: "g2", RequirementID: "b", CreatedAt: day(2)}))

	open, err := m.OpenGaps(ctx)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "g2", open[0].GapID, "Newest gap first")

	require.NoError(t, m.CloseGap(ctx, "g1", day(3)))

	open, err = m.OpenGaps(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "g2", open[0].GapID)
}

func TestMemory_RecentChanges(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.SaveChange(ctx, &models.RegulatoryChange{ChangeID: "c1", DetectedAt: day(1)}))
	require.NoError(t, m.SaveChange(ctx, &models.RegulatoryChange{ChangeID: "c2", DetectedAt: day(5)}))

	recent, err := m.RecentChanges(ctx, day(3))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "c2", recent[0].ChangeID)

	all, err := m.RecentChanges(ctx, day(1))
	require.NoError(t, err)
	assert.Len(t, all, 2, "The since bound is inclusive")
}

func TestMemory_LatestReport(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	report, err := m.LatestReport(ctx)
	require.NoError(t, err)
	assert.Nil(t, report, "No cycles yet means nil, not an error")

	require.NoError(t, m.SaveReport(ctx, &models.MonitoringCycleReport{CycleID: "cycle-1", CompletedAt: day(1)}))
	require.NoError(t, m.SaveReport(ctx, &models.MonitoringCycleReport{CycleID: "cycle-2", CompletedAt: day(2)}))

	report, err = m.LatestReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cycle-2", report.CycleID)
}

func TestMemory_CopiesOnReadAndWrite(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	original := &models.RequirementScore{RequirementID: "a", ComplianceScore: 40, ComputedAt: day(1)}
	require.NoError(t, m.SaveScore(ctx, original))
	original.ComplianceScore = 99

	latest, err := m.LatestScores(ctx)
	require.NoError(t, err)
	assert.Equal(t, 40.0, latest["a"].ComplianceScore, "Stored record is isolated from caller mutation")

	latest["a"].ComplianceScore = 1
	again, err := m.LatestScores(ctx)
	require.NoError(t, err)
	assert.Equal(t, 40.0, again["a"].ComplianceScore, "Read results are copies")
}

func TestNewStore_Factory(t *testing.T) {
	ctx := context.Background()

	s, err := NewStore(ctx, "memory", "")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = NewStore(ctx, "", "")
	require.NoError(t, err, "Empty backend defaults to memory")
	assert.IsType(t, &Memory{}, s)

	_, err = NewStore(ctx, "cassandra", "")
	require.Error(t, err)
	assert.True(t, models.IsConfigurationError(err))
}
