package catalog

import (
	"context"
	"testing"

	"github.com/iraqaf/assurance/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requirement(id, framework string) *models.Requirement {
	return &models.Requirement{
		Framework: framework,
		ID:        id,
		Text:      "obligation",
		Category:  models.CategoryGovernance,
		RiskTier:  models.RiskMedium,
	}
}

func TestPublish_VersionChain(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Publish(requirement("gdpr-1", "gdpr")))

	revised := requirement("gdpr-1", "gdpr")
	revised.Text = "revised obligation"
	require.NoError(t, m.Publish(revised))

	current, err := m.Get(ctx, "gdpr-1")
	require.NoError(t, err)
	assert.Equal(t, 2, current.Version)
	assert.Equal(t, "gdpr-1@v1", current.PredecessorID, "New version links to its predecessor")
	assert.Equal(t, "revised obligation", current.Text)

	history := m.History("gdpr-1")
	require.Len(t, history, 2, "Every version is retained")
	assert.Equal(t, "gdpr-1@v2", history[0].SupersededBy, "Old version points forward")
}

func TestPublish_RejectsInvalid(t *testing.T) {
	m := NewMemory()

	err := m.Publish(&models.Requirement{ID: "x"})
	require.Error(t, err)
	assert.True(t, models.IsDataError(err))
}

func TestRetire(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Publish(requirement("gdpr-1", "gdpr")))
	require.NoError(t, m.Publish(requirement("gdpr-2", "gdpr")))
	require.NoError(t, m.Retire("gdpr-1"))

	active, err := m.AllRequirements(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "gdpr-2", active[0].ID)

	retired, err := m.Get(ctx, "gdpr-1")
	require.NoError(t, err, "Retired requirements remain retrievable")
	assert.True(t, retired.Retired)

	err = m.Retire("missing")
	assert.True(t, models.IsDataError(err))
}

func TestRequirementsAndFrameworks(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Publish(requirement("gdpr-2", "gdpr")))
	require.NoError(t, m.Publish(requirement("gdpr-1", "gdpr")))
	require.NoError(t, m.Publish(requirement("sox-1", "sox")))

	gdpr, err := m.Requirements(ctx, "gdpr")
	require.NoError(t, err)
	require.Len(t, gdpr, 2)
	assert.Equal(t, "gdpr-1", gdpr[0].ID, "Sorted by requirement ID")

	frameworks, err := m.Frameworks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"gdpr", "sox"}, frameworks)
}

func TestGet_ReturnsCopy(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Publish(requirement("gdpr-1", "gdpr")))

	first, err := m.Get(ctx, "gdpr-1")
	require.NoError(t, err)
	first.Text = "mutated"

	second, err := m.Get(ctx, "gdpr-1")
	require.NoError(t, err)
	assert.Equal(t, "obligation", second.Text, "Catalog state is isolated from callers")
}
