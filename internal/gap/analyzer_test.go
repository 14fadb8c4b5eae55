package gap

import (
	"testing"
	"time"

	"github.com/iraqaf/assurance/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time {
	return time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC)
}

func newTestAnalyzer(t *testing.T) *Analyzer {
	a, err := NewAnalyzer(50, 100)
	require.NoError(t, err)
	a.Now = fixedNow
	return a
}

func TestNewAnalyzer_Validation(t *testing.T) {
	_, err := NewAnalyzer(-1, 100)
	require.Error(t, err, "Negative threshold should be rejected")
	assert.True(t, models.IsConfigurationError(err))

	_, err = NewAnalyzer(50, 120)
	require.Error(t, err, "Target above 100 should be rejected")
	assert.True(t, models.IsConfigurationError(err))
}

func TestIdentifyGaps(t *testing.T) {
	a := newTestAnalyzer(t)

	scores := []*models.RequirementScore{
		{RequirementID: "gdpr-1", Framework: "gdpr", ComplianceScore: 80, EvidenceCount: 3},
		{RequirementID: "gdpr-2", Framework: "gdpr", ComplianceScore: 35, EvidenceCount: 2},
	}
	reqs := map[string]*models.Requirement{
		"gdpr-1": {ID: "gdpr-1", Framework: "gdpr", RiskTier: models.RiskLow},
		"gdpr-2": {ID: "gdpr-2", Framework: "gdpr", RiskTier: models.RiskHigh},
	}

	gaps := a.IdentifyGaps(scores, reqs)

	require.Len(t, gaps, 1, "Only the below-threshold score opens a gap")
	g := gaps[0]
	assert.Equal(t, "gdpr-2", g.RequirementID)
	assert.Equal(t, 65.0, g.GapSize, "Gap size is target minus current")
	assert.Equal(t, "2026-04-02", g.AssessmentDate)
	assert.NotEmpty(t, g.Actions, "Every gap carries a remediation plan")
}

func TestIdentifyGaps_DeterministicIDs(t *testing.T) {
	a := newTestAnalyzer(t)

	scores := []*models.RequirementScore{
		{RequirementID: "gdpr-2", Framework: "gdpr", ComplianceScore: 35, EvidenceCount: 2},
	}
	reqs := map[string]*models.Requirement{
		"gdpr-2": {ID: "gdpr-2", Framework: "gdpr", RiskTier: models.RiskHigh},
	}

	first := a.IdentifyGaps(scores, reqs)
	second := a.IdentifyGaps(scores, reqs)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].GapID, second[0].GapID, "Same requirement and day must produce the same gap ID")
}

func TestIdentifyGaps_MissingRequirementSkipped(t *testing.T) {
	a := newTestAnalyzer(t)

	scores := []*models.RequirementScore{
		{RequirementID: "orphan", Framework: "gdpr", ComplianceScore: 10},
	}

	gaps := a.IdentifyGaps(scores, map[string]*models.Requirement{})
	assert.Empty(t, gaps, "Scores without a requirement record are skipped, not fatal")
}

func TestSeverityFor(t *testing.T) {
	// gap 50 + high tier (3*15=45) = 95 combined
	assert.Equal(t, models.SeverityCritical, SeverityFor(50, models.RiskHigh))

	// gap 50 + low tier (15) = 65 combined, still critical
	assert.Equal(t, models.SeverityCritical, SeverityFor(50, models.RiskLow))

	// gap 44 + low tier = 59 combined, falls through to medium (44 < 45)
	assert.Equal(t, models.SeverityMedium, SeverityFor(44, models.RiskLow))

	// gap 45 exactly hits the high band
	assert.Equal(t, models.SeverityHigh, SeverityFor(45, models.RiskLow))

	assert.Equal(t, models.SeverityMedium, SeverityFor(30, models.RiskLow))
	assert.Equal(t, models.SeverityLow, SeverityFor(10, models.RiskLow))
}

func TestSeverityFor_MonotonicInTier(t *testing.T) {
	tiers := []models.RiskTier{models.RiskLow, models.RiskMedium, models.RiskHigh, models.RiskCritical}

	for gapSize := 0.0; gapSize <= 100; gapSize += 5 {
		prev := 0
		for _, tier := range tiers {
			ord := SeverityFor(gapSize, tier).Ordinal()
			assert.GreaterOrEqual(t, ord, prev, "Severity must never drop as risk tier rises (gap %.0f, tier %s)", gapSize, tier)
			prev = ord
		}
	}
}

func TestRootCauseFor(t *testing.T) {
	assert.Equal(t, models.CauseMissingEvidence, RootCauseFor(0, 0), "Zero evidence dominates")
	assert.Equal(t, models.CauseMissingEvidence, RootCauseFor(0, 45), "Zero evidence dominates any score band")
	assert.Equal(t, models.CauseNoPolicy, RootCauseFor(2, 29.9))
	assert.Equal(t, models.CausePartialImplementation, RootCauseFor(2, 30))
	assert.Equal(t, models.CausePartialImplementation, RootCauseFor(2, 49.9))
	assert.Equal(t, models.CauseSystemic, RootCauseFor(2, 50))
}
