package scorer

import (
	"testing"
	"time"

	"github.com/iraqaf/assurance/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequirement(tier models.RiskTier) *models.Requirement {
	return &models.Requirement{
		Framework: "gdpr",
		ID:        "gdpr-32",
		Text:      "Implement appropriate technical and organisational measures",
		Category:  models.CategoryImplementation,
		Mandatory: true,
		RiskTier:  tier,
	}
}

func ev(quality, confidence float64) *models.Evidence {
	return &models.Evidence{
		RequirementID: "gdpr-32",
		Type:          models.EvidenceAudit,
		Quality:       quality,
		Confidence:    confidence,
		Timestamp:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestScore_WeightedMean(t *testing.T) {
	s := NewScorer()

	evidence := []*models.Evidence{ev(90, 0.95), ev(82, 0.85)}

	score, err := s.Score(testRequirement(models.RiskCritical), evidence)
	require.NoError(t, err, "Scoring should succeed")

	// (90*0.95 + 82*0.85) / (0.95 + 0.85)
	assert.InDelta(t, 86.22, score.ComplianceScore, 0.01, "Base score should be the confidence-weighted mean")
	assert.InDelta(t, 0.90, score.Confidence, 0.001, "Confidence should be the mean evidence confidence")
	assert.Equal(t, models.LevelSubstantial, score.ComplianceLevel, "86.22 falls in the substantial band")
	assert.Equal(t, 2, score.EvidenceCount)

	// Critical multiplier 1.20 pushes past 100, clamped
	assert.Equal(t, 100.0, score.WeightedScore, "Weighted score should clamp at 100")
}

func TestScore_RiskMultiplierNeverAffectsBaseScore(t *testing.T) {
	s := NewScorer()
	evidence := []*models.Evidence{ev(60, 0.8), ev(70, 0.8)}

	low, err := s.Score(testRequirement(models.RiskLow), evidence)
	require.NoError(t, err)
	critical, err := s.Score(testRequirement(models.RiskCritical), evidence)
	require.NoError(t, err)

	assert.Equal(t, low.ComplianceScore, critical.ComplianceScore, "Base score must not depend on the risk tier")
	assert.Greater(t, critical.WeightedScore, low.WeightedScore, "Weighted view should reflect the higher multiplier")
}

func TestScore_ConfidenceIntervalContainsScore(t *testing.T) {
	s := NewScorer()

	evidence := []*models.Evidence{ev(90, 0.95), ev(82, 0.85), ev(55, 0.5)}

	score, err := s.Score(testRequirement(models.RiskMedium), evidence)
	require.NoError(t, err)

	assert.LessOrEqual(t, score.IntervalLower, score.ComplianceScore, "Lower bound must not exceed the score")
	assert.GreaterOrEqual(t, score.IntervalUpper, score.ComplianceScore, "Upper bound must not fall below the score")
	assert.GreaterOrEqual(t, score.IntervalLower, 0.0, "Interval is clamped to [0,100]")
	assert.LessOrEqual(t, score.IntervalUpper, 100.0, "Interval is clamped to [0,100]")
}

func TestScore_TwoEvidenceInterval(t *testing.T) {
	s := NewScorer()

	score, err := s.Score(testRequirement(models.RiskMedium), []*models.Evidence{ev(90, 0.95), ev(82, 0.85)})
	require.NoError(t, err)

	// sample stddev of {90, 82} is 5.657; margin = 1.96 * 5.657 / sqrt(2)
	assert.InDelta(t, 86.22-7.84, score.IntervalLower, 0.02)
	assert.InDelta(t, 86.22+7.84, score.IntervalUpper, 0.02)
}

func TestScore_SingleEvidenceWideBand(t *testing.T) {
	s := NewScorer()

	score, err := s.Score(testRequirement(models.RiskMedium), []*models.Evidence{ev(70, 0.9)})
	require.NoError(t, err)

	assert.Equal(t, 50.0, score.IntervalLower, "Single evidence uses the fixed +-20 band")
	assert.Equal(t, 90.0, score.IntervalUpper, "Single evidence uses the fixed +-20 band")
}

func TestScore_NoEvidence(t *testing.T) {
	s := NewScorer()

	score, err := s.Score(testRequirement(models.RiskHigh), nil)
	require.NoError(t, err, "Zero evidence is a valid state, not an error")

	assert.Equal(t, 0.0, score.ComplianceScore, "No evidence means score 0")
	assert.Equal(t, 0.0, score.Confidence)
	assert.Equal(t, models.LevelNonCompliant, score.ComplianceLevel)
	assert.Equal(t, 0, score.EvidenceCount)
}

func TestScore_Deterministic(t *testing.T) {
	s := NewScorer()
	fixed := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return fixed }

	evidence := []*models.Evidence{ev(88, 0.9), ev(45, 0.6), ev(72, 0.75)}
	req := testRequirement(models.RiskHigh)

	first, err := s.Score(req, evidence)
	require.NoError(t, err)
	second, err := s.Score(req, evidence)
	require.NoError(t, err)

	assert.Equal(t, first, second, "Same inputs must produce bit-identical results")
}

func TestScore_InvalidRequirement(t *testing.T) {
	s := NewScorer()

	_, err := s.Score(&models.Requirement{ID: "x"}, nil)
	require.Error(t, err, "Missing framework should fail validation")
	assert.True(t, models.IsDataError(err), "Validation failures are data errors")
}

func TestScore_InvalidEvidence(t *testing.T) {
	s := NewScorer()

	bad := ev(150, 0.9) // quality out of range
	_, err := s.Score(testRequirement(models.RiskLow), []*models.Evidence{bad})
	require.Error(t, err)
	assert.True(t, models.IsDataError(err))
}

func TestScore_ZeroTotalConfidence(t *testing.T) {
	s := NewScorer()

	score, err := s.Score(testRequirement(models.RiskLow), []*models.Evidence{ev(90, 0), ev(80, 0)})
	require.NoError(t, err)

	assert.Equal(t, 0.0, score.ComplianceScore, "Zero total confidence contributes nothing")
}
