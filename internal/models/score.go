package models

import "time"

// ComplianceLevel is the discrete bucket derived from a numeric score.
// It is always a pure function of the compliance score, never set directly.
type ComplianceLevel string

const (
	LevelNonCompliant ComplianceLevel = "non_compliant" // < 25
	LevelMinimal      ComplianceLevel = "minimal"       // 25-49
	LevelPartial      ComplianceLevel = "partial"       // 50-74
	LevelSubstantial  ComplianceLevel = "substantial"   // 75-89
	LevelFull         ComplianceLevel = "full"          // >= 90
)

// LevelForScore maps a 0-100 score to its compliance level bucket.
func LevelForScore(score float64) ComplianceLevel {
	switch {
	case score >= 90:
		return LevelFull
	case score >= 75:
		return LevelSubstantial
	case score >= 50:
		return LevelPartial
	case score >= 25:
		return LevelMinimal
	default:
		return LevelNonCompliant
	}
}

// RequirementScore is the result of scoring one requirement in one
// assessment run.
//
// Invariants:
//   - IntervalLower <= ComplianceScore <= IntervalUpper when EvidenceCount >= 1
//   - ComplianceLevel == LevelForScore(ComplianceScore)
//   - WeightedScore is clamped to [0,100]
type RequirementScore struct {
	RequirementID string `json:"requirement_id"`
	Framework     string `json:"framework"`

	ComplianceScore float64         `json:"compliance_score"`
	ComplianceLevel ComplianceLevel `json:"compliance_level"`

	// Confidence is the mean evidence confidence (0 with no evidence)
	Confidence float64 `json:"confidence"`

	// 95% confidence interval, clamped to [0,100]
	IntervalLower float64 `json:"interval_lower"`
	IntervalUpper float64 `json:"interval_upper"`

	// WeightedScore = ComplianceScore * risk multiplier, clamped.
	// Only the portfolio view uses it - the displayed per-requirement
	// score is never inflated past what the evidence supports.
	WeightedScore float64 `json:"weighted_score"`

	EvidenceCount int       `json:"evidence_count"`
	ComputedAt    time.Time `json:"computed_at"`
}
