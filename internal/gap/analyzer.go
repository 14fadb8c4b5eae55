package gap

import (
	"fmt"
	"log"
	"time"

	"github.com/iraqaf/assurance/internal/models"
)

// Risk factor weight per tier index in the combined severity formula
const riskFactorWeight = 15.0

// Analyzer identifies compliance gaps from scored requirements and
// classifies their severity and root cause. All rules are deterministic
// lookups - no model, no randomness.
type Analyzer struct {
	threshold   float64
	targetScore float64

	Now func() time.Time
}

// NewAnalyzer creates an analyzer. The threshold and target must be within
// [0,100]; out-of-range values are a ConfigurationError.
func NewAnalyzer(gapThreshold, targetScore float64) (*Analyzer, error) {
	if gapThreshold < 0 || gapThreshold > 100 {
		return nil, &models.ConfigurationError{Field: "gap_threshold", Reason: fmt.Sprintf("%.2f outside [0,100]", gapThreshold)}
	}
	if targetScore < 0 || targetScore > 100 {
		return nil, &models.ConfigurationError{Field: "target_score", Reason: fmt.Sprintf("%.2f outside [0,100]", targetScore)}
	}

	return &Analyzer{
		threshold:   gapThreshold,
		targetScore: targetScore,
		Now:         time.Now,
	}, nil
}

// IdentifyGaps returns a gap for every score below the threshold.
// Gap IDs are deterministic over (requirement, assessment date), so
// re-running the same assessment never duplicates gaps.
func (a *Analyzer) IdentifyGaps(scores []*models.RequirementScore, reqs map[string]*models.Requirement) []*models.ComplianceGap {
	now := a.Now()
	var gaps []*models.ComplianceGap

	for _, score := range scores {
		if score.ComplianceScore >= a.threshold {
			continue
		}

		req, ok := reqs[score.RequirementID]
		if !ok {
			log.Printf("[GapAnalyzer] No requirement record for scored id %s, skipping", score.RequirementID)
			continue
		}

		gapSize := a.targetScore - score.ComplianceScore
		if gapSize < 0 {
			gapSize = 0
		}

		g := &models.ComplianceGap{
			GapID:          models.NewGapID(score.RequirementID, now),
			RequirementID:  score.RequirementID,
			Framework:      score.Framework,
			CurrentScore:   score.ComplianceScore,
			TargetScore:    a.targetScore,
			GapSize:        gapSize,
			Severity:       SeverityFor(gapSize, req.RiskTier),
			RootCause:      RootCauseFor(score.EvidenceCount, score.ComplianceScore),
			AssessmentDate: now.UTC().Format("2006-01-02"),
			CreatedAt:      now,
		}
		g.Actions = GenerateRemediationPlan(g, now)

		log.Printf("[GapAnalyzer] Gap [%s] %s: score %.1f, size %.1f, cause %s",
			g.Severity, g.RequirementID, g.CurrentScore, g.GapSize, g.RootCause)

		gaps = append(gaps, g)
	}

	return gaps
}

// SeverityFor classifies a gap. The ranges overlap and must be evaluated
// top-down, Critical first, so ties resolve to the more severe bucket.
func SeverityFor(gapSize float64, tier models.RiskTier) models.Severity {
	riskFactor := float64(tier.Index()) * riskFactorWeight
	combined := gapSize + riskFactor

	switch {
	case combined >= 60:
		return models.SeverityCritical
	case gapSize >= 45:
		return models.SeverityHigh
	case gapSize >= 30:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// RootCauseFor infers the cause from the evidence count and score band.
// Scores above the partial-implementation band get Systemic, flagging the
// gap for human root-cause entry rather than fabricating a cause.
func RootCauseFor(evidenceCount int, score float64) models.RootCause {
	switch {
	case evidenceCount == 0:
		return models.CauseMissingEvidence
	case score < 30:
		return models.CauseNoPolicy
	case score < 50:
		return models.CausePartialImplementation
	default:
		return models.CauseSystemic
	}
}
