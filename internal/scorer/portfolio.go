package scorer

import "github.com/iraqaf/assurance/internal/models"

// PortfolioSummary aggregates a full assessment run.
type PortfolioSummary struct {
	// OverallScore is the arithmetic mean of in-scope compliance scores
	OverallScore float64 `json:"overall_score"`

	// WeightedScore is the mean of risk-weighted scores
	WeightedScore float64 `json:"weighted_score"`

	// CategoryScore is the category-weighted aggregate, populated only
	// when category weights are configured (see CategoryWeightedScore)
	CategoryScore float64 `json:"category_score,omitempty"`

	LevelDistribution map[models.ComplianceLevel]int `json:"level_distribution"`
	PerFramework      map[string]float64             `json:"per_framework"`

	ScoredCount int `json:"scored_count"`

	// IncompleteCount is how many requirements failed scoring this run.
	// Surfaced so consumers never mistake a partial run for a complete
	// compliance picture.
	IncompleteCount int `json:"incomplete_count"`
}

// Summarize builds the portfolio view from one run's scores.
func Summarize(scores []*models.RequirementScore, incompleteCount int) *PortfolioSummary {
	summary := &PortfolioSummary{
		LevelDistribution: map[models.ComplianceLevel]int{
			models.LevelNonCompliant: 0,
			models.LevelMinimal:      0,
			models.LevelPartial:      0,
			models.LevelSubstantial:  0,
			models.LevelFull:         0,
		},
		PerFramework:    make(map[string]float64),
		ScoredCount:     len(scores),
		IncompleteCount: incompleteCount,
	}

	if len(scores) == 0 {
		return summary
	}

	var total, weighted float64
	frameworkTotals := make(map[string]float64)
	frameworkCounts := make(map[string]int)

	for _, score := range scores {
		total += score.ComplianceScore
		weighted += score.WeightedScore
		summary.LevelDistribution[score.ComplianceLevel]++
		frameworkTotals[score.Framework] += score.ComplianceScore
		frameworkCounts[score.Framework]++
	}

	n := float64(len(scores))
	summary.OverallScore = total / n
	summary.WeightedScore = weighted / n

	for framework, sum := range frameworkTotals {
		summary.PerFramework[framework] = sum / float64(frameworkCounts[framework])
	}

	return summary
}

// RegulationScore is the arithmetic mean of in-scope scores for one framework.
// Returns 0 when the framework has no scored requirements.
func RegulationScore(scores []*models.RequirementScore, framework string) float64 {
	var total float64
	count := 0

	for _, score := range scores {
		if score.Framework == framework {
			total += score.ComplianceScore
			count++
		}
	}

	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// CategoryWeightedScore aggregates scores using configured per-category
// weights. Categories without a configured weight fall back to weight 1.
// The weights are configuration, not contract - no specific set is assumed.
func CategoryWeightedScore(scores []*models.RequirementScore, reqs map[string]*models.Requirement, weights map[string]float64) float64 {
	if len(weights) == 0 {
		return Summarize(scores, 0).OverallScore
	}

	var weightedSum, weightTotal float64
	for _, score := range scores {
		req, ok := reqs[score.RequirementID]
		if !ok {
			continue
		}
		w, ok := weights[string(req.Category)]
		if !ok {
			w = 1
		}
		weightedSum += score.ComplianceScore * w
		weightTotal += w
	}

	if weightTotal == 0 {
		return 0
	}
	return weightedSum / weightTotal
}

// PortfolioWeight is a requirement's share of the portfolio mean, used as
// the drift magnitude for newly introduced requirements. The share scales
// with the requirement's risk multiplier.
func PortfolioWeight(tier models.RiskTier, portfolioScores []*models.RequirementScore) float64 {
	m := tier.Multiplier()

	n := float64(len(portfolioScores))
	return clamp(100 * m / (n + m))
}
