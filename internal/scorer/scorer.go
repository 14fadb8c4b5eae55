package scorer

import (
	"math"
	"time"

	"github.com/iraqaf/assurance/internal/models"
)

const (
	// z-value for a 95% confidence interval
	z95 = 1.96

	// Fixed interval half-width when n <= 1 - a wide band signalling low
	// confidence rather than a false-precise single point
	singleEvidenceMargin = 20.0
)

// Scorer converts evidence into requirement scores. Scoring is pure and
// deterministic: the same requirement and evidence always produce
// bit-identical results, which the monitoring cycle relies on for
// idempotency. Now is injectable so a cycle can pin all ComputedAt
// timestamps to cycle start.
type Scorer struct {
	Now func() time.Time
}

// NewScorer creates a scorer using wall-clock time.
func NewScorer() *Scorer {
	return &Scorer{Now: time.Now}
}

// Score computes the evidence-weighted compliance score for one requirement.
//
// The base score is the quality-and-confidence weighted mean across all
// evidence. The risk multiplier affects only the weighted/portfolio view,
// never the displayed per-requirement score.
func (s *Scorer) Score(req *models.Requirement, evidence []*models.Evidence) (*models.RequirementScore, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	for _, ev := range evidence {
		if err := ev.Validate(); err != nil {
			return nil, err
		}
	}

	base, confidence := weightedMean(evidence)
	base = clamp(base)

	lower, upper := confidenceInterval(base, evidence)

	return &models.RequirementScore{
		RequirementID:   req.ID,
		Framework:       req.Framework,
		ComplianceScore: base,
		ComplianceLevel: models.LevelForScore(base),
		Confidence:      confidence,
		IntervalLower:   lower,
		IntervalUpper:   upper,
		WeightedScore:   clamp(base * req.RiskTier.Multiplier()),
		EvidenceCount:   len(evidence),
		ComputedAt:      s.Now(),
	}, nil
}

// weightedMean returns sum(quality*confidence)/sum(confidence) and the mean
// confidence. With no evidence (or zero total confidence) both are 0.
func weightedMean(evidence []*models.Evidence) (score, confidence float64) {
	if len(evidence) == 0 {
		return 0, 0
	}

	var weighted, confSum float64
	for _, ev := range evidence {
		weighted += ev.Quality * ev.Confidence
		confSum += ev.Confidence
	}

	if confSum == 0 {
		return 0, 0
	}

	return weighted / confSum, confSum / float64(len(evidence))
}

// confidenceInterval computes the 95% interval from the standard error of
// the evidence quality distribution, clamped to [0,100].
func confidenceInterval(score float64, evidence []*models.Evidence) (lower, upper float64) {
	n := len(evidence)

	margin := singleEvidenceMargin
	if n > 1 {
		margin = z95 * (sampleStddev(evidence) / math.Sqrt(float64(n)))
	}

	return clamp(score - margin), clamp(score + margin)
}

// sampleStddev is the n-1 standard deviation of evidence quality.
func sampleStddev(evidence []*models.Evidence) float64 {
	n := float64(len(evidence))

	var sum float64
	for _, ev := range evidence {
		sum += ev.Quality
	}
	mean := sum / n

	var sqDiff float64
	for _, ev := range evidence {
		d := ev.Quality - mean
		sqDiff += d * d
	}

	return math.Sqrt(sqDiff / (n - 1))
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
