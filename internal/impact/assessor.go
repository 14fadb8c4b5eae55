package impact

import (
	"fmt"
	"log"
	"time"

	"github.com/iraqaf/assurance/internal/models"
	"github.com/iraqaf/assurance/internal/scorer"
)

// Assessor computes compliance drift caused by a regulatory change and
// produces the re-prioritized action plan for substantive changes.
type Assessor struct {
	scorer *scorer.Scorer

	// locks serializes forced re-scoring with any in-flight scoring run
	// against the same requirement
	locks *scorer.KeyedLock

	Now func() time.Time
}

// NewAssessor creates an assessor sharing the scoring pool's lock set.
func NewAssessor(s *scorer.Scorer, locks *scorer.KeyedLock) *Assessor {
	return &Assessor{
		scorer: s,
		locks:  locks,
		Now:    time.Now,
	}
}

// Assess links a change to the score delta it caused.
//
//   - NewRequirement: prior score is 0, the after score is a forced fresh
//     score with whatever evidence exists (usually none). Direction is
//     Degraded and magnitude is the requirement's weight in the portfolio.
//   - ModifiedRequirement/Clarification: the same evidence is re-scored
//     against the new requirement. A category or mandatory-flag change
//     flags mandatory re-evidence review regardless of numeric drift.
//   - RemovedRequirement: no re-score; the requirement leaves portfolio
//     aggregation but its history is retained.
//
// oldReq may be nil for new requirements; newReq may be nil for removals.
func (a *Assessor) Assess(change *models.RegulatoryChange, oldReq, newReq *models.Requirement, evidence []*models.Evidence, prior *models.RequirementScore, portfolio []*models.RequirementScore) (*models.ComplianceDriftRecord, error) {
	now := a.Now()

	switch change.ChangeType {
	case models.ChangeNewRequirement:
		if newReq == nil {
			return nil, &models.DataError{Subject: change.UnitID, Reason: "new requirement record missing"}
		}

		after, err := a.rescore(newReq, evidence)
		if err != nil {
			return nil, err
		}

		return &models.ComplianceDriftRecord{
			ChangeID:      change.ChangeID,
			RequirementID: newReq.ID,
			BeforeScore:   0,
			AfterScore:    after.ComplianceScore,
			Direction:     models.DriftDegraded,
			Magnitude:     scorer.PortfolioWeight(newReq.RiskTier, portfolio),
			AssessedAt:    now,
		}, nil

	case models.ChangeRemovedRequirement:
		record := &models.ComplianceDriftRecord{
			ChangeID:   change.ChangeID,
			BeforeScore: priorScore(prior),
			AfterScore:  priorScore(prior),
			Direction:   models.DriftUnchanged,
			Magnitude:   0,
			AssessedAt:  now,
		}
		if oldReq != nil {
			record.RequirementID = oldReq.ID
		}
		return record, nil

	case models.ChangeModifiedRequirement, models.ChangeClarification:
		if newReq == nil {
			return nil, &models.DataError{Subject: change.UnitID, Reason: "modified requirement record missing"}
		}

		after, err := a.rescore(newReq, evidence)
		if err != nil {
			return nil, err
		}

		before := priorScore(prior)
		record := &models.ComplianceDriftRecord{
			ChangeID:      change.ChangeID,
			RequirementID: newReq.ID,
			BeforeScore:   before,
			AfterScore:    after.ComplianceScore,
			Direction:     direction(before, after.ComplianceScore),
			Magnitude:     abs(after.ComplianceScore - before),
			AssessedAt:    now,
		}

		if oldReq != nil && (oldReq.Category != newReq.Category || oldReq.Mandatory != newReq.Mandatory) {
			record.ReEvidenceRequired = true
			log.Printf("[Impact] Requirement %s changed category/mandatory flag - evidence re-review required", newReq.ID)
		}

		return record, nil
	}

	return nil, &models.DataError{Subject: change.ChangeID, Reason: fmt.Sprintf("unknown change type %q", change.ChangeType)}
}

// GenerateActionPlan produces remediation actions for new or modified
// requirements of at least Medium severity. Other changes need no plan.
func (a *Assessor) GenerateActionPlan(change *models.RegulatoryChange, req *models.Requirement) []*models.RemediationAction {
	if change.ChangeType != models.ChangeNewRequirement && change.ChangeType != models.ChangeModifiedRequirement {
		return nil
	}
	if !change.Severity.AtLeast(models.SeverityMedium) {
		return nil
	}

	now := a.Now()
	var actions []*models.RemediationAction

	add := func(t models.ActionType, description string) {
		defaults := t.Defaults()
		actions = append(actions, &models.RemediationAction{
			ActionID:     fmt.Sprintf("%s-%s-%d", change.ChangeID, t, len(actions)+1),
			ChangeID:     change.ChangeID,
			Type:         t,
			Description:  description,
			OwnerRole:    defaults.OwnerRole,
			EffortHours:  defaults.EffortHours,
			CostEstimate: defaults.CostEstimate,
			TimelineDays: defaults.TimelineDays,
			Status:       models.StatusPending,
			CreatedAt:    now,
			SuccessMetrics: []string{
				fmt.Sprintf("Requirement %s scored at or above threshold in next cycle", change.UnitID),
			},
		})
	}

	unit := change.UnitID
	if req != nil {
		unit = req.ID
	}

	if change.ChangeType == models.ChangeNewRequirement {
		add(models.ActionDocumentation, fmt.Sprintf("Document current state against new requirement %s", unit))
		add(models.ActionImplementation, fmt.Sprintf("Implement controls for new requirement %s", unit))
	} else {
		add(models.ActionImplementation, fmt.Sprintf("Adapt controls to the modified requirement %s", unit))
		if change.Severity == models.SeverityCritical {
			add(models.ActionPolicyCreation, fmt.Sprintf("Revise policy covering %s for the changed obligation", unit))
		}
	}

	return actions
}

func (a *Assessor) rescore(req *models.Requirement, evidence []*models.Evidence) (*models.RequirementScore, error) {
	if a.locks != nil {
		a.locks.Lock(req.ID)
		defer a.locks.Unlock(req.ID)
	}
	return a.scorer.Score(req, evidence)
}

func priorScore(prior *models.RequirementScore) float64 {
	if prior == nil {
		return 0
	}
	return prior.ComplianceScore
}

func direction(before, after float64) models.DriftDirection {
	switch {
	case after > before:
		return models.DriftImproved
	case after < before:
		return models.DriftDegraded
	default:
		return models.DriftUnchanged
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
