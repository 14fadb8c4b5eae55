package gap

import (
	"fmt"
	"time"

	"github.com/iraqaf/assurance/internal/models"
)

// GenerateRemediationPlan selects 1-4 action types for a gap based on its
// root cause. Each action carries the canonical effort/cost/timeline for
// its type.
//
// Mapping:
//   - MissingEvidence -> Documentation
//   - NoPolicy -> PolicyCreation + Training (training depends on the policy)
//   - PartialImplementation -> Implementation
//   - Systemic -> ProcessRedesign, plus TechnologyUpgrade for Critical gaps
func GenerateRemediationPlan(g *models.ComplianceGap, now time.Time) []*models.RemediationAction {
	var actions []*models.RemediationAction

	add := func(t models.ActionType, description string, metrics []string, dependsOn ...string) *models.RemediationAction {
		defaults := t.Defaults()
		action := &models.RemediationAction{
			ActionID:       fmt.Sprintf("%s-%s-%d", g.GapID, t, len(actions)+1),
			GapID:          g.GapID,
			Type:           t,
			Description:    description,
			OwnerRole:      defaults.OwnerRole,
			DependsOn:      dependsOn,
			SuccessMetrics: metrics,
			EffortHours:    defaults.EffortHours,
			CostEstimate:   defaults.CostEstimate,
			TimelineDays:   defaults.TimelineDays,
			Status:         models.StatusPending,
			CreatedAt:      now,
		}
		actions = append(actions, action)
		return action
	}

	switch g.RootCause {
	case models.CauseMissingEvidence:
		add(models.ActionDocumentation,
			fmt.Sprintf("Collect and attach compliance evidence for %s", g.RequirementID),
			[]string{
				"At least one evidence item of quality >= 70 attached",
				fmt.Sprintf("Requirement score reaches %.0f", g.TargetScore)})

	case models.CauseNoPolicy:
		policy := add(models.ActionPolicyCreation,
			fmt.Sprintf("Draft and ratify a policy covering %s", g.RequirementID),
			[]string{"Policy approved by compliance owner", "Policy published to all affected teams"})
		add(models.ActionTraining,
			fmt.Sprintf("Train affected staff on the new policy for %s", g.RequirementID),
			[]string{"90% of affected staff complete training"},
			policy.ActionID)

	case models.CausePartialImplementation:
		add(models.ActionImplementation,
			fmt.Sprintf("Complete the partial implementation of %s", g.RequirementID),
			[]string{
				"Implementation evidence of quality >= 70 attached",
				fmt.Sprintf("Requirement score reaches %.0f", g.TargetScore)})

	case models.CauseSystemic, models.CauseResourcing:
		add(models.ActionProcessRedesign,
			fmt.Sprintf("Redesign the compliance process behind %s", g.RequirementID),
			[]string{"Root cause documented by process owner", "Redesigned process signed off"})
		if g.Severity == models.SeverityCritical {
			add(models.ActionTechnologyUpgrade,
				fmt.Sprintf("Upgrade tooling supporting %s", g.RequirementID),
				[]string{"Replacement tooling live in production"})
		}
	}

	return actions
}
