package gap

import (
	"fmt"
	"sort"

	"github.com/iraqaf/assurance/internal/models"
)

// ChangeAction is a remediation action generated from a regulatory change
// rather than a gap. It ranks by the originating change's severity; having
// no gap, its gap size is zero, so it sorts after gap actions of the same
// severity.
type ChangeAction struct {
	Action   *models.RemediationAction
	Severity models.Severity
}

// PrioritizedActionPlan flattens all gap actions plus any change-derived
// actions, sorts by (severity desc, gap size desc, timeline asc), truncates
// to maxActions, and reorders so no action precedes its in-scope
// dependencies. A dependency cycle is an IntegrityError - a broken plan is
// a fatal configuration problem, not something to silently drop.
func PrioritizedActionPlan(gaps []*models.ComplianceGap, changeActions []ChangeAction, maxActions int) ([]*models.RemediationAction, error) {
	type ranked struct {
		action   *models.RemediationAction
		severity int
		gapSize  float64
	}

	var all []ranked
	for _, g := range gaps {
		if g.Closed {
			continue
		}
		for _, action := range g.Actions {
			all = append(all, ranked{action: action, severity: g.Severity.Ordinal(), gapSize: g.GapSize})
		}
	}
	for _, ca := range changeActions {
		all = append(all, ranked{action: ca.Action, severity: ca.Severity.Ordinal()})
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].severity != all[j].severity {
			return all[i].severity > all[j].severity
		}
		if all[i].gapSize != all[j].gapSize {
			return all[i].gapSize > all[j].gapSize
		}
		return all[i].action.TimelineDays < all[j].action.TimelineDays
	})

	if maxActions > 0 && len(all) > maxActions {
		all = all[:maxActions]
	}

	selected := make([]*models.RemediationAction, len(all))
	for i, r := range all {
		selected[i] = r.action
	}

	return topologicalOrder(selected)
}

// topologicalOrder reorders actions so every action follows its in-scope
// dependencies, preserving priority order among ready actions (Kahn's
// algorithm over a stable queue). Dependencies outside the selected set
// are ignored.
func topologicalOrder(actions []*models.RemediationAction) ([]*models.RemediationAction, error) {
	inScope := make(map[string]*models.RemediationAction, len(actions))
	for _, action := range actions {
		inScope[action.ActionID] = action
	}

	indegree := make(map[string]int, len(actions))
	dependents := make(map[string][]string)
	for _, action := range actions {
		for _, dep := range action.DependsOn {
			if _, ok := inScope[dep]; !ok {
				continue
			}
			indegree[action.ActionID]++
			dependents[dep] = append(dependents[dep], action.ActionID)
		}
	}

	// Ready queue seeded in priority order
	var queue []string
	for _, action := range actions {
		if indegree[action.ActionID] == 0 {
			queue = append(queue, action.ActionID)
		}
	}

	ordered := make([]*models.RemediationAction, 0, len(actions))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		ordered = append(ordered, inScope[id])

		for _, dependent := range dependents[id] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(ordered) != len(actions) {
		var stuck []string
		for id, deg := range indegree {
			if deg > 0 {
				stuck = append(stuck, id)
			}
		}
		sort.Strings(stuck)
		return nil, &models.IntegrityError{
			Subject: "remediation_plan",
			Reason:  fmt.Sprintf("dependency cycle involving actions %v", stuck),
		}
	}

	return ordered, nil
}
