package models

import (
	"fmt"
	"time"
)

// ActionType classifies a remediation action. Each type carries canonical
// effort, cost and timeline defaults which callers may override.
type ActionType string

const (
	ActionDocumentation     ActionType = "documentation"
	ActionPolicyCreation    ActionType = "policy_creation"
	ActionImplementation    ActionType = "implementation"
	ActionTraining          ActionType = "training"
	ActionProcessRedesign   ActionType = "process_redesign"
	ActionTechnologyUpgrade ActionType = "technology_upgrade"
)

// ActionDefaults holds the canonical estimates for an action type.
type ActionDefaults struct {
	EffortHours  float64
	CostEstimate float64
	TimelineDays int
	OwnerRole    string
}

// Defaults returns the canonical effort/cost/timeline for the type.
func (t ActionType) Defaults() ActionDefaults {
	switch t {
	case ActionDocumentation:
		return ActionDefaults{EffortHours: 16, CostEstimate: 2000, TimelineDays: 7, OwnerRole: "compliance_officer"}
	case ActionPolicyCreation:
		return ActionDefaults{EffortHours: 40, CostEstimate: 6000, TimelineDays: 21, OwnerRole: "policy_owner"}
	case ActionImplementation:
		return ActionDefaults{EffortHours: 80, CostEstimate: 15000, TimelineDays: 30, OwnerRole: "engineering_lead"}
	case ActionTraining:
		return ActionDefaults{EffortHours: 24, CostEstimate: 4000, TimelineDays: 14, OwnerRole: "training_coordinator"}
	case ActionProcessRedesign:
		return ActionDefaults{EffortHours: 120, CostEstimate: 25000, TimelineDays: 60, OwnerRole: "process_owner"}
	case ActionTechnologyUpgrade:
		return ActionDefaults{EffortHours: 160, CostEstimate: 50000, TimelineDays: 90, OwnerRole: "engineering_lead"}
	}
	return ActionDefaults{}
}

// ActionStatus is the remediation lifecycle state
type ActionStatus string

const (
	StatusPending    ActionStatus = "pending"
	StatusInProgress ActionStatus = "in_progress"
	StatusCompleted  ActionStatus = "completed"
	StatusBlocked    ActionStatus = "blocked"
)

// RemediationAction is one step of a remediation plan.
// Lifecycle: Pending -> InProgress -> Completed | Blocked.
// CompletionPercent is monotonically non-decreasing while InProgress.
type RemediationAction struct {
	ActionID string     `json:"action_id"`
	GapID    string     `json:"gap_id,omitempty"`
	ChangeID string     `json:"change_id,omitempty"`
	Type     ActionType `json:"type"`

	Description string `json:"description"`
	OwnerRole   string `json:"owner_role"`

	// DependsOn lists action IDs that must complete first.
	// The full dependency set must form a DAG - a cycle is an
	// IntegrityError, never silently dropped.
	DependsOn      []string `json:"depends_on,omitempty"`
	SuccessMetrics []string `json:"success_metrics,omitempty"`

	EffortHours  float64 `json:"effort_hours"`
	CostEstimate float64 `json:"cost_estimate"`
	TimelineDays int     `json:"timeline_days"`

	Status            ActionStatus `json:"status"`
	CompletionPercent float64      `json:"completion_percent"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Start transitions the action from Pending to InProgress.
func (a *RemediationAction) Start(now time.Time) error {
	if a.Status != StatusPending {
		return fmt.Errorf("cannot start action %s in status %s", a.ActionID, a.Status)
	}
	a.Status = StatusInProgress
	a.StartedAt = &now
	return nil
}

// UpdateProgress sets the completion percentage. Progress may never
// decrease while the action is in flight.
func (a *RemediationAction) UpdateProgress(percent float64) error {
	if a.Status != StatusInProgress {
		return fmt.Errorf("cannot update progress of action %s in status %s", a.ActionID, a.Status)
	}
	if percent < a.CompletionPercent {
		return fmt.Errorf("progress of action %s cannot decrease (%.1f -> %.1f)", a.ActionID, a.CompletionPercent, percent)
	}
	if percent > 100 {
		percent = 100
	}
	a.CompletionPercent = percent
	return nil
}

// Complete transitions the action to Completed.
func (a *RemediationAction) Complete(now time.Time) error {
	if a.Status != StatusInProgress {
		return fmt.Errorf("cannot complete action %s in status %s", a.ActionID, a.Status)
	}
	a.Status = StatusCompleted
	a.CompletionPercent = 100
	a.CompletedAt = &now
	return nil
}

// Block transitions the action to Blocked.
func (a *RemediationAction) Block() error {
	if a.Status == StatusCompleted {
		return fmt.Errorf("cannot block completed action %s", a.ActionID)
	}
	a.Status = StatusBlocked
	return nil
}
