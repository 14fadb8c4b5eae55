package models

import "time"

// CycleState is the orchestrator's position in the monitoring cycle
type CycleState string

const (
	StateIdle             CycleState = "idle"
	StateDetectingChanges CycleState = "detecting_changes"
	StateAssessingImpact  CycleState = "assessing_impact"
	StateRescoring        CycleState = "rescoring"
	StateAnalyzingGaps    CycleState = "analyzing_gaps"
	StateNotifying        CycleState = "notifying"
	StateReporting        CycleState = "reporting"
)

// CycleFailure records a non-fatal, per-item failure inside a cycle stage.
// Failures are recorded in the report rather than thrown, except in the
// data-integrity critical stages which abort the cycle.
type CycleFailure struct {
	Stage         CycleState `json:"stage"`
	RequirementID string     `json:"requirement_id,omitempty"`
	Message       string     `json:"message"`
}

// MonitoringCycleReport is the append-only record of one orchestrator run.
// Reports form the audit history; a new report never mutates prior ones.
type MonitoringCycleReport struct {
	CycleID     string    `json:"cycle_id"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	Changes       []*RegulatoryChange      `json:"changes"`
	DriftRecords  []*ComplianceDriftRecord `json:"drift_records"`
	GapsOpened    []*ComplianceGap         `json:"gaps_opened"`
	GapsClosed    []string                 `json:"gaps_closed"`
	Notifications []*Notification          `json:"notifications"`

	PortfolioScore float64 `json:"portfolio_score"`
	WeightedScore  float64 `json:"weighted_score"`

	// CategoryScore is the category-weighted aggregate, populated only
	// when category weights are configured
	CategoryScore float64 `json:"category_score,omitempty"`

	// IncompleteCount is how many requirements could not be scored this
	// cycle. Consumers must never mistake a partial run for a complete
	// compliance picture.
	IncompleteCount int `json:"incomplete_count"`

	Failures []CycleFailure `json:"failures,omitempty"`
}
