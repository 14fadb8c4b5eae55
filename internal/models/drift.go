package models

import "time"

// DriftDirection describes how a regulatory change moved the compliance score
type DriftDirection string

const (
	DriftImproved  DriftDirection = "improved"
	DriftDegraded  DriftDirection = "degraded"
	DriftUnchanged DriftDirection = "unchanged"
)

// ComplianceDriftRecord links a regulatory change to the score delta it
// caused after a forced re-score.
type ComplianceDriftRecord struct {
	ChangeID      string `json:"change_id"`
	RequirementID string `json:"requirement_id"`

	BeforeScore float64        `json:"before_score"`
	AfterScore  float64        `json:"after_score"`
	Direction   DriftDirection `json:"drift_direction"`
	Magnitude   float64        `json:"magnitude"`

	// ReEvidenceRequired is set when the change altered the requirement's
	// category or mandatory flag - all evidence must be re-reviewed
	// regardless of numeric drift
	ReEvidenceRequired bool `json:"re_evidence_required,omitempty"`

	// Actions is the remediation plan the change demands. Empty for
	// clarifications, removals and low-severity changes.
	Actions []*RemediationAction `json:"actions,omitempty"`

	AssessedAt time.Time `json:"assessed_at"`
}
