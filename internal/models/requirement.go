package models

import (
	"fmt"
	"time"
)

// RequirementCategory groups requirements by the kind of obligation they impose
type RequirementCategory string

const (
	CategoryGovernance       RequirementCategory = "governance"
	CategoryDocumentation    RequirementCategory = "documentation"
	CategoryImplementation   RequirementCategory = "implementation"
	CategoryTesting          RequirementCategory = "testing"
	CategoryTraining         RequirementCategory = "training"
	CategoryIncidentResponse RequirementCategory = "incident_response"
	CategoryMonitoring       RequirementCategory = "monitoring"
	CategoryAudit            RequirementCategory = "audit"
)

// RiskTier indicates how much weight a requirement carries in portfolio scoring
type RiskTier string

const (
	RiskLow      RiskTier = "low"
	RiskMedium   RiskTier = "medium"
	RiskHigh     RiskTier = "high"
	RiskCritical RiskTier = "critical"
)

// Index returns the 1-based ordinal of the tier (Low=1 .. Critical=4).
// Used by the gap severity formula (risk_factor = index * 15).
func (t RiskTier) Index() int {
	switch t {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	}
	return 0
}

// Multiplier returns the risk weighting applied to the weighted score view.
func (t RiskTier) Multiplier() float64 {
	switch t {
	case RiskCritical:
		return 1.20
	case RiskHigh:
		return 1.15
	case RiskMedium:
		return 1.10
	case RiskLow:
		return 1.05
	}
	return 1.0
}

// Requirement is a single checkable obligation under a regulatory framework.
// Identity is (Framework, ID). A published requirement is immutable - a new
// version creates a new record linked to its predecessor via PredecessorID.
// Requirements are never deleted, only superseded or retired.
type Requirement struct {
	Framework string `json:"framework"`
	ID        string `json:"requirement_id"`
	Version   int    `json:"version"`

	Text      string              `json:"text"`
	Category  RequirementCategory `json:"category"`
	Mandatory bool                `json:"mandatory"`
	RiskTier  RiskTier            `json:"risk_tier"`

	// Version chain - set when a new version supersedes this record
	PredecessorID string `json:"predecessor_id,omitempty"`
	SupersededBy  string `json:"superseded_by,omitempty"`

	// Retired requirements are excluded from portfolio aggregation
	// but retained for audit history
	Retired bool `json:"retired,omitempty"`

	PublishedAt time.Time `json:"published_at"`
}

// Validate checks the requirement is well-formed enough to score.
func (r *Requirement) Validate() error {
	if r.ID == "" {
		return &DataError{Subject: "requirement", Reason: "missing requirement_id"}
	}
	if r.Framework == "" {
		return &DataError{Subject: r.ID, Reason: "missing framework"}
	}
	if r.RiskTier.Index() == 0 {
		return &DataError{Subject: r.ID, Reason: fmt.Sprintf("unknown risk tier: %q", r.RiskTier)}
	}
	return nil
}
