package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// RootCause is the inferred reason a requirement scores below threshold.
// The taxonomy is fixed - the engine never fabricates a cause it cannot
// support from the evidence shape.
type RootCause string

const (
	CauseMissingEvidence       RootCause = "missing_evidence"
	CauseNoPolicy              RootCause = "no_policy"
	CausePartialImplementation RootCause = "partial_implementation"
	CauseResourcing            RootCause = "resourcing"
	CauseSystemic              RootCause = "systemic"
)

// ComplianceGap records a requirement scoring below the gap threshold.
type ComplianceGap struct {
	GapID         string `json:"gap_id"`
	RequirementID string `json:"requirement_id"`
	Framework     string `json:"framework"`

	CurrentScore float64 `json:"current_score"`
	TargetScore  float64 `json:"target_score"`
	GapSize      float64 `json:"gap_size"` // target - current, always >= 0

	Severity  Severity  `json:"severity"`
	RootCause RootCause `json:"root_cause"`

	Actions []*RemediationAction `json:"actions,omitempty"`

	// AssessmentDate is the day the gap was identified (YYYY-MM-DD).
	// It feeds the gap ID so re-running the same assessment on the
	// same day never duplicates gaps.
	AssessmentDate string    `json:"assessment_date"`
	CreatedAt      time.Time `json:"created_at"`

	Closed   bool       `json:"closed,omitempty"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`
}

// NewGapID derives the deterministic gap identifier from the requirement
// and assessment date.
func NewGapID(requirementID string, assessed time.Time) string {
	sum := sha256.Sum256([]byte(requirementID + "|" + assessed.UTC().Format("2006-01-02")))
	return "gap-" + hex.EncodeToString(sum[:8])
}
