package models

import (
	"fmt"
	"time"
)

// EvidenceType classifies the artifact supporting a requirement
type EvidenceType string

const (
	EvidenceDocumentation  EvidenceType = "documentation"
	EvidencePolicy         EvidenceType = "policy"
	EvidenceImplementation EvidenceType = "implementation"
	EvidenceTesting        EvidenceType = "testing"
	EvidenceAudit          EvidenceType = "audit"
	EvidenceCertification  EvidenceType = "certification"
)

// Evidence is an artifact or attestation attached to a requirement assessment.
// Evidence is append-only: superseding evidence never deletes prior items,
// the full trail is retained for audit.
type Evidence struct {
	ID            string       `json:"id"`
	RequirementID string       `json:"requirement_id"`
	Type          EvidenceType `json:"type"`
	Description   string       `json:"description"`

	// Quality is the assessor's rating of the artifact itself (0-100)
	Quality float64 `json:"quality"`

	// Confidence is how certain the assessor is that the artifact
	// actually supports the requirement (0.0-1.0)
	Confidence float64 `json:"confidence"`

	Timestamp time.Time `json:"timestamp"`
}

// Validate checks value ranges. A malformed evidence item aborts scoring
// for its requirement only.
func (e *Evidence) Validate() error {
	if e.RequirementID == "" {
		return &DataError{Subject: "evidence", Reason: "missing requirement_id"}
	}
	if e.Quality < 0 || e.Quality > 100 {
		return &DataError{Subject: e.RequirementID, Reason: fmt.Sprintf("evidence quality %.2f outside [0,100]", e.Quality)}
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return &DataError{Subject: e.RequirementID, Reason: fmt.Sprintf("evidence confidence %.2f outside [0,1]", e.Confidence)}
	}
	return nil
}
