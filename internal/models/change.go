package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ChangeType classifies the nature of a regulatory content change
type ChangeType string

const (
	ChangeNewRequirement      ChangeType = "new_requirement"
	ChangeModifiedRequirement ChangeType = "modified_requirement"
	ChangeRemovedRequirement  ChangeType = "removed_requirement"
	ChangeClarification       ChangeType = "clarification"
)

// RegulatoryChange captures a diff between two content versions of the same
// logical unit. The same (old_hash, new_hash) pair always produces the same
// ChangeID, so reprocessing a diff is a no-op.
type RegulatoryChange struct {
	ChangeID  string `json:"change_id"`
	UnitID    string `json:"unit_id"`
	Framework string `json:"framework,omitempty"`

	ChangeType ChangeType `json:"change_type"`

	// Content hashes over whitespace-normalized text, so cosmetic
	// re-formatting never registers as a change
	OldHash string `json:"old_hash"`
	NewHash string `json:"new_hash"`

	// Similarity is the normalized text similarity in [0,1]
	// (only meaningful for modified/clarification changes)
	Similarity float64 `json:"similarity"`

	Severity                  Severity  `json:"severity"`
	EstimatedRemediationHours float64   `json:"estimated_remediation_hours"`
	DetectedAt                time.Time `json:"detected_at"`
}

// NewChangeID derives the deterministic change identifier from the content
// hashes and the unit they belong to.
func NewChangeID(oldHash, newHash, unitID string) string {
	sum := sha256.Sum256([]byte(oldHash + "|" + newHash + "|" + unitID))
	return "chg-" + hex.EncodeToString(sum[:8])
}
