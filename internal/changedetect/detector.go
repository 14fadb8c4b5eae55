package changedetect

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/iraqaf/assurance/internal/models"
)

// ContentVersion is one retrieved version of a regulatory unit, as supplied
// by the scraping layer. A nil version (or empty text) means the unit is
// absent on that side of the comparison.
type ContentVersion struct {
	UnitID    string
	Framework string
	Text      string
	Retrieved time.Time
}

// Registry persists detected changes keyed by change ID so re-running
// detection on the same (old_hash, new_hash) pair is a no-op.
type Registry interface {
	GetChange(ctx context.Context, changeID string) (*models.RegulatoryChange, bool, error)
	PutChange(ctx context.Context, change *models.RegulatoryChange) error
}

// Detector classifies diffs between two versions of the same logical unit.
type Detector struct {
	registry Registry

	// clarificationMinSim is the similarity at or above which a modified
	// text counts as a clarification rather than a substantive change
	clarificationMinSim float64

	Now func() time.Time
}

// NewDetector creates a detector backed by the given idempotency registry.
func NewDetector(registry Registry, clarificationMinSim float64) *Detector {
	return &Detector{
		registry:            registry,
		clarificationMinSim: clarificationMinSim,
		Now:                 time.Now,
	}
}

// Detect compares two versions of one unit. Returns (nil, nil) when the
// normalized content hashes match - no change. Detecting the same hash
// pair twice returns the previously registered change.
func (d *Detector) Detect(ctx context.Context, oldVersion, newVersion *ContentVersion) (*models.RegulatoryChange, error) {
	unitID, framework := unitIdentity(oldVersion, newVersion)
	if unitID == "" {
		return nil, &models.DataError{Subject: "change_detection", Reason: "both versions empty"}
	}

	oldText := versionText(oldVersion)
	newText := versionText(newVersion)

	oldHash := ""
	if oldText != "" {
		oldHash = ContentHash(oldText)
	}
	newHash := ""
	if newText != "" {
		newHash = ContentHash(newText)
	}

	if oldHash == newHash {
		return nil, nil
	}

	change := &models.RegulatoryChange{
		ChangeID:   models.NewChangeID(oldHash, newHash, unitID),
		UnitID:     unitID,
		Framework:  framework,
		OldHash:    oldHash,
		NewHash:    newHash,
		DetectedAt: d.Now(),
	}

	switch {
	case oldText == "":
		change.ChangeType = models.ChangeNewRequirement
		change.Severity = models.SeverityHigh
	case newText == "":
		change.ChangeType = models.ChangeRemovedRequirement
		change.Severity = models.SeverityMedium
	default:
		similarity := Similarity(oldText, newText)
		change.Similarity = similarity

		if similarity >= d.clarificationMinSim {
			change.ChangeType = models.ChangeClarification
			change.Severity = models.SeverityLow
		} else {
			change.ChangeType = models.ChangeModifiedRequirement
			change.Severity = severityForSimilarity(similarity)
		}
	}

	change.EstimatedRemediationHours = remediationHours(change.Severity)

	existing, found, err := d.registry.GetChange(ctx, change.ChangeID)
	if err != nil {
		return nil, &models.TransientError{Op: "change registry lookup", Err: err}
	}
	if found {
		if existing.OldHash != change.OldHash || existing.NewHash != change.NewHash || existing.UnitID != change.UnitID {
			return nil, &models.IntegrityError{
				Subject: change.ChangeID,
				Reason:  fmt.Sprintf("registered change for unit %s has differing content hashes", existing.UnitID),
			}
		}
		return existing, nil
	}

	if err := d.registry.PutChange(ctx, change); err != nil {
		return nil, &models.TransientError{Op: "change registry store", Err: err}
	}

	log.Printf("[ChangeDetector] Change [%s] %s: %s (similarity %.2f)",
		change.Severity, change.UnitID, change.ChangeType, change.Similarity)

	return change, nil
}

// severityForSimilarity maps a substantive modification to severity bands.
func severityForSimilarity(similarity float64) models.Severity {
	switch {
	case similarity < 0.50:
		return models.SeverityCritical
	case similarity < 0.70:
		return models.SeverityHigh
	case similarity < 0.85:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// remediationHours is the canonical effort estimate per change severity.
func remediationHours(s models.Severity) float64 {
	switch s {
	case models.SeverityCritical:
		return 120
	case models.SeverityHigh:
		return 80
	case models.SeverityMedium:
		return 40
	default:
		return 8
	}
}

func unitIdentity(oldVersion, newVersion *ContentVersion) (unitID, framework string) {
	if newVersion != nil && newVersion.UnitID != "" {
		return newVersion.UnitID, newVersion.Framework
	}
	if oldVersion != nil {
		return oldVersion.UnitID, oldVersion.Framework
	}
	return "", ""
}

func versionText(v *ContentVersion) string {
	if v == nil {
		return ""
	}
	return v.Text
}
