package changedetect

import (
	"context"
	"testing"
	"time"

	"github.com/iraqaf/assurance/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDetector() *Detector {
	d := NewDetector(NewMemoryRegistry(), 0.95)
	d.Now = func() time.Time { return time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC) }
	return d
}

func version(unitID, text string) *ContentVersion {
	return &ContentVersion{
		UnitID:    unitID,
		Framework: "gdpr",
		Text:      text,
		Retrieved: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestDetect_WhitespaceOnlyIsNoChange(t *testing.T) {
	d := newTestDetector()

	oldV := version("art-32", "Data controllers shall implement appropriate measures.")
	newV := version("art-32", "Data   controllers\r\nshall implement\tappropriate measures.")

	change, err := d.Detect(context.Background(), oldV, newV)
	require.NoError(t, err)
	assert.Nil(t, change, "Re-formatting must never register as a change")
}

func TestDetect_NewRequirement(t *testing.T) {
	d := newTestDetector()

	change, err := d.Detect(context.Background(), nil, version("art-99", "A new obligation."))
	require.NoError(t, err)
	require.NotNil(t, change)

	assert.Equal(t, models.ChangeNewRequirement, change.ChangeType)
	assert.Equal(t, models.SeverityHigh, change.Severity, "Unmet-by-definition requirements are high severity")
	assert.Empty(t, change.OldHash)
	assert.NotEmpty(t, change.NewHash)
	assert.Equal(t, 80.0, change.EstimatedRemediationHours)
}

func TestDetect_RemovedRequirement(t *testing.T) {
	d := newTestDetector()

	change, err := d.Detect(context.Background(), version("art-10", "An obligation."), nil)
	require.NoError(t, err)
	require.NotNil(t, change)

	assert.Equal(t, models.ChangeRemovedRequirement, change.ChangeType)
	assert.Equal(t, models.SeverityMedium, change.Severity)
	assert.Empty(t, change.NewHash)
}

func TestDetect_Clarification(t *testing.T) {
	d := newTestDetector()

	oldText := "Data controllers shall implement appropriate technical and organisational measures to ensure a level of security appropriate to the risk."
	newText := "Data controllers shall implement appropriate technical and organizational measures to ensure a level of security appropriate to the risk."

	change, err := d.Detect(context.Background(), version("art-32", oldText), version("art-32", newText))
	require.NoError(t, err)
	require.NotNil(t, change)

	assert.Equal(t, models.ChangeClarification, change.ChangeType, "Near-identical text is a clarification")
	assert.Equal(t, models.SeverityLow, change.Severity)
	assert.GreaterOrEqual(t, change.Similarity, 0.95)
}

func TestDetect_SubstantiveModification(t *testing.T) {
	d := newTestDetector()

	oldText := "Breach notification is required within a reasonable period."
	newText := "Breach notification is required within 72 hours of becoming aware, including full incident details."

	change, err := d.Detect(context.Background(), version("art-33", oldText), version("art-33", newText))
	require.NoError(t, err)
	require.NotNil(t, change)

	assert.Equal(t, models.ChangeModifiedRequirement, change.ChangeType)
	assert.Less(t, change.Similarity, 0.95)
	assert.GreaterOrEqual(t, change.Severity.Ordinal(), models.SeverityMedium.Ordinal(), "Substantive rewording is at least medium")
}

func TestDetect_Idempotent(t *testing.T) {
	d := newTestDetector()

	oldV := version("art-33", "Old obligation text.")
	newV := version("art-33", "Completely different obligation text now.")

	first, err := d.Detect(context.Background(), oldV, newV)
	require.NoError(t, err)
	second, err := d.Detect(context.Background(), oldV, newV)
	require.NoError(t, err)

	assert.Equal(t, first.ChangeID, second.ChangeID, "Same hash pair must yield the same change")
	assert.Equal(t, first.DetectedAt, second.DetectedAt, "Re-detection returns the registered change, not a new one")
}

func TestDetect_RegistryHashMismatchIsIntegrityError(t *testing.T) {
	registry := NewMemoryRegistry()
	d := NewDetector(registry, 0.95)
	d.Now = func() time.Time { return time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC) }

	oldV := version("art-33", "Old obligation text.")
	newV := version("art-33", "Completely different obligation text now.")

	change, err := d.Detect(context.Background(), oldV, newV)
	require.NoError(t, err)

	// Corrupt the registered record to simulate a collision
	corrupted := *change
	corrupted.NewHash = "tampered"
	require.NoError(t, registry.PutChange(context.Background(), &corrupted))

	_, err = d.Detect(context.Background(), oldV, newV)
	require.Error(t, err)
	assert.True(t, models.IsIntegrityError(err), "Conflicting registration must fail loudly")
}

func TestDetect_BothVersionsEmpty(t *testing.T) {
	d := newTestDetector()

	_, err := d.Detect(context.Background(), nil, nil)
	require.Error(t, err)
	assert.True(t, models.IsDataError(err))
}

func TestSeverityForSimilarity(t *testing.T) {
	assert.Equal(t, models.SeverityCritical, severityForSimilarity(0.49))
	assert.Equal(t, models.SeverityHigh, severityForSimilarity(0.50))
	assert.Equal(t, models.SeverityHigh, severityForSimilarity(0.69))
	assert.Equal(t, models.SeverityMedium, severityForSimilarity(0.70))
	assert.Equal(t, models.SeverityMedium, severityForSimilarity(0.84))
	assert.Equal(t, models.SeverityLow, severityForSimilarity(0.85))
}
