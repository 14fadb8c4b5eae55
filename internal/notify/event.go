package notify

import (
	"fmt"

	"github.com/iraqaf/assurance/internal/models"
)

// Event is anything the router can turn into a notification: a compliance
// gap, a regulatory change, or a drift record.
type Event interface {
	// EventID is the natural ID of the source (gap_id or change_id)
	EventID() string

	// Kind is "gap", "change" or "drift"
	Kind() string

	// Severity returns the event severity and whether one is defined.
	// Events without an explicit severity route at Info priority.
	Severity() (models.Severity, bool)

	// Summary renders the notification payload
	Summary() string
}

// GapEvent adapts a compliance gap for routing.
type GapEvent struct {
	Gap *models.ComplianceGap
}

func (e GapEvent) EventID() string { return e.Gap.GapID }
func (e GapEvent) Kind() string    { return "gap" }

func (e GapEvent) Severity() (models.Severity, bool) {
	return e.Gap.Severity, true
}

func (e GapEvent) Summary() string {
	return fmt.Sprintf("Compliance gap [%s] %s/%s: score %.1f of %.1f (cause: %s, %d actions)",
		e.Gap.Severity, e.Gap.Framework, e.Gap.RequirementID,
		e.Gap.CurrentScore, e.Gap.TargetScore, e.Gap.RootCause, len(e.Gap.Actions))
}

// ChangeEvent adapts a regulatory change for routing.
type ChangeEvent struct {
	Change *models.RegulatoryChange
}

func (e ChangeEvent) EventID() string { return e.Change.ChangeID }
func (e ChangeEvent) Kind() string    { return "change" }

func (e ChangeEvent) Severity() (models.Severity, bool) {
	return e.Change.Severity, true
}

func (e ChangeEvent) Summary() string {
	return fmt.Sprintf("Regulatory change [%s] %s: %s (est. %.0fh remediation)",
		e.Change.Severity, e.Change.UnitID, e.Change.ChangeType, e.Change.EstimatedRemediationHours)
}

// DriftEvent adapts a drift record for routing. Drift records carry no
// severity of their own; the causing change's severity applies when known.
type DriftEvent struct {
	Drift          *models.ComplianceDriftRecord
	ChangeSeverity models.Severity
}

func (e DriftEvent) EventID() string { return e.Drift.ChangeID }
func (e DriftEvent) Kind() string    { return "drift" }

func (e DriftEvent) Severity() (models.Severity, bool) {
	if e.ChangeSeverity.Ordinal() == 0 {
		return "", false
	}
	return e.ChangeSeverity, true
}

func (e DriftEvent) Summary() string {
	return fmt.Sprintf("Compliance drift on %s: %.1f -> %.1f (%s, magnitude %.1f)",
		e.Drift.RequirementID, e.Drift.BeforeScore, e.Drift.AfterScore,
		e.Drift.Direction, e.Drift.Magnitude)
}
