package models

import "time"

// Priority ranks a notification. It is always derived from the source
// event's severity; events with no explicit severity get Info.
type Priority string

const (
	PriorityInfo     Priority = "info"
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Ordinal returns the rank of the priority (Info=0 .. Critical=4).
func (p Priority) Ordinal() int {
	switch p {
	case PriorityInfo:
		return 0
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	}
	return -1
}

// PriorityForSeverity maps an event severity to its notification priority.
func PriorityForSeverity(s Severity) Priority {
	switch s {
	case SeverityCritical:
		return PriorityCritical
	case SeverityHigh:
		return PriorityHigh
	case SeverityMedium:
		return PriorityMedium
	case SeverityLow:
		return PriorityLow
	}
	return PriorityInfo
}

// DeliveryStatus tracks the outcome of a notification send
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// Notification is one routed alert on one channel.
// Exactly one of SourceGapID / SourceChangeID is set.
type Notification struct {
	NotificationID string `json:"notification_id"`

	SourceGapID    string `json:"source_gap_id,omitempty"`
	SourceChangeID string `json:"source_change_id,omitempty"`

	Channel  string   `json:"channel"`
	Priority Priority `json:"priority"`
	Payload  string   `json:"payload"`

	DeliveryStatus DeliveryStatus `json:"delivery_status"`
	Attempts       int            `json:"attempts"`

	// DeliveredVia is "digest" when the notification was folded into a
	// daily digest instead of being sent directly
	DeliveredVia string `json:"delivered_via,omitempty"`

	FailureReason string `json:"failure_reason,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}
