package notify

import (
	"context"
	"log"

	"github.com/iraqaf/assurance/internal/models"
)

// Channel is a pluggable notification transport. Concrete wire formats
// (email, SMS, webhook) live outside the engine - a channel only needs to
// deliver a rendered payload.
type Channel interface {
	Name() string
	Send(ctx context.Context, n *models.Notification) error
}

// LogChannel writes notifications to the service log. Default primary
// channel for standalone runs.
type LogChannel struct{}

func (LogChannel) Name() string { return "log" }

func (LogChannel) Send(ctx context.Context, n *models.Notification) error {
	log.Printf("[Notify] (%s) %s", n.Priority, n.Payload)
	return nil
}
