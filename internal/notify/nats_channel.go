package notify

import (
	"context"

	"github.com/iraqaf/assurance/internal/eventbus"
	"github.com/iraqaf/assurance/internal/models"
)

// NATSChannel delivers notifications onto the event bus, where downstream
// transports (email, SMS, webhook bridges) pick them up.
type NATSChannel struct {
	publisher *eventbus.Publisher
}

// NewNATSChannel wraps an event bus publisher as a notification channel.
func NewNATSChannel(publisher *eventbus.Publisher) *NATSChannel {
	return &NATSChannel{publisher: publisher}
}

func (*NATSChannel) Name() string { return "nats" }

func (c *NATSChannel) Send(ctx context.Context, n *models.Notification) error {
	return c.publisher.PublishNotification(n)
}
