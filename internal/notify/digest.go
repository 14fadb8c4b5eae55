package notify

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/iraqaf/assurance/internal/models"
)

// Digest batches Low/Info notifications into a single daily summary
// instead of sending each immediately.
type Digest struct {
	mu         sync.Mutex
	entries    []*models.Notification
	lastDigest time.Time
}

// NewDigest creates an empty digest batch.
func NewDigest() *Digest {
	return &Digest{}
}

// Add queues a notification for the next digest.
func (d *Digest) Add(n *models.Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.entries = append(d.entries, n)
}

// Pending returns how many notifications await the next digest.
func (d *Digest) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.entries)
}

// Build drains the batch into a single summary notification, marking every
// original as delivered via digest. Returns nil when the batch is empty.
func (d *Digest) Build(now time.Time) *models.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.entries) == 0 {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Daily compliance digest (%d items since %s):\n",
		len(d.entries), lastDigestLabel(d.lastDigest))

	for _, n := range d.entries {
		fmt.Fprintf(&b, "- [%s] %s\n", n.Priority, n.Payload)

		n.DeliveryStatus = models.DeliveryDelivered
		n.DeliveredVia = "digest"
		delivered := now
		n.DeliveredAt = &delivered
	}

	d.entries = nil
	d.lastDigest = now

	return &models.Notification{
		NotificationID: uuid.NewString(),
		Channel:        "digest",
		Priority:       models.PriorityInfo,
		Payload:        b.String(),
		DeliveryStatus: models.DeliveryPending,
		CreatedAt:      now,
	}
}

func lastDigestLabel(t time.Time) string {
	if t.IsZero() {
		return "start of tracking"
	}
	return t.UTC().Format(time.RFC3339)
}
