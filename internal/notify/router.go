package notify

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/iraqaf/assurance/internal/models"
)

// Router classifies event priority, selects channels and tracks delivery.
//
// Channel selection:
//   - Critical/High: all configured channels in parallel
//   - Medium: primary channel only
//   - Low/Info: batched into the daily digest, never sent immediately
//
// A failed send on a Critical/High notification is retried with backoff
// before being surfaced as permanently Failed. Medium notifications fail
// silently into the digest log - no retry, no alert fatigue.
type Router struct {
	channels    []Channel
	primary     Channel
	timeout     time.Duration
	maxAttempts int
	backoffBase time.Duration
	digest      *Digest

	Now func() time.Time

	mu       sync.Mutex
	inflight sync.WaitGroup
}

// NewRouter creates a router. primary must be one of channels; maxAttempts
// counts the first attempt, so 2 means one retry.
func NewRouter(channels []Channel, primary Channel, timeout time.Duration, maxAttempts int, backoffBase time.Duration) *Router {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Router{
		channels:    channels,
		primary:     primary,
		timeout:     timeout,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
		digest:      NewDigest(),
		Now:         time.Now,
	}
}

// Route turns an event into notifications and dispatches the sends
// asynchronously. Returns one notification per selected channel (or a
// single Pending digest entry for Low/Info events). Sends never block the
// caller - reconcile status after Flush.
func (r *Router) Route(ctx context.Context, event Event) []*models.Notification {
	priority := models.PriorityInfo
	if severity, ok := event.Severity(); ok {
		priority = models.PriorityForSeverity(severity)
	}

	now := r.Now()
	build := func(channel string) *models.Notification {
		n := &models.Notification{
			NotificationID: uuid.NewString(),
			Channel:        channel,
			Priority:       priority,
			Payload:        event.Summary(),
			DeliveryStatus: models.DeliveryPending,
			CreatedAt:      now,
		}
		switch event.Kind() {
		case "gap":
			n.SourceGapID = event.EventID()
		default:
			n.SourceChangeID = event.EventID()
		}
		return n
	}

	switch priority {
	case models.PriorityCritical, models.PriorityHigh:
		notifications := make([]*models.Notification, 0, len(r.channels))
		for _, channel := range r.channels {
			n := build(channel.Name())
			notifications = append(notifications, n)
			r.dispatch(ctx, channel, n, true)
		}
		return notifications

	case models.PriorityMedium:
		n := build(r.primary.Name())
		r.dispatch(ctx, r.primary, n, false)
		return []*models.Notification{n}

	default:
		n := build("digest")
		r.digest.Add(n)
		log.Printf("[Router] Queued %s notification %s for daily digest", n.Priority, n.NotificationID)
		return []*models.Notification{n}
	}
}

// dispatch sends asynchronously with a per-channel timeout. retry enables
// the Critical/High backoff loop.
func (r *Router) dispatch(ctx context.Context, channel Channel, n *models.Notification, retry bool) {
	r.inflight.Add(1)

	go func() {
		defer r.inflight.Done()

		attempts := 1
		if retry {
			attempts = r.maxAttempts
		}

		r.markSent(n)

		var lastErr error
		for attempt := 1; attempt <= attempts; attempt++ {
			if attempt > 1 {
				backoff := r.backoffBase * time.Duration(1<<(attempt-2))
				log.Printf("[Router] Retrying notification %s on %s in %v (attempt %d/%d)",
					n.NotificationID, channel.Name(), backoff, attempt, attempts)
				select {
				case <-ctx.Done():
					r.markFailed(n, attempt-1, ctx.Err())
					return
				case <-time.After(backoff):
				}
			}

			sendCtx, cancel := context.WithTimeout(ctx, r.timeout)
			err := channel.Send(sendCtx, n)
			cancel()

			if err == nil {
				r.markDelivered(n, attempt)
				return
			}
			lastErr = err
			log.Printf("[Router] Send failed for notification %s on %s: %v", n.NotificationID, channel.Name(), err)
		}

		r.markFailed(n, attempts, lastErr)

		// A failed Medium send is not retried; it surfaces in the next
		// daily digest instead
		if !retry && n.Priority == models.PriorityMedium {
			r.digest.Add(n)
			log.Printf("[Router] Queued failed notification %s for daily digest", n.NotificationID)
		}
	}()
}

// markSent flags the send attempt as in flight. Delivered or Failed
// supersedes it once the attempt resolves.
func (r *Router) markSent(n *models.Notification) {
	r.mu.Lock()
	n.DeliveryStatus = models.DeliverySent
	r.mu.Unlock()
}

func (r *Router) markDelivered(n *models.Notification, attempts int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.Now()
	n.Attempts = attempts
	n.DeliveryStatus = models.DeliveryDelivered
	n.DeliveredAt = &now
}

func (r *Router) markFailed(n *models.Notification, attempts int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n.Attempts = attempts
	n.DeliveryStatus = models.DeliveryFailed
	if err != nil {
		n.FailureReason = err.Error()
	}
}

// Flush waits for in-flight sends until ctx expires. A notification still
// Pending afterwards is recorded as Pending in the cycle report and
// reconciled next cycle.
func (r *Router) Flush(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Printf("[Router] Flush deadline reached with sends still in flight")
	}
}

// Snapshot copies notification state under the router lock, safe to read
// while sends may still be mutating the originals.
func (r *Router) Snapshot(notifications []*models.Notification) []*models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*models.Notification, len(notifications))
	for i, n := range notifications {
		copied := *n
		out[i] = &copied
	}
	return out
}

// Digest exposes the router's digest batch.
func (r *Router) Digest() *Digest {
	return r.digest
}

// CreateDailyDigest aggregates all batched Low/Info notifications since the
// last digest into one summary and sends it on the primary channel.
// Returns nil when nothing is queued.
func (r *Router) CreateDailyDigest(ctx context.Context) *models.Notification {
	summary := r.digest.Build(r.Now())
	if summary == nil {
		return nil
	}

	r.dispatch(ctx, r.primary, summary, false)
	return summary
}
