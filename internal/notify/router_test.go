package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iraqaf/assurance/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubChannel records sends and fails the first failUntil attempts.
type stubChannel struct {
	name string

	mu        sync.Mutex
	sends     int
	failUntil int
	observed  []models.DeliveryStatus
}

func (c *stubChannel) Name() string { return c.name }

func (c *stubChannel) Send(ctx context.Context, n *models.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sends++
	c.observed = append(c.observed, n.DeliveryStatus)
	if c.sends <= c.failUntil {
		return errors.New("simulated channel outage")
	}
	return nil
}

func (c *stubChannel) sendCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sends
}

func (c *stubChannel) observedStatuses() []models.DeliveryStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.DeliveryStatus(nil), c.observed...)
}

func newTestRouter(channels []Channel, primary Channel, maxAttempts int) *Router {
	return NewRouter(channels, primary, time.Second, maxAttempts, 5*time.Millisecond)
}

func gapEvent(severity models.Severity) GapEvent {
	return GapEvent{Gap: &models.ComplianceGap{
		GapID:         "gap-1",
		RequirementID: "gdpr-1",
		Framework:     "gdpr",
		Severity:      severity,
		CurrentScore:  30,
		TargetScore:   100,
	}}
}

func flush(r *Router) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r.Flush(ctx)
}

func TestRoute_CriticalFansOutToAllChannels(t *testing.T) {
	a := &stubChannel{name: "log"}
	b := &stubChannel{name: "nats"}
	r := newTestRouter([]Channel{a, b}, a, 2)

	notifications := r.Route(context.Background(), gapEvent(models.SeverityCritical))
	flush(r)

	require.Len(t, notifications, 2, "Critical events reach every channel")
	assert.Equal(t, 1, a.sendCount())
	assert.Equal(t, 1, b.sendCount())

	for _, n := range r.Snapshot(notifications) {
		assert.Equal(t, models.PriorityCritical, n.Priority)
		assert.Equal(t, models.DeliveryDelivered, n.DeliveryStatus)
		assert.Equal(t, "gap-1", n.SourceGapID)
		assert.NotNil(t, n.DeliveredAt)
	}
}

func TestRoute_MediumUsesPrimaryOnly(t *testing.T) {
	a := &stubChannel{name: "log"}
	b := &stubChannel{name: "nats"}
	r := newTestRouter([]Channel{a, b}, b, 2)

	notifications := r.Route(context.Background(), gapEvent(models.SeverityMedium))
	flush(r)

	require.Len(t, notifications, 1)
	assert.Equal(t, "nats", notifications[0].Channel)
	assert.Equal(t, 0, a.sendCount(), "Non-primary channels stay quiet for medium priority")
	assert.Equal(t, 1, b.sendCount())
}

func TestRoute_LowGoesToDigest(t *testing.T) {
	a := &stubChannel{name: "log"}
	r := newTestRouter([]Channel{a}, a, 2)

	notifications := r.Route(context.Background(), gapEvent(models.SeverityLow))
	flush(r)

	require.Len(t, notifications, 1)
	assert.Equal(t, "digest", notifications[0].Channel)
	assert.Equal(t, models.DeliveryPending, notifications[0].DeliveryStatus, "Digest entries wait for the daily build")
	assert.Equal(t, 0, a.sendCount(), "Low priority is never sent immediately")
	assert.Equal(t, 1, r.Digest().Pending())
}

func TestRoute_HighRetriesThenSucceeds(t *testing.T) {
	a := &stubChannel{name: "log", failUntil: 1}
	r := newTestRouter([]Channel{a}, a, 3)

	notifications := r.Route(context.Background(), gapEvent(models.SeverityHigh))
	flush(r)

	snap := r.Snapshot(notifications)
	require.Len(t, snap, 1)
	assert.Equal(t, models.DeliveryDelivered, snap[0].DeliveryStatus)
	assert.Equal(t, 2, snap[0].Attempts, "First attempt failed, retry succeeded")
}

func TestRoute_HighExhaustsRetries(t *testing.T) {
	a := &stubChannel{name: "log", failUntil: 100}
	r := newTestRouter([]Channel{a}, a, 2)

	notifications := r.Route(context.Background(), gapEvent(models.SeverityCritical))
	flush(r)

	snap := r.Snapshot(notifications)
	require.Len(t, snap, 1)
	assert.Equal(t, models.DeliveryFailed, snap[0].DeliveryStatus)
	assert.Equal(t, 2, snap[0].Attempts)
	assert.Contains(t, snap[0].FailureReason, "outage")
	assert.Equal(t, 2, a.sendCount(), "maxAttempts bounds the retry loop")
}

func TestRoute_MediumNeverRetries(t *testing.T) {
	a := &stubChannel{name: "log", failUntil: 100}
	r := newTestRouter([]Channel{a}, a, 5)

	notifications := r.Route(context.Background(), gapEvent(models.SeverityMedium))
	flush(r)

	snap := r.Snapshot(notifications)
	assert.Equal(t, models.DeliveryFailed, snap[0].DeliveryStatus)
	assert.Equal(t, 1, a.sendCount(), "Medium priority gets exactly one attempt")
}

func TestDispatch_MarksSentBeforeOutcome(t *testing.T) {
	a := &stubChannel{name: "log"}
	r := newTestRouter([]Channel{a}, a, 2)

	notifications := r.Route(context.Background(), gapEvent(models.SeverityMedium))
	flush(r)

	observed := a.observedStatuses()
	require.Len(t, observed, 1)
	assert.Equal(t, models.DeliverySent, observed[0], "An in-flight send is marked sent, not pending")
	assert.Equal(t, models.DeliveryDelivered, r.Snapshot(notifications)[0].DeliveryStatus)
}

func TestRoute_FailedMediumFoldsIntoDigest(t *testing.T) {
	a := &stubChannel{name: "log", failUntil: 1}
	r := newTestRouter([]Channel{a}, a, 5)

	notifications := r.Route(context.Background(), gapEvent(models.SeverityMedium))
	flush(r)

	snap := r.Snapshot(notifications)
	assert.Equal(t, models.DeliveryFailed, snap[0].DeliveryStatus)
	require.Equal(t, 1, r.Digest().Pending(), "Failed medium send waits for the daily digest")

	digest := r.CreateDailyDigest(context.Background())
	flush(r)
	require.NotNil(t, digest)

	snap = r.Snapshot(notifications)
	assert.Equal(t, models.DeliveryDelivered, snap[0].DeliveryStatus)
	assert.Equal(t, "digest", snap[0].DeliveredVia)
	assert.Contains(t, snap[0].FailureReason, "outage", "The direct-send failure stays on record")
}

func TestCreateDailyDigest(t *testing.T) {
	a := &stubChannel{name: "log"}
	r := newTestRouter([]Channel{a}, a, 2)

	first := r.Route(context.Background(), gapEvent(models.SeverityLow))
	second := r.Route(context.Background(), gapEvent(models.SeverityLow))

	digest := r.CreateDailyDigest(context.Background())
	flush(r)

	require.NotNil(t, digest)
	assert.Equal(t, 1, a.sendCount(), "One summary send for the whole batch")
	assert.Equal(t, 0, r.Digest().Pending(), "Digest drains the batch")

	snap := r.Snapshot([]*models.Notification{first[0], second[0]})
	for _, n := range snap {
		assert.Equal(t, models.DeliveryDelivered, n.DeliveryStatus)
		assert.Equal(t, "digest", n.DeliveredVia)
	}
}

func TestCreateDailyDigest_EmptyBatch(t *testing.T) {
	a := &stubChannel{name: "log"}
	r := newTestRouter([]Channel{a}, a, 2)

	assert.Nil(t, r.CreateDailyDigest(context.Background()), "Nothing queued, nothing sent")
	assert.Equal(t, 0, a.sendCount())
}

func TestDriftEvent_PriorityInheritsChangeSeverity(t *testing.T) {
	drift := &models.ComplianceDriftRecord{
		ChangeID:      "chg-1",
		RequirementID: "gdpr-1",
		BeforeScore:   80,
		AfterScore:    60,
		Direction:     models.DriftDegraded,
		Magnitude:     20,
	}

	withSeverity := DriftEvent{Drift: drift, ChangeSeverity: models.SeverityHigh}
	severity, ok := withSeverity.Severity()
	assert.True(t, ok)
	assert.Equal(t, models.SeverityHigh, severity)

	withoutSeverity := DriftEvent{Drift: drift}
	_, ok = withoutSeverity.Severity()
	assert.False(t, ok, "Unknown change severity routes at info priority")
}
