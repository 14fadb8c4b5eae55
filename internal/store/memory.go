package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iraqaf/assurance/internal/models"
)

// Memory is the in-process store used by tests and standalone runs.
// It keeps the same append-only discipline as the durable backends.
type Memory struct {
	mu sync.RWMutex

	scores        []*models.RequirementScore
	gaps          []*models.ComplianceGap
	closedGaps    map[string]time.Time
	changes       []*models.RegulatoryChange
	drift         []*models.ComplianceDriftRecord
	notifications []*models.Notification
	reports       []*models.MonitoringCycleReport
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		closedGaps: make(map[string]time.Time),
	}
}

func (m *Memory) SaveScore(ctx context.Context, score *models.RequirementScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *score
	m.scores = append(m.scores, &copied)
	return nil
}

func (m *Memory) SaveGap(ctx context.Context, gap *models.ComplianceGap) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *gap
	m.gaps = append(m.gaps, &copied)
	return nil
}

func (m *Memory) SaveChange(ctx context.Context, change *models.RegulatoryChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *change
	m.changes = append(m.changes, &copied)
	return nil
}

func (m *Memory) SaveDrift(ctx context.Context, drift *models.ComplianceDriftRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *drift
	m.drift = append(m.drift, &copied)
	return nil
}

func (m *Memory) SaveNotification(ctx context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *n
	m.notifications = append(m.notifications, &copied)
	return nil
}

func (m *Memory) SaveReport(ctx context.Context, report *models.MonitoringCycleReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *report
	m.reports = append(m.reports, &copied)
	return nil
}

func (m *Memory) LatestScores(ctx context.Context) (map[string]*models.RequirementScore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	latest := make(map[string]*models.RequirementScore)
	for _, score := range m.scores {
		existing, ok := latest[score.RequirementID]
		if !ok || score.ComputedAt.After(existing.ComputedAt) {
			copied := *score
			latest[score.RequirementID] = &copied
		}
	}
	return latest, nil
}

func (m *Memory) OpenGaps(ctx context.Context) ([]*models.ComplianceGap, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Latest record per gap ID, skipping closed ones
	latest := make(map[string]*models.ComplianceGap)
	for _, gap := range m.gaps {
		latest[gap.GapID] = gap
	}

	var open []*models.ComplianceGap
	for id, gap := range latest {
		if _, closed := m.closedGaps[id]; closed {
			continue
		}
		copied := *gap
		open = append(open, &copied)
	}

	sort.Slice(open, func(i, j int) bool {
		if !open[i].CreatedAt.Equal(open[j].CreatedAt) {
			return open[i].CreatedAt.After(open[j].CreatedAt)
		}
		return open[i].GapID < open[j].GapID
	})
	return open, nil
}

func (m *Memory) CloseGap(ctx context.Context, gapID string, closedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closedGaps[gapID] = closedAt
	return nil
}

func (m *Memory) RecentChanges(ctx context.Context, since time.Time) ([]*models.RegulatoryChange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var recent []*models.RegulatoryChange
	for _, change := range m.changes {
		if !change.DetectedAt.Before(since) {
			copied := *change
			recent = append(recent, &copied)
		}
	}

	sort.Slice(recent, func(i, j int) bool { return recent[i].DetectedAt.After(recent[j].DetectedAt) })
	return recent, nil
}

func (m *Memory) LatestReport(ctx context.Context) (*models.MonitoringCycleReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.reports) == 0 {
		return nil, nil
	}
	copied := *m.reports[len(m.reports)-1]
	return &copied, nil
}

func (m *Memory) Close(ctx context.Context) error {
	return nil
}
