package evidence

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/iraqaf/assurance/internal/models"
)

// Source is the evidence store interface the engine consumes.
type Source interface {
	// Evidence returns all evidence attached to one requirement.
	Evidence(ctx context.Context, requirementID string) ([]*models.Evidence, error)

	// Snapshot returns a consistent view of all evidence, taken at cycle
	// start. Writes landing mid-cycle are picked up next cycle, never as
	// a partial view.
	Snapshot(ctx context.Context) (map[string][]*models.Evidence, error)
}

// Appender is implemented by stores that accept new evidence.
// Evidence is append-only - superseding evidence never deletes prior items.
type Appender interface {
	Append(ctx context.Context, ev *models.Evidence) error
}

// Memory is an in-process evidence store.
type Memory struct {
	mu    sync.RWMutex
	items map[string][]*models.Evidence
	seq   int
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		items: make(map[string][]*models.Evidence),
	}
}

// Append attaches an evidence item to its requirement.
func (m *Memory) Append(ctx context.Context, ev *models.Evidence) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *ev
	m.seq++
	if copied.ID == "" {
		copied.ID = generateEvidenceID(copied.RequirementID, m.seq)
	}
	m.items[copied.RequirementID] = append(m.items[copied.RequirementID], &copied)
	return nil
}

// Evidence returns the full trail for one requirement, oldest first.
func (m *Memory) Evidence(ctx context.Context, requirementID string) ([]*models.Evidence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return copyEvidence(m.items[requirementID]), nil
}

// Snapshot copies the entire store at a point in time.
func (m *Memory) Snapshot(ctx context.Context) (map[string][]*models.Evidence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := make(map[string][]*models.Evidence, len(m.items))
	for id, items := range m.items {
		snapshot[id] = copyEvidence(items)
	}
	return snapshot, nil
}

func generateEvidenceID(requirementID string, seq int) string {
	return fmt.Sprintf("ev-%s-%d", requirementID, seq)
}

func copyEvidence(items []*models.Evidence) []*models.Evidence {
	out := make([]*models.Evidence, len(items))
	for i, ev := range items {
		copied := *ev
		out[i] = &copied
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}
