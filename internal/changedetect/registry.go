package changedetect

import (
	"context"
	"sync"

	"github.com/iraqaf/assurance/internal/models"
)

// MemoryRegistry is an in-process change registry for tests and
// standalone runs.
type MemoryRegistry struct {
	mu      sync.RWMutex
	changes map[string]*models.RegulatoryChange
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		changes: make(map[string]*models.RegulatoryChange),
	}
}

func (r *MemoryRegistry) GetChange(ctx context.Context, changeID string) (*models.RegulatoryChange, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	change, ok := r.changes[changeID]
	if !ok {
		return nil, false, nil
	}
	copied := *change
	return &copied, true, nil
}

func (r *MemoryRegistry) PutChange(ctx context.Context, change *models.RegulatoryChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *change
	r.changes[change.ChangeID] = &copied
	return nil
}
