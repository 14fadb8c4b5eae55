package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iraqaf/assurance/internal/models"
)

// Source is the requirement catalog interface the engine consumes.
// The catalog technology (static files, database, API) is external.
type Source interface {
	Requirements(ctx context.Context, framework string) ([]*models.Requirement, error)
	AllRequirements(ctx context.Context) ([]*models.Requirement, error)
	Get(ctx context.Context, requirementID string) (*models.Requirement, error)
	Frameworks(ctx context.Context) ([]string, error)
}

// Memory is a versioned in-memory catalog. Requirements are immutable once
// published: a new version creates a new record linked to its predecessor,
// and retiring a requirement excludes it from scoring while keeping its
// history. Nothing is ever deleted.
type Memory struct {
	mu sync.RWMutex

	// current maps requirement ID to its latest version
	current map[string]*models.Requirement

	// history holds every published version, append-only
	history []*models.Requirement
}

// NewMemory creates an empty catalog.
func NewMemory() *Memory {
	return &Memory{
		current: make(map[string]*models.Requirement),
	}
}

// Publish registers a requirement version. Re-publishing an existing ID
// supersedes the previous version and links the chain.
func (m *Memory) Publish(req *models.Requirement) error {
	if err := req.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *req
	if copied.PublishedAt.IsZero() {
		copied.PublishedAt = time.Now()
	}

	if prev, ok := m.current[copied.ID]; ok {
		copied.Version = prev.Version + 1
		copied.PredecessorID = versionKey(prev)
		prev.SupersededBy = versionKey(&copied)
	} else if copied.Version == 0 {
		copied.Version = 1
	}

	m.current[copied.ID] = &copied
	m.history = append(m.history, &copied)
	return nil
}

// Retire excludes a requirement from future aggregation. The record and
// its history are retained.
func (m *Memory) Retire(requirementID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.current[requirementID]
	if !ok {
		return &models.DataError{Subject: requirementID, Reason: "requirement not in catalog"}
	}
	req.Retired = true
	return nil
}

// Requirements returns the active requirements for one framework.
func (m *Memory) Requirements(ctx context.Context, framework string) ([]*models.Requirement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var reqs []*models.Requirement
	for _, req := range m.current {
		if req.Framework == framework && !req.Retired {
			copied := *req
			reqs = append(reqs, &copied)
		}
	}

	sort.Slice(reqs, func(i, j int) bool { return reqs[i].ID < reqs[j].ID })
	return reqs, nil
}

// AllRequirements returns every active requirement across frameworks.
func (m *Memory) AllRequirements(ctx context.Context) ([]*models.Requirement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var reqs []*models.Requirement
	for _, req := range m.current {
		if !req.Retired {
			copied := *req
			reqs = append(reqs, &copied)
		}
	}

	sort.Slice(reqs, func(i, j int) bool { return reqs[i].ID < reqs[j].ID })
	return reqs, nil
}

// Get returns the latest version of a requirement, retired or not.
func (m *Memory) Get(ctx context.Context, requirementID string) (*models.Requirement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	req, ok := m.current[requirementID]
	if !ok {
		return nil, &models.DataError{Subject: requirementID, Reason: "requirement not in catalog"}
	}
	copied := *req
	return &copied, nil
}

// Frameworks lists frameworks with at least one active requirement.
func (m *Memory) Frameworks(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	for _, req := range m.current {
		if !req.Retired {
			seen[req.Framework] = true
		}
	}

	frameworks := make([]string, 0, len(seen))
	for fw := range seen {
		frameworks = append(frameworks, fw)
	}
	sort.Strings(frameworks)
	return frameworks, nil
}

// History returns every published version of a requirement, oldest first.
func (m *Memory) History(requirementID string) []*models.Requirement {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var versions []*models.Requirement
	for _, req := range m.history {
		if req.ID == requirementID {
			copied := *req
			versions = append(versions, &copied)
		}
	}
	return versions
}

func versionKey(req *models.Requirement) string {
	return fmt.Sprintf("%s@v%d", req.ID, req.Version)
}
