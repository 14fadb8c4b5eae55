package store

import (
	"context"
	"time"

	"github.com/iraqaf/assurance/internal/models"
)

// Store is the append-only persistence layer for engine state. Every
// entity persists as a log keyed by its natural ID; records are inserted,
// never updated in place, so the full audit trail can be replayed.
// The storage technology is external and swappable - see the factory.
type Store interface {
	SaveScore(ctx context.Context, score *models.RequirementScore) error
	SaveGap(ctx context.Context, gap *models.ComplianceGap) error
	SaveChange(ctx context.Context, change *models.RegulatoryChange) error
	SaveDrift(ctx context.Context, drift *models.ComplianceDriftRecord) error
	SaveNotification(ctx context.Context, n *models.Notification) error
	SaveReport(ctx context.Context, report *models.MonitoringCycleReport) error

	// LatestScores returns the most recent score per requirement.
	LatestScores(ctx context.Context) (map[string]*models.RequirementScore, error)

	// OpenGaps returns gaps without a closing record, newest assessment
	// first.
	OpenGaps(ctx context.Context) ([]*models.ComplianceGap, error)

	// CloseGap appends a closing record for a gap. The gap itself is
	// retained.
	CloseGap(ctx context.Context, gapID string, closedAt time.Time) error

	// RecentChanges returns changes detected at or after since.
	RecentChanges(ctx context.Context, since time.Time) ([]*models.RegulatoryChange, error)

	// LatestReport returns the most recent cycle report, or nil if none.
	LatestReport(ctx context.Context) (*models.MonitoringCycleReport, error)

	Close(ctx context.Context) error
}
