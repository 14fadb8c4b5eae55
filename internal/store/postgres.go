package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iraqaf/assurance/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres persists engine state in insert-only tables. Each row is the
// JSON document plus its natural ID and timestamp for indexing; nothing is
// ever updated or deleted, closures and supersessions are new rows.
type Postgres struct {
	pool *pgxpool.Pool
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS compliance_scores (
		seq BIGSERIAL PRIMARY KEY,
		requirement_id TEXT NOT NULL,
		computed_at TIMESTAMPTZ NOT NULL,
		doc JSONB NOT NULL)`,
	`CREATE INDEX IF NOT EXISTS idx_scores_req ON compliance_scores (requirement_id, computed_at DESC)`,
	`CREATE TABLE IF NOT EXISTS compliance_gaps (
		seq BIGSERIAL PRIMARY KEY,
		gap_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		doc JSONB NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS gap_closures (
		seq BIGSERIAL PRIMARY KEY,
		gap_id TEXT NOT NULL,
		closed_at TIMESTAMPTZ NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS regulatory_changes (
		seq BIGSERIAL PRIMARY KEY,
		change_id TEXT NOT NULL,
		detected_at TIMESTAMPTZ NOT NULL,
		doc JSONB NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS drift_records (
		seq BIGSERIAL PRIMARY KEY,
		change_id TEXT NOT NULL,
		doc JSONB NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		seq BIGSERIAL PRIMARY KEY,
		notification_id TEXT NOT NULL,
		doc JSONB NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS cycle_reports (
		seq BIGSERIAL PRIMARY KEY,
		cycle_id TEXT NOT NULL,
		completed_at TIMESTAMPTZ NOT NULL,
		doc JSONB NOT NULL)`,
}

// NewPostgres connects, verifies the connection and ensures the schema.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to ensure schema: %w", err)
		}
	}

	return &Postgres{pool: pool}, nil
}

func (p *Postgres) SaveScore(ctx context.Context, score *models.RequirementScore) error {
	doc, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("failed to marshal score: %w", err)
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO compliance_scores (requirement_id, computed_at, doc) VALUES ($1, $2, $3)`,
		score.RequirementID, score.ComputedAt, doc)
	if err != nil {
		return &models.TransientError{Op: "persist score", Err: err}
	}
	return nil
}

func (p *Postgres) SaveGap(ctx context.Context, gap *models.ComplianceGap) error {
	doc, err := json.Marshal(gap)
	if err != nil {
		return fmt.Errorf("failed to marshal gap: %w", err)
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO compliance_gaps (gap_id, created_at, doc) VALUES ($1, $2, $3)`,
		gap.GapID, gap.CreatedAt, doc)
	if err != nil {
		return &models.TransientError{Op: "persist gap", Err: err}
	}
	return nil
}

func (p *Postgres) SaveChange(ctx context.Context, change *models.RegulatoryChange) error {
	doc, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal change: %w", err)
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO regulatory_changes (change_id, detected_at, doc) VALUES ($1, $2, $3)`,
		change.ChangeID, change.DetectedAt, doc)
	if err != nil {
		return &models.TransientError{Op: "persist change", Err: err}
	}
	return nil
}

func (p *Postgres) SaveDrift(ctx context.Context, drift *models.ComplianceDriftRecord) error {
	doc, err := json.Marshal(drift)
	if err != nil {
		return fmt.Errorf("failed to marshal drift record: %w", err)
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO drift_records (change_id, doc) VALUES ($1, $2)`,
		drift.ChangeID, doc)
	if err != nil {
		return &models.TransientError{Op: "persist drift", Err: err}
	}
	return nil
}

func (p *Postgres) SaveNotification(ctx context.Context, n *models.Notification) error {
	doc, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO notifications (notification_id, doc) VALUES ($1, $2)`,
		n.NotificationID, doc)
	if err != nil {
		return &models.TransientError{Op: "persist notification", Err: err}
	}
	return nil
}

func (p *Postgres) SaveReport(ctx context.Context, report *models.MonitoringCycleReport) error {
	doc, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO cycle_reports (cycle_id, completed_at, doc) VALUES ($1, $2, $3)`,
		report.CycleID, report.CompletedAt, doc)
	if err != nil {
		return &models.TransientError{Op: "persist report", Err: err}
	}
	return nil
}

func (p *Postgres) LatestScores(ctx context.Context) (map[string]*models.RequirementScore, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT DISTINCT ON (requirement_id) doc
		 FROM compliance_scores
		 ORDER BY requirement_id, computed_at DESC, seq DESC`)
	if err != nil {
		return nil, &models.TransientError{Op: "load scores", Err: err}
	}
	defer rows.Close()

	latest := make(map[string]*models.RequirementScore)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var score models.RequirementScore
		if err := json.Unmarshal(doc, &score); err != nil {
			return nil, fmt.Errorf("failed to unmarshal score: %w", err)
		}
		latest[score.RequirementID] = &score
	}
	return latest, rows.Err()
}

func (p *Postgres) OpenGaps(ctx context.Context) ([]*models.ComplianceGap, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT DISTINCT ON (g.gap_id) g.doc
		 FROM compliance_gaps g
		 WHERE NOT EXISTS (SELECT 1 FROM gap_closures c WHERE c.gap_id = g.gap_id)
		 ORDER BY g.gap_id, g.created_at DESC, g.seq DESC`)
	if err != nil {
		return nil, &models.TransientError{Op: "load open gaps", Err: err}
	}
	defer rows.Close()

	var gaps []*models.ComplianceGap
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var gap models.ComplianceGap
		if err := json.Unmarshal(doc, &gap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal gap: %w", err)
		}
		gaps = append(gaps, &gap)
	}
	return gaps, rows.Err()
}

func (p *Postgres) CloseGap(ctx context.Context, gapID string, closedAt time.Time) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO gap_closures (gap_id, closed_at) VALUES ($1, $2)`,
		gapID, closedAt)
	if err != nil {
		return &models.TransientError{Op: "close gap", Err: err}
	}
	return nil
}

func (p *Postgres) RecentChanges(ctx context.Context, since time.Time) ([]*models.RegulatoryChange, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT doc FROM regulatory_changes WHERE detected_at >= $1 ORDER BY detected_at DESC`,
		since)
	if err != nil {
		return nil, &models.TransientError{Op: "load changes", Err: err}
	}
	defer rows.Close()

	var changes []*models.RegulatoryChange
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var change models.RegulatoryChange
		if err := json.Unmarshal(doc, &change); err != nil {
			return nil, fmt.Errorf("failed to unmarshal change: %w", err)
		}
		changes = append(changes, &change)
	}
	return changes, rows.Err()
}

func (p *Postgres) LatestReport(ctx context.Context) (*models.MonitoringCycleReport, error) {
	var doc []byte
	err := p.pool.QueryRow(ctx,
		`SELECT doc FROM cycle_reports ORDER BY seq DESC LIMIT 1`).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, &models.TransientError{Op: "load latest report", Err: err}
	}

	var report models.MonitoringCycleReport
	if err := json.Unmarshal(doc, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}

func (p *Postgres) Close(ctx context.Context) error {
	p.pool.Close()
	return nil
}
