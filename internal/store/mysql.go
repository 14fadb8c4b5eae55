package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/iraqaf/assurance/internal/models"
)

// MySQL mirrors the Postgres layout on MySQL 8+. The latest-per-ID reads
// use window functions instead of DISTINCT ON.
type MySQL struct {
	db *sql.DB
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS compliance_scores (
		seq BIGINT AUTO_INCREMENT PRIMARY KEY,
		requirement_id VARCHAR(255) NOT NULL,
		computed_at DATETIME(6) NOT NULL,
		doc JSON NOT NULL,
		INDEX idx_scores_req (requirement_id, computed_at))`,
	`CREATE TABLE IF NOT EXISTS compliance_gaps (
		seq BIGINT AUTO_INCREMENT PRIMARY KEY,
		gap_id VARCHAR(255) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		doc JSON NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS gap_closures (
		seq BIGINT AUTO_INCREMENT PRIMARY KEY,
		gap_id VARCHAR(255) NOT NULL,
		closed_at DATETIME(6) NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS regulatory_changes (
		seq BIGINT AUTO_INCREMENT PRIMARY KEY,
		change_id VARCHAR(255) NOT NULL,
		detected_at DATETIME(6) NOT NULL,
		doc JSON NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS drift_records (
		seq BIGINT AUTO_INCREMENT PRIMARY KEY,
		change_id VARCHAR(255) NOT NULL,
		doc JSON NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		seq BIGINT AUTO_INCREMENT PRIMARY KEY,
		notification_id VARCHAR(255) NOT NULL,
		doc JSON NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS cycle_reports (
		seq BIGINT AUTO_INCREMENT PRIMARY KEY,
		cycle_id VARCHAR(255) NOT NULL,
		completed_at DATETIME(6) NOT NULL,
		doc JSON NOT NULL)`,
}

// NewMySQL connects, verifies the connection and ensures the schema.
func NewMySQL(ctx context.Context, dsn string) (*MySQL, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping mysql: %w", err)
	}

	for _, stmt := range mysqlSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ensure schema: %w", err)
		}
	}

	return &MySQL{db: db}, nil
}

func (m *MySQL) insert(ctx context.Context, op, query string, args ...any) error {
	if _, err := m.db.ExecContext(ctx, query, args...); err != nil {
		return &models.TransientError{Op: op, Err: err}
	}
	return nil
}

func (m *MySQL) SaveScore(ctx context.Context, score *models.RequirementScore) error {
	doc, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("failed to marshal score: %w", err)
	}
	return m.insert(ctx, "persist score",
		`INSERT INTO compliance_scores (requirement_id, computed_at, doc) VALUES (?, ?, ?)`,
		score.RequirementID, score.ComputedAt, doc)
}

func (m *MySQL) SaveGap(ctx context.Context, gap *models.ComplianceGap) error {
	doc, err := json.Marshal(gap)
	if err != nil {
		return fmt.Errorf("failed to marshal gap: %w", err)
	}
	return m.insert(ctx, "persist gap",
		`INSERT INTO compliance_gaps (gap_id, created_at, doc) VALUES (?, ?, ?)`,
		gap.GapID, gap.CreatedAt, doc)
}

func (m *MySQL) SaveChange(ctx context.Context, change *models.RegulatoryChange) error {
	doc, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal change: %w", err)
	}
	return m.insert(ctx, "persist change",
		`INSERT INTO regulatory_changes (change_id, detected_at, doc) VALUES (?, ?, ?)`,
		change.ChangeID, change.DetectedAt, doc)
}

func (m *MySQL) SaveDrift(ctx context.Context, drift *models.ComplianceDriftRecord) error {
	doc, err := json.Marshal(drift)
	if err != nil {
		return fmt.Errorf("failed to marshal drift record: %w", err)
	}
	return m.insert(ctx, "persist drift",
		`INSERT INTO drift_records (change_id, doc) VALUES (?, ?)`,
		drift.ChangeID, doc)
}

func (m *MySQL) SaveNotification(ctx context.Context, n *models.Notification) error {
	doc, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	return m.insert(ctx, "persist notification",
		`INSERT INTO notifications (notification_id, doc) VALUES (?, ?)`,
		n.NotificationID, doc)
}

func (m *MySQL) SaveReport(ctx context.Context, report *models.MonitoringCycleReport) error {
	doc, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return m.insert(ctx, "persist report",
		`INSERT INTO cycle_reports (cycle_id, completed_at, doc) VALUES (?, ?, ?)`,
		report.CycleID, report.CompletedAt, doc)
}

func (m *MySQL) LatestScores(ctx context.Context) (map[string]*models.RequirementScore, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT doc FROM (
			SELECT doc, ROW_NUMBER() OVER (
				PARTITION BY requirement_id ORDER BY computed_at DESC, seq DESC) AS rn
			FROM compliance_scores) ranked
		 WHERE rn = 1`)
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

func (m *MySQL) OpenGaps(ctx context.Context) ([]*models.ComplianceGap, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT doc FROM (
			SELECT g.doc, g.gap_id, ROW_NUMBER() OVER (
				PARTITION BY g.gap_id ORDER BY g.created_at DESC, g.seq DESC) AS rn
			FROM compliance_gaps g) ranked
		 WHERE rn = 1
		   AND NOT EXISTS (SELECT 1 FROM gap_closures c WHERE c.gap_id = ranked.gap_id)`)
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

func (m *MySQL) CloseGap(ctx context.Context, gapID string, closedAt time.Time) error {
	return m.insert(ctx, "close gap",
		`INSERT INTO gap_closures (gap_id, closed_at) VALUES (?, ?)`,
		gapID, closedAt)
}

func (m *MySQL) RecentChanges(ctx context.Context, since time.Time) ([]*models.RegulatoryChange, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT doc FROM regulatory_changes WHERE detected_at >= ? ORDER BY detected_at DESC`,
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

func (m *MySQL) LatestReport(ctx context.Context) (*models.MonitoringCycleReport, error) {
	var doc []byte
	err := m.db.QueryRowContext(ctx,
		`SELECT doc FROM cycle_reports ORDER BY seq DESC LIMIT 1`).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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

func (m *MySQL) Close(ctx context.Context) error {
	return m.db.Close()
}
