package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/qiniu/cloudmonitor/internal/alerting/model"
)

// Why an incident row was closed.
const (
	EndResolved  = "resolved"
	EndEscalated = "escalated"
)

// Schema creates the incident history table.
const Schema = `
CREATE TABLE IF NOT EXISTS alert_incidents (
	id               TEXT PRIMARY KEY,
	target           TEXT NOT NULL,
	severity         TEXT NOT NULL,
	opened_at        TIMESTAMPTZ NOT NULL,
	last_notified_at TIMESTAMPTZ NOT NULL,
	resolved_at      TIMESTAMPTZ,
	end_reason       TEXT,
	open_for         INTERVAL,
	notify_count     INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS alert_incidents_target_opened_idx ON alert_incidents (target, opened_at DESC);
`

var ErrIncidentNotFound = errors.New("incident not found")

// Incident is one alert's audit row.
type Incident struct {
	ID             string         `json:"id"`
	Target         string         `json:"target"`
	Severity       model.Severity `json:"severity"`
	OpenedAt       time.Time      `json:"opened_at"`
	LastNotifiedAt time.Time      `json:"last_notified_at"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
	EndReason      string         `json:"end_reason,omitempty"`
	OpenFor        time.Duration  `json:"open_for"`
	NotifyCount    int            `json:"notify_count"`
}

// IncidentStore is the alert_incidents DAO. History is write-only from the
// monitoring loop's point of view.
type IncidentStore struct {
	DB *Database
}

func NewIncidentStore(db *Database) *IncidentStore { return &IncidentStore{DB: db} }

// PrepareIncidentStore ensures the schema on db. On failure db is closed and
// the caller should continue without incident history.
func PrepareIncidentStore(ctx context.Context, db *Database) (*IncidentStore, error) {
	s := NewIncidentStore(db)
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *IncidentStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create alert_incidents: %w", err)
	}
	return nil
}

// Open records a newly opened or escalated alert.
func (s *IncidentStore) Open(ctx context.Context, target string, a model.Alert) error {
	const q = `INSERT INTO alert_incidents (id, target, severity, opened_at, last_notified_at, notify_count)
VALUES ($1, $2, $3, $4, $5, 1)
ON CONFLICT (id) DO NOTHING`
	if _, err := s.DB.ExecContext(ctx, q, a.ID, target, a.Severity.Name(), a.OpenedAt, a.LastNotifiedAt); err != nil {
		return fmt.Errorf("insert incident %s: %w", a.ID, err)
	}
	return nil
}

// Touch records one more notification for an open incident.
func (s *IncidentStore) Touch(ctx context.Context, id string, notifiedAt time.Time) error {
	const q = `UPDATE alert_incidents
SET last_notified_at = GREATEST(last_notified_at, $2), notify_count = notify_count + 1
WHERE id = $1 AND resolved_at IS NULL`
	if _, err := s.DB.ExecContext(ctx, q, id, notifiedAt); err != nil {
		return fmt.Errorf("touch incident %s: %w", id, err)
	}
	return nil
}

// Close ends an incident. openedAt is used to compute open_for.
func (s *IncidentStore) Close(ctx context.Context, id string, openedAt, endedAt time.Time, reason string) error {
	const q = `UPDATE alert_incidents
SET resolved_at = $2, end_reason = $3, open_for = $4
WHERE id = $1 AND resolved_at IS NULL`
	openFor := durationToPgInterval(endedAt.Sub(openedAt))
	if _, err := s.DB.ExecContext(ctx, q, id, endedAt, reason, openFor); err != nil {
		return fmt.Errorf("close incident %s: %w", id, err)
	}
	return nil
}

const incidentColumns = `id, target, severity, opened_at, last_notified_at, resolved_at, end_reason, open_for::text, notify_count`

// Get returns one incident by alert id.
func (s *IncidentStore) Get(ctx context.Context, id string) (*Incident, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+incidentColumns+` FROM alert_incidents WHERE id = $1`, id)
	it, err := scanIncident(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIncidentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// List returns the newest incidents for target.
func (s *IncidentStore) List(ctx context.Context, target string, limit int) ([]Incident, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT ` + incidentColumns + `
FROM alert_incidents
WHERE target = $1
ORDER BY opened_at DESC
LIMIT $2`
	rows, err := s.DB.QueryContext(ctx, q, target, limit)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	out := make([]Incident, 0, limit)
	for rows.Next() {
		it, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIncident(r rowScanner) (Incident, error) {
	var (
		it         Incident
		severity   string
		resolvedAt sql.NullTime
		endReason  sql.NullString
		openFor    sql.NullString
	)
	if err := r.Scan(&it.ID, &it.Target, &severity, &it.OpenedAt, &it.LastNotifiedAt, &resolvedAt, &endReason, &openFor, &it.NotifyCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Incident{}, err
		}
		return Incident{}, fmt.Errorf("scan incident: %w", err)
	}
	var err error
	if it.Severity, err = model.ParseSeverity(severity); err != nil {
		return Incident{}, fmt.Errorf("scan incident %s: %w", it.ID, err)
	}
	if resolvedAt.Valid {
		ts := resolvedAt.Time
		it.ResolvedAt = &ts
	}
	it.EndReason = endReason.String
	if openFor.Valid {
		var iv pgtype.Interval
		if err := iv.Scan(openFor.String); err != nil {
			return Incident{}, fmt.Errorf("scan open_for: %w", err)
		}
		if it.OpenFor, err = pgIntervalToDuration(iv); err != nil {
			return Incident{}, fmt.Errorf("scan open_for: %w", err)
		}
	}
	return it, nil
}
