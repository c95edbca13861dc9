// Package snapshot persists pre-delete copies of a scope's remote records to
// a local SQLite file, so an unrestorable sync failure still leaves a
// recoverable record of what the scope held.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/handyman-tn/leadsync/internal/model"
)

// Archive stores scope snapshots in SQLite.
type Archive struct {
	db *sql.DB
}

// Open opens (or creates) the archive at path and configures WAL mode.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "snapshot: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "snapshot: exec %s", pragma)
		}
	}
	a := &Archive{db: db}
	if err := a.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

const archiveMigration = `
CREATE TABLE IF NOT EXISTS scope_snapshots (
	id       TEXT PRIMARY KEY,
	run_id   TEXT NOT NULL,
	city     TEXT NOT NULL,
	service  TEXT NOT NULL,
	records  TEXT NOT NULL,
	count    INTEGER NOT NULL,
	taken_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_scope_snapshots_scope ON scope_snapshots(city, service, taken_at);
`

func (a *Archive) migrate(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, archiveMigration)
	return eris.Wrap(err, "snapshot: migrate")
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Save writes one snapshot for a scope.
func (a *Archive) Save(ctx context.Context, runID string, scope model.Scope, records []model.Business) error {
	payload, err := json.Marshal(records)
	if err != nil {
		return eris.Wrap(err, "snapshot: marshal records")
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT INTO scope_snapshots (id, run_id, city, service, records, count, taken_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), runID, scope.City, scope.Service, string(payload), len(records), time.Now().UTC(),
	)
	return eris.Wrapf(err, "snapshot: save %s", scope)
}

// Entry describes one archived snapshot without its payload.
type Entry struct {
	ID      string
	RunID   string
	Scope   model.Scope
	Count   int
	TakenAt time.Time
}

// ListByScope returns archived snapshots for a scope, newest first.
func (a *Archive) ListByScope(ctx context.Context, scope model.Scope) ([]Entry, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, run_id, count, taken_at FROM scope_snapshots
		 WHERE city = ? AND service = ? ORDER BY taken_at DESC`,
		scope.City, scope.Service,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "snapshot: list %s", scope)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e := Entry{Scope: scope}
		if err := rows.Scan(&e.ID, &e.RunID, &e.Count, &e.TakenAt); err != nil {
			return nil, eris.Wrap(err, "snapshot: scan entry")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "snapshot: iterate entries")
}

// Latest returns the most recent archived record set for a scope.
func (a *Archive) Latest(ctx context.Context, scope model.Scope) ([]model.Business, time.Time, error) {
	var payload string
	var takenAt time.Time
	err := a.db.QueryRowContext(ctx,
		`SELECT records, taken_at FROM scope_snapshots
		 WHERE city = ? AND service = ? ORDER BY taken_at DESC LIMIT 1`,
		scope.City, scope.Service,
	).Scan(&payload, &takenAt)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, eris.Errorf("snapshot: no snapshot for %s", scope)
	}
	if err != nil {
		return nil, time.Time{}, eris.Wrapf(err, "snapshot: latest %s", scope)
	}

	var records []model.Business
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		return nil, time.Time{}, eris.Wrap(err, "snapshot: unmarshal records")
	}
	return records, takenAt, nil
}
