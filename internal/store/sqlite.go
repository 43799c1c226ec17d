package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/cubepio/internal/events"
	ferrors "git.home.luguber.info/inful/cubepio/internal/foundation/errors"
)

// Record is one stored project event.
type Record struct {
	ID        int64
	ProjectID string
	Location  string
	Kind      string
	At        time.Time
	Payload   json.RawMessage
}

// Store is a SQLite backed project list and event log.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens or creates the database at path. Use ":memory:" in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryStore, "open sqlite database").
			WithContext("path", path).
			Build()
	}
	// A single connection keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, ferrors.WrapError(err, ferrors.CategoryStore, "initialize schema").Build()
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		position INTEGER PRIMARY KEY,
		location TEXT NOT NULL UNIQUE
	);
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id TEXT NOT NULL,
		location TEXT NOT NULL,
		kind TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		payload BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_location ON events(location);
	CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveProjects replaces the stored project list.
func (s *Store) SaveProjects(ctx context.Context, locations []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryStore, "begin transaction").Build()
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM projects"); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryStore, "clear projects").Build()
	}
	for i, loc := range locations {
		if _, err := tx.ExecContext(ctx, "INSERT INTO projects (position, location) VALUES (?, ?)", i, loc); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryStore, "insert project").
				WithContext("location", loc).
				Build()
		}
	}
	if err := tx.Commit(); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryStore, "commit projects").Build()
	}
	return nil
}

// LoadProjects returns the stored project list in order.
func (s *Store) LoadProjects(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT location FROM projects ORDER BY position")
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryStore, "query projects").Build()
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var loc string
		if err := rows.Scan(&loc); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryStore, "scan project").Build()
		}
		out = append(out, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryStore, "iterate projects").Build()
	}
	return out, nil
}

// Append stores evt for the project at location.
func (s *Store) Append(ctx context.Context, location string, evt events.ProjectEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryStore, "marshal event").
			WithContext("kind", evt.Kind()).
			Build()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO events (project_id, location, kind, timestamp, payload) VALUES (?, ?, ?, ?, ?)",
		evt.ProjectID().String(), location, evt.Kind(), time.Now().UnixMilli(), payload,
	)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryStore, "insert event").Build()
	}
	return nil
}

// History returns the newest limit events recorded for location, oldest
// first. limit <= 0 returns all of them.
func (s *Store) History(ctx context.Context, location string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, location, kind, timestamp, payload FROM (
			SELECT * FROM events WHERE location = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id`,
		location, limit,
	)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryStore, "query events").Build()
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var ms int64
		var payload []byte
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.Location, &r.Kind, &ms, &payload); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryStore, "scan event").Build()
		}
		r.At = time.UnixMilli(ms)
		r.Payload = payload
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryStore, "iterate events").Build()
	}
	return out, nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
