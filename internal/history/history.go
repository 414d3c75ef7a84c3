// Package history keeps a small sqlite journal of captures and recordings
// so past artifacts can be listed from the command line.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/example/deskcap/internal/artifact"
)

// KindRecording is the kind stored for screencasts.
const KindRecording = "recording"

var userDataDir = func() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share"), nil
}

// DefaultPath returns $XDG_DATA_HOME/deskcap/history.db.
func DefaultPath() (string, error) {
	dir, err := userDataDir()
	if err != nil {
		return "", fmt.Errorf("history dir: %w", err)
	}
	return filepath.Join(dir, "deskcap", "history.db"), nil
}

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	path        TEXT NOT NULL,
	created_at  INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	deleted_at  INTEGER
);
CREATE INDEX IF NOT EXISTS entries_created ON entries(created_at);
`

// Entry is one row of the journal.
type Entry struct {
	ID        uuid.UUID
	Kind      string
	Path      string
	CreatedAt time.Time
	Duration  time.Duration
	DeletedAt time.Time
}

// Deleted reports whether the file was removed through deskcap.
func (e Entry) Deleted() bool { return !e.DeletedAt.IsZero() }

// Store is the sqlite backed journal.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens or creates the journal at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("history pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// Add inserts e, assigning an id when it has none.
func (s *Store) Add(ctx context.Context, e Entry) (uuid.UUID, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (id, kind, path, created_at, duration_ms) VALUES (?, ?, ?, ?, ?)`,
		e.ID.String(), e.Kind, e.Path, e.CreatedAt.UnixMilli(), e.Duration.Milliseconds())
	if err != nil {
		return uuid.Nil, fmt.Errorf("record %s: %w", e.Path, err)
	}
	return e.ID, nil
}

// MarkDeleted stamps the entry with id as deleted at t.
func (s *Store) MarkDeleted(ctx context.Context, id uuid.UUID, t time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE entries SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		t.UnixMilli(), id.String())
	if err != nil {
		return fmt.Errorf("mark %s deleted: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mark %s deleted: %w", id, sql.ErrNoRows)
	}
	return nil
}

// List returns up to limit entries, newest first. A limit of zero or less
// returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, path, created_at, duration_ms, deleted_at FROM entries ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var (
			id       string
			e        Entry
			created  int64
			duration int64
			deleted  sql.NullInt64
		)
		if err := rows.Scan(&id, &e.Kind, &e.Path, &created, &duration, &deleted); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("history id %q: %w", id, err)
		}
		e.CreatedAt = time.UnixMilli(created)
		e.Duration = time.Duration(duration) * time.Millisecond
		if deleted.Valid {
			e.DeletedAt = time.UnixMilli(deleted.Int64)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecordCapture journals a finished capture. Demo artifacts are skipped.
func (s *Store) RecordCapture(a *artifact.Artifact) {
	if a.Demo {
		return
	}
	_, err := s.Add(context.Background(), Entry{ID: a.ID, Kind: a.Kind.Tag(), Path: a.Path, CreatedAt: a.CreatedAt})
	if err != nil {
		s.logger.Warn("history write failed", "err", err)
	}
}

// RecordRecording journals a finished screencast.
func (s *Store) RecordRecording(path string, started, stopped time.Time) {
	e := Entry{Kind: KindRecording, Path: path, CreatedAt: started}
	if !started.IsZero() && stopped.After(started) {
		e.Duration = stopped.Sub(started)
	}
	if started.IsZero() {
		e.CreatedAt = stopped
	}
	if _, err := s.Add(context.Background(), e); err != nil {
		s.logger.Warn("history write failed", "err", err)
	}
}

// RecordDelete marks a capture deleted from its notification.
func (s *Store) RecordDelete(a *artifact.Artifact) {
	err := s.MarkDeleted(context.Background(), a.ID, time.Now())
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("history delete failed", "err", err)
	}
}
