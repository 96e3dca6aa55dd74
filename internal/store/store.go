// Package store persists run records to SQLite so past runs can be inspected
// after the process exits.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gaiinsights/newswatch/internal/article"
	"github.com/gaiinsights/newswatch/internal/orchestrator"
)

// ErrNotFound is returned by Load when no run has the given id.
var ErrNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	state          TEXT NOT NULL,
	failure_reason TEXT NOT NULL DEFAULT '',
	queries        TEXT NOT NULL,
	articles       TEXT NOT NULL,
	ranked         TEXT NOT NULL,
	errors         TEXT NOT NULL,
	export_path    TEXT NOT NULL DEFAULT '',
	started_at     TEXT NOT NULL,
	completed_at   TEXT NOT NULL
);
`

// Store is a SQLite-backed run archive. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the run database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init run store schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Save upserts one run record keyed by its id.
func (s *Store) Save(ctx context.Context, rc *orchestrator.RunContext) error {
	queries, err := json.Marshal(rc.Queries)
	if err != nil {
		return fmt.Errorf("marshal queries: %w", err)
	}
	articles, err := json.Marshal(rc.Articles)
	if err != nil {
		return fmt.Errorf("marshal articles: %w", err)
	}
	ranked, err := json.Marshal(rc.Ranked)
	if err != nil {
		return fmt.Errorf("marshal ranked: %w", err)
	}
	itemErrs, err := json.Marshal(rc.Errors)
	if err != nil {
		return fmt.Errorf("marshal errors: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, state, failure_reason, queries, articles, ranked, errors, export_path, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			failure_reason = excluded.failure_reason,
			queries = excluded.queries,
			articles = excluded.articles,
			ranked = excluded.ranked,
			errors = excluded.errors,
			export_path = excluded.export_path,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at`,
		rc.ID, rc.State, rc.FailureReason,
		string(queries), string(articles), string(ranked), string(itemErrs),
		rc.ExportPath,
		rc.StartedAt.UTC().Format(time.RFC3339Nano),
		rc.CompletedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", rc.ID, err)
	}
	return nil
}

// Load reads one run record by id. Returns ErrNotFound when absent.
func (s *Store) Load(ctx context.Context, runID string) (*orchestrator.RunContext, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, state, failure_reason, queries, articles, ranked, errors, export_path, started_at, completed_at
		FROM runs WHERE id = ?`, runID)

	var rc orchestrator.RunContext
	var queries, articles, ranked, itemErrs, startedAt, completedAt string
	err := row.Scan(&rc.ID, &rc.State, &rc.FailureReason,
		&queries, &articles, &ranked, &itemErrs,
		&rc.ExportPath, &startedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	if err := json.Unmarshal([]byte(queries), &rc.Queries); err != nil {
		return nil, fmt.Errorf("decode queries: %w", err)
	}
	if err := json.Unmarshal([]byte(articles), &rc.Articles); err != nil {
		return nil, fmt.Errorf("decode articles: %w", err)
	}
	if err := json.Unmarshal([]byte(ranked), &rc.Ranked); err != nil {
		return nil, fmt.Errorf("decode ranked: %w", err)
	}
	if err := json.Unmarshal([]byte(itemErrs), &rc.Errors); err != nil {
		return nil, fmt.Errorf("decode errors: %w", err)
	}
	if rc.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("decode started_at: %w", err)
	}
	if rc.CompletedAt, err = time.Parse(time.RFC3339Nano, completedAt); err != nil {
		return nil, fmt.Errorf("decode completed_at: %w", err)
	}
	return &rc, nil
}

// RunSummary is one row of List output.
type RunSummary struct {
	ID          string
	State       string
	Ranked      int
	StartedAt   time.Time
	CompletedAt time.Time
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, state, ranked, started_at, completed_at
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var ranked, startedAt, completedAt string
		if err := rows.Scan(&r.ID, &r.State, &ranked, &startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		var arts []article.Article
		if err := json.Unmarshal([]byte(ranked), &arts); err == nil {
			r.Ranked = len(arts)
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("decode started_at: %w", err)
		}
		if r.CompletedAt, err = time.Parse(time.RFC3339Nano, completedAt); err != nil {
			return nil, fmt.Errorf("decode completed_at: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
