// Package history keeps a SQLite ledger of pipeline runs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nadzzz/narrator/internal/config"
	_ "modernc.org/sqlite"
)

// Run is one recorded pipeline run.
type Run struct {
	ID              int64     `json:"id"`
	RequestID       string    `json:"request_id"`
	FileName        string    `json:"file_name"`
	Kind            string    `json:"kind"`
	Engine          string    `json:"engine"`
	Rewrite         bool      `json:"rewrite"`
	Outcome         string    `json:"outcome"` // "success" or an error kind
	Stage           string    `json:"stage"`   // last stage reached
	Error           string    `json:"error,omitempty"`
	WordCount       int       `json:"word_count"`
	RewriteChunks   int       `json:"rewrite_chunks"`
	SynthesisChunks int       `json:"synthesis_chunks"`
	AudioBytes      int64     `json:"audio_bytes"`
	ProcessingMS    int64     `json:"processing_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

// Store wraps the SQLite run ledger. A Store opened with history disabled
// accepts writes and returns no rows.
type Store struct {
	db      *sql.DB
	maxRuns int
	log     *slog.Logger
	clock   func() time.Time
}

// Open initializes the store according to config.
func Open(ctx context.Context, cfg config.HistoryConfig, log *slog.Logger) (*Store, error) {
	if !cfg.Enabled {
		return &Store{log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, maxRuns: cfg.MaxRuns, log: log, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    request_id TEXT NOT NULL,
    file_name TEXT,
    kind TEXT,
    engine TEXT,
    rewrite INTEGER NOT NULL,
    outcome TEXT NOT NULL,
    stage TEXT,
    error TEXT,
    word_count INTEGER,
    rewrite_chunks INTEGER,
    synthesis_chunks INTEGER,
    audio_bytes INTEGER,
    processing_ms INTEGER,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Enabled reports whether runs are persisted.
func (s *Store) Enabled() bool { return s != nil && s.db != nil }

// Close releases underlying resources.
func (s *Store) Close() error {
	if !s.Enabled() {
		return nil
	}
	return s.db.Close()
}

// Record appends a run and prunes the oldest rows beyond the configured cap.
func (s *Store) Record(ctx context.Context, r Run) error {
	if !s.Enabled() {
		return nil
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.clock()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs(request_id, file_name, kind, engine, rewrite, outcome, stage, error,
		   word_count, rewrite_chunks, synthesis_chunks, audio_bytes, processing_ms, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RequestID, r.FileName, r.Kind, r.Engine, r.Rewrite, r.Outcome, r.Stage, r.Error,
		r.WordCount, r.RewriteChunks, r.SynthesisChunks, r.AudioBytes, r.ProcessingMS,
		r.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if s.maxRuns > 0 {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM runs WHERE id IN (SELECT id FROM runs ORDER BY id DESC LIMIT -1 OFFSET ?)`,
			s.maxRuns); err != nil {
			s.log.Warn("history prune failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

// List returns up to limit runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if !s.Enabled() {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request_id, file_name, kind, engine, rewrite, outcome, stage, error,
		   word_count, rewrite_chunks, synthesis_chunks, audio_bytes, processing_ms, created_at
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var created string
		if err := rows.Scan(&r.ID, &r.RequestID, &r.FileName, &r.Kind, &r.Engine, &r.Rewrite, &r.Outcome, &r.Stage, &r.Error,
			&r.WordCount, &r.RewriteChunks, &r.SynthesisChunks, &r.AudioBytes, &r.ProcessingMS, &created); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			r.CreatedAt = ts
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
