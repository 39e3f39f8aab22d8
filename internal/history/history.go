// Package history records analysis runs in a SQLite database under the
// project's .codedepth directory, so depth regressions can be spotted
// across runs.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"codedepth/internal/logging"
)

// Run is one recorded analysis.
type Run struct {
	ID          string
	StartedAt   time.Time
	ProjectRoot string
	Files       int
	Edges       int
	Roots       int
	Problems    int
	ProblemKeys []string
}

// Store is the run-history database
type Store struct {
	conn   *sql.DB
	logger *logging.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	started_at   TEXT NOT NULL,
	project_root TEXT NOT NULL,
	files        INTEGER NOT NULL,
	edges        INTEGER NOT NULL,
	roots        INTEGER NOT NULL,
	problems     INTEGER NOT NULL,
	problem_keys TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// Open opens or creates the history database at
// <projectRoot>/.codedepth/history.db.
func Open(projectRoot string, logger *logging.Logger) (*Store, error) {
	dir := filepath.Join(projectRoot, ".codedepth")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create .codedepth directory: %w", err)
	}

	dbPath := filepath.Join(dir, "history.db")

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Debug("history database ready", map[string]interface{}{
		"path": dbPath,
	})

	return &Store{conn: conn, logger: logger}, nil
}

// Record inserts one run. A missing ID or start time is filled in.
func (s *Store) Record(run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	keys, err := json.Marshal(run.ProblemKeys)
	if err != nil {
		return Run{}, fmt.Errorf("failed to encode problem keys: %w", err)
	}

	_, err = s.conn.Exec(
		`INSERT INTO runs (id, started_at, project_root, files, edges, roots, problems, problem_keys)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.Format(time.RFC3339Nano),
		run.ProjectRoot,
		run.Files,
		run.Edges,
		run.Roots,
		run.Problems,
		string(keys),
	)
	if err != nil {
		return Run{}, fmt.Errorf("failed to record run: %w", err)
	}

	s.logger.Info("run recorded", map[string]interface{}{
		"run_id":   run.ID,
		"problems": run.Problems,
	})

	return run, nil
}

// Recent returns the latest n runs, newest first.
func (s *Store) Recent(n int) ([]Run, error) {
	rows, err := s.conn.Query(
		`SELECT id, started_at, project_root, files, edges, roots, problems, problem_keys
		 FROM runs ORDER BY started_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var startedAt, keys string
		if err := rows.Scan(&run.ID, &startedAt, &run.ProjectRoot,
			&run.Files, &run.Edges, &run.Roots, &run.Problems, &keys); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse run timestamp: %w", err)
		}
		if err := json.Unmarshal([]byte(keys), &run.ProblemKeys); err != nil {
			return nil, fmt.Errorf("failed to decode problem keys: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
