// Package runlog persists training runs and their per-epoch metrics in a
// SQLite ledger.
package runlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

// ErrUnknownRun is returned for run IDs the ledger has not seen.
var ErrUnknownRun = errors.New("runlog: unknown run")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	label       TEXT NOT NULL,
	config      TEXT NOT NULL,
	status      TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER
);
CREATE TABLE IF NOT EXISTS epochs (
	run_id        TEXT NOT NULL REFERENCES runs(id),
	epoch         INTEGER NOT NULL,
	lr            REAL NOT NULL,
	train_loss    REAL NOT NULL,
	test_loss     REAL NOT NULL,
	test_accuracy REAL NOT NULL,
	duration_ns   INTEGER NOT NULL,
	PRIMARY KEY (run_id, epoch)
);`

// Run is a stored training run.
type Run struct {
	ID       string
	Label    string
	Config   string
	Status   string
	Started  time.Time
	Finished time.Time // zero while running
}

// Epoch is one epoch's metrics.
type Epoch struct {
	Epoch        int
	LR           float64
	TrainLoss    float64
	TestLoss     float64
	TestAccuracy float64
	Duration     time.Duration
}

// Ledger records runs. A Ledger opened with an empty path keeps nothing.
type Ledger struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the ledger at path. An empty path returns a no-op
// ledger.
func Open(path string) (*Ledger, error) {
	l := &Ledger{}
	if path == "" {
		return l, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	l.db = db
	return l, nil
}

// Enabled reports whether the ledger persists anything.
func (l *Ledger) Enabled() bool {
	return l.db != nil
}

// StartRun registers a new run and returns its ID. The no-op ledger still
// hands out IDs so callers can tag logs with them.
func (l *Ledger) StartRun(ctx context.Context, label, config string) (string, error) {
	id := uuid.NewString()
	if l.db == nil {
		return id, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, label, config, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, label, config, StatusRunning, time.Now().UnixNano())
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	return id, nil
}

// RecordEpoch stores e for runID, replacing an earlier record of the same
// epoch.
func (l *Ledger) RecordEpoch(ctx context.Context, runID string, e Epoch) error {
	if l.db == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkRun(ctx, runID); err != nil {
		return err
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO epochs (run_id, epoch, lr, train_loss, test_loss, test_accuracy, duration_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, e.Epoch, e.LR, e.TrainLoss, e.TestLoss, e.TestAccuracy, int64(e.Duration))
	if err != nil {
		return fmt.Errorf("failed to record epoch %d: %w", e.Epoch, err)
	}
	return nil
}

// FinishRun sets the final status of runID.
func (l *Ledger) FinishRun(ctx context.Context, runID, status string) error {
	if l.db == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`,
		status, time.Now().UnixNano(), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	return nil
}

// Run returns the stored run.
func (l *Ledger) Run(ctx context.Context, runID string) (Run, error) {
	if l.db == nil {
		return Run{}, fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var (
		r        Run
		started  int64
		finished sql.NullInt64
	)
	err := l.db.QueryRowContext(ctx,
		`SELECT id, label, config, status, started_at, finished_at FROM runs WHERE id = ?`, runID).
		Scan(&r.ID, &r.Label, &r.Config, &r.Status, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to load run: %w", err)
	}

	r.Started = time.Unix(0, started)
	if finished.Valid {
		r.Finished = time.Unix(0, finished.Int64)
	}
	return r, nil
}

// Epochs returns the recorded epochs of runID in order.
func (l *Ledger) Epochs(ctx context.Context, runID string) ([]Epoch, error) {
	if l.db == nil {
		return nil, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.QueryContext(ctx,
		`SELECT epoch, lr, train_loss, test_loss, test_accuracy, duration_ns
		 FROM epochs WHERE run_id = ? ORDER BY epoch`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query epochs: %w", err)
	}
	defer rows.Close()

	var epochs []Epoch
	for rows.Next() {
		var (
			e   Epoch
			dur int64
		)
		if err := rows.Scan(&e.Epoch, &e.LR, &e.TrainLoss, &e.TestLoss, &e.TestAccuracy, &dur); err != nil {
			return nil, fmt.Errorf("failed to scan epoch: %w", err)
		}
		e.Duration = time.Duration(dur)
		epochs = append(epochs, e)
	}
	return epochs, rows.Err()
}

// Close releases the database.
func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

func (l *Ledger) checkRun(ctx context.Context, runID string) error {
	var one int
	err := l.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	if err != nil {
		return fmt.Errorf("failed to look up run: %w", err)
	}
	return nil
}
