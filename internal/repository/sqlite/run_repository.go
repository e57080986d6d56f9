package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"yt_multi_account/internal/domain"
)

// RunRepository is a SQLite implementation of domain.RunRepository.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository backed by SQLite.
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Save inserts a run together with all of its results.
func (r *RunRepository) Save(run *domain.Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin run transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO runs (id, kind, started_at, finished_at) VALUES (?, ?, ?, ?)`,
		run.ID, string(run.Kind), run.StartedAt.UTC(), run.FinishedAt.UTC()); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO run_results
		(run_id, position, account, kind, target, succeeded, outcome, detail, attempts, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare run results: %w", err)
	}
	defer stmt.Close()

	for i, res := range run.Results {
		if _, err := stmt.Exec(run.ID, i, res.Account, string(res.Kind), res.Target, boolToInt(res.Succeeded),
			string(res.Outcome), res.Detail, res.Attempts, res.StartedAt.UTC(), res.FinishedAt.UTC()); err != nil {
			return fmt.Errorf("insert run result %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// GetByID returns a run with its results, or nil when absent.
func (r *RunRepository) GetByID(id string) (*domain.Run, error) {
	row := r.db.QueryRow(`SELECT id, kind, started_at, finished_at FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil || run == nil {
		return run, err
	}
	if err := r.loadResults(run); err != nil {
		return nil, err
	}
	return run, nil
}

// Recent returns up to limit runs, newest first.
func (r *RunRepository) Recent(limit int) ([]*domain.Run, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := r.db.Query(`SELECT id, kind, started_at, finished_at FROM runs
		ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}

	var runs []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Results are loaded after the cursor is closed; the pool holds one connection.
	for _, run := range runs {
		if err := r.loadResults(run); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (r *RunRepository) loadResults(run *domain.Run) error {
	rows, err := r.db.Query(`SELECT account, kind, target, succeeded, outcome, detail, attempts, started_at, finished_at
		FROM run_results WHERE run_id = ? ORDER BY position ASC`, run.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			res       domain.ActionResult
			succeeded int
			detail    sql.NullString
		)
		if err := rows.Scan(&res.Account, &res.Kind, &res.Target, &succeeded, &res.Outcome, &detail,
			&res.Attempts, &res.StartedAt, &res.FinishedAt); err != nil {
			return err
		}
		res.Succeeded = succeeded != 0
		if detail.Valid {
			res.Detail = detail.String
		}
		run.Results = append(run.Results, res)
	}
	return rows.Err()
}

func scanRun(scanner interface {
	Scan(dest ...any) error
}) (*domain.Run, error) {
	var (
		run      domain.Run
		started  time.Time
		finished time.Time
	)
	if err := scanner.Scan(&run.ID, &run.Kind, &started, &finished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	run.StartedAt = started
	run.FinishedAt = finished
	return &run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
