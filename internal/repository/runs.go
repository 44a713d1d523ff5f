package repository

import (
	"tradegate/internal/database"
	"tradegate/internal/models"
)

// RunRepository handles execution run history database operations.
type RunRepository struct {
	db *database.DB
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(db *database.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create stores one run summary and returns its ID.
func (r *RunRepository) Create(run *models.RunRecord) (int64, error) {
	result, err := r.db.Exec(`
		INSERT INTO runs (run_id, kind, dry_run, total, succeeded, failed, total_quantity, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.RunID, run.Kind, boolToInt(run.DryRun), run.Total, run.Succeeded, run.Failed, run.TotalQuantity, run.ElapsedMS)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ListRecent returns the most recent runs, newest first.
func (r *RunRepository) ListRecent(limit int) ([]*models.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`
		SELECT id, run_id, kind, dry_run, total, succeeded, failed, total_quantity, elapsed_ms, created_at
		FROM runs
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.RunRecord
	for rows.Next() {
		run := &models.RunRecord{}
		var dryRun int
		if err := rows.Scan(&run.ID, &run.RunID, &run.Kind, &dryRun, &run.Total, &run.Succeeded,
			&run.Failed, &run.TotalQuantity, &run.ElapsedMS, &run.CreatedAt); err != nil {
			return nil, err
		}
		run.DryRun = dryRun != 0
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
