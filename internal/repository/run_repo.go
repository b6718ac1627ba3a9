package repository

import (
	"context"
	"errors"

	"github.com/timmy/stash/internal/domain"
	"gorm.io/gorm"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// RunRepository persists harvest runs and their job outcomes.
type RunRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// StartRun inserts a new run row.
func (r *RunRepository) StartRun(ctx context.Context, run *domain.HarvestRun) error {
	return r.db.WithContext(ctx).Omit("Jobs").Create(run).Error
}

// RecordJob inserts one job outcome.
func (r *RunRepository) RecordJob(ctx context.Context, job *domain.HarvestJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// FinishRun stores the final counters and status of run.
func (r *RunRepository) FinishRun(ctx context.Context, run *domain.HarvestRun) error {
	return r.db.WithContext(ctx).Model(&domain.HarvestRun{}).
		Where("id = ?", run.ID).
		Updates(map[string]interface{}{
			"status":         run.Status,
			"succeeded_jobs": run.SucceededJobs,
			"failed_jobs":    run.FailedJobs,
			"completed_at":   run.CompletedAt,
		}).Error
}

// ListRuns returns runs newest first, optionally filtered by status.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - status: run status filter; empty returns all runs.
//   - limit: maximum rows to return.
//   - offset: rows to skip.
//
// Returns:
//   - []domain.HarvestRun: matching runs without their jobs.
//   - int64: total number of matching runs.
//   - error: non-nil if the query fails.
func (r *RunRepository) ListRuns(ctx context.Context, status domain.RunStatus, limit, offset int) ([]domain.HarvestRun, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.HarvestRun{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var runs []domain.HarvestRun
	err := query.Order("started_at DESC").Limit(limit).Offset(offset).Find(&runs).Error
	return runs, total, err
}

// GetRun returns one run with its jobs in execution order.
func (r *RunRepository) GetRun(ctx context.Context, id string) (*domain.HarvestRun, error) {
	var run domain.HarvestRun
	err := r.db.WithContext(ctx).
		Preload("Jobs", func(db *gorm.DB) *gorm.DB { return db.Order("job_index ASC") }).
		Where("id = ?", id).
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}
