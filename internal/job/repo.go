package job

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Repo is the row store. Every mutation is a single-record update, and every
// update that can race a concurrent tick is conditional on the expected
// prior state so the database decides the winner.
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// CreateJobWithRows persists the job and all its rows in one transaction; a
// row is never visible without its job.
func (r *Repo) CreateJobWithRows(ctx context.Context, j *Job, rows []Row) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(j).Error; err != nil {
			return err
		}
		return tx.CreateInBatches(rows, 100).Error
	})
}

func (r *Repo) GetJobByID(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *Repo) ListRecentJobs(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var jobs []Job
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *Repo) ListActiveJobs(ctx context.Context) ([]Job, error) {
	var jobs []Job
	if err := r.db.WithContext(ctx).
		Where("status IN ?", []Status{JobPending, JobRunning, JobPartial}).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// ListPendingRows returns up to limit pending rows belonging to the given
// jobs, FIFO by primary key (creation order). No cross-job priority.
func (r *Repo) ListPendingRows(ctx context.Context, jobIDs []string, limit int) ([]Row, error) {
	var rows []Row
	if err := r.db.WithContext(ctx).
		Where("job_id IN ? AND status = ?", jobIDs, RowPending).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repo) ListRowsByJob(ctx context.Context, jobID string) ([]Row, error) {
	var rows []Row
	if err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("ordinal ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ClaimRow transitions a row pending -> claimed. Returns false when another
// tick already claimed or settled it.
func (r *Repo) ClaimRow(ctx context.Context, rowID uint64, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Row{}).
		Where("id = ? AND status = ?", rowID, RowPending).
		Updates(map[string]any{
			"status":     RowClaimed,
			"claimed_at": now,
		})
	return res.RowsAffected == 1, res.Error
}

// ReleaseClaim reverts claimed -> pending without recording an outcome. Used
// for the skipped case and for stale claims.
func (r *Repo) ReleaseClaim(ctx context.Context, rowID uint64) error {
	return r.db.WithContext(ctx).Model(&Row{}).
		Where("id = ? AND status = ?", rowID, RowClaimed).
		Updates(map[string]any{
			"status":     RowPending,
			"claimed_at": nil,
		}).Error
}

// ReleaseStaleClaims returns rows claimed before cutoff to pending so an
// interrupted tick cannot strand them.
func (r *Repo) ReleaseStaleClaims(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&Row{}).
		Where("status = ? AND claimed_at < ?", RowClaimed, cutoff).
		Updates(map[string]any{
			"status":     RowPending,
			"claimed_at": nil,
		})
	return res.RowsAffected, res.Error
}

// MarkRowSucceeded settles a claimed row as success. Conditional on claimed:
// a row never settles twice.
func (r *Repo) MarkRowSucceeded(ctx context.Context, rowID uint64, postID int64, mediaID *int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Row{}).
		Where("id = ? AND status = ?", rowID, RowClaimed).
		Updates(map[string]any{
			"status":   RowSuccess,
			"post_id":  postID,
			"media_id": mediaID,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *Repo) MarkRowFailed(ctx context.Context, rowID uint64, code, message string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Row{}).
		Where("id = ? AND status = ?", rowID, RowClaimed).
		Updates(map[string]any{
			"status":        RowFailed,
			"error_code":    code,
			"error_message": message,
		})
	return res.RowsAffected == 1, res.Error
}

// IncrementProcessed bumps processed_rows by one as a single SQL expression;
// the guard keeps the counter at or below total_rows even if callers race.
func (r *Repo) IncrementProcessed(ctx context.Context, jobID string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND processed_rows < total_rows", jobID).
		Update("processed_rows", gorm.Expr("processed_rows + 1")).Error
}

// MarkJobsRunning moves pending jobs to running. Idempotent: jobs already
// running or partial are untouched.
func (r *Repo) MarkJobsRunning(ctx context.Context, jobIDs []string) error {
	if len(jobIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id IN ? AND status = ?", jobIDs, JobPending).
		Update("status", JobRunning).Error
}

// SetJobStatus applies a reconciliation transition, conditional on the
// status the decision was derived from.
func (r *Repo) SetJobStatus(ctx context.Context, jobID string, from, to Status) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", jobID, from).
		Update("status", to)
	return res.RowsAffected == 1, res.Error
}

func (r *Repo) CountRowsByStatus(ctx context.Context, jobID string, statuses ...RowStatus) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Row{}).
		Where("job_id = ? AND status IN ?", jobID, statuses).
		Count(&n).Error
	return n, err
}

// DeleteJob removes a job and cascades to its rows.
func (r *Repo) DeleteJob(ctx context.Context, jobID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&Row{}, "job_id = ?", jobID).Error; err != nil {
			return err
		}
		return tx.Delete(&Job{}, "id = ?", jobID).Error
	})
}
