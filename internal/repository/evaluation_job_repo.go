package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/designhub-api/internal/models"
)

// EvaluationJobRepository is the outbox store behind the evaluation dispatcher.
type EvaluationJobRepository interface {
	// ClaimDue marks up to limit due queued jobs as processing and returns them with their solution.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]models.EvaluationJob, error)
	// Complete finishes the job and moves its pending solution to reviewed.
	Complete(ctx context.Context, job models.EvaluationJob, solutionUpdates map[string]interface{}) error
	// Retry puts the job back into the queue for another attempt.
	Retry(ctx context.Context, job models.EvaluationJob, nextAttemptAt time.Time, lastError string) error
	// Bury dead-letters the job and fails its pending solution.
	Bury(ctx context.Context, job models.EvaluationJob, solutionUpdates map[string]interface{}) error
	// Discard marks the job done without touching a solution that left pending.
	Discard(ctx context.Context, jobID uint, reason string) error
	// ReleaseExpired returns processing jobs locked before cutoff to the queue.
	ReleaseExpired(ctx context.Context, cutoff time.Time) (int64, error)
	// Requeue resets the job of a failed solution and moves the solution back to pending.
	Requeue(ctx context.Context, solutionID uint, maxAttempts int, now time.Time) (models.TaskSolution, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
	GetBySolution(ctx context.Context, solutionID uint) (models.EvaluationJob, error)
}

// NewEvaluationJobRepository constructs the outbox repository.
func NewEvaluationJobRepository(db *gorm.DB) EvaluationJobRepository {
	return &evaluationJobRepository{db: db}
}

type evaluationJobRepository struct {
	db *gorm.DB
}

func (r *evaluationJobRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]models.EvaluationJob, error) {
	if limit <= 0 {
		limit = 16
	}

	var jobs []models.EvaluationJob
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Model(&models.EvaluationJob{}).
			Where("status = ? AND next_attempt_at <= ?", models.EvaluationJobQueued, now).
			Order("next_attempt_at ASC").
			Order("id ASC").
			Limit(limit)
		if tx.Dialector.Name() == "postgres" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		var ids []uint
		if err := query.Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		if err := tx.Model(&models.EvaluationJob{}).
			Where("id IN ? AND status = ?", ids, models.EvaluationJobQueued).
			Updates(map[string]interface{}{
				"status":    models.EvaluationJobProcessing,
				"attempts":  gorm.Expr("attempts + 1"),
				"locked_at": now,
			}).Error; err != nil {
			return err
		}

		return tx.Preload("Solution").
			Where("id IN ? AND status = ?", ids, models.EvaluationJobProcessing).
			Order("next_attempt_at ASC").
			Order("id ASC").
			Find(&jobs).Error
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *evaluationJobRepository) Complete(ctx context.Context, job models.EvaluationJob, solutionUpdates map[string]interface{}) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		solutionUpdates["status"] = models.SolutionStatusReviewed
		if err := transitionSolution(tx, job.SolutionID, models.SolutionStatusPending, solutionUpdates); err != nil {
			return err
		}
		return finishJob(tx, job.ID, models.EvaluationJobDone, "")
	})
}

func (r *evaluationJobRepository) Retry(ctx context.Context, job models.EvaluationJob, nextAttemptAt time.Time, lastError string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.EvaluationJob{}).
			Where("id = ? AND status = ?", job.ID, models.EvaluationJobProcessing).
			Updates(map[string]interface{}{
				"status":          models.EvaluationJobQueued,
				"next_attempt_at": nextAttemptAt,
				"locked_at":       nil,
				"last_error":      lastError,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&models.TaskSolution{}).
			Where("id = ? AND status = ?", job.SolutionID, models.SolutionStatusPending).
			Updates(map[string]interface{}{
				"attempts":   job.Attempts,
				"last_error": lastError,
			}).Error
	})
}

func (r *evaluationJobRepository) Bury(ctx context.Context, job models.EvaluationJob, solutionUpdates map[string]interface{}) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		solutionUpdates["status"] = models.SolutionStatusFailed
		if err := transitionSolution(tx, job.SolutionID, models.SolutionStatusPending, solutionUpdates); err != nil {
			return err
		}
		lastError, _ := solutionUpdates["last_error"].(string)
		return finishJob(tx, job.ID, models.EvaluationJobDead, lastError)
	})
}

func (r *evaluationJobRepository) Discard(ctx context.Context, jobID uint, reason string) error {
	return finishJob(r.db.WithContext(ctx), jobID, models.EvaluationJobDone, reason)
}

func (r *evaluationJobRepository) ReleaseExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.EvaluationJob{}).
		Where("status = ? AND locked_at < ?", models.EvaluationJobProcessing, cutoff).
		Updates(map[string]interface{}{
			"status":          models.EvaluationJobQueued,
			"locked_at":       nil,
			"next_attempt_at": cutoff,
			"last_error":      "lease expired",
		})
	return result.RowsAffected, result.Error
}

func (r *evaluationJobRepository) Requeue(ctx context.Context, solutionID uint, maxAttempts int, now time.Time) (models.TaskSolution, error) {
	var solution models.TaskSolution
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := transitionSolution(tx, solutionID, models.SolutionStatusFailed, map[string]interface{}{
			"status":     models.SolutionStatusPending,
			"feedback":   "",
			"rating":     nil,
			"attempts":   0,
			"last_error": "",
		}); err != nil {
			return err
		}

		if err := tx.Preload("Task").First(&solution, solutionID).Error; err != nil {
			return err
		}

		var job models.EvaluationJob
		err := tx.Where("solution_id = ?", solutionID).First(&job).Error
		switch {
		case err == nil:
			return tx.Model(&job).Updates(map[string]interface{}{
				"status":          models.EvaluationJobQueued,
				"attempts":        0,
				"max_attempts":    maxAttempts,
				"next_attempt_at": now,
				"locked_at":       nil,
				"last_error":      "",
			}).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			job = models.EvaluationJob{
				SolutionID:      solutionID,
				TaskDescription: solution.Task.Description,
				Status:          models.EvaluationJobQueued,
				MaxAttempts:     maxAttempts,
				NextAttemptAt:   now,
			}
			return tx.Create(&job).Error
		default:
			return err
		}
	})
	if err != nil {
		return models.TaskSolution{}, err
	}
	return solution, nil
}

func (r *evaluationJobRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.EvaluationJob{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

func (r *evaluationJobRepository) GetBySolution(ctx context.Context, solutionID uint) (models.EvaluationJob, error) {
	var job models.EvaluationJob
	if err := r.db.WithContext(ctx).Where("solution_id = ?", solutionID).First(&job).Error; err != nil {
		return models.EvaluationJob{}, err
	}
	return job, nil
}

func finishJob(tx *gorm.DB, id uint, status, lastError string) error {
	return tx.Model(&models.EvaluationJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"locked_at":  nil,
			"last_error": lastError,
		}).Error
}
