package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/designhub-api/internal/models"
)

// SolutionFilter narrows solution listings.
type SolutionFilter struct {
	TaskID *uint
	UserID *uint
	Status string
	Offset int
	Limit  int
}

// SolutionRepository persists task solutions.
type SolutionRepository interface {
	// Create stores the solution and, when job is non-nil, its evaluation job in one transaction.
	Create(ctx context.Context, solution *models.TaskSolution, job *models.EvaluationJob) error
	GetByID(ctx context.Context, id uint) (models.TaskSolution, error)
	// Latest returns the newest solution of a user for a task. Ties on created_at go to the higher id.
	Latest(ctx context.Context, taskID, userID uint) (models.TaskSolution, error)
	List(ctx context.Context, filter SolutionFilter) ([]models.TaskSolution, int64, error)
	// Transition applies updates only while the solution is still in the from status.
	Transition(ctx context.Context, id uint, from string, updates map[string]interface{}) (models.TaskSolution, error)
}

// NewSolutionRepository constructs a solution repository.
func NewSolutionRepository(db *gorm.DB) SolutionRepository {
	return &solutionRepository{db: db}
}

type solutionRepository struct {
	db *gorm.DB
}

func (r *solutionRepository) Create(ctx context.Context, solution *models.TaskSolution, job *models.EvaluationJob) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(solution).Error; err != nil {
			return err
		}
		if job == nil {
			return nil
		}
		job.SolutionID = solution.ID
		return translateDuplicate(tx.Omit(clause.Associations).Create(job).Error)
	})
}

func (r *solutionRepository) GetByID(ctx context.Context, id uint) (models.TaskSolution, error) {
	var solution models.TaskSolution
	if err := r.db.WithContext(ctx).Preload("Task").First(&solution, id).Error; err != nil {
		return models.TaskSolution{}, err
	}
	return solution, nil
}

func (r *solutionRepository) Latest(ctx context.Context, taskID, userID uint) (models.TaskSolution, error) {
	var solution models.TaskSolution
	err := r.db.WithContext(ctx).
		Where("task_id = ? AND user_id = ?", taskID, userID).
		Order("created_at DESC").
		Order("id DESC").
		First(&solution).Error
	if err != nil {
		return models.TaskSolution{}, err
	}
	return solution, nil
}

func (r *solutionRepository) List(ctx context.Context, filter SolutionFilter) ([]models.TaskSolution, int64, error) {
	db := r.db.WithContext(ctx).Model(&models.TaskSolution{})

	if filter.TaskID != nil {
		db = db.Where("task_id = ?", *filter.TaskID)
	}
	if filter.UserID != nil {
		db = db.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var solutions []models.TaskSolution
	if err := db.Preload("Task").
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&solutions).Error; err != nil {
		return nil, 0, err
	}

	return solutions, total, nil
}

func (r *solutionRepository) Transition(ctx context.Context, id uint, from string, updates map[string]interface{}) (models.TaskSolution, error) {
	var solution models.TaskSolution
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := transitionSolution(tx, id, from, updates); err != nil {
			return err
		}
		return tx.First(&solution, id).Error
	})
	if err != nil {
		return models.TaskSolution{}, err
	}
	return solution, nil
}

func transitionSolution(tx *gorm.DB, id uint, from string, updates map[string]interface{}) error {
	result := tx.Model(&models.TaskSolution{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := tx.Model(&models.TaskSolution{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}
	return ErrStaleState
}
