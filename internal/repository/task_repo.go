package repository

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/designhub-api/internal/models"
)

// TaskQuery defines filters and pagination for tasks.
type TaskQuery struct {
	Category      string
	Difficulty    string
	Search        string
	PublishedOnly bool
	Offset        int
	Limit         int
}

// TaskRepository exposes persistence operations for practice tasks.
type TaskRepository interface {
	List(ctx context.Context, query TaskQuery) ([]models.Task, int64, error)
	GetByID(ctx context.Context, id uint) (models.Task, error)
	Create(ctx context.Context, task *models.Task) error
	Update(ctx context.Context, task *models.Task) error
}

// NewTaskRepository constructs a task repository.
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

type taskRepository struct {
	db *gorm.DB
}

func (r *taskRepository) List(ctx context.Context, query TaskQuery) ([]models.Task, int64, error) {
	db := r.db.WithContext(ctx).Model(&models.Task{})

	if query.PublishedOnly {
		db = db.Where("is_published = ?", true)
	}

	if query.Category != "" {
		db = db.Where("LOWER(category) = ?", strings.ToLower(query.Category))
	}

	if query.Difficulty != "" {
		db = db.Where("LOWER(difficulty) = ?", strings.ToLower(query.Difficulty))
	}

	if query.Search != "" {
		pattern := fmt.Sprintf("%%%s%%", strings.ToLower(query.Search))
		db = db.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if query.Offset > 0 {
		db = db.Offset(query.Offset)
	}
	if query.Limit > 0 {
		db = db.Limit(query.Limit)
	}

	var tasks []models.Task
	if err := db.Order("created_at DESC").Order("id DESC").Find(&tasks).Error; err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

func (r *taskRepository) GetByID(ctx context.Context, id uint) (models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).First(&task, id).Error; err != nil {
		return models.Task{}, err
	}
	return task, nil
}

func (r *taskRepository) Create(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *taskRepository) Update(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Save(task).Error
}
