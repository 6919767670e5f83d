package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/designhub-api/internal/dto"
	"github.com/noah-isme/designhub-api/internal/models"
	"github.com/noah-isme/designhub-api/internal/repository"
)

// ErrTaskNotFound indicates the requested task does not exist.
var ErrTaskNotFound = errors.New("task not found")

// TaskService exposes use cases related to practice tasks.
type TaskService interface {
	List(ctx context.Context, filter dto.TaskFilter) (dto.TaskListResponse, error)
	Get(ctx context.Context, id uint) (dto.TaskResponse, error)
	Create(ctx context.Context, payload dto.TaskCreateRequest) (dto.TaskResponse, error)
	Update(ctx context.Context, id uint, payload dto.TaskUpdateRequest) (dto.TaskResponse, error)
}

type taskService struct {
	repo      repository.TaskRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewTaskService builds a new task service.
func NewTaskService(repo repository.TaskRepository, validate *validator.Validate, logger zerolog.Logger) TaskService {
	return &taskService{
		repo:      repo,
		validator: validate,
		logger:    logger.With().Str("component", "task_service").Logger(),
	}
}

func (s *taskService) List(ctx context.Context, filter dto.TaskFilter) (dto.TaskListResponse, error) {
	page, pageSize := normalisePage(filter.Page, filter.PageSize)

	tasks, total, err := s.repo.List(ctx, repository.TaskQuery{
		Category:      strings.TrimSpace(filter.Category),
		Difficulty:    strings.TrimSpace(filter.Difficulty),
		Search:        strings.TrimSpace(filter.Search),
		PublishedOnly: true,
		Offset:        (page - 1) * pageSize,
		Limit:         pageSize,
	})
	if err != nil {
		return dto.TaskListResponse{}, err
	}

	items := make([]dto.TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, dto.NewTaskResponse(task))
	}

	return dto.TaskListResponse{
		Items: items,
		Pagination: dto.Pagination{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: int(total),
		},
	}, nil
}

func (s *taskService) Get(ctx context.Context, id uint) (dto.TaskResponse, error) {
	task, err := s.load(ctx, id)
	if err != nil {
		return dto.TaskResponse{}, err
	}
	return dto.NewTaskResponse(task), nil
}

func (s *taskService) Create(ctx context.Context, payload dto.TaskCreateRequest) (dto.TaskResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TaskResponse{}, err
	}

	task := models.Task{
		Title:       strings.TrimSpace(payload.Title),
		Description: strings.TrimSpace(payload.Description),
		Difficulty:  strings.ToLower(strings.TrimSpace(payload.Difficulty)),
		Category:    strings.TrimSpace(payload.Category),
		IsPublished: true,
	}
	if task.Difficulty == "" {
		task.Difficulty = "junior"
	}
	if payload.IsPublished != nil {
		task.IsPublished = *payload.IsPublished
	}

	if err := s.repo.Create(ctx, &task); err != nil {
		return dto.TaskResponse{}, err
	}

	s.logger.Info().Uint("task_id", task.ID).Msg("task created")
	return dto.NewTaskResponse(task), nil
}

func (s *taskService) Update(ctx context.Context, id uint, payload dto.TaskUpdateRequest) (dto.TaskResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TaskResponse{}, err
	}

	task, err := s.load(ctx, id)
	if err != nil {
		return dto.TaskResponse{}, err
	}

	if payload.Title != nil {
		task.Title = strings.TrimSpace(*payload.Title)
	}
	if payload.Description != nil {
		task.Description = strings.TrimSpace(*payload.Description)
	}
	if payload.Difficulty != nil {
		task.Difficulty = strings.ToLower(strings.TrimSpace(*payload.Difficulty))
	}
	if payload.Category != nil {
		task.Category = strings.TrimSpace(*payload.Category)
	}
	if payload.IsPublished != nil {
		task.IsPublished = *payload.IsPublished
	}

	if err := s.repo.Update(ctx, &task); err != nil {
		return dto.TaskResponse{}, err
	}
	return dto.NewTaskResponse(task), nil
}

func (s *taskService) load(ctx context.Context, id uint) (models.Task, error) {
	task, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Task{}, ErrTaskNotFound
		}
		return models.Task{}, err
	}
	return task, nil
}

func normalisePage(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
