package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/designhub-api/internal/dto"
	"github.com/noah-isme/designhub-api/internal/models"
	"github.com/noah-isme/designhub-api/internal/repository"
)

// ErrSolutionNotFound indicates the solution cannot be located.
var ErrSolutionNotFound = errors.New("solution not found")

// ErrCharLimitExceeded indicates the description is longer than the caller's plan allows.
var ErrCharLimitExceeded = errors.New("solution exceeds character limit")

// ErrUpgradeRequired indicates a PRO-only feature was requested on the free plan.
var ErrUpgradeRequired = errors.New("upgrade required")

// ErrSolutionNotAwaitingReview indicates the solution is not in mentor review.
var ErrSolutionNotAwaitingReview = errors.New("solution is not awaiting mentor review")

// ErrSolutionNotFailed indicates only failed solutions can be re-queued.
var ErrSolutionNotFailed = errors.New("solution has not failed")

// SolutionConfig controls submission limits and the evaluation queue.
type SolutionConfig struct {
	Limits      PlanLimits
	MaxAttempts int
}

// SolutionService exposes task solution operations.
type SolutionService interface {
	Submit(ctx context.Context, userID, taskID uint, payload dto.SolutionSubmitRequest) (dto.SolutionSubmitResponse, error)
	GetMine(ctx context.Context, taskID, userID uint) (dto.MySolutionResponse, error)
	History(ctx context.Context, taskID, userID uint) ([]dto.SolutionResponse, error)
	List(ctx context.Context, filter dto.SolutionListFilter) (dto.SolutionListResponse, error)
	Review(ctx context.Context, id, reviewerID uint, payload dto.SolutionReviewRequest) (dto.SolutionResponse, error)
	Requeue(ctx context.Context, id uint) (dto.SolutionResponse, error)
}

type solutionService struct {
	solutions     repository.SolutionRepository
	jobs          repository.EvaluationJobRepository
	tasks         repository.TaskRepository
	profiles      ProfileService
	notifications NotificationPublisher
	validator     *validator.Validate
	sanitizer     *bluemonday.Policy
	logger        zerolog.Logger
	tracer        trace.Tracer
	config        SolutionConfig
	now           func() time.Time
}

// NewSolutionService constructs the solution service.
func NewSolutionService(
	solutions repository.SolutionRepository,
	jobs repository.EvaluationJobRepository,
	tasks repository.TaskRepository,
	profiles ProfileService,
	notifications NotificationPublisher,
	validate *validator.Validate,
	logger zerolog.Logger,
	cfg SolutionConfig,
) SolutionService {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}

	return &solutionService{
		solutions:     solutions,
		jobs:          jobs,
		tasks:         tasks,
		profiles:      profiles,
		notifications: notifications,
		validator:     validate,
		sanitizer:     bluemonday.StrictPolicy(),
		logger:        logger.With().Str("component", "solution_service").Logger(),
		tracer:        otel.Tracer("github.com/noah-isme/designhub-api/internal/service/solution"),
		config:        cfg,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *solutionService) Submit(ctx context.Context, userID, taskID uint, payload dto.SolutionSubmitRequest) (dto.SolutionSubmitResponse, error) {
	ctx, span := s.tracer.Start(ctx, "solutions.submit", trace.WithAttributes(
		attribute.Int64("task.id", int64(taskID)),
		attribute.Bool("solution.mentor_check", payload.MentorCheck),
	))
	defer span.End()

	profile, err := s.profiles.Resolve(ctx, userID)
	if err != nil {
		return dto.SolutionSubmitResponse{}, err
	}

	payload.Description = strings.TrimSpace(payload.Description)
	if err := s.validator.Struct(payload); err != nil {
		return dto.SolutionSubmitResponse{}, err
	}

	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SolutionSubmitResponse{}, ErrTaskNotFound
		}
		return dto.SolutionSubmitResponse{}, err
	}

	if limit := s.config.Limits.CharLimit(profile); limit > 0 && utf8.RuneCountInString(payload.Description) > limit {
		return dto.SolutionSubmitResponse{}, fmt.Errorf("%w: %d characters allowed", ErrCharLimitExceeded, limit)
	}
	if payload.MentorCheck && !profile.IsPro() {
		return dto.SolutionSubmitResponse{}, ErrUpgradeRequired
	}

	solution := models.TaskSolution{
		TaskID:      task.ID,
		UserID:      profile.ID,
		Description: payload.Description,
		Status:      models.SolutionStatusPending,
	}

	var job *models.EvaluationJob
	if payload.MentorCheck {
		solution.Status = models.SolutionStatusMentorReview
	} else {
		taskDescription := strings.TrimSpace(payload.TaskDescription)
		if taskDescription == "" {
			taskDescription = task.Description
		}
		job = &models.EvaluationJob{
			TaskDescription: taskDescription,
			Status:          models.EvaluationJobQueued,
			MaxAttempts:     s.config.MaxAttempts,
			NextAttemptAt:   s.now(),
		}
	}

	if err := s.solutions.Create(ctx, &solution, job); err != nil {
		span.RecordError(err)
		return dto.SolutionSubmitResponse{}, fmt.Errorf("store solution: %w", err)
	}

	s.logger.Info().
		Uint("solution_id", solution.ID).
		Uint("task_id", task.ID).
		Uint("user_id", profile.ID).
		Str("status", solution.Status).
		Msg("solution submitted")

	return dto.SolutionSubmitResponse{
		Success:    true,
		SolutionID: solution.ID,
		Status:     solution.Status,
	}, nil
}

func (s *solutionService) GetMine(ctx context.Context, taskID, userID uint) (dto.MySolutionResponse, error) {
	if userID == 0 {
		return dto.MySolutionResponse{}, ErrProfileNotFound
	}

	solution, err := s.solutions.Latest(ctx, taskID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.MySolutionResponse{Solution: nil}, nil
		}
		return dto.MySolutionResponse{}, err
	}

	return dto.MySolutionResponse{Solution: dto.NewMySolution(solution)}, nil
}

func (s *solutionService) History(ctx context.Context, taskID, userID uint) ([]dto.SolutionResponse, error) {
	if userID == 0 {
		return nil, ErrProfileNotFound
	}

	items, _, err := s.solutions.List(ctx, repository.SolutionFilter{TaskID: &taskID, UserID: &userID, Limit: 100})
	if err != nil {
		return nil, err
	}
	return dto.NewSolutionResponseSlice(items), nil
}

func (s *solutionService) List(ctx context.Context, filter dto.SolutionListFilter) (dto.SolutionListResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return dto.SolutionListResponse{}, err
	}

	page, pageSize := normalisePage(filter.Page, filter.PageSize)
	query := repository.SolutionFilter{
		Status: filter.Status,
		Offset: (page - 1) * pageSize,
		Limit:  pageSize,
	}
	if filter.TaskID > 0 {
		query.TaskID = &filter.TaskID
	}

	items, total, err := s.solutions.List(ctx, query)
	if err != nil {
		return dto.SolutionListResponse{}, err
	}

	return dto.SolutionListResponse{
		Items: dto.NewSolutionResponseSlice(items),
		Pagination: dto.Pagination{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: int(total),
		},
	}, nil
}

func (s *solutionService) Review(ctx context.Context, id, reviewerID uint, payload dto.SolutionReviewRequest) (dto.SolutionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SolutionResponse{}, err
	}

	feedback := strings.TrimSpace(s.sanitizer.Sanitize(payload.Feedback))
	if feedback == "" {
		return dto.SolutionResponse{}, fmt.Errorf("feedback empty after sanitization")
	}

	reviewedAt := s.now()
	updates := map[string]interface{}{
		"status":      models.SolutionStatusReviewed,
		"feedback":    feedback,
		"reviewed_by": reviewerID,
		"reviewed_at": reviewedAt,
	}
	if payload.Rating != nil {
		updates["rating"] = *payload.Rating
	}

	solution, err := s.solutions.Transition(ctx, id, models.SolutionStatusMentorReview, updates)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return dto.SolutionResponse{}, ErrSolutionNotFound
		case errors.Is(err, repository.ErrStaleState):
			return dto.SolutionResponse{}, ErrSolutionNotAwaitingReview
		}
		return dto.SolutionResponse{}, err
	}

	s.logger.Info().Uint("solution_id", id).Uint("reviewer_id", reviewerID).Msg("mentor review recorded")
	s.notify(ctx, solution, models.NotificationSolutionReviewed, "Ментор проверил ваше решение")

	return dto.NewSolutionResponse(solution), nil
}

func (s *solutionService) Requeue(ctx context.Context, id uint) (dto.SolutionResponse, error) {
	solution, err := s.jobs.Requeue(ctx, id, s.config.MaxAttempts, s.now())
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return dto.SolutionResponse{}, ErrSolutionNotFound
		case errors.Is(err, repository.ErrStaleState):
			return dto.SolutionResponse{}, ErrSolutionNotFailed
		}
		return dto.SolutionResponse{}, err
	}

	s.logger.Info().Uint("solution_id", id).Msg("failed solution re-queued")
	return dto.NewSolutionResponse(solution), nil
}

func (s *solutionService) notify(ctx context.Context, solution models.TaskSolution, kind, message string) {
	if s.notifications == nil {
		return
	}
	_, err := s.notifications.Publish(ctx, dto.NotificationCreateRequest{
		UserID:  solution.UserID,
		Type:    kind,
		Message: message,
		Metadata: map[string]interface{}{
			"solution_id": solution.ID,
			"task_id":     solution.TaskID,
			"status":      solution.Status,
		},
	})
	if err != nil {
		s.logger.Warn().Err(err).Uint("solution_id", solution.ID).Msg("failed to publish solution notification")
	}
}
