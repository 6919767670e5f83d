package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/designhub-api/internal/dto"
	"github.com/noah-isme/designhub-api/internal/models"
	"github.com/noah-isme/designhub-api/internal/repository"
)

// ErrProfileNotFound indicates the caller identity does not resolve to a profile.
var ErrProfileNotFound = errors.New("profile not found")

// PlanLimits holds the character allowance of each plan.
type PlanLimits struct {
	FreeCharLimit int
	ProCharLimit  int
}

// CharLimit returns the allowance of the given profile.
func (l PlanLimits) CharLimit(profile models.Profile) int {
	if profile.IsPro() {
		return l.ProCharLimit
	}
	return l.FreeCharLimit
}

// ProfileService resolves caller profiles and manages plans.
type ProfileService interface {
	Resolve(ctx context.Context, userID uint) (models.Profile, error)
	Me(ctx context.Context, userID uint) (dto.ProfileResponse, error)
	UpdatePlan(ctx context.Context, id uint, payload dto.ProfilePlanRequest) (dto.ProfileResponse, error)
}

type profileService struct {
	repo      repository.ProfileRepository
	limits    PlanLimits
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewProfileService constructs a profile service.
func NewProfileService(repo repository.ProfileRepository, limits PlanLimits, validate *validator.Validate, logger zerolog.Logger) ProfileService {
	return &profileService{
		repo:      repo,
		limits:    limits,
		validator: validate,
		logger:    logger.With().Str("component", "profile_service").Logger(),
	}
}

func (s *profileService) Resolve(ctx context.Context, userID uint) (models.Profile, error) {
	if userID == 0 {
		return models.Profile{}, ErrProfileNotFound
	}
	profile, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Profile{}, ErrProfileNotFound
		}
		return models.Profile{}, err
	}
	return profile, nil
}

func (s *profileService) Me(ctx context.Context, userID uint) (dto.ProfileResponse, error) {
	profile, err := s.Resolve(ctx, userID)
	if err != nil {
		return dto.ProfileResponse{}, err
	}
	return dto.NewProfileResponse(profile, s.limits.CharLimit(profile)), nil
}

func (s *profileService) UpdatePlan(ctx context.Context, id uint, payload dto.ProfilePlanRequest) (dto.ProfileResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ProfileResponse{}, err
	}

	profile, err := s.repo.UpdatePlan(ctx, id, payload.Plan)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProfileResponse{}, ErrProfileNotFound
		}
		return dto.ProfileResponse{}, err
	}

	s.logger.Info().Uint("profile_id", id).Str("plan", profile.Plan).Msg("profile plan updated")
	return dto.NewProfileResponse(profile, s.limits.CharLimit(profile)), nil
}
