package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/designhub-api/internal/models"
)

// ProfileRepository resolves and updates platform profiles.
type ProfileRepository interface {
	Create(ctx context.Context, profile *models.Profile) error
	GetByID(ctx context.Context, id uint) (models.Profile, error)
	UpdatePlan(ctx context.Context, id uint, plan string) (models.Profile, error)
}

// NewProfileRepository constructs a GORM-backed profile repository.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

type profileRepository struct {
	db *gorm.DB
}

func (r *profileRepository) Create(ctx context.Context, profile *models.Profile) error {
	return translateDuplicate(r.db.WithContext(ctx).Create(profile).Error)
}

func (r *profileRepository) GetByID(ctx context.Context, id uint) (models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).First(&profile, id).Error; err != nil {
		return models.Profile{}, err
	}
	return profile, nil
}

func (r *profileRepository) UpdatePlan(ctx context.Context, id uint, plan string) (models.Profile, error) {
	result := r.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", id).Update("plan", plan)
	if result.Error != nil {
		return models.Profile{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.Profile{}, gorm.ErrRecordNotFound
	}
	return r.GetByID(ctx, id)
}
