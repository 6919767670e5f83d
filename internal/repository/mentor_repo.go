package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/designhub-api/internal/models"
)

// MentorRepository persists mentors and their bookings.
type MentorRepository interface {
	ListActive(ctx context.Context, limit, offset int) ([]models.Mentor, error)
	Get(ctx context.Context, id uint) (models.Mentor, error)
	Create(ctx context.Context, mentor *models.Mentor) error
	// CreateBooking stores the booking unless a booked slot of the same mentor overlaps it.
	CreateBooking(ctx context.Context, booking *models.MentorBooking) error
	GetBooking(ctx context.Context, id uint) (models.MentorBooking, error)
	ListBookingsForUser(ctx context.Context, userID uint, from time.Time) ([]models.MentorBooking, error)
	CancelBooking(ctx context.Context, id uint) (models.MentorBooking, error)
}

// NewMentorRepository constructs a mentor repository.
func NewMentorRepository(db *gorm.DB) MentorRepository {
	return &mentorRepository{db: db}
}

type mentorRepository struct {
	db *gorm.DB
}

func (r *mentorRepository) ListActive(ctx context.Context, limit, offset int) ([]models.Mentor, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var mentors []models.Mentor
	if err := r.db.WithContext(ctx).
		Preload("Profile").
		Where("is_active = ?", true).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&mentors).Error; err != nil {
		return nil, err
	}
	return mentors, nil
}

func (r *mentorRepository) Get(ctx context.Context, id uint) (models.Mentor, error) {
	var mentor models.Mentor
	if err := r.db.WithContext(ctx).Preload("Profile").First(&mentor, id).Error; err != nil {
		return models.Mentor{}, err
	}
	return mentor, nil
}

func (r *mentorRepository) Create(ctx context.Context, mentor *models.Mentor) error {
	return translateDuplicate(r.db.WithContext(ctx).Create(mentor).Error)
}

func (r *mentorRepository) CreateBooking(ctx context.Context, booking *models.MentorBooking) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			// Bookings of one mentor are serialised on the mentor row.
			var mentor models.Mentor
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Select("id").
				First(&mentor, booking.MentorID).Error; err != nil {
				return err
			}
		}

		var overlapping int64
		if err := tx.Model(&models.MentorBooking{}).
			Where("mentor_id = ? AND status = ? AND slot_start < ? AND slot_end > ?",
				booking.MentorID, models.BookingStatusBooked, booking.SlotEnd, booking.SlotStart).
			Count(&overlapping).Error; err != nil {
			return err
		}
		if overlapping > 0 {
			return ErrDuplicate
		}
		return translateDuplicate(tx.Create(booking).Error)
	})
}

func (r *mentorRepository) GetBooking(ctx context.Context, id uint) (models.MentorBooking, error) {
	var booking models.MentorBooking
	if err := r.db.WithContext(ctx).First(&booking, id).Error; err != nil {
		return models.MentorBooking{}, err
	}
	return booking, nil
}

func (r *mentorRepository) ListBookingsForUser(ctx context.Context, userID uint, from time.Time) ([]models.MentorBooking, error) {
	var bookings []models.MentorBooking
	db := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if !from.IsZero() {
		db = db.Where("slot_end >= ?", from)
	}
	if err := db.Order("slot_start ASC").Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *mentorRepository) CancelBooking(ctx context.Context, id uint) (models.MentorBooking, error) {
	result := r.db.WithContext(ctx).Model(&models.MentorBooking{}).
		Where("id = ? AND status = ?", id, models.BookingStatusBooked).
		Update("status", models.BookingStatusCancelled)
	if result.Error != nil {
		return models.MentorBooking{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.MentorBooking{}, ErrStaleState
	}
	return r.GetBooking(ctx, id)
}
