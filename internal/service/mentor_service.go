package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/designhub-api/internal/dto"
	"github.com/noah-isme/designhub-api/internal/models"
	"github.com/noah-isme/designhub-api/internal/repository"
)

var (
	// ErrMentorNotFound indicates the mentor does not exist or is not accepting bookings.
	ErrMentorNotFound = errors.New("mentor not found")
	// ErrBookingNotFound indicates the booking does not exist for the caller.
	ErrBookingNotFound = errors.New("booking not found")
	// ErrInvalidSlot indicates the requested slot is in the past or empty.
	ErrInvalidSlot = errors.New("slot must be in the future and end after it starts")
	// ErrOwnMentorBooking indicates a mentor tried to book themselves.
	ErrOwnMentorBooking = errors.New("cannot book your own mentor slot")
	// ErrSlotTaken indicates the slot overlaps an existing booking.
	ErrSlotTaken = errors.New("slot already booked")
	// ErrBookingNotActive indicates the booking was already cancelled.
	ErrBookingNotActive = errors.New("booking is not active")
)

// MentorService lists mentors and manages session bookings.
type MentorService interface {
	List(ctx context.Context, page, pageSize int) ([]dto.MentorResponse, error)
	Book(ctx context.Context, mentorID, userID uint, payload dto.BookingCreateRequest) (dto.BookingResponse, error)
	MyBookings(ctx context.Context, userID uint) ([]dto.BookingResponse, error)
	Cancel(ctx context.Context, bookingID, userID uint) (dto.BookingResponse, error)
}

type mentorService struct {
	repo          repository.MentorRepository
	notifications NotificationPublisher
	validator     *validator.Validate
	sanitizer     *bluemonday.Policy
	logger        zerolog.Logger
	now           func() time.Time
}

// NewMentorService constructs a mentor service.
func NewMentorService(repo repository.MentorRepository, notifications NotificationPublisher, validate *validator.Validate, logger zerolog.Logger) MentorService {
	return &mentorService{
		repo:          repo,
		notifications: notifications,
		validator:     validate,
		sanitizer:     bluemonday.StrictPolicy(),
		logger:        logger.With().Str("component", "mentor_service").Logger(),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *mentorService) List(ctx context.Context, page, pageSize int) ([]dto.MentorResponse, error) {
	page, pageSize = normalisePage(page, pageSize)
	mentors, err := s.repo.ListActive(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}

	out := make([]dto.MentorResponse, 0, len(mentors))
	for _, mentor := range mentors {
		out = append(out, dto.NewMentorResponse(mentor))
	}
	return out, nil
}

func (s *mentorService) Book(ctx context.Context, mentorID, userID uint, payload dto.BookingCreateRequest) (dto.BookingResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.BookingResponse{}, err
	}

	start := payload.SlotStart.UTC()
	end := payload.SlotEnd.UTC()
	if !start.After(s.now()) || !end.After(start) {
		return dto.BookingResponse{}, ErrInvalidSlot
	}

	mentor, err := s.repo.Get(ctx, mentorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.BookingResponse{}, ErrMentorNotFound
		}
		return dto.BookingResponse{}, err
	}
	if !mentor.IsActive {
		return dto.BookingResponse{}, ErrMentorNotFound
	}
	if mentor.ProfileID == userID {
		return dto.BookingResponse{}, ErrOwnMentorBooking
	}

	booking := models.MentorBooking{
		MentorID:  mentor.ID,
		UserID:    userID,
		SlotStart: start,
		SlotEnd:   end,
		Status:    models.BookingStatusBooked,
		Note:      strings.TrimSpace(s.sanitizer.Sanitize(payload.Note)),
	}
	if err := s.repo.CreateBooking(ctx, &booking); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return dto.BookingResponse{}, ErrSlotTaken
		}
		return dto.BookingResponse{}, err
	}

	s.logger.Info().Uint("booking_id", booking.ID).Uint("mentor_id", mentor.ID).Uint("user_id", userID).Msg("mentor slot booked")

	if s.notifications != nil {
		if _, err := s.notifications.Publish(ctx, dto.NotificationCreateRequest{
			UserID:  mentor.ProfileID,
			Type:    models.NotificationBookingCreated,
			Message: "Новая запись на сессию " + start.Format("02.01.2006 15:04") + " UTC",
			Metadata: map[string]interface{}{
				"booking_id": booking.ID,
				"slot_start": start,
				"slot_end":   end,
			},
		}); err != nil {
			s.logger.Warn().Err(err).Uint("booking_id", booking.ID).Msg("failed to notify mentor")
		}
	}

	return dto.NewBookingResponse(booking), nil
}

func (s *mentorService) MyBookings(ctx context.Context, userID uint) ([]dto.BookingResponse, error) {
	if userID == 0 {
		return nil, ErrProfileNotFound
	}
	bookings, err := s.repo.ListBookingsForUser(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}

	out := make([]dto.BookingResponse, 0, len(bookings))
	for _, booking := range bookings {
		out = append(out, dto.NewBookingResponse(booking))
	}
	return out, nil
}

func (s *mentorService) Cancel(ctx context.Context, bookingID, userID uint) (dto.BookingResponse, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.BookingResponse{}, ErrBookingNotFound
		}
		return dto.BookingResponse{}, err
	}
	if booking.UserID != userID {
		return dto.BookingResponse{}, ErrBookingNotFound
	}

	cancelled, err := s.repo.CancelBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return dto.BookingResponse{}, ErrBookingNotActive
		}
		return dto.BookingResponse{}, err
	}

	s.logger.Info().Uint("booking_id", bookingID).Msg("booking cancelled")
	return dto.NewBookingResponse(cancelled), nil
}
