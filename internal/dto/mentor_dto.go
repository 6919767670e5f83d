package dto

import (
	"time"

	"github.com/noah-isme/designhub-api/internal/models"
)

// MentorResponse describes a mentor available for booking.
type MentorResponse struct {
	ID          uint   `json:"id"`
	ProfileID   uint   `json:"profile_id"`
	DisplayName string `json:"display_name"`
	Headline    string `json:"headline"`
	Bio         string `json:"bio"`
	HourlyRate  int    `json:"hourly_rate"`
}

// BookingCreateRequest reserves a mentor slot.
type BookingCreateRequest struct {
	SlotStart time.Time `json:"slotStart" validate:"required"`
	SlotEnd   time.Time `json:"slotEnd" validate:"required"`
	Note      string    `json:"note" validate:"omitempty,max=1000"`
}

// BookingResponse is a serialized mentor booking.
type BookingResponse struct {
	ID        uint      `json:"id"`
	MentorID  uint      `json:"mentor_id"`
	UserID    uint      `json:"user_id"`
	SlotStart time.Time `json:"slot_start"`
	SlotEnd   time.Time `json:"slot_end"`
	Status    string    `json:"status"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMentorResponse converts a mentor into a DTO.
func NewMentorResponse(mentor models.Mentor) MentorResponse {
	return MentorResponse{
		ID:          mentor.ID,
		ProfileID:   mentor.ProfileID,
		DisplayName: mentor.Profile.DisplayName,
		Headline:    mentor.Headline,
		Bio:         mentor.Bio,
		HourlyRate:  mentor.HourlyRate,
	}
}

// NewBookingResponse converts a booking into a DTO.
func NewBookingResponse(booking models.MentorBooking) BookingResponse {
	return BookingResponse{
		ID:        booking.ID,
		MentorID:  booking.MentorID,
		UserID:    booking.UserID,
		SlotStart: booking.SlotStart,
		SlotEnd:   booking.SlotEnd,
		Status:    booking.Status,
		Note:      booking.Note,
		CreatedAt: booking.CreatedAt,
	}
}
