package models

import "time"

// Booking statuses.
const (
	BookingStatusBooked    = "booked"
	BookingStatusCancelled = "cancelled"
)

// Mentor is a profile offering paid review sessions.
type Mentor struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ProfileID  uint      `gorm:"not null;uniqueIndex" json:"profile_id"`
	Headline   string    `gorm:"size:255" json:"headline"`
	Bio        string    `gorm:"type:text" json:"bio"`
	HourlyRate int       `gorm:"not null;default:0" json:"hourly_rate"`
	IsActive   bool      `gorm:"not null" json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Profile    Profile   `json:"profile"`
}

// MentorBooking reserves a mentor time slot for a user.
type MentorBooking struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MentorID  uint      `gorm:"not null;index;uniqueIndex:idx_mentor_booked_slot,where:status = 'booked'" json:"mentor_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	SlotStart time.Time `gorm:"not null;index;uniqueIndex:idx_mentor_booked_slot,where:status = 'booked'" json:"slot_start"`
	SlotEnd   time.Time `gorm:"not null" json:"slot_end"`
	Status    string    `gorm:"size:16;not null" json:"status"`
	Note      string    `gorm:"type:text" json:"note"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Mentor    Mentor    `json:"-"`
}
