package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification types emitted by the platform.
const (
	NotificationSolutionReviewed = "solution.reviewed"
	NotificationSolutionFailed   = "solution.failed"
	NotificationBattleAdvanced   = "battle.advanced"
	NotificationBookingCreated   = "booking.created"
)

// Notification represents a push notification targeted to a specific user.
type Notification struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	UserID    uint              `gorm:"not null;index" json:"user_id"`
	Type      string            `gorm:"size:64" json:"type"`
	Message   string            `gorm:"type:text" json:"message"`
	Metadata  datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	ReadAt    *time.Time        `json:"read_at"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
