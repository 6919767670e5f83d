package models

import (
	"strings"
	"time"
)

// Profile roles.
const (
	RoleStudent = "student"
	RoleMentor  = "mentor"
	RoleAdmin   = "admin"
)

// Subscription plans.
const (
	PlanFree = "free"
	PlanPro  = "pro"
)

// Profile represents a platform user resolved from the caller identity.
type Profile struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Email       string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	DisplayName string    `gorm:"size:255" json:"display_name"`
	Role        string    `gorm:"size:32;not null;default:student" json:"role"`
	Plan        string    `gorm:"size:16;not null;default:free" json:"plan"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsPro reports whether the profile is on the paid tier.
func (p Profile) IsPro() bool {
	return strings.EqualFold(p.Plan, PlanPro)
}
