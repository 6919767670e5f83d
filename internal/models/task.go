package models

import "time"

// Task is a practice design brief users answer with a free-text solution.
type Task struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text;not null" json:"description"`
	Difficulty  string    `gorm:"size:32;not null;default:junior" json:"difficulty"`
	Category    string    `gorm:"size:64;index" json:"category"`
	IsPublished bool      `gorm:"not null" json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
