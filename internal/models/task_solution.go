package models

import "time"

// Solution statuses. failed is the dead-letter state of the evaluation queue.
const (
	SolutionStatusPending      = "pending"
	SolutionStatusMentorReview = "mentor_review"
	SolutionStatusReviewed     = "reviewed"
	SolutionStatusFailed       = "failed"
)

// TaskSolution is a user's answer to a task.
type TaskSolution struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	TaskID      uint       `gorm:"not null;index:idx_solution_owner,priority:1" json:"task_id"`
	UserID      uint       `gorm:"not null;index:idx_solution_owner,priority:2" json:"user_id"`
	Description string     `gorm:"type:text;not null" json:"description"`
	Status      string     `gorm:"size:32;not null;index" json:"status"`
	Feedback    string     `gorm:"type:text" json:"feedback"`
	Rating      *int       `json:"rating"`
	Attempts    int        `gorm:"not null;default:0" json:"attempts"`
	LastError   string     `gorm:"type:text" json:"last_error"`
	ReviewedBy  *uint      `json:"reviewed_by"`
	ReviewedAt  *time.Time `json:"reviewed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Task        Task       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// InProgress reports whether a client should keep waiting for a result.
func (s TaskSolution) InProgress() bool {
	return s.Status == SolutionStatusPending || s.Status == SolutionStatusMentorReview
}

// IsReviewed reports whether the solution reached its terminal state.
func (s TaskSolution) IsReviewed() bool {
	return s.Status == SolutionStatusReviewed
}
