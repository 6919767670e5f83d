package models

import "time"

// Evaluation job statuses.
const (
	EvaluationJobQueued     = "queued"
	EvaluationJobProcessing = "processing"
	EvaluationJobDone       = "done"
	EvaluationJobDead       = "dead"
)

// EvaluationJob is the outbox row that schedules AI evaluation of a solution.
type EvaluationJob struct {
	ID              uint         `gorm:"primaryKey" json:"id"`
	SolutionID      uint         `gorm:"not null;uniqueIndex" json:"solution_id"`
	TaskDescription string       `gorm:"type:text" json:"task_description"`
	Status          string       `gorm:"size:16;not null;index:idx_evaluation_due,priority:1" json:"status"`
	Attempts        int          `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts     int          `gorm:"not null;default:5" json:"max_attempts"`
	NextAttemptAt   time.Time    `gorm:"not null;index:idx_evaluation_due,priority:2" json:"next_attempt_at"`
	LockedAt        *time.Time   `json:"locked_at"`
	LastError       string       `gorm:"type:text" json:"last_error"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	Solution        TaskSolution `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// Exhausted reports whether the job has used every allowed attempt.
func (j EvaluationJob) Exhausted() bool {
	return j.Attempts >= j.MaxAttempts
}
