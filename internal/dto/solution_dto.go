package dto

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/noah-isme/designhub-api/internal/models"
	"github.com/noah-isme/designhub-api/pkg/ai"
)

// SolutionSubmitRequest is the body of POST /api/tasks/:taskId/solutions.
type SolutionSubmitRequest struct {
	Description     string `json:"description" validate:"required"`
	TaskDescription string `json:"taskDescription" validate:"omitempty,max=20000"`
	MentorCheck     bool   `json:"mentorCheck"`
	UserID          *uint  `json:"userId,omitempty"`
}

// SolutionSubmitResponse is returned immediately after a solution is stored.
type SolutionSubmitResponse struct {
	Success    bool   `json:"success"`
	SolutionID uint   `json:"solutionId"`
	Status     string `json:"status"`
}

// MySolutionResponse wraps the caller's latest solution; Solution is null when none exists.
type MySolutionResponse struct {
	Solution *MySolution `json:"solution"`
}

// MySolution is the polling view of a solution. Evaluation stays null until the solution is reviewed.
type MySolution struct {
	ID          uint                 `json:"id"`
	Content     string               `json:"content"`
	Description string               `json:"description"`
	Status      string               `json:"status"`
	Evaluation  *ai.EvaluationResult `json:"evaluation"`
	Attempts    int                  `json:"attempts"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

// NewMySolution converts a stored solution into its polling view.
func NewMySolution(solution models.TaskSolution) *MySolution {
	return &MySolution{
		ID:          solution.ID,
		Content:     solution.Feedback,
		Description: solution.Description,
		Status:      solution.Status,
		Evaluation:  DecodeEvaluation(solution),
		Attempts:    solution.Attempts,
		UpdatedAt:   solution.UpdatedAt,
	}
}

// DecodeEvaluation reads the evaluation stored in the feedback column of a reviewed solution.
// Mentor feedback stored as plain text becomes an evaluation without metrics.
func DecodeEvaluation(solution models.TaskSolution) *ai.EvaluationResult {
	if !solution.IsReviewed() {
		return nil
	}

	raw := strings.TrimSpace(solution.Feedback)
	var result ai.EvaluationResult
	if strings.HasPrefix(raw, "{") && json.Unmarshal([]byte(raw), &result) == nil {
		return &result
	}

	result = ai.EvaluationResult{Feedback: raw, Metrics: []ai.MetricEntry{}}
	if solution.Rating != nil {
		result.Rating = *solution.Rating
		result.IsCorrect = *solution.Rating >= 50
	}
	return &result
}

// EncodeEvaluation serialises an evaluation for the feedback column.
func EncodeEvaluation(result ai.EvaluationResult) (string, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// SolutionResponse is the detailed view used by history and mentor listings.
type SolutionResponse struct {
	ID          uint                 `json:"id"`
	TaskID      uint                 `json:"task_id"`
	TaskTitle   string               `json:"task_title,omitempty"`
	UserID      uint                 `json:"user_id"`
	Description string               `json:"description"`
	Status      string               `json:"status"`
	Rating      *int                 `json:"rating"`
	Evaluation  *ai.EvaluationResult `json:"evaluation"`
	Attempts    int                  `json:"attempts"`
	LastError   string               `json:"last_error,omitempty"`
	ReviewedBy  *uint                `json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time           `json:"reviewed_at,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// NewSolutionResponse converts a solution model into a DTO.
func NewSolutionResponse(solution models.TaskSolution) SolutionResponse {
	return SolutionResponse{
		ID:          solution.ID,
		TaskID:      solution.TaskID,
		TaskTitle:   solution.Task.Title,
		UserID:      solution.UserID,
		Description: solution.Description,
		Status:      solution.Status,
		Rating:      solution.Rating,
		Evaluation:  DecodeEvaluation(solution),
		Attempts:    solution.Attempts,
		LastError:   solution.LastError,
		ReviewedBy:  solution.ReviewedBy,
		ReviewedAt:  solution.ReviewedAt,
		CreatedAt:   solution.CreatedAt,
		UpdatedAt:   solution.UpdatedAt,
	}
}

// NewSolutionResponseSlice converts solutions into DTOs.
func NewSolutionResponseSlice(items []models.TaskSolution) []SolutionResponse {
	out := make([]SolutionResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewSolutionResponse(item))
	}
	return out
}

// SolutionListFilter narrows the mentor listing.
type SolutionListFilter struct {
	Status   string `query:"status" validate:"omitempty,oneof=pending mentor_review reviewed failed"`
	TaskID   uint   `query:"task_id"`
	Page     int    `query:"page"`
	PageSize int    `query:"page_size"`
}

// SolutionListResponse wraps solutions and pagination metadata.
type SolutionListResponse struct {
	Items      []SolutionResponse `json:"items"`
	Pagination Pagination         `json:"pagination"`
}

// SolutionReviewRequest carries a mentor verdict.
type SolutionReviewRequest struct {
	Feedback string `json:"feedback" validate:"required,min=1,max=10000"`
	Rating   *int   `json:"rating" validate:"omitempty,min=0,max=100"`
}
