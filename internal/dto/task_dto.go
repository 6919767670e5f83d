package dto

import (
	"time"

	"github.com/noah-isme/designhub-api/internal/models"
)

// Pagination describes pagination metadata for list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalItems int `json:"total_items"`
}

// TaskFilter defines query parameters for listing tasks.
type TaskFilter struct {
	Category   string `query:"category"`
	Difficulty string `query:"difficulty"`
	Search     string `query:"search"`
	Page       int    `query:"page"`
	PageSize   int    `query:"page_size"`
}

// TaskResponse represents a practice task returned by the API.
type TaskResponse struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Difficulty  string    `json:"difficulty"`
	Category    string    `json:"category"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TaskListResponse wraps tasks and pagination metadata.
type TaskListResponse struct {
	Items      []TaskResponse `json:"items"`
	Pagination Pagination     `json:"pagination"`
}

// TaskCreateRequest is the admin payload for a new task.
type TaskCreateRequest struct {
	Title       string `json:"title" validate:"required,min=3,max=255"`
	Description string `json:"description" validate:"required,min=10"`
	Difficulty  string `json:"difficulty" validate:"omitempty,oneof=junior middle senior"`
	Category    string `json:"category" validate:"omitempty,max=64"`
	IsPublished *bool  `json:"is_published"`
}

// TaskUpdateRequest patches an existing task.
type TaskUpdateRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=3,max=255"`
	Description *string `json:"description" validate:"omitempty,min=10"`
	Difficulty  *string `json:"difficulty" validate:"omitempty,oneof=junior middle senior"`
	Category    *string `json:"category" validate:"omitempty,max=64"`
	IsPublished *bool   `json:"is_published"`
}

// NewTaskResponse builds a response DTO from the model.
func NewTaskResponse(task models.Task) TaskResponse {
	return TaskResponse{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Difficulty:  task.Difficulty,
		Category:    task.Category,
		IsPublished: task.IsPublished,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}
