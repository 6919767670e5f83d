package dto

import "github.com/noah-isme/designhub-api/internal/models"

// ProfileResponse describes the caller's profile and plan allowances.
type ProfileResponse struct {
	ID          uint   `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Plan        string `json:"plan"`
	CharLimit   int    `json:"char_limit"`
	MentorCheck bool   `json:"mentor_check"`
}

// ProfilePlanRequest changes a profile's plan.
type ProfilePlanRequest struct {
	Plan string `json:"plan" validate:"required,oneof=free pro"`
}

// NewProfileResponse converts a profile and its character limit into a DTO.
func NewProfileResponse(profile models.Profile, charLimit int) ProfileResponse {
	return ProfileResponse{
		ID:          profile.ID,
		Email:       profile.Email,
		DisplayName: profile.DisplayName,
		Role:        profile.Role,
		Plan:        profile.Plan,
		CharLimit:   charLimit,
		MentorCheck: profile.IsPro(),
	}
}
