package dto

import (
	"time"

	"github.com/noah-isme/designhub-api/internal/models"
)

// BattleCreateRequest opens a new battle in the moderation phase.
type BattleCreateRequest struct {
	Title       string     `json:"title" validate:"required,min=3,max=255"`
	Description string     `json:"description" validate:"omitempty,max=5000"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
}

// BattleResponse represents a battle with its entries.
type BattleResponse struct {
	ID            uint                  `json:"id"`
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	Status        string                `json:"status"`
	StartsAt      *time.Time            `json:"starts_at,omitempty"`
	EndsAt        *time.Time            `json:"ends_at,omitempty"`
	WinnerEntryID *uint                 `json:"winner_entry_id,omitempty"`
	Entries       []BattleEntryResponse `json:"entries,omitempty"`
	Leaderboard   []LeaderboardEntry    `json:"leaderboard,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// BattleEntryResponse describes an uploaded entry.
type BattleEntryResponse struct {
	ID         uint      `json:"id"`
	BattleID   uint      `json:"battle_id"`
	UserID     uint      `json:"user_id"`
	ImageURL   string    `json:"image_url"`
	MimeType   string    `json:"mime_type"`
	Approved   bool      `json:"approved"`
	VotesCount int       `json:"votes_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// LeaderboardEntry is a ranked approved entry.
type LeaderboardEntry struct {
	Rank       int    `json:"rank"`
	EntryID    uint   `json:"entry_id"`
	UserID     uint   `json:"user_id"`
	ImageURL   string `json:"image_url"`
	VotesCount int    `json:"votes_count"`
}

// BattleVoteRequest casts the caller's single vote.
type BattleVoteRequest struct {
	EntryID uint `json:"entryId" validate:"required"`
}

// BattleCommentCreateRequest adds a comment to a battle.
type BattleCommentCreateRequest struct {
	Content string `json:"content" validate:"required,min=1,max=2000"`
}

// CommentVoteRequest votes a comment up (1), down (-1) or clears the vote (0).
type CommentVoteRequest struct {
	Value int `json:"value" validate:"oneof=-1 0 1"`
}

// BattleCommentResponse is a serialized comment with its tallies.
type BattleCommentResponse struct {
	ID        uint      `json:"id"`
	BattleID  uint      `json:"battle_id"`
	AuthorID  uint      `json:"author_id"`
	Content   string    `json:"content"`
	Upvotes   int       `json:"upvotes"`
	Downvotes int       `json:"downvotes"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// BattleLiveEvent is pushed to live subscribers when tallies change.
type BattleLiveEvent struct {
	Type       string    `json:"type"`
	BattleID   uint      `json:"battle_id"`
	EntryID    uint      `json:"entry_id,omitempty"`
	VotesCount int       `json:"votes_count,omitempty"`
	CommentID  uint      `json:"comment_id,omitempty"`
	Upvotes    int       `json:"upvotes,omitempty"`
	Downvotes  int       `json:"downvotes,omitempty"`
	Status     string    `json:"status,omitempty"`
	SentAt     time.Time `json:"sent_at"`
}

// Live event types.
const (
	BattleEventVote    = "vote"
	BattleEventComment = "comment"
	BattleEventStatus  = "status"
)

// NewBattleResponse converts a battle into a DTO.
func NewBattleResponse(battle models.Battle) BattleResponse {
	response := BattleResponse{
		ID:            battle.ID,
		Title:         battle.Title,
		Description:   battle.Description,
		Status:        battle.Status,
		StartsAt:      battle.StartsAt,
		EndsAt:        battle.EndsAt,
		WinnerEntryID: battle.WinnerEntryID,
		CreatedAt:     battle.CreatedAt,
		UpdatedAt:     battle.UpdatedAt,
	}
	if len(battle.Entries) > 0 {
		response.Entries = make([]BattleEntryResponse, 0, len(battle.Entries))
		for _, entry := range battle.Entries {
			response.Entries = append(response.Entries, NewBattleEntryResponse(entry))
		}
	}
	return response
}

// NewBattleResponseSlice converts battles into DTOs.
func NewBattleResponseSlice(items []models.Battle) []BattleResponse {
	out := make([]BattleResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewBattleResponse(item))
	}
	return out
}

// NewBattleEntryResponse converts an entry into a DTO.
func NewBattleEntryResponse(entry models.BattleEntry) BattleEntryResponse {
	return BattleEntryResponse{
		ID:         entry.ID,
		BattleID:   entry.BattleID,
		UserID:     entry.UserID,
		ImageURL:   entry.ImageURL,
		MimeType:   entry.MimeType,
		Approved:   entry.Approved,
		VotesCount: entry.VotesCount,
		CreatedAt:  entry.CreatedAt,
	}
}

// NewLeaderboard ranks entries already sorted by votes.
func NewLeaderboard(entries []models.BattleEntry) []LeaderboardEntry {
	out := make([]LeaderboardEntry, 0, len(entries))
	for i, entry := range entries {
		out = append(out, LeaderboardEntry{
			Rank:       i + 1,
			EntryID:    entry.ID,
			UserID:     entry.UserID,
			ImageURL:   entry.ImageURL,
			VotesCount: entry.VotesCount,
		})
	}
	return out
}

// NewBattleCommentResponse converts a comment into a DTO.
func NewBattleCommentResponse(comment models.BattleComment) BattleCommentResponse {
	return BattleCommentResponse{
		ID:        comment.ID,
		BattleID:  comment.BattleID,
		AuthorID:  comment.AuthorID,
		Content:   comment.Content,
		Upvotes:   comment.Upvotes,
		Downvotes: comment.Downvotes,
		Score:     comment.Score(),
		CreatedAt: comment.CreatedAt,
	}
}

// NewBattleCommentResponseSlice converts comments into DTOs.
func NewBattleCommentResponseSlice(items []models.BattleComment) []BattleCommentResponse {
	out := make([]BattleCommentResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewBattleCommentResponse(item))
	}
	return out
}
