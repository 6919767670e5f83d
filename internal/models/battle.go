package models

import "time"

// Battle phases, forward-only.
const (
	BattleStatusModeration = "moderation"
	BattleStatusVoting     = "voting"
	BattleStatusCompleted  = "completed"
)

// Battle is a peer image-submission contest.
type Battle struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	Title         string        `gorm:"size:255;not null" json:"title"`
	Description   string        `gorm:"type:text" json:"description"`
	Status        string        `gorm:"size:32;not null;index" json:"status"`
	StartsAt      *time.Time    `json:"starts_at"`
	EndsAt        *time.Time    `json:"ends_at"`
	WinnerEntryID *uint         `json:"winner_entry_id"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	Entries       []BattleEntry `json:"entries"`
}

// NextStatus returns the phase that follows the current one.
func (b Battle) NextStatus() (string, bool) {
	switch b.Status {
	case BattleStatusModeration:
		return BattleStatusVoting, true
	case BattleStatusVoting:
		return BattleStatusCompleted, true
	default:
		return "", false
	}
}

// BattleEntry is a single image submitted to a battle.
type BattleEntry struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	BattleID   uint      `gorm:"not null;uniqueIndex:idx_battle_entry_owner,priority:1" json:"battle_id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_battle_entry_owner,priority:2" json:"user_id"`
	ImageURL   string    `gorm:"size:1024;not null" json:"image_url"`
	MimeType   string    `gorm:"size:64" json:"mime_type"`
	Checksum   string    `gorm:"size:64" json:"checksum"`
	Approved   bool      `gorm:"not null;default:false" json:"approved"`
	VotesCount int       `gorm:"not null;default:0" json:"votes_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// BattleVote records a single voter's choice. One per voter per battle.
type BattleVote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BattleID  uint      `gorm:"not null;uniqueIndex:idx_battle_vote_once,priority:1" json:"battle_id"`
	VoterID   uint      `gorm:"not null;uniqueIndex:idx_battle_vote_once,priority:2" json:"voter_id"`
	EntryID   uint      `gorm:"not null;index" json:"entry_id"`
	CreatedAt time.Time `json:"created_at"`
}

// BattleComment is a comment left on a battle.
type BattleComment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BattleID  uint      `gorm:"not null;index" json:"battle_id"`
	AuthorID  uint      `gorm:"not null;index" json:"author_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Upvotes   int       `gorm:"not null;default:0" json:"upvotes"`
	Downvotes int       `gorm:"not null;default:0" json:"downvotes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Score is the net tally of the comment.
func (c BattleComment) Score() int {
	return c.Upvotes - c.Downvotes
}

// CommentVote is a user's up (+1) or down (-1) vote on a comment.
type CommentVote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CommentID uint      `gorm:"not null;uniqueIndex:idx_comment_vote_once,priority:1" json:"comment_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_comment_vote_once,priority:2" json:"user_id"`
	Value     int       `gorm:"not null" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
