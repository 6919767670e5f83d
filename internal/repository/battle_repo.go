package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/designhub-api/internal/models"
)

// BattleRepository persists battles, entries, votes and comments.
type BattleRepository interface {
	List(ctx context.Context, status string, limit, offset int) ([]models.Battle, error)
	Get(ctx context.Context, id uint) (models.Battle, error)
	Create(ctx context.Context, battle *models.Battle) error
	// Advance moves the battle from one phase to the next, setting the winner when given.
	Advance(ctx context.Context, id uint, from, to string, winnerEntryID *uint) (models.Battle, error)

	CreateEntry(ctx context.Context, entry *models.BattleEntry) error
	GetEntry(ctx context.Context, battleID, entryID uint) (models.BattleEntry, error)
	ApproveEntry(ctx context.Context, battleID, entryID uint) (models.BattleEntry, error)
	Leaderboard(ctx context.Context, battleID uint) ([]models.BattleEntry, error)

	// CastVote records the vote and bumps the entry tally. A second vote by the same voter returns ErrDuplicate.
	CastVote(ctx context.Context, vote *models.BattleVote) (models.BattleEntry, error)
	HasVoted(ctx context.Context, battleID, voterID uint) (bool, error)

	CreateComment(ctx context.Context, comment *models.BattleComment) error
	GetComment(ctx context.Context, id uint) (models.BattleComment, error)
	ListComments(ctx context.Context, battleID uint, limit, offset int) ([]models.BattleComment, error)
	// VoteComment upserts the user's vote (value 0 removes it) and recomputes the comment tallies.
	VoteComment(ctx context.Context, commentID, userID uint, value int) (models.BattleComment, error)
}

// NewBattleRepository constructs a GORM-backed battle repository.
func NewBattleRepository(db *gorm.DB) BattleRepository {
	return &battleRepository{db: db}
}

type battleRepository struct {
	db *gorm.DB
}

func (r *battleRepository) List(ctx context.Context, status string, limit, offset int) ([]models.Battle, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	db := r.db.WithContext(ctx).Model(&models.Battle{})
	if status != "" {
		db = db.Where("status = ?", status)
	}

	var battles []models.Battle
	if err := db.Order("created_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&battles).Error; err != nil {
		return nil, err
	}
	return battles, nil
}

func (r *battleRepository) Get(ctx context.Context, id uint) (models.Battle, error) {
	var battle models.Battle
	if err := r.db.WithContext(ctx).Preload("Entries", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).First(&battle, id).Error; err != nil {
		return models.Battle{}, err
	}
	return battle, nil
}

func (r *battleRepository) Create(ctx context.Context, battle *models.Battle) error {
	return r.db.WithContext(ctx).Create(battle).Error
}

func (r *battleRepository) Advance(ctx context.Context, id uint, from, to string, winnerEntryID *uint) (models.Battle, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"status": to}
		if winnerEntryID != nil {
			updates["winner_entry_id"] = *winnerEntryID
		}
		result := tx.Model(&models.Battle{}).Where("id = ? AND status = ?", id, from).Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrStaleState
		}
		return nil
	})
	if err != nil {
		return models.Battle{}, err
	}
	return r.Get(ctx, id)
}

func (r *battleRepository) CreateEntry(ctx context.Context, entry *models.BattleEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.BattleEntry{}).
			Where("battle_id = ? AND user_id = ?", entry.BattleID, entry.UserID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicate
		}
		return translateDuplicate(tx.Create(entry).Error)
	})
}

func (r *battleRepository) GetEntry(ctx context.Context, battleID, entryID uint) (models.BattleEntry, error) {
	var entry models.BattleEntry
	if err := r.db.WithContext(ctx).Where("id = ? AND battle_id = ?", entryID, battleID).First(&entry).Error; err != nil {
		return models.BattleEntry{}, err
	}
	return entry, nil
}

func (r *battleRepository) ApproveEntry(ctx context.Context, battleID, entryID uint) (models.BattleEntry, error) {
	result := r.db.WithContext(ctx).Model(&models.BattleEntry{}).
		Where("id = ? AND battle_id = ?", entryID, battleID).
		Update("approved", true)
	if result.Error != nil {
		return models.BattleEntry{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.BattleEntry{}, gorm.ErrRecordNotFound
	}
	return r.GetEntry(ctx, battleID, entryID)
}

func (r *battleRepository) Leaderboard(ctx context.Context, battleID uint) ([]models.BattleEntry, error) {
	var entries []models.BattleEntry
	if err := r.db.WithContext(ctx).
		Where("battle_id = ? AND approved = ?", battleID, true).
		Order("votes_count DESC").
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *battleRepository) CastVote(ctx context.Context, vote *models.BattleVote) (models.BattleEntry, error) {
	var entry models.BattleEntry
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.BattleVote{}).
			Where("battle_id = ? AND voter_id = ?", vote.BattleID, vote.VoterID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicate
		}
		if err := tx.Create(vote).Error; err != nil {
			return translateDuplicate(err)
		}
		if err := tx.Model(&models.BattleEntry{}).
			Where("id = ?", vote.EntryID).
			UpdateColumn("votes_count", gorm.Expr("votes_count + 1")).Error; err != nil {
			return err
		}
		return tx.First(&entry, vote.EntryID).Error
	})
	if err != nil {
		return models.BattleEntry{}, err
	}
	return entry, nil
}

func (r *battleRepository) HasVoted(ctx context.Context, battleID, voterID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.BattleVote{}).
		Where("battle_id = ? AND voter_id = ?", battleID, voterID).
		Count(&count).Error
	return count > 0, err
}

func (r *battleRepository) CreateComment(ctx context.Context, comment *models.BattleComment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *battleRepository) GetComment(ctx context.Context, id uint) (models.BattleComment, error) {
	var comment models.BattleComment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		return models.BattleComment{}, err
	}
	return comment, nil
}

func (r *battleRepository) ListComments(ctx context.Context, battleID uint, limit, offset int) ([]models.BattleComment, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var comments []models.BattleComment
	if err := r.db.WithContext(ctx).
		Where("battle_id = ?", battleID).
		Order("(upvotes - downvotes) DESC").
		Order("created_at ASC").
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}

func (r *battleRepository) VoteComment(ctx context.Context, commentID, userID uint, value int) (models.BattleComment, error) {
	var comment models.BattleComment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&comment, commentID).Error; err != nil {
			return err
		}

		var existing models.CommentVote
		err := tx.Where("comment_id = ? AND user_id = ?", commentID, userID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if value != 0 {
				if err := tx.Create(&models.CommentVote{CommentID: commentID, UserID: userID, Value: value}).Error; err != nil {
					return translateDuplicate(err)
				}
			}
		case err != nil:
			return err
		case value == 0:
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
		case existing.Value != value:
			if err := tx.Model(&existing).Update("value", value).Error; err != nil {
				return err
			}
		}

		var upvotes, downvotes int64
		if err := tx.Model(&models.CommentVote{}).Where("comment_id = ? AND value > 0", commentID).Count(&upvotes).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.CommentVote{}).Where("comment_id = ? AND value < 0", commentID).Count(&downvotes).Error; err != nil {
			return err
		}

		comment.Upvotes = int(upvotes)
		comment.Downvotes = int(downvotes)
		return tx.Model(&comment).Updates(map[string]interface{}{
			"upvotes":   comment.Upvotes,
			"downvotes": comment.Downvotes,
		}).Error
	})
	if err != nil {
		return models.BattleComment{}, err
	}
	return comment, nil
}
