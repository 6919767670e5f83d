package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/designhub-api/internal/dto"
	"github.com/noah-isme/designhub-api/internal/models"
	"github.com/noah-isme/designhub-api/internal/observability"
	"github.com/noah-isme/designhub-api/internal/repository"
)

var (
	// ErrBattleNotFound indicates the battle does not exist.
	ErrBattleNotFound = errors.New("battle not found")
	// ErrBattleEntryNotFound indicates the entry does not exist in the battle.
	ErrBattleEntryNotFound = errors.New("battle entry not found")
	// ErrBattleCommentNotFound indicates the comment does not exist.
	ErrBattleCommentNotFound = errors.New("battle comment not found")
	// ErrBattleWrongPhase indicates the operation is not allowed in the battle's current phase.
	ErrBattleWrongPhase = errors.New("operation not allowed in the current battle phase")
	// ErrBattleCompleted indicates the battle cannot advance any further.
	ErrBattleCompleted = errors.New("battle already completed")
	// ErrDuplicateEntry indicates the user already submitted an entry to the battle.
	ErrDuplicateEntry = errors.New("entry already submitted")
	// ErrAlreadyVoted indicates the user already voted in the battle.
	ErrAlreadyVoted = errors.New("already voted in this battle")
	// ErrOwnEntryVote indicates a user tried to vote for their own entry.
	ErrOwnEntryVote = errors.New("cannot vote for your own entry")
	// ErrEntryNotApproved indicates the entry has not passed moderation.
	ErrEntryNotApproved = errors.New("entry has not been approved")
)

// BattleConfig tunes uploads and the leaderboard cache.
type BattleConfig struct {
	MaxUploadBytes int64
	CacheTTL       time.Duration
	CachePrefix    string
}

// BattleService manages battles, entries, votes and comments.
type BattleService interface {
	List(ctx context.Context, status string, page, pageSize int) ([]dto.BattleResponse, error)
	Get(ctx context.Context, id uint, includePending bool) (dto.BattleResponse, error)
	Create(ctx context.Context, payload dto.BattleCreateRequest) (dto.BattleResponse, error)
	Advance(ctx context.Context, id uint) (dto.BattleResponse, error)
	SubmitEntry(ctx context.Context, battleID, userID uint, file *multipart.FileHeader) (dto.BattleEntryResponse, error)
	ApproveEntry(ctx context.Context, battleID, entryID uint) (dto.BattleEntryResponse, error)
	Leaderboard(ctx context.Context, battleID uint) ([]dto.LeaderboardEntry, error)
	Vote(ctx context.Context, battleID, voterID uint, payload dto.BattleVoteRequest) (dto.BattleEntryResponse, error)
	ListComments(ctx context.Context, battleID uint, page, pageSize int) ([]dto.BattleCommentResponse, error)
	AddComment(ctx context.Context, battleID, authorID uint, payload dto.BattleCommentCreateRequest) (dto.BattleCommentResponse, error)
	VoteComment(ctx context.Context, commentID, userID uint, payload dto.CommentVoteRequest) (dto.BattleCommentResponse, error)
}

type battleService struct {
	repo          repository.BattleRepository
	storage       FileStorage
	cache         *redis.Client
	live          *BattleLive
	notifications NotificationPublisher
	validator     *validator.Validate
	sanitizer     *bluemonday.Policy
	logger        zerolog.Logger
	tracer        trace.Tracer
	cfg           BattleConfig
}

// NewBattleService constructs a battle service. storage, cache and live may be nil.
func NewBattleService(
	repo repository.BattleRepository,
	storage FileStorage,
	cache *redis.Client,
	live *BattleLive,
	notifications NotificationPublisher,
	validate *validator.Validate,
	logger zerolog.Logger,
	cfg BattleConfig,
) BattleService {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 * 1024 * 1024
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	if cfg.CachePrefix == "" {
		cfg.CachePrefix = "designhub"
	}

	return &battleService{
		repo:          repo,
		storage:       storage,
		cache:         cache,
		live:          live,
		notifications: notifications,
		validator:     validate,
		sanitizer:     bluemonday.StrictPolicy(),
		logger:        logger.With().Str("component", "battle_service").Logger(),
		tracer:        otel.Tracer("github.com/noah-isme/designhub-api/internal/service/battle"),
		cfg:           cfg,
	}
}

func (s *battleService) List(ctx context.Context, status string, page, pageSize int) ([]dto.BattleResponse, error) {
	page, pageSize = normalisePage(page, pageSize)
	battles, err := s.repo.List(ctx, strings.TrimSpace(status), pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	return dto.NewBattleResponseSlice(battles), nil
}

func (s *battleService) Get(ctx context.Context, id uint, includePending bool) (dto.BattleResponse, error) {
	battle, err := s.load(ctx, id)
	if err != nil {
		return dto.BattleResponse{}, err
	}

	if !includePending {
		visible := battle.Entries[:0]
		for _, entry := range battle.Entries {
			if entry.Approved {
				visible = append(visible, entry)
			}
		}
		battle.Entries = visible
	}

	response := dto.NewBattleResponse(battle)
	leaderboard, err := s.Leaderboard(ctx, id)
	if err != nil {
		return dto.BattleResponse{}, err
	}
	response.Leaderboard = leaderboard
	return response, nil
}

func (s *battleService) Create(ctx context.Context, payload dto.BattleCreateRequest) (dto.BattleResponse, error) {
	payload.Title = strings.TrimSpace(payload.Title)
	if err := s.validator.Struct(payload); err != nil {
		return dto.BattleResponse{}, err
	}
	if payload.StartsAt != nil && payload.EndsAt != nil && !payload.EndsAt.After(*payload.StartsAt) {
		return dto.BattleResponse{}, fmt.Errorf("ends_at must be after starts_at")
	}

	battle := models.Battle{
		Title:       payload.Title,
		Description: strings.TrimSpace(s.sanitizer.Sanitize(payload.Description)),
		Status:      models.BattleStatusModeration,
		StartsAt:    payload.StartsAt,
		EndsAt:      payload.EndsAt,
	}
	if err := s.repo.Create(ctx, &battle); err != nil {
		return dto.BattleResponse{}, err
	}

	s.logger.Info().Uint("battle_id", battle.ID).Msg("battle created")
	return dto.NewBattleResponse(battle), nil
}

func (s *battleService) Advance(ctx context.Context, id uint) (dto.BattleResponse, error) {
	ctx, span := s.tracer.Start(ctx, "battles.advance", trace.WithAttributes(attribute.Int64("battle.id", int64(id))))
	defer span.End()

	battle, err := s.load(ctx, id)
	if err != nil {
		return dto.BattleResponse{}, err
	}

	next, ok := battle.NextStatus()
	if !ok {
		return dto.BattleResponse{}, ErrBattleCompleted
	}

	var winner *uint
	if next == models.BattleStatusCompleted {
		ranked, err := s.repo.Leaderboard(ctx, id)
		if err != nil {
			return dto.BattleResponse{}, err
		}
		if len(ranked) > 0 {
			winner = &ranked[0].ID
		}
	}

	updated, err := s.repo.Advance(ctx, id, battle.Status, next, winner)
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return dto.BattleResponse{}, ErrBattleWrongPhase
		}
		return dto.BattleResponse{}, err
	}

	s.invalidateLeaderboard(ctx, id)
	s.publish(ctx, dto.BattleLiveEvent{Type: dto.BattleEventStatus, BattleID: id, Status: updated.Status})
	s.notifyEntrants(ctx, updated)

	s.logger.Info().Uint("battle_id", id).Str("from", battle.Status).Str("to", updated.Status).Msg("battle advanced")
	return dto.NewBattleResponse(updated), nil
}

func (s *battleService) SubmitEntry(ctx context.Context, battleID, userID uint, file *multipart.FileHeader) (dto.BattleEntryResponse, error) {
	ctx, span := s.tracer.Start(ctx, "battles.submit_entry", trace.WithAttributes(attribute.Int64("battle.id", int64(battleID))))
	defer span.End()

	battle, err := s.load(ctx, battleID)
	if err != nil {
		return dto.BattleEntryResponse{}, err
	}
	if battle.Status != models.BattleStatusModeration {
		return dto.BattleEntryResponse{}, ErrBattleWrongPhase
	}
	for _, entry := range battle.Entries {
		if entry.UserID == userID {
			return dto.BattleEntryResponse{}, ErrDuplicateEntry
		}
	}
	if s.storage == nil {
		return dto.BattleEntryResponse{}, ErrUploadUnavailable
	}

	image, err := readImage(file, s.cfg.MaxUploadBytes)
	if err != nil {
		switch {
		case errors.Is(err, ErrUploadTooLarge):
			observability.Uploads().WithLabelValues("too_large").Inc()
		case errors.Is(err, ErrUploadTypeNotAllowed):
			observability.Uploads().WithLabelValues("rejected_type").Inc()
		}
		span.RecordError(err)
		return dto.BattleEntryResponse{}, err
	}
	span.SetAttributes(attribute.String("upload.mime", image.mimeType), attribute.Int("upload.size", len(image.payload)))

	url, err := s.storage.Upload(ctx, image.name, bytes.NewReader(image.payload))
	if err != nil {
		observability.Uploads().WithLabelValues("storage_error").Inc()
		span.RecordError(err)
		return dto.BattleEntryResponse{}, fmt.Errorf("store entry image: %w", err)
	}

	entry := models.BattleEntry{
		BattleID: battleID,
		UserID:   userID,
		ImageURL: url,
		MimeType: image.mimeType,
		Checksum: image.checksum,
	}
	if err := s.repo.CreateEntry(ctx, &entry); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return dto.BattleEntryResponse{}, ErrDuplicateEntry
		}
		return dto.BattleEntryResponse{}, err
	}

	observability.Uploads().WithLabelValues("stored").Inc()
	s.logger.Info().Uint("battle_id", battleID).Uint("entry_id", entry.ID).Uint("user_id", userID).Msg("battle entry submitted")
	return dto.NewBattleEntryResponse(entry), nil
}

func (s *battleService) ApproveEntry(ctx context.Context, battleID, entryID uint) (dto.BattleEntryResponse, error) {
	entry, err := s.repo.ApproveEntry(ctx, battleID, entryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.BattleEntryResponse{}, ErrBattleEntryNotFound
		}
		return dto.BattleEntryResponse{}, err
	}
	s.invalidateLeaderboard(ctx, battleID)
	return dto.NewBattleEntryResponse(entry), nil
}

func (s *battleService) Leaderboard(ctx context.Context, battleID uint) ([]dto.LeaderboardEntry, error) {
	key := s.leaderboardKey(battleID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key).Result(); err == nil {
			var leaderboard []dto.LeaderboardEntry
			if json.Unmarshal([]byte(cached), &leaderboard) == nil {
				return leaderboard, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read leaderboard cache")
		}
	}

	entries, err := s.repo.Leaderboard(ctx, battleID)
	if err != nil {
		return nil, err
	}
	leaderboard := dto.NewLeaderboard(entries)

	if s.cache != nil {
		if payload, err := json.Marshal(leaderboard); err == nil {
			if err := s.cache.Set(ctx, key, payload, s.cfg.CacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store leaderboard cache")
			}
		}
	}
	return leaderboard, nil
}

func (s *battleService) Vote(ctx context.Context, battleID, voterID uint, payload dto.BattleVoteRequest) (dto.BattleEntryResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.BattleEntryResponse{}, err
	}

	battle, err := s.load(ctx, battleID)
	if err != nil {
		return dto.BattleEntryResponse{}, err
	}
	if battle.Status != models.BattleStatusVoting {
		return dto.BattleEntryResponse{}, ErrBattleWrongPhase
	}

	entry, err := s.repo.GetEntry(ctx, battleID, payload.EntryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.BattleEntryResponse{}, ErrBattleEntryNotFound
		}
		return dto.BattleEntryResponse{}, err
	}
	if !entry.Approved {
		return dto.BattleEntryResponse{}, ErrEntryNotApproved
	}
	if entry.UserID == voterID {
		return dto.BattleEntryResponse{}, ErrOwnEntryVote
	}

	updated, err := s.repo.CastVote(ctx, &models.BattleVote{BattleID: battleID, VoterID: voterID, EntryID: entry.ID})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return dto.BattleEntryResponse{}, ErrAlreadyVoted
		}
		return dto.BattleEntryResponse{}, err
	}

	s.invalidateLeaderboard(ctx, battleID)
	s.publish(ctx, dto.BattleLiveEvent{Type: dto.BattleEventVote, BattleID: battleID, EntryID: updated.ID, VotesCount: updated.VotesCount})
	return dto.NewBattleEntryResponse(updated), nil
}

func (s *battleService) ListComments(ctx context.Context, battleID uint, page, pageSize int) ([]dto.BattleCommentResponse, error) {
	if _, err := s.load(ctx, battleID); err != nil {
		return nil, err
	}
	page, pageSize = normalisePage(page, pageSize)
	comments, err := s.repo.ListComments(ctx, battleID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	return dto.NewBattleCommentResponseSlice(comments), nil
}

func (s *battleService) AddComment(ctx context.Context, battleID, authorID uint, payload dto.BattleCommentCreateRequest) (dto.BattleCommentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.BattleCommentResponse{}, err
	}
	if _, err := s.load(ctx, battleID); err != nil {
		return dto.BattleCommentResponse{}, err
	}

	clean := strings.TrimSpace(s.sanitizer.Sanitize(payload.Content))
	if clean == "" {
		return dto.BattleCommentResponse{}, fmt.Errorf("comment content empty after sanitization")
	}

	comment := models.BattleComment{BattleID: battleID, AuthorID: authorID, Content: clean}
	if err := s.repo.CreateComment(ctx, &comment); err != nil {
		return dto.BattleCommentResponse{}, err
	}

	s.publish(ctx, dto.BattleLiveEvent{Type: dto.BattleEventComment, BattleID: battleID, CommentID: comment.ID})
	return dto.NewBattleCommentResponse(comment), nil
}

func (s *battleService) VoteComment(ctx context.Context, commentID, userID uint, payload dto.CommentVoteRequest) (dto.BattleCommentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.BattleCommentResponse{}, err
	}

	comment, err := s.repo.VoteComment(ctx, commentID, userID, payload.Value)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.BattleCommentResponse{}, ErrBattleCommentNotFound
		}
		return dto.BattleCommentResponse{}, err
	}

	s.publish(ctx, dto.BattleLiveEvent{
		Type:      dto.BattleEventComment,
		BattleID:  comment.BattleID,
		CommentID: comment.ID,
		Upvotes:   comment.Upvotes,
		Downvotes: comment.Downvotes,
	})
	return dto.NewBattleCommentResponse(comment), nil
}

func (s *battleService) load(ctx context.Context, id uint) (models.Battle, error) {
	battle, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Battle{}, ErrBattleNotFound
		}
		return models.Battle{}, err
	}
	return battle, nil
}

func (s *battleService) leaderboardKey(battleID uint) string {
	return fmt.Sprintf("%s:battle:%d:leaderboard", s.cfg.CachePrefix, battleID)
}

func (s *battleService) invalidateLeaderboard(ctx context.Context, battleID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, s.leaderboardKey(battleID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("battle_id", battleID).Msg("failed to invalidate leaderboard cache")
	}
}

func (s *battleService) publish(ctx context.Context, event dto.BattleLiveEvent) {
	if s.live == nil {
		return
	}
	s.live.Publish(ctx, event)
}

func (s *battleService) notifyEntrants(ctx context.Context, battle models.Battle) {
	if s.notifications == nil {
		return
	}

	message := fmt.Sprintf("Батл «%s» перешёл в фазу %s", battle.Title, battle.Status)
	for _, entry := range battle.Entries {
		metadata := map[string]interface{}{
			"battle_id": battle.ID,
			"status":    battle.Status,
			"entry_id":  entry.ID,
		}
		if battle.WinnerEntryID != nil {
			metadata["winner"] = *battle.WinnerEntryID == entry.ID
		}
		if _, err := s.notifications.Publish(ctx, dto.NotificationCreateRequest{
			UserID:   entry.UserID,
			Type:     models.NotificationBattleAdvanced,
			Message:  message,
			Metadata: metadata,
		}); err != nil {
			s.logger.Warn().Err(err).Uint("battle_id", battle.ID).Uint("user_id", entry.UserID).Msg("failed to notify entrant")
		}
	}
}
