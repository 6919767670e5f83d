package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/designhub-api/internal/dto"
	"github.com/noah-isme/designhub-api/internal/service"
	"github.com/noah-isme/designhub-api/internal/utils"
)

// BattleHandler serves design battles, their entries, votes, comments and live tallies.
type BattleHandler struct {
	service service.BattleService
	live    *service.BattleLive
	logger  zerolog.Logger
}

// NewBattleHandler constructs a battle handler. live may be nil, which disables the websocket route.
func NewBattleHandler(service service.BattleService, live *service.BattleLive, logger zerolog.Logger) *BattleHandler {
	return &BattleHandler{
		service: service,
		live:    live,
		logger:  logger.With().Str("component", "battle_handler").Logger(),
	}
}

// RegisterPublic binds routes readable without authentication.
func (h *BattleHandler) RegisterPublic(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Get("/:id/leaderboard", h.leaderboard)
	router.Get("/:id/comments", h.listComments)
	if h.live != nil {
		router.Get("/:id/live", h.upgrade, websocket.New(h.serveLive))
	}
}

// Register binds routes that act on behalf of the caller.
func (h *BattleHandler) Register(router fiber.Router) {
	router.Post("/:id/entries", h.submitEntry)
	router.Post("/:id/votes", h.vote)
	router.Post("/:id/comments", h.addComment)
	router.Post("/comments/:commentId/vote", h.voteComment)
}

// RegisterAdmin binds moderation routes.
func (h *BattleHandler) RegisterAdmin(router fiber.Router) {
	router.Post("", h.create)
	router.Get("/:id", h.getWithPending)
	router.Post("/:id/advance", h.advance)
	router.Patch("/:id/entries/:entryId/approve", h.approve)
}

func (h *BattleHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}

	battles, err := h.service.List(requestContext(c), c.Query("status"), page, pageSize)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "battles retrieved", battles)
}

func (h *BattleHandler) get(c *fiber.Ctx) error {
	return h.respondBattle(c, false)
}

func (h *BattleHandler) getWithPending(c *fiber.Ctx) error {
	return h.respondBattle(c, true)
}

func (h *BattleHandler) respondBattle(c *fiber.Ctx, includePending bool) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid battle id")
	}

	battle, err := h.service.Get(requestContext(c), id, includePending)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "battle retrieved", battle)
}

func (h *BattleHandler) leaderboard(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid battle id")
	}

	board, err := h.service.Leaderboard(requestContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "leaderboard retrieved", board)
}

func (h *BattleHandler) create(c *fiber.Ctx) error {
	var payload dto.BattleCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	battle, err := h.service.Create(requestContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "battle created", battle)
}

func (h *BattleHandler) advance(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid battle id")
	}

	battle, err := h.service.Advance(requestContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "battle advanced", battle)
}

func (h *BattleHandler) submitEntry(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid battle id")
	}

	// A missing part is reported by the service as ErrUploadRequired.
	file, _ := c.FormFile("file")

	entry, err := h.service.SubmitEntry(requestContext(c), id, userID, file)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "entry submitted", entry)
}

func (h *BattleHandler) approve(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid battle id")
	}
	entryID, err := parseUintParam(c, "entryId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid entry id")
	}

	entry, err := h.service.ApproveEntry(requestContext(c), id, entryID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "entry approved", entry)
}

func (h *BattleHandler) vote(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid battle id")
	}

	var payload dto.BattleVoteRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	entry, err := h.service.Vote(requestContext(c), id, userID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "vote recorded", entry)
}

func (h *BattleHandler) listComments(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid battle id")
	}
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}

	comments, err := h.service.ListComments(requestContext(c), id, page, pageSize)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "comments retrieved", comments)
}

func (h *BattleHandler) addComment(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid battle id")
	}

	var payload dto.BattleCommentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	comment, err := h.service.AddComment(requestContext(c), id, userID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "comment added", comment)
}

func (h *BattleHandler) voteComment(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	commentID, err := parseUintParam(c, "commentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid comment id")
	}

	var payload dto.CommentVoteRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	comment, err := h.service.VoteComment(requestContext(c), commentID, userID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "comment vote recorded", comment)
}

func (h *BattleHandler) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid battle id")
	}
	if _, err := h.service.Get(requestContext(c), id, false); err != nil {
		return h.handleError(c, err)
	}
	c.Locals("battle_id", id)
	return c.Next()
}

func (h *BattleHandler) serveLive(conn *websocket.Conn) {
	battleID, _ := conn.Locals("battle_id").(uint)
	if battleID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "battle id missing"))
		_ = conn.Close()
		return
	}
	h.live.ServeConnection(conn, battleID)
}

func (h *BattleHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrBattleNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "battle not found")
	case errors.Is(err, service.ErrBattleEntryNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "entry not found")
	case errors.Is(err, service.ErrBattleCommentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "comment not found")
	case errors.Is(err, service.ErrBattleWrongPhase),
		errors.Is(err, service.ErrBattleCompleted),
		errors.Is(err, service.ErrDuplicateEntry),
		errors.Is(err, service.ErrAlreadyVoted):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrOwnEntryVote):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrEntryNotApproved):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrUploadRequired), errors.Is(err, service.ErrUploadTypeNotAllowed):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUploadTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, service.ErrUploadUnavailable):
		return utils.SendError(c, fiber.StatusServiceUnavailable, err.Error())
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(err))
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("battle request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
