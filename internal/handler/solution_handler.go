package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/designhub-api/internal/dto"
	"github.com/noah-isme/designhub-api/internal/service"
	"github.com/noah-isme/designhub-api/internal/utils"
)

// SolutionHandler serves the submission and polling endpoints of a task.
type SolutionHandler struct {
	service service.SolutionService
	logger  zerolog.Logger
}

// NewSolutionHandler constructs a solution handler.
func NewSolutionHandler(service service.SolutionService, logger zerolog.Logger) *SolutionHandler {
	return &SolutionHandler{
		service: service,
		logger:  logger.With().Str("component", "solution_handler").Logger(),
	}
}

// Register binds routes under /api/tasks/:taskId/solutions. Extra handlers run before submit, e.g. a rate limiter.
func (h *SolutionHandler) Register(router fiber.Router, submitMiddleware ...fiber.Handler) {
	submit := append(append([]fiber.Handler{}, submitMiddleware...), h.submit)
	router.Post("", submit...)
	router.Get("/my", h.mine)
	router.Get("", h.history)
}

func (h *SolutionHandler) submit(c *fiber.Ctx) error {
	taskID, err := parseUintParam(c, "taskId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}

	var payload dto.SolutionSubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	userID := callerID(c, payload.UserID)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "profile not found")
	}

	result, err := h.service.Submit(requestContext(c), userID, taskID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *SolutionHandler) mine(c *fiber.Ctx) error {
	taskID, err := parseUintParam(c, "taskId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}

	userID := callerID(c, nil)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "profile not found")
	}

	result, err := h.service.GetMine(requestContext(c), taskID, userID)
	if err != nil {
		return h.handleError(c, err)
	}

	return c.JSON(result)
}

func (h *SolutionHandler) history(c *fiber.Ctx) error {
	taskID, err := parseUintParam(c, "taskId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}

	userID := callerID(c, nil)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "profile not found")
	}

	items, err := h.service.History(requestContext(c), taskID, userID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "solutions retrieved", items)
}

func (h *SolutionHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrProfileNotFound):
		return utils.SendError(c, fiber.StatusUnauthorized, "profile not found")
	case errors.Is(err, service.ErrTaskNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "task not found")
	case errors.Is(err, service.ErrCharLimitExceeded):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrUpgradeRequired):
		return utils.SendError(c, fiber.StatusPaymentRequired, "upgrade required")
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(err))
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("solution request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

// callerID prefers the authenticated subject, then the userId carried by the body or query.
func callerID(c *fiber.Ctx, bodyUserID *uint) uint {
	if id := userIDFromContext(c); id > 0 {
		return id
	}
	if bodyUserID != nil && *bodyUserID > 0 {
		return *bodyUserID
	}
	if id, ok := parseUintQuery(c, "userId"); ok {
		return id
	}
	return 0
}
