package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/designhub-api/internal/dto"
	"github.com/noah-isme/designhub-api/internal/service"
	"github.com/noah-isme/designhub-api/internal/utils"
)

// AdminSolutionHandler exposes the mentor review surface.
type AdminSolutionHandler struct {
	service service.SolutionService
	logger  zerolog.Logger
}

// NewAdminSolutionHandler constructs the handler.
func NewAdminSolutionHandler(service service.SolutionService, logger zerolog.Logger) *AdminSolutionHandler {
	return &AdminSolutionHandler{
		service: service,
		logger:  logger.With().Str("component", "admin_solution_handler").Logger(),
	}
}

// Register binds routes under /api/admin/solutions. requeueGuard restricts re-queueing further, e.g. to admins.
func (h *AdminSolutionHandler) Register(router fiber.Router, requeueGuard fiber.Handler) {
	router.Get("", h.list)
	router.Post("/:id/review", h.review)
	if requeueGuard != nil {
		router.Post("/:id/requeue", requeueGuard, h.requeue)
	} else {
		router.Post("/:id/requeue", h.requeue)
	}
}

func (h *AdminSolutionHandler) list(c *fiber.Ctx) error {
	var filter dto.SolutionListFilter
	if err := c.QueryParser(&filter); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	result, err := h.service.List(requestContext(c), filter)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.OK(c, result.Items, "solutions retrieved", result.Pagination)
}

func (h *AdminSolutionHandler) review(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid solution id")
	}

	var payload dto.SolutionReviewRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Review(requestContext(c), id, userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "solution reviewed", result)
}

func (h *AdminSolutionHandler) requeue(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid solution id")
	}

	result, err := h.service.Requeue(requestContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "solution re-queued", result)
}

func (h *AdminSolutionHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrSolutionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "solution not found")
	case errors.Is(err, service.ErrSolutionNotAwaitingReview), errors.Is(err, service.ErrSolutionNotFailed):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(err))
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("admin solution request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
