package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/designhub-api/internal/dto"
	"github.com/noah-isme/designhub-api/internal/service"
	"github.com/noah-isme/designhub-api/internal/utils"
)

// MentorHandler exposes mentor discovery and slot bookings.
type MentorHandler struct {
	service service.MentorService
	logger  zerolog.Logger
}

// NewMentorHandler constructs a mentor handler.
func NewMentorHandler(service service.MentorService, logger zerolog.Logger) *MentorHandler {
	return &MentorHandler{
		service: service,
		logger:  logger.With().Str("component", "mentor_handler").Logger(),
	}
}

// Register binds /api/mentors routes.
func (h *MentorHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("/:id/bookings", h.book)
}

// RegisterBookings binds /api/bookings routes.
func (h *MentorHandler) RegisterBookings(router fiber.Router) {
	router.Get("/me", h.myBookings)
	router.Post("/:bookingId/cancel", h.cancel)
}

func (h *MentorHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}

	mentors, err := h.service.List(requestContext(c), page, pageSize)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "mentors retrieved", mentors)
}

func (h *MentorHandler) book(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	mentorID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid mentor id")
	}

	var payload dto.BookingCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	booking, err := h.service.Book(requestContext(c), mentorID, userID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "booking created", booking)
}

func (h *MentorHandler) myBookings(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	bookings, err := h.service.MyBookings(requestContext(c), userID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "bookings retrieved", bookings)
}

func (h *MentorHandler) cancel(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	bookingID, err := parseUintParam(c, "bookingId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid booking id")
	}

	booking, err := h.service.Cancel(requestContext(c), bookingID, userID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "booking cancelled", booking)
}

func (h *MentorHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrMentorNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "mentor not found")
	case errors.Is(err, service.ErrBookingNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "booking not found")
	case errors.Is(err, service.ErrSlotTaken), errors.Is(err, service.ErrBookingNotActive):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidSlot), errors.Is(err, service.ErrOwnMentorBooking):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(err))
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("mentor request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
