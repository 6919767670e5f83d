package handler_test

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/designhub-api/internal/dto"
	"github.com/noah-isme/designhub-api/internal/handler"
	"github.com/noah-isme/designhub-api/internal/service"
)

type mockMentorService struct {
	booking     dto.BookingResponse
	err         error
	lastMentor  uint
	lastUser    uint
	lastPayload dto.BookingCreateRequest
}

func (m *mockMentorService) List(context.Context, int, int) ([]dto.MentorResponse, error) {
	return []dto.MentorResponse{{ID: 1, DisplayName: "Ира"}}, m.err
}

func (m *mockMentorService) Book(_ context.Context, mentorID, userID uint, payload dto.BookingCreateRequest) (dto.BookingResponse, error) {
	m.lastMentor, m.lastUser, m.lastPayload = mentorID, userID, payload
	return m.booking, m.err
}

func (m *mockMentorService) MyBookings(context.Context, uint) ([]dto.BookingResponse, error) {
	return []dto.BookingResponse{m.booking}, m.err
}

func (m *mockMentorService) Cancel(_ context.Context, _ uint, userID uint) (dto.BookingResponse, error) {
	m.lastUser = userID
	return m.booking, m.err
}

func newMentorApp(svc service.MentorService, userID uint) *fiber.App {
	app := fiber.New()
	h := handler.NewMentorHandler(svc, zerolog.New(io.Discard))
	h.Register(app.Group("/api/mentors", asUser(userID, "")))
	h.RegisterBookings(app.Group("/api/bookings", asUser(userID, "")))
	return app
}

func TestMentorHandler_Book(t *testing.T) {
	start := time.Date(2030, 1, 2, 10, 0, 0, 0, time.UTC)
	svc := &mockMentorService{booking: dto.BookingResponse{ID: 4, MentorID: 2, Status: "booked"}}
	app := newMentorApp(svc, 7)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/mentors/2/bookings", map[string]interface{}{
		"slotStart": start,
		"slotEnd":   start.Add(time.Hour),
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, uint(2), svc.lastMentor)
	require.Equal(t, uint(7), svc.lastUser)
	require.True(t, svc.lastPayload.SlotStart.Equal(start))
}

func TestMentorHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{err: service.ErrMentorNotFound, status: fiber.StatusNotFound},
		{err: service.ErrSlotTaken, status: fiber.StatusConflict},
		{err: service.ErrInvalidSlot, status: fiber.StatusUnprocessableEntity},
		{err: service.ErrOwnMentorBooking, status: fiber.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			app := newMentorApp(&mockMentorService{err: tc.err}, 7)
			resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/mentors/2/bookings", map[string]interface{}{}))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestMentorHandler_Cancel(t *testing.T) {
	app := newMentorApp(&mockMentorService{err: service.ErrBookingNotActive}, 7)
	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/bookings/4/cancel", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	svc := &mockMentorService{booking: dto.BookingResponse{ID: 4, Status: "cancelled"}}
	app = newMentorApp(svc, 7)
	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/bookings/4/cancel", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, uint(7), svc.lastUser)
}

func TestMentorHandler_RequiresCaller(t *testing.T) {
	app := fiber.New()
	h := handler.NewMentorHandler(&mockMentorService{}, zerolog.New(io.Discard))
	h.Register(app.Group("/api/mentors"))
	h.RegisterBookings(app.Group("/api/bookings"))

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/api/bookings/me", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/api/mentors", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}
