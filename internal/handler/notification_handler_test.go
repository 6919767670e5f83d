package handler_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/designhub-api/internal/dto"
	"github.com/noah-isme/designhub-api/internal/handler"
	"github.com/noah-isme/designhub-api/internal/service"
)

type mockNotificationService struct {
	items          []dto.NotificationResponse
	err            error
	lastUserID     uint
	lastUnreadOnly bool
	lastLimit      int
}

func (m *mockNotificationService) Publish(context.Context, dto.NotificationCreateRequest) (dto.NotificationResponse, error) {
	return dto.NotificationResponse{}, m.err
}

func (m *mockNotificationService) List(_ context.Context, userID uint, unreadOnly bool, limit, _ int) ([]dto.NotificationResponse, error) {
	m.lastUserID, m.lastUnreadOnly, m.lastLimit = userID, unreadOnly, limit
	return m.items, m.err
}

func (m *mockNotificationService) MarkRead(_ context.Context, id uint, userID uint) (dto.NotificationResponse, error) {
	m.lastUserID = userID
	now := time.Now().UTC()
	return dto.NotificationResponse{ID: id, UserID: userID, Read: true, ReadAt: &now}, m.err
}

func (m *mockNotificationService) Subscribe(uint) (<-chan dto.NotificationResponse, func()) {
	ch := make(chan dto.NotificationResponse)
	return ch, func() {}
}

func (m *mockNotificationService) Start(context.Context) {}

func TestNotificationHandler_ListPassesFilters(t *testing.T) {
	svc := &mockNotificationService{items: []dto.NotificationResponse{{ID: 1, Type: "solution.reviewed"}}}
	app := fiber.New()
	handler.NewNotificationHandler(svc, zerolog.New(io.Discard), time.Second).Register(app.Group("/api/notifications", asUser(7, "")))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/notifications?unread=true&limit=5", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, uint(7), svc.lastUserID)
	require.True(t, svc.lastUnreadOnly)
	require.Equal(t, 5, svc.lastLimit)

	var body struct {
		Data []dto.NotificationResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Len(t, body.Data, 1)
}

func TestNotificationHandler_MarkRead(t *testing.T) {
	app := fiber.New()
	handler.NewNotificationHandler(&mockNotificationService{}, zerolog.New(io.Discard), time.Second).Register(app.Group("/api/notifications", asUser(7, "")))

	resp, err := app.Test(httptest.NewRequest(http.MethodPatch, "/api/notifications/3/read", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	app = fiber.New()
	handler.NewNotificationHandler(&mockNotificationService{err: service.ErrNotificationNotFound}, zerolog.New(io.Discard), time.Second).Register(app.Group("/api/notifications", asUser(7, "")))
	resp, err = app.Test(httptest.NewRequest(http.MethodPatch, "/api/notifications/3/read", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestNotificationHandler_RequiresCaller(t *testing.T) {
	app := fiber.New()
	handler.NewNotificationHandler(&mockNotificationService{}, zerolog.New(io.Discard), time.Second).Register(app.Group("/api/notifications"))

	for _, path := range []string{"/api/notifications", "/api/notifications/stream"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, path)
	}
}
