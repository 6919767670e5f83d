package handler_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/designhub-api/internal/dto"
	"github.com/noah-isme/designhub-api/internal/handler"
	"github.com/noah-isme/designhub-api/internal/service"
)

type mockTaskService struct {
	list       dto.TaskListResponse
	task       dto.TaskResponse
	err        error
	lastFilter dto.TaskFilter
	lastCreate dto.TaskCreateRequest
}

func (m *mockTaskService) List(_ context.Context, filter dto.TaskFilter) (dto.TaskListResponse, error) {
	m.lastFilter = filter
	return m.list, m.err
}

func (m *mockTaskService) Get(context.Context, uint) (dto.TaskResponse, error) {
	return m.task, m.err
}

func (m *mockTaskService) Create(_ context.Context, payload dto.TaskCreateRequest) (dto.TaskResponse, error) {
	m.lastCreate = payload
	return m.task, m.err
}

func (m *mockTaskService) Update(context.Context, uint, dto.TaskUpdateRequest) (dto.TaskResponse, error) {
	return m.task, m.err
}

func newTaskApp(svc service.TaskService) *fiber.App {
	app := fiber.New()
	h := handler.NewTaskHandler(svc, zerolog.New(io.Discard))
	h.Register(app.Group("/api/tasks"))
	h.RegisterAdmin(app.Group("/api/admin/tasks"))
	return app
}

func TestTaskHandler_List(t *testing.T) {
	svc := &mockTaskService{list: dto.TaskListResponse{
		Items:      []dto.TaskResponse{{ID: 1, Title: "Onboarding"}},
		Pagination: dto.Pagination{Page: 1, PageSize: 20, TotalItems: 1},
	}}
	app := newTaskApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/tasks?category=ux&difficulty=junior&search=bank", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "ux", svc.lastFilter.Category)
	require.Equal(t, "junior", svc.lastFilter.Difficulty)
	require.Equal(t, "bank", svc.lastFilter.Search)

	var body struct {
		Data []dto.TaskResponse `json:"data"`
		Meta dto.Pagination     `json:"meta"`
	}
	decodeResponse(t, resp, &body)
	require.Len(t, body.Data, 1)
	require.Equal(t, 1, body.Meta.TotalItems)
}

func TestTaskHandler_GetNotFound(t *testing.T) {
	app := newTaskApp(&mockTaskService{err: service.ErrTaskNotFound})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/tasks/9", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestTaskHandler_Create(t *testing.T) {
	svc := &mockTaskService{task: dto.TaskResponse{ID: 2, Title: "Checkout"}}
	app := newTaskApp(svc)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/admin/tasks", map[string]interface{}{
		"title":       "Checkout",
		"description": "Simplify the checkout of a grocery app",
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, "Checkout", svc.lastCreate.Title)
}
