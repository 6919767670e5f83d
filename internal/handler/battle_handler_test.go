package handler_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/designhub-api/internal/dto"
	"github.com/noah-isme/designhub-api/internal/handler"
	"github.com/noah-isme/designhub-api/internal/service"
)

type mockBattleService struct {
	battle  dto.BattleResponse
	entry   dto.BattleEntryResponse
	comment dto.BattleCommentResponse
	err     error

	lastIncludePending bool
	lastFile           *multipart.FileHeader
	lastVoter          uint
	lastVote           dto.BattleVoteRequest
}

func (m *mockBattleService) List(context.Context, string, int, int) ([]dto.BattleResponse, error) {
	return []dto.BattleResponse{m.battle}, m.err
}

func (m *mockBattleService) Get(_ context.Context, _ uint, includePending bool) (dto.BattleResponse, error) {
	m.lastIncludePending = includePending
	return m.battle, m.err
}

func (m *mockBattleService) Create(context.Context, dto.BattleCreateRequest) (dto.BattleResponse, error) {
	return m.battle, m.err
}

func (m *mockBattleService) Advance(context.Context, uint) (dto.BattleResponse, error) {
	return m.battle, m.err
}

func (m *mockBattleService) SubmitEntry(_ context.Context, _, _ uint, file *multipart.FileHeader) (dto.BattleEntryResponse, error) {
	m.lastFile = file
	return m.entry, m.err
}

func (m *mockBattleService) ApproveEntry(context.Context, uint, uint) (dto.BattleEntryResponse, error) {
	return m.entry, m.err
}

func (m *mockBattleService) Leaderboard(context.Context, uint) ([]dto.LeaderboardEntry, error) {
	return []dto.LeaderboardEntry{{Rank: 1, EntryID: m.entry.ID}}, m.err
}

func (m *mockBattleService) Vote(_ context.Context, _, voterID uint, payload dto.BattleVoteRequest) (dto.BattleEntryResponse, error) {
	m.lastVoter, m.lastVote = voterID, payload
	return m.entry, m.err
}

func (m *mockBattleService) ListComments(context.Context, uint, int, int) ([]dto.BattleCommentResponse, error) {
	return []dto.BattleCommentResponse{m.comment}, m.err
}

func (m *mockBattleService) AddComment(context.Context, uint, uint, dto.BattleCommentCreateRequest) (dto.BattleCommentResponse, error) {
	return m.comment, m.err
}

func (m *mockBattleService) VoteComment(context.Context, uint, uint, dto.CommentVoteRequest) (dto.BattleCommentResponse, error) {
	return m.comment, m.err
}

func newBattleApp(svc service.BattleService, live *service.BattleLive) *fiber.App {
	app := fiber.New()
	h := handler.NewBattleHandler(svc, live, zerolog.New(io.Discard))
	h.RegisterPublic(app.Group("/api/battles"))
	h.Register(app.Group("/api/battles", asUser(7, "")))
	h.RegisterAdmin(app.Group("/api/admin/battles", asUser(1, "admin")))
	return app
}

func multipartImage(t *testing.T, target string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "hero.png")
	require.NoError(t, err)
	_, err = part.Write([]byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestBattleHandler_SubmitEntryForwardsFile(t *testing.T) {
	svc := &mockBattleService{entry: dto.BattleEntryResponse{ID: 3, BattleID: 1, ImageURL: "https://cdn.example.com/hero.png"}}
	app := newBattleApp(svc, nil)

	resp, err := app.Test(multipartImage(t, "/api/battles/1/entries"))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.NotNil(t, svc.lastFile)
	require.Equal(t, "hero.png", svc.lastFile.Filename)

	var body struct {
		Data dto.BattleEntryResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Equal(t, uint(3), body.Data.ID)
}

func TestBattleHandler_SubmitEntryWithoutFile(t *testing.T) {
	svc := &mockBattleService{err: service.ErrUploadRequired}
	app := newBattleApp(svc, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/battles/1/entries", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Nil(t, svc.lastFile)
}

func TestBattleHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{err: service.ErrBattleNotFound, status: fiber.StatusNotFound},
		{err: service.ErrBattleEntryNotFound, status: fiber.StatusNotFound},
		{err: service.ErrBattleWrongPhase, status: fiber.StatusConflict},
		{err: service.ErrAlreadyVoted, status: fiber.StatusConflict},
		{err: service.ErrDuplicateEntry, status: fiber.StatusConflict},
		{err: service.ErrOwnEntryVote, status: fiber.StatusForbidden},
		{err: service.ErrEntryNotApproved, status: fiber.StatusUnprocessableEntity},
		{err: service.ErrUploadTooLarge, status: fiber.StatusRequestEntityTooLarge},
		{err: fmt.Errorf("%w: text/plain", service.ErrUploadTypeNotAllowed), status: fiber.StatusBadRequest},
		{err: service.ErrUploadUnavailable, status: fiber.StatusServiceUnavailable},
		{err: errors.New("boom"), status: fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			app := newBattleApp(&mockBattleService{err: tc.err}, nil)
			resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/battles/1/votes", map[string]interface{}{"entryId": 3}))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestBattleHandler_VoteUsesCaller(t *testing.T) {
	svc := &mockBattleService{entry: dto.BattleEntryResponse{ID: 3, VotesCount: 1}}
	app := newBattleApp(svc, nil)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/battles/1/votes", map[string]interface{}{"entryId": 3}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, uint(7), svc.lastVoter)
	require.Equal(t, uint(3), svc.lastVote.EntryID)
}

func TestBattleHandler_PublicAndAdminViews(t *testing.T) {
	svc := &mockBattleService{battle: dto.BattleResponse{ID: 1, Status: "voting"}}
	app := newBattleApp(svc, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/battles/1", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.False(t, svc.lastIncludePending)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/admin/battles/1", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.True(t, svc.lastIncludePending)
}

func TestBattleHandler_LiveRequiresUpgrade(t *testing.T) {
	live := service.NewBattleLive(nil, "", zerolog.New(io.Discard))
	app := newBattleApp(&mockBattleService{battle: dto.BattleResponse{ID: 1}}, live)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/battles/1/live", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestBattleHandler_LiveStreamsEvents(t *testing.T) {
	live := service.NewBattleLive(nil, "", zerolog.New(io.Discard))
	app := newBattleApp(&mockBattleService{battle: dto.BattleResponse{ID: 1}}, live)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(listener) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	url := fmt.Sprintf("ws://%s/api/battles/1/live", listener.Addr().String())
	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		conn, _, err = websocket.DefaultDialer.Dial(url, nil)
		return err == nil
	}, 3*time.Second, 20*time.Millisecond)
	t.Cleanup(func() { _ = conn.Close() })

	received := make(chan dto.BattleLiveEvent, 4)
	go func() {
		for {
			var event dto.BattleLiveEvent
			if err := conn.ReadJSON(&event); err != nil {
				return
			}
			received <- event
		}
	}()

	var got dto.BattleLiveEvent
	require.Eventually(t, func() bool {
		live.Publish(context.Background(), dto.BattleLiveEvent{Type: dto.BattleEventVote, BattleID: 1, EntryID: 3, VotesCount: 5, SentAt: time.Now().UTC()})
		select {
		case got = <-received:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)

	require.Equal(t, dto.BattleEventVote, got.Type)
	require.Equal(t, uint(3), got.EntryID)
	require.Equal(t, 5, got.VotesCount)
}
