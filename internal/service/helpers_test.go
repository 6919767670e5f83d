package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/designhub-api/internal/dto"
	"github.com/noah-isme/designhub-api/internal/models"
	"github.com/noah-isme/designhub-api/pkg/ai"
)

func newServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func seedProfile(t *testing.T, db *gorm.DB, email, plan, role string) models.Profile {
	t.Helper()
	profile := models.Profile{Email: email, DisplayName: strings.Split(email, "@")[0], Plan: plan, Role: role}
	require.NoError(t, db.Create(&profile).Error)
	return profile
}

func seedServiceTask(t *testing.T, db *gorm.DB) models.Task {
	t.Helper()
	task := models.Task{Title: "Onboarding", Description: "Redesign the onboarding flow of a banking app", Difficulty: "junior", IsPublished: true}
	require.NoError(t, db.Create(&task).Error)
	return task
}

type stubEvaluator struct {
	mu      sync.Mutex
	results []ai.EvaluationResult
	errs    []error
	calls   int
	inputs  []ai.EvaluationInput
}

func (s *stubEvaluator) Evaluate(ctx context.Context, input ai.EvaluationInput) (ai.EvaluationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.calls
	s.calls++
	s.inputs = append(s.inputs, input)

	if idx < len(s.errs) && s.errs[idx] != nil {
		return ai.EvaluationResult{}, s.errs[idx]
	}
	if len(s.results) == 0 {
		return ai.EvaluationResult{}, nil
	}
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	return s.results[idx], nil
}

func (s *stubEvaluator) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []dto.NotificationCreateRequest
	err  error
}

func (r *recordingNotifier) Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return dto.NotificationResponse{}, r.err
	}
	r.sent = append(r.sent, payload)
	return dto.NotificationResponse{ID: uint(len(r.sent)), UserID: payload.UserID, Type: payload.Type, Message: payload.Message}, nil
}

func (r *recordingNotifier) Sent() []dto.NotificationCreateRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]dto.NotificationCreateRequest, len(r.sent))
	copy(out, r.sent)
	return out
}

func sampleEvaluation() ai.EvaluationResult {
	return ai.ParseEvaluation(`{"feedback": "Хорошая структура", "metrics": [{"percentage": 80}, {"percentage": 70}, {"percentage": 90}, {"percentage": 60}]}`)
}
