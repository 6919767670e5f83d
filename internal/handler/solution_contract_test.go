package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/designhub-api/internal/handler"
	"github.com/noah-isme/designhub-api/internal/models"
	"github.com/noah-isme/designhub-api/internal/repository"
	"github.com/noah-isme/designhub-api/internal/service"
	"github.com/noah-isme/designhub-api/pkg/ai"
)

type fixedEvaluator struct {
	result ai.EvaluationResult
}

func (f fixedEvaluator) Evaluate(context.Context, ai.EvaluationInput) (ai.EvaluationResult, error) {
	return f.result, nil
}

func newContractDB(t *testing.T) *gorm.DB {
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

func validateMySolution(t *testing.T, schema *jsonschema.Schema, resp *http.Response) map[string]interface{} {
	t.Helper()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	var document interface{}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	require.NoError(t, decoder.Decode(&document))
	require.NoError(t, schema.Validate(document), string(raw))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func TestMySolutionContract(t *testing.T) {
	schema, err := jsonschema.Compile("testdata/my_solution.schema.json")
	require.NoError(t, err)

	db := newContractDB(t)
	profile := models.Profile{Email: "lena@example.com", DisplayName: "lena", Plan: models.PlanFree, Role: models.RoleStudent}
	require.NoError(t, db.Create(&profile).Error)
	task := models.Task{Title: "Checkout", Description: "Simplify the checkout of a grocery app", Difficulty: "middle", IsPublished: true}
	require.NoError(t, db.Create(&task).Error)

	logger := zerolog.New(io.Discard)
	validate := validator.New(validator.WithRequiredStructEnabled())
	jobs := repository.NewEvaluationJobRepository(db)
	profiles := service.NewProfileService(repository.NewProfileRepository(db), service.PlanLimits{FreeCharLimit: 500, ProCharLimit: 2000}, validate, logger)
	solutions := service.NewSolutionService(
		repository.NewSolutionRepository(db),
		jobs,
		repository.NewTaskRepository(db),
		profiles,
		nil,
		validate,
		logger,
		service.SolutionConfig{Limits: service.PlanLimits{FreeCharLimit: 500, ProCharLimit: 2000}, MaxAttempts: 3},
	)
	evaluation := ai.ParseEvaluation(`{"feedback": "Понятный сценарий", "isCorrect": true, "metrics": [{"percentage": 80}, {"percentage": 70}, {"percentage": 90}, {"percentage": 60}]}`)
	dispatcher := service.NewEvaluationDispatcher(jobs, fixedEvaluator{result: evaluation}, nil, logger, service.DispatcherConfig{Workers: 1})

	app := fiber.New()
	group := app.Group("/api/tasks/:taskId/solutions", asUser(profile.ID, models.RoleStudent))
	handler.NewSolutionHandler(solutions, logger).Register(group)
	myPath := fmt.Sprintf("/api/tasks/%d/solutions/my", task.ID)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, myPath, nil))
	require.NoError(t, err)
	body := validateMySolution(t, schema, resp)
	require.Nil(t, body["solution"])

	resp, err = app.Test(jsonRequest(t, http.MethodPost, fmt.Sprintf("/api/tasks/%d/solutions", task.ID), map[string]interface{}{
		"description": "Collapse the three checkout steps into one scrollable page",
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, myPath, nil))
	require.NoError(t, err)
	body = validateMySolution(t, schema, resp)
	pending := body["solution"].(map[string]interface{})
	require.Equal(t, "pending", pending["status"])
	require.Nil(t, pending["evaluation"])

	require.Equal(t, 1, dispatcher.DispatchOnce(context.Background()))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, myPath, nil))
	require.NoError(t, err)
	body = validateMySolution(t, schema, resp)
	reviewed := body["solution"].(map[string]interface{})
	require.Equal(t, "reviewed", reviewed["status"])
	result := reviewed["evaluation"].(map[string]interface{})
	require.Equal(t, "Понятный сценарий", result["feedback"])
	require.Equal(t, float64(75), result["rating"])
	require.Len(t, result["metrics"], ai.MetricCount)
	require.NotEmpty(t, reviewed["content"])
}
