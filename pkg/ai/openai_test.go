package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseEvaluationExtractsEmbeddedJSON(t *testing.T) {
	content := "Вот оценка:\n```json\n{\"feedback\": \"Хороший разбор\", \"isCorrect\": true, \"metrics\": [" +
		"{\"label\": \"Понимание задачи\", \"percentage\": 90}," +
		"{\"label\": \"Качество решения\", \"percentage\": 80}," +
		"{\"label\": \"Аргументация\", \"percentage\": 70}," +
		"{\"label\": \"Оригинальность\", \"percentage\": 60}]}\n```"

	result := ParseEvaluation(content)
	require.Equal(t, "Хороший разбор", result.Feedback)
	require.True(t, result.IsCorrect)
	require.Len(t, result.Metrics, MetricCount)
	require.Equal(t, 90, result.Metrics[0].Percentage)
	require.Equal(t, "Отлично", result.Metrics[0].Grade)
	require.Equal(t, "Удовлетворительно", result.Metrics[3].Grade)
	require.Equal(t, 75, result.Rating)
}

func TestParseEvaluationIgnoresBracesAroundObject(t *testing.T) {
	content := "Формат ответа {label, percentage}:\n" +
		`{"feedback": "Хорошо", "metrics": [{"percentage": 80}, {"percentage": 80}, {"percentage": 80}, {"percentage": 80}]}` +
		"\nПримечание: формат {label, percentage}."

	result := ParseEvaluation(content)
	require.Equal(t, "Хорошо", result.Feedback)
	require.Equal(t, 80, result.Rating)
	require.True(t, result.IsCorrect)
}

func TestParseEvaluationWithoutJSONReturnsFallback(t *testing.T) {
	result := ParseEvaluation("I cannot grade this answer.")
	require.Equal(t, FallbackFeedback, result.Feedback)
	require.Equal(t, 0, result.Rating)
	require.False(t, result.IsCorrect)
	require.Len(t, result.Metrics, MetricCount)
	for _, metric := range result.Metrics {
		require.Zero(t, metric.Percentage)
	}
}

func TestParseEvaluationRejectsSchemaMismatch(t *testing.T) {
	result := ParseEvaluation(`{"feedback": 42, "metrics": "none"}`)
	require.Equal(t, Fallback(), result)
}

func TestParseEvaluationPadsAndClampsMetrics(t *testing.T) {
	result := ParseEvaluation(`{"feedback": "ok", "metrics": [{"percentage": 140}, {"percentage": -3}]}`)
	require.Len(t, result.Metrics, MetricCount)
	require.Equal(t, 100, result.Metrics[0].Percentage)
	require.Equal(t, MetricLabels[0], result.Metrics[0].Label)
	require.Equal(t, 0, result.Metrics[1].Percentage)
	require.Equal(t, 0, result.Metrics[3].Percentage)
	require.Equal(t, 25, result.Rating)
	require.False(t, result.IsCorrect)
}

func TestEvaluateOrFallbackSwallowsErrors(t *testing.T) {
	result := EvaluateOrFallback(context.Background(), failingEvaluator{}, EvaluationInput{})
	require.Equal(t, Fallback(), result)
}

type failingEvaluator struct{}

func (failingEvaluator) Evaluate(context.Context, EvaluationInput) (EvaluationResult, error) {
	return EvaluationResult{}, ErrUpstream
}

func TestOpenAIEvaluatorParsesCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeCompletion(t, w, `Оценка: {"feedback": "Сильное решение", "metrics": [{"percentage": 88}, {"percentage": 92}, {"percentage": 75}, {"percentage": 85}]}`)
	}))
	defer server.Close()

	evaluator, err := NewOpenAIEvaluator(OpenAIConfig{APIKey: "test", BaseURL: server.URL, Logger: zerolog.Nop()})
	require.NoError(t, err)

	result, err := evaluator.Evaluate(context.Background(), EvaluationInput{TaskDescription: "Redesign onboarding", SolutionDescription: "I would redesign the onboarding flow..."})
	require.NoError(t, err)
	require.Equal(t, "Сильное решение", result.Feedback)
	require.Equal(t, 85, result.Rating)
	require.True(t, result.IsCorrect)
}

func TestOpenAIEvaluatorUnparsableAnswerFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(t, w, "no json here")
	}))
	defer server.Close()

	evaluator, err := NewOpenAIEvaluator(OpenAIConfig{APIKey: "test", BaseURL: server.URL})
	require.NoError(t, err)

	result, err := evaluator.Evaluate(context.Background(), EvaluationInput{})
	require.NoError(t, err)
	require.Equal(t, Fallback(), result)
}

func TestOpenAIEvaluatorWrapsTransportErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))
	}))
	defer server.Close()

	evaluator, err := NewOpenAIEvaluator(OpenAIConfig{APIKey: "test", BaseURL: server.URL, Timeout: time.Second})
	require.NoError(t, err)

	_, err = evaluator.Evaluate(context.Background(), EvaluationInput{})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUpstream))
}

func TestNewOpenAIEvaluatorRequiresKey(t *testing.T) {
	_, err := NewOpenAIEvaluator(OpenAIConfig{})
	require.Error(t, err)
}

func writeCompletion(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	payload := map[string]interface{}{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   "gpt-4o-mini",
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": content,
				},
			},
		},
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encode completion: %v", err)
	}
}
