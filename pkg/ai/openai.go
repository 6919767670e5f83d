package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "designhub",
		Subsystem: "ai",
		Name:      "evaluation_duration_seconds",
		Help:      "Duration of AI evaluation requests",
	}, []string{"model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "designhub",
		Subsystem: "ai",
		Name:      "evaluation_failures_total",
		Help:      "Number of AI evaluation failures",
	}, []string{"model", "reason"})
)

// OpenAIConfig defines configuration options for the OpenAI evaluator.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	Logger      zerolog.Logger
}

// OpenAIEvaluator implements Evaluator against the OpenAI chat completion API.
type OpenAIEvaluator struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIEvaluator builds a new evaluator using the provided configuration.
func NewOpenAIEvaluator(cfg OpenAIConfig) (*OpenAIEvaluator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 800
	}

	tracer := otel.Tracer("github.com/noah-isme/designhub-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	client := openai.NewClientWithConfig(config)

	return &OpenAIEvaluator{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger.With().Str("component", "openai_evaluator").Logger(),
	}, nil
}

// Evaluate sends one chat completion request and interprets the answer. Transport
// failures are wrapped in ErrUpstream; unreadable answers produce the fallback record.
func (e *OpenAIEvaluator) Evaluate(parent context.Context, input EvaluationInput) (EvaluationResult, error) {
	ctx, span := e.tracer.Start(parent, "openai.evaluate", trace.WithAttributes(
		attribute.String("model", e.cfg.Model),
		attribute.Int("solution.length", len([]rune(input.SolutionDescription))),
	))
	defer span.End()

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       e.cfg.Model,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: evaluatorSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildUserPrompt(input),
			},
		},
	}

	resp, err := e.client.CreateChatCompletion(ctx, request)
	aiDuration.WithLabelValues(e.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		aiFailures.WithLabelValues(e.cfg.Model, "request").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return EvaluationResult{}, fmt.Errorf("%w: openai evaluate: %v", ErrUpstream, err)
	}

	if len(resp.Choices) == 0 {
		aiFailures.WithLabelValues(e.cfg.Model, "empty").Inc()
		err := fmt.Errorf("%w: no choices returned from openai", ErrUpstream)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return EvaluationResult{}, err
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	result, err := parseEvaluation(content)
	if err != nil {
		aiFailures.WithLabelValues(e.cfg.Model, "parse").Inc()
		span.RecordError(err)
		e.logger.Warn().Err(err).Msg("model answer could not be parsed, using fallback")
		return Fallback(), nil
	}

	span.SetAttributes(attribute.Int("evaluation.rating", result.Rating))
	return result, nil
}

func evaluatorSystemPrompt() string {
	return "Ты опытный продуктовый дизайнер и ментор. Оцени ответ кандидата на дизайн-задачу. " +
		"Ответь строго JSON-объектом вида {\"feedback\": string, \"isCorrect\": boolean, " +
		"\"metrics\": [{\"label\": string, \"percentage\": number}]} с четырьмя метриками: " +
		strings.Join(MetricLabels[:], ", ") + ". Проценты от 0 до 100."
}

func buildUserPrompt(input EvaluationInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Задача\n")
	builder.WriteString(strings.TrimSpace(input.TaskDescription))
	builder.WriteString("\n\n## Ответ кандидата\n")
	builder.WriteString(strings.TrimSpace(input.SolutionDescription))
	builder.WriteString("\n\nВерни только JSON.")
	return builder.String()
}
