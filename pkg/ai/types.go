package ai

import (
	"context"
	"errors"
)

// ErrUpstream marks failures talking to the model provider. They are retryable.
var ErrUpstream = errors.New("evaluator upstream failure")

// FallbackFeedback is returned when a model answer cannot be interpreted.
const FallbackFeedback = "Не удалось оценить ответ"

// MetricCount is the fixed number of metrics in every evaluation.
const MetricCount = 4

// MetricLabels are the default metric names, in prompt order.
var MetricLabels = [MetricCount]string{
	"Понимание задачи",
	"Качество решения",
	"Аргументация",
	"Оригинальность",
}

// EvaluationInput contains what the model needs to grade a solution.
type EvaluationInput struct {
	TaskDescription     string
	SolutionDescription string
}

// MetricEntry is one scored dimension of a solution.
type MetricEntry struct {
	Label      string `json:"label"`
	Percentage int    `json:"percentage"`
	Grade      string `json:"grade"`
}

// EvaluationResult is the structured feedback returned by the evaluator.
type EvaluationResult struct {
	Feedback  string        `json:"feedback"`
	Metrics   []MetricEntry `json:"metrics"`
	IsCorrect bool          `json:"isCorrect"`
	Rating    int           `json:"rating"`
}

// Evaluator describes a model capable of grading design solutions.
type Evaluator interface {
	Evaluate(ctx context.Context, input EvaluationInput) (EvaluationResult, error)
}

// Fallback returns the neutral record used when evaluation cannot be parsed.
func Fallback() EvaluationResult {
	metrics := make([]MetricEntry, 0, MetricCount)
	for _, label := range MetricLabels {
		metrics = append(metrics, MetricEntry{Label: label, Percentage: 0, Grade: "Нет оценки"})
	}
	return EvaluationResult{
		Feedback:  FallbackFeedback,
		Metrics:   metrics,
		IsCorrect: false,
		Rating:    0,
	}
}

// EvaluateOrFallback never fails: any error yields the fallback record.
func EvaluateOrFallback(ctx context.Context, evaluator Evaluator, input EvaluationInput) EvaluationResult {
	if evaluator == nil {
		return Fallback()
	}
	result, err := evaluator.Evaluate(ctx, input)
	if err != nil {
		return Fallback()
	}
	return result
}

// GradeFor maps a percentage onto a human readable grade.
func GradeFor(percentage int) string {
	switch {
	case percentage >= 85:
		return "Отлично"
	case percentage >= 70:
		return "Хорошо"
	case percentage >= 50:
		return "Удовлетворительно"
	default:
		return "Требует доработки"
	}
}
