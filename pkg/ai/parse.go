package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const evaluationSchema = `{
	"type": "object",
	"required": ["feedback", "metrics"],
	"properties": {
		"feedback": {"type": "string"},
		"isCorrect": {"type": "boolean"},
		"metrics": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["percentage"],
				"properties": {
					"label": {"type": "string"},
					"percentage": {"type": "number"},
					"grade": {"type": "string"}
				}
			}
		}
	}
}`

var compiledEvaluationSchema = jsonschema.MustCompileString("evaluation.schema.json", evaluationSchema)

// ParseEvaluation extracts the evaluation from raw model output. Content without a
// usable JSON block yields the fallback record, never an error.
func ParseEvaluation(content string) EvaluationResult {
	result, err := parseEvaluation(content)
	if err != nil {
		return Fallback()
	}
	return result
}

func parseEvaluation(content string) (EvaluationResult, error) {
	block := firstJSONObject(content)
	if block == nil {
		return EvaluationResult{}, fmt.Errorf("no json block in model output")
	}

	var document interface{}
	if err := json.Unmarshal(block, &document); err != nil {
		return EvaluationResult{}, fmt.Errorf("parse evaluation json: %w", err)
	}
	if err := compiledEvaluationSchema.Validate(document); err != nil {
		return EvaluationResult{}, fmt.Errorf("evaluation json does not match schema: %w", err)
	}

	type metricPayload struct {
		Label      string  `json:"label"`
		Percentage float64 `json:"percentage"`
	}
	type payload struct {
		Feedback  string          `json:"feedback"`
		IsCorrect *bool           `json:"isCorrect"`
		Metrics   []metricPayload `json:"metrics"`
	}

	var data payload
	if err := json.Unmarshal(block, &data); err != nil {
		return EvaluationResult{}, fmt.Errorf("decode evaluation json: %w", err)
	}

	metrics := make([]MetricEntry, 0, MetricCount)
	total := 0
	for i := 0; i < MetricCount; i++ {
		entry := MetricEntry{Label: MetricLabels[i]}
		if i < len(data.Metrics) {
			if label := strings.TrimSpace(data.Metrics[i].Label); label != "" {
				entry.Label = label
			}
			entry.Percentage = clampPercentage(data.Metrics[i].Percentage)
		}
		entry.Grade = GradeFor(entry.Percentage)
		total += entry.Percentage
		metrics = append(metrics, entry)
	}

	rating := int(math.Round(float64(total) / MetricCount))
	isCorrect := rating >= 50
	if data.IsCorrect != nil {
		isCorrect = *data.IsCorrect
	}

	feedback := strings.TrimSpace(data.Feedback)
	if feedback == "" {
		feedback = FallbackFeedback
	}

	return EvaluationResult{
		Feedback:  feedback,
		Metrics:   metrics,
		IsCorrect: isCorrect,
		Rating:    rating,
	}, nil
}

// firstJSONObject returns the first complete JSON object embedded in content.
// Braces in surrounding prose are skipped.
func firstJSONObject(content string) json.RawMessage {
	for offset := 0; offset < len(content); {
		idx := strings.IndexByte(content[offset:], '{')
		if idx < 0 {
			return nil
		}
		start := offset + idx

		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(content[start:])).Decode(&raw); err == nil {
			return raw
		}
		offset = start + 1
	}
	return nil
}

func clampPercentage(value float64) int {
	rounded := int(math.Round(value))
	if rounded < 0 {
		return 0
	}
	if rounded > 100 {
		return 100
	}
	return rounded
}
