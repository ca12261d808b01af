// Package predict turns a match context into an outcome prediction, either
// through a text-generation model or a deterministic form heuristic.
package predict

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"

	"server/internal/domain"
)

const (
	openAIProviderName = "openai"
	formProviderName   = "form"
)

// Predictor produces a prediction for a fixture.
type Predictor interface {
	Predict(ctx context.Context, mctx domain.MatchContext) (*domain.Prediction, error)
}

// modelPayload is the shape the generation model is instructed to emit.
// Fields are floats because models routinely emit "55.0" where the prompt
// asked for an integer.
type modelPayload struct {
	Score      string `json:"score"`
	WinChances struct {
		Home float64 `json:"home"`
		Draw float64 `json:"draw"`
		Away float64 `json:"away"`
	} `json:"winChances"`
	BTTSPct   float64 `json:"bttsPct"`
	Reasoning string  `json:"reasoning"`
}

func parseModelPayload(raw string) (*modelPayload, error) {
	cleaned := extractJSONFragment(raw)
	if cleaned == "" {
		return nil, errors.New("empty payload")
	}
	var decoded modelPayload
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return nil, err
	}
	return &decoded, nil
}

// normalizeChances forces the three percentages to integers summing to 100.
func normalizeChances(home, draw, away float64) domain.WinChances {
	total := home + draw + away
	if total <= 0 {
		return domain.WinChances{Home: 33, Draw: 34, Away: 33}
	}
	h := int(math.Round(home / total * 100))
	d := int(math.Round(draw / total * 100))
	return domain.WinChances{Home: h, Draw: d, Away: 100 - h - d}
}

func clampPct(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(math.Round(v))
}

func extractJSONFragment(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	text = trimCodeFence(text)
	start := strings.IndexAny(text, "{[")
	end := strings.LastIndexAny(text, "]}")
	if start >= 0 && end >= start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func trimCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```JSON")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
