package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"server/internal/domain"
)

const openAIDefaultTimeout = 15 * time.Second

type OpenAIOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	Org        string
	HTTPClient *http.Client
	Fallback   Predictor
}

// OpenAIPredictor asks a chat-completion model for a strict-JSON prediction.
// Transport-level failures surface as errors; a reachable model that emits
// unusable output degrades to the fallback predictor instead.
type OpenAIPredictor struct {
	apiKey   string
	model    string
	baseURL  string
	org      string
	client   *http.Client
	fallback Predictor
}

func NewOpenAIPredictor(opts OpenAIOptions) (*OpenAIPredictor, error) {
	if opts.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: openAIDefaultTimeout}
	}
	fallback := opts.Fallback
	if fallback == nil {
		fallback = NewFormPredictor()
	}
	return &OpenAIPredictor{
		apiKey:   opts.APIKey,
		model:    model,
		baseURL:  baseURL,
		org:      opts.Org,
		client:   client,
		fallback: fallback,
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (p *OpenAIPredictor) Predict(ctx context.Context, mctx domain.MatchContext) (*domain.Prediction, error) {
	payload := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a precise football analyst. Output only JSON."},
			{Role: "user", Content: buildPrompt(mctx)},
		},
		MaxTokens:   300,
		Temperature: 0.7,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("openai: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", &buf)
	if err != nil {
		return nil, fmt.Errorf("openai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if p.org != "" {
		req.Header.Set("OpenAI-Organization", p.org)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("openai: %w", domain.ErrProviderRateLimit)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai: status %d: %w", resp.StatusCode, domain.ErrProviderFailure)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return p.fallback.Predict(ctx, mctx)
	}
	if len(out.Choices) == 0 {
		return p.fallback.Predict(ctx, mctx)
	}
	parsed, err := parseModelPayload(out.Choices[0].Message.Content)
	if err != nil {
		return p.fallback.Predict(ctx, mctx)
	}

	prediction := &domain.Prediction{
		Score:      strings.TrimSpace(parsed.Score),
		WinChances: normalizeChances(parsed.WinChances.Home, parsed.WinChances.Draw, parsed.WinChances.Away),
		BTTSPct:    clampPct(parsed.BTTSPct),
		Reasoning:  strings.TrimSpace(parsed.Reasoning),
		Provider:   openAIProviderName,
	}
	if prediction.Score == "" {
		prediction.Score = "N/A"
	}
	if prediction.Reasoning == "" {
		prediction.Reasoning = fmt.Sprintf("%s vs %s", mctx.Home.Name, mctx.Away.Name)
	}
	return prediction, nil
}

func buildPrompt(mctx domain.MatchContext) string {
	statsJSON, err := json.Marshal(mctx)
	if err != nil {
		statsJSON = []byte("{}")
	}

	sb := &strings.Builder{}
	sb.WriteString("STATS:\n")
	sb.Write(statsJSON)
	sb.WriteString("\n\nINSTRUCTIONS:\n")
	sb.WriteString("You are a football analyst. Based on the provided stats, return strictly valid JSON (no commentary) with these fields:\n")
	sb.WriteString(`- "score": string predicted score like "2-1"` + "\n")
	sb.WriteString(`- "winChances": { "home": number, "draw": number, "away": number } (integers summing to 100)` + "\n")
	sb.WriteString(`- "bttsPct": number (0-100)` + "\n")
	sb.WriteString(`- "reasoning": short reasoning sentence that mentions the real team names (not "home" or "away")` + "\n\n")
	sb.WriteString("Provide the JSON only. Example output exactly as JSON:\n")
	sb.WriteString(`{"score":"2-1","winChances":{"home":55,"draw":25,"away":20},"bttsPct":60,"reasoning":"TeamA's attack is strong..."}`)
	return sb.String()
}

var _ Predictor = (*OpenAIPredictor)(nil)
