package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tradewatch/gapsentry/internal/models"
)

// InsightClient asks a chat-completions style endpoint for a read on a gap
// setup and parses the model's strict-JSON reply.
type InsightClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewInsightClient creates an AI insight client.
func NewInsightClient(baseURL, apiKey, model string, timeout time.Duration) *InsightClient {
	return &InsightClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

const insightSystemPrompt = `You analyze small-cap stock gap setups. ` +
	`Reply with a single JSON object: {"pattern_quality": <0..1>, "summary": "<one line>"}. ` +
	`No prose outside the JSON.`

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
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

// Analyze returns the model's pattern quality for a candidate, or an error
// wrapping ErrUnavailable when the reply cannot be had or parsed.
func (c *InsightClient) Analyze(ctx context.Context, cand models.GapCandidate, edge *models.HistoricalEdge) (*models.Insight, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Symbol %s gapped %s %.1f%% to $%.2f on volume %d with a %.1fM share float.",
		cand.Symbol, cand.Direction(), cand.GapPercent, cand.Price, cand.Volume, cand.FloatMillions())
	if edge != nil {
		fmt.Fprintf(&sb, " Historically %.0f%% of its gaps continued and %.0f%% filled.",
			edge.ContinuationRate, edge.GapFillRate)
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: insightSystemPrompt},
			{Role: "user", Content: sb.String()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("%w: decoding completion: %w", ErrUnavailable, err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion", ErrUnavailable)
	}

	var parsed struct {
		PatternQuality float64 `json:"pattern_quality"`
		Summary        string  `json:"summary"`
	}
	content := strings.TrimSpace(chat.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("%w: malformed insight JSON: %w", ErrUnavailable, err)
	}
	if parsed.PatternQuality < 0 || parsed.PatternQuality > 1 {
		return nil, fmt.Errorf("%w: pattern quality %.2f out of range", ErrUnavailable, parsed.PatternQuality)
	}
	return &models.Insight{
		Symbol:         cand.Symbol,
		PatternQuality: parsed.PatternQuality,
		Summary:        parsed.Summary,
	}, nil
}
