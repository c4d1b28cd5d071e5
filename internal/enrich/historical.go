// Package enrich implements the optional scoring enrichment providers:
// historical gap statistics and AI pattern insight. Both degrade to an
// explicit unavailable result instead of failing the scan cycle.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tradewatch/gapsentry/internal/models"
)

// ErrUnavailable marks an enrichment source that could not answer in time.
// The scoring engine treats the affected sub-score as zero.
var ErrUnavailable = errors.New("enrichment unavailable")

// HistoricalClient talks to the historical statistics provider. The provider
// requires a login session; the bearer token is acquired lazily and refreshed
// on expiry, entirely inside this client.
type HistoricalClient struct {
	baseURL    string
	email      string
	password   string
	httpClient *http.Client

	mu    sync.Mutex
	token string
}

// NewHistoricalClient creates a client for the gap statistics API.
func NewHistoricalClient(baseURL, email, password string, timeout time.Duration) *HistoricalClient {
	return &HistoricalClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		email:    email,
		password: password,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type gapStatsPayload struct {
	Symbol           string  `json:"symbol"`
	ContinuationRate float64 `json:"continuation_rate_percent"`
	GapFillRate      float64 `json:"gap_fill_rate_percent"`
	VolumeFactor     float64 `json:"avg_volume_multiplier"`
	EdgeScore        float64 `json:"gap_edge_score"`
}

// GapStats returns the historical gap edge for a symbol, or an error wrapping
// ErrUnavailable when the provider cannot answer.
func (c *HistoricalClient) GapStats(ctx context.Context, symbol string) (*models.HistoricalEdge, error) {
	resp, err := c.authorizedGet(ctx, "/api/v1/gap-stats/"+symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: no statistics for %s", ErrUnavailable, symbol)
	default:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var payload gapStatsPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decoding gap stats: %w", ErrUnavailable, err)
	}
	return &models.HistoricalEdge{
		Symbol:           symbol,
		ContinuationRate: payload.ContinuationRate,
		GapFillRate:      payload.GapFillRate,
		VolumeFactor:     payload.VolumeFactor,
		EdgeScore:        payload.EdgeScore,
	}, nil
}

// authorizedGet performs a GET with the session token, re-authenticating
// once when the token is missing or rejected.
func (c *HistoricalClient) authorizedGet(ctx context.Context, path string) (*http.Response, error) {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.sessionToken(ctx, attempt > 0)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			resp.Body.Close()
			continue
		}
		return resp, nil
	}
	return nil, errors.New("authentication rejected")
}

// sessionToken returns the cached token, logging in when absent or forced.
func (c *HistoricalClient) sessionToken(ctx context.Context, force bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && !force {
		return c.token, nil
	}

	body, err := json.Marshal(map[string]string{
		"email":    c.email,
		"password": c.password,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login rejected: status %d", resp.StatusCode)
	}

	var loginResp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return "", fmt.Errorf("failed to decode login response: %w", err)
	}
	if loginResp.Token == "" {
		return "", errors.New("login response missing token")
	}
	c.token = loginResp.Token
	return c.token, nil
}
