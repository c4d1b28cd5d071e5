// Package market implements the snapshot fetcher against the market-data
// provider's HTTP API.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/tradewatch/gapsentry/internal/models"
)

const batchSize = 100

// Client fetches price/volume snapshots. Best-effort: symbols the provider
// cannot answer are simply absent from the result.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// snapshotPayload is the provider's wire format for one symbol.
type snapshotPayload struct {
	Symbol      string  `json:"symbol"`
	Price       float64 `json:"price"`
	PrevClose   float64 `json:"prev_close"`
	Volume      int64   `json:"volume"`
	AvgVolume   int64   `json:"avg_volume"`
	FloatShares float64 `json:"float_shares"`
	Timestamp   int64   `json:"timestamp"` // unix seconds
}

// NewClient creates a snapshot client. perSec/burst bound the request rate
// against the provider's quota.
func NewClient(baseURL, apiKey, apiSecret string, timeout time.Duration, perSec float64, burst int) *Client {
	if perSec <= 0 {
		perSec = 5
	}
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(perSec), burst),
	}
}

// FetchSnapshots retrieves snapshots for the universe in batches. A failed
// batch does not abort the fetch; whatever arrived is returned alongside the
// last error so the caller can keep going with partial data.
func (c *Client) FetchSnapshots(ctx context.Context, universe []string) ([]models.RawSnapshot, error) {
	var snapshots []models.RawSnapshot
	var lastErr error

	for start := 0; start < len(universe); start += batchSize {
		end := start + batchSize
		if end > len(universe) {
			end = len(universe)
		}
		batch, err := c.fetchBatch(ctx, universe[start:end])
		if err != nil {
			lastErr = err
			continue
		}
		snapshots = append(snapshots, batch...)
	}

	if lastErr != nil {
		return snapshots, fmt.Errorf("snapshot fetch incomplete: %w", lastErr)
	}
	return snapshots, nil
}

func (c *Client) fetchBatch(ctx context.Context, symbols []string) ([]models.RawSnapshot, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	u, err := url.Parse(c.baseURL + "/v1/snapshots")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("symbols", strings.Join(symbols, ","))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
		req.Header.Set("X-API-Secret", c.apiSecret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshots: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot request failed: status %d", resp.StatusCode)
	}

	var payloads []snapshotPayload
	if err := json.NewDecoder(resp.Body).Decode(&payloads); err != nil {
		return nil, fmt.Errorf("failed to decode snapshots: %w", err)
	}

	snapshots := make([]models.RawSnapshot, 0, len(payloads))
	for _, p := range payloads {
		snap := models.RawSnapshot{
			Symbol:      p.Symbol,
			Price:       p.Price,
			PrevClose:   p.PrevClose,
			Volume:      p.Volume,
			AvgVolume:   p.AvgVolume,
			FloatShares: p.FloatShares,
			Timestamp:   time.Unix(p.Timestamp, 0),
		}
		if snap.Timestamp.IsZero() || p.Timestamp == 0 {
			snap.Timestamp = time.Now()
		}
		if err := snap.Validate(); err != nil {
			// Skip malformed entries rather than failing the batch.
			continue
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}
