package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// Client fetches entity snapshots from the REST fallback endpoint.
// Consecutive failures trip a circuit breaker so a dead backend is not
// hammered on every poll tick.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration

	breaker *gobreaker.CircuitBreaker
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST snapshot client.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "snapshot-api",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// GetSnapshot fetches the full entity snapshot.
func (c *Client) GetSnapshot(ctx context.Context) (SnapshotResponse, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		return c.fetchSnapshot(ctx)
	})
	if err != nil {
		return SnapshotResponse{}, err
	}
	return result.(SnapshotResponse), nil
}

// fetchSnapshot performs the GET with simple retry on transient errors.
func (c *Client) fetchSnapshot(ctx context.Context) (SnapshotResponse, error) {
	url := c.baseURL + "/v1/entities/snapshot"

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return SnapshotResponse{}, ctx.Err()
			case <-time.After(c.retryBackoff):
			}
		}

		resp, err := c.doGet(ctx, url)
		if err != nil {
			lastErr = err
			c.logger.Warn("snapshot fetch failed",
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}
		return resp, nil
	}

	return SnapshotResponse{}, fmt.Errorf("get snapshot after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *Client) doGet(ctx context.Context, url string) (SnapshotResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return SnapshotResponse{}, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return SnapshotResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return SnapshotResponse{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var wire SnapshotResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return SnapshotResponse{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return wire, nil
}
