package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/MikeSquared-Agency/tribunal/internal/appeal"
)

const maxResponseBytes = 1 << 20

type Config struct {
	URL      string
	APIKey   string
	CacheTTL time.Duration
}

// Client calls the external predictive service through a circuit breaker,
// optionally caching validated responses.
type Client struct {
	url    string
	apiKey string
	ttl    time.Duration
	cache  Cache
	cb     *gobreaker.CircuitBreaker
	client *http.Client
	logger *slog.Logger
}

// New returns a client. cache may be nil.
func New(cfg Config, cache Cache, logger *slog.Logger) *Client {
	settings := gobreaker.Settings{
		Name:        "predictor-service",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &Client{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		ttl:    cfg.CacheTTL,
		cache:  cache,
		cb:     gobreaker.NewCircuitBreaker(settings),
		client: &http.Client{},
		logger: logger,
	}
}

// Predict asks the service for a prediction. Cancellation of ctx aborts the call.
func (c *Client) Predict(ctx context.Context, s appeal.Signals) (appeal.PredictionResult, error) {
	key := cacheKey(s)
	if c.cache != nil {
		data, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			c.logger.Warn("prediction cache read failed", "error", err)
		}
		if ok {
			if res, err := decodePrediction(data); err == nil {
				return res, nil
			}
		}
	}

	out, err := c.cb.Execute(func() (interface{}, error) {
		return c.call(ctx, s)
	})
	if err != nil {
		return appeal.PredictionResult{}, err
	}
	body := out.([]byte)

	res, err := decodePrediction(body)
	if err != nil {
		return appeal.PredictionResult{}, err
	}

	if c.cache != nil && c.ttl > 0 {
		if err := c.cache.Set(ctx, key, body, c.ttl); err != nil {
			c.logger.Warn("prediction cache write failed", "error", err)
		}
	}
	return res, nil
}

func (c *Client) call(ctx context.Context, s appeal.Signals) ([]byte, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("predictor call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("predictor error %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
