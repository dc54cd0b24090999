package dashscope

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/echotutor/tutor-service/internal/config"
	"github.com/echotutor/tutor-service/internal/observability"
	"github.com/echotutor/tutor-service/internal/resilience"
	"github.com/rs/zerolog"
)

const (
	multimodalPath = "/services/aigc/multimodal-generation/generation"
	textPath       = "/services/aigc/text-generation/generation"

	maxResponseBytes = 32 << 20
)

// StatusError is returned when the provider answers with a non-200 status
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("dashscope returned status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the DashScope generation endpoints with one bearer credential.
// It never returns a hard failure: each operation maps errors to a fallback
// value and reports the degradation through Result.
type Client struct {
	config     *config.Config
	apiKey     string
	baseURL    string
	httpClient *http.Client
	download   *resilience.RetryConfig
	breakers   map[string]*resilience.CircuitBreaker
	logger     zerolog.Logger
}

// NewClient creates a DashScope client from configuration
func NewClient(cfg *config.Config) *Client {
	resetTimeout := config.Seconds(cfg.CircuitBreakerResetTimeout)
	breakers := make(map[string]*resilience.CircuitBreaker, 3)
	for _, op := range []string{OpOCR, OpTTS, OpChat} {
		breakers[op] = resilience.NewCircuitBreaker("dashscope_"+op, cfg.CircuitBreakerMaxFailures, resetTimeout)
	}

	download := resilience.SingleAttempt()
	if cfg.RetryMaxAttempts > 1 {
		download = &resilience.RetryConfig{
			MaxAttempts:       cfg.RetryMaxAttempts,
			InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
		}
	}

	return &Client{
		config:     cfg,
		apiKey:     cfg.DashScopeAPIKey,
		baseURL:    strings.TrimRight(cfg.DashScopeBaseURL, "/"),
		httpClient: &http.Client{},
		download:   download,
		breakers:   breakers,
		logger:   observability.WithComponent("dashscope"),
	}
}

// HasCredential reports whether an API key is configured
func (c *Client) HasCredential() bool {
	return c.apiKey != ""
}

// BreakerState returns the circuit state of one operation
func (c *Client) BreakerState(op string) resilience.CircuitState {
	if b, ok := c.breakers[op]; ok {
		return b.GetState()
	}
	return resilience.StateClosed
}

// BreakerStats reports request and failure totals seen by one operation's breaker
func (c *Client) BreakerStats(op string) (requests, failures int64, failureRate float64) {
	if b, ok := c.breakers[op]; ok {
		_, requests, failures, failureRate = b.GetStats()
	}
	return
}

// guard runs fn behind the operation's circuit breaker and keeps the breaker
// metrics current
func (c *Client) guard(op string, fn func() error) error {
	breaker := c.breakers[op]
	err := breaker.Call(fn)

	observability.UpdateCircuitBreakerState(breaker.Name(), int(breaker.GetState()))
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		observability.IncrementCircuitBreakerFailures(breaker.Name())
	}
	return err
}

// post sends a JSON body to path and decodes the JSON response into out
func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(data), 512)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
