// Package adapters holds the HTTP plumbing shared by vendor adapters.
package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"basecamp/internal/screening/providers"
	"basecamp/pkg/platform/circuit"
)

const maxResponseBytes = 1 << 20

var circuitState = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "basecamp_provider_circuit_state",
	Help: "Vendor circuit breaker state (0 closed, 1 open, 2 half-open)",
}, []string{"provider"})

// HTTPDoer is the part of *http.Client the adapters use.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	ProviderID string
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient HTTPDoer
	Breaker    *circuit.Breaker
	Logger     *slog.Logger
}

// HTTPClient is a bearer-token JSON client that turns every failure into a
// categorized ProviderError.
type HTTPClient struct {
	id      string
	baseURL string
	apiKey  string
	timeout time.Duration
	client  HTTPDoer
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewHTTPClient(cfg Config) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Breaker == nil {
		cfg.Breaker = circuit.New(cfg.ProviderID)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	circuitState.WithLabelValues(cfg.ProviderID).Set(0)
	return &HTTPClient{
		id:      cfg.ProviderID,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		client:  cfg.HTTPClient,
		breaker: cfg.Breaker,
		logger:  cfg.Logger,
	}
}

func (c *HTTPClient) ProviderID() string {
	return c.id
}

// Do sends body as JSON to path and decodes a 2xx response into out. Both
// body and out may be nil.
func (c *HTTPClient) Do(ctx context.Context, method, path string, body, out any) error {
	if !c.breaker.Allow() {
		return providers.NewProviderError(providers.ErrorProviderOutage, c.id, "circuit open", providers.ErrCircuitOpen)
	}
	err := c.do(ctx, method, path, body, out)
	c.record(ctx, err)
	return err
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return providers.NewProviderError(providers.ErrorInternal, c.id, "failed to marshal request", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return providers.NewProviderError(providers.ErrorInternal, c.id, "failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return providers.NewProviderError(providers.ErrorTimeout, c.id, "request timeout", err)
		}
		return providers.NewProviderError(providers.ErrorProviderOutage, c.id, "failed to execute request", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if isTimeout(ctx, err) {
			return providers.NewProviderError(providers.ErrorTimeout, c.id, "response timeout", err)
		}
		return providers.NewProviderError(providers.ErrorProviderOutage, c.id, "failed to read response", err)
	}

	if category, ok := categoryForStatus(resp.StatusCode); ok {
		return providers.NewProviderError(category, c.id,
			fmt.Sprintf("%s %s returned %d", method, path, resp.StatusCode), vendorMessage(payload))
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return providers.NewProviderError(providers.ErrorContractMismatch, c.id, "failed to decode response", err)
	}
	return nil
}

// categoryForStatus maps a non-2xx status; ok is false for success.
func categoryForStatus(status int) (providers.ErrorCategory, bool) {
	switch {
	case status >= 200 && status < 300:
		return "", false
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return providers.ErrorAuthentication, true
	case status == http.StatusNotFound:
		return providers.ErrorNotFound, true
	case status == http.StatusConflict:
		return providers.ErrorRejected, true
	case status == http.StatusTooManyRequests:
		return providers.ErrorRateLimited, true
	case status >= 400 && status < 500:
		return providers.ErrorBadData, true
	default:
		return providers.ErrorProviderOutage, true
	}
}

func (c *HTTPClient) record(ctx context.Context, err error) {
	var change circuit.StateChange
	if err != nil && providers.IsUnavailable(err) {
		change = c.breaker.RecordFailure()
	} else {
		change = c.breaker.RecordSuccess()
	}
	circuitState.WithLabelValues(c.id).Set(float64(c.breaker.State()))

	switch {
	case change.Opened:
		c.logger.WarnContext(ctx, "vendor circuit opened", "provider", c.id, "error", err)
	case change.Closed:
		c.logger.InfoContext(ctx, "vendor circuit closed", "provider", c.id)
	}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// vendorMessage extracts an error message from a vendor error body.
func vendorMessage(payload []byte) error {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(payload, &body) == nil {
		if body.Message != "" {
			return errors.New(body.Message)
		}
		if body.Error != "" {
			return errors.New(body.Error)
		}
	}
	return nil
}
