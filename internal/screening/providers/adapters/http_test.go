package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basecamp/internal/screening/providers"
	"basecamp/pkg/platform/circuit"
)

func TestHTTPClient_StatusMapping(t *testing.T) {
	cases := []struct {
		status   int
		category providers.ErrorCategory
	}{
		{http.StatusUnauthorized, providers.ErrorAuthentication},
		{http.StatusForbidden, providers.ErrorAuthentication},
		{http.StatusNotFound, providers.ErrorNotFound},
		{http.StatusConflict, providers.ErrorRejected},
		{http.StatusTooManyRequests, providers.ErrorRateLimited},
		{http.StatusUnprocessableEntity, providers.ErrorBadData},
		{http.StatusBadGateway, providers.ErrorProviderOutage},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			}))
			defer srv.Close()

			c := NewHTTPClient(Config{ProviderID: "vendor", BaseURL: srv.URL})
			err := c.Do(context.Background(), http.MethodGet, "/x", nil, nil)
			require.Error(t, err)
			assert.Equal(t, tc.category, providers.GetCategory(err))
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestHTTPClient_SendsBearerAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"id":"rpt_1"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{ProviderID: "vendor", BaseURL: srv.URL + "/", APIKey: "secret"})
	var out struct {
		ID string `json:"id"`
	}
	require.NoError(t, c.Do(context.Background(), http.MethodPost, "/v1/reports", map[string]string{"a": "b"}, &out))
	assert.Equal(t, "rpt_1", out.ID)
}

func TestHTTPClient_ContractMismatchAndTimeout(t *testing.T) {
	t.Run("undecodable body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		}))
		defer srv.Close()

		var out map[string]any
		err := NewHTTPClient(Config{ProviderID: "vendor", BaseURL: srv.URL}).Do(context.Background(), http.MethodGet, "/", nil, &out)
		assert.Equal(t, providers.ErrorContractMismatch, providers.GetCategory(err))
		assert.True(t, providers.IsAPIError(err))
	})

	t.Run("slow vendor", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		c := NewHTTPClient(Config{ProviderID: "vendor", BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
		err := c.Do(context.Background(), http.MethodGet, "/", nil, nil)
		assert.Equal(t, providers.ErrorTimeout, providers.GetCategory(err))
		assert.True(t, providers.IsUnavailable(err))
		assert.True(t, providers.IsRetryable(err))
	})
}

func TestHTTPClient_CircuitOpensOnOutage(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	breaker := circuit.New("vendor", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	c := NewHTTPClient(Config{ProviderID: "vendor", BaseURL: srv.URL, Breaker: breaker})

	for range 2 {
		require.Error(t, c.Do(context.Background(), http.MethodGet, "/", nil, nil))
	}
	err := c.Do(context.Background(), http.MethodGet, "/", nil, nil)
	require.ErrorIs(t, err, providers.ErrCircuitOpen)
	assert.Equal(t, 2, calls)
	assert.Equal(t, circuit.StateOpen, breaker.State())
}
