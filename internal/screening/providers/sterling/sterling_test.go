package sterling_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basecamp/internal/screening/models"
	"basecamp/internal/screening/providers"
	"basecamp/internal/screening/providers/adapters"
	"basecamp/internal/screening/providers/contract"
	"basecamp/internal/screening/providers/sterling"
	"basecamp/internal/screening/providers/vendorsim"
)

func newProvider(baseURL string) *sterling.Provider {
	return sterling.New(adapters.NewHTTPClient(adapters.Config{
		ProviderID: providers.Sterling,
		BaseURL:    baseURL,
		APIKey:     "test-key",
	}))
}

func TestContract(t *testing.T) {
	contract.Run(t, providers.Sterling, func(t *testing.T) contract.Harness {
		sim := vendorsim.New("test-key", vendorsim.WithPendingPolls(2))
		srv := httptest.NewServer(sim.Handler())
		t.Cleanup(srv.Close)
		return contract.Harness{Provider: newProvider(srv.URL), Arrange: sim.SetNextOutcome}
	})
}

func TestInitiate_RequestShape(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/screenings", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"id":"stg_1","status":"Pending"}`))
	}))
	defer srv.Close()

	id, err := newProvider(srv.URL).Initiate(context.Background(), contract.Request(models.TierBasic))
	require.NoError(t, err)
	assert.Equal(t, "stg_1", id)
	assert.Equal(t, "PKG-100", got["packageId"])
	candidate := got["candidate"].(map[string]any)
	assert.Equal(t, "Robin", candidate["givenName"])
	assert.Equal(t, "Alvarez", candidate["familyName"])
	assert.Equal(t, "OR", candidate["address"].(map[string]any)["regionCode"])
}

func TestPollStatus_AdverseCarriesArtifactLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"id":"stg_1","status":"Complete","result":"Adverse",
			"updatedAt":"2026-03-01T12:00:00Z",
			"reportItems":[{"category":"watchlist","description":"OFAC SDN","date":"2001-05-01"}],
			"links":{"pdf":"https://reports.example/stg_1.pdf"}
		}`))
	}))
	defer srv.Close()

	rep, err := newProvider(srv.URL).PollStatus(context.Background(), "stg_1")
	require.NoError(t, err)
	assert.Equal(t, providers.ResultAdverse, rep.Result)
	assert.Equal(t, "https://reports.example/stg_1.pdf", rep.ReportURL)
	require.Len(t, rep.Findings, 1)
	assert.Equal(t, providers.FindingSanctions, rep.Findings[0].Category)
	assert.Equal(t, 2001, rep.Findings[0].OccurredAt.Year())
}

func TestCancel_FinishedScreeningIsNoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	require.NoError(t, newProvider(srv.URL).Cancel(context.Background(), "stg_1"))
}

func TestEstimateCompletion(t *testing.T) {
	p := newProvider("http://unused")
	assert.Equal(t, "up to 96 hours", p.EstimateCompletion(models.TierComprehensive))
	assert.Equal(t, "up to 48 hours", p.EstimateCompletion("unknown"))
}
