package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/formpick/picklist-crawler/internal/api"
	"github.com/formpick/picklist-crawler/internal/catalog"
)

func newTestServer(agg *catalog.Aggregator) *httptest.Server {
	registry := prometheus.NewRegistry()
	return httptest.NewServer(api.NewServer(agg, registry, zap.NewNop()).Handler())
}

func TestHealthEndpoints(t *testing.T) {
	server := newTestServer(catalog.NewAggregator())
	defer server.Close()

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(server.URL + path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		_ = resp.Body.Close()
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(catalog.NewAggregator())
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRecordsEndpoint(t *testing.T) {
	t.Run("EmptyAggregate", func(t *testing.T) {
		server := newTestServer(catalog.NewAggregator())
		defer server.Close()

		resp, err := http.Get(server.URL + "/v1/records")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var payload struct {
			Count   int              `json:"count"`
			Records []catalog.Record `json:"records"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
		assert.Zero(t, payload.Count)
		assert.NotNil(t, payload.Records)
		assert.Empty(t, payload.Records)
	})

	t.Run("LiveAggregate", func(t *testing.T) {
		agg := catalog.NewAggregator()
		agg.Fold([]catalog.Row{
			{Key: "Form 1040", Title: "Individual Tax Return", Year: 2019},
			{Key: "Form 1040", Title: "Individual Tax Return", Year: 2015},
			{Key: "Form W-2", Title: "Wage Statement", Year: 2018},
		})
		server := newTestServer(agg)
		defer server.Close()

		resp, err := http.Get(server.URL + "/v1/records")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		var payload struct {
			Count   int              `json:"count"`
			Records []catalog.Record `json:"records"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
		assert.Equal(t, 2, payload.Count)
		require.Len(t, payload.Records, 2)
		assert.Equal(t, "Form 1040", payload.Records[0].Key)
		assert.Equal(t, 2015, payload.Records[0].MinYear)
		assert.Equal(t, 2019, payload.Records[0].MaxYear)
	})
}

func TestUnknownRouteIs404(t *testing.T) {
	server := newTestServer(catalog.NewAggregator())
	defer server.Close()

	resp, err := http.Get(server.URL + "/v1/nope")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
