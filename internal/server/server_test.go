package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shipgate/internal/graphql"
	"github.com/tournevent/shipgate/internal/server"
	"github.com/tournevent/shipgate/internal/telemetry"
	"github.com/tournevent/shipgate/pkg/shipper"
	"github.com/tournevent/shipgate/pkg/shipper/cache"
	"github.com/tournevent/shipgate/pkg/shipper/credentials"
	"github.com/tournevent/shipgate/pkg/shipper/gateway"
	"github.com/tournevent/shipgate/pkg/shipper/mock"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := otelzap.New(zap.NewNop())
	registry := shipper.NewRegistry()
	registry.Register(mock.New("delhivery"))

	store := credentials.NewStore(credentials.Config{}, cache.NewMemory(8, time.Hour), logger)
	store.RegisterIdentity(credentials.Identity{
		Carrier: "delhivery",
		Tier:    "surface",
		Scheme:  credentials.SchemeStaticToken,
		Token:   "token",
	})

	gw := gateway.New(gateway.DefaultConfig(), registry, store, logger, nil)
	exec, err := graphql.NewExecutor(graphql.NewResolver(gw, logger))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	metrics.RecordCarrierCall("delhivery", "success")

	srv := server.New(server.Config{Port: 8080}, gw, exec, reg, logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postGraphQL(t *testing.T, ts *httptest.Server, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/graphql", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body struct {
		Status   string `json:"status"`
		Carriers []struct {
			Carrier string `json:"carrier"`
			State   string `json:"state"`
		} `json:"carriers"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	require.Len(t, body.Carriers, 1)
	assert.Equal(t, "delhivery", body.Carriers[0].Carrier)
	assert.Equal(t, "unknown", body.Carriers[0].State)
}

func TestServer_Metrics(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `shipgate_carrier_http_requests_total{carrier="delhivery",outcome="success"} 1`)
}

func TestServer_GraphQL_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/graphql")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_GraphQL_InvalidJSON(t *testing.T) {
	ts := newTestServer(t)

	resp, out := postGraphQL(t, ts, `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	errs := out["errors"].([]interface{})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].(map[string]interface{})["message"], "Invalid JSON")
}

func TestServer_GraphQL_ValidationError(t *testing.T) {
	ts := newTestServer(t)

	resp, out := postGraphQL(t, ts, `{"query":"{ nope }"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, out["errors"])
}

func TestServer_GraphQL_Query(t *testing.T) {
	ts := newTestServer(t)

	resp, out := postGraphQL(t, ts, `{"query":"query { carriers { name health } }"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, out["errors"])

	data := out["data"].(map[string]interface{})
	assert.Equal(t, []interface{}{
		map[string]interface{}{"name": "delhivery", "health": "unknown"},
	}, data["carriers"])
}

func TestServer_GraphQL_FieldErrorKeepsPartialData(t *testing.T) {
	ts := newTestServer(t)

	resp, out := postGraphQL(t, ts, `{"query":"{ carriers { name } track(carrier: \"unknown\", externalId: \"X\") { status } }"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data := out["data"].(map[string]interface{})
	assert.NotNil(t, data["carriers"])
	assert.Nil(t, data["track"])

	errs := out["errors"].([]interface{})
	require.Len(t, errs, 1)
	ext := errs[0].(map[string]interface{})["extensions"].(map[string]interface{})
	assert.Equal(t, "VALIDATION_FAILED", ext["kind"])
}
