package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjranagit/telemetry/internal/catalog"
	"github.com/vjranagit/telemetry/pkg/ast"
	"github.com/vjranagit/telemetry/pkg/definition"
	"github.com/vjranagit/telemetry/pkg/function"
	"github.com/vjranagit/telemetry/pkg/logging"
	"github.com/vjranagit/telemetry/pkg/reducer"
	"github.com/vjranagit/telemetry/pkg/storage"
	"github.com/vjranagit/telemetry/pkg/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var day0 = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

type testServer struct {
	srv      *Server
	store    storage.Storage
	resolver *definition.MemoryResolver
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := storage.NewStorage(&storage.Config{InMemory: true, CompressionLevel: 1})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	functions, err := function.Builtin()
	require.NoError(t, err)
	reducers, err := reducer.Builtin(reducer.Deps{Store: store})
	require.NoError(t, err)

	resolver := definition.NewMemoryResolver()
	defs, err := catalog.Builtin()
	require.NoError(t, err)
	require.NoError(t, catalog.Register(resolver, defs))

	srv := NewServer(":0", Deps{
		Store:     store,
		Functions: functions,
		Reducers:  reducers,
		Resolver:  resolver,
	}, WithLogger(logging.Discard()), WithEvalTimeout(5*time.Second))

	return &testServer{srv: srv, store: store, resolver: resolver}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, user string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(requesterHeader, user)
	}
	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, req)
	return w
}

func (ts *testServer) write(t *testing.T, metric, member string, day int, values ...float64) {
	t.Helper()
	samples := make([]types.Sample, len(values))
	for i, v := range values {
		samples[i] = types.Sample{Timestamp: day0.AddDate(0, 0, day).Add(time.Duration(9+i) * time.Hour), Value: v}
	}
	err := ts.store.Write(context.Background(), &types.WriteRequest{
		Project: types.Project{Owner: "alice", Name: "hackystat"},
		Series:  []types.Series{{Metric: types.Metric{Name: metric, Member: member}, Samples: samples}},
	})
	require.NoError(t, err)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func pointValues(t *testing.T, stream map[string]any) []any {
	t.Helper()
	var out []any
	for _, p := range stream["points"].([]any) {
		out = append(out, p.(map[string]any)["value"])
	}
	return out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])
}

func TestRegistryListings(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/v1/functions", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var functions []function.Metadata
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &functions))
	var names []string
	for _, f := range functions {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "Add")
	assert.Contains(t, names, "Filter")

	w = ts.do(t, http.MethodGet, "/api/v1/reducers", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var reducers []reducer.Metadata
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reducers))
	names = names[:0]
	for _, r := range reducers {
		names = append(names, r.Name)
	}
	assert.Contains(t, names, "DevTime")
	assert.Contains(t, names, "Build")
}

func TestWriteSensorData(t *testing.T) {
	ts := newTestServer(t)

	req := types.WriteRequest{
		Project: types.Project{Owner: "alice", Name: "hackystat"},
		Series: []types.Series{{
			Metric: types.Metric{Name: "devtime", Member: "bob"},
			Samples: []types.Sample{
				{Timestamp: day0.Add(9 * time.Hour), Value: 30},
				{Timestamp: day0.Add(10 * time.Hour), Value: 15},
			},
		}},
	}
	w := ts.do(t, http.MethodPost, "/api/v1/sensordata", req, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(2), decode(t, w)["samples"])

	res, err := ts.store.Query(context.Background(), &types.QueryRequest{
		Project: req.Project,
		Metric:  "devtime",
		Start:   day0,
		End:     day0.AddDate(0, 0, 1),
	})
	require.NoError(t, err)
	require.Len(t, res.Series, 1)
	assert.Len(t, res.Series[0].Samples, 2)
}

func TestWriteRejectsInvalidRequests(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body any
	}{
		{"malformed json", `{"project":`},
		{"no series", types.WriteRequest{Project: types.Project{Owner: "alice", Name: "p"}}},
		{"no project owner", types.WriteRequest{
			Project: types.Project{Name: "p"},
			Series:  []types.Series{{Metric: types.Metric{Name: "devtime", Member: "bob"}}},
		}},
		{"no member", types.WriteRequest{
			Project: types.Project{Owner: "alice", Name: "p"},
			Series:  []types.Series{{Metric: types.Metric{Name: "devtime"}}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/v1/sensordata", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.NotEmpty(t, decode(t, w)["error"])
		})
	}
}

func TestTelemetryStreams(t *testing.T) {
	ts := newTestServer(t)
	ts.write(t, "builds", "bob", 0, 1, 1)

	w := ts.do(t, http.MethodGet, "/api/v1/telemetry/BuildCount?project=alice/hackystat&start=2024-03-04&end=2024-03-05&params=bob", nil, "bob")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "streams", body["kind"])
	sc := body["streams"].(map[string]any)
	assert.Equal(t, "BuildCount", sc["name"])
	assert.Equal(t, "alice/hackystat", sc["project"])

	streams := sc["streams"].([]any)
	require.Len(t, streams, 1)
	stream := streams[0].(map[string]any)
	assert.Equal(t, "bob", stream["tag"])
	assert.Equal(t, []any{float64(2), nil}, pointValues(t, stream))

	first := stream["points"].([]any)[0].(map[string]any)
	assert.Equal(t, "2024-03-04", first["period"])
}

func TestTelemetryNonFiniteIsNull(t *testing.T) {
	ts := newTestServer(t)
	ts.write(t, "builds", "bob", 0, 0)
	ts.write(t, "builds_failure", "bob", 0, 0)
	ts.write(t, "builds", "bob", 1, 4)
	ts.write(t, "builds_failure", "bob", 1, 1)

	w := ts.do(t, http.MethodGet, "/api/v1/telemetry/BuildFailureRate?project=alice/hackystat&start=2024-03-04&end=2024-03-05&params=bob", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	stream := decode(t, w)["streams"].(map[string]any)["streams"].([]any)[0].(map[string]any)
	assert.Equal(t, []any{nil, float64(25)}, pointValues(t, stream))
}

func TestTelemetryChart(t *testing.T) {
	ts := newTestServer(t)
	ts.write(t, "devtime", "bob", 0, 45)

	w := ts.do(t, http.MethodGet, "/api/v1/telemetry/DevTimeChart?project=alice/hackystat&granularity=week&start=2024-03-04&end=2024-03-10&params=bob", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "chart", body["kind"])
	chart := body["chart"].(map[string]any)
	assert.Equal(t, "Development Time", chart["title"])

	series := chart["series"].([]any)
	require.Len(t, series, 1)
	axis := series[0].(map[string]any)["axis"].(map[string]any)
	assert.Equal(t, "Minutes", axis["label"])
	assert.Equal(t, true, axis["auto_scaled"])
	assert.NotContains(t, axis, "lower")
}

func TestTelemetryErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		path string
		code int
	}{
		{"unknown definition", "/api/v1/telemetry/Nope?project=alice/hackystat&start=2024-03-04", http.StatusNotFound},
		{"bad project", "/api/v1/telemetry/BuildCount?project=hackystat&start=2024-03-04&params=bob", http.StatusBadRequest},
		{"bad granularity", "/api/v1/telemetry/BuildCount?project=alice/hackystat&granularity=hour&params=bob", http.StatusBadRequest},
		{"bad start", "/api/v1/telemetry/BuildCount?project=alice/hackystat&start=yesterday&params=bob", http.StatusBadRequest},
		{"end before start", "/api/v1/telemetry/BuildCount?project=alice/hackystat&start=2024-03-05&end=2024-03-01&params=bob", http.StatusBadRequest},
		{"wrong parameter count", "/api/v1/telemetry/BuildCount?project=alice/hackystat&start=2024-03-04&end=2024-03-05", http.StatusBadRequest},
		{"bad reducer parameter", "/api/v1/telemetry/DevTime?project=alice/hackystat&start=2024-03-04&end=2024-03-05&params=bob,maybe", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodGet, tt.path, nil, "")
			assert.Equal(t, tt.code, w.Code, w.Body.String())
			assert.NotEmpty(t, decode(t, w)["error"])
		})
	}
}

func TestTelemetryHonorsRequester(t *testing.T) {
	ts := newTestServer(t)
	ts.write(t, "builds", "bob", 0, 3)

	private, err := ast.NewStreamsDefinition(ast.StreamsSpec{
		Name:       "MyBuilds",
		Expression: mustReducerCall(t, "Build", ast.StringConstant{Text: "TotalCount"}, ast.StringConstant{Text: "bob"}),
	}, ast.Source{})
	require.NoError(t, err)
	require.NoError(t, ts.resolver.Register(definition.Registration{Owner: "alice", Definition: private}))

	path := "/api/v1/telemetry/MyBuilds?project=alice/hackystat&start=2024-03-04&end=2024-03-04"
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, path, nil, "alice").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, path, nil, "carol").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, path, nil, "").Code)
}

func TestDefinitionsListing(t *testing.T) {
	ts := newTestServer(t)

	private, err := ast.NewStreamsDefinition(ast.StreamsSpec{
		Name:       "AliceOnly",
		Expression: ast.NumberConstant{Number: types.Int(1)},
	}, ast.Source{})
	require.NoError(t, err)
	require.NoError(t, ts.resolver.Register(definition.Registration{Owner: "alice", Definition: private}))

	names := func(user string) map[string]string {
		w := ts.do(t, http.MethodGet, "/api/v1/definitions", nil, user)
		require.Equal(t, http.StatusOK, w.Code)
		var defs []definitionJSON
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &defs))
		out := map[string]string{}
		for _, d := range defs {
			out[d.Name] = d.Owner
		}
		return out
	}

	alice := names("alice")
	assert.Equal(t, "alice", alice["AliceOnly"])
	assert.Equal(t, catalog.Owner, alice["ProjectHealth"])

	carol := names("carol")
	assert.NotContains(t, carol, "AliceOnly")
	assert.Contains(t, carol, "DevTimeChart")
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodGet, "/health", nil, "")

	w := ts.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "telemetry_http_requests_total"))
}

func TestParseParams(t *testing.T) {
	assert.Nil(t, ParseParams(""))
	assert.Nil(t, ParseParams("  "))
	assert.Equal(t, []ast.Expression{
		ast.StringConstant{Text: "bob"},
		ast.NumberConstant{Number: types.Int(3)},
		ast.NumberConstant{Number: types.Float(0.5)},
		ast.StringConstant{Text: "*"},
	}, ParseParams("bob, 3,0.5,*"))

	assert.Equal(t, []ast.Expression{
		ast.StringConstant{Text: "007"},
		ast.StringConstant{Text: "1e3"},
		ast.StringConstant{Text: "0x10"},
		ast.StringConstant{Text: "Inf"},
		ast.StringConstant{Text: "NaN"},
		ast.NumberConstant{Number: types.Int(-12)},
		ast.NumberConstant{Number: types.Float(2.25)},
	}, ParseParams("007,1e3,0x10,Inf,NaN,-12,2.25"))
}

func TestParseIntervalDefaults(t *testing.T) {
	now := time.Date(2024, 3, 20, 15, 0, 0, 0, time.UTC)

	iv, err := ParseInterval("day", "", "", now)
	require.NoError(t, err)
	assert.Len(t, iv.Periods(), 7)
	assert.Equal(t, "2024-03-20", iv.Periods()[6].Label())

	iv, err = ParseInterval("Month", "", "2024-03-31", now)
	require.NoError(t, err)
	assert.Len(t, iv.Periods(), 7)

	iv, err = ParseInterval("day", "2024-03-01T10:00:00Z", "2024-03-02", now)
	require.NoError(t, err)
	assert.Len(t, iv.Periods(), 2)
}

func mustReducerCall(t *testing.T, name string, params ...ast.Expression) *ast.ReducerCall {
	t.Helper()
	rc, err := ast.NewReducerCall(name, params...)
	require.NoError(t, err)
	return rc
}
