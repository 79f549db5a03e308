package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/qoollo/bob-management/internal/aggregator"
	"github.com/qoollo/bob-management/internal/client"
	"github.com/qoollo/bob-management/internal/client/clienttest"
	apierrors "github.com/qoollo/bob-management/internal/errors"
	"github.com/qoollo/bob-management/internal/metrics"
	"github.com/qoollo/bob-management/internal/middleware"
	"github.com/qoollo/bob-management/internal/model"
	"github.com/qoollo/bob-management/internal/status"
	"github.com/qoollo/bob-management/internal/topology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	handlers *Handlers
	holder   *topology.Holder
	nodes    map[string]*clienttest.Node
}

// newFixture serves a two node cluster. connectErr, when set, makes every refresh fail.
func newFixture(t *testing.T, connectErr error) *fixture {
	t.Helper()

	a := &clienttest.Node{
		Nodes: []model.NodeInfo{
			{Name: "a", Address: "10.0.0.1:20000", VDisks: []model.VDiskInfo{{ID: 1}}},
			{Name: "b", Address: "10.0.0.2:20000", VDisks: []model.VDiskInfo{{ID: 1}}},
		},
		VDisks: []model.VDiskInfo{{ID: 1, Replicas: []model.ReplicaInfo{
			{Node: "a", Disk: "d1", Path: "/a/d1"},
			{Node: "b", Disk: "d1", Path: "/b/d1"},
		}}},
		Disks:         []model.DiskState{{Name: "d1", Path: "/a/d1", IsActive: true}},
		Metrics:       clienttest.HealthyMetrics(),
		Space:         model.SpaceReport{TotalDiskSpaceBytes: 100, FreeDiskSpaceBytes: 60, UsedDiskSpaceBytes: 40},
		Configuration: model.NodeConfiguration{BlobFileNamePrefix: "bob", RootDirName: "bob"},
	}
	b := &clienttest.Node{Down: true}
	nodes := map[string]*clienttest.Node{"a": a, "b": b}

	bootstrap, err := model.ParseHostname("a:8000")
	require.NoError(t, err)

	m := metrics.NewMetrics(prometheus.NewRegistry())
	holder := topology.NewHolder(func(context.Context) (*topology.Topology, error) {
		if connectErr != nil {
			return nil, connectErr
		}
		return topology.New(bootstrap, a, map[string]client.API{"a": a, "b": b}), nil
	}, m, zap.NewNop())

	agg := aggregator.New(holder, aggregator.Config{Thresholds: status.DefaultThresholds()}, m, zap.NewNop())
	return &fixture{
		handlers: NewHandlers(agg, holder, apierrors.NewHandler(zap.NewNop()), zap.NewNop()),
		holder:   holder,
		nodes:    nodes,
	}
}

func (f *fixture) connect(t *testing.T) {
	t.Helper()
	_, err := f.holder.Refresh(context.Background())
	require.NoError(t, err)
}

func serve(fn http.HandlerFunc, method, target string, vars map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	w := httptest.NewRecorder()
	fn(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHandlers_Counts(t *testing.T) {
	f := newFixture(t, nil)
	f.connect(t)

	w := serve(f.handlers.NodeCount, http.MethodGet, "/api/v1/nodes/count", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"good":1,"bad":0,"offline":1}`, w.Body.String())

	w = serve(f.handlers.DiskCount, http.MethodGet, "/api/v1/disks/count", nil)
	require.Equal(t, http.StatusOK, w.Code)
	// d1 on a is absent from the space map, b is unreachable
	assert.JSONEq(t, `{"good":0,"bad":0,"offline":2}`, w.Body.String())

	w = serve(f.handlers.RPS, http.MethodGet, "/api/v1/nodes/rps", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"put":0,"get":0,"exist":0,"delete":0}`, w.Body.String())

	w = serve(f.handlers.Space, http.MethodGet, "/api/v1/nodes/space", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total_disk":100,"free_disk":60,"used_disk":40,"occupied_disk":0}`, w.Body.String())
}

func TestHandlers_Nodes(t *testing.T) {
	f := newFixture(t, nil)
	f.connect(t)

	w := serve(f.handlers.Nodes, http.MethodGet, "/api/v1/nodes/list", nil)
	require.Equal(t, http.StatusOK, w.Code)

	nodes := decode[[]map[string]any](t, w)
	require.Len(t, nodes, 2)
	assert.Equal(t, "a", nodes[0]["name"])
	assert.Equal(t, "good", nodes[0]["status"])
	assert.Contains(t, nodes[0], "rps")
	assert.Equal(t, "offline", nodes[1]["status"])
	assert.NotContains(t, nodes[1], "rps")
	assert.NotContains(t, nodes[1], "space")
}

func TestHandlers_Node(t *testing.T) {
	f := newFixture(t, nil)
	f.connect(t)

	t.Run("found", func(t *testing.T) {
		w := serve(f.handlers.Node, http.MethodGet, "/api/v1/nodes/a", map[string]string{"node_name": "a"})
		require.Equal(t, http.StatusOK, w.Code)
		node := decode[model.DetailedNode](t, w)
		assert.Equal(t, "a", node.Name)
		require.NotNil(t, node.Metrics)
		assert.Len(t, node.Disks, 1)
	})

	t.Run("not found", func(t *testing.T) {
		w := serve(f.handlers.Node, http.MethodGet, "/api/v1/nodes/zzz", map[string]string{"node_name": "zzz"})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), `"error_code":"NODE_NOT_FOUND"`)
	})

	t.Run("metrics", func(t *testing.T) {
		w := serve(f.handlers.NodeMetrics, http.MethodGet, "/api/v1/nodes/a/metrics", map[string]string{"node_name": "a"})
		require.Equal(t, http.StatusOK, w.Code)
		snapshot := decode[model.MetricsSnapshot](t, w)
		assert.Equal(t, uint64(64), snapshot.Value("hardware.total_ram"))
	})

	t.Run("metrics of unreachable node", func(t *testing.T) {
		w := serve(f.handlers.NodeMetrics, http.MethodGet, "/api/v1/nodes/b/metrics", map[string]string{"node_name": "b"})
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Contains(t, w.Body.String(), `"error_code":"UPSTREAM_FAILED"`)
	})

	t.Run("configuration", func(t *testing.T) {
		w := serve(f.handlers.NodeConfiguration, http.MethodGet, "/api/v1/nodes/a/configuration", map[string]string{"node_name": "a"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "bob", decode[model.NodeConfiguration](t, w).BlobFileNamePrefix)
	})
}

func TestHandlers_VDisks(t *testing.T) {
	f := newFixture(t, nil)
	f.connect(t)

	w := serve(f.handlers.VDisks, http.MethodGet, "/api/v1/vdisks/list", nil)
	require.Equal(t, http.StatusOK, w.Code)
	vdisks := decode[[]model.VDisk](t, w)
	require.Len(t, vdisks, 1)
	assert.Equal(t, model.StatusBad, vdisks[0].Status)

	tests := []struct {
		name         string
		id           string
		expectedCode int
		expectedBody string
	}{
		{"found", "1", http.StatusOK, `"status":"bad"`},
		{"unreachable replica problem", "1", http.StatusOK, `"problems":["nodeUnavailable"]`},
		{"unknown id", "9", http.StatusNotFound, `"error_code":"VDISK_NOT_FOUND"`},
		{"not a number", "abc", http.StatusBadRequest, `"error_code":"INVALID_REQUEST"`},
		{"negative", "-1", http.StatusBadRequest, `"error_code":"INVALID_REQUEST"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(f.handlers.VDisk, http.MethodGet, "/api/v1/vdisks/"+tt.id, map[string]string{"vdisk_id": tt.id})
			assert.Equal(t, tt.expectedCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
		})
	}
}

func TestHandlers_VDiskValidationCarriesRequestID(t *testing.T) {
	f := newFixture(t, nil)
	f.connect(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/vdisks/abc", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	req = mux.SetURLVars(req, map[string]string{"vdisk_id": "abc"})
	w := httptest.NewRecorder()
	f.handlers.VDisk(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"request_id":"req-42"`)
}

func TestHandlers_Topology(t *testing.T) {
	f := newFixture(t, nil)

	w := serve(f.handlers.Topology, http.MethodGet, "/api/v1/topology", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"error_code":"CLUSTER_UNAVAILABLE"`)

	w = serve(f.handlers.RefreshTopology, http.MethodPost, "/api/v1/topology/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)
	refreshed := decode[model.TopologyInfo](t, w)
	assert.Equal(t, "a:8000", refreshed.Bootstrap)
	assert.Equal(t, []string{"a", "b"}, refreshed.Nodes)

	w = serve(f.handlers.Topology, http.MethodGet, "/api/v1/topology", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, refreshed.ID, decode[model.TopologyInfo](t, w).ID)
}

func TestHandlers_RefreshFailure(t *testing.T) {
	connectErr := &topology.ConnectError{
		Kind:    topology.KindPermissionDenied,
		Address: "a:8000",
		Err:     &client.StatusError{Operation: "nodes", Code: http.StatusForbidden},
	}
	f := newFixture(t, connectErr)

	w := serve(f.handlers.RefreshTopology, http.MethodPost, "/api/v1/topology/refresh", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"error_code":"FORBIDDEN"`)

	w = serve(f.handlers.NodeCount, http.MethodGet, "/api/v1/nodes/count", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
