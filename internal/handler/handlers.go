// Package handler exposes cluster views over HTTP.
package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	apierrors "github.com/qoollo/bob-management/internal/errors"
	"github.com/qoollo/bob-management/internal/middleware"
	"github.com/qoollo/bob-management/internal/model"
	"github.com/qoollo/bob-management/internal/topology"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Views is the read side of the cluster.
type Views interface {
	DiskCount(ctx context.Context) (model.DiskCount, error)
	NodeCount(ctx context.Context) (model.NodeCount, error)
	TotalRPS(ctx context.Context) (model.RPS, error)
	TotalSpace(ctx context.Context) (model.SpaceInfo, error)
	Nodes(ctx context.Context) ([]model.Node, error)
	NodeByName(ctx context.Context, name string) (*model.DetailedNode, error)
	NodeMetrics(ctx context.Context, name string) (*model.MetricsSnapshot, error)
	NodeConfiguration(ctx context.Context, name string) (*model.NodeConfiguration, error)
	VDisks(ctx context.Context) ([]model.VDisk, error)
	VDiskByID(ctx context.Context, id uint64) (*model.VDisk, error)
	Topology() (model.TopologyInfo, error)
}

// Refresher rebuilds the topology on demand.
type Refresher interface {
	Refresh(ctx context.Context) (*topology.Topology, error)
}

// Handlers contains all HTTP handlers and their dependencies.
type Handlers struct {
	views        Views
	refresher    Refresher
	errorHandler *apierrors.Handler
	logger       *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(views Views, refresher Refresher, errorHandler *apierrors.Handler, logger *zap.Logger) *Handlers {
	return &Handlers{
		views:        views,
		refresher:    refresher,
		errorHandler: errorHandler,
		logger:       logger,
	}
}

// respond writes value, or the error mapped by the error handler.
func respond[T any](h *Handlers, w http.ResponseWriter, r *http.Request, value T, err error) {
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, value)
}

// DiskCount handles GET /api/v1/disks/count.
func (h *Handlers) DiskCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.views.DiskCount(r.Context())
	respond(h, w, r, count, err)
}

// NodeCount handles GET /api/v1/nodes/count.
func (h *Handlers) NodeCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.views.NodeCount(r.Context())
	respond(h, w, r, count, err)
}

// RPS handles GET /api/v1/nodes/rps.
func (h *Handlers) RPS(w http.ResponseWriter, r *http.Request) {
	rps, err := h.views.TotalRPS(r.Context())
	respond(h, w, r, rps, err)
}

// Space handles GET /api/v1/nodes/space.
func (h *Handlers) Space(w http.ResponseWriter, r *http.Request) {
	space, err := h.views.TotalSpace(r.Context())
	respond(h, w, r, space, err)
}

// Nodes handles GET /api/v1/nodes/list.
func (h *Handlers) Nodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.views.Nodes(r.Context())
	respond(h, w, r, nodes, err)
}

// Node handles GET /api/v1/nodes/{node_name}.
func (h *Handlers) Node(w http.ResponseWriter, r *http.Request) {
	node, err := h.views.NodeByName(r.Context(), mux.Vars(r)["node_name"])
	respond(h, w, r, node, err)
}

// NodeMetrics handles GET /api/v1/nodes/{node_name}/metrics.
func (h *Handlers) NodeMetrics(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.views.NodeMetrics(r.Context(), mux.Vars(r)["node_name"])
	respond(h, w, r, snapshot, err)
}

// NodeConfiguration handles GET /api/v1/nodes/{node_name}/configuration.
func (h *Handlers) NodeConfiguration(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.views.NodeConfiguration(r.Context(), mux.Vars(r)["node_name"])
	respond(h, w, r, cfg, err)
}

// VDisks handles GET /api/v1/vdisks/list.
func (h *Handlers) VDisks(w http.ResponseWriter, r *http.Request) {
	vdisks, err := h.views.VDisks(r.Context())
	respond(h, w, r, vdisks, err)
}

// VDisk handles GET /api/v1/vdisks/{vdisk_id}.
func (h *Handlers) VDisk(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["vdisk_id"]
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		h.errorHandler.WriteValidationError(w, "invalid vdisk id: "+strconv.Quote(raw), r.Header.Get(middleware.RequestIDHeader))
		return
	}
	vdisk, err := h.views.VDiskByID(r.Context(), id)
	respond(h, w, r, vdisk, err)
}

// Topology handles GET /api/v1/topology.
func (h *Handlers) Topology(w http.ResponseWriter, r *http.Request) {
	info, err := h.views.Topology()
	respond(h, w, r, info, err)
}

// RefreshTopology handles POST /api/v1/topology/refresh.
func (h *Handlers) RefreshTopology(w http.ResponseWriter, r *http.Request) {
	topo, err := h.refresher.Refresh(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.logger.Info("topology refreshed on request",
		zap.String("topology_id", topo.ID()),
		zap.Int("nodes", topo.Len()),
		zap.String("request_id", r.Header.Get(middleware.RequestIDHeader)))
	h.writeJSONResponse(w, http.StatusOK, topo.Info())
}

// writeJSONResponse writes a JSON response.
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}
