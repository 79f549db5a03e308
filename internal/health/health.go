// Package health provides liveness and readiness endpoints.
package health

import (
	"context"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/qoollo/bob-management/internal/metrics"
	"github.com/qoollo/bob-management/internal/topology"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultProbeTimeout = 5 * time.Second

// Source provides the current topology snapshot.
type Source interface {
	Current() (*topology.Topology, error)
}

// HealthCheck reports whether the process is up and whether the cluster can be reached.
type HealthCheck struct {
	source       Source
	probeTimeout time.Duration
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// NewHealthCheck creates a new HealthCheck instance. A zero probeTimeout uses five seconds.
func NewHealthCheck(source Source, probeTimeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *HealthCheck {
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}
	return &HealthCheck{
		source:       source,
		probeTimeout: probeTimeout,
		metrics:      m,
		logger:       logger,
	}
}

// LivenessResponse represents the response for the liveness check.
type LivenessResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse represents the response for the readiness check.
type ReadinessResponse struct {
	Status     string            `json:"status"`
	TopologyID string            `json:"topology_id,omitempty"`
	Checks     map[string]string `json:"checks,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// LivenessHandler handles GET /health. It answers 200 while the process runs.
func (hc *HealthCheck) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{Status: "healthy"})
}

// ReadinessHandler handles GET /ready. It answers 200 when a topology exists and its
// bootstrap node returns the node list. The outcome drives the health gauge.
func (hc *HealthCheck) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), hc.probeTimeout)
	defer cancel()

	resp, err := hc.check(ctx)
	hc.metrics.SetHealthStatus(err == nil)
	if err != nil {
		hc.logger.Warn("readiness check failed", zap.Error(err))
		resp.Status = "not_ready"
		resp.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.Status = "ready"
	writeJSON(w, http.StatusOK, resp)
}

func (hc *HealthCheck) check(ctx context.Context) (ReadinessResponse, error) {
	resp := ReadinessResponse{Checks: map[string]string{"topology": "missing"}}

	topo, err := hc.source.Current()
	if err != nil {
		return resp, err
	}
	resp.TopologyID = topo.ID()
	resp.Checks["topology"] = "connected"

	if err := topo.ProbeMain(ctx); err != nil {
		resp.Checks["bootstrap"] = "unreachable"
		return resp, err
	}
	resp.Checks["bootstrap"] = "reachable"
	return resp, nil
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
