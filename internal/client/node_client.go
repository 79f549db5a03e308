// Package client provides the HTTP client for a single cluster node's REST API.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/qoollo/bob-management/internal/metrics"
	"github.com/qoollo/bob-management/internal/model"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// API is the set of node operations the aggregator depends on.
type API interface {
	GetStatus(ctx context.Context) (*model.NodeInfo, error)
	GetNodes(ctx context.Context) ([]model.NodeInfo, error)
	GetDisks(ctx context.Context) ([]model.DiskState, error)
	GetSpaceInfo(ctx context.Context) (*model.SpaceReport, error)
	GetMetrics(ctx context.Context) (*model.MetricsSnapshot, error)
	GetVDisks(ctx context.Context) ([]model.VDiskInfo, error)
	GetPartitions(ctx context.Context, vdiskID uint64) (*model.VDiskPartitions, error)
	GetConfiguration(ctx context.Context) (*model.NodeConfiguration, error)
}

// Credentials are sent as HTTP basic auth.
type Credentials struct {
	Login    string
	Password string
}

// Config configures a NodeClient.
type Config struct {
	Address     model.Hostname
	Credentials *Credentials
	// Timeout bounds every call. Zero leaves calls bounded by the caller's context only.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NodeClient talks to one node. It is safe for concurrent use.
type NodeClient struct {
	address     model.Hostname
	baseURL     string
	credentials *Credentials
	timeout     time.Duration
	httpClient  *http.Client
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

var _ API = (*NodeClient)(nil)

// NewNodeClient creates a client for cfg.Address.
func NewNodeClient(cfg Config, m *metrics.Metrics, logger *zap.Logger) *NodeClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &NodeClient{
		address:     cfg.Address,
		baseURL:     cfg.Address.URL(),
		credentials: cfg.Credentials,
		timeout:     cfg.Timeout,
		httpClient:  httpClient,
		metrics:     m,
		logger:      logger,
	}
}


// GetStatus returns the node's own description.
func (c *NodeClient) GetStatus(ctx context.Context) (*model.NodeInfo, error) {
	var node model.NodeInfo
	if err := c.get(ctx, "status", "/status", &node); err != nil {
		return nil, err
	}
	return &node, nil
}

// GetNodes returns every cluster member known to the node.
func (c *NodeClient) GetNodes(ctx context.Context) ([]model.NodeInfo, error) {
	var nodes []model.NodeInfo
	if err := c.get(ctx, "nodes", "/nodes", &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// GetDisks returns the node's physical disks and whether each is active.
func (c *NodeClient) GetDisks(ctx context.Context) ([]model.DiskState, error) {
	var disks []model.DiskState
	if err := c.get(ctx, "disks", "/disks/list", &disks); err != nil {
		return nil, err
	}
	return disks, nil
}

// GetSpaceInfo returns the node's space usage.
func (c *NodeClient) GetSpaceInfo(ctx context.Context) (*model.SpaceReport, error) {
	var space model.SpaceReport
	if err := c.get(ctx, "space", "/status/space", &space); err != nil {
		return nil, err
	}
	return &space, nil
}

// GetMetrics returns the node's metrics snapshot.
func (c *NodeClient) GetMetrics(ctx context.Context) (*model.MetricsSnapshot, error) {
	var snapshot model.MetricsSnapshot
	if err := c.get(ctx, "metrics", "/metrics", &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// GetVDisks returns every vdisk of the cluster with its replicas.
func (c *NodeClient) GetVDisks(ctx context.Context) ([]model.VDiskInfo, error) {
	var vdisks []model.VDiskInfo
	if err := c.get(ctx, "vdisks", "/vdisks", &vdisks); err != nil {
		return nil, err
	}
	return vdisks, nil
}

// GetPartitions returns the partitions the node stores for a vdisk.
func (c *NodeClient) GetPartitions(ctx context.Context, vdiskID uint64) (*model.VDiskPartitions, error) {
	var partitions model.VDiskPartitions
	path := "/vdisks/" + strconv.FormatUint(vdiskID, 10) + "/partitions"
	if err := c.get(ctx, "partitions", path, &partitions); err != nil {
		return nil, err
	}
	return &partitions, nil
}

// GetConfiguration returns the node's configuration.
func (c *NodeClient) GetConfiguration(ctx context.Context) (*model.NodeConfiguration, error) {
	var cfg model.NodeConfiguration
	if err := c.get(ctx, "configuration", "/configuration", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *NodeClient) get(ctx context.Context, operation, path string, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	err := c.do(ctx, operation, path, out)
	c.metrics.RecordNodeRequest(operation, err, time.Since(start))
	if err != nil {
		c.logger.Debug("node request failed",
			zap.String("address", c.address.String()),
			zap.String("operation", operation),
			zap.Error(err))
	}
	return err
}

func (c *NodeClient) do(ctx context.Context, operation, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRequestFailed, operation, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Span-ID", uuid.NewString())
	if c.credentials != nil {
		req.SetBasicAuth(c.credentials.Login, c.credentials.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRequestFailed, operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Operation: operation, Code: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: decode response: %w", ErrRequestFailed, operation, err)
	}
	return nil
}
