// Package clienttest provides a programmable in-memory cluster node for tests.
package clienttest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/qoollo/bob-management/internal/client"
	"github.com/qoollo/bob-management/internal/model"
)

// Node is a fake node. Unset responses are returned as zero values; *Err fields fail the matching call.
// Down fails every call, Hang blocks every call until its context ends.
type Node struct {
	Status        model.NodeInfo
	Nodes         []model.NodeInfo
	Disks         []model.DiskState
	Space         model.SpaceReport
	Metrics       model.MetricsSnapshot
	VDisks        []model.VDiskInfo
	Partitions    map[uint64]model.VDiskPartitions
	Configuration model.NodeConfiguration

	StatusErr        error
	NodesErr         error
	DisksErr         error
	SpaceErr         error
	MetricsErr       error
	VDisksErr        error
	PartitionsErr    error
	ConfigurationErr error

	Delay time.Duration
	Down  bool
	Hang  bool

	calls atomic.Int64
}

var _ client.API = (*Node)(nil)

// Calls is the number of calls made so far.
func (n *Node) Calls() int64 { return n.calls.Load() }

func (n *Node) wait(ctx context.Context, operation string, err error) error {
	n.calls.Add(1)
	if n.Down {
		return fmt.Errorf("%w: %s: connection refused", client.ErrRequestFailed, operation)
	}
	if n.Hang {
		<-ctx.Done()
		return fmt.Errorf("%w: %s: %w", client.ErrRequestFailed, operation, ctx.Err())
	}
	if n.Delay > 0 {
		timer := time.NewTimer(n.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %w", client.ErrRequestFailed, operation, ctx.Err())
		}
	}
	return err
}

func (n *Node) GetStatus(ctx context.Context) (*model.NodeInfo, error) {
	if err := n.wait(ctx, "status", n.StatusErr); err != nil {
		return nil, err
	}
	status := n.Status
	return &status, nil
}

func (n *Node) GetNodes(ctx context.Context) ([]model.NodeInfo, error) {
	if err := n.wait(ctx, "nodes", n.NodesErr); err != nil {
		return nil, err
	}
	return n.Nodes, nil
}

func (n *Node) GetDisks(ctx context.Context) ([]model.DiskState, error) {
	if err := n.wait(ctx, "disks", n.DisksErr); err != nil {
		return nil, err
	}
	return n.Disks, nil
}

func (n *Node) GetSpaceInfo(ctx context.Context) (*model.SpaceReport, error) {
	if err := n.wait(ctx, "space", n.SpaceErr); err != nil {
		return nil, err
	}
	space := n.Space
	return &space, nil
}

func (n *Node) GetMetrics(ctx context.Context) (*model.MetricsSnapshot, error) {
	if err := n.wait(ctx, "metrics", n.MetricsErr); err != nil {
		return nil, err
	}
	snapshot := n.Metrics
	return &snapshot, nil
}

func (n *Node) GetVDisks(ctx context.Context) ([]model.VDiskInfo, error) {
	if err := n.wait(ctx, "vdisks", n.VDisksErr); err != nil {
		return nil, err
	}
	return n.VDisks, nil
}

func (n *Node) GetPartitions(ctx context.Context, vdiskID uint64) (*model.VDiskPartitions, error) {
	if err := n.wait(ctx, "partitions", n.PartitionsErr); err != nil {
		return nil, err
	}
	p, ok := n.Partitions[vdiskID]
	if !ok {
		return nil, &client.StatusError{Operation: "partitions", Code: 404}
	}
	return &p, nil
}

func (n *Node) GetConfiguration(ctx context.Context) (*model.NodeConfiguration, error) {
	if err := n.wait(ctx, "configuration", n.ConfigurationErr); err != nil {
		return nil, err
	}
	cfg := n.Configuration
	return &cfg, nil
}

// Metrics builds a snapshot from metric values.
func Metrics(values map[model.RawMetricEntry]uint64) model.MetricsSnapshot {
	snapshot := model.MetricsSnapshot{Metrics: make(map[string]model.MetricsEntry, len(values))}
	for k, v := range values {
		snapshot.Metrics[k.String()] = model.MetricsEntry{Value: v}
	}
	return snapshot
}

// HealthyMetrics returns a snapshot that trips none of the node checks.
func HealthyMetrics() model.MetricsSnapshot {
	return Metrics(map[model.RawMetricEntry]uint64{
		model.MetricHardwareTotalSpace: 1000,
		model.MetricHardwareFreeSpace:  500,
		model.MetricHardwareTotalRAM:   64,
		model.MetricHardwareBobCPULoad: 10,
	})
}
