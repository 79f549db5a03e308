// Package aggregator builds cluster-wide views by fanning out to every node of the current topology.
//
// Every view follows the same shape: one concurrent call per node, wait for all of them to settle,
// then fold the outcomes with commutative operations. A node that fails, times out or is missing
// contributes as offline or not at all; only failures of the bootstrap node abort a view.
package aggregator

import (
	"context"
	"time"

	"github.com/qoollo/bob-management/internal/client"
	"github.com/qoollo/bob-management/internal/metrics"
	"github.com/qoollo/bob-management/internal/model"
	"github.com/qoollo/bob-management/internal/status"
	"github.com/qoollo/bob-management/internal/topology"
	"go.uber.org/zap"
)

// Source provides the topology snapshot a view runs against.
type Source interface {
	Current() (*topology.Topology, error)
}

// Config tunes the aggregator.
type Config struct {
	Thresholds status.Thresholds
	// MaxConcurrency caps in-flight node calls per view. Zero means one call per node at once.
	MaxConcurrency int
}

// Aggregator serves read-only cluster views. It is safe for concurrent use.
type Aggregator struct {
	source         Source
	thresholds     status.Thresholds
	maxConcurrency int
	metrics        *metrics.Metrics
	logger         *zap.Logger
}

// New creates an aggregator over source.
func New(source Source, cfg Config, m *metrics.Metrics, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		source:         source,
		thresholds:     cfg.Thresholds,
		maxConcurrency: cfg.MaxConcurrency,
		metrics:        m,
		logger:         logger,
	}
}

// member is a node of the snapshot paired with its client.
type member struct {
	name string
	api  client.API
}

func members(topo *topology.Topology) []member {
	names := topo.Names()
	out := make([]member, 0, len(names))
	for _, name := range names {
		api, _ := topo.Node(name)
		out = append(out, member{name: name, api: api})
	}
	return out
}

// gather fans fn out to every member and hands each settled outcome to fold, one at a time.
// Failures are logged and counted; fold still sees them.
func gather[T any](ctx context.Context, a *Aggregator, view string, targets []member,
	fn func(context.Context, member) (T, error), fold func(name string, value T, err error)) {
	start := time.Now()
	failed := 0

	for res := range scatter(ctx, a.maxConcurrency, targets, fn) {
		if res.err != nil {
			failed++
			a.logger.Warn("node request failed",
				zap.String("view", view),
				zap.String("node", res.item.name),
				zap.Error(res.err))
		}
		fold(res.item.name, res.value, res.err)
	}

	a.metrics.RecordAggregation(view, failed, time.Since(start))
}

// onClient adapts a call that only needs the node's client.
func onClient[T any](fn func(context.Context, client.API) (T, error)) func(context.Context, member) (T, error) {
	return func(ctx context.Context, m member) (T, error) { return fn(ctx, m.api) }
}

func inc(count *model.TypedMap[model.StatusName, uint64], name model.StatusName) {
	count.Update(name, func(v uint64) uint64 { return v + 1 })
}

type diskReport struct {
	disks    []model.DiskState
	space    model.SpaceReport
	spaceErr error
}

// DiskCount counts the disks of every node by status. A node whose disk list cannot be fetched
// counts as one offline disk. Inactive disks are offline. Duplicate disk names on one node count once.
func (a *Aggregator) DiskCount(ctx context.Context) (model.DiskCount, error) {
	count := model.NewTypedMap[model.StatusName, uint64]()
	topo, err := a.source.Current()
	if err != nil {
		return count, err
	}

	fetch := func(ctx context.Context, api client.API) (diskReport, error) {
		disks, err := api.GetDisks(ctx)
		if err != nil {
			return diskReport{}, err
		}
		report := diskReport{disks: disks}
		space, err := api.GetSpaceInfo(ctx)
		if err != nil {
			report.spaceErr = err
		} else {
			report.space = *space
		}
		return report, nil
	}

	gather(ctx, a, "disk_count", members(topo), onClient(fetch), func(node string, report diskReport, err error) {
		if err != nil {
			inc(&count, model.StatusOffline)
			return
		}
		if report.spaceErr != nil {
			// every disk of the node is then absent from the space map and counts as offline
			a.logger.Warn("space info unavailable",
				zap.String("node", node),
				zap.Error(report.spaceErr))
		}
		for _, disk := range a.uniqueDisks(node, report.disks) {
			if !disk.IsActive {
				inc(&count, model.StatusOffline)
				continue
			}
			inc(&count, status.Disk(report.space, disk.Name, a.thresholds.MinFreeSpace).Status)
		}
	})

	a.logger.Info("disk count aggregated",
		zap.Uint64("good", count.Get(model.StatusGood)),
		zap.Uint64("bad", count.Get(model.StatusBad)),
		zap.Uint64("offline", count.Get(model.StatusOffline)))
	return count, nil
}

// uniqueDisks keeps the first entry of each disk name.
func (a *Aggregator) uniqueDisks(node string, disks []model.DiskState) []model.DiskState {
	seen := make(map[string]struct{}, len(disks))
	out := make([]model.DiskState, 0, len(disks))
	for _, disk := range disks {
		if _, dup := seen[disk.Name]; dup {
			a.logger.Warn("duplicate disk name reported by node, counting once",
				zap.String("node", node),
				zap.String("disk", disk.Name))
			continue
		}
		seen[disk.Name] = struct{}{}
		out = append(out, disk)
	}
	return out
}

// NodeCount counts nodes by status. Nodes whose metrics cannot be fetched are offline.
func (a *Aggregator) NodeCount(ctx context.Context) (model.NodeCount, error) {
	count := model.NewTypedMap[model.StatusName, uint64]()
	topo, err := a.source.Current()
	if err != nil {
		return count, err
	}

	gather(ctx, a, "node_count", members(topo), onClient(fetchMetrics), func(_ string, snapshot *model.MetricsSnapshot, err error) {
		if err != nil {
			inc(&count, model.StatusOffline)
			return
		}
		inc(&count, status.Node(snapshot.Typed(), a.thresholds).Status)
	})

	a.logger.Info("node count aggregated",
		zap.Uint64("good", count.Get(model.StatusGood)),
		zap.Uint64("bad", count.Get(model.StatusBad)),
		zap.Uint64("offline", count.Get(model.StatusOffline)))
	return count, nil
}

// TotalRPS sums the per-operation rates of every reachable node.
func (a *Aggregator) TotalRPS(ctx context.Context) (model.RPS, error) {
	rps := model.NewTypedMap[model.Operation, uint64]()
	topo, err := a.source.Current()
	if err != nil {
		return rps, err
	}

	gather(ctx, a, "rps", members(topo), onClient(fetchMetrics), func(_ string, snapshot *model.MetricsSnapshot, err error) {
		if err != nil {
			return
		}
		model.AddRPS(&rps, model.RPSFromMetrics(snapshot.Typed()))
	})

	a.logger.Debug("rps aggregated", zap.Uint64("total", model.Total(rps)))
	return rps, nil
}

// TotalSpace sums the space of every reachable node.
func (a *Aggregator) TotalSpace(ctx context.Context) (model.SpaceInfo, error) {
	var total model.SpaceInfo
	topo, err := a.source.Current()
	if err != nil {
		return total, err
	}

	fetch := func(ctx context.Context, api client.API) (*model.SpaceReport, error) {
		return api.GetSpaceInfo(ctx)
	}
	gather(ctx, a, "space", members(topo), onClient(fetch), func(_ string, report *model.SpaceReport, err error) {
		if err != nil {
			return
		}
		model.AddSpace(&total, *report)
	})

	a.logger.Debug("space aggregated",
		zap.Uint64("total_disk", total.TotalDisk),
		zap.Uint64("free_disk", total.FreeDisk))
	return total, nil
}

// Topology describes the snapshot views currently run against.
func (a *Aggregator) Topology() (model.TopologyInfo, error) {
	topo, err := a.source.Current()
	if err != nil {
		return model.TopologyInfo{}, err
	}
	return topo.Info(), nil
}

func fetchMetrics(ctx context.Context, api client.API) (*model.MetricsSnapshot, error) {
	return api.GetMetrics(ctx)
}
