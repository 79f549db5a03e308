package aggregator

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/qoollo/bob-management/internal/client"
	"github.com/qoollo/bob-management/internal/model"
	"github.com/qoollo/bob-management/internal/status"
	"github.com/qoollo/bob-management/internal/topology"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// decoration is what a reachable node contributes to its node list entry.
type decoration struct {
	metrics model.TypedMetrics
	space   model.SpaceReport
}

// listing is the bootstrap node's view of the cluster, with vdisk views resolved.
type listing struct {
	nodes  []model.NodeInfo
	vdisks map[uint64]model.VDisk
}

func (l listing) vdisksOf(node model.NodeInfo) []model.VDisk {
	out := make([]model.VDisk, 0, len(node.VDisks))
	for _, v := range node.VDisks {
		if vdisk, ok := l.vdisks[v.ID]; ok {
			out = append(out, vdisk)
		}
	}
	return out
}

// fetchListing reads the node list and builds vdisk views. Both bootstrap calls are fatal.
func (a *Aggregator) fetchListing(ctx context.Context, topo *topology.Topology) (listing, error) {
	nodes, err := topo.Main().GetNodes(ctx)
	if err != nil {
		return listing{}, &UpstreamError{Node: topo.Bootstrap().String(), Operation: "nodes", Err: err}
	}
	infos, err := fetchVDisks(ctx, topo)
	if err != nil {
		return listing{}, err
	}

	vdisks := make(map[uint64]model.VDisk, len(infos))
	for _, v := range a.buildVDisks(ctx, topo, infos) {
		vdisks[v.ID] = v
	}
	return listing{nodes: nodes, vdisks: vdisks}, nil
}

// Nodes returns every node listed by the bootstrap node, decorated with live metrics.
// Nodes that cannot be decorated are offline with their metric fields unset.
func (a *Aggregator) Nodes(ctx context.Context) ([]model.Node, error) {
	topo, err := a.source.Current()
	if err != nil {
		return nil, err
	}

	var (
		list        listing
		decorations = make(map[string]decoration)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		list, err = a.fetchListing(gctx, topo)
		return err
	})
	g.Go(func() error {
		// runs alongside the listing; a failed listing cancels it
		gather(gctx, a, "nodes", members(topo), onClient(decorate), func(node string, d decoration, err error) {
			if err == nil {
				decorations[node] = d
			}
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]model.Node, 0, len(list.nodes))
	for _, info := range list.nodes {
		node := model.Node{
			Name:       info.Name,
			Hostname:   info.Address,
			VDisks:     list.vdisksOf(info),
			NodeStatus: status.OfflineNode(),
		}
		if d, ok := decorations[info.Name]; ok {
			rps := model.Total(model.RPSFromMetrics(d.metrics))
			aliens := d.metrics.Get(model.MetricBackendAlienCount).Value
			corrupted := d.metrics.Get(model.MetricBackendCorruptedBlobCount).Value
			space := model.NodeSpace(d.space)

			node.NodeStatus = status.Node(d.metrics, a.thresholds)
			node.RPS = &rps
			node.AlienCount = &aliens
			node.CorruptedCount = &corrupted
			node.Space = &space
		}
		out = append(out, node)
	}
	slices.SortFunc(out, func(x, y model.Node) int { return strings.Compare(x.Name, y.Name) })
	return out, nil
}

// decorate needs status, metrics and space; any failure leaves the node undecorated.
func decorate(ctx context.Context, api client.API) (decoration, error) {
	if _, err := api.GetStatus(ctx); err != nil {
		return decoration{}, err
	}
	snapshot, err := api.GetMetrics(ctx)
	if err != nil {
		return decoration{}, err
	}
	space, err := api.GetSpaceInfo(ctx)
	if err != nil {
		return decoration{}, err
	}
	return decoration{metrics: snapshot.Typed(), space: *space}, nil
}

// NodeByName returns the detailed view of a node listed by the bootstrap node.
func (a *Aggregator) NodeByName(ctx context.Context, name string) (*model.DetailedNode, error) {
	topo, err := a.source.Current()
	if err != nil {
		return nil, err
	}
	list, err := a.fetchListing(ctx, topo)
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(list.nodes, func(n model.NodeInfo) bool { return n.Name == name })
	if idx < 0 {
		return nil, &NotFoundError{Kind: "node", ID: name}
	}
	info := list.nodes[idx]

	node := &model.DetailedNode{
		Name:       info.Name,
		Hostname:   info.Address,
		VDisks:     list.vdisksOf(info),
		Disks:      []model.Disk{},
		NodeStatus: status.OfflineNode(),
	}

	api, ok := topo.Node(name)
	if !ok {
		a.logger.Warn("listed node missing from topology", zap.String("node", name))
		return node, nil
	}

	var (
		snapshot *model.MetricsSnapshot
		space    *model.SpaceReport
		disks    []model.DiskState
		disksErr error
	)
	// status, metrics and space are required; the disk list only fills node.Disks
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := api.GetStatus(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		snapshot, err = api.GetMetrics(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		space, err = api.GetSpaceInfo(gctx)
		return err
	})
	g.Go(func() error {
		disks, disksErr = api.GetDisks(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		a.logger.Warn("node detail unavailable", zap.String("node", name), zap.Error(err))
		return node, nil
	}

	metrics := snapshot.Typed()
	node.NodeStatus = status.Node(metrics, a.thresholds)
	node.Metrics = &model.DetailedNodeMetrics{
		RPS:            model.RPSFromMetrics(metrics),
		AlienCount:     metrics.Get(model.MetricBackendAlienCount).Value,
		CorruptedCount: metrics.Get(model.MetricBackendCorruptedBlobCount).Value,
		Space:          model.NodeSpace(*space),
		CPULoad:        metrics.Get(model.MetricHardwareBobCPULoad).Value,
		TotalRAM:       metrics.Get(model.MetricHardwareTotalRAM).Value,
		UsedRAM:        metrics.Get(model.MetricHardwareUsedRAM).Value,
		DescrAmount:    metrics.Get(model.MetricHardwareDescrAmount).Value,
	}

	if disksErr != nil {
		a.logger.Warn("disk list unavailable", zap.String("node", name), zap.Error(disksErr))
		return node, nil
	}
	for _, d := range a.uniqueDisks(name, disks) {
		disk := model.Disk{
			Name:       d.Name,
			Path:       d.Path,
			TotalSpace: space.TotalDiskSpaceBytes,
			UsedSpace:  space.OccupiedByDisk[d.Name],
			IOPS:       snapshot.Value(fmt.Sprintf("hardware.disks.%s_iops", d.Name)),
			DiskStatus: model.DiskStatus{Status: model.StatusOffline},
		}
		if d.IsActive {
			disk.DiskStatus = status.Disk(*space, d.Name, a.thresholds.MinFreeSpace)
		}
		node.Disks = append(node.Disks, disk)
	}
	return node, nil
}

// NodeMetrics returns the raw metrics snapshot of a node.
func (a *Aggregator) NodeMetrics(ctx context.Context, name string) (*model.MetricsSnapshot, error) {
	api, err := a.lookupNode(ctx, name)
	if err != nil {
		return nil, err
	}
	snapshot, err := api.GetMetrics(ctx)
	if err != nil {
		return nil, &UpstreamError{Node: name, Operation: "metrics", Err: err}
	}
	return snapshot, nil
}

// NodeConfiguration returns the configuration of a node.
func (a *Aggregator) NodeConfiguration(ctx context.Context, name string) (*model.NodeConfiguration, error) {
	api, err := a.lookupNode(ctx, name)
	if err != nil {
		return nil, err
	}
	cfg, err := api.GetConfiguration(ctx)
	if err != nil {
		return nil, &UpstreamError{Node: name, Operation: "configuration", Err: err}
	}
	return cfg, nil
}

// lookupNode resolves a node that is both listed by the bootstrap node and present in the topology.
func (a *Aggregator) lookupNode(ctx context.Context, name string) (client.API, error) {
	topo, err := a.source.Current()
	if err != nil {
		return nil, err
	}
	nodes, err := topo.Main().GetNodes(ctx)
	if err != nil {
		return nil, &UpstreamError{Node: topo.Bootstrap().String(), Operation: "nodes", Err: err}
	}
	if !slices.ContainsFunc(nodes, func(n model.NodeInfo) bool { return n.Name == name }) {
		return nil, &NotFoundError{Kind: "node", ID: name}
	}
	api, ok := topo.Node(name)
	if !ok {
		return nil, &NotFoundError{Kind: "node", ID: name}
	}
	return api, nil
}
