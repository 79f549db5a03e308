package aggregator

import (
	"context"
	"slices"
	"strconv"

	"github.com/qoollo/bob-management/internal/client"
	"github.com/qoollo/bob-management/internal/model"
	"github.com/qoollo/bob-management/internal/status"
	"github.com/qoollo/bob-management/internal/topology"
	"go.uber.org/zap"
)

// replicaKey identifies a replica by where it lives.
type replicaKey struct {
	disk string
	node string
}

// nodeDisks is what a reachable node says about its disks. disks is nil when the list could not be fetched.
type nodeDisks struct {
	disks map[string]bool
}

// VDisks returns every vdisk of the cluster with replica and vdisk status.
func (a *Aggregator) VDisks(ctx context.Context) ([]model.VDisk, error) {
	topo, err := a.source.Current()
	if err != nil {
		return nil, err
	}
	infos, err := fetchVDisks(ctx, topo)
	if err != nil {
		return nil, err
	}
	return a.buildVDisks(ctx, topo, infos), nil
}

// VDiskByID returns a single vdisk. An id missing from the bootstrap listing is not found.
func (a *Aggregator) VDiskByID(ctx context.Context, id uint64) (*model.VDisk, error) {
	topo, err := a.source.Current()
	if err != nil {
		return nil, err
	}
	infos, err := fetchVDisks(ctx, topo)
	if err != nil {
		return nil, err
	}

	idx := slices.IndexFunc(infos, func(v model.VDiskInfo) bool { return v.ID == id })
	if idx < 0 {
		return nil, &NotFoundError{Kind: "vdisk", ID: strconv.FormatUint(id, 10)}
	}

	vdisks := a.buildVDisks(ctx, topo, infos[idx:idx+1])
	return &vdisks[0], nil
}

func fetchVDisks(ctx context.Context, topo *topology.Topology) ([]model.VDiskInfo, error) {
	infos, err := topo.Main().GetVDisks(ctx)
	if err != nil {
		return nil, &UpstreamError{Node: topo.Bootstrap().String(), Operation: "vdisks", Err: err}
	}
	return infos, nil
}

// buildVDisks probes every distinct replica owner once, then derives replica and vdisk status.
// Replicas default to offline with an unavailable node; a node that answers replaces that
// default with what its disk list says.
func (a *Aggregator) buildVDisks(ctx context.Context, topo *topology.Topology, infos []model.VDiskInfo) []model.VDisk {
	replicas := make(map[replicaKey]model.ReplicaStatus)
	var owners []member
	seen := make(map[string]struct{})
	for _, info := range infos {
		for _, r := range info.Replicas {
			replicas[replicaKey{disk: r.Disk, node: r.Node}] = status.UnreachableReplica()
			if _, ok := seen[r.Node]; ok {
				continue
			}
			seen[r.Node] = struct{}{}
			if api, ok := topo.Node(r.Node); ok {
				owners = append(owners, member{name: r.Node, api: api})
			} else {
				a.logger.Warn("replica on node missing from topology", zap.String("node", r.Node))
			}
		}
	}

	reachable := make(map[string]bool, len(owners))
	gather(ctx, a, "replicas", owners, a.probeDisks(topo), func(node string, nd nodeDisks, err error) {
		if err != nil {
			return
		}
		reachable[node] = true
		for key := range replicas {
			if key.node != node {
				continue
			}
			active := nd.disks != nil && nd.disks[key.disk]
			replicas[key] = status.Replica(active, true)
		}
	})

	counts := a.partitionCounts(ctx, topo, infos, reachable)

	out := make([]model.VDisk, 0, len(infos))
	for _, info := range infos {
		vdisk := model.VDisk{
			ID:             info.ID,
			PartitionCount: counts[info.ID],
			Replicas:       make([]model.Replica, 0, len(info.Replicas)),
		}
		statuses := make([]model.ReplicaStatus, 0, len(info.Replicas))
		for _, r := range info.Replicas {
			st := replicas[replicaKey{disk: r.Disk, node: r.Node}]
			statuses = append(statuses, st)
			vdisk.Replicas = append(vdisk.Replicas, model.Replica{
				Node:          r.Node,
				Disk:          r.Disk,
				Path:          r.Path,
				ReplicaStatus: st,
			})
		}
		vdisk.VDiskStatus = status.VDisk(statuses)
		out = append(out, vdisk)
	}
	return out
}

// probeDisks checks liveness, then reads the disk list. A failed disk list leaves the node reachable
// with every disk unavailable.
func (a *Aggregator) probeDisks(topo *topology.Topology) func(context.Context, member) (nodeDisks, error) {
	return func(ctx context.Context, m member) (nodeDisks, error) {
		if err := topo.ProbeNode(ctx, m.name); err != nil {
			return nodeDisks{}, err
		}
		disks, err := m.api.GetDisks(ctx)
		if err != nil {
			a.logger.Warn("disk list unavailable on reachable node", zap.String("node", m.name), zap.Error(err))
			return nodeDisks{}, nil
		}
		active := make(map[string]bool, len(disks))
		for _, d := range disks {
			active[d.Name] = active[d.Name] || d.IsActive
		}
		return nodeDisks{disks: active}, nil
	}
}

// partitionCounts asks one reachable replica owner per vdisk for its partitions. A vdisk with no
// reachable owner, or whose owner fails to answer, has zero partitions.
func (a *Aggregator) partitionCounts(ctx context.Context, topo *topology.Topology, infos []model.VDiskInfo, reachable map[string]bool) map[uint64]uint64 {
	type request struct {
		vdisk uint64
		node  string
		api   client.API
	}

	var requests []request
	for _, info := range infos {
		for _, r := range info.Replicas {
			if !reachable[r.Node] {
				continue
			}
			api, _ := topo.Node(r.Node)
			requests = append(requests, request{vdisk: info.ID, node: r.Node, api: api})
			break
		}
	}

	counts := make(map[uint64]uint64, len(infos))
	fetch := func(ctx context.Context, req request) (*model.VDiskPartitions, error) {
		return req.api.GetPartitions(ctx, req.vdisk)
	}
	for res := range scatter(ctx, a.maxConcurrency, requests, fetch) {
		if res.err != nil {
			a.logger.Warn("partitions unavailable",
				zap.Uint64("vdisk", res.item.vdisk),
				zap.String("node", res.item.node),
				zap.Error(res.err))
			continue
		}
		counts[res.item.vdisk] = uint64(len(res.value.Partitions))
	}
	return counts
}
