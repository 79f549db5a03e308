// Package status derives disk, node, replica and vdisk health from raw node data.
// Every function here is pure.
package status

import (
	"github.com/qoollo/bob-management/internal/model"
)

const (
	// DefaultMaxCPU is the cpu load at which a node is reported as overloaded.
	DefaultMaxCPU uint64 = 90
	// DefaultMinFreeSpace is the free space ratio below which a disk or node is running out of space.
	DefaultMinFreeSpace = 0.10
)

// Thresholds parameterizes the classification.
type Thresholds struct {
	MaxCPU       uint64
	MinFreeSpace float64
}

// DefaultThresholds returns the stock thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{MaxCPU: DefaultMaxCPU, MinFreeSpace: DefaultMinFreeSpace}
}

// freeRatio is the unused share of total. It is computed from the free byte count so that
// ratios landing exactly on a threshold compare equal to it. A zero total yields NaN when
// nothing is used and -Inf otherwise, so only the latter counts as running out.
func freeRatio(used, total uint64) float64 {
	if used > total {
		return -float64(used-total) / float64(total)
	}
	return float64(total-used) / float64(total)
}

// Disk classifies a disk from its node's space report. A disk missing from the per-disk map is offline.
func Disk(space model.SpaceReport, diskName string, minFreeSpace float64) model.DiskStatus {
	occupied, ok := space.OccupiedByDisk[diskName]
	if !ok {
		return model.DiskStatus{Status: model.StatusOffline}
	}
	if freeRatio(occupied, space.TotalDiskSpaceBytes) < minFreeSpace {
		return model.DiskStatus{
			Status:   model.StatusBad,
			Problems: []model.DiskProblem{model.DiskFreeSpaceRunningOut},
		}
	}
	return model.DiskStatus{Status: model.StatusGood}
}

// NodeProblems evaluates every node check independently. The result may hold several problems.
func NodeProblems(metrics model.TypedMetrics, th Thresholds) []model.NodeProblem {
	var problems []model.NodeProblem
	if metrics.Get(model.MetricBackendAlienCount).Value != 0 {
		problems = append(problems, model.NodeAliensExists)
	}
	if metrics.Get(model.MetricBackendCorruptedBlobCount).Value != 0 {
		problems = append(problems, model.NodeCorruptedExists)
	}
	if metrics.Get(model.MetricHardwareBobCPULoad).Value >= th.MaxCPU {
		problems = append(problems, model.NodeHighCPULoad)
	}
	total := metrics.Get(model.MetricHardwareTotalSpace).Value
	free := metrics.Get(model.MetricHardwareFreeSpace).Value
	if total >= free && freeRatio(total-free, total) < th.MinFreeSpace {
		problems = append(problems, model.NodeFreeSpaceRunningOut)
	}
	if metrics.Get(model.MetricHardwareBobVirtualRAM).Value > metrics.Get(model.MetricHardwareTotalRAM).Value {
		problems = append(problems, model.NodeVirtualMemLargerThanRAM)
	}
	return problems
}

// NodeFromProblems is good iff there are no problems.
func NodeFromProblems(problems []model.NodeProblem) model.NodeStatus {
	if len(problems) == 0 {
		return model.NodeStatus{Status: model.StatusGood}
	}
	return model.NodeStatus{Status: model.StatusBad, Problems: problems}
}

// Node classifies a node from its metrics.
func Node(metrics model.TypedMetrics, th Thresholds) model.NodeStatus {
	return NodeFromProblems(NodeProblems(metrics, th))
}

// OfflineNode is the status of a node that could not be reached.
func OfflineNode() model.NodeStatus {
	return model.NodeStatus{Status: model.StatusOffline}
}

// Replica is good iff the disk is active and the node answered its liveness probe.
func Replica(diskActive, nodeReachable bool) model.ReplicaStatus {
	var problems []model.ReplicaProblem
	if !diskActive {
		problems = append(problems, model.ReplicaDiskUnavailable)
	}
	if !nodeReachable {
		problems = append(problems, model.ReplicaNodeUnavailable)
	}
	if len(problems) == 0 {
		return model.ReplicaStatus{Status: model.StatusGood}
	}
	return model.ReplicaStatus{Status: model.StatusOffline, Problems: problems}
}

// UnreachableReplica is the status of a replica whose node did not answer.
// The disk state of such a node is unknown, so only the node is blamed.
func UnreachableReplica() model.ReplicaStatus {
	return model.ReplicaStatus{
		Status:   model.StatusOffline,
		Problems: []model.ReplicaProblem{model.ReplicaNodeUnavailable},
	}
}

// VDisk is good with no offline replicas, offline when all are offline, bad otherwise.
// A vdisk without replicas has nothing offline and is good.
func VDisk(replicas []model.ReplicaStatus) model.VDiskStatus {
	offline := 0
	for _, r := range replicas {
		if r.IsOffline() {
			offline++
		}
	}
	switch offline {
	case 0:
		return model.VDiskStatus{Status: model.StatusGood}
	case len(replicas):
		return model.VDiskStatus{Status: model.StatusOffline}
	default:
		return model.VDiskStatus{Status: model.StatusBad}
	}
}
