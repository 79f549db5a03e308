package model

// SpaceInfo is an aggregated space summary in bytes.
type SpaceInfo struct {
	TotalDisk    uint64 `json:"total_disk"`
	FreeDisk     uint64 `json:"free_disk"`
	UsedDisk     uint64 `json:"used_disk"`
	OccupiedDisk uint64 `json:"occupied_disk"`
}

// Replica is a vdisk replica with its derived status.
type Replica struct {
	Node string `json:"node"`
	Disk string `json:"disk"`
	Path string `json:"path"`
	ReplicaStatus
}

// VDisk is a virtual disk with derived status and partition count.
type VDisk struct {
	ID             uint64    `json:"id"`
	PartitionCount uint64    `json:"partitionCount"`
	Replicas       []Replica `json:"replicas"`
	VDiskStatus
}

// Node is one entry of the node list. Pointer fields stay nil when the node could not be reached.
type Node struct {
	Name           string     `json:"name"`
	Hostname       string     `json:"hostname"`
	VDisks         []VDisk    `json:"vdisks"`
	RPS            *uint64    `json:"rps,omitempty"`
	AlienCount     *uint64    `json:"alienCount,omitempty"`
	CorruptedCount *uint64    `json:"corruptedCount,omitempty"`
	Space          *SpaceInfo `json:"space,omitempty"`
	NodeStatus
}

// Disk is a physical disk of a node.
type Disk struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	TotalSpace uint64 `json:"totalSpace"`
	UsedSpace  uint64 `json:"usedSpace"`
	IOPS       uint64 `json:"iops"`
	DiskStatus
}

// DetailedNodeMetrics is everything known about a reachable node's load.
type DetailedNodeMetrics struct {
	RPS            RPS       `json:"rps"`
	AlienCount     uint64    `json:"alienCount"`
	CorruptedCount uint64    `json:"corruptedCount"`
	Space          SpaceInfo `json:"space"`
	CPULoad        uint64    `json:"cpuLoad"`
	TotalRAM       uint64    `json:"totalRam"`
	UsedRAM        uint64    `json:"usedRam"`
	DescrAmount    uint64    `json:"descrAmount"`
}

// DetailedNode is the single-node view. Metrics is nil and Disks empty when the node is offline.
type DetailedNode struct {
	Name     string               `json:"name"`
	Hostname string               `json:"hostname"`
	VDisks   []VDisk              `json:"vdisks"`
	Metrics  *DetailedNodeMetrics `json:"metrics,omitempty"`
	Disks    []Disk               `json:"disks"`
	NodeStatus
}

// TopologyInfo describes the topology snapshot currently in use.
type TopologyInfo struct {
	ID          string   `json:"id"`
	Bootstrap   string   `json:"bootstrap"`
	Nodes       []string `json:"nodes"`
	ConnectedAt string   `json:"connectedAt"`
}

// NodeSpace builds the per-node space summary. Free space is derived from the used bytes.
func NodeSpace(report SpaceReport) SpaceInfo {
	return SpaceInfo{
		TotalDisk:    report.TotalDiskSpaceBytes,
		FreeDisk:     saturatingSub(report.TotalDiskSpaceBytes, report.UsedDiskSpaceBytes),
		UsedDisk:     report.UsedDiskSpaceBytes,
		OccupiedDisk: report.OccupiedDiskSpaceBytes,
	}
}

// AddSpace folds a node report into a cluster total. Used space is derived from the free bytes.
func AddSpace(total *SpaceInfo, report SpaceReport) {
	total.TotalDisk += report.TotalDiskSpaceBytes
	total.FreeDisk += report.FreeDiskSpaceBytes
	total.UsedDisk += saturatingSub(report.TotalDiskSpaceBytes, report.FreeDiskSpaceBytes)
	total.OccupiedDisk += report.OccupiedDiskSpaceBytes
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
