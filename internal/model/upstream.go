package model

// Types in this file mirror the JSON returned by a cluster node's REST API.

// NodeInfo describes a cluster member as reported by /status and /nodes.
type NodeInfo struct {
	Name    string      `json:"name"`
	Address string      `json:"address"`
	VDisks  []VDiskInfo `json:"vdisks,omitempty"`
}

// VDiskInfo is a virtual disk and the physical replicas backing it.
type VDiskInfo struct {
	ID       uint64        `json:"id"`
	Replicas []ReplicaInfo `json:"replicas,omitempty"`
}

// ReplicaInfo locates one replica of a vdisk.
type ReplicaInfo struct {
	Node string `json:"node"`
	Disk string `json:"disk"`
	Path string `json:"path"`
}

// DiskState is one entry of a node's /disks/list.
type DiskState struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	IsActive bool   `json:"is_active"`
}

// SpaceReport is a node's /status/space answer.
type SpaceReport struct {
	TotalDiskSpaceBytes    uint64            `json:"total_disk_space_bytes"`
	FreeDiskSpaceBytes     uint64            `json:"free_disk_space_bytes"`
	UsedDiskSpaceBytes     uint64            `json:"used_disk_space_bytes"`
	OccupiedDiskSpaceBytes uint64            `json:"occupied_disk_space_bytes"`
	OccupiedByDisk         map[string]uint64 `json:"occupied_disk_space_by_disk"`
}

// MetricsEntry is a single metric sample.
type MetricsEntry struct {
	Value     uint64 `json:"value"`
	Timestamp uint64 `json:"timestamp"`
}

// MetricsSnapshot is a node's flat /metrics answer.
type MetricsSnapshot struct {
	Metrics map[string]MetricsEntry `json:"metrics"`
}

// Typed projects the snapshot onto the known metric names. Absent metrics are zero.
func (s MetricsSnapshot) Typed() TypedMetrics {
	typed := NewTypedMap[RawMetricEntry, MetricsEntry]()
	for _, key := range typed.Keys() {
		if entry, ok := s.Metrics[key.String()]; ok {
			typed.Set(key, entry)
		}
	}
	return typed
}

// Value returns the raw value of an arbitrary metric name, zero when absent.
func (s MetricsSnapshot) Value(name string) uint64 {
	return s.Metrics[name].Value
}

// VDiskPartitions lists the partitions a node holds for a vdisk.
type VDiskPartitions struct {
	VDisk      uint64   `json:"vdisk"`
	Node       string   `json:"node"`
	Disk       string   `json:"disk"`
	Partitions []string `json:"partitions"`
}

// NodeConfiguration is a node's /configuration answer.
type NodeConfiguration struct {
	BlobFileNamePrefix string `json:"blob_file_name_prefix,omitempty"`
	RootDirName        string `json:"root_dir_name,omitempty"`
}
