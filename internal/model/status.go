package model

// DiskProblem is a defect detected on a single disk.
type DiskProblem string

const (
	DiskFreeSpaceRunningOut DiskProblem = "freeSpaceRunningOut"
)

// NodeProblem is a defect detected from a node's metrics.
type NodeProblem string

const (
	NodeAliensExists            NodeProblem = "aliensExists"
	NodeCorruptedExists         NodeProblem = "corruptedExists"
	NodeFreeSpaceRunningOut     NodeProblem = "freeSpaceRunningOut"
	NodeVirtualMemLargerThanRAM NodeProblem = "virtualMemLargerThanRAM"
	NodeHighCPULoad             NodeProblem = "highCPULoad"
)

// ReplicaProblem explains why a replica is offline.
type ReplicaProblem string

const (
	ReplicaNodeUnavailable ReplicaProblem = "nodeUnavailable"
	ReplicaDiskUnavailable ReplicaProblem = "diskUnavailable"
)

// DiskStatus is good, bad with problems, or offline. It is flattened into the enclosing JSON object.
type DiskStatus struct {
	Status   StatusName    `json:"status"`
	Problems []DiskProblem `json:"problems,omitempty"`
}

// NodeStatus is good, bad with problems, or offline.
type NodeStatus struct {
	Status   StatusName    `json:"status"`
	Problems []NodeProblem `json:"problems,omitempty"`
}

// ReplicaStatus is good or offline with problems.
type ReplicaStatus struct {
	Status   StatusName       `json:"status"`
	Problems []ReplicaProblem `json:"problems,omitempty"`
}

// VDiskStatus is good, bad or offline depending on how many replicas are offline.
type VDiskStatus struct {
	Status StatusName `json:"status"`
}

func (s ReplicaStatus) IsOffline() bool { return s.Status == StatusOffline }
