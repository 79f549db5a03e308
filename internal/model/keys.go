package model

// Operation is a data operation kind served by a node.
type Operation string

const (
	OperationPut    Operation = "put"
	OperationGet    Operation = "get"
	OperationExist  Operation = "exist"
	OperationDelete Operation = "delete"
)

var operations = []Operation{OperationPut, OperationGet, OperationExist, OperationDelete}

func (o Operation) Members() []Operation { return operations }
func (o Operation) String() string       { return string(o) }

// StatusName is the coarse health bucket of a disk, node or vdisk.
type StatusName string

const (
	StatusGood    StatusName = "good"
	StatusBad     StatusName = "bad"
	StatusOffline StatusName = "offline"
)

var statusNames = []StatusName{StatusGood, StatusBad, StatusOffline}

func (s StatusName) Members() []StatusName { return statusNames }
func (s StatusName) String() string        { return string(s) }

// RawMetricEntry names a metric in a node's metrics snapshot.
type RawMetricEntry string

const (
	MetricClusterGrinderGetCountRate    RawMetricEntry = "cluster_grinder.get_count_rate"
	MetricClusterGrinderPutCountRate    RawMetricEntry = "cluster_grinder.put_count_rate"
	MetricClusterGrinderExistCountRate  RawMetricEntry = "cluster_grinder.exist_count_rate"
	MetricClusterGrinderDeleteCountRate RawMetricEntry = "cluster_grinder.delete_count_rate"
	MetricPearlExistCountRate           RawMetricEntry = "pearl.exist_count_rate"
	MetricPearlGetCountRate             RawMetricEntry = "pearl.get_count_rate"
	MetricPearlPutCountRate             RawMetricEntry = "pearl.put_count_rate"
	MetricPearlDeleteCountRate          RawMetricEntry = "pearl.delete_count_rate"
	MetricBackendAlienCount             RawMetricEntry = "backend.alien_count"
	MetricBackendCorruptedBlobCount     RawMetricEntry = "backend.corrupted_blob_count"
	MetricHardwareBobVirtualRAM         RawMetricEntry = "hardware.bob_virtual_ram"
	MetricHardwareTotalRAM              RawMetricEntry = "hardware.total_ram"
	MetricHardwareUsedRAM               RawMetricEntry = "hardware.used_ram"
	MetricHardwareBobCPULoad            RawMetricEntry = "hardware.bob_cpu_load"
	MetricHardwareFreeSpace             RawMetricEntry = "hardware.free_space"
	MetricHardwareTotalSpace            RawMetricEntry = "hardware.total_space"
	MetricHardwareDescrAmount           RawMetricEntry = "hardware.descr_amount"
)

var rawMetricEntries = []RawMetricEntry{
	MetricClusterGrinderGetCountRate,
	MetricClusterGrinderPutCountRate,
	MetricClusterGrinderExistCountRate,
	MetricClusterGrinderDeleteCountRate,
	MetricPearlExistCountRate,
	MetricPearlGetCountRate,
	MetricPearlPutCountRate,
	MetricPearlDeleteCountRate,
	MetricBackendAlienCount,
	MetricBackendCorruptedBlobCount,
	MetricHardwareBobVirtualRAM,
	MetricHardwareTotalRAM,
	MetricHardwareUsedRAM,
	MetricHardwareBobCPULoad,
	MetricHardwareFreeSpace,
	MetricHardwareTotalSpace,
	MetricHardwareDescrAmount,
}

func (e RawMetricEntry) Members() []RawMetricEntry { return rawMetricEntries }
func (e RawMetricEntry) String() string            { return string(e) }

// OperationRates maps each operation to the per-node pearl rate metric that measures it.
var OperationRates = map[Operation]RawMetricEntry{
	OperationPut:    MetricPearlPutCountRate,
	OperationGet:    MetricPearlGetCountRate,
	OperationExist:  MetricPearlExistCountRate,
	OperationDelete: MetricPearlDeleteCountRate,
}

type (
	// RPS is requests per second by operation.
	RPS = TypedMap[Operation, uint64]
	// DiskCount is the number of disks in each status.
	DiskCount = TypedMap[StatusName, uint64]
	// NodeCount is the number of nodes in each status.
	NodeCount = TypedMap[StatusName, uint64]
	// TypedMetrics is a metrics snapshot restricted to the known metric names.
	TypedMetrics = TypedMap[RawMetricEntry, MetricsEntry]
)

// RPSFromMetrics extracts the per-operation rates of a single node.
func RPSFromMetrics(metrics TypedMetrics) RPS {
	rps := NewTypedMap[Operation, uint64]()
	for op, entry := range OperationRates {
		rps.Set(op, metrics.Get(entry).Value)
	}
	return rps
}

// AddRPS adds other into rps operation by operation.
func AddRPS(rps *RPS, other RPS) {
	other.Each(func(op Operation, v uint64) {
		rps.Update(op, func(cur uint64) uint64 { return cur + v })
	})
}

// Total sums the rates of every operation.
func Total(rps RPS) uint64 {
	var sum uint64
	rps.Each(func(_ Operation, v uint64) { sum += v })
	return sum
}
