package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertTotal[K Enum[K], V any](t *testing.T, m TypedMap[K, V], want int) {
	t.Helper()
	var zero K
	assert.Equal(t, want, m.Len())
	assert.Len(t, m.Keys(), want)
	for _, k := range zero.Members() {
		assert.NotPanics(t, func() { m.Get(k) }, "member %s", k)
	}
	visited := 0
	m.Each(func(K, V) { visited++ })
	assert.Equal(t, want, visited)
}

func TestTypedMap_Totality(t *testing.T) {
	t.Run("operations", func(t *testing.T) {
		assertTotal(t, NewTypedMap[Operation, uint64](), 4)
	})
	t.Run("status names", func(t *testing.T) {
		assertTotal(t, NewTypedMap[StatusName, uint64](), 3)
	})
	t.Run("raw metrics", func(t *testing.T) {
		assertTotal(t, NewTypedMap[RawMetricEntry, MetricsEntry](), 17)
	})
	t.Run("zero value", func(t *testing.T) {
		var rps RPS
		assertTotal(t, rps, 4)
		assert.Equal(t, uint64(0), rps.Get(OperationGet))
	})
}

func TestTypedMap_NonMemberPanics(t *testing.T) {
	m := NewTypedMap[Operation, uint64]()
	assert.Panics(t, func() { m.Get(Operation("truncate")) })
	assert.Panics(t, func() { m.Set(Operation("truncate"), 1) })
}

func TestTypedMap_SetAndUpdate(t *testing.T) {
	var count NodeCount
	count.Set(StatusGood, 2)
	count.Update(StatusGood, func(v uint64) uint64 { return v + 1 })
	count.Update(StatusOffline, func(v uint64) uint64 { return v + 1 })

	assert.Equal(t, uint64(3), count.Get(StatusGood))
	assert.Equal(t, uint64(0), count.Get(StatusBad))
	assert.Equal(t, uint64(1), count.Get(StatusOffline))
}

func TestTypedMap_CopySemantics(t *testing.T) {
	t.Run("constructed copies share storage", func(t *testing.T) {
		rps := NewTypedMap[Operation, uint64]()
		alias := rps
		alias.Set(OperationPut, 7)
		assert.Equal(t, uint64(7), rps.Get(OperationPut))
	})

	t.Run("zero value copies do not", func(t *testing.T) {
		var rps RPS
		detached := rps
		detached.Set(OperationPut, 7)
		assert.Equal(t, uint64(0), rps.Get(OperationPut))
		assert.Equal(t, uint64(7), detached.Get(OperationPut))
	})
}

func TestTypedMap_MarshalJSON(t *testing.T) {
	count := NewTypedMap[StatusName, uint64]()
	count.Set(StatusBad, 4)

	data, err := json.Marshal(count)
	require.NoError(t, err)
	assert.JSONEq(t, `{"good":0,"bad":4,"offline":0}`, string(data))
	assert.Equal(t, `{"good":0,"bad":4,"offline":0}`, string(data), "keys follow declaration order")
}

func TestTypedMap_UnmarshalJSON_FillsMissingKeys(t *testing.T) {
	var rps RPS
	require.NoError(t, json.Unmarshal([]byte(`{"get":7,"truncate":1}`), &rps))

	assert.Equal(t, uint64(7), rps.Get(OperationGet))
	assert.Equal(t, uint64(0), rps.Get(OperationPut))
	assert.Equal(t, 4, rps.Len())
}

func TestMetricsSnapshot_Typed(t *testing.T) {
	snapshot := MetricsSnapshot{Metrics: map[string]MetricsEntry{
		"backend.alien_count": {Value: 3, Timestamp: 10},
		"some.unknown_metric": {Value: 99},
	}}

	typed := snapshot.Typed()
	assert.Equal(t, 17, typed.Len())
	assert.Equal(t, MetricsEntry{Value: 3, Timestamp: 10}, typed.Get(MetricBackendAlienCount))
	assert.Equal(t, MetricsEntry{}, typed.Get(MetricHardwareTotalRAM))
	assert.Equal(t, uint64(99), snapshot.Value("some.unknown_metric"))
}

func TestRPSFromMetrics(t *testing.T) {
	snapshot := MetricsSnapshot{Metrics: map[string]MetricsEntry{
		"pearl.put_count_rate":           {Value: 1},
		"pearl.get_count_rate":           {Value: 2},
		"pearl.exist_count_rate":         {Value: 3},
		"pearl.delete_count_rate":        {Value: 4},
		"cluster_grinder.get_count_rate": {Value: 100},
	}}

	rps := RPSFromMetrics(snapshot.Typed())
	assert.Equal(t, uint64(1), rps.Get(OperationPut))
	assert.Equal(t, uint64(2), rps.Get(OperationGet))
	assert.Equal(t, uint64(3), rps.Get(OperationExist))
	assert.Equal(t, uint64(4), rps.Get(OperationDelete))
	assert.Equal(t, uint64(10), Total(rps))

	var sum RPS
	AddRPS(&sum, rps)
	AddRPS(&sum, rps)
	assert.Equal(t, uint64(20), Total(sum))
}

func TestStatus_FlattenedJSON(t *testing.T) {
	node := Node{
		Name:       "node1",
		Hostname:   "10.0.0.1:8000",
		NodeStatus: NodeStatus{Status: StatusBad, Problems: []NodeProblem{NodeHighCPULoad}},
	}

	data, err := json.Marshal(node)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"node1","hostname":"10.0.0.1:8000","vdisks":null,"status":"bad","problems":["highCPULoad"]}`, string(data))

	node.NodeStatus = NodeStatus{Status: StatusOffline}
	data, err = json.Marshal(node)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "problems")
	assert.NotContains(t, string(data), "rps")
}

func TestSpace(t *testing.T) {
	report := SpaceReport{
		TotalDiskSpaceBytes:    100,
		FreeDiskSpaceBytes:     30,
		UsedDiskSpaceBytes:     60,
		OccupiedDiskSpaceBytes: 50,
	}

	assert.Equal(t, SpaceInfo{TotalDisk: 100, FreeDisk: 40, UsedDisk: 60, OccupiedDisk: 50}, NodeSpace(report))

	var total SpaceInfo
	AddSpace(&total, report)
	AddSpace(&total, report)
	assert.Equal(t, SpaceInfo{TotalDisk: 200, FreeDisk: 60, UsedDisk: 140, OccupiedDisk: 100}, total)
}
