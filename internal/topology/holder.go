package topology

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/qoollo/bob-management/internal/metrics"
	"go.uber.org/zap"
)

// Connector builds a fresh topology.
type Connector func(ctx context.Context) (*Topology, error)

// Holder publishes the current topology snapshot. A refresh swaps in a whole new snapshot;
// aggregations already running keep the one they started with.
type Holder struct {
	current   atomic.Pointer[Topology]
	connect   Connector
	refreshMu sync.Mutex
	metrics   *metrics.Metrics
	logger    *zap.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewHolder creates an empty holder. Call Refresh to build the first snapshot.
func NewHolder(connect Connector, m *metrics.Metrics, logger *zap.Logger) *Holder {
	return &Holder{
		connect: connect,
		metrics: m,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

// Current returns the latest snapshot, or ErrNotConnected before the first successful refresh.
func (h *Holder) Current() (*Topology, error) {
	t := h.current.Load()
	if t == nil {
		return nil, ErrNotConnected
	}
	return t, nil
}

// Refresh reconnects and publishes the new snapshot. On failure the previous snapshot stays in place.
func (h *Holder) Refresh(ctx context.Context) (*Topology, error) {
	h.refreshMu.Lock()
	defer h.refreshMu.Unlock()

	t, err := h.connect(ctx)
	if err != nil {
		h.metrics.RecordTopologyRefresh(0, err)
		h.logger.Warn("topology refresh failed", zap.Error(err))
		return nil, err
	}
	h.metrics.RecordTopologyRefresh(t.Len(), nil)

	if prev := h.current.Swap(t); prev != nil {
		h.logger.Info("topology replaced",
			zap.String("previous_id", prev.ID()),
			zap.String("topology_id", t.ID()),
			zap.Int("nodes", t.Len()))
	}
	return t, nil
}

// Start refreshes the topology every interval until Stop is called.
func (h *Holder) Start(interval time.Duration) {
	if interval <= 0 {
		return
	}
	h.wg.Add(1)
	go h.refreshLoop(interval)
}

func (h *Holder) refreshLoop(interval time.Duration) {
	defer h.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			_, _ = h.Refresh(ctx)
			cancel()
		case <-h.stopCh:
			return
		}
	}
}

// Stop ends the refresh loop and waits for it to exit.
func (h *Holder) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
	})
	h.wg.Wait()
	h.logger.Info("topology refresher stopped")
}
