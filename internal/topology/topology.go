// Package topology discovers the cluster from a bootstrap node and holds immutable snapshots of it.
package topology

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/qoollo/bob-management/internal/client"
	"github.com/qoollo/bob-management/internal/metrics"
	"github.com/qoollo/bob-management/internal/model"
	"go.uber.org/zap"
)

// ClientFactory builds the client for one node address.
type ClientFactory func(addr model.Hostname) (client.API, error)

// NewClientFactory returns a factory producing HTTP node clients that share one configuration.
func NewClientFactory(creds *client.Credentials, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) ClientFactory {
	return func(addr model.Hostname) (client.API, error) {
		return client.NewNodeClient(client.Config{
			Address:     addr,
			Credentials: creds,
			Timeout:     timeout,
		}, m, logger.With(zap.String("node_address", addr.String()))), nil
	}
}

// Topology is an immutable snapshot of the cluster: the bootstrap client plus one client per peer.
// It is never modified after construction and may be shared by any number of aggregations.
type Topology struct {
	id          string
	bootstrap   model.Hostname
	main        client.API
	nodes       map[string]client.API
	names       []string
	connectedAt time.Time
}

// New builds a snapshot from already constructed clients.
func New(bootstrap model.Hostname, main client.API, nodes map[string]client.API) *Topology {
	copied := make(map[string]client.API, len(nodes))
	names := make([]string, 0, len(nodes))
	for name, c := range nodes {
		copied[name] = c
		names = append(names, name)
	}
	slices.Sort(names)

	return &Topology{
		id:          uuid.NewString(),
		bootstrap:   bootstrap,
		main:        main,
		nodes:       copied,
		names:       names,
		connectedAt: time.Now(),
	}
}

// Connect discovers the cluster through the node at address.
// Only a failure of the bootstrap node is fatal; peers whose address cannot be derived are skipped.
func Connect(ctx context.Context, address string, factory ClientFactory, logger *zap.Logger) (*Topology, error) {
	bootstrap, err := model.ParseHostname(address)
	if err != nil {
		return nil, &ConnectError{Kind: KindBadAddress, Address: address, Err: err}
	}

	main, err := factory(bootstrap)
	if err != nil {
		return nil, &ConnectError{Kind: KindInitClient, Address: address, Err: err}
	}

	peers, err := main.GetNodes(ctx)
	if err != nil {
		kind := KindInaccessible
		if client.IsPermissionDenied(err) {
			kind = KindPermissionDenied
		}
		logger.Error("bootstrap node unavailable",
			zap.String("address", address),
			zap.String("kind", string(kind)),
			zap.Error(err))
		return nil, &ConnectError{Kind: kind, Address: address, Err: err}
	}

	nodes := make(map[string]client.API, len(peers))
	for _, peer := range peers {
		if _, dup := nodes[peer.Name]; dup {
			logger.Warn("duplicate node in cluster listing, keeping first",
				zap.String("node", peer.Name))
			continue
		}
		// peers advertise their data address; the API listens on the bootstrap's port
		addr, err := model.WithPort(peer.Address, bootstrap.Port())
		if err != nil {
			logger.Warn("skipping node with unusable address",
				zap.String("node", peer.Name),
				zap.String("address", peer.Address),
				zap.Error(err))
			continue
		}
		c, err := factory(addr)
		if err != nil {
			logger.Warn("skipping node, failed to create client",
				zap.String("node", peer.Name),
				zap.String("address", addr.String()),
				zap.Error(err))
			continue
		}
		nodes[peer.Name] = c
	}

	t := New(bootstrap, main, nodes)
	logger.Info("cluster topology built",
		zap.String("topology_id", t.id),
		zap.String("bootstrap", bootstrap.String()),
		zap.Int("listed_nodes", len(peers)),
		zap.Int("nodes", len(nodes)))
	return t, nil
}

// ID identifies the snapshot.
func (t *Topology) ID() string { return t.id }

// Bootstrap is the address the snapshot was discovered from.
func (t *Topology) Bootstrap() model.Hostname { return t.bootstrap }

// Main is the bootstrap node's client.
func (t *Topology) Main() client.API { return t.main }

// ConnectedAt is when the snapshot was built.
func (t *Topology) ConnectedAt() time.Time { return t.connectedAt }

// Node returns the client of a named node.
func (t *Topology) Node(name string) (client.API, bool) {
	c, ok := t.nodes[name]
	return c, ok
}

// Names returns the known node names in sorted order.
func (t *Topology) Names() []string {
	return slices.Clone(t.names)
}

// Len is the number of known nodes.
func (t *Topology) Len() int { return len(t.names) }

// Info describes the snapshot.
func (t *Topology) Info() model.TopologyInfo {
	return model.TopologyInfo{
		ID:          t.id,
		Bootstrap:   t.bootstrap.String(),
		Nodes:       t.Names(),
		ConnectedAt: t.connectedAt.UTC().Format(time.RFC3339),
	}
}

// ProbeMain reports whether the bootstrap node answers.
func (t *Topology) ProbeMain(ctx context.Context) error {
	_, err := t.main.GetNodes(ctx)
	return err
}

// ProbeNode checks that a named node answers its liveness probe.
func (t *Topology) ProbeNode(ctx context.Context, name string) error {
	c, ok := t.nodes[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, name)
	}
	_, err := c.GetNodes(ctx)
	return err
}
