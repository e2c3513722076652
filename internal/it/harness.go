// Package it holds multi-node integration tests. The harness runs every node
// in-process on loopback ports, joined through gossip.
package it

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"dotclock/internal/config"
	"dotclock/internal/node"
	"dotclock/internal/transport"
)

// Cluster represents a test cluster of nodes
type Cluster struct {
	mu      sync.Mutex
	nodes   []*node.Node
	clients *transport.ClientManager
	logger  *zap.Logger
}

// NewCluster creates a new test cluster harness
func NewCluster(logger *zap.Logger) *Cluster {
	return &Cluster{
		clients: transport.NewClientManager(),
		logger:  logger,
	}
}

// StartNode starts a node that joins the gossip addresses in seeds.
func (c *Cluster) StartNode(ctx context.Context, nodeID string, seeds []string) (*node.Node, error) {
	ephemeral := 0
	cfg := &config.Config{
		Server: config.ServerConfig{NodeID: nodeID, ListenAddr: "127.0.0.1:0"},
		AntiEntropy: config.AntiEntropyConfig{
			Enabled:     true,
			Interval:    50 * time.Millisecond,
			PeerTimeout: time.Second,
		},
		Gossip: config.GossipConfig{
			Enabled:          true,
			BindAddr:         "127.0.0.1",
			BindPort:         &ephemeral,
			SeedNodes:        seeds,
			GossipInterval:   20 * time.Millisecond,
			ProbeInterval:    200 * time.Millisecond,
			ProbeTimeout:     100 * time.Millisecond,
			PushPullInterval: 500 * time.Millisecond,
		},
	}
	config.SetDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n := node.New(cfg, c.logger)
	if err := n.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start node %s: %w", nodeID, err)
	}

	c.mu.Lock()
	c.nodes = append(c.nodes, n)
	c.mu.Unlock()
	return n, nil
}

// StartCluster starts size nodes, n1 first and the rest seeded with n1.
func (c *Cluster) StartCluster(ctx context.Context, size int) error {
	var seeds []string
	for i := 1; i <= size; i++ {
		n, err := c.StartNode(ctx, fmt.Sprintf("n%d", i), seeds)
		if err != nil {
			c.Stop()
			return err
		}
		if i == 1 {
			seeds = []string{n.Gossip().Addr()}
		}
	}
	return nil
}

// GetNode returns a node by ID
func (c *Cluster) GetNode(nodeID string) *node.Node {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, n := range c.nodes {
		if n.ID() == nodeID {
			return n
		}
	}
	return nil
}

// Nodes returns every running node.
func (c *Cluster) Nodes() []*node.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*node.Node(nil), c.nodes...)
}

// Client returns a gRPC client for a node.
func (c *Cluster) Client(n *node.Node) (*transport.Client, error) {
	return c.clients.GetClient(n.Addr())
}

// StopNode stops and forgets a single node.
func (c *Cluster) StopNode(nodeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, n := range c.nodes {
		if n.ID() == nodeID {
			n.Stop()
			c.nodes = append(c.nodes[:i], c.nodes[i+1:]...)
			return
		}
	}
}

// Stop stops all nodes in the cluster
func (c *Cluster) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, n := range c.nodes {
		n.Stop()
	}
	c.nodes = nil
	_ = c.clients.Close()
}

// Converged reports whether every node holds the same clock and the same
// key set.
func (c *Cluster) Converged() bool {
	nodes := c.Nodes()
	if len(nodes) == 0 {
		return true
	}

	first := nodes[0]
	for _, n := range nodes[1:] {
		if !n.Clock().Snapshot().Equal(first.Clock().Snapshot()) {
			return false
		}
		if fmt.Sprint(n.Store().Keys()) != fmt.Sprint(first.Store().Keys()) {
			return false
		}
	}
	return true
}
