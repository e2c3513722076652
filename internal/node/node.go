package node

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"dotclock/internal/antientropy"
	"dotclock/internal/config"
	"dotclock/internal/gossip"
	"dotclock/internal/metrics"
	"dotclock/internal/replica"
	"dotclock/internal/storage"
	"dotclock/internal/transport"
)

// Node represents a single node in the distributed system.
type Node struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	clock   *replica.Clock
	store   *storage.InMemoryStore
	clients *transport.ClientManager

	grpcServer    *grpc.Server
	metricsServer *metrics.Server
	gossip        *gossip.Service
	syncer        *antientropy.Syncer
	addr          string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a node from cfg. Extra dial options are used for every
// outgoing peer connection.
func New(cfg *config.Config, logger *zap.Logger, dialOpts ...grpc.DialOption) *Node {
	nodeID := cfg.Server.NodeID
	logger = logger.With(zap.String("node_id", nodeID))
	m := metrics.New(nodeID, nil)

	c := replica.NewClock(nodeID, logger, m)

	return &Node{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		clock:   c,
		store:   storage.NewInMemoryStore(c, m),
		clients: transport.NewClientManager(dialOpts...),
	}
}

// Start starts the gRPC server and the background components enabled in
// the configuration. It returns once everything is listening.
func (n *Node) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", n.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", n.cfg.Server.ListenAddr, err)
	}
	n.addr = advertiseAddr(n.cfg.Server.AdvertiseAddr, lis.Addr())

	n.grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(
		transport.MetricsInterceptor(n.metrics),
		transport.LoggingInterceptor(n.logger),
	))
	transport.RegisterClockServer(n.grpcServer, transport.NewServer(n.clock, n.store, n.logger))

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.grpcServer.Serve(lis); err != nil {
			n.logger.Error("gRPC server stopped", zap.Error(err))
		}
	}()
	n.logger.Info("Starting node", zap.String("addr", n.addr))

	if n.cfg.Metrics.Enabled {
		if err := n.startMetrics(); err != nil {
			n.Stop()
			return err
		}
	}

	if n.cfg.Gossip.Enabled {
		svc, err := gossip.NewService(gossip.Config{
			BindAddr:         n.cfg.Gossip.BindAddr,
			BindPort:         gossipPort(n.cfg.Gossip.BindPort),
			Seeds:            n.cfg.Gossip.SeedNodes,
			GossipInterval:   n.cfg.Gossip.GossipInterval,
			ProbeInterval:    n.cfg.Gossip.ProbeInterval,
			ProbeTimeout:     n.cfg.Gossip.ProbeTimeout,
			PushPullInterval: n.cfg.Gossip.PushPullInterval,
		}, n.clock, n.addr, n.logger.Named("gossip"), n.metrics)
		if err != nil {
			n.Stop()
			return fmt.Errorf("failed to start gossip: %w", err)
		}
		n.gossip = svc
		n.logger.Info("Started gossip membership", zap.String("gossip_addr", svc.Addr()))
	}

	n.syncer = antientropy.NewSyncer(n.clock, n.store, n.peerSource(), n.clients, antientropy.Options{
		Interval:      n.cfg.AntiEntropy.Interval,
		PeerTimeout:   n.cfg.AntiEntropy.PeerTimeout,
		RepairTimeout: n.cfg.AntiEntropy.RepairTimeout,
		Required:      n.cfg.AntiEntropy.Required,
	}, n.logger.Named("antientropy"), n.metrics)

	runCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	if n.cfg.AntiEntropy.Enabled {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.syncer.Run(runCtx)
		}()
	}

	return nil
}

// Stop gracefully stops the node.
func (n *Node) Stop() {
	if n.cancel != nil {
		n.cancel()
	}
	if n.gossip != nil {
		if err := n.gossip.Shutdown(); err != nil {
			n.logger.Warn("Gossip shutdown failed", zap.Error(err))
		}
	}
	if n.grpcServer != nil {
		n.logger.Info("Stopping node")
		n.grpcServer.GracefulStop()
	}
	if n.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), n.cfg.Server.ShutdownTimeout)
		if err := n.metricsServer.Shutdown(ctx); err != nil {
			n.logger.Warn("Metrics server shutdown failed", zap.Error(err))
		}
		cancel()
	}
	n.wg.Wait()
	if err := n.clients.Close(); err != nil {
		n.logger.Warn("Closing peer connections failed", zap.Error(err))
	}
}

// Addr returns the gRPC address other nodes reach this node on.
func (n *Node) Addr() string { return n.addr }

// ID returns the node ID.
func (n *Node) ID() string { return n.clock.ID() }

// Clock returns the node clock.
func (n *Node) Clock() *replica.Clock { return n.clock }

// Store returns the sibling store.
func (n *Node) Store() storage.Store { return n.store }

// Metrics returns the node metrics.
func (n *Node) Metrics() *metrics.Metrics { return n.metrics }

// Syncer returns the anti-entropy syncer. It is nil before Start.
func (n *Node) Syncer() *antientropy.Syncer { return n.syncer }

// Gossip returns the gossip service, or nil when gossip is disabled.
func (n *Node) Gossip() *gossip.Service { return n.gossip }

func (n *Node) startMetrics() error {
	lis, err := net.Listen("tcp", n.cfg.Metrics.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", n.cfg.Metrics.ListenAddr, err)
	}
	n.metricsServer = metrics.NewServer(n.cfg.Metrics.ListenAddr, n.metrics, n.logger)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.metricsServer.Serve(lis); err != nil {
			n.logger.Error("Metrics server stopped", zap.Error(err))
		}
	}()
	return nil
}

// peerSource combines static peers with gossip membership when enabled.
func (n *Node) peerSource() antientropy.PeerSource {
	static := antientropy.StaticPeers(n.cfg.SyncPeers())
	if n.gossip == nil {
		return static
	}
	return &mergedPeers{sources: []antientropy.PeerSource{static, n.gossip}}
}

type mergedPeers struct {
	sources []antientropy.PeerSource
}

// Peers returns the union of every source, deduplicated by ID. Later
// sources win on address conflicts.
func (m *mergedPeers) Peers() []config.Peer {
	byID := make(map[string]string)
	for _, src := range m.sources {
		for _, p := range src.Peers() {
			byID[p.ID] = p.Addr
		}
	}
	peers := make([]config.Peer, 0, len(byID))
	for id, addr := range byID {
		peers = append(peers, config.Peer{ID: id, Addr: addr})
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].ID < peers[j].ID })
	return peers
}

func gossipPort(p *int) int {
	if p == nil {
		return config.DefaultGossipPort
	}
	return *p
}

// advertiseAddr resolves a configured address ending in port 0 to the
// port actually bound.
func advertiseAddr(configured string, bound net.Addr) string {
	if configured == "" || strings.HasSuffix(configured, ":0") {
		return bound.String()
	}
	return configured
}
