package gossip

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/memberlist"
	"go.uber.org/zap"

	"dotclock/internal/config"
	"dotclock/internal/metrics"
	"dotclock/internal/replica"
)

const leaveTimeout = time.Second

// Config holds gossip protocol configuration
type Config struct {
	BindAddr         string
	BindPort         int
	AdvertiseAddr    string
	AdvertisePort    int
	Seeds            []string
	GossipInterval   time.Duration
	ProbeInterval    time.Duration
	ProbeTimeout     time.Duration
	PushPullInterval time.Duration
}

// Service manages cluster membership and clock dissemination.
type Service struct {
	delegate   *Delegate
	memberlist atomic.Pointer[memberlist.Memberlist]
	logger     *zap.Logger
}

// NewService creates the memberlist for c and joins the seeds. grpcAddr is
// advertised to other members as this node's RPC endpoint.
func NewService(cfg Config, c *replica.Clock, grpcAddr string, logger *zap.Logger, m *metrics.Metrics) (*Service, error) {
	s := &Service{logger: logger}
	s.delegate = NewDelegate(c, grpcAddr, s.numMembers, logger, m)

	mlConfig := memberlist.DefaultLocalConfig()
	mlConfig.Name = c.ID()
	if cfg.BindAddr != "" {
		mlConfig.BindAddr = cfg.BindAddr
	}
	mlConfig.BindPort = cfg.BindPort
	mlConfig.AdvertiseAddr = cfg.AdvertiseAddr
	mlConfig.AdvertisePort = cfg.AdvertisePort
	if cfg.GossipInterval > 0 {
		mlConfig.GossipInterval = cfg.GossipInterval
	}
	if cfg.ProbeInterval > 0 {
		mlConfig.ProbeInterval = cfg.ProbeInterval
	}
	if cfg.ProbeTimeout > 0 {
		mlConfig.ProbeTimeout = cfg.ProbeTimeout
	}
	if cfg.PushPullInterval > 0 {
		mlConfig.PushPullInterval = cfg.PushPullInterval
	}
	mlConfig.Delegate = s.delegate
	mlConfig.Events = s.delegate
	mlConfig.Logger = zap.NewStdLog(logger.Named("memberlist"))

	ml, err := memberlist.Create(mlConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create memberlist: %w", err)
	}
	s.memberlist.Store(ml)

	if len(cfg.Seeds) > 0 {
		if _, err := ml.Join(cfg.Seeds); err != nil {
			logger.Warn("Failed to join some seed nodes", zap.Strings("seeds", cfg.Seeds), zap.Error(err))
		}
	}

	return s, nil
}

// Peers returns the live members other than this node. It implements
// antientropy.PeerSource.
func (s *Service) Peers() []config.Peer {
	return s.delegate.Peers()
}

// Join contacts the given gossip addresses.
func (s *Service) Join(addrs []string) (int, error) {
	return s.memberlist.Load().Join(addrs)
}

// Addr returns the gossip address this node advertises.
func (s *Service) Addr() string {
	return s.memberlist.Load().LocalNode().Address()
}

// NumMembers returns the number of live members, this node included.
func (s *Service) NumMembers() int {
	return s.numMembers()
}

// Shutdown leaves the cluster and stops the memberlist.
func (s *Service) Shutdown() error {
	ml := s.memberlist.Load()
	if err := ml.Leave(leaveTimeout); err != nil {
		s.logger.Warn("Failed to leave cluster cleanly", zap.Error(err))
	}
	return ml.Shutdown()
}

func (s *Service) numMembers() int {
	ml := s.memberlist.Load()
	if ml == nil {
		return 1
	}
	return ml.NumMembers()
}
