package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dotclock/internal/config"
	"dotclock/internal/node"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file (default $CONFIG_PATH or ./config.yaml)")
	peers := flag.String("peers", "", "override static peers: id1=addr1,id2=addr2")
	flag.Parse()

	path := *configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "./config.yaml"
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *peers != "" {
		parsed, err := config.ParsePeers(*peers)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -peers: %v\n", err)
			os.Exit(1)
		}
		cfg.Peers = parsed
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
			os.Exit(1)
		}
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded",
		zap.String("node_id", cfg.Server.NodeID),
		zap.String("listen_addr", cfg.Server.ListenAddr),
		zap.Int("peers", len(cfg.SyncPeers())),
		zap.Bool("gossip", cfg.Gossip.Enabled),
		zap.Bool("anti_entropy", cfg.AntiEntropy.Enabled))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n := node.New(cfg, logger)
	if err := n.Start(ctx); err != nil {
		logger.Fatal("Failed to start node", zap.Error(err))
	}

	<-ctx.Done()
	logger.Info("Shutting down gracefully...")
	n.Stop()
}

// initLogger initializes the zap logger
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zapConfig := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	return zapConfig.Build()
}
