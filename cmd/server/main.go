// Package main provides the entry point for the cluster management server.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/qoollo/bob-management/internal/aggregator"
	"github.com/qoollo/bob-management/internal/config"
	"github.com/qoollo/bob-management/internal/metrics"
	"github.com/qoollo/bob-management/internal/server"
	"github.com/qoollo/bob-management/internal/topology"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, cfgErr := config.Load(*configPath)

	// LOG_LEVEL and LOG_FORMAT win over the config file.
	level, format := os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT")
	if cfgErr == nil {
		if level == "" {
			level = cfg.Logging.Level
		}
		if format == "" {
			format = cfg.Logging.Format
		}
	}
	logger := initLogger(level, format)
	defer func() { _ = logger.Sync() }()

	if cfgErr != nil {
		logger.Fatal("failed to load configuration", zap.Error(cfgErr))
	}

	logger.Info("starting bob management server",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("cluster_address", cfg.Cluster.Address),
		zap.Duration("request_timeout", cfg.Cluster.RequestTimeout),
		zap.Duration("refresh_interval", cfg.Cluster.RefreshInterval),
	)

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	factory := topology.NewClientFactory(cfg.Cluster.Credentials(), cfg.Cluster.RequestTimeout, m, logger)
	holder := topology.NewHolder(func(ctx context.Context) (*topology.Topology, error) {
		return topology.Connect(ctx, cfg.Cluster.Address, factory, logger)
	}, m, logger)

	// The server starts even if the cluster is down; views answer 503 until a refresh succeeds.
	connectCtx, cancelConnect := context.WithTimeout(context.Background(), cfg.Cluster.RequestTimeout)
	if topo, err := holder.Refresh(connectCtx); err != nil {
		logger.Warn("initial topology connect failed", zap.Error(err))
	} else {
		logger.Info("connected to cluster",
			zap.String("topology_id", topo.ID()),
			zap.Int("nodes", topo.Len()))
	}
	cancelConnect()
	holder.Start(cfg.Cluster.RefreshInterval)

	agg := aggregator.New(holder, aggregator.Config{
		Thresholds:     cfg.Thresholds.Status(),
		MaxConcurrency: cfg.Aggregation.MaxConcurrency,
	}, m, logger)

	var metricsServer *metrics.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, prometheus.DefaultGatherer, logger)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error("metrics server error", zap.Error(err))
			}
		}()
	}

	httpServer := server.NewServer(cfg, agg, holder, m, logger)

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		logger.Error("server error", zap.Error(err))
	}

	logger.Info("initiating graceful shutdown")
	holder.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown HTTP server", zap.Error(err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.Error("failed to shutdown metrics server", zap.Error(err))
		}
	}

	logger.Info("bob management server shutdown complete")
}

// initLogger builds the zap logger. Unknown levels fall back to info; "console" selects the
// development encoder, anything else JSON.
func initLogger(levelName, format string) *zap.Logger {
	level := zapcore.InfoLevel
	if levelName != "" {
		if err := level.UnmarshalText([]byte(levelName)); err != nil {
			level = zapcore.InfoLevel
		}
	}

	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
