package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cloudpoll/ec2-fleet-exporter/internal/awsapi"
	"github.com/cloudpoll/ec2-fleet-exporter/internal/config"
	"github.com/cloudpoll/ec2-fleet-exporter/internal/logger"
	"github.com/cloudpoll/ec2-fleet-exporter/internal/poller"
	"github.com/cloudpoll/ec2-fleet-exporter/internal/runner"
	"github.com/cloudpoll/ec2-fleet-exporter/internal/server"
	"github.com/cloudpoll/ec2-fleet-exporter/internal/version"
)

const (
	// DefaultShutdownTimeout is the maximum time to wait for graceful shutdown
	DefaultShutdownTimeout = 30 * time.Second
)

var configPath = flag.String("config", "config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	// Load configuration first (need log level from config)
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logger
	logger := logger.New(cfg.LogLevel)
	logger.Info("EC2 Fleet Exporter starting",
		"version", version.Version,
		"git_commit", version.GitCommit,
		"config_path", *configPath)

	logger.Info("Configuration loaded successfully",
		"http_port", cfg.HTTPPort,
		"log_level", cfg.LogLevel,
		"instances_enabled", cfg.Instances != nil,
		"spot_prices_enabled", cfg.SpotPrices != nil)

	// All metric families live in a private registry so the exporter never
	// serves whatever other libraries drop into the global one.
	registry := prometheus.NewRegistry()

	// Register Go runtime metrics (memory, goroutines, GC stats)
	if err := registry.Register(prometheus.NewGoCollector()); err != nil {
		logger.Warn("Failed to register Go collector", "error", err)
	} else {
		logger.Info("Go runtime metrics registered")
	}

	// Register process metrics (CPU, memory, file descriptors)
	if err := registry.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{})); err != nil {
		logger.Warn("Failed to register process collector", "error", err)
	} else {
		logger.Info("Process metrics registered")
	}

	buildInfo := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ec2_fleet_exporter_build_info",
		Help: "Build information about the exporter. Constant 1.",
	}, []string{"version", "git_commit", "build_date", "go_version", "platform"})
	buildInfo.With(prometheus.Labels(version.Info())).Set(1)
	registry.MustRegister(buildInfo)

	// Construction context for the client credential checks and poller
	// dry-run probes.
	ctx := context.Background()

	var (
		runners  []*runner.Runner
		statuses []server.PollerStatus
	)

	if cfg.Instances != nil {
		logger.Info("Initializing instance poller",
			"region", cfg.Instances.Region,
			"poll_period_seconds", cfg.Instances.PollPeriod,
			"expose_tags", len(cfg.Instances.ExposeTags))

		client, err := awsapi.NewClient(ctx, awsapi.Settings{
			Region:              cfg.Instances.Region,
			CredentialsProvider: awsapi.CredentialsProviderType(cfg.Instances.CredentialsProvider),
			Profile:             cfg.Instances.Profile,
		})
		if err != nil {
			logger.Error("Failed to create EC2 client for instance poller", "error", err)
			os.Exit(1)
		}

		p, err := poller.NewInstancePoller(ctx, client, poller.InstanceSettings{
			ExposeTags: cfg.Instances.ExposeTags,
			PageSize:   cfg.Instances.PageSize,
		}, registry, logger.WithFields("component", "instances"))
		if err != nil {
			logger.Error("Failed to create instance poller", "error", err)
			os.Exit(1)
		}

		r := runner.Start(p, time.Duration(cfg.Instances.PollPeriod)*time.Second,
			logger.WithFields("component", "instances"))
		runners = append(runners, r)
		statuses = append(statuses, r)
		logger.Info("Instance poller started")
	}

	if cfg.SpotPrices != nil {
		logger.Info("Initializing spot price poller",
			"region", cfg.SpotPrices.Region,
			"poll_period_seconds", cfg.SpotPrices.PollPeriod)

		client, err := awsapi.NewClient(ctx, awsapi.Settings{
			Region:              cfg.SpotPrices.Region,
			CredentialsProvider: awsapi.CredentialsProviderType(cfg.SpotPrices.CredentialsProvider),
			Profile:             cfg.SpotPrices.Profile,
		})
		if err != nil {
			logger.Error("Failed to create EC2 client for spot price poller", "error", err)
			os.Exit(1)
		}

		p, err := poller.NewSpotPricePoller(ctx, client, poller.SpotPriceSettings{
			AvailabilityZones: cfg.SpotPrices.AvailabilityZones,
			InstanceTypes:     cfg.SpotPrices.InstanceTypes,
			Products:          cfg.SpotPrices.Products,
			PageSize:          cfg.SpotPrices.PageSize,
		}, registry, logger.WithFields("component", "spot_prices"))
		if err != nil {
			logger.Error("Failed to create spot price poller", "error", err)
			os.Exit(1)
		}

		r := runner.Start(p, time.Duration(cfg.SpotPrices.PollPeriod)*time.Second,
			logger.WithFields("component", "spot_prices"))
		runners = append(runners, r)
		statuses = append(statuses, r)
		logger.Info("Spot price poller started")
	}

	// Create and start HTTP server
	logger.Info("Creating HTTP server", "port", cfg.HTTPPort)
	srv := server.NewServer(cfg, registry, statuses, logger)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("Server error", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		logger.Info("Received shutdown signal, starting graceful shutdown", "signal", sig.String())

		// Stop pollers in reverse start order, waiting out any in-flight pass
		for i := len(runners) - 1; i >= 0; i-- {
			runners[i].Stop()
			logger.Info("Poller stopped", "poller", runners[i].Name())
		}

		// Shutdown server with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error during server shutdown", "error", err)
			// Force shutdown
			os.Exit(1)
		}

		logger.Info("Exporter stopped gracefully")
	}
}
