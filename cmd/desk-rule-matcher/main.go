package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"desk-rule-matcher/config"
	"desk-rule-matcher/internal/events"
	mqttbus "desk-rule-matcher/internal/events/mqtt"
	natsbus "desk-rule-matcher/internal/events/nats"
	"desk-rule-matcher/internal/logger"
	"desk-rule-matcher/internal/match"
	"desk-rule-matcher/internal/metrics"
	"desk-rule-matcher/internal/store"
)

func main() {
	// Command line flags for config and rules
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	rulesPath := flag.String("rules", "rules", "path to rules directory")

	// Optional override flags
	workersOverride := flag.Int("workers", 0, "override number of worker threads (0 = use config)")
	queueSizeOverride := flag.Int("queue-size", 0, "override size of processing queue (0 = use config)")
	metricsAddrOverride := flag.String("metrics-addr", "", "override metrics server address (empty = use config)")
	metricsPathOverride := flag.String("metrics-path", "", "override metrics endpoint path (empty = use config)")
	metricsIntervalOverride := flag.Duration("metrics-interval", 0, "override metrics collection interval (0 = use config)")

	flag.Parse()

	// Pick up local credentials; a missing .env is fine
	godotenv.Load()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Apply any command line overrides
	cfg.ApplyOverrides(
		*workersOverride,
		*queueSizeOverride,
		*metricsAddrOverride,
		*metricsPathOverride,
		*metricsIntervalOverride,
	)

	// Initialize logger
	logger, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Setup metrics if enabled
	var metricsService *metrics.Metrics
	var metricsCollector *metrics.MetricsCollector
	var metricsServer *http.Server

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		metricsService, err = metrics.NewMetrics(reg)
		if err != nil {
			logger.Fatal("failed to create metrics service", "error", err)
		}

		updateInterval, err := time.ParseDuration(cfg.Metrics.UpdateInterval)
		if err != nil {
			logger.Fatal("invalid metrics update interval", "error", err)
		}

		metricsCollector = metrics.NewMetricsCollector(metricsService, updateInterval)
		metricsCollector.Start()
		defer metricsCollector.Stop()

		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{
			Registry:          reg,
			EnableOpenMetrics: true,
		}))

		metricsServer = &http.Server{
			Addr:    cfg.Metrics.Address,
			Handler: mux,
		}

		go func() {
			logger.Info("starting metrics server",
				"address", cfg.Metrics.Address,
				"path", cfg.Metrics.Path)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	// Setup signal handlers
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	// Open the entity store
	var entityStore store.Store
	switch cfg.Database.Driver {
	case "postgres":
		pgCfg := store.PostgresConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Name:     cfg.Database.Name,
			SSLMode:  cfg.Database.SSLMode,
		}
		if pgCfg.User == "" {
			pgCfg.User = os.Getenv("DESK_DB_USER")
		}
		if pgCfg.Password == "" {
			pgCfg.Password = os.Getenv("DESK_DB_PASSWORD")
		}

		pg, err := store.NewPostgresStore(pgCfg)
		if err != nil {
			logger.Fatal("failed to connect to database", "error", err)
		}
		defer pg.Close()
		entityStore = pg
	default:
		entityStore = store.NewMemoryStore()
	}

	// Load rules from directory
	rulesLoader := match.NewRulesLoader(logger)
	rules, err := rulesLoader.LoadFromDirectory(*rulesPath)
	if err != nil {
		logger.Fatal("failed to load rules", "error", err)
	}

	ruleIndex := match.NewRuleIndex(logger, metricsService)
	for i := range rules {
		if err := ruleIndex.Add(&rules[i]); err != nil {
			logger.Fatal("failed to index rule", "rule", rules[i].ID, "error", err)
		}
	}

	matcher := match.NewMatcher(entityStore, logger, metricsService)

	// Connect the event bus
	var bus interface {
		events.Listener
		events.Publisher
	}
	switch cfg.Events.Transport {
	case "mqtt":
		bus, err = mqttbus.New(&cfg.Events.MQTT, logger, metricsService)
	default:
		bus, err = natsbus.New(&cfg.Events.NATS, logger, metricsService)
	}
	if err != nil {
		logger.Fatal("failed to connect to event bus", "error", err)
	}

	processor := events.NewProcessor(events.ProcessorConfig{
		Workers:   cfg.Processing.Workers,
		QueueSize: cfg.Processing.QueueSize,
	}, ruleIndex, matcher, bus, logger, metricsService)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start processing
	if err := bus.Start(ctx, processor); err != nil {
		logger.Fatal("failed to start event listener", "error", err)
	}

	logger.Info("desk-rule-matcher started",
		"transport", cfg.Events.Transport,
		"store", cfg.Database.Driver,
		"workers", cfg.Processing.Workers,
		"queueSize", cfg.Processing.QueueSize,
		"rulesCount", len(rules),
		"metricsEnabled", cfg.Metrics.Enabled)

	// Handle signals
	for {
		sig := <-sigChan
		switch sig {
		case syscall.SIGHUP:
			logger.Info("received SIGHUP, reloading rules")
			reloaded, err := rulesLoader.LoadFromDirectory(*rulesPath)
			if err != nil {
				logger.Error("rule reload failed, keeping current rules", "error", err)
				continue
			}
			ruleIndex.Clear()
			for i := range reloaded {
				if err := ruleIndex.Add(&reloaded[i]); err != nil {
					logger.Error("failed to index rule", "rule", reloaded[i].ID, "error", err)
				}
			}
			logger.Info("rules reloaded", "rulesCount", len(reloaded))
		case syscall.SIGINT, syscall.SIGTERM:
			logger.Info("shutting down...")

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()

			if cfg.Metrics.Enabled && metricsServer != nil {
				if err := metricsServer.Shutdown(shutdownCtx); err != nil {
					logger.Error("failed to shutdown metrics server", "error", err)
				}
			}

			cancel()
			bus.Close()
			processor.Close()
			return
		}
	}
}
