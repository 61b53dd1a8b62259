// NetPulse continuously probes a set of network targets over ICMP, tracks
// incidents, sends alerts, aggregates daily reports, and serves live status
// over HTTP and SSE.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/netpulse/netpulse/internal/alert"
	"github.com/netpulse/netpulse/internal/api"
	"github.com/netpulse/netpulse/internal/config"
	"github.com/netpulse/netpulse/internal/engine"
	"github.com/netpulse/netpulse/internal/logging"
	"github.com/netpulse/netpulse/internal/metrics"
	"github.com/netpulse/netpulse/internal/storage"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize logger
	logger, err := logging.InitLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
		Fields: cfg.Logging.Fields,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Create Prometheus registry
	registry := prometheus.NewRegistry()
	if cfg.Metrics.IncludeProcessMetrics {
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	if cfg.Metrics.IncludeGoMetrics {
		registry.MustRegister(collectors.NewGoCollector())
	}
	m := metrics.NewMetrics(registry)

	// Initialize the event store
	store, err := storage.NewStore(cfg.Storage, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize storage")
	}
	logger.WithFields(map[string]interface{}{
		"backend":       cfg.Storage.Backend,
		"retentionDays": cfg.Storage.RetentionDays,
	}).Info("Storage initialized")

	// Build the alert dispatcher when alerting is enabled
	var alerts *alert.Dispatcher
	if cfg.Alerting.Enabled {
		var notifiers alert.Multi
		if cfg.Alerting.Email.Enabled {
			notifiers = append(notifiers, alert.NewSMTP(
				cfg.Alerting.Email.SMTPServer,
				cfg.Alerting.Email.SMTPPort,
				cfg.Alerting.Email.Sender,
				cfg.Alerting.Email.Password,
				cfg.Alerting.Email.Recipients,
			))
		}
		if cfg.Alerting.Webhook.Enabled {
			notifiers = append(notifiers, alert.NewWebhook(
				cfg.Alerting.Webhook.URL,
				cfg.Alerting.Webhook.Timeout,
			))
		}
		alerts = alert.NewDispatcher(notifiers, cfg.Alerting.Cooldown, cfg.Alerting.Grouping, m, logger)
		logger.WithFields(map[string]interface{}{
			"cooldown": cfg.Alerting.Cooldown.String(),
			"grouping": cfg.Alerting.Grouping,
		}).Info("Alerting enabled")
	}

	// Assemble the monitoring engine
	engineOpts := engine.Options{
		Config:  cfg,
		Store:   store,
		Metrics: m,
		Logger:  logger,
	}
	if alerts != nil {
		engineOpts.Alerts = alerts
	}
	eng := engine.New(engineOpts)

	if err := eng.Start(context.Background()); err != nil {
		logger.WithError(err).Fatal("Failed to start engine")
	}

	// Start the API server in a goroutine
	server := api.NewServer(cfg, eng, logger, registry)
	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	logger.Info("NetPulse started successfully")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down NetPulse...")

	// Stop the API server first so no new reads arrive during teardown
	if err := server.Stop(); err != nil {
		logger.WithError(err).Error("Failed to shutdown server gracefully")
	}

	// Stop the engine: drains monitors and runs the final aggregation pass
	if err := eng.Stop(); err != nil {
		logger.WithError(err).Error("Failed to stop engine gracefully")
	}

	if err := store.Close(); err != nil {
		logger.WithError(err).Error("Failed to close storage")
	}

	logger.Info("NetPulse stopped")
}
