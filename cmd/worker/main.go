package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/therealutkarshpriyadarshi/ttsgate/internal/config"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/logging"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/queue"
)

// The worker consumes usage events published by the API and keeps a
// per-endpoint, per-language audit trail in logs and metrics.
func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	bootLogger, _ := logging.NewDefaultLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		bootLogger.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		bootLogger.Fatalf("Failed to initialize logger: %v", err)
	}

	if !cfg.Queue.Enabled {
		logger.Fatalf("Usage audit worker requires queue.enabled")
	}

	consumer, err := queue.NewConsumer(cfg.Queue)
	if err != nil {
		logger.Fatalf("Failed to connect to queue: %v", err)
	}
	defer consumer.Close()

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Port, map[string]metrics.Probe{
			"queue": consumer.Ping,
		})
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.ErrorWithErr("Metrics server stopped", err)
			}
		}()
	}

	if err := consumer.ConsumeUsage(ctx, auditHandler(logger)); err != nil {
		logger.Fatalf("Failed to consume usage events: %v", err)
	}
	logger.Infof("Usage audit worker started on queue %s", cfg.Queue.AuditQueue)

	<-sigChan
	logger.Info("Shutting down worker gracefully...")
	cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(context.Background()); err != nil {
			logger.ErrorWithErr("Metrics server forced to shutdown", err)
		}
	}

	logger.Info("Worker stopped")
}

func auditHandler(logger *logging.Logger) func(*queue.UsageMessage) error {
	return func(msg *queue.UsageMessage) error {
		metrics.RecordUsageAudited(msg.Endpoint, msg.LanguageCode)
		logger.WithUserID(msg.UserID).
			WithField("usage_id", msg.ID).
			WithField("endpoint", msg.Endpoint).
			WithField("method", msg.Method).
			WithField("language", msg.LanguageCode).
			WithField("audio_key", msg.AudioKey).
			Info("Usage event audited")
		return nil
	}
}
