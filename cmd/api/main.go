package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/ttsgate/internal/accounts"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/admin"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/auth"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/cache"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/config"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/database"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/logging"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/middleware"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/queue"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/quota"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/storage"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/tracing"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/tts"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/usage"
)

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

	if cfg.Server.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	// Tracing
	_, tracerCloser, err := tracing.InitTracer(cfg.Tracing)
	if err != nil {
		logger.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer tracerCloser.Close()

	// Database: least-privileged app pool plus admin pool
	appDB, err := database.New(ctx, cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer appDB.Close()

	adminDB := appDB
	if cfg.Database.AdminUser != "" && cfg.Database.AdminUser != cfg.Database.User {
		adminDB, err = database.New(ctx, cfg.Database.ForAdmin())
		if err != nil {
			logger.Fatalf("Failed to connect to database as admin: %v", err)
		}
		defer adminDB.Close()
	}

	if err := database.Migrate(ctx, adminDB); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	logger.Infof("Database ready (app role %s, admin role %s)", appDB.Role, adminDB.Role)

	repo := database.NewRepository(appDB, adminDB)

	healthChecks := []HealthCheck{{Name: "database", Check: repo.Health}}

	// Optional Redis cache for language lookups and login throttling
	var redisCache *cache.Cache
	if cfg.Redis.Enabled {
		redisCache, err = cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.CacheTTL)
		if err != nil {
			logger.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisCache.Close()
		healthChecks = append(healthChecks, HealthCheck{Name: "redis", Check: redisCache.Ping})
		logger.Info("Redis cache enabled")
	}

	recorderOpts := []usage.Option{usage.WithQueueSize(cfg.Usage.QueueSize)}
	if redisCache != nil {
		recorderOpts = append(recorderOpts, usage.WithLanguageCache(redisCache))
	}

	// Optional usage event fan-out
	if cfg.Queue.Enabled {
		publisher, err := queue.New(cfg.Queue)
		if err != nil {
			logger.Fatalf("Failed to connect to queue: %v", err)
		}
		defer publisher.Close()
		recorderOpts = append(recorderOpts, usage.WithPublisher(publisher))
		logger.Info("Usage event publishing enabled")
	}

	// Optional audio archive
	if cfg.Storage.Enabled {
		archive, err := storage.New(ctx, cfg.Storage)
		if err != nil {
			logger.Fatalf("Failed to initialize storage: %v", err)
		}
		recorderOpts = append(recorderOpts, usage.WithArchiver(archive))
		logger.Info("Audio archiving enabled")
	}

	// Core services
	policy, err := quota.ParsePolicy(cfg.Quota.Policy)
	if err != nil {
		logger.Fatalf("Invalid quota policy: %v", err)
	}
	ledger := quota.NewLedger(repo, cfg.Quota.DefaultLimit, policy, logger)
	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	var throttle accounts.Throttle
	if redisCache != nil {
		throttle = redisCache
	}

	recorder := usage.NewRecorder(repo, logger, recorderOpts...)
	recorder.Start(cfg.Usage.Workers)

	api := &API{
		accounts: accounts.NewService(repo, ledger, tokens, throttle, logger),
		proxy:    tts.NewProxy(tts.NewClient(cfg.TTS, logger), ledger, logger),
		quota:    ledger,
		admin:    admin.NewService(repo, ledger, logger),
		usage:    recorder,
		auth:     middleware.NewAuthenticator(tokens, repo, logger),
		health:   healthChecks,
		logger:   logger,
		opts: Options{
			BasePath:         cfg.Server.BasePath,
			TokenTTL:         tokens.TTL(),
			SecureCookies:    cfg.Auth.SecureCookies,
			EnableTestRoutes: cfg.Server.EnableTestRoutes,
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
		},
	}

	limiter := middleware.NewRateLimiter(cfg.Server.LoginRPS, cfg.Server.LoginBurst)
	limiterCtx, stopLimiter := context.WithCancel(ctx)
	defer stopLimiter()
	go limiter.Cleanup(limiterCtx)

	// Setup router
	router := setupRouter(api, limiter)

	// Metrics server
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		probes := make(map[string]metrics.Probe, len(healthChecks))
		for _, hc := range healthChecks {
			probes[hc.Name] = hc.Check
		}
		metricsServer = metrics.NewServer(cfg.Metrics.Port, probes)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.ErrorWithErr("Metrics server stopped", err)
			}
		}()
		logger.Infof("Metrics server listening on :%d", cfg.Metrics.Port)
	}

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Starting API server on %s (quota policy %s)", addr, policy)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithErr("Server forced to shutdown", err)
	}

	// Pending usage events are written before the pools close
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelDrain()
	if err := recorder.Shutdown(drainCtx); err != nil {
		logger.ErrorWithErr("Usage recorder did not drain", err)
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.ErrorWithErr("Metrics server forced to shutdown", err)
		}
	}

	logger.Info("Server stopped")
}
