package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adlibrary/ads-spy/internal/api"
	"github.com/adlibrary/ads-spy/internal/cache"
	"github.com/adlibrary/ads-spy/internal/config"
	"github.com/adlibrary/ads-spy/internal/metrics"
	"github.com/adlibrary/ads-spy/internal/monitoring"
	"github.com/adlibrary/ads-spy/internal/notifications"
	"github.com/adlibrary/ads-spy/internal/scheduler"
	"github.com/adlibrary/ads-spy/internal/snapshot"
	"github.com/adlibrary/ads-spy/internal/sources"
	"github.com/adlibrary/ads-spy/internal/storage"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting Ads Spy")

	if cfg.MetaAccessToken == "" {
		logrus.Warn("META_ACCESS_TOKEN is not set, ad searches will fail until it is configured")
	}

	promMetrics := metrics.New("adspy")

	resultCache, closeCache, err := newCache(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize cache: %v", err)
	}
	defer closeCache()

	store, err := newStorage(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize storage: %v", err)
	}

	source := sources.NewMetaAdsSource(cfg.MetaAccessToken, cfg.MetaAPIBaseURL, cfg.MetaRateLimit, cfg.MetaRateLimitWindow)
	notificationService := notifications.NewService(cfg)
	monitoringService := monitoring.NewService(cfg, source, resultCache, store, notificationService, promMetrics)

	if cfg.WatchEnabled() {
		schedulerService, err := scheduler.NewService(cfg, monitoringService)
		if err != nil {
			logrus.Fatalf("Failed to create scheduler: %v", err)
		}
		if err := schedulerService.Start(); err != nil {
			logrus.Fatalf("Failed to start scheduler: %v", err)
		}
		defer schedulerService.Stop()
	} else {
		logrus.Info("No watch terms or page IDs configured, scheduler disabled")
	}

	extractor := snapshot.NewExtractor(snapshot.Config{
		Timeout:    cfg.SnapshotTimeout,
		RenderWait: cfg.SnapshotRenderWait,
		Headless:   cfg.SnapshotHeadless,
	}, promMetrics)

	apiServer := api.NewServer(monitoringService, extractor, promMetrics, api.Options{
		RateLimitRPS:   cfg.APIRateLimitRPS,
		RateLimitBurst: cfg.APIRateLimitBurst,
		TrustProxy:     cfg.APITrustProxy,
	})

	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	defer stopCleanup()
	apiServer.StartLimiterCleanup(cleanupCtx, 10*time.Minute, time.Hour)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      apiServer.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.SnapshotTimeout + cfg.SnapshotRenderWait + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

func newCache(cfg *config.Config) (cache.Cache, func(), error) {
	if cfg.CacheBackend != "redis" {
		logrus.Infof("Using in-memory search cache (TTL %s)", cfg.CacheTTL)
		return cache.NewMemoryCache(cfg.CacheTTL, nil), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	redisCache := cache.NewRedisCache(client, cfg.CacheTTL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisCache.Ping(ctx); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("redis at %s is unreachable: %w", cfg.RedisAddr, err)
	}

	logrus.Infof("Using Redis search cache at %s (TTL %s)", cfg.RedisAddr, cfg.CacheTTL)
	return redisCache, func() {
		if err := client.Close(); err != nil {
			logrus.Warnf("Failed to close Redis client: %v", err)
		}
	}, nil
}

func newStorage(cfg *config.Config) (storage.StorageInterface, error) {
	if cfg.StorageAccount == "" {
		logrus.Info("No storage account configured, keeping reports in memory")
		return storage.NewMemoryStorage(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return storage.NewAzureStorage(ctx, cfg.StorageAccount, cfg.StorageContainer)
}
