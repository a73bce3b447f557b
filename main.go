package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"focuscache/internal/auth"
	"focuscache/internal/cache"
	"focuscache/internal/common/logging"
	"focuscache/internal/config"
	"focuscache/internal/database"
	"focuscache/internal/handlers"
	"focuscache/internal/middleware"
	"focuscache/internal/redis"
	"focuscache/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logging.InitGlobalLogger()
	defer logging.MustSync()
	logger := logging.GetGlobalLogger()

	// The remote tier is optional twice over: it can be disabled outright,
	// and an unreachable server at startup just means memory-only operation.
	var remote cache.RemoteStore
	if cfg.RedisEnabled {
		client, err := redis.NewClient(&redis.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDBNumber(),
			PoolSize: cfg.RedisPoolSizeNumber(),
		})
		if err != nil {
			logger.Warn("remote cache unavailable, running memory-only", logging.Err(err))
		} else {
			remote = client
			defer client.Close()
			logger.Info("remote cache connected", logging.String("address", cfg.RedisAddress))
		}
	}

	// Explicitly constructed cache instances, shared process-wide by being
	// wired here rather than by package-level singletons.
	manager := cache.NewManager(remote, cache.ManagerConfig{
		KeyPrefix:  cfg.CacheKeyPrefix,
		DefaultTTL: cfg.DefaultTTL(),
	}, logger)

	responses := cache.NewResponseCache(manager, cache.ResponseCacheConfig{
		Policies: []cache.EndpointPolicy{
			{Pattern: "/api/sessions/*", TTL: 5 * time.Minute, Compress: true},
			{Pattern: "/api/sessions", TTL: time.Minute, Compress: true},
		},
		DefaultTTL:      cfg.DefaultTTL(),
		DefaultCompress: cfg.CacheCompression,
		MaxResponseSize: cfg.MaxResponseSize(),
		Production:      cfg.IsProduction(),
	})

	queries := cache.NewQueryCache(manager)

	store, err := database.Open(cfg.DatabasePath, queries)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	// Expiry is lazy on the read path, so a scheduled sweep is the only
	// thing bounding growth from entries that are never re-read.
	scheduler := cron.New()
	scheduler.Schedule(cron.Every(cfg.CleanupInterval()), cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		manager.Cleanup(ctx)
	}))
	scheduler.Start()
	defer scheduler.Stop()

	h := handlers.New(manager, responses, queries, store, logger)

	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware)
	router.HandleFunc("/health", h.Health).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.Use(auth.Middleware(cfg.JWTSecret))

	api.HandleFunc("/cache/stats", h.CacheStats).Methods("GET")
	api.HandleFunc("/cache/invalidate", h.InvalidateCache).Methods("POST")
	api.HandleFunc("/cache/clear", h.ClearCache).Methods("POST")
	api.HandleFunc("/cache/cleanup", h.RunCleanup).Methods("POST")

	sessions := api.PathPrefix("/sessions").Subrouter()
	sessions.Use(middleware.CachingMiddleware(responses))
	sessions.HandleFunc("", h.ListSessions).Methods("GET")
	sessions.HandleFunc("", h.CreateSession).Methods("POST")
	sessions.HandleFunc("/{id}", h.GetSession).Methods("GET")

	srv := server.New(router, cfg.Port, cfg.TLSCert, cfg.TLSKey, logger)
	srv.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", err)
	}
}
