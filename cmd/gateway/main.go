package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/moch-ai/moch-gateway/internal/chat"
	"github.com/moch-ai/moch-gateway/internal/config"
	"github.com/moch-ai/moch-gateway/internal/langfuse"
	"github.com/moch-ai/moch-gateway/internal/observe"
	"github.com/moch-ai/moch-gateway/internal/prompt"
	"github.com/moch-ai/moch-gateway/internal/provider"
	"github.com/moch-ai/moch-gateway/internal/ratelimit"
	"github.com/moch-ai/moch-gateway/internal/server"
	"github.com/moch-ai/moch-gateway/internal/telemetry"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "configs/gateway.yaml", "path to configuration file")
	flag.Parse()

	// .env is optional; config values reference its variables via ${VAR}.
	_ = godotenv.Load()

	loader := config.NewLoader(*configPath, slog.Default())
	if err := loader.Load(); err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	level := logLevel(loader.Config())
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := loader.Watch(); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}

	cfg := loader.Config()
	cfgFn := loader.Config

	metrics := telemetry.NewMetrics()

	// Redis backs rate limiting; the gateway runs without it (checks fail open).
	var rdb *redis.Client
	if cfg.RateLimit.Enabled && len(cfg.RateLimit.RedisAddresses) > 0 && cfg.RateLimit.RedisAddresses[0] != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.RedisAddresses[0],
			Password: cfg.RateLimit.RedisPassword,
			DB:       cfg.RateLimit.RedisDB,
			PoolSize: cfg.RateLimit.RedisPoolSize,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis not reachable (rate limiting fails open)", "error", err)
			rdb = nil
		} else {
			logger.Info("redis connected")
		}
	}

	var lfClient *langfuse.Client
	if cfg.Langfuse.Enabled && cfg.Langfuse.PublicKey != "" && cfg.Langfuse.SecretKey != "" {
		lfClient = langfuse.New(cfg.Langfuse)
		logger.Info("langfuse enabled", "base_url", cfg.Langfuse.BaseURL)
	} else {
		logger.Info("langfuse disabled")
	}

	var remote prompt.RemoteSource
	var recorder *observe.Recorder
	if lfClient != nil {
		remote = lfClient
		recorder = observe.NewRecorder(lfClient)
	}

	store := prompt.NewStore(remote, cfg.Prompts, metrics)
	assembler := prompt.NewAssembler(store)
	invoker := provider.NewInvoker(cfg.Provider)
	service := chat.NewService(assembler, invoker, recorder, cfgFn)
	handler := server.NewHandler(service, cfgFn, metrics)
	limiter := ratelimit.NewLimiter(rdb)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(server.RequestID)
	r.Use(server.CORS)

	r.Get("/health", handler.Health)
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/static/index.html", http.StatusTemporaryRedirect)
	})
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.Server.StaticDir))))

	r.Group(func(r chi.Router) {
		r.Use(ratelimit.Middleware(limiter, cfgFn, metrics))
		r.Post("/api/v1/chat", handler.Chat)
		r.Post("/api/v1/chat/stream", handler.ChatStream)
		r.Get("/api/v1/models", handler.ListModels)
	})

	if cfg.Telemetry.MetricsPort > 0 {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Telemetry.MetricsPort)
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("metrics server starting", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway starting", "addr", addr, "version", version, "local_dev", cfg.LocalDev)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("gateway stopped")
}

func logLevel(cfg *config.Config) slog.Level {
	if cfg.LocalDev {
		return slog.LevelDebug
	}
	switch cfg.Telemetry.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
