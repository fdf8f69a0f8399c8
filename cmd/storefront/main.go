// Package main is the entry point for the storefront companion service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vyrodovalexey/gamestore/internal/apiclient"
	"github.com/vyrodovalexey/gamestore/internal/cart"
	"github.com/vyrodovalexey/gamestore/internal/catalog"
	"github.com/vyrodovalexey/gamestore/internal/checkout"
	"github.com/vyrodovalexey/gamestore/internal/config"
	"github.com/vyrodovalexey/gamestore/internal/handler"
	"github.com/vyrodovalexey/gamestore/internal/kv"
	"github.com/vyrodovalexey/gamestore/internal/server"
	"github.com/vyrodovalexey/gamestore/internal/session"
	"github.com/vyrodovalexey/gamestore/internal/telemetry"
	"github.com/vyrodovalexey/gamestore/internal/upload"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		// Use a basic logger for startup errors
		basicLogger, _ := zap.NewProduction()
		basicLogger.Error("failed to load configuration", zap.Error(err))
		return 1
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		basicLogger, _ := zap.NewProduction()
		basicLogger.Error("failed to initialize logger", zap.Error(err))
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("configuration loaded",
		zap.Int("server_port", cfg.ServerPort),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("shutdown_timeout", cfg.ShutdownTimeout),
		zap.Bool("metrics_enabled", cfg.MetricsEnabled),
		zap.String("api_base_url", cfg.APIBaseURL),
		zap.Duration("request_timeout", cfg.RequestTimeout),
		zap.Bool("breaker_enabled", cfg.BreakerEnabled),
		zap.String("storage_backend", cfg.StorageBackend),
	)

	ctx := context.Background()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.OTLPEndpoint, handler.Version, logger)
	if err != nil {
		logger.Error("failed to initialize tracing", zap.Error(err))
		return 1
	}

	bridge, err := createBridge(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open storage", zap.Error(err))
		return 1
	}
	defer func() {
		if err := bridge.Close(); err != nil {
			logger.Warn("failed to close storage", zap.Error(err))
		}
	}()

	client, err := createClient(cfg, logger)
	if err != nil {
		logger.Error("failed to create backend client", zap.Error(err))
		return 1
	}

	sess := session.New(ctx, bridge, catalog.NewAuth(client), logger)
	client.Use(apiclient.BearerAuth(sess))

	if sess.IsAuthenticated() {
		valid := sess.Validate(ctx)
		logger.Info("restored session checked", zap.Bool("valid", valid))
	}

	srv := server.New(cfg, logger, createHandlers(ctx, cfg, client, bridge, sess, logger), sess)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0

	select {
	case err := <-serverErrors:
		logger.Error("server error", zap.Error(err))
		exitCode = 1
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
			exitCode = 1
		}
	}

	tracingCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()
	if err := shutdownTracing(tracingCtx); err != nil {
		logger.Warn("failed to flush traces", zap.Error(err))
	}

	logger.Info("server stopped")
	return exitCode
}

// initLogger initializes a zap logger with the specified log level.
func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	zapConfig := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return zapConfig.Build()
}

// createBridge opens the key-value storage selected by the config.
func createBridge(ctx context.Context, cfg *config.Config, logger *zap.Logger) (kv.Bridge, error) {
	switch cfg.StorageBackend {
	case config.StorageMemory:
		logger.Info("storage: memory, state is lost on restart")
		return kv.NewMemoryBridge(), nil
	case config.StorageFile:
		logger.Info("storage: file", zap.String("path", cfg.StoragePath))
		return kv.NewFileBridge(cfg.StoragePath, logger)
	case config.StorageRedis:
		logger.Info("storage: redis",
			zap.String("addr", cfg.RedisAddr),
			zap.Int("db", cfg.RedisDB),
			zap.String("prefix", cfg.RedisPrefix),
		)
		return kv.NewRedisBridge(ctx, kv.RedisOptions{
			Addr:   cfg.RedisAddr,
			DB:     cfg.RedisDB,
			Prefix: cfg.RedisPrefix,
		})
	case config.StorageSQLite:
		logger.Info("storage: sqlite", zap.String("path", cfg.StoragePath))
		return kv.NewSQLiteBridge(ctx, cfg.StoragePath)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.StorageBackend)
	}
}

// createClient builds the backend client with its outbound middleware. The
// bearer middleware is added once the session store exists.
func createClient(cfg *config.Config, logger *zap.Logger) (*apiclient.Client, error) {
	middlewares := []apiclient.Middleware{
		apiclient.RequestID(),
		apiclient.Logging(logger),
	}

	if cfg.MetricsEnabled {
		middlewares = append(middlewares, apiclient.Metrics())
	}

	if cfg.BreakerEnabled {
		middlewares = append(middlewares, apiclient.CircuitBreaker(apiclient.DefaultBreakerSettings(), logger))
	}

	return apiclient.New(cfg.APIBaseURL, cfg.RequestTimeout, logger, apiclient.WithMiddleware(middlewares...))
}

// createHandlers wires the stores and catalog services into the route
// groups.
func createHandlers(
	ctx context.Context,
	cfg *config.Config,
	client *apiclient.Client,
	bridge kv.Bridge,
	sess *session.Store,
	logger *zap.Logger,
) server.Handlers {
	cartStore := cart.New(ctx, bridge, logger)

	games := catalog.NewGames(client)
	products := catalog.NewProducts(client)
	home := catalog.NewHome(client)
	storefront := catalog.NewStorefront(games, products, logger)

	uploader := upload.New(client, upload.Options{
		MaxBytes: cfg.UploadMaxBytes,
		MaxWidth: cfg.UploadMaxWidth,
	}, logger)

	return server.Handlers{
		Health:  handler.NewHealthHandler(logger),
		Cart:    handler.NewCartHandler(cartStore, checkout.NewService(cartStore, cfg.CheckoutPhone, logger), logger),
		Session: handler.NewSessionHandler(sess, logger),
		Catalog: handler.NewCatalogHandler(games, products, home, storefront, cfg.PageSize, logger),
		Admin:   handler.NewAdminHandler(games, products, home, uploader, logger),
		Events:  handler.NewWebSocketHandler(cartStore, sess, logger),
	}
}
