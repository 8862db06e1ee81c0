package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx as database/sql driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/triage-ai/warden/internal/anticheat"
	"github.com/triage-ai/warden/internal/api"
	"github.com/triage-ai/warden/internal/auth"
	"github.com/triage-ai/warden/internal/cache"
	"github.com/triage-ai/warden/internal/chread"
	"github.com/triage-ai/warden/internal/config"
	"github.com/triage-ai/warden/internal/discord"
	"github.com/triage-ai/warden/internal/metrics"
	"github.com/triage-ai/warden/internal/storage"
	"github.com/triage-ai/warden/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warden: %v\n", err)
		os.Exit(1)
	}

	// Logger
	logger := mustBuildLogger(cfg.Logging.Level)
	defer logger.Sync() //nolint:errcheck // best-effort flush

	logger.Info("starting warden server",
		zap.Int("http_port", cfg.Server.Port),
		zap.Int("analysis_workers", cfg.Analysis.Workers),
		zap.Int("analysis_timeout_ms", cfg.Analysis.TimeoutMs),
	)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Postgres (required)
	db, err := sql.Open("pgx", cfg.Postgres.DSN)
	if err != nil {
		logger.Fatal("failed to open postgres", zap.Error(err))
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
	if err := db.PingContext(context.Background()); err != nil {
		logger.Fatal("failed to ping postgres", zap.Error(err))
	}
	pgStore := store.NewStore(db)
	logger.Info("postgres connected")

	// Storage: ClickHouse or LogWriter fallback
	var writer storage.EventWriter
	if cfg.ClickHouse.DSN != "" {
		chWriter, err := storage.NewClickHouseWriter(cfg.ClickHouse.DSN, logger, m.EventsDropped.Inc)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log writer", zap.Error(err))
			writer = storage.NewLogWriter(logger)
		} else {
			writer = chWriter
			logger.Info("clickhouse writer connected")
		}
	} else {
		writer = storage.NewLogWriter(logger)
		logger.Info("no CLICKHOUSE_DSN set, using log writer")
	}

	// ClickHouse reader (decision listing / analytics)
	var reader api.DecisionReader
	if cfg.ClickHouse.DSN != "" {
		chReader, err := chread.NewReader(cfg.ClickHouse.DSN, logger)
		if err != nil {
			logger.Warn("clickhouse reader connection failed", zap.Error(err))
		} else {
			defer func() { _ = chReader.Close() }()
			reader = chReader
			logger.Info("clickhouse reader connected")
		}
	}

	// Message stats: Redis read-through or Postgres directly
	var stats anticheat.UserStatsProvider = pgStore
	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("redis connection failed, reading message stats from postgres", zap.Error(err))
		} else {
			defer func() { _ = rdb.Close() }()
			stats = cache.NewStatsCache(cache.NewRedisKV(rdb), pgStore, cfg.Redis.StatsTTL, logger)
			logger.Info("redis stats cache connected", zap.String("addr", cfg.Redis.Addr))
		}
	}

	// Discord: account profiles and review notices
	var accounts anticheat.AccountProvider = discord.SnowflakeAccounts{}
	var notifier anticheat.ReviewNotifier
	if cfg.Discord.Token != "" {
		session, err := discord.NewSession(cfg.Discord.Token)
		if err != nil {
			logger.Fatal("failed to create discord session", zap.Error(err))
		}
		accounts = discord.NewAccountProvider(session, cfg.Discord.AccountCacheTTL, logger, m)
		if cfg.Discord.ReviewChannelID != "" {
			notifier = discord.NewReviewNotifier(session, cfg.Discord.ReviewChannelID, logger)
		}
		logger.Info("discord REST client configured",
			zap.Bool("review_notices", notifier != nil),
		)
	} else {
		logger.Info("no DISCORD_BOT_TOKEN set, account age from snowflake only")
	}

	// Anti-cheat service
	svc := anticheat.NewService(anticheat.Dependencies{
		History:    pgStore,
		Behavior:   pgStore,
		Violations: pgStore,
		Stats:      stats,
		Accounts:   accounts,
		Trust:      pgStore,
		Records:    pgStore,
		Events:     writer,
		Notifier:   notifier,
		Logger:     logger,
		Metrics:    m,
	}, anticheat.Config{
		Analysis: anticheat.AnalyzerConfig{
			Workers:   cfg.Analysis.Workers,
			QueueSize: cfg.Analysis.QueueSize,
			Timeout:   cfg.Analysis.Timeout(),
		},
		Cooldowns: &cfg.Cooldowns,
	})

	// Auth
	var admin auth.Authenticator
	if cfg.Auth.AdminToken != "" {
		admin = auth.NewAdminAuthenticator(cfg.Auth.AdminToken)
	} else {
		logger.Warn("no WARDEN_ADMIN_TOKEN set, moderator endpoints are disabled")
	}

	// HTTP API server
	httpServer := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(&api.Dependencies{
			Service:    svc,
			Detections: pgStore,
			Clients:    pgStore,
			Reader:     reader,
			Auth:       auth.NewPostgresAuthenticator(pgStore, cfg.Auth.CacheTTL, logger),
			Admin:      admin,
			Metrics:    promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			Logger:     logger,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// Block until shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", zap.String("signal", sig.String()))

	// Graceful shutdown: stop accepting requests, drain analyses and review
	// notices, then flush enforcement events.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}
	svc.Close()
	writer.Close()

	logger.Info("warden server stopped")
}

func mustBuildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}
