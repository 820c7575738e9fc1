package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sifan077/linkguard/config"
	appmodel "github.com/sifan077/linkguard/internal/app/model"
	apprepository "github.com/sifan077/linkguard/internal/app/repository"
	appserver "github.com/sifan077/linkguard/internal/app/server"
	appservice "github.com/sifan077/linkguard/internal/app/service"
	"github.com/sifan077/linkguard/internal/infra/logger"
	infraNATS "github.com/sifan077/linkguard/internal/infra/nats"
	infraPostgres "github.com/sifan077/linkguard/internal/infra/postgres"
	infraPrometheus "github.com/sifan077/linkguard/internal/infra/prometheus"
	infraRedis "github.com/sifan077/linkguard/internal/infra/redis"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.MustInit(logger.ConfigFromEnv(os.Getenv))
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	dedup, err := appservice.ParseDedupPolicy(cfg.Abuse.DedupPolicy)
	if err != nil {
		log.Fatal("Invalid dedup policy", zap.Error(err))
	}

	log.Info("Configuration loaded successfully",
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.Bool("clicks_async", cfg.Clicks.Async),
		zap.Int("blocked_domains", len(cfg.Abuse.BlockedDomains)),
		zap.Int("suspicious_keywords", len(cfg.Abuse.SuspiciousKeywords)),
		zap.String("dedup_policy", string(dedup)),
	)

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := infraPostgres.AutoMigrate(ctx, gormDB, appmodel.Entities()...); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer pool.Close()
	log.Info("Connected to Postgres successfully")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := infraPrometheus.NewMetrics(registry)

	if cfg.Prometheus.Enabled {
		promServer := infraPrometheus.NewServer(cfg.Prometheus, registry)
		go func() {
			log.Info("Starting Prometheus metrics server", zap.String("addr", promServer.Addr))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	}

	linkRepo := apprepository.NewLinkRepository(gormDB)
	abuseRepo := apprepository.NewAbuseEventRepository(gormDB)
	blockRepo := apprepository.NewBlockRepository(gormDB)
	clickRepo := apprepository.NewClickRecordRepository(gormDB)
	overviewRepo := apprepository.NewOverviewRepository(pool)

	// Redis only backs throttling; without it requests are let through.
	var rateWindows apprepository.RateWindowRepository
	redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Warn("Redis unavailable, request throttling disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
		rateWindows = apprepository.NewRateWindowRepository(redisClient, "linkguard:ratelimit")
		log.Info("Connected to Redis successfully")
	}

	var historySink appservice.ClickHistorySink = clickRepo
	if cfg.Clicks.Async {
		natsConn, js, err := infraNATS.Connect(cfg.NATS, logger.For(logger.ComponentNATS))
		if err != nil {
			log.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer drain(natsConn, log)

		consumer := appservice.NewClickConsumer(js, clickRepo, logger.For(logger.ComponentConsumer))
		if err := consumer.Start(ctx); err != nil {
			log.Fatal("Failed to start click consumer", zap.Error(err))
		}
		historySink = appservice.NewClickPublisher(js)
		log.Info("Click history is published through JetStream")
	}

	filter := appservice.NewCodeFilter(0, 0)
	warmed, err := filter.Warm(ctx, linkRepo)
	if err != nil {
		log.Warn("Failed to warm short code filter", zap.Error(err))
	}
	log.Info("Short code filter ready", zap.Int("codes", warmed))

	classifier := appservice.NewSpamClassifier(appservice.SpamRules{
		BlockedDomains:         cfg.Abuse.BlockedDomains,
		SuspiciousKeywords:     cfg.Abuse.SuspiciousKeywords,
		MaxLinksPerDay:         cfg.Abuse.MaxLinksPerDay,
		RapidCreationThreshold: cfg.Abuse.RapidCreationThreshold,
	}, linkRepo, metrics)

	escalation := appservice.NewEscalationEngine(abuseRepo, blockRepo, appservice.EscalationPolicy{
		Threshold:     cfg.Abuse.SpamEventThreshold,
		Window:        24 * time.Hour,
		BlockDuration: time.Duration(cfg.Abuse.BlockDurationDays) * 24 * time.Hour,
	}, logger.For(logger.ComponentEscalation), metrics)

	recorder := appservice.NewClickRecorder(linkRepo, historySink, clickRepo, appservice.ClickRecorderOptions{
		HistoryDays:   cfg.Clicks.HistoryDays,
		SamplesPerDay: cfg.Clicks.SamplesPerDay,
	}, logger.For(logger.ComponentClicks), metrics)

	linkService := appservice.NewLinkService(appservice.LinkServiceDeps{
		Links:      linkRepo,
		Overview:   overviewRepo,
		Classifier: classifier,
		Escalation: escalation,
		Clicks:     recorder,
		Filter:     filter,
		Dedup:      dedup,
		Logger:     logger.For(logger.ComponentLinks),
		Metrics:    metrics,
	})

	if cfg.Clicks.SweepInterval > 0 {
		sweeper := appservice.NewBlockSweeper(logger.For(logger.ComponentSweeper), blockRepo, cfg.Clicks.SweepInterval, cfg.Clicks.BlockRetention)
		sweeper.Start()
		defer sweeper.Stop()
	}

	server := appserver.New(appserver.Dependencies{
		Logger:      logger.For(logger.ComponentHTTP),
		Server:      cfg.Server,
		RateLimit:   cfg.RateLimit,
		RateWindows: rateWindows,
		Metrics:     metrics,
		Links:       linkService,
		Recorder:    recorder,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", zap.String("addr", addr))
		serverErr <- server.Listen(addr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			log.Error("Fiber server exited", zap.Error(err))
		}
	case <-ctx.Done():
		log.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Graceful shutdown failed", zap.Error(err))
	}
}

func drain(conn *nats.Conn, log *zap.Logger) {
	if err := conn.Drain(); err != nil {
		log.Warn("Failed to drain NATS connection", zap.Error(err))
	}
}
