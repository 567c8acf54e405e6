package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dukerupert/kidpoints/internal/amqp"
	"github.com/dukerupert/kidpoints/internal/archive"
	"github.com/dukerupert/kidpoints/internal/config"
	"github.com/dukerupert/kidpoints/internal/database"
	"github.com/dukerupert/kidpoints/internal/engine"
	"github.com/dukerupert/kidpoints/internal/events"
	"github.com/dukerupert/kidpoints/internal/logging"
	"github.com/dukerupert/kidpoints/internal/scheduler"
	"github.com/dukerupert/kidpoints/internal/server"
	"github.com/dukerupert/kidpoints/internal/store"
	ws "github.com/dukerupert/kidpoints/internal/websocket"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", "error", err)
		os.Exit(1)
	}
	loc, _ := cfg.Location()

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("open database", "error", err, "path", cfg.DBPath)
		os.Exit(1)
	}
	defer db.Close()

	hub := ws.NewHub(logger.With("component", "websocket"))
	fanout := events.NewFanout(logger.With("component", "events"), hub)
	if cfg.AMQP.URL != "" {
		pub, err := amqp.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger.With("component", "amqp"))
		if err != nil {
			logger.Error("connect to broker", "error", err)
			os.Exit(1)
		}
		defer pub.Close()
		fanout.Add(pub)
		logger.Info("publishing events to broker", "exchange", cfg.AMQP.Exchange)
	}

	eng := engine.New(db, engine.Config{
		Location:          loc,
		DailyBonusPoints:  cfg.Bonus.DailyPoints,
		WeeklyBonusPoints: cfg.Bonus.WeeklyPoints,
		MaxHistory:        cfg.HistoryMaxLimit,
	}, fanout, logger.With("component", "engine"))

	exporter := archive.NewExporter(archive.S3Config{
		Endpoint:  cfg.S3.Endpoint,
		Bucket:    cfg.S3.Bucket,
		Region:    cfg.S3.Region,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		Prefix:    cfg.S3.Prefix,
	}, eng, logger.With("component", "archive"))
	if !exporter.Enabled() {
		logger.Info("ledger export disabled, no S3 bucket configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(db, eng, hub, exporter, logger)
	for _, rl := range srv.RateLimiters() {
		go rl.Run(ctx, 5*time.Minute)
	}

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		hour, minute, _ := cfg.Scheduler.At()
		sched = scheduler.New(eng, store.NewFamilyStore(db), scheduler.Config{
			Hour:        hour,
			Minute:      minute,
			Concurrency: cfg.Scheduler.Concurrency,
		}, logger.With("component", "scheduler"))
		sched.Start(ctx)
		logger.Info("daily task scheduler started", "generate_at", cfg.Scheduler.GenerateAt, "timezone", loc.String())
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("kidpoints listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	if sched != nil {
		sched.Stop()
	}
}
