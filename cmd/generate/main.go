// Command generate materializes one day's tasks for every family and exits.
// It is meant for cron when the in-process scheduler is disabled.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dukerupert/kidpoints/internal/amqp"
	"github.com/dukerupert/kidpoints/internal/calendar"
	"github.com/dukerupert/kidpoints/internal/config"
	"github.com/dukerupert/kidpoints/internal/database"
	"github.com/dukerupert/kidpoints/internal/engine"
	"github.com/dukerupert/kidpoints/internal/events"
	"github.com/dukerupert/kidpoints/internal/logging"
	"github.com/dukerupert/kidpoints/internal/scheduler"
	"github.com/dukerupert/kidpoints/internal/store"
)

func main() {
	dateFlag := flag.String("date", "", "day to generate (YYYY-MM-DD, default today in the configured timezone)")
	concurrency := flag.Int("concurrency", 0, "families generated in parallel (default from config)")
	flag.Parse()

	if err := run(*dateFlag, *concurrency); err != nil {
		fmt.Fprintln(os.Stderr, "generate:", err)
		os.Exit(1)
	}
}

func run(dateFlag string, concurrency int) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		return err
	}
	loc, _ := cfg.Location()

	var date calendar.Date
	if dateFlag != "" {
		if date, err = calendar.Parse(dateFlag); err != nil {
			return err
		}
	}
	if concurrency <= 0 {
		concurrency = cfg.Scheduler.Concurrency
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	var publisher events.Publisher = events.Nop{}
	if cfg.AMQP.URL != "" {
		pub, err := amqp.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger.With("component", "amqp"))
		if err != nil {
			return fmt.Errorf("connect to broker: %w", err)
		}
		defer pub.Close()
		publisher = pub
	}

	eng := engine.New(db, engine.Config{
		Location:          loc,
		DailyBonusPoints:  cfg.Bonus.DailyPoints,
		WeeklyBonusPoints: cfg.Bonus.WeeklyPoints,
		MaxHistory:        cfg.HistoryMaxLimit,
	}, publisher, logger.With("component", "engine"))
	if date.IsZero() {
		date = eng.Today()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := scheduler.GenerateAll(ctx, eng, store.NewFamilyStore(db), date, concurrency, logger)
	logger.Info("generation finished",
		"date", res.Date, "families", res.Families, "created", res.Created, "failed", res.Failed)
	return err
}
