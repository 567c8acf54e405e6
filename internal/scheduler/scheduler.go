// Package scheduler generates each family's daily tasks once per day,
// shortly after a configured local time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/kidpoints/internal/calendar"
	"github.com/dukerupert/kidpoints/internal/model"
)

// Generator is the slice of the engine the scheduler drives.
type Generator interface {
	GenerateForDate(ctx context.Context, familyID int64, date calendar.Date) (int, error)
	Location() *time.Location
}

// FamilyLister lists every family to generate for.
type FamilyLister interface {
	List() ([]model.Family, error)
}

// Result summarizes one fan-out over all families.
type Result struct {
	Date     calendar.Date
	Families int
	Created  int
	Failed   int
}

// GenerateAll runs GenerateForDate for every family with at most
// concurrency calls in flight. A failing family does not stop the others;
// the joined error lists every failure.
func GenerateAll(ctx context.Context, gen Generator, families FamilyLister, date calendar.Date, concurrency int, logger *slog.Logger) (Result, error) {
	list, err := families.List()
	if err != nil {
		return Result{Date: date}, fmt.Errorf("list families: %w", err)
	}
	if concurrency < 1 {
		concurrency = 1
	}

	var (
		created atomic.Int64
		mu      sync.Mutex
		errs    []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, f := range list {
		g.Go(func() error {
			n, err := gen.GenerateForDate(gctx, f.ID, date)
			if err != nil {
				logger.Error("generate daily tasks", "family_id", f.ID, "date", date, "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("family %d: %w", f.ID, err))
				mu.Unlock()
				return nil
			}
			created.Add(int64(n))
			if n > 0 {
				logger.Debug("daily tasks generated", "family_id", f.ID, "date", date, "created", n)
			}
			return nil
		})
	}
	g.Wait()

	res := Result{
		Date:     date,
		Families: len(list),
		Created:  int(created.Load()),
		Failed:   len(errs),
	}
	return res, errors.Join(errs...)
}

type Config struct {
	Hour, Minute int
	Concurrency  int
	// Interval defaults to one minute.
	Interval time.Duration
}

// Scheduler periodically checks whether today's generation is due.
type Scheduler struct {
	mu       sync.RWMutex
	gen      Generator
	families FamilyLister
	cfg      Config
	now      func() time.Time
	lastRun  calendar.Date
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

func New(gen Generator, families FamilyLister, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Scheduler{
		gen:      gen,
		families: families,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger,
	}
}

// Start begins the scheduler loop. It checks once immediately so a restart
// after the configured time still generates today's tasks.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		s.tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// LastRun returns the last day generation fully succeeded.
func (s *Scheduler) LastRun() calendar.Date {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}

// due reports whether today's run is owed at now.
func (s *Scheduler) due(now time.Time) (calendar.Date, bool) {
	local := now.In(s.gen.Location())
	today := calendar.FromTime(local)

	s.mu.RLock()
	last := s.lastRun
	s.mu.RUnlock()
	if !last.IsZero() && !today.After(last) {
		return today, false
	}
	minutes := local.Hour()*60 + local.Minute()
	return today, minutes >= s.cfg.Hour*60+s.cfg.Minute
}

func (s *Scheduler) tick(ctx context.Context) {
	today, ok := s.due(s.now())
	if !ok {
		return
	}

	res, err := GenerateAll(ctx, s.gen, s.families, today, s.cfg.Concurrency, s.logger)
	if err != nil {
		// Generation is idempotent; the next tick retries.
		s.logger.Warn("scheduled generation incomplete", "date", today, "failed", res.Failed, "error", err)
		return
	}

	s.mu.Lock()
	s.lastRun = today
	s.mu.Unlock()
	s.logger.Info("scheduled generation complete", "date", today, "families", res.Families, "created", res.Created)
}
