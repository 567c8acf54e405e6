// Package engine owns every write to daily tasks, the points ledger and
// redemptions. Each operation runs in one SQLite transaction; change events
// are published only after commit.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/kidpoints/internal/calendar"
	"github.com/dukerupert/kidpoints/internal/events"
	"github.com/dukerupert/kidpoints/internal/model"
)

const (
	DefaultHistoryLimit = 50
	DefaultMaxHistory   = 500
	MaxCalendarDays     = 62
)

type Config struct {
	// Location is the family's time zone; "today" is computed in it.
	Location          *time.Location
	DailyBonusPoints  int
	WeeklyBonusPoints int
	MaxHistory        int
	// Clock defaults to time.Now.
	Clock func() time.Time
}

type Engine struct {
	db         *sql.DB
	loc        *time.Location
	now        func() time.Time
	bonus      map[model.Period]int
	maxHistory int
	publisher  events.Publisher
	logger     *slog.Logger
}

func New(db *sql.DB, cfg Config, publisher events.Publisher, logger *slog.Logger) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultMaxHistory
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Engine{
		db:  db,
		loc: cfg.Location,
		now: cfg.Clock,
		bonus: map[model.Period]int{
			model.PeriodDaily:  cfg.DailyBonusPoints,
			model.PeriodWeekly: cfg.WeeklyBonusPoints,
		},
		maxHistory: cfg.MaxHistory,
		publisher:  publisher,
		logger:     logger,
	}
}

// Today returns the current family-local calendar day.
func (e *Engine) Today() calendar.Date {
	return calendar.Today(e.now(), e.loc)
}

func (e *Engine) Location() *time.Location {
	return e.loc
}

func (e *Engine) timestamp() time.Time {
	return e.now().UTC()
}

// withTx runs fn in a write transaction (BEGIN IMMEDIATE, see
// database.Open). Inside fn only tx may be used; the pool may hold a single
// connection.
func (e *Engine) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return classify(err)
	}
	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (e *Engine) publish(ctx context.Context, ev events.Event) {
	if err := e.publisher.Publish(ctx, ev); err != nil {
		e.logger.Warn("publish event", "type", ev.Type, "error", err)
	}
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func kidFamily(ctx context.Context, q querier, kidID int64) (int64, error) {
	var familyID int64
	err := q.QueryRowContext(ctx, `SELECT family_id FROM kids WHERE id = ?`, kidID).Scan(&familyID)
	if err == sql.ErrNoRows {
		return 0, notFound("kid", kidID)
	}
	if err != nil {
		return 0, fmt.Errorf("get kid: %w", err)
	}
	return familyID, nil
}

func familyExists(ctx context.Context, q querier, familyID int64) error {
	var exists bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM families WHERE id = ?)`, familyID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check family: %w", err)
	}
	if !exists {
		return notFound("family", familyID)
	}
	return nil
}
