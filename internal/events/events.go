// Package events carries change notifications out of the engine after a
// transaction commits.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Entities.
const (
	EntityDailyTask  = "daily_task"
	EntityLedger     = "ledger"
	EntityRedemption = "redemption"
	EntityBonus      = "bonus"
)

// Actions.
const (
	ActionGenerated = "generated"
	ActionCompleted = "completed"
	ActionGranted   = "granted"
	ActionAdjusted  = "adjusted"
	ActionRequested = "requested"
	ActionApproved  = "approved"
	ActionRejected  = "rejected"
	ActionDelivered = "delivered"
)

// Event describes one committed change. Balance is set when the change
// moved a kid's points.
type Event struct {
	Type     string    `json:"type"`
	Entity   string    `json:"entity"`
	Action   string    `json:"action"`
	FamilyID int64     `json:"family_id"`
	KidID    int64     `json:"kid_id,omitempty"`
	ID       int64     `json:"id,omitempty"`
	Balance  *int      `json:"balance,omitempty"`
	At       time.Time `json:"at"`
}

// New creates an Event with Type derived from entity and action.
func New(entity, action string, familyID, kidID, id int64) Event {
	return Event{
		Type:     fmt.Sprintf("%s_%s", entity, action),
		Entity:   entity,
		Action:   action,
		FamilyID: familyID,
		KidID:    kidID,
		ID:       id,
		At:       time.Now().UTC(),
	}
}

// WithBalance returns a copy of e carrying the kid's new balance.
func (e Event) WithBalance(balance int) Event {
	e.Balance = &balance
	return e
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Fanout forwards every event to each target. A failing target is logged
// and does not stop delivery to the others.
type Fanout struct {
	targets []Publisher
	logger  *slog.Logger
}

func NewFanout(logger *slog.Logger, targets ...Publisher) *Fanout {
	return &Fanout{targets: targets, logger: logger}
}

// Add appends a target. Not safe to call concurrently with Publish.
func (f *Fanout) Add(p Publisher) {
	f.targets = append(f.targets, p)
}

func (f *Fanout) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, t := range f.targets {
		if err := t.Publish(ctx, e); err != nil {
			f.logger.Warn("publish event", "type", e.Type, "target", fmt.Sprintf("%T", t), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
