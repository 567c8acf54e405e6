package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/kidpoints/internal/events"
	"github.com/dukerupert/kidpoints/internal/model"
)

// AdjustPoints appends a manual credit or debit, the only way to correct a
// kid's balance. A debit may not take the balance below zero.
func (e *Engine) AdjustPoints(ctx context.Context, kidID int64, entryType model.EntryType, points int, description string) (int, error) {
	if entryType != model.EntryCredit && entryType != model.EntryDebit {
		return 0, invalid("adjustment must be credit or debit, got %q", entryType)
	}
	if points <= 0 {
		return 0, invalid("points must be positive")
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return 0, invalid("description is required")
	}

	var (
		familyID int64
		entryID  int64
		balance  int
	)
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		familyID, err = kidFamily(ctx, tx, kidID)
		if err != nil {
			return err
		}
		if entryType == model.EntryDebit {
			current, err := balanceOf(ctx, tx, kidID)
			if err != nil {
				return err
			}
			if current < points {
				return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, current, points)
			}
		}

		entryID, err = e.appendEntry(ctx, tx, model.LedgerEntry{
			KidID:       kidID,
			EntryType:   entryType,
			Points:      points,
			Description: description,
		})
		if err != nil {
			return err
		}
		balance, err = balanceOf(ctx, tx, kidID)
		return err
	})
	if err != nil {
		return 0, err
	}

	e.logger.Info("points adjusted", "kid_id", kidID, "entry_type", string(entryType), "points", points, "balance", balance)
	e.publish(ctx, events.New(events.EntityLedger, events.ActionAdjusted, familyID, kidID, entryID).WithBalance(balance))
	return balance, nil
}
