package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/dukerupert/kidpoints/internal/events"
	"github.com/dukerupert/kidpoints/internal/model"
)

const redemptionCols = `id, kid_id, reward_id, status, cost_points, requested_at, decided_at, decided_by, delivered_at, notes`

func scanRedemption(scanner interface{ Scan(...any) error }) (*model.Redemption, error) {
	var r model.Redemption
	var decidedAt, deliveredAt sql.NullTime

	err := scanner.Scan(&r.ID, &r.KidID, &r.RewardID, &r.Status, &r.CostPoints, &r.RequestedAt,
		&decidedAt, &r.DecidedBy, &deliveredAt, &r.Notes)
	if err != nil {
		return nil, err
	}

	if decidedAt.Valid {
		r.DecidedAt = &decidedAt.Time
	}
	if deliveredAt.Valid {
		r.DeliveredAt = &deliveredAt.Time
	}
	return &r, nil
}

func getRedemption(ctx context.Context, q querier, id int64) (*model.Redemption, error) {
	row := q.QueryRowContext(ctx, `SELECT `+redemptionCols+` FROM redemptions WHERE id = ?`, id)
	r, err := scanRedemption(row)
	if err == sql.ErrNoRows {
		return nil, notFound("redemption", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get redemption: %w", err)
	}
	return r, nil
}

// GetRedemption returns a redemption or ErrNotFound.
func (e *Engine) GetRedemption(ctx context.Context, id int64) (*model.Redemption, error) {
	return getRedemption(ctx, e.db, id)
}

type rewardInfo struct {
	FamilyID   int64
	Title      string
	CostPoints int
	Active     bool
}

func getReward(ctx context.Context, q querier, rewardID int64) (*rewardInfo, error) {
	var r rewardInfo
	var active int
	err := q.QueryRowContext(ctx,
		`SELECT family_id, title, cost_points, active FROM rewards WHERE id = ?`,
		rewardID,
	).Scan(&r.FamilyID, &r.Title, &r.CostPoints, &active)
	if err == sql.ErrNoRows {
		return nil, notFound("reward", rewardID)
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	r.Active = active != 0
	return &r, nil
}

// RequestRedemption files a pending redemption and debits the reward's cost
// in the same transaction, so two requests cannot both spend the same
// points. A rejected request is refunded by DecideRedemption.
func (e *Engine) RequestRedemption(ctx context.Context, kidID, rewardID int64, notes string) (*model.Redemption, error) {
	var (
		familyID   int64
		redemption *model.Redemption
		balance    int
	)
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		familyID, err = kidFamily(ctx, tx, kidID)
		if err != nil {
			return err
		}
		reward, err := getReward(ctx, tx, rewardID)
		if err != nil {
			return err
		}
		if reward.FamilyID != familyID {
			return notFound("reward", rewardID)
		}
		if !reward.Active {
			return ErrRewardInactive
		}

		balance, err = balanceOf(ctx, tx, kidID)
		if err != nil {
			return err
		}
		if balance < reward.CostPoints {
			return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, balance, reward.CostPoints)
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO redemptions (kid_id, reward_id, status, cost_points, requested_at, notes)
			 VALUES (?, ?, 'pending', ?, ?, ?)`,
			kidID, rewardID, reward.CostPoints, e.timestamp(), notes,
		)
		if err != nil {
			return fmt.Errorf("insert redemption: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}

		_, err = e.appendEntry(ctx, tx, model.LedgerEntry{
			KidID:       kidID,
			EntryType:   model.EntryDebit,
			Points:      reward.CostPoints,
			Description: "Redeemed: " + reward.Title,
			RefType:     model.RefRedemption,
			RefKey:      strconv.FormatInt(id, 10),
		})
		if err != nil {
			return err
		}

		balance -= reward.CostPoints
		redemption, err = getRedemption(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("redemption requested",
		"kid_id", kidID, "reward_id", rewardID, "redemption_id", redemption.ID,
		"cost", redemption.CostPoints, "balance", balance)
	e.publish(ctx, events.New(events.EntityRedemption, events.ActionRequested, familyID, kidID, redemption.ID).WithBalance(balance))
	return redemption, nil
}

// DecideRedemption moves a redemption forward: pending to approved or
// rejected, approved to delivered. Rejection refunds the reserved points.
// Empty notes keep the existing notes.
func (e *Engine) DecideRedemption(ctx context.Context, redemptionID int64, decision model.RedemptionStatus, decidedBy, notes string) (*model.Redemption, error) {
	switch decision {
	case model.RedemptionApproved, model.RedemptionRejected, model.RedemptionDelivered:
	default:
		return nil, invalid("decision %q", decision)
	}

	var (
		familyID   int64
		redemption *model.Redemption
		balance    int
	)
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getRedemption(ctx, tx, redemptionID)
		if err != nil {
			return err
		}
		if !current.Status.CanTransition(decision) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, decision)
		}
		familyID, err = kidFamily(ctx, tx, current.KidID)
		if err != nil {
			return err
		}

		now := e.timestamp()
		var result sql.Result
		if decision == model.RedemptionDelivered {
			result, err = tx.ExecContext(ctx,
				`UPDATE redemptions SET status = ?, delivered_at = ?, notes = CASE WHEN ? = '' THEN notes ELSE ? END
				 WHERE id = ? AND status = ?`,
				decision, now, notes, notes, redemptionID, current.Status,
			)
		} else {
			result, err = tx.ExecContext(ctx,
				`UPDATE redemptions SET status = ?, decided_at = ?, decided_by = ?, notes = CASE WHEN ? = '' THEN notes ELSE ? END
				 WHERE id = ? AND status = ?`,
				decision, now, decidedBy, notes, notes, redemptionID, current.Status,
			)
		}
		if err != nil {
			return fmt.Errorf("update redemption: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: redemption %d changed concurrently", ErrInvalidTransition, redemptionID)
		}

		if decision == model.RedemptionRejected {
			var title string
			if err := tx.QueryRowContext(ctx, `SELECT title FROM rewards WHERE id = ?`, current.RewardID).Scan(&title); err != nil {
				return fmt.Errorf("get reward title: %w", err)
			}
			_, err = e.appendEntry(ctx, tx, model.LedgerEntry{
				KidID:       current.KidID,
				EntryType:   model.EntryCredit,
				Points:      current.CostPoints,
				Description: "Refund: " + title,
				RefType:     model.RefRedemption,
				RefKey:      strconv.FormatInt(redemptionID, 10),
			})
			if errors.Is(err, errDuplicateRef) {
				return fmt.Errorf("%w: redemption %d already refunded", ErrInvalidTransition, redemptionID)
			}
			if err != nil {
				return err
			}
		}

		balance, err = balanceOf(ctx, tx, current.KidID)
		if err != nil {
			return err
		}
		redemption, err = getRedemption(ctx, tx, redemptionID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("redemption decided",
		"redemption_id", redemptionID, "kid_id", redemption.KidID, "status", string(decision),
		"decided_by", decidedBy, "balance", balance)
	e.publish(ctx, events.New(events.EntityRedemption, string(decision), familyID, redemption.KidID, redemptionID).WithBalance(balance))
	return redemption, nil
}
