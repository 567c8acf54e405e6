package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukerupert/kidpoints/internal/calendar"
	"github.com/dukerupert/kidpoints/internal/events"
	"github.com/dukerupert/kidpoints/internal/model"
	"github.com/dukerupert/kidpoints/internal/schedule"
)

// eligibility evaluates period for the kid as of today. A period is earned
// when it has at least one task and all of them are done. Tasks are the
// existing daily task rows plus every task owed so far in the period that has
// no row yet, so a skipped generator run cannot shrink the count.
func (e *Engine) eligibility(ctx context.Context, q querier, kidID int64, period model.Period) (model.Eligibility, error) {
	today := e.Today()
	start, end := period.Window(today)
	el := model.Eligibility{
		Period:      period,
		PeriodStart: start,
		PeriodEnd:   end,
		BonusPoints: e.bonus[period],
	}

	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = 'done' THEN 1 ELSE 0 END), 0)
		 FROM daily_tasks
		 WHERE kid_id = ? AND due_date BETWEEN ? AND ?`,
		kidID, start, end,
	).Scan(&el.TotalTasks, &el.CompletedTasks)
	if err != nil {
		return el, fmt.Errorf("count period tasks: %w", err)
	}

	// Days up to today that the generator has not reached still count.
	through := end
	if today.Before(through) {
		through = today
	}
	missing, err := missingOwedTasks(ctx, q, kidID, start, through)
	if err != nil {
		return el, err
	}
	el.TotalTasks += missing

	err = q.QueryRowContext(ctx,
		`SELECT EXISTS(
		   SELECT 1 FROM points_ledger
		   WHERE kid_id = ? AND ref_type = ? AND ref_key = ? AND entry_type = ?)`,
		kidID, model.RefBonus, period.Key(today), model.EntryBonus,
	).Scan(&el.AlreadyGranted)
	if err != nil {
		return el, fmt.Errorf("check bonus granted: %w", err)
	}

	el.Eligible = el.TotalTasks > 0 && el.CompletedTasks == el.TotalTasks
	return el, nil
}

// missingOwedTasks counts the (template, day) pairs in [start, end] that the
// kid owes but that have no daily task row.
func missingOwedTasks(ctx context.Context, q querier, kidID int64, start, end calendar.Date) (int, error) {
	if end.Before(start) {
		return 0, nil
	}
	assignments, err := loadAssignments(ctx, q, `a.kid_id = ?`, kidID)
	if err != nil {
		return 0, err
	}
	if len(assignments) == 0 {
		return 0, nil
	}

	rows, err := q.QueryContext(ctx,
		`SELECT task_template_id, due_date FROM daily_tasks
		 WHERE kid_id = ? AND due_date BETWEEN ? AND ?`,
		kidID, start, end,
	)
	if err != nil {
		return 0, fmt.Errorf("list period tasks: %w", err)
	}
	defer rows.Close()

	existing := make(map[taskKey]bool)
	for rows.Next() {
		var templateID int64
		var due calendar.Date
		if err := rows.Scan(&templateID, &due); err != nil {
			return 0, fmt.Errorf("scan period task: %w", err)
		}
		existing[taskKey{templateID, due.String()}] = true
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("list period tasks: %w", err)
	}

	missing := 0
	for _, d := range calendar.Range(start, end) {
		for _, a := range assignments {
			if schedule.IsOwed(a.Assignment, a.TemplateActive, d) && !existing[taskKey{a.TaskTemplateID, d.String()}] {
				missing++
			}
		}
	}
	return missing, nil
}

// CheckEligibility reports the kid's progress toward the bonus for the
// current daily or weekly period. It writes nothing.
func (e *Engine) CheckEligibility(ctx context.Context, kidID int64, period model.Period) (model.Eligibility, error) {
	if !period.Valid() {
		return model.Eligibility{}, invalid("period %q", period)
	}
	if _, err := kidFamily(ctx, e.db, kidID); err != nil {
		return model.Eligibility{}, err
	}
	return e.eligibility(ctx, e.db, kidID, period)
}

// GrantBonus credits the period bonus and returns the new balance. The
// eligibility check and the append share one transaction, and the ledger's
// reference index rejects a second bonus for the same period.
func (e *Engine) GrantBonus(ctx context.Context, kidID int64, period model.Period) (int, error) {
	if !period.Valid() {
		return 0, invalid("period %q", period)
	}

	var (
		familyID int64
		el       model.Eligibility
		entryID  int64
		balance  int
	)
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		familyID, err = kidFamily(ctx, tx, kidID)
		if err != nil {
			return err
		}
		el, err = e.eligibility(ctx, tx, kidID, period)
		if err != nil {
			return err
		}
		if el.AlreadyGranted {
			return ErrAlreadyGrantedBonus
		}
		if !el.Eligible {
			return fmt.Errorf("%w: %d of %d tasks done", ErrNotEligible, el.CompletedTasks, el.TotalTasks)
		}

		entryID, err = e.appendEntry(ctx, tx, model.LedgerEntry{
			KidID:       kidID,
			EntryType:   model.EntryBonus,
			Points:      el.BonusPoints,
			Description: bonusDescription(period, el),
			RefType:     model.RefBonus,
			RefKey:      period.Key(el.PeriodStart),
		})
		if errors.Is(err, errDuplicateRef) {
			return ErrAlreadyGrantedBonus
		}
		if err != nil {
			return err
		}

		balance, err = balanceOf(ctx, tx, kidID)
		return err
	})
	if err != nil {
		return 0, err
	}

	e.logger.Info("bonus granted",
		"kid_id", kidID, "period", string(period), "period_start", el.PeriodStart.String(),
		"points", el.BonusPoints, "balance", balance)
	e.publish(ctx, events.New(events.EntityBonus, events.ActionGranted, familyID, kidID, entryID).WithBalance(balance))
	return balance, nil
}

func bonusDescription(period model.Period, el model.Eligibility) string {
	if period == model.PeriodWeekly {
		return fmt.Sprintf("Weekly bonus (week of %s)", el.PeriodStart)
	}
	return fmt.Sprintf("Daily bonus (%s)", el.PeriodStart)
}
