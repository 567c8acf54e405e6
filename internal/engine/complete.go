package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/dukerupert/kidpoints/internal/calendar"
	"github.com/dukerupert/kidpoints/internal/events"
	"github.com/dukerupert/kidpoints/internal/model"
	"github.com/dukerupert/kidpoints/internal/schedule"
)

type templateInfo struct {
	FamilyID   int64
	Title      string
	BasePoints int
}

func getTemplate(ctx context.Context, q querier, templateID int64) (*templateInfo, error) {
	var t templateInfo
	err := q.QueryRowContext(ctx,
		`SELECT family_id, title, base_points FROM task_templates WHERE id = ?`,
		templateID,
	).Scan(&t.FamilyID, &t.Title, &t.BasePoints)
	if err == sql.ErrNoRows {
		return nil, notFound("task template", templateID)
	}
	if err != nil {
		return nil, fmt.Errorf("get task template: %w", err)
	}
	return &t, nil
}

// taskPoints returns the assignment override when the kid has one,
// otherwise the template's base points.
func taskPoints(ctx context.Context, q querier, kidID, templateID int64, base int) (int, error) {
	var override sql.NullInt64
	err := q.QueryRowContext(ctx,
		`SELECT points_override FROM assignments WHERE kid_id = ? AND task_template_id = ?`,
		kidID, templateID,
	).Scan(&override)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("get assignment points: %w", err)
	}
	if override.Valid {
		return int(override.Int64), nil
	}
	return base, nil
}

// findDailyTask returns the task's row id, or 0 when it was never created.
func findDailyTask(ctx context.Context, q querier, kidID, templateID int64, date calendar.Date) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`SELECT id FROM daily_tasks WHERE kid_id = ? AND task_template_id = ? AND due_date = ?`,
		kidID, templateID, date,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get daily task: %w", err)
	}
	return id, nil
}

// isOwed applies the assignment resolver to the kid's assignment of the
// template, if there is one.
func isOwed(ctx context.Context, q querier, kidID, templateID int64, date calendar.Date) (bool, error) {
	assignments, err := loadAssignments(ctx, q, `a.kid_id = ? AND a.task_template_id = ?`, kidID, templateID)
	if err != nil {
		return false, err
	}
	for _, a := range assignments {
		if schedule.IsOwed(a.Assignment, a.TemplateActive, date) {
			return true, nil
		}
	}
	return false, nil
}

// CompleteTask marks the kid's task for date done and credits its points,
// returning the new balance. When the generator has not run yet the daily
// task is created on the fly, but only if the kid owes it on date; anything
// else is ErrNotFound. A zero date means today.
//
// Completion happens at most once: the status flip is a compare-and-set, so
// of two concurrent callers one gets ErrAlreadyCompleted.
func (e *Engine) CompleteTask(ctx context.Context, kidID, templateID int64, date calendar.Date) (int, error) {
	if date.IsZero() {
		date = e.Today()
	}

	var (
		familyID    int64
		dailyTaskID int64
		points      int
		balance     int
	)
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		familyID, err = kidFamily(ctx, tx, kidID)
		if err != nil {
			return err
		}
		tmpl, err := getTemplate(ctx, tx, templateID)
		if err != nil {
			return err
		}
		if tmpl.FamilyID != familyID {
			return notFound("task template", templateID)
		}
		points, err = taskPoints(ctx, tx, kidID, templateID, tmpl.BasePoints)
		if err != nil {
			return err
		}

		now := e.timestamp()
		dailyTaskID, err = findDailyTask(ctx, tx, kidID, templateID, date)
		if err != nil {
			return err
		}
		if dailyTaskID == 0 {
			// Not generated yet: only a task the kid owes that day may be created.
			owed, err := isOwed(ctx, tx, kidID, templateID, date)
			if err != nil {
				return err
			}
			if !owed {
				return fmt.Errorf("task template %d is not owed by kid %d on %s: %w", templateID, kidID, date, ErrNotFound)
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO daily_tasks (kid_id, task_template_id, due_date, status, created_at)
				 VALUES (?, ?, ?, 'pending', ?)
				 ON CONFLICT (kid_id, task_template_id, due_date) DO NOTHING`,
				kidID, templateID, date, now,
			)
			if err != nil {
				return fmt.Errorf("ensure daily task: %w", err)
			}
			dailyTaskID, err = findDailyTask(ctx, tx, kidID, templateID, date)
			if err != nil {
				return err
			}
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE daily_tasks SET status = 'done', points_awarded = ?, completed_at = ?
			 WHERE id = ? AND status = 'pending'`,
			points, now, dailyTaskID,
		)
		if err != nil {
			return fmt.Errorf("complete daily task: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return ErrAlreadyCompleted
		}

		_, err = e.appendEntry(ctx, tx, model.LedgerEntry{
			KidID:       kidID,
			EntryType:   model.EntryCredit,
			Points:      points,
			Description: "Completed: " + tmpl.Title,
			RefType:     model.RefDailyTask,
			RefKey:      strconv.FormatInt(dailyTaskID, 10),
		})
		if errors.Is(err, errDuplicateRef) {
			return ErrAlreadyCompleted
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

	e.logger.Info("task completed",
		"kid_id", kidID, "template_id", templateID, "date", date.String(),
		"points", points, "balance", balance)
	e.publish(ctx, events.New(events.EntityDailyTask, events.ActionCompleted, familyID, kidID, dailyTaskID).WithBalance(balance))
	return balance, nil
}
