package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/kidpoints/internal/calendar"
	"github.com/dukerupert/kidpoints/internal/events"
	"github.com/dukerupert/kidpoints/internal/model"
	"github.com/dukerupert/kidpoints/internal/schedule"
)

// scheduledAssignment is an assignment plus the active flag of its template.
type scheduledAssignment struct {
	model.Assignment
	TemplateActive bool
}

const scheduledAssignmentSelect = `SELECT a.id, a.kid_id, a.task_template_id, a.days_of_week, a.points_override,
       a.start_date, a.end_date, a.active, t.active
FROM assignments a
JOIN kids k ON k.id = a.kid_id
JOIN task_templates t ON t.id = a.task_template_id AND t.family_id = k.family_id`

func loadAssignments(ctx context.Context, q querier, where string, args ...any) ([]scheduledAssignment, error) {
	rows, err := q.QueryContext(ctx, scheduledAssignmentSelect+` WHERE `+where+` ORDER BY a.id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var out []scheduledAssignment
	for rows.Next() {
		var sa scheduledAssignment
		var days string
		var override sql.NullInt64
		var active, templateActive int

		err := rows.Scan(&sa.ID, &sa.KidID, &sa.TaskTemplateID, &days, &override,
			&sa.StartDate, &sa.EndDate, &active, &templateActive)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		sa.DaysOfWeek = schedule.Split(days)
		if override.Valid {
			p := int(override.Int64)
			sa.PointsOverride = &p
		}
		sa.Active = active != 0
		sa.TemplateActive = templateActive != 0
		out = append(out, sa)
	}
	return out, rows.Err()
}

// GenerateForDate creates the pending daily tasks owed on date by every kid
// in the family and returns how many rows were new. Running it again for the
// same date creates nothing. A zero date means today.
func (e *Engine) GenerateForDate(ctx context.Context, familyID int64, date calendar.Date) (int, error) {
	if date.IsZero() {
		date = e.Today()
	}

	created := 0
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		if err := familyExists(ctx, tx, familyID); err != nil {
			return err
		}

		assignments, err := loadAssignments(ctx, tx, `k.family_id = ?`, familyID)
		if err != nil {
			return err
		}

		now := e.timestamp()
		for _, a := range assignments {
			if !schedule.IsOwed(a.Assignment, a.TemplateActive, date) {
				continue
			}
			// The EXISTS guards skip a kid or template removed since the
			// assignment list was read.
			result, err := tx.ExecContext(ctx,
				`INSERT INTO daily_tasks (kid_id, task_template_id, due_date, status, created_at)
				 SELECT ?, ?, ?, 'pending', ?
				 WHERE EXISTS (SELECT 1 FROM kids WHERE id = ?)
				   AND EXISTS (SELECT 1 FROM task_templates WHERE id = ? AND active = 1)
				 ON CONFLICT (kid_id, task_template_id, due_date) DO NOTHING`,
				a.KidID, a.TaskTemplateID, date, now, a.KidID, a.TaskTemplateID,
			)
			if err != nil {
				return fmt.Errorf("insert daily task: %w", err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			created += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	e.logger.Info("generated daily tasks", "family_id", familyID, "date", date.String(), "created", created)
	if created > 0 {
		e.publish(ctx, events.New(events.EntityDailyTask, events.ActionGenerated, familyID, 0, 0))
	}
	return created, nil
}
