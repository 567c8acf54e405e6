package engine

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/dukerupert/kidpoints/internal/calendar"
	"github.com/dukerupert/kidpoints/internal/model"
	"github.com/dukerupert/kidpoints/internal/schedule"
)

// TasksForDate lists what the kid owes on date: materialized daily tasks
// plus pending rows synthesized from assignments the generator has not
// reached yet. A zero date means today.
func (e *Engine) TasksForDate(ctx context.Context, kidID int64, date calendar.Date) ([]model.TaskView, error) {
	if date.IsZero() {
		date = e.Today()
	}
	return e.taskViews(ctx, kidID, date, date)
}

// TasksCalendar is TasksForDate over an inclusive range of at most
// MaxCalendarDays days, ordered by date.
func (e *Engine) TasksCalendar(ctx context.Context, kidID int64, start, end calendar.Date) ([]model.TaskView, error) {
	if start.IsZero() || end.IsZero() {
		return nil, invalid("start and end are required")
	}
	if end.Before(start) {
		return nil, invalid("end %s is before start %s", end, start)
	}
	if days := start.DaysUntil(end) + 1; days > MaxCalendarDays {
		return nil, invalid("range of %d days exceeds %d", days, MaxCalendarDays)
	}
	return e.taskViews(ctx, kidID, start, end)
}

type taskKey struct {
	templateID int64
	date       string
}

type templateView struct {
	Title      string
	IconEmoji  string
	BasePoints int
}

func (e *Engine) taskViews(ctx context.Context, kidID int64, start, end calendar.Date) ([]model.TaskView, error) {
	familyID, err := kidFamily(ctx, e.db, kidID)
	if err != nil {
		return nil, err
	}

	templates, err := e.familyTemplates(ctx, familyID)
	if err != nil {
		return nil, err
	}
	assignments, err := loadAssignments(ctx, e.db, `a.kid_id = ?`, kidID)
	if err != nil {
		return nil, err
	}
	overrides := make(map[int64]*int, len(assignments))
	for _, a := range assignments {
		overrides[a.TaskTemplateID] = a.PointsOverride
	}
	pointsFor := func(templateID int64) int {
		if p := overrides[templateID]; p != nil {
			return *p
		}
		return templates[templateID].BasePoints
	}

	rows, err := e.db.QueryContext(ctx,
		`SELECT id, task_template_id, due_date, status, points_awarded
		 FROM daily_tasks
		 WHERE kid_id = ? AND due_date BETWEEN ? AND ?`,
		kidID, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("list daily tasks: %w", err)
	}
	defer rows.Close()

	var views []model.TaskView
	seen := make(map[taskKey]bool)
	for rows.Next() {
		var id, templateID int64
		var due calendar.Date
		var status model.TaskStatus
		var awarded sql.NullInt64
		if err := rows.Scan(&id, &templateID, &due, &status, &awarded); err != nil {
			return nil, fmt.Errorf("scan daily task: %w", err)
		}

		t := templates[templateID]
		points := pointsFor(templateID)
		if awarded.Valid {
			points = int(awarded.Int64)
		}
		views = append(views, model.TaskView{
			DailyTaskID:    &id,
			TaskTemplateID: templateID,
			Title:          t.Title,
			IconEmoji:      t.IconEmoji,
			Points:         points,
			Status:         status,
			DueDate:        due,
		})
		seen[taskKey{templateID, due.String()}] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily tasks: %w", err)
	}

	for _, d := range calendar.Range(start, end) {
		for _, a := range assignments {
			if seen[taskKey{a.TaskTemplateID, d.String()}] || !schedule.IsOwed(a.Assignment, a.TemplateActive, d) {
				continue
			}
			t := templates[a.TaskTemplateID]
			views = append(views, model.TaskView{
				TaskTemplateID: a.TaskTemplateID,
				Title:          t.Title,
				IconEmoji:      t.IconEmoji,
				Points:         pointsFor(a.TaskTemplateID),
				Status:         model.TaskPending,
				DueDate:        d,
			})
		}
	}

	sort.SliceStable(views, func(i, j int) bool {
		if !views[i].DueDate.Equal(views[j].DueDate) {
			return views[i].DueDate.Before(views[j].DueDate)
		}
		if views[i].Title != views[j].Title {
			return views[i].Title < views[j].Title
		}
		return views[i].TaskTemplateID < views[j].TaskTemplateID
	})
	if views == nil {
		views = []model.TaskView{}
	}
	return views, nil
}

func (e *Engine) familyTemplates(ctx context.Context, familyID int64) (map[int64]templateView, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT id, title, icon_emoji, base_points FROM task_templates WHERE family_id = ?`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list task templates: %w", err)
	}
	defer rows.Close()

	templates := make(map[int64]templateView)
	for rows.Next() {
		var id int64
		var t templateView
		if err := rows.Scan(&id, &t.Title, &t.IconEmoji, &t.BasePoints); err != nil {
			return nil, fmt.Errorf("scan task template: %w", err)
		}
		templates[id] = t
	}
	return templates, rows.Err()
}
