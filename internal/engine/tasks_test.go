package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/dukerupert/kidpoints/internal/calendar"
	"github.com/dukerupert/kidpoints/internal/model"
)

func TestTasksForDateMergesMaterializedAndOwed(t *testing.T) {
	env := setupEngineTest(t)
	ctx := context.Background()
	brush := env.addTask(t, "Brush teeth", 5)
	bed := env.addTask(t, "Make bed", 3)
	today := env.engine.Today()

	if _, err := env.engine.CompleteTask(ctx, env.kidID, brush, today); err != nil {
		t.Fatalf("complete: %v", err)
	}

	views, err := env.engine.TasksForDate(ctx, env.kidID, calendar.Date{})
	if err != nil {
		t.Fatalf("tasks for date: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("len = %d, want 2", len(views))
	}

	got := map[int64]model.TaskView{}
	for _, v := range views {
		got[v.TaskTemplateID] = v
	}
	if v := got[brush]; v.Status != model.TaskDone || v.DailyTaskID == nil || v.Points != 5 {
		t.Errorf("brush = %+v, want done with id and 5 points", v)
	}
	if v := got[bed]; v.Status != model.TaskPending || v.DailyTaskID != nil || v.Points != 3 {
		t.Errorf("bed = %+v, want synthesized pending with 3 points", v)
	}
	if views[0].Title != "Brush teeth" {
		t.Errorf("first = %q, want sorted by title", views[0].Title)
	}

	// Reading never materializes rows.
	if n := env.count(t, `SELECT COUNT(*) FROM daily_tasks`); n != 1 {
		t.Errorf("daily tasks = %d, want 1", n)
	}
}

func TestTasksForDateUnknownKid(t *testing.T) {
	env := setupEngineTest(t)
	if _, err := env.engine.TasksForDate(context.Background(), 999, calendar.Date{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestTasksCalendar(t *testing.T) {
	env := setupEngineTest(t)
	ctx := context.Background()
	tmpl, _ := env.templates.Create(env.familyID, "Trash", "", "", 4, model.RecurrenceWeekly, true)
	env.assign(t, env.kidID, tmpl.ID, []string{"mon", "thu"})

	if _, err := env.engine.CompleteTask(ctx, env.kidID, tmpl.ID, calendar.MustParse("2026-10-12")); err != nil {
		t.Fatalf("complete: %v", err)
	}

	views, err := env.engine.TasksCalendar(ctx, env.kidID, calendar.MustParse("2026-10-12"), calendar.MustParse("2026-10-18"))
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("len = %d, want 2 (monday and thursday)", len(views))
	}
	if views[0].DueDate.String() != "2026-10-12" || views[0].Status != model.TaskDone {
		t.Errorf("monday = %+v", views[0])
	}
	if views[1].DueDate.String() != "2026-10-15" || views[1].Status != model.TaskPending {
		t.Errorf("thursday = %+v", views[1])
	}
}

func TestTasksCalendarValidation(t *testing.T) {
	env := setupEngineTest(t)
	ctx := context.Background()

	cases := []struct {
		name       string
		start, end string
	}{
		{"reversed", "2026-10-15", "2026-10-14"},
		{"too long", "2026-01-01", "2026-03-31"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.engine.TasksCalendar(ctx, env.kidID, calendar.MustParse(tc.start), calendar.MustParse(tc.end))
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
	if _, err := env.engine.TasksCalendar(ctx, env.kidID, calendar.Date{}, calendar.MustParse("2026-10-15")); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("missing start err = %v, want ErrInvalidInput", err)
	}

	views, err := env.engine.TasksCalendar(ctx, env.kidID, calendar.MustParse("2026-10-01"), calendar.MustParse("2026-12-01"))
	if err != nil {
		t.Errorf("62-day range err = %v", err)
	}
	if views == nil {
		t.Error("empty calendar should be an empty slice")
	}
}
