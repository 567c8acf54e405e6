package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/dukerupert/kidpoints/internal/calendar"
	"github.com/dukerupert/kidpoints/internal/model"
)

func TestGenerateIsIdempotent(t *testing.T) {
	env := setupEngineTest(t)
	env.addTask(t, "Brush teeth", 5)
	env.addTask(t, "Make bed", 3)
	ctx := context.Background()
	day := calendar.MustParse("2026-10-15")

	created, err := env.engine.GenerateForDate(ctx, env.familyID, day)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if created != 2 {
		t.Errorf("created = %d, want 2", created)
	}

	again, err := env.engine.GenerateForDate(ctx, env.familyID, day)
	if err != nil {
		t.Fatalf("generate again: %v", err)
	}
	if again != 0 {
		t.Errorf("second generate created = %d, want 0", again)
	}
	if n := env.count(t, `SELECT COUNT(*) FROM daily_tasks WHERE due_date = '2026-10-15'`); n != 2 {
		t.Errorf("daily tasks = %d, want 2", n)
	}
	if n := env.count(t, `SELECT COUNT(*) FROM daily_tasks WHERE status = 'pending' AND points_awarded IS NULL`); n != 2 {
		t.Errorf("pending rows without points = %d, want 2", n)
	}
}

func TestGenerateDefaultsToToday(t *testing.T) {
	env := setupEngineTest(t)
	env.addTask(t, "Brush teeth", 5)

	if _, err := env.engine.GenerateForDate(context.Background(), env.familyID, calendar.Date{}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if n := env.count(t, `SELECT COUNT(*) FROM daily_tasks WHERE due_date = '2026-10-15'`); n != 1 {
		t.Errorf("tasks for today = %d, want 1", n)
	}
}

func TestGenerateRespectsSchedule(t *testing.T) {
	env := setupEngineTest(t)
	ctx := context.Background()

	weekdays, _ := env.templates.Create(env.familyID, "Homework", "", "", 5, model.RecurrenceDaily, true)
	env.assign(t, env.kidID, weekdays.ID, []string{"mon", "tue", "wed", "thu", "fri"})

	inactive, _ := env.templates.Create(env.familyID, "Retired", "", "", 5, model.RecurrenceDaily, false)
	env.assign(t, env.kidID, inactive.ID, nil)

	ended, _ := env.templates.Create(env.familyID, "Summer reading", "", "", 5, model.RecurrenceDaily, true)
	a := env.assign(t, env.kidID, ended.ID, nil)
	a.EndDate = calendar.MustParse("2026-10-10")
	if _, err := env.assignments.Update(*a); err != nil {
		t.Fatalf("update assignment: %v", err)
	}

	thursday, err := env.engine.GenerateForDate(ctx, env.familyID, calendar.MustParse("2026-10-15"))
	if err != nil {
		t.Fatalf("generate thursday: %v", err)
	}
	if thursday != 1 {
		t.Errorf("thursday created = %d, want 1", thursday)
	}

	saturday, err := env.engine.GenerateForDate(ctx, env.familyID, calendar.MustParse("2026-10-17"))
	if err != nil {
		t.Fatalf("generate saturday: %v", err)
	}
	if saturday != 0 {
		t.Errorf("saturday created = %d, want 0", saturday)
	}

	beforeStart, err := env.engine.GenerateForDate(ctx, env.familyID, calendar.MustParse("2026-09-30"))
	if err != nil {
		t.Fatalf("generate before start: %v", err)
	}
	if beforeStart != 0 {
		t.Errorf("before start created = %d, want 0", beforeStart)
	}
}

func TestGenerateCoversAllKids(t *testing.T) {
	env := setupEngineTest(t)
	tmpl := env.addTask(t, "Brush teeth", 5)
	sibling, err := env.kids.Create(env.familyID, "Charles", nil, "", "")
	if err != nil {
		t.Fatalf("create sibling: %v", err)
	}
	env.assign(t, sibling.ID, tmpl, nil)

	other, _ := env.families.Create("Other", "")
	otherKid, _ := env.kids.Create(other.ID, "Stranger", nil, "", "")
	otherTmpl, _ := env.templates.Create(other.ID, "Elsewhere", "", "", 1, model.RecurrenceDaily, true)
	env.assign(t, otherKid.ID, otherTmpl.ID, nil)

	created, err := env.engine.GenerateForDate(context.Background(), env.familyID, calendar.MustParse("2026-10-15"))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if created != 2 {
		t.Errorf("created = %d, want 2 (other family excluded)", created)
	}
}

func TestGenerateUnknownFamily(t *testing.T) {
	env := setupEngineTest(t)
	_, err := env.engine.GenerateForDate(context.Background(), 999, calendar.MustParse("2026-10-15"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGeneratePublishesOnlyWhenCreated(t *testing.T) {
	env := setupEngineTest(t)
	env.addTask(t, "Brush teeth", 5)
	ctx := context.Background()
	day := calendar.MustParse("2026-10-15")

	env.engine.GenerateForDate(ctx, env.familyID, day)
	env.engine.GenerateForDate(ctx, env.familyID, day)

	types := env.pub.types()
	if len(types) != 1 || types[0] != "daily_task_generated" {
		t.Errorf("events = %v, want one daily_task_generated", types)
	}
}
