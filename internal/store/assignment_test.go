package store

import (
	"errors"
	"reflect"
	"testing"

	"github.com/dukerupert/kidpoints/internal/calendar"
	"github.com/dukerupert/kidpoints/internal/model"
)

type catalogFixture struct {
	families    *FamilyStore
	kids        *KidStore
	templates   *TaskTemplateStore
	assignments *AssignmentStore
	rewards     *RewardStore

	family *model.Family
	kid    *model.Kid
}

func setupCatalog(t *testing.T) *catalogFixture {
	t.Helper()
	db := setupTestDB(t)
	c := &catalogFixture{
		families:    NewFamilyStore(db),
		kids:        NewKidStore(db),
		templates:   NewTaskTemplateStore(db),
		assignments: NewAssignmentStore(db),
		rewards:     NewRewardStore(db),
	}

	var err error
	c.family, err = c.families.Create("Lovelace", "")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	c.kid, err = c.kids.Create(c.family.ID, "Ada", nil, "", "")
	if err != nil {
		t.Fatalf("create kid: %v", err)
	}
	return c
}

func TestTaskTemplateCRUD(t *testing.T) {
	c := setupCatalog(t)

	tmpl, err := c.templates.Create(c.family.ID, "Brush teeth", "Morning and night", "🪥", 5, model.RecurrenceDaily, true)
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	if tmpl.BasePoints != 5 || tmpl.Recurrence != model.RecurrenceDaily || !tmpl.Active {
		t.Errorf("template = %+v", tmpl)
	}

	updated, err := c.templates.Update(tmpl.ID, "Brush teeth", "", "🪥", 7, model.RecurrenceWeekly, false)
	if err != nil {
		t.Fatalf("update template: %v", err)
	}
	if updated.BasePoints != 7 || updated.Active {
		t.Errorf("updated = %+v", updated)
	}

	if _, err := c.templates.Create(c.family.ID, "Feed cat", "", "", 3, model.RecurrenceDaily, true); err != nil {
		t.Fatalf("create second template: %v", err)
	}
	list, err := c.templates.ListByFamily(c.family.ID)
	if err != nil {
		t.Fatalf("list templates: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].Title != "Feed cat" {
		t.Errorf("active template should sort first, got %q", list[0].Title)
	}

	if _, err := c.templates.Create(c.family.ID, "Zero", "", "", 0, model.RecurrenceDaily, true); err == nil {
		t.Error("expected check constraint error for zero base points")
	}
}

func TestAssignmentCRUD(t *testing.T) {
	c := setupCatalog(t)
	tmpl, err := c.templates.Create(c.family.ID, "Brush teeth", "", "", 5, model.RecurrenceDaily, true)
	if err != nil {
		t.Fatalf("create template: %v", err)
	}

	override := 8
	a, err := c.assignments.Create(model.Assignment{
		KidID:          c.kid.ID,
		TaskTemplateID: tmpl.ID,
		DaysOfWeek:     []string{"mon", "wed"},
		PointsOverride: &override,
		StartDate:      calendar.MustParse("2026-10-01"),
		Active:         true,
	})
	if err != nil {
		t.Fatalf("create assignment: %v", err)
	}
	if !reflect.DeepEqual(a.DaysOfWeek, []string{"mon", "wed"}) {
		t.Errorf("days = %v", a.DaysOfWeek)
	}
	if a.PointsOverride == nil || *a.PointsOverride != 8 {
		t.Errorf("override = %v, want 8", a.PointsOverride)
	}
	if a.StartDate.String() != "2026-10-01" {
		t.Errorf("start = %s", a.StartDate)
	}
	if !a.EndDate.IsZero() {
		t.Errorf("end = %s, want open-ended", a.EndDate)
	}

	a.DaysOfWeek = nil
	a.PointsOverride = nil
	a.EndDate = calendar.MustParse("2026-12-31")
	updated, err := c.assignments.Update(*a)
	if err != nil {
		t.Fatalf("update assignment: %v", err)
	}
	if len(updated.DaysOfWeek) != 0 {
		t.Errorf("days = %v, want every day", updated.DaysOfWeek)
	}
	if updated.PointsOverride != nil {
		t.Errorf("override = %d, want nil", *updated.PointsOverride)
	}
	if updated.EndDate.String() != "2026-12-31" {
		t.Errorf("end = %s", updated.EndDate)
	}

	got, err := c.assignments.GetForKidTemplate(c.kid.ID, tmpl.ID)
	if err != nil {
		t.Fatalf("get for kid template: %v", err)
	}
	if got == nil || got.ID != a.ID {
		t.Errorf("GetForKidTemplate = %+v", got)
	}

	byFamily, err := c.assignments.ListByFamily(c.family.ID)
	if err != nil {
		t.Fatalf("list by family: %v", err)
	}
	if len(byFamily) != 1 {
		t.Errorf("len = %d, want 1", len(byFamily))
	}

	if err := c.assignments.Delete(a.ID); err != nil {
		t.Fatalf("delete assignment: %v", err)
	}
	byKid, err := c.assignments.ListByKid(c.kid.ID)
	if err != nil {
		t.Fatalf("list by kid: %v", err)
	}
	if len(byKid) != 0 {
		t.Errorf("len = %d, want 0", len(byKid))
	}
}

func TestAssignmentDuplicate(t *testing.T) {
	c := setupCatalog(t)
	tmpl, _ := c.templates.Create(c.family.ID, "Brush teeth", "", "", 5, model.RecurrenceDaily, true)
	other, _ := c.templates.Create(c.family.ID, "Feed cat", "", "", 3, model.RecurrenceDaily, true)

	a := model.Assignment{KidID: c.kid.ID, TaskTemplateID: tmpl.ID, StartDate: calendar.MustParse("2026-10-01"), Active: true}
	if _, err := c.assignments.Create(a); err != nil {
		t.Fatalf("create assignment: %v", err)
	}
	if _, err := c.assignments.Create(a); !errors.Is(err, ErrDuplicateAssignment) {
		t.Errorf("duplicate create err = %v, want ErrDuplicateAssignment", err)
	}

	a.TaskTemplateID = other.ID
	second, err := c.assignments.Create(a)
	if err != nil {
		t.Fatalf("create second assignment: %v", err)
	}
	second.TaskTemplateID = tmpl.ID
	if _, err := c.assignments.Update(*second); !errors.Is(err, ErrDuplicateAssignment) {
		t.Errorf("duplicate update err = %v, want ErrDuplicateAssignment", err)
	}
}
