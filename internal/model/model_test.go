package model

import (
	"testing"

	"github.com/dukerupert/kidpoints/internal/calendar"
)

func TestRedemptionTransitions(t *testing.T) {
	all := []RedemptionStatus{RedemptionPending, RedemptionApproved, RedemptionRejected, RedemptionDelivered}
	legal := map[[2]RedemptionStatus]bool{
		{RedemptionPending, RedemptionApproved}:   true,
		{RedemptionPending, RedemptionRejected}:   true,
		{RedemptionApproved, RedemptionDelivered}: true,
	}

	for _, from := range all {
		for _, to := range all {
			want := legal[[2]RedemptionStatus{from, to}]
			if got := from.CanTransition(to); got != want {
				t.Errorf("%s -> %s = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestPeriodWindowAndKey(t *testing.T) {
	thursday := calendar.MustParse("2026-10-15")

	start, end := PeriodDaily.Window(thursday)
	if start.String() != "2026-10-15" || end.String() != "2026-10-15" {
		t.Errorf("daily window = %s..%s", start, end)
	}
	if got := PeriodDaily.Key(thursday); got != "daily:2026-10-15" {
		t.Errorf("daily key = %q", got)
	}

	start, end = PeriodWeekly.Window(thursday)
	if start.String() != "2026-10-12" || end.String() != "2026-10-18" {
		t.Errorf("weekly window = %s..%s", start, end)
	}
	// Every day of the week maps to the same key.
	for _, d := range calendar.Range(start, end) {
		if got := PeriodWeekly.Key(d); got != "weekly:2026-10-12" {
			t.Errorf("weekly key for %s = %q", d, got)
		}
	}

	if Period("monthly").Valid() {
		t.Error("monthly should not be a valid period")
	}
}

func TestLedgerEntrySigned(t *testing.T) {
	cases := []struct {
		typ  EntryType
		want int
	}{
		{EntryCredit, 5},
		{EntryBonus, 5},
		{EntryDebit, -5},
	}
	for _, c := range cases {
		e := LedgerEntry{EntryType: c.typ, Points: 5}
		if got := e.Signed(); got != c.want {
			t.Errorf("%s signed = %d, want %d", c.typ, got, c.want)
		}
	}
}

func TestAssignmentPoints(t *testing.T) {
	tmpl := TaskTemplate{BasePoints: 5}
	a := Assignment{}
	if got := a.Points(tmpl); got != 5 {
		t.Errorf("points without override = %d, want 5", got)
	}
	override := 8
	a.PointsOverride = &override
	if got := a.Points(tmpl); got != 8 {
		t.Errorf("points with override = %d, want 8", got)
	}
}
