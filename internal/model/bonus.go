package model

import (
	"fmt"

	"github.com/dukerupert/kidpoints/internal/calendar"
)

type Period string

const (
	PeriodDaily  Period = "daily"
	PeriodWeekly Period = "weekly"
)

func (p Period) Valid() bool {
	return p == PeriodDaily || p == PeriodWeekly
}

// Window returns the inclusive day range of the period containing today.
func (p Period) Window(today calendar.Date) (start, end calendar.Date) {
	if p == PeriodWeekly {
		return today.WeekStart(), today.WeekEnd()
	}
	return today, today
}

// Key identifies one concrete period instance, e.g. "weekly:2026-10-12".
func (p Period) Key(today calendar.Date) string {
	start, _ := p.Window(today)
	return fmt.Sprintf("%s:%s", p, start)
}

type Eligibility struct {
	Period         Period        `json:"period"`
	PeriodStart    calendar.Date `json:"period_start"`
	PeriodEnd      calendar.Date `json:"period_end"`
	TotalTasks     int           `json:"total_tasks"`
	CompletedTasks int           `json:"completed_tasks"`
	Eligible       bool          `json:"eligible"`
	AlreadyGranted bool          `json:"already_granted"`
	BonusPoints    int           `json:"bonus_points"`
}
