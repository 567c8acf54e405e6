package model

import (
	"time"

	"github.com/dukerupert/kidpoints/internal/calendar"
)

type Recurrence string

const (
	RecurrenceDaily  Recurrence = "daily"
	RecurrenceWeekly Recurrence = "weekly"
	RecurrenceOnce   Recurrence = "once"
)

func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceOnce:
		return true
	}
	return false
}

type TaskTemplate struct {
	ID          int64      `json:"id"`
	FamilyID    int64      `json:"family_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	IconEmoji   string     `json:"icon_emoji"`
	BasePoints  int        `json:"base_points"`
	Recurrence  Recurrence `json:"recurrence"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Assignment binds a template to one kid with a schedule. DaysOfWeek holds
// canonical weekday codes (mon..sun); empty means every day. A zero EndDate
// means open-ended.
type Assignment struct {
	ID             int64         `json:"id"`
	KidID          int64         `json:"kid_id"`
	TaskTemplateID int64         `json:"task_template_id"`
	DaysOfWeek     []string      `json:"days_of_week"`
	PointsOverride *int          `json:"points_override"`
	StartDate      calendar.Date `json:"start_date"`
	EndDate        calendar.Date `json:"end_date"`
	Active         bool          `json:"active"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Points returns the override when set, otherwise the template's base points.
func (a Assignment) Points(tmpl TaskTemplate) int {
	if a.PointsOverride != nil {
		return *a.PointsOverride
	}
	return tmpl.BasePoints
}

type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskDone    TaskStatus = "done"
)

type DailyTask struct {
	ID             int64         `json:"id"`
	KidID          int64         `json:"kid_id"`
	TaskTemplateID int64         `json:"task_template_id"`
	DueDate        calendar.Date `json:"due_date"`
	Status         TaskStatus    `json:"status"`
	PointsAwarded  *int          `json:"points_awarded"`
	CompletedAt    *time.Time    `json:"completed_at"`
	CreatedAt      time.Time     `json:"created_at"`
}

// TaskView is one row of a kid's task list for a day. DailyTaskID is nil
// when the obligation has not been materialized yet.
type TaskView struct {
	DailyTaskID    *int64        `json:"daily_task_id"`
	TaskTemplateID int64         `json:"task_template_id"`
	Title          string        `json:"title"`
	IconEmoji      string        `json:"icon_emoji"`
	Points         int           `json:"points"`
	Status         TaskStatus    `json:"status"`
	DueDate        calendar.Date `json:"due_date"`
}
