package schedule

import (
	"slices"

	"github.com/dukerupert/kidpoints/internal/calendar"
	"github.com/dukerupert/kidpoints/internal/model"
)

// IsOwed reports whether the assignment obliges its kid to do the task on
// day d. The template's active flag is passed separately since templates can
// be deactivated without touching their assignments.
func IsOwed(a model.Assignment, templateActive bool, d calendar.Date) bool {
	if !a.Active || !templateActive {
		return false
	}
	if d.Before(a.StartDate) {
		return false
	}
	if !a.EndDate.IsZero() && d.After(a.EndDate) {
		return false
	}
	if len(a.DaysOfWeek) == 0 {
		return true
	}
	return slices.Contains(a.DaysOfWeek, Code(d.Weekday()))
}
