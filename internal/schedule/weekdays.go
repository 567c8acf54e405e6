// Package schedule decides whether an assignment is owed on a given day.
package schedule

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

var dayNames = map[string]time.Weekday{
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
	"sun": time.Sunday,
}

var dayAbbrev = map[time.Weekday]string{
	time.Monday:    "mon",
	time.Tuesday:   "tue",
	time.Wednesday: "wed",
	time.Thursday:  "thu",
	time.Friday:    "fri",
	time.Saturday:  "sat",
	time.Sunday:    "sun",
}

// mondayFirst orders weekdays Monday..Sunday.
func mondayFirst(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// ParseDays validates weekday codes and returns them canonical: lower-case,
// de-duplicated, Monday first. Nil or empty input means every day.
func ParseDays(codes []string) ([]string, error) {
	seen := make(map[time.Weekday]bool, len(codes))
	var days []time.Weekday
	for _, c := range codes {
		key := strings.ToLower(strings.TrimSpace(c))
		if key == "" {
			continue
		}
		wd, ok := dayNames[key]
		if !ok {
			return nil, fmt.Errorf("unknown day: %q", c)
		}
		if seen[wd] {
			continue
		}
		seen[wd] = true
		days = append(days, wd)
	}
	sort.Slice(days, func(i, j int) bool { return mondayFirst(days[i]) < mondayFirst(days[j]) })

	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, dayAbbrev[d])
	}
	return out, nil
}

// Code returns the weekday code for d.
func Code(d time.Weekday) string {
	return dayAbbrev[d]
}

// Join serializes canonical codes for storage ("" = every day).
func Join(codes []string) string {
	return strings.Join(codes, ",")
}

// Split reverses Join.
func Split(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
