// Package taskview holds the pure task-list logic: filtering, ordering, due-date
// windows and per-AE summaries. Nothing here does I/O; "now" is always passed in.
package taskview

import (
	"strings"
	"time"

	"aetracker/internal/model"
)

// MatchBase applies the text/ae/account/status filters (AND-combined). The
// query is a case-insensitive substring match against the title only.
func MatchBase(t model.Task, f model.TaskFilters) bool {
	f = f.Normalized()
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q != "" && !strings.Contains(strings.ToLower(t.Title), q) {
		return false
	}
	if f.AE != model.FilterAll && t.AE != f.AE {
		return false
	}
	if f.Account != model.FilterAll && t.Account != f.Account {
		return false
	}
	if f.Status != model.FilterAll && string(t.Status) != f.Status {
		return false
	}
	return true
}

// FilterTasks returns the tasks matching f, in input order.
//
// When a date filter is set and no status is selected, DONE tasks are dropped
// first. DueThisWeek takes precedence over Overdue when both are set.
// A task due this week must not also be overdue.
func FilterTasks(tasks []model.Task, f model.TaskFilters, now time.Time) []model.Task {
	f = f.Normalized()
	excludeDone := (f.DueThisWeek || f.Overdue) && f.Status == model.FilterAll

	var start, end string
	if f.DueThisWeek {
		start, end = WeekRange(now)
	}

	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if !MatchBase(t, f) {
			continue
		}
		if excludeDone && t.Status == model.StatusDone {
			continue
		}
		switch {
		case f.DueThisWeek:
			if t.DueDate == "" || IsOverdue(t, now) {
				continue
			}
			if t.DueDate < start || t.DueDate >= end {
				continue
			}
		case f.Overdue:
			if !IsOverdue(t, now) {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}
