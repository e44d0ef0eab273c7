package taskview

import (
	"sync"
	"time"
	_ "time/tzdata"

	"aetracker/internal/model"
)

// ReferenceZone is the calendar every due-date decision is made in.
const ReferenceZone = "America/Chicago"

const dateLayout = "2006-01-02"

var (
	locOnce sync.Once
	loc     *time.Location
)

func referenceLocation() *time.Location {
	locOnce.Do(func() {
		l, err := time.LoadLocation(ReferenceZone)
		if err != nil {
			// Embedded tzdata makes this unreachable; keep a sane fallback.
			l = time.FixedZone("CST", -6*60*60)
		}
		loc = l
	})
	return loc
}

// calendarDay returns midnight UTC of the reference-zone calendar date of now.
// Arithmetic on the result is DST-free.
func calendarDay(now time.Time) time.Time {
	y, m, d := now.In(referenceLocation()).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today is the reference-zone calendar date of now as YYYY-MM-DD.
func Today(now time.Time) string {
	return calendarDay(now).Format(dateLayout)
}

// WeekRange returns the [start, end) window of the reference-zone week that
// contains now. start is a Monday; end is start plus 7 days.
func WeekRange(now time.Time) (start, end string) {
	today := calendarDay(now)
	sinceMonday := (int(today.Weekday()) + 6) % 7
	s := today.AddDate(0, 0, -sinceMonday)
	return s.Format(dateLayout), s.AddDate(0, 0, 7).Format(dateLayout)
}

// ValidDate reports whether s is a zero-padded YYYY-MM-DD calendar date.
func ValidDate(s string) bool {
	if len(s) != len(dateLayout) {
		return false
	}
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

// IsOverdue compares calendar-date strings, not instants: a task due today is
// not overdue. DONE tasks are never overdue.
func IsOverdue(t model.Task, now time.Time) bool {
	if t.DueDate == "" || t.Status == model.StatusDone {
		return false
	}
	return t.DueDate < Today(now)
}

func IsDueThisWeek(t model.Task, now time.Time) bool {
	if t.DueDate == "" {
		return false
	}
	start, end := WeekRange(now)
	return t.DueDate >= start && t.DueDate < end
}
