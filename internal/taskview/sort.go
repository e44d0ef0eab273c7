package taskview

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"aetracker/internal/model"
)

type SortStrategy string

const (
	// SortByDue orders active tasks by due date (undated last), newest first on ties.
	SortByDue SortStrategy = "due"
	// SortInProgressFirst is SortByDue with IN_PROGRESS tasks pulled to the top.
	SortInProgressFirst SortStrategy = "in-progress-first"
)

func ParseSortStrategy(s string) (SortStrategy, error) {
	switch SortStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case SortByDue:
		return SortByDue, nil
	case SortInProgressFirst:
		return SortInProgressFirst, nil
	}
	return "", fmt.Errorf("unknown sort strategy: %s (expected due|in-progress-first)", s)
}

// StrategyFor picks the list ordering used for a filter set: plain due-date
// order while a date filter is active, in-progress-first otherwise.
func StrategyFor(f model.TaskFilters) SortStrategy {
	if f.DueThisWeek || f.Overdue {
		return SortByDue
	}
	return SortInProgressFirst
}

type Sorted struct {
	Active    []model.Task `json:"active"`
	Completed []model.Task `json:"completed"`
}

func SortTasks(tasks []model.Task) Sorted {
	return SortTasksWith(tasks, SortByDue)
}

// SortTasksWith partitions tasks by DONE and orders each side. The input slice
// is not reordered. Sorting an already sorted list is a no-op.
func SortTasksWith(tasks []model.Task, strategy SortStrategy) Sorted {
	out := Sorted{Active: []model.Task{}, Completed: []model.Task{}}
	for _, t := range tasks {
		if t.Done() {
			out.Completed = append(out.Completed, t)
		} else {
			out.Active = append(out.Active, t)
		}
	}

	inProgressFirst := strategy == SortInProgressFirst
	sort.SliceStable(out.Active, func(i, j int) bool {
		a, b := out.Active[i], out.Active[j]
		if inProgressFirst {
			ap, bp := a.Status == model.StatusInProgress, b.Status == model.StatusInProgress
			if ap != bp {
				return ap
			}
		}
		if c := compareDueDate(a.DueDate, b.DueDate); c != 0 {
			return c < 0
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	sort.SliceStable(out.Completed, func(i, j int) bool {
		return completionTime(out.Completed[i]).After(completionTime(out.Completed[j]))
	})
	return out
}

// compareDueDate orders YYYY-MM-DD strings ascending with empty values last.
func compareDueDate(a, b string) int {
	switch {
	case a == "" && b == "":
		return 0
	case a == "":
		return 1
	case b == "":
		return -1
	}
	return strings.Compare(a, b)
}

func completionTime(t model.Task) time.Time {
	if t.CompletedAt != nil {
		return *t.CompletedAt
	}
	return t.CreatedAt
}

// ApplyStatus moves t to next. Entering DONE stamps CompletedAt unless it is
// already set; any other status clears it.
func ApplyStatus(t model.Task, next model.Status, now time.Time) model.Task {
	t.Status = next
	if next == model.StatusDone {
		if t.CompletedAt == nil {
			ts := now.UTC()
			t.CompletedAt = &ts
		}
		return t
	}
	t.CompletedAt = nil
	return t
}
