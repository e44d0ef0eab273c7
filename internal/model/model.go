package model

import (
	"strings"
	"time"
)

type Status string

const (
	StatusBacklog    Status = "BACKLOG"
	StatusInProgress Status = "IN_PROGRESS"
	StatusWaiting    Status = "WAITING"
	StatusDone       Status = "DONE"
)

var allStatuses = []Status{StatusBacklog, StatusInProgress, StatusWaiting, StatusDone}

// AllStatuses returns the statuses in display order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

func (s Status) Valid() bool {
	switch s {
	case StatusBacklog, StatusInProgress, StatusWaiting, StatusDone:
		return true
	}
	return false
}

func (s Status) Label() string {
	switch s {
	case StatusBacklog:
		return "Backlog"
	case StatusInProgress:
		return "In Progress"
	case StatusWaiting:
		return "Waiting"
	case StatusDone:
		return "Done"
	}
	return string(s)
}

// ParseStatus accepts the wire value in any case, plus the "in-progress" and
// "in progress" spellings people type on the command line.
func ParseStatus(s string) (Status, bool) {
	v := strings.ToUpper(strings.TrimSpace(s))
	v = strings.NewReplacer("-", "_", " ", "_").Replace(v)
	st := Status(v)
	if !st.Valid() {
		return "", false
	}
	return st, true
}

type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	AE          string     `json:"ae"`
	Account     string     `json:"account"`
	Status      Status     `json:"status"`
	DueDate     string     `json:"dueDate,omitempty"` // YYYY-MM-DD
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt"`
}

func (t Task) Done() bool { return t.Status == StatusDone }

// AE is an account executive. Color is nil when none has been stored; callers
// derive a fallback with aecolor.Resolve.
type AE struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Color     *string    `json:"color,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

type Account struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

const FilterAll = "ALL"

type TaskFilters struct {
	Query       string `json:"query"`
	AE          string `json:"ae"`
	Account     string `json:"account"`
	Status      string `json:"status"` // FilterAll or a Status value
	DueThisWeek bool   `json:"dueThisWeek"`
	Overdue     bool   `json:"overdue"`
}

func DefaultFilters() TaskFilters {
	return TaskFilters{AE: FilterAll, Account: FilterAll, Status: FilterAll}
}

// Normalized fills blank selectors with FilterAll.
func (f TaskFilters) Normalized() TaskFilters {
	if strings.TrimSpace(f.AE) == "" {
		f.AE = FilterAll
	}
	if strings.TrimSpace(f.Account) == "" {
		f.Account = FilterAll
	}
	if strings.TrimSpace(f.Status) == "" {
		f.Status = FilterAll
	}
	return f
}

// Snapshot is the materialized view the UI reads. Values handed out are never
// mutated afterwards; every change produces a new Snapshot.
type Snapshot struct {
	Hydrated bool              `json:"hydrated"`
	Tasks    []Task            `json:"tasks"`
	AEs      []string          `json:"aes"`
	AEColors map[string]string `json:"aeColors"`
	Accounts []string          `json:"accounts"`
}

func EmptySnapshot() Snapshot {
	return Snapshot{
		Tasks:    []Task{},
		AEs:      []string{},
		AEColors: map[string]string{},
		Accounts: []string{},
	}
}

func (s Snapshot) FindTask(id string) (Task, bool) {
	for _, t := range s.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// NameKey is the case-insensitive identity of an AE or Account name.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func IsMissingAccount(account string) bool {
	v := strings.TrimSpace(account)
	return v == "" || strings.EqualFold(v, "unassigned")
}

func DisplayAccount(account string) string {
	if IsMissingAccount(account) {
		return "–"
	}
	return strings.TrimSpace(account)
}
