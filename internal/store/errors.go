package store

import "fmt"

const (
	KindAE      = "ae"
	KindAccount = "account"
	KindTask    = "task"
)

func kindLabel(kind string) string {
	switch kind {
	case KindAE:
		return "AE"
	case KindAccount:
		return "Account"
	case KindTask:
		return "Task"
	}
	return kind
}

type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", kindLabel(e.Kind))
}

// ConflictError is a case-insensitive duplicate name.
type ConflictError struct {
	Kind string
	Name string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("%s already exists", kindLabel(e.Kind))
}

// InUseError blocks deleting an AE/Account that tasks still reference.
type InUseError struct {
	Kind  string
	ID    string
	Count int
}

func (e InUseError) Error() string {
	return fmt.Sprintf("%s is in use", kindLabel(e.Kind))
}

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}
