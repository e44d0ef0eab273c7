package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error is a non-2xx backend response.
type Error struct {
	Status  int
	Message string
	Detail  string
	Issues  []Issue
	Count   int
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if len(e.Issues) > 0 {
		parts := make([]string, 0, len(e.Issues))
		for _, is := range e.Issues {
			if is.Path != "" {
				parts = append(parts, is.Path+": "+is.Message)
			} else {
				parts = append(parts, is.Message)
			}
		}
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	if e.Count > 0 {
		msg += fmt.Sprintf(" [referenced by %d task(s)]", e.Count)
	}
	return msg
}

func statusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

func IsConflict(err error) bool   { return statusOf(err) == http.StatusConflict }
func IsNotFound(err error) bool   { return statusOf(err) == http.StatusNotFound }
func IsValidation(err error) bool { return statusOf(err) == http.StatusBadRequest }

// InUseCount reports the number of referencing tasks carried by an in-use
// conflict (409 with a count).
func InUseCount(err error) (int, bool) {
	var e *Error
	if errors.As(err, &e) && e.Status == http.StatusConflict && e.Count > 0 {
		return e.Count, true
	}
	return 0, false
}
