// Package api is the JSON contract between the data provider and the backend,
// plus an HTTP client for it. The server side lives in internal/web.
package api

import (
	"aetracker/internal/aecolor"
	"aetracker/internal/model"
)

type CreateAERequest struct {
	Name  string  `json:"name"`
	Color *string `json:"color,omitempty"`
}

type CreateAccountRequest struct {
	Name string `json:"name"`
}

// CreateTaskRequest names the AE/Account either by id or by display name. Ids
// win when both are present; names are resolved (or created) by the backend.
type CreateTaskRequest struct {
	Title       string       `json:"title"`
	Description *string      `json:"description,omitempty"`
	AE          string       `json:"ae,omitempty"`
	Account     string       `json:"account,omitempty"`
	AEID        string       `json:"ae_id,omitempty"`
	AccountID   *string      `json:"account_id,omitempty"`
	Status      model.Status `json:"status"`
	DueDate     *string      `json:"due_date,omitempty"`
}

type UpdateTaskRequest struct {
	Title       model.Optional[string]       `json:"title,omitzero"`
	Description model.Optional[string]       `json:"description,omitzero"`
	AEID        model.Optional[string]       `json:"ae_id,omitzero"`
	AccountID   model.Optional[string]       `json:"account_id,omitzero"`
	Status      model.Optional[model.Status] `json:"status,omitzero"`
	DueDate     model.Optional[string]       `json:"due_date,omitzero"`
}

func (r UpdateTaskRequest) Empty() bool {
	return !r.Title.Set && !r.Description.Set && !r.AEID.Set &&
		!r.AccountID.Set && !r.Status.Set && !r.DueDate.Set
}

type OKResponse struct {
	OK bool `json:"ok"`
}

type ReconcileResponse struct {
	OK         bool             `json:"ok"`
	Changed    int              `json:"changed"`
	Changes    []aecolor.Change `json:"changes,omitempty"`
	Unresolved []string         `json:"unresolved,omitempty"`
}

type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error  string  `json:"error"`
	Detail string  `json:"detail,omitempty"`
	Issues []Issue `json:"issues,omitempty"`
	Count  int     `json:"count,omitempty"`
}

// DescriptionResponse carries a task description as stored and as sanitized
// HTML.
type DescriptionResponse struct {
	ID       string `json:"id"`
	Markdown string `json:"markdown"`
	HTML     string `json:"html"`
}
