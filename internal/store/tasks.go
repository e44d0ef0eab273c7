package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"aetracker/internal/model"
	"aetracker/internal/taskview"

	"github.com/google/uuid"
)

// NewTask is a task creation request. AEID/AccountID win over the names; a
// name that matches nothing is created.
type NewTask struct {
	Title       string
	Description *string
	AE          string
	Account     string
	AEID        string
	AccountID   *string
	Status      model.Status
	DueDate     *string
}

// TaskUpdate is a partial update. Null clears the optional columns
// (description, account, due date).
type TaskUpdate struct {
	Title       model.Optional[string]
	Description model.Optional[string]
	AEID        model.Optional[string]
	AccountID   model.Optional[string]
	Status      model.Optional[model.Status]
	DueDate     model.Optional[string]
}

func (u TaskUpdate) empty() bool {
	return !u.Title.Set && !u.Description.Set && !u.AEID.Set &&
		!u.AccountID.Set && !u.Status.Set && !u.DueDate.Set
}

const taskSelect = `SELECT t.id, t.title, t.description, a.name, c.name, t.status, t.due_date,
	t.created_at_unixms, t.updated_at_unixms, t.completed_at_unixms
FROM tasks t
JOIN aes a ON a.id = t.ae_id
LEFT JOIN accounts c ON c.id = t.account_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(sc rowScanner) (model.Task, error) {
	var (
		t                model.Task
		desc, acct, due  sql.NullString
		status           string
		created, updated int64
		completed        sql.NullInt64
	)
	if err := sc.Scan(&t.ID, &t.Title, &desc, &t.AE, &acct, &status, &due, &created, &updated, &completed); err != nil {
		return model.Task{}, err
	}
	t.Description = desc.String
	t.Account = acct.String
	t.Status = model.Status(status)
	t.DueDate = due.String
	t.CreatedAt = fromMs(created)
	u := fromMs(updated)
	t.UpdatedAt = &u
	if completed.Valid {
		c := fromMs(completed.Int64)
		t.CompletedAt = &c
	}
	return t, nil
}

// ListTasks returns every task joined with its AE/Account display names. The
// order is only a convenience; clients re-sort.
func (s *Store) ListTasks(ctx context.Context) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx, taskSelect+`
ORDER BY (t.status = 'DONE'), (t.due_date IS NULL), t.due_date, t.created_at_unixms DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) GetTask(ctx context.Context, id string) (model.Task, error) {
	return s.getTask(ctx, s.db, id)
}

func (s *Store) getTask(ctx context.Context, q dbtx, id string) (model.Task, error) {
	t, err := scanTask(q.QueryRowContext(ctx, taskSelect+` WHERE t.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, NotFoundError{Kind: KindTask, ID: id}
	}
	return t, err
}

func validateDueDate(due *string) (*string, error) {
	if due == nil || strings.TrimSpace(*due) == "" {
		return nil, nil
	}
	d := strings.TrimSpace(*due)
	if !taskview.ValidDate(d) {
		return nil, ValidationError{Field: "due_date", Message: "due_date must be YYYY-MM-DD"}
	}
	return &d, nil
}

func validStatus(st model.Status) (model.Status, error) {
	if st == "" {
		return model.StatusBacklog, nil
	}
	if !st.Valid() {
		return "", ValidationError{Field: "status", Message: "status must be one of BACKLOG, IN_PROGRESS, WAITING, DONE"}
	}
	return st, nil
}

func (s *Store) CreateTask(ctx context.Context, in NewTask) (model.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return model.Task{}, ValidationError{Field: "title", Message: "title is required"}
	}
	aeID := strings.TrimSpace(in.AEID)
	aeName := strings.TrimSpace(in.AE)
	if aeID == "" && aeName == "" {
		return model.Task{}, ValidationError{Field: "ae", Message: "ae is required"}
	}
	status, err := validStatus(in.Status)
	if err != nil {
		return model.Task{}, err
	}
	due, err := validateDueDate(in.DueDate)
	if err != nil {
		return model.Task{}, err
	}
	var desc *string
	if in.Description != nil && strings.TrimSpace(*in.Description) != "" {
		d := *in.Description
		desc = &d
	}

	var out model.Task
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if aeID != "" {
			ok, err := entityExists(ctx, tx, KindAE, aeID)
			if err != nil {
				return err
			}
			if !ok {
				return ValidationError{Field: "ae_id", Message: "ae_id does not reference an AE"}
			}
		} else {
			id, err := s.resolveOrCreate(ctx, tx, KindAE, aeName)
			if err != nil {
				return err
			}
			aeID = id
		}

		var accountID *string
		switch {
		case in.AccountID != nil && strings.TrimSpace(*in.AccountID) != "":
			id := strings.TrimSpace(*in.AccountID)
			ok, err := entityExists(ctx, tx, KindAccount, id)
			if err != nil {
				return err
			}
			if !ok {
				return ValidationError{Field: "account_id", Message: "account_id does not reference an Account"}
			}
			accountID = &id
		case !model.IsMissingAccount(in.Account):
			id, err := s.resolveOrCreate(ctx, tx, KindAccount, in.Account)
			if err != nil {
				return err
			}
			accountID = &id
		}

		now := s.now()
		t := taskview.ApplyStatus(model.Task{}, status, now)
		var completed *int64
		if t.CompletedAt != nil {
			ms := t.CompletedAt.UnixMilli()
			completed = &ms
		}
		id := uuid.NewString()
		ms := now.UTC().UnixMilli()
		if _, err := tx.ExecContext(ctx, `INSERT INTO tasks(id, title, description, ae_id, account_id, status, due_date,
			created_at_unixms, updated_at_unixms, completed_at_unixms) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, title, nullable(desc), aeID, nullable(accountID), string(status), nullable(due), ms, ms, nullable(completed)); err != nil {
			return err
		}
		got, err := s.getTask(ctx, tx, id)
		out = got
		return err
	})
	return out, err
}

// UpdateTask applies u to the task. Moving into DONE stamps completed_at,
// moving out of DONE clears it.
func (s *Store) UpdateTask(ctx context.Context, id string, u TaskUpdate) (model.Task, error) {
	if u.empty() {
		return model.Task{}, ValidationError{Message: "No fields provided"}
	}

	var sets []string
	var args []any
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if u.Title.Set {
		v, _ := u.Title.Get()
		v = strings.TrimSpace(v)
		if v == "" {
			return model.Task{}, ValidationError{Field: "title", Message: "title is required"}
		}
		set("title", v)
	}
	if u.Description.Set {
		if v, ok := u.Description.Get(); ok && strings.TrimSpace(v) != "" {
			set("description", v)
		} else {
			set("description", nil)
		}
	}
	if u.DueDate.Set {
		v, _ := u.DueDate.Get()
		due, err := validateDueDate(&v)
		if err != nil {
			return model.Task{}, err
		}
		set("due_date", nullable(due))
	}
	if u.AEID.Set {
		v, _ := u.AEID.Get()
		if strings.TrimSpace(v) == "" {
			return model.Task{}, ValidationError{Field: "ae_id", Message: "ae is required"}
		}
	}
	var nextStatus model.Status
	if u.Status.Set {
		v, _ := u.Status.Get()
		if !v.Valid() {
			return model.Task{}, ValidationError{Field: "status", Message: "status must be one of BACKLOG, IN_PROGRESS, WAITING, DONE"}
		}
		nextStatus = v
	}

	var out model.Task
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := s.getTask(ctx, tx, id)
		if err != nil {
			return err
		}
		if u.AEID.Set {
			v, _ := u.AEID.Get()
			v = strings.TrimSpace(v)
			ok, err := entityExists(ctx, tx, KindAE, v)
			if err != nil {
				return err
			}
			if !ok {
				return ValidationError{Field: "ae_id", Message: "ae_id does not reference an AE"}
			}
			set("ae_id", v)
		}
		if u.AccountID.Set {
			v, ok := u.AccountID.Get()
			v = strings.TrimSpace(v)
			if !ok || v == "" {
				set("account_id", nil)
			} else {
				exists, err := entityExists(ctx, tx, KindAccount, v)
				if err != nil {
					return err
				}
				if !exists {
					return ValidationError{Field: "account_id", Message: "account_id does not reference an Account"}
				}
				set("account_id", v)
			}
		}
		now := s.now()
		if u.Status.Set {
			next := taskview.ApplyStatus(cur, nextStatus, now)
			set("status", string(next.Status))
			if next.CompletedAt != nil {
				set("completed_at_unixms", next.CompletedAt.UnixMilli())
			} else {
				set("completed_at_unixms", nil)
			}
		}
		set("updated_at_unixms", now.UTC().UnixMilli())

		q := `UPDATE tasks SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
		if _, err := tx.ExecContext(ctx, q, append(args, id)...); err != nil {
			return err
		}
		got, err := s.getTask(ctx, tx, id)
		out = got
		return err
	})
	return out, err
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return NotFoundError{Kind: KindTask, ID: id}
	}
	return nil
}

func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
