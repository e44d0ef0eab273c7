package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"aetracker/internal/aecolor"
	"aetracker/internal/model"

	"github.com/google/uuid"
)

func (s *Store) ListAEs(ctx context.Context) ([]model.AE, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, color, created_at_unixms FROM aes ORDER BY name_key, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.AE{}
	for rows.Next() {
		var (
			ae    model.AE
			color sql.NullString
			ms    int64
		)
		if err := rows.Scan(&ae.ID, &ae.Name, &color, &ms); err != nil {
			return nil, err
		}
		if color.Valid {
			c := color.String
			ae.Color = &c
		}
		created := fromMs(ms)
		ae.CreatedAt = &created
		out = append(out, ae)
	}
	return out, rows.Err()
}

func (s *Store) ListAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM accounts ORDER BY name_key, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Account{}
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CreateAE inserts a new AE. A blank color is stored as NULL.
func (s *Store) CreateAE(ctx context.Context, name string, color *string) (model.AE, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.AE{}, ValidationError{Field: "name", Message: "name is required"}
	}
	var stored *string
	if color != nil && strings.TrimSpace(*color) != "" {
		c := strings.TrimSpace(*color)
		stored = &c
	}

	id, ms, err := s.insertEntity(ctx, s.db, KindAE, name, stored)
	if err != nil {
		return model.AE{}, err
	}
	created := fromMs(ms)
	return model.AE{ID: id, Name: name, Color: stored, CreatedAt: &created}, nil
}

func (s *Store) CreateAccount(ctx context.Context, name string) (model.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Account{}, ValidationError{Field: "name", Message: "name is required"}
	}
	id, _, err := s.insertEntity(ctx, s.db, KindAccount, name, nil)
	if err != nil {
		return model.Account{}, err
	}
	return model.Account{ID: id, Name: name}, nil
}

func tableFor(kind string) string {
	if kind == KindAE {
		return "aes"
	}
	return "accounts"
}

func (s *Store) insertEntity(ctx context.Context, q dbtx, kind, name string, color *string) (string, int64, error) {
	table := tableFor(kind)
	key := model.NameKey(name)

	var existing string
	err := q.QueryRowContext(ctx, `SELECT id FROM `+table+` WHERE name_key = ?`, key).Scan(&existing)
	if err == nil {
		return "", 0, ConflictError{Kind: kind, Name: name}
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", 0, err
	}

	id := uuid.NewString()
	ms := s.nowMs()
	if kind == KindAE {
		_, err = q.ExecContext(ctx, `INSERT INTO aes(id, name, name_key, color, created_at_unixms) VALUES(?, ?, ?, ?, ?)`, id, name, key, nullable(color), ms)
	} else {
		_, err = q.ExecContext(ctx, `INSERT INTO accounts(id, name, name_key, created_at_unixms) VALUES(?, ?, ?, ?)`, id, name, key, ms)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return "", 0, ConflictError{Kind: kind, Name: name}
		}
		return "", 0, err
	}
	return id, ms, nil
}

// resolveOrCreate returns the id of the entity named name, creating it when
// absent. Used by name-based task creation.
func (s *Store) resolveOrCreate(ctx context.Context, q dbtx, kind, name string) (string, error) {
	var id string
	err := q.QueryRowContext(ctx, `SELECT id FROM `+tableFor(kind)+` WHERE name_key = ?`, model.NameKey(name)).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	id, _, err = s.insertEntity(ctx, q, kind, strings.TrimSpace(name), nil)
	return id, err
}

func (s *Store) DeleteAE(ctx context.Context, id string) error {
	return s.deleteEntity(ctx, KindAE, id)
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	return s.deleteEntity(ctx, KindAccount, id)
}

func (s *Store) deleteEntity(ctx context.Context, kind, id string) error {
	col := "ae_id"
	if kind == KindAccount {
		col = "account_id"
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE `+col+` = ?`, id).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return InUseError{Kind: kind, ID: id, Count: n}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM `+tableFor(kind)+` WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return NotFoundError{Kind: kind, ID: id}
		}
		return nil
	})
}

func entityExists(ctx context.Context, q dbtx, kind, id string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM `+tableFor(kind)+` WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// ReconcileAEColors hands unique palette colors to AEs with blank or
// duplicated colors and persists the changes atomically.
func (s *Store) ReconcileAEColors(ctx context.Context) (aecolor.Result, error) {
	var res aecolor.Result
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT id, name, color, created_at_unixms FROM aes`)
		if err != nil {
			return err
		}
		var entries []aecolor.Entry
		for rows.Next() {
			var (
				e     aecolor.Entry
				color sql.NullString
				ms    int64
			)
			if err := rows.Scan(&e.ID, &e.Name, &color, &ms); err != nil {
				rows.Close()
				return err
			}
			if color.Valid {
				c := color.String
				e.Color = &c
			}
			created := fromMs(ms)
			e.CreatedAt = &created
			entries = append(entries, e)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		if err := rows.Close(); err != nil {
			return err
		}

		res = aecolor.Reconcile(entries)
		for _, c := range res.Changes {
			if _, err := tx.ExecContext(ctx, `UPDATE aes SET color = ? WHERE id = ?`, c.To, c.ID); err != nil {
				return err
			}
		}
		return nil
	})
	return res, err
}

// ResolveOrCreateAE returns the id of the AE matching name case-insensitively,
// creating it when absent.
func (s *Store) ResolveOrCreateAE(ctx context.Context, name string) (string, error) {
	return s.resolveEntity(ctx, KindAE, name)
}

func (s *Store) ResolveOrCreateAccount(ctx context.Context, name string) (string, error) {
	return s.resolveEntity(ctx, KindAccount, name)
}

func (s *Store) resolveEntity(ctx context.Context, kind, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", ValidationError{Field: "name", Message: "name is required"}
	}
	var id string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		got, err := s.resolveOrCreate(ctx, tx, kind, name)
		id = got
		return err
	})
	return id, err
}
