package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"sfinapp/internal/core"
)

// ListAccounts returns all accounts ordered by id, so the first entry is
// stable between calls.
func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, description FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []core.Account{}
	for rows.Next() {
		var a core.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Description); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id int64) (*core.Account, error) {
	var a core.Account
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description FROM accounts WHERE id = ?`, id,
	).Scan(&a.ID, &a.Name, &a.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("account", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get account %d: %w", id, err)
	}
	return &a, nil
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (name, description) VALUES (?, ?)`, a.Name, a.Description)
	if err != nil {
		return 0, fmt.Errorf("create account: %w", mapConstraintError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create account: last insert id: %w", err)
	}

	slog.DebugContext(ctx, "Account saved to SQLite", "id", id, "name", a.Name)
	return id, nil
}

func (r *SQLiteRepository) UpdateAccount(ctx context.Context, id int64, a core.Account) (*core.Account, error) {
	err := execAffecting(ctx, r.db, "account", id,
		`UPDATE accounts SET name = ?, description = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		a.Name, a.Description, id)
	if err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}
	return r.GetAccount(ctx, id)
}

// DeleteAccount fails with core.ErrConflict while transactions reference it.
func (r *SQLiteRepository) DeleteAccount(ctx context.Context, id int64) error {
	if err := execAffecting(ctx, r.db, "account", id, `DELETE FROM accounts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}
