package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sfinapp/internal/core"
)

const transactionColumns = `t.id, t.date, t.amount, t.account_id, t.to_account_id, t.description`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanTransaction reads transactionColumns followed by extra destinations.
// Type is left empty: it is derived by the service layer.
func scanTransaction(row rowScanner, extra ...any) (core.Transaction, error) {
	var (
		tx        core.Transaction
		dateMs    int64
		accountID int64
		toAccount sql.NullInt64
	)
	dest := append([]any{&tx.ID, &dateMs, &tx.Amount, &accountID, &toAccount, &tx.Description}, extra...)
	if err := row.Scan(dest...); err != nil {
		return core.Transaction{}, err
	}
	tx.Date = time.UnixMilli(dateMs).UTC()
	tx.AccountID = &accountID
	if toAccount.Valid {
		to := toAccount.Int64
		tx.ToAccountID = &to
	}
	tx.TagIDs = []int64{}
	return tx, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (*core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions t WHERE t.id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("transaction", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %d: %w", id, err)
	}

	tags, err := r.loadTagIDs(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	if ids, ok := tags[id]; ok {
		tx.TagIDs = ids
	}
	return &tx, nil
}

// ListTransactions returns the page selected by f, newest first. The filter
// is expected to be normalized and validated by the caller.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, f core.TransactionFilter) ([]core.TransactionListItem, error) {
	items, err := r.queryTransactionList(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}

	ids := make([]int64, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	tags, err := r.loadTagIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if t, ok := tags[items[i].ID]; ok {
			items[i].TagIDs = t
		}
	}
	return items, nil
}

func (r *SQLiteRepository) queryTransactionList(ctx context.Context, f core.TransactionFilter) ([]core.TransactionListItem, error) {
	var (
		where []string
		args  []any
	)
	if f.From != nil {
		where = append(where, "t.date >= ?")
		args = append(args, f.From.UnixMilli())
	}
	if f.To != nil {
		where = append(where, "t.date < ?")
		args = append(args, f.To.UnixMilli())
	}
	if f.AccountID != nil {
		where = append(where, "(t.account_id = ? OR t.to_account_id = ?)")
		args = append(args, *f.AccountID, *f.AccountID)
	}
	if f.TagID != nil {
		where = append(where, "EXISTS (SELECT 1 FROM transaction_tags tt WHERE tt.transaction_id = t.id AND tt.tag_id = ?)")
		args = append(args, *f.TagID)
	}
	if f.Search != "" {
		where = append(where, `t.description LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(f.Search)+"%")
	}

	query := `SELECT ` + transactionColumns + `, a.name, COALESCE(ta.name, '')
		FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		LEFT JOIN accounts ta ON ta.id = t.to_account_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY t.date DESC, t.id DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	items := []core.TransactionListItem{}
	for rows.Next() {
		var item core.TransactionListItem
		tx, err := scanTransaction(rows, &item.AccountName, &item.ToAccountName)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		item.Transaction = tx
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return items, nil
}

// loadTagIDs must run after any open result set is closed: the pool holds a
// single connection.
func (r *SQLiteRepository) loadTagIDs(ctx context.Context, txIDs []int64) (map[int64][]int64, error) {
	args := make([]any, len(txIDs))
	for i, id := range txIDs {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT transaction_id, tag_id FROM transaction_tags
		 WHERE transaction_id IN (`+placeholders(len(txIDs))+`)
		 ORDER BY transaction_id, tag_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("load transaction tags: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]int64, len(txIDs))
	for rows.Next() {
		var txID, tagID int64
		if err := rows.Scan(&txID, &tagID); err != nil {
			return nil, fmt.Errorf("scan transaction tag: %w", err)
		}
		out[txID] = append(out[txID], tagID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction tags: %w", err)
	}
	return out, nil
}

// ListDescriptions returns the distinct non-empty descriptions, sorted.
func (r *SQLiteRepository) ListDescriptions(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT description FROM transactions WHERE description <> '' ORDER BY description`)
	if err != nil {
		return nil, fmt.Errorf("list descriptions: %w", err)
	}
	defer rows.Close()

	descriptions := []string{}
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan description: %w", err)
		}
		descriptions = append(descriptions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate descriptions: %w", err)
	}
	return descriptions, nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	ids, err := r.CreateTransactions(ctx, []core.Transaction{t})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// CreateTransactions stores all of txs or none of them.
func (r *SQLiteRepository) CreateTransactions(ctx context.Context, txs []core.Transaction) ([]int64, error) {
	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer dbtx.Rollback()

	ids := make([]int64, 0, len(txs))
	for i, t := range txs {
		res, err := dbtx.ExecContext(ctx,
			`INSERT INTO transactions (date, amount, account_id, to_account_id, description) VALUES (?, ?, ?, ?, ?)`,
			t.Date.UnixMilli(), t.Amount, nullableID(t.AccountID), nullableID(t.ToAccountID), t.Description)
		if err != nil {
			return nil, fmt.Errorf("create transaction %d: %w", i, mapConstraintError(err))
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("create transaction %d: last insert id: %w", i, err)
		}
		if err := insertTransactionTags(ctx, dbtx, id, t.TagIDs); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := dbtx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transactions: %w", err)
	}

	slog.DebugContext(ctx, "Transactions saved to SQLite", "count", len(ids))
	return ids, nil
}

// UpdateTransaction replaces the record and its tag set.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, id int64, t core.Transaction) (*core.Transaction, error) {
	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer dbtx.Rollback()

	err = execAffecting(ctx, dbtx, "transaction", id,
		`UPDATE transactions
		 SET date = ?, amount = ?, account_id = ?, to_account_id = ?, description = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		t.Date.UnixMilli(), t.Amount, nullableID(t.AccountID), nullableID(t.ToAccountID), t.Description, id)
	if err != nil {
		return nil, fmt.Errorf("update transaction: %w", err)
	}
	if _, err := dbtx.ExecContext(ctx, `DELETE FROM transaction_tags WHERE transaction_id = ?`, id); err != nil {
		return nil, fmt.Errorf("clear transaction tags: %w", err)
	}
	if err := insertTransactionTags(ctx, dbtx, id, t.TagIDs); err != nil {
		return nil, err
	}

	if err := dbtx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction update: %w", err)
	}
	return r.GetTransaction(ctx, id)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) error {
	if err := execAffecting(ctx, r.db, "transaction", id, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

func insertTransactionTags(ctx context.Context, dbtx *sql.Tx, txID int64, tagIDs []int64) error {
	for _, tagID := range tagIDs {
		_, err := dbtx.ExecContext(ctx,
			`INSERT OR IGNORE INTO transaction_tags (transaction_id, tag_id) VALUES (?, ?)`, txID, tagID)
		if err != nil {
			return fmt.Errorf("link tag %d: %w", tagID, mapConstraintError(err))
		}
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
