package services

import (
	"context"

	"sfinapp/internal/core"
)

// Change operations carried by published notifications.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

type TransactionStore interface {
	GetTransaction(ctx context.Context, id int64) (*core.Transaction, error)
	ListTransactions(ctx context.Context, f core.TransactionFilter) ([]core.TransactionListItem, error)
	ListDescriptions(ctx context.Context) ([]string, error)
	CreateTransaction(ctx context.Context, tx core.Transaction) (int64, error)
	CreateTransactions(ctx context.Context, txs []core.Transaction) ([]int64, error)
	UpdateTransaction(ctx context.Context, id int64, tx core.Transaction) (*core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error
}

type AccountStore interface {
	ListAccounts(ctx context.Context) ([]core.Account, error)
	GetAccount(ctx context.Context, id int64) (*core.Account, error)
	CreateAccount(ctx context.Context, a core.Account) (int64, error)
	UpdateAccount(ctx context.Context, id int64, a core.Account) (*core.Account, error)
	DeleteAccount(ctx context.Context, id int64) error
}

type TagStore interface {
	ListTags(ctx context.Context) ([]core.Tag, error)
	CreateTag(ctx context.Context, t core.Tag) (int64, error)
	UpdateTag(ctx context.Context, id int64, t core.Tag) (*core.Tag, error)
	DeleteTag(ctx context.Context, id int64) error
}

// AccountProvider supplies the accounts used to prefill a new transaction.
type AccountProvider interface {
	GetAll(ctx context.Context) ([]core.Account, error)
}

// ChangePublisher announces a committed mutation. Implementations must be
// safe for concurrent use.
type ChangePublisher interface {
	PublishChange(ctx context.Context, resource, operation string, version int64, ids []int64) error
}
