// Package services orchestrates validation, persistence and versioning of
// transactions, accounts and tags.
package services

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"sfinapp/internal/cache"
	"sfinapp/internal/core"
	"sfinapp/internal/version"
)

type TransactionService struct {
	store    TransactionStore
	accounts AccountProvider
	versions versioner
	lists    cache.Cache[[]core.TransactionListItem]
	now      func() time.Time
}

// TransactionOption configures a TransactionService.
type TransactionOption func(*TransactionService)

// WithListCache caches list results keyed by version and filter.
func WithListCache(c cache.Cache[[]core.TransactionListItem]) TransactionOption {
	return func(s *TransactionService) { s.lists = c }
}

// WithTransactionPublisher announces every committed mutation.
func WithTransactionPublisher(p ChangePublisher) TransactionOption {
	return func(s *TransactionService) { s.versions.publisher = p }
}

// WithClock overrides the time source used by Skeleton.
func WithClock(now func() time.Time) TransactionOption {
	return func(s *TransactionService) { s.now = now }
}

func NewTransactionService(store TransactionStore, accounts AccountProvider, versions version.Store, opts ...TransactionOption) *TransactionService {
	s := &TransactionService{
		store:    store,
		accounts: accounts,
		versions: versioner{key: version.KeyTransaction, store: versions},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TransactionService) Get(ctx context.Context, id int64) (*core.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	core.Enrich(tx)
	return tx, nil
}

func (s *TransactionService) GetAll(ctx context.Context, f core.TransactionFilter) ([]core.TransactionListItem, error) {
	items, _, err := s.GetAllVersioned(ctx, f)
	return items, err
}

// GetAllVersioned also returns the version the result is valid for. The
// version is read before the list, so it never claims more than the data
// reflects.
func (s *TransactionService) GetAllVersioned(ctx context.Context, f core.TransactionFilter) ([]core.TransactionListItem, int64, error) {
	f.Normalize()
	if err := f.Validate(); err != nil {
		return nil, 0, err
	}

	v, err := s.versions.current(ctx)
	if err != nil {
		return nil, 0, err
	}

	key := strconv.FormatInt(v, 10) + "|" + f.CacheKey()
	if s.lists != nil {
		if items, ok := s.lists.Get(key); ok {
			return cloneItems(items), v, nil
		}
	}

	items, err := s.store.ListTransactions(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	for i := range items {
		core.Enrich(&items[i].Transaction)
	}

	if s.lists != nil {
		s.lists.Set(key, cloneItems(items))
	}
	return items, v, nil
}

func (s *TransactionService) GetAllDescriptions(ctx context.Context) ([]string, error) {
	return s.store.ListDescriptions(ctx)
}

// Skeleton returns a prefilled template for a new transaction.
func (s *TransactionService) Skeleton(ctx context.Context) (core.Transaction, error) {
	accounts, err := s.accounts.GetAll(ctx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("load accounts: %w", err)
	}
	return core.Skeleton(s.now().UTC(), accounts), nil
}

func (s *TransactionService) Create(ctx context.Context, tx core.Transaction) (int64, error) {
	if err := tx.Validate(); err != nil {
		return 0, err
	}
	prepareForWrite(&tx)

	id, err := s.store.CreateTransaction(ctx, tx)
	if err != nil {
		return 0, err
	}

	if _, err := s.versions.bump(ctx, OpCreate, id); err != nil {
		return id, err
	}
	return id, nil
}

// CreateBatch persists all of txs or none. Validation runs over the whole
// batch before anything is written.
func (s *TransactionService) CreateBatch(ctx context.Context, txs []core.Transaction) ([]int64, error) {
	if err := core.ValidateTransactions(txs); err != nil {
		return nil, err
	}

	batch := make([]core.Transaction, len(txs))
	for i, tx := range txs {
		prepareForWrite(&tx)
		batch[i] = tx
	}

	ids, err := s.store.CreateTransactions(ctx, batch)
	if err != nil {
		return nil, err
	}

	if _, err := s.versions.bump(ctx, OpCreate, ids...); err != nil {
		return ids, err
	}
	return ids, nil
}

// Update replaces the transaction and returns the stored record.
func (s *TransactionService) Update(ctx context.Context, id int64, tx core.Transaction) (*core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	prepareForWrite(&tx)

	updated, err := s.store.UpdateTransaction(ctx, id, tx)
	if err != nil {
		return nil, err
	}
	core.Enrich(updated)

	if _, err := s.versions.bump(ctx, OpUpdate, id); err != nil {
		return updated, err
	}
	return updated, nil
}

func (s *TransactionService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return err
	}

	_, err := s.versions.bump(ctx, OpDelete, id)
	return err
}

func (s *TransactionService) Version(ctx context.Context) (int64, error) {
	return s.versions.current(ctx)
}

func prepareForWrite(tx *core.Transaction) {
	core.CorrectAmountSign(tx)
	if tx.TagIDs == nil {
		tx.TagIDs = []int64{}
	}
}

// cloneItems copies the tag sets and account ids too, so callers never share
// memory with the cached copy.
func cloneItems(items []core.TransactionListItem) []core.TransactionListItem {
	out := make([]core.TransactionListItem, len(items))
	for i, item := range items {
		item.TagIDs = slices.Clone(item.TagIDs)
		item.AccountID = cloneID(item.AccountID)
		item.ToAccountID = cloneID(item.ToAccountID)
		out[i] = item
	}
	return out
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
