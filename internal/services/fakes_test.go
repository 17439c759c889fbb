package services

import (
	"context"
	"errors"
	"sync"

	"sfinapp/internal/core"
)

var errStore = errors.New("store unavailable")

type fakeTransactionStore struct {
	mu        sync.Mutex
	nextID    int64
	records   map[int64]core.Transaction
	listCalls int
	fail      error
}

func newFakeTransactionStore() *fakeTransactionStore {
	return &fakeTransactionStore{records: make(map[int64]core.Transaction)}
}

func (f *fakeTransactionStore) GetTransaction(_ context.Context, id int64) (*core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.records[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &tx, nil
}

func (f *fakeTransactionStore) ListTransactions(_ context.Context, _ core.TransactionFilter) ([]core.TransactionListItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.fail != nil {
		return nil, f.fail
	}
	items := []core.TransactionListItem{}
	for _, tx := range f.records {
		items = append(items, core.TransactionListItem{Transaction: tx})
	}
	return items, nil
}

func (f *fakeTransactionStore) ListDescriptions(context.Context) ([]string, error) {
	return []string{"a", "b"}, nil
}

func (f *fakeTransactionStore) CreateTransaction(ctx context.Context, tx core.Transaction) (int64, error) {
	ids, err := f.CreateTransactions(ctx, []core.Transaction{tx})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

func (f *fakeTransactionStore) CreateTransactions(_ context.Context, txs []core.Transaction) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	ids := make([]int64, 0, len(txs))
	for _, tx := range txs {
		f.nextID++
		tx.ID = f.nextID
		tx.Type = ""
		f.records[tx.ID] = tx
		ids = append(ids, tx.ID)
	}
	return ids, nil
}

func (f *fakeTransactionStore) UpdateTransaction(_ context.Context, id int64, tx core.Transaction) (*core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	if _, ok := f.records[id]; !ok {
		return nil, core.ErrNotFound
	}
	tx.ID = id
	tx.Type = ""
	f.records[id] = tx
	return &tx, nil
}

func (f *fakeTransactionStore) DeleteTransaction(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	if _, ok := f.records[id]; !ok {
		return core.ErrNotFound
	}
	delete(f.records, id)
	return nil
}

type fakeAccountStore struct {
	accounts []core.Account
	fail     error
}

func (f *fakeAccountStore) ListAccounts(context.Context) ([]core.Account, error) {
	return f.accounts, f.fail
}

func (f *fakeAccountStore) GetAccount(_ context.Context, id int64) (*core.Account, error) {
	for _, a := range f.accounts {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeAccountStore) CreateAccount(_ context.Context, a core.Account) (int64, error) {
	if f.fail != nil {
		return 0, f.fail
	}
	a.ID = int64(len(f.accounts) + 1)
	f.accounts = append(f.accounts, a)
	return a.ID, nil
}

func (f *fakeAccountStore) UpdateAccount(_ context.Context, id int64, a core.Account) (*core.Account, error) {
	for i := range f.accounts {
		if f.accounts[i].ID == id {
			a.ID = id
			f.accounts[i] = a
			return &a, nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeAccountStore) DeleteAccount(context.Context, int64) error {
	return f.fail
}

type fakeTagStore struct {
	fail error
}

func (f *fakeTagStore) ListTags(context.Context) ([]core.Tag, error) { return []core.Tag{}, nil }

func (f *fakeTagStore) CreateTag(context.Context, core.Tag) (int64, error) {
	if f.fail != nil {
		return 0, f.fail
	}
	return 1, nil
}

func (f *fakeTagStore) UpdateTag(_ context.Context, id int64, t core.Tag) (*core.Tag, error) {
	t.ID = id
	return &t, f.fail
}

func (f *fakeTagStore) DeleteTag(context.Context, int64) error { return f.fail }

type publishedChange struct {
	resource, operation string
	version             int64
	ids                 []int64
}

type recordingPublisher struct {
	mu      sync.Mutex
	changes []publishedChange
	fail    error
}

func (p *recordingPublisher) PublishChange(_ context.Context, resource, operation string, version int64, ids []int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, publishedChange{resource, operation, version, ids})
	return p.fail
}

// failingVersions fails every increment.
type failingVersions struct{}

func (failingVersions) Get(context.Context, string) (int64, error) { return 0, nil }
func (failingVersions) Increment(context.Context, string) (int64, error) {
	return 0, errors.New("counter unavailable")
}
