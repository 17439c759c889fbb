package services

import (
	"context"
	"strings"

	"sfinapp/internal/core"
	"sfinapp/internal/version"
)

type AccountService struct {
	store    AccountStore
	versions versioner

	// transactions is bumped on rename: list rows carry account names.
	transactions versioner
}

var _ AccountProvider = (*AccountService)(nil)

// NewAccountService accepts a nil publisher.
func NewAccountService(store AccountStore, versions version.Store, publisher ChangePublisher) *AccountService {
	return &AccountService{
		store:        store,
		versions:     versioner{key: version.KeyAccount, store: versions, publisher: publisher},
		transactions: versioner{key: version.KeyTransaction, store: versions},
	}
}

// GetAll returns accounts ordered by id.
func (s *AccountService) GetAll(ctx context.Context) ([]core.Account, error) {
	return s.store.ListAccounts(ctx)
}

func (s *AccountService) Get(ctx context.Context, id int64) (*core.Account, error) {
	return s.store.GetAccount(ctx, id)
}

func (s *AccountService) Create(ctx context.Context, a core.Account) (int64, error) {
	a = cleanAccount(a)
	if err := a.Validate(); err != nil {
		return 0, err
	}
	id, err := s.store.CreateAccount(ctx, a)
	if err != nil {
		return 0, err
	}
	_, err = s.versions.bump(ctx, OpCreate, id)
	return id, err
}

func (s *AccountService) Update(ctx context.Context, id int64, a core.Account) (*core.Account, error) {
	a = cleanAccount(a)
	if err := a.Validate(); err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateAccount(ctx, id, a)
	if err != nil {
		return nil, err
	}
	if _, err := s.versions.bump(ctx, OpUpdate, id); err != nil {
		return updated, err
	}
	_, err = s.transactions.bump(ctx, OpUpdate)
	return updated, err
}

// Delete fails with core.ErrConflict while transactions reference the account.
func (s *AccountService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteAccount(ctx, id); err != nil {
		return err
	}
	_, err := s.versions.bump(ctx, OpDelete, id)
	return err
}

func (s *AccountService) Version(ctx context.Context) (int64, error) {
	return s.versions.current(ctx)
}

func cleanAccount(a core.Account) core.Account {
	a.Name = strings.TrimSpace(a.Name)
	a.Description = strings.TrimSpace(a.Description)
	return a
}
