package services

import (
	"context"
	"strings"

	"sfinapp/internal/core"
	"sfinapp/internal/version"
)

type TagService struct {
	store    TagStore
	versions versioner

	// transactions is bumped when a tag delete rewrites transaction tag sets.
	transactions versioner
}

func NewTagService(store TagStore, versions version.Store, publisher ChangePublisher) *TagService {
	return &TagService{
		store:        store,
		versions:     versioner{key: version.KeyTag, store: versions, publisher: publisher},
		transactions: versioner{key: version.KeyTransaction, store: versions},
	}
}

func (s *TagService) GetAll(ctx context.Context) ([]core.Tag, error) {
	return s.store.ListTags(ctx)
}

// Create fails with core.ErrConflict when the name is taken.
func (s *TagService) Create(ctx context.Context, t core.Tag) (int64, error) {
	t.Name = strings.TrimSpace(t.Name)
	if err := t.Validate(); err != nil {
		return 0, err
	}
	id, err := s.store.CreateTag(ctx, t)
	if err != nil {
		return 0, err
	}
	_, err = s.versions.bump(ctx, OpCreate, id)
	return id, err
}

func (s *TagService) Update(ctx context.Context, id int64, t core.Tag) (*core.Tag, error) {
	t.Name = strings.TrimSpace(t.Name)
	if err := t.Validate(); err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateTag(ctx, id, t)
	if err != nil {
		return nil, err
	}
	_, err = s.versions.bump(ctx, OpUpdate, id)
	return updated, err
}

// Delete also removes the tag from every transaction carrying it, so the
// transaction version moves as well.
func (s *TagService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteTag(ctx, id); err != nil {
		return err
	}
	if _, err := s.versions.bump(ctx, OpDelete, id); err != nil {
		return err
	}
	_, err := s.transactions.bump(ctx, OpUpdate)
	return err
}

func (s *TagService) Version(ctx context.Context) (int64, error) {
	return s.versions.current(ctx)
}
