package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sfinapp/internal/version"
)

// VersionStore keeps resource counters in the versions table so they survive
// restarts alongside the data they describe.
type VersionStore struct {
	db *sql.DB
}

var _ version.Store = (*VersionStore)(nil)

// Versions returns a version.Store backed by the repository's database.
func (r *SQLiteRepository) Versions() *VersionStore {
	return &VersionStore{db: r.db}
}

func (s *VersionStore) Get(ctx context.Context, key string) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, `SELECT version FROM versions WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get version %q: %w", key, err)
	}
	return v, nil
}

// Increment is a single UPSERT statement, so concurrent callers never read
// the same previous value.
func (s *VersionStore) Increment(ctx context.Context, key string) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO versions (key, version) VALUES (?, 1)
		 ON CONFLICT(key) DO UPDATE SET version = version + 1
		 RETURNING version`, key).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("increment version %q: %w", key, err)
	}
	return v, nil
}
