// Package backend assembles the storage, version store and change publisher
// selected by configuration.
package backend

import (
	"context"
	"errors"

	"sfinapp/internal/amqp"
	"sfinapp/internal/services"
	"sfinapp/internal/storage"
	"sfinapp/internal/version"
)

// CleanupFunc releases a resource opened by the factory.
type CleanupFunc func() error

// Backend holds the opened collaborators. Publisher is nil when change
// notifications are disabled or the broker was unreachable at startup.
type Backend struct {
	Repository *storage.SQLiteRepository
	Versions   version.Store
	Publisher  *amqp.Client

	cleanups []CleanupFunc
}

// ChangePublisher returns the publisher as the services see it, or a nil
// interface when there is none.
func (b *Backend) ChangePublisher() services.ChangePublisher {
	if b.Publisher == nil {
		return nil
	}
	return b.Publisher
}

// Close releases resources in reverse order of opening.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.cleanups) - 1; i >= 0; i-- {
		if err := b.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.cleanups = nil
	return errors.Join(errs...)
}

func (b *Backend) onClose(fn CleanupFunc) {
	b.cleanups = append(b.cleanups, fn)
}

// Factory creates backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Backend, error)
}

// VersionBackend names a version.Store implementation.
type VersionBackend string

const (
	MemoryVersions VersionBackend = "memory"
	SQLiteVersions VersionBackend = "sqlite"
	BoltVersions   VersionBackend = "bolt"
	RedisVersions  VersionBackend = "redis"
)

func (vb VersionBackend) String() string {
	return string(vb)
}

func (vb VersionBackend) IsValid() bool {
	switch vb {
	case MemoryVersions, SQLiteVersions, BoltVersions, RedisVersions:
		return true
	default:
		return false
	}
}
