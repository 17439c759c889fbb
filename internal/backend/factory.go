package backend

import (
	"context"
	"fmt"
	"log/slog"

	"sfinapp/internal/amqp"
	"sfinapp/internal/storage"
	"sfinapp/internal/version"
)

type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend opens the SQLite repository, the configured version store
// and, when enabled, the AMQP publisher. On error everything opened so far
// is closed again.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (_ *Backend, err error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	b := &Backend{}
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	b.Repository = repo
	b.onClose(repo.Close)

	b.Versions, err = f.createVersionStore(config, repo, b)
	if err != nil {
		return nil, err
	}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without change notifications", "error", err)
		} else {
			b.Publisher = client
			b.onClose(client.Close)
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	f.logger.InfoContext(ctx, "Initialized backend",
		"db_path", config.SQLiteDBPath,
		"version_backend", config.Versions,
		"amqp_enabled", b.Publisher != nil)
	return b, nil
}

func (f *DefaultFactory) createVersionStore(config Config, repo *storage.SQLiteRepository, b *Backend) (version.Store, error) {
	switch config.Versions {
	case MemoryVersions:
		return version.NewMemoryStore(), nil

	case SQLiteVersions:
		return repo.Versions(), nil

	case BoltVersions:
		db, err := version.OpenBolt(config.BoltDBPath)
		if err != nil {
			return nil, err
		}
		b.onClose(db.Close)
		store, err := version.NewBoltStore(db)
		if err != nil {
			return nil, err
		}
		f.logger.Info("Using bolt version store", "path", config.BoltDBPath)
		return store, nil

	case RedisVersions:
		client, err := version.NewRedisClient(config.RedisAddr, config.RedisPassword, config.RedisDB)
		if err != nil {
			return nil, err
		}
		b.onClose(client.Close)
		f.logger.Info("Using redis version store", "addr", config.RedisAddr, "db", config.RedisDB)
		return version.NewRedisStore(client, config.RedisKeyPrefix), nil

	default:
		return nil, fmt.Errorf("unsupported version backend: %s", config.Versions)
	}
}
