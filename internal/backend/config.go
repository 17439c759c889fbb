package backend

import (
	"errors"
	"fmt"

	"sfinapp/internal/config"
)

type Config struct {
	Versions VersionBackend

	SQLiteDBPath string
	BoltDBPath   string

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string

	// An empty AMQPURL disables publishing.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	versions := VersionBackend(appConfig.VersionBackend)
	if !versions.IsValid() {
		return Config{}, fmt.Errorf("invalid version backend in config: %s", appConfig.VersionBackend)
	}

	return Config{
		Versions:       versions,
		SQLiteDBPath:   appConfig.SQLiteDBPath,
		BoltDBPath:     appConfig.BoltDBPath,
		RedisAddr:      appConfig.RedisAddr,
		RedisPassword:  appConfig.RedisPassword,
		RedisDB:        appConfig.RedisDB,
		RedisKeyPrefix: appConfig.RedisKeyPrefix,
		AMQPURL:        appConfig.AMQPURL,
		AMQPExchange:   appConfig.AMQPExchange,
		AMQPQueue:      appConfig.AMQPQueue,
	}, nil
}

func (c Config) Validate() error {
	if !c.Versions.IsValid() {
		return fmt.Errorf("invalid version backend: %s", c.Versions)
	}
	if c.SQLiteDBPath == "" {
		return errors.New("SQLite database path is required")
	}

	switch c.Versions {
	case BoltVersions:
		if c.BoltDBPath == "" {
			return errors.New("bolt database path is required for bolt version backend")
		}
	case RedisVersions:
		if c.RedisAddr == "" {
			return errors.New("Redis address is required for redis version backend")
		}
	}

	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		return errors.New("AMQP exchange and queue are required when AMQP URL is set")
	}
	return nil
}
