package version

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var versionsBucketName = []byte("versions")

// BoltStore keeps counters in a bbolt bucket. Each increment runs in its own
// write transaction, which bbolt serializes.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the database file at path.
func OpenBolt(path string) (*bolt.DB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}
	return db, nil
}

func NewBoltStore(db *bolt.DB) (*BoltStore, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(versionsBucketName)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create versions bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(_ context.Context, key string) (int64, error) {
	var v int64
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(versionsBucketName).Get([]byte(key))
		if raw != nil {
			v = btoi(raw)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("get version %s: %w", key, err)
	}
	return v, nil
}

func (s *BoltStore) Increment(_ context.Context, key string) (int64, error) {
	var v int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(versionsBucketName)
		if raw := bucket.Get([]byte(key)); raw != nil {
			v = btoi(raw)
		}
		v++
		return bucket.Put([]byte(key), itob(v))
	})
	if err != nil {
		return 0, fmt.Errorf("increment version %s: %w", key, err)
	}
	return v, nil
}

func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func btoi(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}
