package medium

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.etcd.io/bbolt"
)

// bucketKV is the single bucket holding all owner-scoped keys.
var bucketKV = []byte("kv")

// BoltMedium is a bbolt-backed Medium. All values live in one bucket;
// key prefixes partition the space per concern and owner.
type BoltMedium struct {
	db *bbolt.DB
}

// OpenBolt opens (or creates) the bolt file at path and ensures the
// bucket exists.
func OpenBolt(path string) (*BoltMedium, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create medium directory: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bolt medium: %w", err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketKV)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize bucket: %w", err)
	}

	return &BoltMedium{db: db}, nil
}

// Close closes the underlying database file.
func (m *BoltMedium) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}

// Path returns the location of the database file.
func (m *BoltMedium) Path() string {
	return m.db.Path()
}

// ReadKey returns the stored value for key.
func (m *BoltMedium) ReadKey(key string) (string, bool) {
	var value string
	found := false

	err := m.db.View(func(tx *bbolt.Tx) error {
		if data := tx.Bucket(bucketKV).Get([]byte(key)); data != nil {
			value = string(data)
			found = true
		}
		return nil
	})
	if err != nil {
		slog.Warn("medium read failed", "key", key, "error", err)
		return "", false
	}

	return value, found
}

// WriteKey stores value under key.
func (m *BoltMedium) WriteKey(key, value string) bool {
	err := m.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketKV).Put([]byte(key), []byte(value))
	})
	if err != nil {
		slog.Warn("medium write failed", "key", key, "error", err)
		return false
	}
	return true
}

// DeleteKey removes key.
func (m *BoltMedium) DeleteKey(key string) bool {
	err := m.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketKV).Delete([]byte(key))
	})
	if err != nil {
		slog.Warn("medium delete failed", "key", key, "error", err)
		return false
	}
	return true
}

// Keys returns all keys with the given prefix in lexicographic order.
func (m *BoltMedium) Keys(prefix string) []string {
	var keys []string

	err := m.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketKV).ForEach(func(k, _ []byte) error {
			if strings.HasPrefix(string(k), prefix) {
				keys = append(keys, string(k))
			}
			return nil
		})
	})
	if err != nil {
		slog.Warn("medium scan failed", "prefix", prefix, "error", err)
		return nil
	}

	return keys
}

// Snapshot writes a consistent copy of the database file to destPath.
// Used by the backup uploader.
func (m *BoltMedium) Snapshot(destPath string) error {
	if dir := filepath.Dir(destPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot directory: %w", err)
		}
	}

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	defer f.Close()

	err = m.db.View(func(tx *bbolt.Tx) error {
		_, err := tx.WriteTo(f)
		return err
	})
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	return f.Sync()
}
