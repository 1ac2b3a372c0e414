package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v3"

	"github.com/himanishpuri/SonicMatch/pkg/models"
)

const storePrefix = "features/"

// Entry is what the persistent store keeps per file.
type Entry struct {
	Bundle   *models.FeatureBundle `json:"bundle"`
	Analysis *models.AudioAnalysis `json:"analysis,omitempty"`
}

// Store is a badger-backed map from file digest to extraction result.
type Store struct {
	db *badger.DB
}

// OpenStore opens or creates a store in dir.
func OpenStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("opening feature cache: %w", err)
	}
	return &Store{db: db}, nil
}

// Get returns the entry for key. A missing key is not an error. An entry
// whose bundle no longer validates is treated as missing.
func (s *Store) Get(key string) (*Entry, bool, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(storePrefix + key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading feature cache: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil || e.Bundle.Validate() != nil {
		return nil, false, nil
	}
	return &e, true, nil
}

// Put stores e under key.
func (s *Store) Put(key string, e *Entry) error {
	if err := e.Bundle.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(storePrefix+key), raw)
	})
}

// Delete removes key.
func (s *Store) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(storePrefix + key))
	})
}

// Len counts stored entries.
func (s *Store) Len() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(storePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
