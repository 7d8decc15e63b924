package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/amirasaad/fxdate/pkg/preferences"
	"github.com/dgraph-io/badger/v3"
)

const badgerKeyPrefix = "pref:"

// BadgerStore keeps preferences in an embedded BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a database in dir. An empty dir opens an
// in-memory database.
func OpenBadger(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStore wraps an already open database.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func (s *BadgerStore) GetInt(_ context.Context, key string, def int) (int, error) {
	if key == "" {
		return 0, preferences.ErrEmptyKey
	}
	var v int
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerKeyPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return def, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read preference %s: %w", key, err)
	}
	return v, nil
}

func (s *BadgerStore) SetInt(_ context.Context, key string, value int) error {
	if key == "" {
		return preferences.ErrEmptyKey
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal preference: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerKeyPrefix+key), data)
	})
	if err != nil {
		return fmt.Errorf("failed to store preference %s: %w", key, err)
	}
	return nil
}

// Close releases the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

var _ preferences.Store = (*BadgerStore)(nil)
