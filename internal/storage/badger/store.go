// Package badger provides a BadgerHold-backed key-value store.
package badger

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/bobmcallan/drip/internal/common"
	"github.com/bobmcallan/drip/internal/interfaces"
	"github.com/timshannon/badgerhold/v4"
)

// KVEntry represents a key-value pair stored in BadgerDB.
type KVEntry struct {
	Key   string `badgerhold:"key"`
	Value []byte
}

// Store wraps a BadgerHold database connection.
type Store struct {
	db     *badgerhold.Store
	logger *common.Logger
}

var _ interfaces.KVStore = (*Store)(nil)

// NewStore creates a new BadgerHold store at the given directory path.
func NewStore(logger *common.Logger, path string) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create badger directory %s: %w", path, err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil // Disable default badger logger

	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Debug().Str("path", path).Msg("BadgerHold store opened")

	return &Store{
		db:     db,
		logger: logger,
	}, nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	var entry KVEntry
	err := s.db.Get(key, &entry)
	if err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("key '%s': %w", key, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get key '%s': %w", key, err)
	}
	return entry.Value, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	entry := KVEntry{Key: key, Value: value}
	if err := s.db.Upsert(key, &entry); err != nil {
		return fmt.Errorf("failed to set key '%s': %w", key, err)
	}
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	err := s.db.Delete(key, KVEntry{})
	if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("failed to delete key '%s': %w", key, err)
	}
	return nil
}

func (s *Store) Keys(_ context.Context) ([]string, error) {
	var entries []KVEntry
	if err := s.db.Find(&entries, nil); err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		keys = append(keys, entry.Key)
	}
	return keys, nil
}

// Close closes the BadgerHold database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
