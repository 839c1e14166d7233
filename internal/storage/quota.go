package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bobmcallan/drip/internal/interfaces"
)

// QuotaStore rejects writes that would push the total stored bytes over a limit.
type QuotaStore struct {
	interfaces.KVStore
	maxBytes int64

	mu     sync.Mutex
	sizes  map[string]int64
	used   int64
	loaded bool
}

// WithQuota wraps store with a byte quota. A non-positive limit returns store unchanged.
func WithQuota(store interfaces.KVStore, maxBytes int64) interfaces.KVStore {
	if maxBytes <= 0 {
		return store
	}
	return &QuotaStore{KVStore: store, maxBytes: maxBytes}
}

// load measures what is already stored on first use
func (q *QuotaStore) load(ctx context.Context) error {
	if q.loaded {
		return nil
	}
	keys, err := q.KVStore.Keys(ctx)
	if err != nil {
		return err
	}
	q.sizes = make(map[string]int64, len(keys))
	q.used = 0
	for _, key := range keys {
		data, err := q.KVStore.Get(ctx, key)
		if err != nil {
			if errors.Is(err, interfaces.ErrNotFound) {
				continue
			}
			return err
		}
		q.sizes[key] = int64(len(data))
		q.used += int64(len(data))
	}
	q.loaded = true
	return nil
}

func (q *QuotaStore) Set(ctx context.Context, key string, value []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.load(ctx); err != nil {
		return fmt.Errorf("failed to measure storage usage: %w", err)
	}

	next := q.used - q.sizes[key] + int64(len(value))
	if next > q.maxBytes {
		return fmt.Errorf("writing %d bytes to '%s' needs %d of %d bytes: %w",
			len(value), key, next, q.maxBytes, interfaces.ErrQuotaExceeded)
	}

	if err := q.KVStore.Set(ctx, key, value); err != nil {
		return err
	}
	q.used = next
	q.sizes[key] = int64(len(value))
	return nil
}

func (q *QuotaStore) Delete(ctx context.Context, key string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.KVStore.Delete(ctx, key); err != nil {
		return err
	}
	if q.loaded {
		q.used -= q.sizes[key]
		delete(q.sizes, key)
	}
	return nil
}

// Used returns the number of bytes currently accounted against the quota
func (q *QuotaStore) Used(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.load(ctx); err != nil {
		return 0, err
	}
	return q.used, nil
}
