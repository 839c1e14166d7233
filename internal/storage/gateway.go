// Package storage provides typed persistence over pluggable key-value backends.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bobmcallan/drip/internal/common"
	"github.com/bobmcallan/drip/internal/interfaces"
)

// Re-exported so callers outside the storage tree need a single import
var (
	ErrNotFound      = interfaces.ErrNotFound
	ErrQuotaExceeded = interfaces.ErrQuotaExceeded
)

// SaveError reports a failed write of a key
type SaveError struct {
	Key string
	Err error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("failed to save '%s': %v", e.Key, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// Gateway serializes typed records to JSON on top of a KVStore.
type Gateway struct {
	kv     interfaces.KVStore
	logger *common.Logger
}

// NewGateway creates a Gateway over kv
func NewGateway(kv interfaces.KVStore, logger *common.Logger) *Gateway {
	return &Gateway{kv: kv, logger: logger}
}

// Store returns the underlying key-value store
func (g *Gateway) Store() interfaces.KVStore {
	return g.kv
}

// Save marshals value and stores it under key. Any failure is a *SaveError.
func (g *Gateway) Save(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return &SaveError{Key: key, Err: fmt.Errorf("failed to marshal: %w", err)}
	}
	return g.SaveRaw(ctx, key, data)
}

// SaveRaw stores already encoded JSON under key
func (g *Gateway) SaveRaw(ctx context.Context, key string, data []byte) error {
	if err := g.kv.Set(ctx, key, data); err != nil {
		g.logger.Error().Err(err).Str("key", key).Int("bytes", len(data)).Msg("Failed to save")
		return &SaveError{Key: key, Err: err}
	}
	g.logger.Debug().Str("key", key).Int("bytes", len(data)).Msg("Saved")
	return nil
}

// LoadRaw returns the stored bytes of key, or ErrNotFound
func (g *Gateway) LoadRaw(ctx context.Context, key string) ([]byte, error) {
	return g.kv.Get(ctx, key)
}

// Has reports whether key is present
func (g *Gateway) Has(ctx context.Context, key string) (bool, error) {
	_, err := g.kv.Get(ctx, key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

// Delete removes key. Deleting an absent key succeeds.
func (g *Gateway) Delete(ctx context.Context, key string) error {
	if err := g.kv.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete '%s': %w", key, err)
	}
	return nil
}

// Load returns the value stored under key, or def when the key is absent,
// unreadable or holds JSON that does not decode into T.
func Load[T any](ctx context.Context, g *Gateway, key string, def T) T {
	data, err := g.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			g.logger.Warn().Err(err).Str("key", key).Msg("Failed to read, using default")
		}
		return def
	}

	if string(data) == "null" {
		return def
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		g.logger.Warn().Err(err).Str("key", key).Msg("Stored data is corrupt, using default")
		return def
	}
	return value
}
