// Package interfaces defines service contracts for drip
package interfaces

import (
	"context"
	"errors"
)

// Storage errors shared by every backend
var (
	ErrNotFound      = errors.New("key not found")
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// KVStore is a durable local key-value store. Values are opaque bytes;
// typed access goes through storage.Gateway.
type KVStore interface {
	// Get returns ErrNotFound when the key is absent
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete of an absent key is not an error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}
