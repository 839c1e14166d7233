package storage

import (
	"fmt"
	"path/filepath"

	"github.com/bobmcallan/drip/internal/common"
	"github.com/bobmcallan/drip/internal/interfaces"
	"github.com/bobmcallan/drip/internal/storage/badger"
	"github.com/bobmcallan/drip/internal/storage/sqlite"
)

// NewKVStore opens the backend named in the config, wrapped with the
// configured quota. Supported backends: "file" (default), "badger", "sqlite".
func NewKVStore(logger *common.Logger, config *common.Config) (interfaces.KVStore, error) {
	backend := config.Storage.Backend
	if backend == "" {
		backend = common.BackendFile
	}

	var (
		store interfaces.KVStore
		err   error
	)
	switch backend {
	case common.BackendFile:
		store, err = NewFileStore(logger, config.Storage.Path)
	case common.BackendBadger:
		store, err = badger.NewStore(logger, filepath.Join(config.Storage.Path, "badger"))
	case common.BackendSQLite:
		store, err = sqlite.NewStore(logger, config.SQLitePath())
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: file, badger, sqlite)", backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", backend, err)
	}

	logger.Info().
		Str("backend", backend).
		Str("path", config.Storage.Path).
		Int64("quota_bytes", config.Storage.QuotaBytes).
		Msg("Storage initialized")

	return WithQuota(store, config.Storage.QuotaBytes), nil
}
