package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bobmcallan/drip/internal/common"
	"github.com/bobmcallan/drip/internal/interfaces"
)

const fileExt = ".json"

// FileStore keeps each key in its own JSON file under basePath.
type FileStore struct {
	basePath string
	logger   *common.Logger
}

var _ interfaces.KVStore = (*FileStore)(nil)

// NewFileStore creates a new FileStore and ensures the base directory exists.
func NewFileStore(logger *common.Logger, basePath string) (*FileStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", basePath, err)
	}

	logger.Debug().Str("path", basePath).Msg("FileStore opened")
	return &FileStore{basePath: basePath, logger: logger}, nil
}

// sanitizeKey makes a key safe for use as a filename.
// Replaces /, \, : with _ and collapses ".." to "_" to prevent path traversal.
func (fs *FileStore) sanitizeKey(key string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_")
	return r.Replace(key)
}

// filePath returns the full path for a key.
func (fs *FileStore) filePath(key string) string {
	return filepath.Join(fs.basePath, fs.sanitizeKey(key)+fileExt)
}

func (fs *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	path := fs.filePath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("key '%s': %w", key, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// Set writes the value atomically: temp file in the same directory, then rename.
func (fs *FileStore) Set(_ context.Context, key string, value []byte) error {
	target := fs.filePath(key)

	tmpFile, err := os.CreateTemp(fs.basePath, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(value); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

func (fs *FileStore) Delete(_ context.Context, key string) error {
	if err := os.Remove(fs.filePath(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete key '%s': %w", key, err)
	}
	return nil
}

// Keys returns the sanitized names of all stored keys, sorted.
func (fs *FileStore) Keys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(fs.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", fs.basePath, err)
	}

	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".tmp-") || !strings.HasSuffix(name, fileExt) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, fileExt))
	}
	sort.Strings(keys)
	return keys, nil
}

// Close is a no-op for the file backend
func (fs *FileStore) Close() error {
	return nil
}
