package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bobmcallan/drip/internal/common"
	"github.com/bobmcallan/drip/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test helpers ---

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	fs, err := NewFileStore(common.NewSilentLogger(), t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	return fs
}

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	return NewGateway(newTestFileStore(t), common.NewSilentLogger())
}

// --- FileStore tests ---

func TestFileStore_BaseDirectoryCreation(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "path")
	if _, err := NewFileStore(common.NewSilentLogger(), dir); err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("expected base directory to exist: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("expected base path to be a directory")
	}
}

func TestFileStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	fs := newTestFileStore(t)

	_, err := fs.Get(ctx, KeyHoldings)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, fs.Set(ctx, KeyHoldings, []byte(`[]`)))
	got, err := fs.Get(ctx, KeyHoldings)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))

	require.NoError(t, fs.Delete(ctx, KeyHoldings))
	require.NoError(t, fs.Delete(ctx, KeyHoldings))
	_, err = fs.Get(ctx, KeyHoldings)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_NoTempFilesLeft(t *testing.T) {
	ctx := context.Background()
	fs := newTestFileStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, fs.Set(ctx, KeyDividends, []byte(`[{"id":1}]`)))
	}

	entries, err := os.ReadDir(fs.basePath)
	require.NoError(t, err)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestFileStore_SanitizeKey(t *testing.T) {
	fs := newTestFileStore(t)
	tests := []struct {
		in, want string
	}{
		{"drip_holdings", "drip_holdings"},
		{"../etc/passwd", "__etc_passwd"},
		{"a:b\\c", "a_b_c"},
	}
	for _, tt := range tests {
		if got := fs.sanitizeKey(tt.in); got != tt.want {
			t.Errorf("sanitizeKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFileStore_Keys(t *testing.T) {
	ctx := context.Background()
	fs := newTestFileStore(t)

	require.NoError(t, fs.Set(ctx, KeyScenarios, []byte(`{}`)))
	require.NoError(t, fs.Set(ctx, KeyAppVersion, []byte(`"1.0.0"`)))
	require.NoError(t, os.WriteFile(filepath.Join(fs.basePath, "notes.txt"), []byte("x"), 0644))

	keys, err := fs.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{KeyAppVersion, KeyScenarios}, keys)
}

// --- Gateway tests ---

func TestGateway_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)

	holdings := models.SampleHoldings()
	require.NoError(t, gw.Save(ctx, KeyHoldings, holdings))

	got := Load(ctx, gw, KeyHoldings, []models.Holding{})
	assert.Equal(t, holdings, got)
}

func TestGateway_LoadAbsentReturnsDefault(t *testing.T) {
	gw := newTestGateway(t)
	got := Load(context.Background(), gw, KeyScenarios, models.DefaultScenarios())
	assert.Equal(t, models.DefaultScenarios(), got)
}

func TestGateway_LoadCorruptReturnsDefault(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)

	require.NoError(t, gw.SaveRaw(ctx, KeyDividends, []byte(`{not json`)))
	got := Load(ctx, gw, KeyDividends, []models.Dividend{})
	assert.NotNil(t, got)
	assert.Empty(t, got)

	require.NoError(t, gw.SaveRaw(ctx, KeyScenarios, []byte(`null`)))
	assert.Equal(t, models.DefaultScenarios(), Load(ctx, gw, KeyScenarios, models.DefaultScenarios()))
}

func TestGateway_Has(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)

	ok, err := gw.Has(ctx, KeyAppVersion)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, gw.Save(ctx, KeyAppVersion, "1.0.0"))
	ok, err = gw.Has(ctx, KeyAppVersion)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, gw.Delete(ctx, KeyAppVersion))
	ok, _ = gw.Has(ctx, KeyAppVersion)
	assert.False(t, ok)
}

func TestGateway_SaveUnmarshalableValue(t *testing.T) {
	gw := newTestGateway(t)
	err := gw.Save(context.Background(), KeyHoldings, make(chan int))

	var saveErr *SaveError
	require.True(t, errors.As(err, &saveErr))
	assert.Equal(t, KeyHoldings, saveErr.Key)
}

// --- Quota tests ---

func TestQuota_RejectsOversizedWrite(t *testing.T) {
	ctx := context.Background()
	store := WithQuota(newTestFileStore(t), 16)
	gw := NewGateway(store, common.NewSilentLogger())

	require.NoError(t, gw.SaveRaw(ctx, "small", []byte("0123456789")))

	err := gw.SaveRaw(ctx, "big", []byte("0123456789"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	var saveErr *SaveError
	require.True(t, errors.As(err, &saveErr))
	assert.Equal(t, "big", saveErr.Key)

	_, err = store.Get(ctx, "big")
	assert.ErrorIs(t, err, ErrNotFound, "rejected write must not be stored")
}

func TestQuota_OverwriteCountsOnce(t *testing.T) {
	ctx := context.Background()
	store := WithQuota(newTestFileStore(t), 12)

	require.NoError(t, store.Set(ctx, "k", []byte("0123456789")))
	require.NoError(t, store.Set(ctx, "k", []byte("abcdefghij")))

	qs := store.(*QuotaStore)
	used, err := qs.Used(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), used)

	require.NoError(t, store.Delete(ctx, "k"))
	used, _ = qs.Used(ctx)
	assert.Equal(t, int64(0), used)
}

func TestQuota_MeasuresExistingData(t *testing.T) {
	ctx := context.Background()
	fs := newTestFileStore(t)
	require.NoError(t, fs.Set(ctx, "existing", []byte("0123456789")))

	store := WithQuota(fs, 15)
	err := store.Set(ctx, "new", []byte("012345"))
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestWithQuota_DisabledReturnsStore(t *testing.T) {
	fs := newTestFileStore(t)
	assert.Same(t, fs, WithQuota(fs, 0))
}

// --- Factory tests ---

func TestNewKVStore_Backends(t *testing.T) {
	ctx := context.Background()
	for _, backend := range []string{common.BackendFile, common.BackendBadger, common.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			cfg := common.NewDefaultConfig()
			cfg.Storage.Backend = backend
			cfg.Storage.Path = t.TempDir()

			store, err := NewKVStore(common.NewSilentLogger(), cfg)
			require.NoError(t, err)
			defer store.Close()

			require.NoError(t, store.Set(ctx, KeyCurrentScenario, []byte(`"neutral"`)))
			got, err := store.Get(ctx, KeyCurrentScenario)
			require.NoError(t, err)
			assert.Equal(t, `"neutral"`, string(got))
		})
	}
}

func TestNewKVStore_UnknownBackend(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Storage.Backend = "surreal"
	cfg.Storage.Path = t.TempDir()

	_, err := NewKVStore(common.NewSilentLogger(), cfg)
	assert.Error(t, err)
}

func TestNewKVStore_WrapsQuota(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Storage.Path = t.TempDir()
	cfg.Storage.QuotaBytes = 1024

	store, err := NewKVStore(common.NewSilentLogger(), cfg)
	require.NoError(t, err)
	_, ok := store.(*QuotaStore)
	assert.True(t, ok)
}
