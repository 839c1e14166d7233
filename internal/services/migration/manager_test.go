package migration

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bobmcallan/drip/internal/common"
	"github.com/bobmcallan/drip/internal/interfaces"
	"github.com/bobmcallan/drip/internal/models"
	"github.com/bobmcallan/drip/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test helpers ---

// faultyStore counts writes and fails operations on selected keys
type faultyStore struct {
	interfaces.KVStore

	mu          sync.Mutex
	writes      int
	failSet     map[string]bool
	failDelete  bool
	failDeletes int
}

var errInjected = errors.New("injected failure")

func (f *faultyStore) Set(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	fail := f.failSet[key]
	f.writes++
	f.mu.Unlock()
	if fail {
		return errInjected
	}
	return f.KVStore.Set(ctx, key, value)
}

func (f *faultyStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	f.writes++
	fail := f.failDelete
	if fail {
		f.failDeletes++
	}
	f.mu.Unlock()
	if fail {
		return errInjected
	}
	return f.KVStore.Delete(ctx, key)
}

func (f *faultyStore) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func newTestGateway(t *testing.T) (*storage.Gateway, *faultyStore) {
	t.Helper()
	fs, err := storage.NewFileStore(common.NewSilentLogger(), t.TempDir())
	require.NoError(t, err)
	faulty := &faultyStore{KVStore: fs, failSet: map[string]bool{}}
	return storage.NewGateway(faulty, common.NewSilentLogger()), faulty
}

func fixedClock() time.Time {
	return time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
}

func newTestManager(gw *storage.Gateway, opts ...Option) *Manager {
	opts = append([]Option{WithClock(fixedClock)}, opts...)
	return NewManager(gw, common.NewSilentLogger(), opts...)
}

func seedLegacy(t *testing.T, gw *storage.Gateway) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, gw.Save(ctx, storage.LegacyKeyHoldings, models.SampleHoldings()))
	require.NoError(t, gw.Save(ctx, storage.LegacyKeyDividends, models.SampleDividends()))
	require.NoError(t, gw.Save(ctx, storage.LegacyKeyScenarios, models.DefaultScenarios()))
	require.NoError(t, gw.SaveRaw(ctx, storage.LegacyKeyCurrentScenario, []byte("bullish")))
}

// --- Tests ---

func TestRun_FreshStoreIsCurrentWithoutWrites(t *testing.T) {
	gw, faulty := newTestGateway(t)

	res, err := newTestManager(gw).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCurrent, res.State)
	assert.Equal(t, MsgNoMigration, res.Message)
	assert.True(t, res.Success())
	assert.Equal(t, 0, faulty.Writes())
}

func TestRun_LegacyDataMigrates(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway(t)
	seedLegacy(t, gw)

	res, err := newTestManager(gw).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, "0.0.0", res.From)
	assert.Equal(t, common.SchemaVersion, res.To)
	assert.Equal(t, "Successfully migrated data from v0.0.0 to v1.0.0", res.Message)
	assert.Equal(t, []State{StateNeedsMigration, StateBackingUp, StateMigrating, StateDone}, res.Transitions)
	assert.Equal(t, []string{"1.0.0"}, res.Applied)
	assert.NotEmpty(t, res.BackupID)

	assert.Equal(t, models.SampleHoldings(), storage.Load(ctx, gw, storage.KeyHoldings, []models.Holding{}))
	assert.Equal(t, models.SampleDividends(), storage.Load(ctx, gw, storage.KeyDividends, []models.Dividend{}))
	assert.Equal(t, models.ScenarioBullish, storage.Load(ctx, gw, storage.KeyCurrentScenario, models.ScenarioNeutral))
	assert.Equal(t, common.SchemaVersion, storage.Load(ctx, gw, storage.KeyAppVersion, ""))

	record := storage.Load(ctx, gw, storage.KeyPreMigrationBackup, models.BackupRecord{})
	assert.Equal(t, res.BackupID, record.ID)
	assert.Equal(t, models.BackupTypePreMigration, record.BackupType)
	assert.Equal(t, "0.0.0", record.Version)
	assert.False(t, record.HadVersion)
	assert.True(t, record.Timestamp.Equal(fixedClock()))
}

func TestRun_IdempotentAfterMigration(t *testing.T) {
	ctx := context.Background()
	gw, faulty := newTestGateway(t)
	seedLegacy(t, gw)

	_, err := newTestManager(gw).Run(ctx)
	require.NoError(t, err)

	before := faulty.Writes()
	res, err := newTestManager(gw).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateCurrent, res.State)
	assert.Equal(t, before, faulty.Writes(), "second run must not write")
}

func TestRun_BareStringMarker(t *testing.T) {
	ctx := context.Background()
	gw, faulty := newTestGateway(t)
	require.NoError(t, gw.Store().Set(ctx, storage.KeyAppVersion, []byte("1.0.0")))
	writes := faulty.Writes()

	res, err := newTestManager(gw).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateCurrent, res.State)
	assert.Equal(t, writes, faulty.Writes())
}

func TestRun_BackupFailureAborts(t *testing.T) {
	ctx := context.Background()
	gw, faulty := newTestGateway(t)
	seedLegacy(t, gw)
	faulty.failSet[storage.KeyPreMigrationBackup] = true

	res, err := newTestManager(gw).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackupFailed)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, MsgBackupFailed, res.Message)
	assert.False(t, res.Success())

	ok, _ := gw.Has(ctx, storage.KeyHoldings)
	assert.False(t, ok, "no migration may run without a backup")
	ok, _ = gw.Has(ctx, storage.KeyAppVersion)
	assert.False(t, ok)
}

func TestRun_StepFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway(t)

	existing := []models.Holding{{ID: 7, Ticker: "JEPI", Name: "JEPI", Shares: 10}}
	require.NoError(t, gw.Save(ctx, storage.KeyHoldings, existing))
	require.NoError(t, gw.SaveRaw(ctx, storage.KeyScenarios, []byte(`{broken`)))
	require.NoError(t, gw.Save(ctx, storage.LegacyKeyHoldings, models.SampleHoldings()))
	require.NoError(t, gw.SaveRaw(ctx, storage.LegacyKeyDividends, []byte(`not json`)))

	res, err := newTestManager(gw).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMigrationRecovered)
	assert.Equal(t, MsgRecovered, res.Message)
	assert.Equal(t, []State{StateNeedsMigration, StateBackingUp, StateMigrating, StateRollingBack, StateFailed}, res.Transitions)

	// holdings were overwritten by the step, then restored
	assert.Equal(t, existing, storage.Load(ctx, gw, storage.KeyHoldings, []models.Holding{}))

	// unparseable value restored verbatim
	raw, err := gw.LoadRaw(ctx, storage.KeyScenarios)
	require.NoError(t, err)
	assert.Equal(t, `{broken`, string(raw))

	// absent before the run, absent after
	for _, key := range []string{storage.KeyDividends, storage.KeyCurrentScenario, storage.KeyAppVersion} {
		ok, _ := gw.Has(ctx, key)
		assert.False(t, ok, key)
	}
}

func TestRun_RollbackKeepsUnparseableMarker(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway(t)
	require.NoError(t, gw.SaveRaw(ctx, storage.KeyAppVersion, []byte("garbage")))
	require.NoError(t, gw.Save(ctx, storage.KeyHoldings, models.SampleHoldings()))

	failing := Step{
		Version: "1.0.0",
		Apply: func(ctx context.Context, gw *storage.Gateway) error {
			if err := gw.Save(ctx, storage.KeyAppVersion, "0.9.0"); err != nil {
				return err
			}
			return errors.New("boom")
		},
	}

	res, err := newTestManager(gw, WithSteps(failing)).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMigrationRecovered)
	assert.Equal(t, "0.0.0", res.From)

	raw, err := gw.LoadRaw(ctx, storage.KeyAppVersion)
	require.NoError(t, err)
	assert.Equal(t, "garbage", string(raw))

	record := storage.Load(ctx, gw, storage.KeyPreMigrationBackup, models.BackupRecord{})
	assert.True(t, record.HadVersion)
	assert.Equal(t, "0.0.0", record.Version)
	assert.Equal(t, "garbage", record.RawVersion)
}

func TestRun_RestoreFailureIsUnrecoverable(t *testing.T) {
	ctx := context.Background()
	gw, faulty := newTestGateway(t)
	seedLegacy(t, gw)

	failing := Step{
		Version:     "1.0.0",
		Description: "always fails",
		Apply: func(ctx context.Context, gw *storage.Gateway) error {
			return errors.New("boom")
		},
	}
	// every current key is absent, so restore has to delete and the delete fails
	faulty.failDelete = true

	res, err := newTestManager(gw, WithSteps(failing)).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMigrationUnrecoverable)
	assert.False(t, errors.Is(err, ErrMigrationRecovered))
	assert.Equal(t, MsgUnrecoverable, res.Message)
	assert.Equal(t, StateFailed, res.State)
}

func TestRun_NewerSchemaRejected(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway(t)
	require.NoError(t, gw.Save(ctx, storage.KeyAppVersion, "2.1.0"))

	res, err := newTestManager(gw).Run(ctx)
	assert.ErrorIs(t, err, ErrSchemaTooNew)
	assert.Equal(t, StateFailed, res.State)
}

func TestRun_StepsAppliedInVersionOrder(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway(t)
	require.NoError(t, gw.Save(ctx, storage.KeyAppVersion, "1.0.0"))

	var order []string
	step := func(v string) Step {
		return Step{Version: v, Apply: func(context.Context, *storage.Gateway) error {
			order = append(order, v)
			return nil
		}}
	}

	res, err := newTestManager(gw,
		WithTargetVersion("1.2.0"),
		WithSteps(step("1.2.0"), step("1.3.0"), step("1.0.0"), step("1.1.0")),
	).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"1.1.0", "1.2.0"}, order)
	assert.Equal(t, order, res.Applied)
	assert.Equal(t, "1.2.0", storage.Load(ctx, gw, storage.KeyAppVersion, ""))

	record := storage.Load(ctx, gw, storage.KeyPreMigrationBackup, models.BackupRecord{})
	assert.True(t, record.HadVersion)
	assert.Equal(t, "1.0.0", record.Version)
	assert.Equal(t, `"1.0.0"`, record.RawVersion)
}

func TestRun_ResultJSON(t *testing.T) {
	gw, _ := newTestGateway(t)
	res, err := newTestManager(gw).Run(context.Background())
	require.NoError(t, err)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"state":"current"`)
}
