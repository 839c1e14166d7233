// Package migration upgrades stored data to the current schema version with
// a pre-migration backup and automatic rollback.
package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/mod/semver"

	"github.com/bobmcallan/drip/internal/common"
	"github.com/bobmcallan/drip/internal/models"
	"github.com/bobmcallan/drip/internal/storage"
)

// State is a stage of a migration run
type State string

const (
	StateCurrent        State = "current"
	StateNeedsMigration State = "needs_migration"
	StateBackingUp      State = "backing_up"
	StateMigrating      State = "migrating"
	StateRollingBack    State = "rolling_back"
	StateFailed         State = "failed"
	StateDone           State = "done"
)

// Migration failures
var (
	ErrBackupFailed           = errors.New("pre-migration backup failed")
	ErrMigrationRecovered     = errors.New("migration failed, data restored from backup")
	ErrMigrationUnrecoverable = errors.New("migration failed and restore failed")
	ErrSchemaTooNew           = errors.New("stored schema is newer than this build")
)

// Result messages
const (
	MsgNoMigration   = "No migration needed"
	MsgBackupFailed  = "Failed to create backup before migration, aborting for safety"
	MsgRecovered     = "Migration failed, but data was restored from backup"
	MsgUnrecoverable = "Migration failed and backup restoration also failed. Data may be in an inconsistent state."
)

// noVersion is assumed for data written before the version marker existed
const noVersion = "0.0.0"

// Step rewrites stored data into the layout of Version
type Step struct {
	Version     string
	Description string
	Apply       func(ctx context.Context, gw *storage.Gateway) error
}

// Result describes a completed run
type Result struct {
	State       State    `json:"state"`
	From        string   `json:"from"`
	To          string   `json:"to"`
	Message     string   `json:"message"`
	BackupID    string   `json:"backupId,omitempty"`
	Applied     []string `json:"applied,omitempty"`
	Transitions []State  `json:"transitions"`
}

// Success reports whether stored data is now at the target version
func (r Result) Success() bool {
	return r.State == StateCurrent || r.State == StateDone
}

// Manager runs the migration state machine against a gateway
type Manager struct {
	gw     *storage.Gateway
	logger *common.Logger
	target string
	steps  []Step
	now    func() time.Time
	newID  func() string
}

// Option configures a Manager
type Option func(*Manager)

// WithSteps replaces the registered steps
func WithSteps(steps ...Step) Option {
	return func(m *Manager) { m.steps = steps }
}

// WithTargetVersion overrides the schema version to migrate to
func WithTargetVersion(v string) Option {
	return func(m *Manager) { m.target = v }
}

// WithClock sets the time source used for backup timestamps
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager targeting common.SchemaVersion with the built-in steps
func NewManager(gw *storage.Gateway, logger *common.Logger, opts ...Option) *Manager {
	m := &Manager{
		gw:     gw,
		logger: logger,
		target: common.SchemaVersion,
		steps:  DefaultSteps(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// run tracks the transitions of a single Run call
type run struct {
	m      *Manager
	result Result
}

func (r *run) enter(s State, msg string) {
	r.m.logger.Info().
		Str("from_state", string(r.current())).
		Str("to_state", string(s)).
		Str("stored", r.result.From).
		Str("target", r.result.To).
		Msg(msg)
	r.result.State = s
	r.result.Transitions = append(r.result.Transitions, s)
}

func (r *run) current() State {
	if len(r.result.Transitions) == 0 {
		return ""
	}
	return r.result.Transitions[len(r.result.Transitions)-1]
}

// Run brings stored data to the target version. A nil error means the
// result state is Current or Done.
func (m *Manager) Run(ctx context.Context) (Result, error) {
	r := &run{m: m, result: Result{To: m.target}}

	stored, hadVersion, err := m.storedVersion(ctx)
	if err != nil {
		r.result.Message = err.Error()
		r.enter(StateFailed, "Failed to read schema version")
		return r.result, fmt.Errorf("failed to read schema version: %w", err)
	}
	r.result.From = stored

	if hadVersion && stored == m.target {
		r.result.Message = MsgNoMigration
		r.enter(StateCurrent, "Schema version matches, no migration needed")
		return r.result, nil
	}

	if !hadVersion {
		legacy, err := m.hasLegacyData(ctx)
		if err != nil {
			r.result.Message = err.Error()
			r.enter(StateFailed, "Failed to probe legacy keys")
			return r.result, fmt.Errorf("failed to probe legacy keys: %w", err)
		}
		if !legacy {
			r.result.From = ""
			r.result.Message = MsgNoMigration
			r.enter(StateCurrent, "No schema version and no legacy data, nothing to migrate")
			return r.result, nil
		}
		stored = noVersion
		r.result.From = stored
	}

	if compareVersions(stored, m.target) > 0 {
		r.result.Message = fmt.Sprintf("Stored data is at v%s, newer than v%s", stored, m.target)
		r.enter(StateFailed, "Stored schema is newer than this build")
		return r.result, fmt.Errorf("%w: v%s > v%s", ErrSchemaTooNew, stored, m.target)
	}

	r.enter(StateNeedsMigration, "Schema version mismatch, migration required")

	r.enter(StateBackingUp, "Creating pre-migration backup")
	record, err := m.backup(ctx, stored, hadVersion)
	if err != nil {
		m.logger.Error().Err(err).Msg("Pre-migration backup failed")
		r.result.Message = MsgBackupFailed
		r.enter(StateFailed, "Aborting migration, no data was changed")
		return r.result, fmt.Errorf("%w: %v", ErrBackupFailed, err)
	}
	r.result.BackupID = record.ID

	r.enter(StateMigrating, "Applying migration steps")
	if stepErr := m.apply(ctx, r, stored); stepErr != nil {
		m.logger.Error().Err(stepErr).Msg("Migration step failed")
		r.enter(StateRollingBack, "Restoring pre-migration backup")

		if restoreErr := m.restore(ctx); restoreErr != nil {
			m.logger.Error().Err(restoreErr).Msg("Backup restoration failed")
			r.result.Message = MsgUnrecoverable
			r.enter(StateFailed, "Migration failed and data may be inconsistent")
			return r.result, fmt.Errorf("%w: %v (restore: %v)", ErrMigrationUnrecoverable, stepErr, restoreErr)
		}

		r.result.Message = MsgRecovered
		r.enter(StateFailed, "Migration failed, data restored from backup")
		return r.result, fmt.Errorf("%w: %v", ErrMigrationRecovered, stepErr)
	}

	r.result.Message = fmt.Sprintf("Successfully migrated data from v%s to v%s", stored, m.target)
	r.enter(StateDone, "Migration complete")
	return r.result, nil
}

// apply runs the pending steps in version order and then writes the marker
func (m *Manager) apply(ctx context.Context, r *run, stored string) error {
	steps := make([]Step, len(m.steps))
	copy(steps, m.steps)
	sort.SliceStable(steps, func(i, j int) bool {
		return compareVersions(steps[i].Version, steps[j].Version) < 0
	})

	for _, step := range steps {
		if compareVersions(step.Version, stored) <= 0 || compareVersions(step.Version, m.target) > 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		m.logger.Info().Str("version", step.Version).Str("description", step.Description).Msg("Applying migration step")
		if err := step.Apply(ctx, m.gw); err != nil {
			return fmt.Errorf("step v%s: %w", step.Version, err)
		}
		r.result.Applied = append(r.result.Applied, step.Version)
	}

	if err := m.gw.Save(ctx, storage.KeyAppVersion, m.target); err != nil {
		return fmt.Errorf("failed to store schema version: %w", err)
	}
	return nil
}

// storedVersion returns the persisted marker. Markers written as a bare
// string rather than JSON are accepted.
func (m *Manager) storedVersion(ctx context.Context) (string, bool, error) {
	raw, err := m.gw.LoadRaw(ctx, storage.KeyAppVersion)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}

	v := decodeString(raw)
	if !semver.IsValid(canonical(v)) {
		m.logger.Warn().Str("stored", v).Msg("Unparseable schema version, treating as unversioned")
		return noVersion, true, nil
	}
	return v, true, nil
}

func (m *Manager) hasLegacyData(ctx context.Context) (bool, error) {
	for _, key := range storage.LegacyKeys() {
		ok, err := m.gw.Has(ctx, key)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// backup snapshots the current keys and the marker into one record
func (m *Manager) backup(ctx context.Context, stored string, hadVersion bool) (models.BackupRecord, error) {
	record := models.BackupRecord{
		ID:         m.newID(),
		Timestamp:  m.now().UTC(),
		BackupType: models.BackupTypePreMigration,
		Version:    stored,
		HadVersion: hadVersion,
	}

	if hadVersion {
		raw, err := m.gw.LoadRaw(ctx, storage.KeyAppVersion)
		if err != nil {
			return record, fmt.Errorf("failed to read %s: %w", storage.KeyAppVersion, err)
		}
		record.RawVersion = string(raw)
	}

	fields := []struct {
		key  string
		dest *json.RawMessage
	}{
		{storage.KeyHoldings, &record.Holdings},
		{storage.KeyDividends, &record.Dividends},
		{storage.KeyScenarios, &record.Scenarios},
		{storage.KeyCurrentScenario, &record.CurrentScenario},
	}
	for _, f := range fields {
		raw, err := m.gw.LoadRaw(ctx, f.key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return record, fmt.Errorf("failed to read %s: %w", f.key, err)
		}
		if !json.Valid(raw) {
			if record.Unparsed == nil {
				record.Unparsed = make(map[string]string)
			}
			record.Unparsed[f.key] = string(raw)
			continue
		}
		*f.dest = json.RawMessage(raw)
	}

	if err := m.gw.Save(ctx, storage.KeyPreMigrationBackup, record); err != nil {
		return record, err
	}

	m.logger.Info().Str("backup_id", record.ID).Str("version", stored).Msg("Pre-migration backup written")
	return record, nil
}

// restore reads the backup record back from storage and rewrites every
// captured key. Keys that were absent at backup time are deleted.
func (m *Manager) restore(ctx context.Context) error {
	raw, err := m.gw.LoadRaw(ctx, storage.KeyPreMigrationBackup)
	if err != nil {
		return fmt.Errorf("failed to read backup: %w", err)
	}
	var record models.BackupRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return fmt.Errorf("failed to parse backup: %w", err)
	}

	fields := []struct {
		key   string
		value json.RawMessage
	}{
		{storage.KeyHoldings, record.Holdings},
		{storage.KeyDividends, record.Dividends},
		{storage.KeyScenarios, record.Scenarios},
		{storage.KeyCurrentScenario, record.CurrentScenario},
	}
	for _, f := range fields {
		if opaque, ok := record.Unparsed[f.key]; ok {
			if err := m.gw.SaveRaw(ctx, f.key, []byte(opaque)); err != nil {
				return err
			}
			continue
		}
		if len(f.value) == 0 {
			if err := m.gw.Delete(ctx, f.key); err != nil {
				return err
			}
			continue
		}
		if err := m.gw.SaveRaw(ctx, f.key, f.value); err != nil {
			return err
		}
	}

	switch {
	case record.RawVersion != "":
		return m.gw.SaveRaw(ctx, storage.KeyAppVersion, []byte(record.RawVersion))
	case record.HadVersion:
		return m.gw.Save(ctx, storage.KeyAppVersion, record.Version)
	}
	return m.gw.Delete(ctx, storage.KeyAppVersion)
}

// decodeString accepts both a JSON string and a bare value
func decodeString(raw []byte) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}

func canonical(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

// compareVersions orders dotted versions; invalid versions sort first
func compareVersions(a, b string) int {
	return semver.Compare(canonical(a), canonical(b))
}
