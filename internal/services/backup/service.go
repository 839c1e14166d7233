// Package backup exports and imports full portfolio snapshots as JSON documents.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bobmcallan/drip/internal/common"
	"github.com/bobmcallan/drip/internal/models"
	"github.com/bobmcallan/drip/internal/storage"
)

// Backup errors
var (
	ErrImportInProgress = errors.New("import already in progress")
	ErrInvalidImport    = errors.New("invalid import")
)

// Import messages
const (
	MsgImported       = "Data imported successfully"
	MsgNoFile         = "No file selected"
	MsgNotJSON        = "Selected file is not a JSON file"
	MsgParseFailed    = "Failed to parse imported data"
	MsgReadFailed     = "Error reading file"
	MsgInvalidFormat  = "Import failed: Invalid data format"
	MsgHoldingsArray  = "Import failed: Holdings must be an array"
	MsgDividendsArray = "Import failed: Dividends must be an array"
	MsgScenariosObj   = "Import failed: Scenarios must be an object"
	MsgInProgress     = "Import already in progress"
	jsonContentType   = "application/json"
	fileNamePrefix    = "drip-portfolio-backup-"
)

// ImportFile is a named document to import. ContentType may be empty, in
// which case it is derived from the file extension.
type ImportFile struct {
	Name        string
	ContentType string
	Reader      io.Reader
}

// OpenImportFile opens a file on disk for Import. The caller closes it.
func OpenImportFile(path string) (*ImportFile, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &ImportFile{Name: filepath.Base(path), Reader: f}, f, nil
}

// ImportResult reports the outcome of Import
type ImportResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Holdings  int    `json:"holdings"`
	Dividends int    `json:"dividends"`
}

// Service produces export documents and applies imports
type Service struct {
	gw          *storage.Gateway
	logger      *common.Logger
	now         func() time.Time
	afterImport func(ctx context.Context)

	mu    sync.Mutex
	state models.DataState
}

// Option configures a Service
type Option func(*Service)

// WithClock sets the time source for export dates and backup timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithAfterImport registers a hook run after a successful import, e.g. to
// reload in-memory state
func WithAfterImport(fn func(ctx context.Context)) Option {
	return func(s *Service) { s.afterImport = fn }
}

// NewService creates a backup service
func NewService(gw *storage.Gateway, logger *common.Logger, opts ...Option) *Service {
	s := &Service{gw: gw, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FileName returns the export file name for the given day
func FileName(t time.Time) string {
	return fileNamePrefix + t.Format(models.DateFormat) + ".json"
}

// Export builds a snapshot of the stored state and records the backup time
func (s *Service) Export(ctx context.Context) (models.ExportDocument, error) {
	s.setExporting(true)
	defer s.setExporting(false)

	now := s.now().UTC()
	doc := models.ExportDocument{
		Holdings:        storage.Load(ctx, s.gw, storage.KeyHoldings, []models.Holding{}),
		Dividends:       storage.Load(ctx, s.gw, storage.KeyDividends, []models.Dividend{}),
		Scenarios:       storage.Load(ctx, s.gw, storage.KeyScenarios, models.DefaultScenarios()),
		CurrentScenario: storage.Load(ctx, s.gw, storage.KeyCurrentScenario, models.DefaultScenarioName),
		ExportDate:      now,
		Version:         common.SchemaVersion,
	}

	if err := s.gw.Save(ctx, storage.KeyLastBackup, now); err != nil {
		s.setMessage(fmt.Sprintf("Export failed: %v", err), models.MessageError)
		return doc, err
	}

	s.logger.Info().
		Int("holdings", len(doc.Holdings)).
		Int("dividends", len(doc.Dividends)).
		Msg("Portfolio exported")
	return doc, nil
}

// WriteExport exports to dir and returns the written path
func (s *Service) WriteExport(ctx context.Context, dir string) (string, error) {
	doc, err := s.Export(ctx)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal export: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, FileName(doc.ExportDate))
	if err := os.WriteFile(path, data, 0644); err != nil {
		s.setMessage(fmt.Sprintf("Export failed: %v", err), models.MessageError)
		return "", fmt.Errorf("failed to write export: %w", err)
	}

	s.setMessage("Portfolio data exported to "+path, models.MessageSuccess)
	return path, nil
}

// Import validates a document and overwrites holdings, dividends and
// scenarios with its contents, plus the current scenario when present.
// Nothing is written unless the whole document validates, and a failed
// write puts the previous values back. A second call
// while one is running fails with ErrImportInProgress.
func (s *Service) Import(ctx context.Context, file *ImportFile) (ImportResult, error) {
	s.mu.Lock()
	if s.state.IsImporting {
		s.mu.Unlock()
		s.logger.Warn().Msg("Import rejected, another import is running")
		return ImportResult{Message: MsgInProgress}, ErrImportInProgress
	}
	s.state.IsImporting = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state.IsImporting = false
		s.mu.Unlock()
	}()

	res, err := s.doImport(ctx, file)
	if err != nil {
		s.logger.Warn().Err(err).Str("message", res.Message).Msg("Import failed")
		s.setMessage(res.Message, models.MessageError)
		return res, err
	}

	s.logger.Info().Int("holdings", res.Holdings).Int("dividends", res.Dividends).Msg("Portfolio imported")
	s.setMessage(res.Message, models.MessageSuccess)
	if s.afterImport != nil {
		s.afterImport(ctx)
	}
	return res, nil
}

func reject(msg string) (ImportResult, error) {
	return ImportResult{Message: msg}, fmt.Errorf("%w: %s", ErrInvalidImport, msg)
}

func (s *Service) doImport(ctx context.Context, file *ImportFile) (ImportResult, error) {
	if file == nil || file.Reader == nil {
		return reject(MsgNoFile)
	}
	if !isJSON(file) {
		return reject(MsgNotJSON)
	}

	body, err := io.ReadAll(file.Reader)
	if err != nil {
		return ImportResult{Message: MsgReadFailed}, fmt.Errorf("failed to read %s: %w", file.Name, err)
	}

	doc, msg, ok := parseDocument(body)
	if !ok {
		return reject(msg)
	}

	if err := ctx.Err(); err != nil {
		return ImportResult{Message: "Import cancelled"}, err
	}

	snap, err := s.snapshot(ctx)
	if err != nil {
		return ImportResult{Message: "Import failed: " + err.Error()}, err
	}

	writes := []keyWrite{
		{storage.KeyHoldings, doc.Holdings},
		{storage.KeyDividends, doc.Dividends},
		{storage.KeyScenarios, doc.Scenarios},
	}
	if doc.CurrentScenario != "" {
		writes = append(writes, keyWrite{storage.KeyCurrentScenario, doc.CurrentScenario})
	}

	for _, w := range writes {
		if err := s.gw.Save(ctx, w.key, w.value); err != nil {
			if restoreErr := s.restore(ctx, snap); restoreErr != nil {
				s.logger.Error().Err(restoreErr).Msg("Failed to restore data after import failure")
				err = fmt.Errorf("%w (restore: %v)", err, restoreErr)
			}
			return ImportResult{Message: "Import failed: " + err.Error()}, err
		}
	}

	return ImportResult{
		Success:   true,
		Message:   MsgImported,
		Holdings:  len(doc.Holdings),
		Dividends: len(doc.Dividends),
	}, nil
}

// importKeys are the keys an import may overwrite
var importKeys = []string{
	storage.KeyHoldings,
	storage.KeyDividends,
	storage.KeyScenarios,
	storage.KeyCurrentScenario,
}

type keyWrite struct {
	key   string
	value any
}

// snapshot holds the stored bytes of each import key. A nil entry marks an
// absent key.
type snapshot map[string][]byte

func (s *Service) snapshot(ctx context.Context) (snapshot, error) {
	snap := make(snapshot, len(importKeys))
	for _, key := range importKeys {
		data, err := s.gw.LoadRaw(ctx, key)
		switch {
		case err == nil:
			snap[key] = data
		case errors.Is(err, storage.ErrNotFound):
			snap[key] = nil
		default:
			return nil, fmt.Errorf("failed to read '%s' before import: %w", key, err)
		}
	}
	return snap, nil
}

// restore puts back every key recorded in snap. All keys are cleared first
// so a quota-limited store never holds more than it did before the import.
func (s *Service) restore(ctx context.Context, snap snapshot) error {
	var errs []error
	for _, key := range importKeys {
		if err := s.gw.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	for _, key := range importKeys {
		if data := snap[key]; data != nil {
			if err := s.gw.SaveRaw(ctx, key, data); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	s.logger.Info().Msg("Stored data restored after failed import")
	return nil
}

// isJSON checks the declared content type, falling back to the extension
func isJSON(file *ImportFile) bool {
	ct := file.ContentType
	if ct == "" {
		ct = mime.TypeByExtension(filepath.Ext(file.Name))
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mediaType == jsonContentType
}

// parseDocument validates the raw document shape before decoding it.
// The returned message explains a rejection.
func parseDocument(body []byte) (models.ExportDocument, string, bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return models.ExportDocument{}, MsgParseFailed, false
	}
	if raw == nil {
		return models.ExportDocument{}, MsgInvalidFormat, false
	}

	for _, prop := range []string{"holdings", "dividends", "scenarios"} {
		if isEmptyValue(raw[prop]) {
			return models.ExportDocument{}, "Import failed: Missing required data: " + prop, false
		}
	}
	if firstByte(raw["holdings"]) != '[' {
		return models.ExportDocument{}, MsgHoldingsArray, false
	}
	if firstByte(raw["dividends"]) != '[' {
		return models.ExportDocument{}, MsgDividendsArray, false
	}
	if firstByte(raw["scenarios"]) != '{' {
		return models.ExportDocument{}, MsgScenariosObj, false
	}

	doc := models.ExportDocument{Scenarios: models.DefaultScenarios()}
	if err := json.Unmarshal(raw["holdings"], &doc.Holdings); err != nil {
		return doc, MsgParseFailed, false
	}
	if err := json.Unmarshal(raw["dividends"], &doc.Dividends); err != nil {
		return doc, MsgParseFailed, false
	}
	if err := json.Unmarshal(raw["scenarios"], &doc.Scenarios); err != nil {
		return doc, MsgParseFailed, false
	}

	if cs, ok := raw["currentScenario"]; ok && !isEmptyValue(cs) {
		var name string
		if err := json.Unmarshal(cs, &name); err == nil {
			if parsed, err := models.ParseScenarioName(name); err == nil {
				doc.CurrentScenario = parsed
			}
		}
	}
	return doc, "", true
}

// isEmptyValue matches the values a document may use for "not provided"
func isEmptyValue(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", "false", "0", `""`:
		return true
	}
	return false
}

func firstByte(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

// --- Data management state ---

// State returns the current data management state, including the last
// backup time read from storage.
func (s *Service) State(ctx context.Context) models.DataState {
	last := s.LastBackup(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.state
	state.LastBackupDate = last
	if last == nil {
		state.BackupDue = true
	} else {
		state.BackupDue = !common.IsFresh(*last, s.now(), common.FreshnessBackup)
	}
	return state
}

// LastBackup returns when the last export happened, or nil
func (s *Service) LastBackup(ctx context.Context) *time.Time {
	t := storage.Load(ctx, s.gw, storage.KeyLastBackup, time.Time{})
	if t.IsZero() {
		return nil
	}
	return &t
}

// ClearMessage resets the message after it has been shown
func (s *Service) ClearMessage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Message = ""
	s.state.MessageType = ""
}

func (s *Service) setMessage(msg string, typ models.MessageType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Message = msg
	s.state.MessageType = typ
}

func (s *Service) setExporting(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.IsExporting = v
}
