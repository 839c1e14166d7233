package models

import (
	"encoding/json"
	"time"
)

// ExportDocument is the full-state snapshot written by export and read by import
type ExportDocument struct {
	Holdings        []Holding    `json:"holdings"`
	Dividends       []Dividend   `json:"dividends"`
	Scenarios       Scenarios    `json:"scenarios"`
	CurrentScenario ScenarioName `json:"currentScenario"`
	ExportDate      time.Time    `json:"exportDate"`
	Version         string       `json:"version"`
}

// BackupTypePreMigration tags snapshots taken before a schema migration
const BackupTypePreMigration = "pre-migration"

// BackupRecord is a raw snapshot of the persisted keys. Absent keys are
// kept as nil so restore can delete them again. Values that are not valid
// JSON are kept verbatim in Unparsed, keyed by storage key. RawVersion is
// the marker exactly as stored, which may not be a valid version.
type BackupRecord struct {
	ID              string            `json:"id"`
	Timestamp       time.Time         `json:"timestamp"`
	BackupType      string            `json:"backupType"`
	Version         string            `json:"version"`
	HadVersion      bool              `json:"hadVersion"`
	RawVersion      string            `json:"rawVersion,omitempty"`
	Holdings        json.RawMessage   `json:"holdings,omitempty"`
	Dividends       json.RawMessage   `json:"dividends,omitempty"`
	Scenarios       json.RawMessage   `json:"scenarios,omitempty"`
	CurrentScenario json.RawMessage   `json:"currentScenario,omitempty"`
	Unparsed        map[string]string `json:"unparsed,omitempty"`
}

// MessageType classifies a data management message
type MessageType string

const (
	MessageSuccess MessageType = "success"
	MessageError   MessageType = "error"
	MessageInfo    MessageType = "info"
)

// DataState is the transient status of export and import operations
type DataState struct {
	IsImporting    bool        `json:"isImporting"`
	IsExporting    bool        `json:"isExporting"`
	LastBackupDate *time.Time  `json:"lastBackupDate,omitempty"`
	BackupDue      bool        `json:"backupDue"`
	Message        string      `json:"message,omitempty"`
	MessageType    MessageType `json:"messageType,omitempty"`
}
