package storage

// Persisted keys
const (
	KeyHoldings           = "drip_holdings"
	KeyDividends          = "drip_dividends"
	KeyScenarios          = "drip_scenarios"
	KeyCurrentScenario    = "drip_current_scenario"
	KeyLastBackup         = "drip_last_backup"
	KeyAppVersion         = "drip_app_version"
	KeyPreMigrationBackup = "drip_pre_migration_backup"
)

// Keys written by releases that predate the version marker
const (
	LegacyKeyHoldings        = "holdings"
	LegacyKeyDividends       = "dividends"
	LegacyKeyScenarios       = "scenarios"
	LegacyKeyCurrentScenario = "currentScenario"
)

// LegacyKeys lists every pre-marker key
func LegacyKeys() []string {
	return []string{LegacyKeyHoldings, LegacyKeyDividends, LegacyKeyScenarios, LegacyKeyCurrentScenario}
}
