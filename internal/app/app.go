package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/drip/internal/common"
	"github.com/bobmcallan/drip/internal/interfaces"
	"github.com/bobmcallan/drip/internal/services/backup"
	"github.com/bobmcallan/drip/internal/services/migration"
	"github.com/bobmcallan/drip/internal/services/portfolio"
	"github.com/bobmcallan/drip/internal/storage"
)

// App holds the initialized storage and services shared by every command.
type App struct {
	Config    *common.Config
	Logger    *common.Logger
	Store     interfaces.KVStore
	Gateway   *storage.Gateway
	Portfolio *portfolio.Service
	Backup    *backup.Service

	// Migration is the outcome of the startup schema check. A failed
	// migration does not stop the app; MigrationErr carries the cause.
	Migration    migration.Result
	MigrationErr error

	StartupTime time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// resolveConfigPath picks the config file: explicit path, DRIP_CONFIG,
// drip.toml next to the binary, then drip.toml in the working directory.
func resolveConfigPath(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if env := os.Getenv("DRIP_CONFIG"); env != "" {
		return env
	}
	candidate := filepath.Join(getBinaryDir(), "drip.toml")
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return "drip.toml"
}

// LoadConfig resolves and loads the configuration. configPath may be empty.
func LoadConfig(configPath string) (*common.Config, error) {
	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	config, err := common.LoadConfig(resolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return config, nil
}

// NewApp loads config, opens storage, runs the schema migration and
// constructs the services. configPath may be empty.
func NewApp(configPath string) (*App, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return NewAppWithConfig(config, common.NewLoggerFromConfig(config.LoggerSettings()))
}

// NewAppWithConfig builds the app from an already loaded config. The app
// takes ownership of logger and closes it in Close.
func NewAppWithConfig(config *common.Config, logger *common.Logger) (*App, error) {
	startupStart := time.Now()
	ctx := context.Background()

	store, err := storage.NewKVStore(logger, config)
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	gw := storage.NewGateway(store, logger)

	// Schema check runs before any service reads state
	result, migErr := migration.NewManager(gw, logger).Run(ctx)
	if migErr != nil {
		logger.Error().Err(migErr).Str("state", string(result.State)).Msg(result.Message)
	}

	portfolioService := portfolio.NewService(ctx, gw, logger, portfolio.WithSeedData(config.Storage.Seed))
	backupService := backup.NewService(gw, logger, backup.WithAfterImport(portfolioService.Reload))

	a := &App{
		Config:       config,
		Logger:       logger,
		Store:        store,
		Gateway:      gw,
		Portfolio:    portfolioService,
		Backup:       backupService,
		Migration:    result,
		MigrationErr: migErr,
		StartupTime:  startupStart,
	}

	logger.Info().
		Str("backend", config.Storage.Backend).
		Str("migration", string(result.State)).
		Dur("startup", time.Since(startupStart)).
		Msg("App initialized")

	return a, nil
}

// Close releases the storage backend and then the log file.
func (a *App) Close() {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
		a.Store = nil
	}
	if err := a.Logger.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
	}
}
