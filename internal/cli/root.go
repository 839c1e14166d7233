// Package cli implements the drip command line.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/drip/internal/app"
	"github.com/bobmcallan/drip/internal/common"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Format     string // "json" | "text"

	app *app.App
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// App opens the application on first use. Execute closes it.
func (o *RootOptions) App() (*app.App, error) {
	if o.app != nil {
		return o.app, nil
	}

	config, err := app.LoadConfig(o.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "configuration error", err)
	}
	if o.Verbose {
		config.Logging.Level = "debug"
	}

	a, err := app.NewAppWithConfig(config, common.NewLoggerFromConfig(config.LoggerSettings()))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "startup failed", err)
	}
	o.app = a
	return a, nil
}

// Close releases the application if it was opened.
func (o *RootOptions) Close() {
	if o.app != nil {
		o.app.Close()
		o.app = nil
	}
}

// Execute runs the CLI and releases the app whatever the outcome.
func Execute(ctx context.Context) error {
	opts := &RootOptions{}
	defer opts.Close()
	return newRootCommand(opts).ExecuteContext(ctx)
}

// NewRootCommand creates the root command for the drip CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drip",
		Short: "drip - dividend reinvestment portfolio tracker",
		Long: `Track dividend-paying holdings, record payouts with optional reinvestment,
forecast upcoming dividends and project portfolio growth under bullish,
neutral and bearish scenarios.`,
		Version:       common.GetFullVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default drip.toml, or $DRIP_CONFIG)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewHoldingCommand(opts))
	cmd.AddCommand(NewDividendCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))
	cmd.AddCommand(NewSummaryCommand(opts))
	cmd.AddCommand(NewUpcomingCommand(opts))
	cmd.AddCommand(NewProjectCommand(opts))
	cmd.AddCommand(NewTrajectoryCommand(opts))
	cmd.AddCommand(NewChartCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadConfig loads the config without opening storage.
func loadConfig(o *RootOptions) (*common.Config, error) {
	config, err := app.LoadConfig(o.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "configuration error", err)
	}
	return config, nil
}
