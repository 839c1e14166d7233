package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/drip/internal/common"
)

type versionInfo struct {
	Version string `json:"version"`
	Build   string `json:"build"`
	Commit  string `json:"commit"`
	Schema  string `json:"schema"`
}

// NewVersionCommand creates the version command. It does not open storage.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			out := newFormatter(rootOpts, cmd, config.DisplayCurrency)

			info := versionInfo{
				Version: common.GetVersion(),
				Build:   common.GetBuild(),
				Commit:  common.GetGitCommit(),
				Schema:  common.SchemaVersion,
			}
			return out.Success(info, func(w io.Writer) {
				logger := common.NewLoggerFromConfig(config.LoggerSettings())
				defer logger.Close()
				common.PrintBanner(w, config, logger)
			})
		},
	}
}
