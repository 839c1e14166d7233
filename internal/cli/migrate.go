package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Report the schema migration run at startup",
		Long: `Storage is migrated to the current schema every time drip starts.
This command reports the outcome of that run and exits non-zero when
it failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.App()
			if err != nil {
				return err
			}
			out := newFormatter(rootOpts, cmd, a.Config.DisplayCurrency)

			res := a.Migration
			if a.MigrationErr != nil {
				return out.Fail(res.Message, res, a.MigrationErr)
			}
			return out.Success(res, func(w io.Writer) {
				fmt.Fprintf(w, "%s\n", res.Message)
				if res.From != "" {
					fmt.Fprintf(w, "From %s to %s\n", res.From, res.To)
				}
				if len(res.Applied) > 0 {
					fmt.Fprintf(w, "Applied steps: %s\n", strings.Join(res.Applied, ", "))
				}
				if res.BackupID != "" {
					fmt.Fprintf(w, "Backup %s\n", res.BackupID)
				}
			})
		},
	}
}
