package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/drip/internal/services/backup"
)

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a JSON backup of the whole portfolio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.App()
			if err != nil {
				return err
			}
			out := newFormatter(rootOpts, cmd, a.Config.DisplayCurrency)

			if dir == "" {
				dir = a.Config.Export.Dir
			}
			path, err := a.Backup.WriteExport(cmd.Context(), dir)
			if err != nil {
				return out.Fail(err.Error(), nil, err)
			}
			return out.Success(map[string]any{"path": path}, func(w io.Writer) {
				fmt.Fprintf(w, "Portfolio data exported to %s\n", path)
			})
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "output directory (default from config)")
	return cmd
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	var contentType string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the portfolio with a JSON backup",
		Long: `Replace holdings, dividends and scenarios with the contents of a backup
written by "drip export". The file is validated first; nothing is changed
when it is rejected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.App()
			if err != nil {
				return err
			}
			out := newFormatter(rootOpts, cmd, a.Config.DisplayCurrency)

			file, f, err := backup.OpenImportFile(args[0])
			if err != nil {
				return out.Fail(err.Error(), nil, err)
			}
			defer f.Close()
			file.ContentType = contentType

			res, err := a.Backup.Import(cmd.Context(), file)
			if err != nil {
				if errors.Is(err, backup.ErrInvalidImport) || errors.Is(err, backup.ErrImportInProgress) {
					return out.Fail(res.Message, res, err)
				}
				return out.Fail(fmt.Sprintf("%s: %v", res.Message, err), res, err)
			}
			return out.Success(res, func(w io.Writer) {
				fmt.Fprintf(w, "%s (%d holdings, %d dividends)\n", res.Message, res.Holdings, res.Dividends)
			})
		},
	}
	cmd.Flags().StringVar(&contentType, "type", "", "declared content type (default: by file extension)")
	return cmd
}
