package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/drip/internal/models"
)

// NewHoldingCommand creates the holding command group.
func NewHoldingCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "holding",
		Short: "Manage holdings",
	}

	cmd.AddCommand(newHoldingAddCommand(rootOpts))
	cmd.AddCommand(newHoldingUpdateCommand(rootOpts))
	cmd.AddCommand(newHoldingDeleteCommand(rootOpts))
	cmd.AddCommand(newHoldingListCommand(rootOpts))
	return cmd
}

type holdingFlags struct {
	ticker       string
	name         string
	investment   float64
	initialPrice float64
	currentPrice float64
	shares       float64
	date         string
	color        string
}

func (f *holdingFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.ticker, "ticker", "", "ticker symbol")
	cmd.Flags().StringVar(&f.name, "name", "", "display name")
	cmd.Flags().Float64Var(&f.investment, "investment", 0, "initial investment")
	cmd.Flags().Float64Var(&f.initialPrice, "price", 0, "initial share price")
	cmd.Flags().Float64Var(&f.currentPrice, "current-price", 0, "current share price (defaults to --price)")
	cmd.Flags().Float64Var(&f.shares, "shares", 0, "share count (defaults to investment / price)")
	cmd.Flags().StringVar(&f.date, "date", "", "purchase date YYYY-MM-DD")
}

func newHoldingAddCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &holdingFlags{}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a holding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.App()
			if err != nil {
				return err
			}
			out := newFormatter(rootOpts, cmd, a.Config.DisplayCurrency)

			current := flags.currentPrice
			if !cmd.Flags().Changed("current-price") {
				current = flags.initialPrice
			}
			h, err := a.Portfolio.AddHolding(cmd.Context(), models.HoldingInput{
				Ticker:            flags.ticker,
				Name:              flags.name,
				InitialInvestment: flags.investment,
				InitialSharePrice: flags.initialPrice,
				CurrentSharePrice: current,
				Shares:            flags.shares,
				PurchaseDate:      flags.date,
			})
			if err != nil {
				return out.Fail(err.Error(), nil, err)
			}
			return out.Success(h, func(w io.Writer) {
				fmt.Fprintf(w, "Added holding %d: %s (%s shares, color %s)\n", h.ID, h.Ticker, formatShares(h.Shares), h.Color)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newHoldingUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &holdingFlags{}
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update fields of a holding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := rootOpts.App()
			if err != nil {
				return err
			}
			out := newFormatter(rootOpts, cmd, a.Config.DisplayCurrency)

			h, ok := a.Portfolio.Holding(id)
			if !ok {
				return out.Fail(fmt.Sprintf("holding %d not found", id), nil, nil)
			}
			changed := cmd.Flags().Changed
			if changed("ticker") {
				h.Ticker = flags.ticker
			}
			if changed("name") {
				h.Name = flags.name
			}
			if changed("investment") {
				h.InitialInvestment = flags.investment
			}
			if changed("price") {
				h.InitialSharePrice = flags.initialPrice
			}
			if changed("current-price") {
				h.CurrentSharePrice = flags.currentPrice
			}
			if changed("shares") {
				h.Shares = flags.shares
			}
			if changed("date") {
				h.PurchaseDate = flags.date
			}
			if changed("color") {
				h.Color = flags.color
			}

			if _, err := a.Portfolio.UpdateHolding(cmd.Context(), h); err != nil {
				return out.Fail(err.Error(), nil, err)
			}
			return out.Success(h, func(w io.Writer) {
				fmt.Fprintf(w, "Updated holding %d: %s\n", h.ID, h.Ticker)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&flags.color, "color", "", "chart color #RRGGBB")
	return cmd
}

func newHoldingDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a holding and its dividends",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := rootOpts.App()
			if err != nil {
				return err
			}
			out := newFormatter(rootOpts, cmd, a.Config.DisplayCurrency)

			deleted, err := a.Portfolio.DeleteHolding(cmd.Context(), id)
			if err != nil {
				return out.Fail(err.Error(), nil, err)
			}
			result := map[string]any{"id": id, "deleted": deleted}
			return out.Success(result, func(w io.Writer) {
				if deleted {
					fmt.Fprintf(w, "Deleted holding %d\n", id)
				} else {
					fmt.Fprintf(w, "Holding %d not found, nothing deleted\n", id)
				}
			})
		},
	}
}

func newHoldingListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List holdings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.App()
			if err != nil {
				return err
			}
			out := newFormatter(rootOpts, cmd, a.Config.DisplayCurrency)

			holdings := a.Portfolio.Holdings()
			return out.Success(holdings, func(w io.Writer) {
				if len(holdings) == 0 {
					fmt.Fprintln(w, "No holdings")
					return
				}
				rows := make([][]string, 0, len(holdings))
				for _, h := range holdings {
					rows = append(rows, []string{
						strconv.Itoa(h.ID), h.Ticker, h.Name,
						out.Money(h.InitialInvestment), out.Money(h.CurrentSharePrice),
						formatShares(h.Shares), h.PurchaseDate, h.Color,
					})
				}
				table(w, []string{"ID", "TICKER", "NAME", "INVESTED", "PRICE", "SHARES", "PURCHASED", "COLOR"}, rows)
			})
		},
	}
}

func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid id %q", arg))
	}
	return id, nil
}
