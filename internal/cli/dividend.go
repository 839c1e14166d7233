package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/drip/internal/models"
	"github.com/bobmcallan/drip/internal/services/portfolio"
)

// NewDividendCommand creates the dividend command group.
func NewDividendCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dividend",
		Short: "Record and review dividends",
	}

	cmd.AddCommand(newDividendAddCommand(rootOpts))
	cmd.AddCommand(newDividendListCommand(rootOpts))
	cmd.AddCommand(newDividendMonthlyCommand(rootOpts))
	return cmd
}

func newDividendAddCommand(rootOpts *RootOptions) *cobra.Command {
	var in models.DividendInput
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a dividend payment",
		Long: `Record a dividend payment for a holding.

With --reinvest the payout buys new shares at --price and the holding's
share count grows accordingly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.App()
			if err != nil {
				return err
			}
			out := newFormatter(rootOpts, cmd, a.Config.DisplayCurrency)

			d, err := a.Portfolio.AddDividend(cmd.Context(), in)
			if err != nil {
				return out.Fail(err.Error(), nil, err)
			}
			return out.Success(d, func(w io.Writer) {
				fmt.Fprintf(w, "Recorded dividend %d: %s received on %s shares\n",
					d.ID, out.Money(d.TotalReceived), formatShares(d.SharesOwned))
				if d.Reinvested {
					fmt.Fprintf(w, "Reinvested at %s for %s new shares\n", out.Money(d.SharePrice), formatShares(d.NewShares))
				}
			})
		},
	}

	cmd.Flags().IntVar(&in.HoldingID, "holding", 0, "holding id")
	cmd.Flags().StringVar(&in.Date, "date", "", "payment date YYYY-MM-DD")
	cmd.Flags().StringVar(&in.ExDate, "ex-date", "", "ex-dividend date")
	cmd.Flags().StringVar(&in.RecordDate, "record-date", "", "record date")
	cmd.Flags().StringVar(&in.DeclarationDate, "declaration-date", "", "declaration date")
	cmd.Flags().Float64Var(&in.Amount, "amount", 0, "dividend per share")
	cmd.Flags().Float64Var(&in.SharesOwned, "shares-owned", 0, "shares held (defaults to the holding's shares)")
	cmd.Flags().BoolVar(&in.Reinvested, "reinvest", false, "reinvest the payout")
	cmd.Flags().Float64Var(&in.SharePrice, "price", 0, "reinvestment share price")
	return cmd
}

func newDividendListCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dividends, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.App()
			if err != nil {
				return err
			}
			out := newFormatter(rootOpts, cmd, a.Config.DisplayCurrency)

			holdings := a.Portfolio.Holdings()
			dividends := portfolio.RecentDividends(a.Portfolio.Dividends(), limit)
			return out.Success(dividends, func(w io.Writer) {
				if len(dividends) == 0 {
					fmt.Fprintln(w, "No dividends")
					return
				}
				rows := make([][]string, 0, len(dividends))
				for _, d := range dividends {
					reinvested := "-"
					if d.Reinvested {
						reinvested = formatShares(d.NewShares)
					}
					rows = append(rows, []string{
						strconv.Itoa(d.ID), d.Date, models.TickerFor(holdings, d.HoldingID),
						out.Money(d.Amount), formatShares(d.SharesOwned), out.Money(d.TotalReceived), reinvested,
					})
				}
				table(w, []string{"ID", "DATE", "TICKER", "PER SHARE", "SHARES", "RECEIVED", "NEW SHARES"}, rows)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most n dividends (0 for all)")
	return cmd
}

func newDividendMonthlyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "monthly",
		Short: "Dividend income per month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.App()
			if err != nil {
				return err
			}
			out := newFormatter(rootOpts, cmd, a.Config.DisplayCurrency)

			months := a.Portfolio.MonthlyDividends()
			return out.Success(months, func(w io.Writer) {
				if len(months) == 0 {
					fmt.Fprintln(w, "No dividends")
					return
				}
				rows := make([][]string, 0, len(months))
				for _, m := range months {
					rows = append(rows, []string{m.Month, strconv.Itoa(m.Count), out.Money(m.Total)})
				}
				table(w, []string{"MONTH", "PAYMENTS", "TOTAL"}, rows)
			})
		},
	}
}
