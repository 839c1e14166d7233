package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/drip/internal/models"
	"github.com/bobmcallan/drip/internal/services/portfolio"
)

type summaryView struct {
	Holdings []models.HoldingSummary `json:"holdings"`
	Totals   models.PortfolioTotals  `json:"totals"`
}

// NewSummaryCommand creates the summary command.
func NewSummaryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Value, dividends and growth per holding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.App()
			if err != nil {
				return err
			}
			out := newFormatter(rootOpts, cmd, a.Config.DisplayCurrency)

			summaries, totals := a.Portfolio.Summary()
			view := summaryView{Holdings: summaries, Totals: totals}
			return out.Success(view, func(w io.Writer) {
				rows := make([][]string, 0, len(summaries)+1)
				for _, s := range summaries {
					rows = append(rows, []string{
						s.Ticker, formatShares(s.Shares), out.Money(s.InitialInvestment),
						out.Money(s.CurrentValue), out.Money(s.TotalDividends),
						out.Money(s.Growth), formatPercent(s.GrowthPercentage),
					})
				}
				rows = append(rows, []string{
					"TOTAL", formatShares(totals.TotalShares), out.Money(totals.TotalInvestment),
					out.Money(totals.TotalValue), out.Money(totals.TotalDividends),
					out.Money(totals.Growth), formatPercent(totals.GrowthPercentage),
				})
				table(w, []string{"TICKER", "SHARES", "INVESTED", "VALUE", "DIVIDENDS", "GROWTH", "GROWTH %"}, rows)
			})
		},
	}
}

// NewUpcomingCommand creates the upcoming command.
func NewUpcomingCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "upcoming",
		Short: "Forecast the next dividend of each holding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.App()
			if err != nil {
				return err
			}
			out := newFormatter(rootOpts, cmd, a.Config.DisplayCurrency)

			upcoming := a.Portfolio.Upcoming()
			return out.Success(upcoming, func(w io.Writer) {
				if len(upcoming) == 0 {
					fmt.Fprintln(w, "No upcoming dividends")
					return
				}
				rows := make([][]string, 0, len(upcoming))
				for _, u := range upcoming {
					rows = append(rows, []string{u.Ticker, u.ExDate, u.PayDate, out.Money(u.Amount), out.Money(u.EstTotal)})
				}
				table(w, []string{"TICKER", "EX-DATE", "PAY DATE", "PER SHARE", "EST. TOTAL"}, rows)
			})
		},
	}
}

type projectionView struct {
	Scenario models.ScenarioName              `json:"scenario"`
	Years    int                              `json:"years"`
	Holdings []models.HoldingProjection       `json:"holdings"`
	Combined []models.CombinedProjectionPoint `json:"combined"`
}

type projectionFlags struct {
	scenario string
	years    int
}

func (f *projectionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.scenario, "scenario", "s", "", "bullish, neutral or bearish (default: current scenario)")
	cmd.Flags().IntVarP(&f.years, "years", "y", 0, "projection horizon in years (default from config)")
}

func (f *projectionFlags) project(rootOpts *RootOptions) (projectionView, error) {
	a, err := rootOpts.App()
	if err != nil {
		return projectionView{}, err
	}

	var name models.ScenarioName
	if f.scenario != "" {
		if name, err = models.ParseScenarioName(f.scenario); err != nil {
			return projectionView{}, err
		}
	} else {
		name = a.Portfolio.CurrentScenario()
	}
	years := f.years
	if years == 0 {
		years = a.Config.Projection.Years
	}

	projections, err := a.Portfolio.Projection(name, years)
	if err != nil {
		return projectionView{}, err
	}
	return projectionView{
		Scenario: name,
		Years:    years,
		Holdings: projections,
		Combined: portfolio.CombineProjection(projections),
	}, nil
}

// NewProjectCommand creates the project command.
func NewProjectCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &projectionFlags{}
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Project portfolio growth with dividend reinvestment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.App()
			if err != nil {
				return err
			}
			out := newFormatter(rootOpts, cmd, a.Config.DisplayCurrency)

			view, err := flags.project(rootOpts)
			if err != nil {
				return out.Fail(err.Error(), nil, err)
			}
			return out.Success(view, func(w io.Writer) {
				fmt.Fprintf(w, "Scenario %s over %d years\n\n", view.Scenario, view.Years)
				rows := make([][]string, 0, len(view.Combined))
				for _, p := range view.Combined {
					rows = append(rows, []string{
						strconv.Itoa(p.Year), formatShares(p.Shares), out.Money(p.DividendIncome), out.Money(p.TotalValue),
					})
				}
				table(w, []string{"YEAR", "SHARES", "DIVIDENDS", "VALUE"}, rows)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

// NewTrajectoryCommand creates the trajectory command.
func NewTrajectoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "trajectory",
		Short: "Which scenario recent dividends are tracking",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.App()
			if err != nil {
				return err
			}
			out := newFormatter(rootOpts, cmd, a.Config.DisplayCurrency)

			tr := a.Portfolio.Trajectory()
			return out.Success(tr, func(w io.Writer) {
				fmt.Fprintf(w, "Tracking %s (%d%%)\n", tr.Scenario, tr.Progress)
				fmt.Fprintf(w, "Recent average dividend %s over %d payments\n", out.Money(tr.RecentAverage), tr.Samples)
				if tr.LastNewShares > 0 {
					fmt.Fprintf(w, "Last reinvestment added %s shares\n", formatShares(tr.LastNewShares))
				}
			})
		},
	}
}

// NewChartCommand creates the chart command.
func NewChartCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &projectionFlags{}
	var outPath string
	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Render the projection as a PNG line chart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.App()
			if err != nil {
				return err
			}
			out := newFormatter(rootOpts, cmd, a.Config.DisplayCurrency)

			view, err := flags.project(rootOpts)
			if err != nil {
				return out.Fail(err.Error(), nil, err)
			}
			title := fmt.Sprintf("Projected value, %s scenario", view.Scenario)
			png, err := portfolio.RenderProjectionChart(title, view.Holdings)
			if err != nil {
				return out.Fail(err.Error(), nil, err)
			}
			if dir := filepath.Dir(outPath); dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return out.Fail(err.Error(), nil, err)
				}
			}
			if err := os.WriteFile(outPath, png, 0644); err != nil {
				return out.Fail(err.Error(), nil, err)
			}
			return out.Success(map[string]any{"path": outPath, "bytes": len(png)}, func(w io.Writer) {
				fmt.Fprintf(w, "Chart written to %s\n", outPath)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&outPath, "out", "o", "projection.png", "output PNG file")
	return cmd
}
