package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/drip/internal/models"
)

// NewScenarioCommand creates the scenario command group.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "View and edit projection scenarios",
	}

	cmd.AddCommand(newScenarioShowCommand(rootOpts))
	cmd.AddCommand(newScenarioSetCommand(rootOpts))
	cmd.AddCommand(newScenarioUseCommand(rootOpts))
	return cmd
}

type scenarioView struct {
	Current   models.ScenarioName `json:"current"`
	Scenarios models.Scenarios    `json:"scenarios"`
}

func newScenarioShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show all scenarios and the current selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.App()
			if err != nil {
				return err
			}
			out := newFormatter(rootOpts, cmd, a.Config.DisplayCurrency)

			view := scenarioView{Current: a.Portfolio.CurrentScenario(), Scenarios: a.Portfolio.Scenarios()}
			return out.Success(view, func(w io.Writer) {
				rows := make([][]string, 0, 3)
				for _, name := range models.ScenarioNames() {
					sc, _ := view.Scenarios.Get(name)
					marker := ""
					if name == view.Current {
						marker = "*"
					}
					rows = append(rows, []string{
						marker + string(name),
						out.Money(sc.MonthlyDividend), out.Money(sc.AnnualDividend),
						formatPercent(sc.Yield), formatPercent(sc.ShareGrowth),
						optionalMoney(out, sc.Year5Value), optionalMoney(out, sc.Year10Value),
					})
				}
				table(w, []string{"SCENARIO", "MONTHLY", "ANNUAL", "YIELD", "GROWTH", "YEAR 5", "YEAR 10"}, rows)
			})
		},
	}
}

func optionalMoney(out *OutputFormatter, v *float64) string {
	if v == nil {
		return "-"
	}
	return out.Money(*v)
}

func newScenarioSetCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		monthly, annual, yield, growth float64
		year5, year10                  float64
	)
	cmd := &cobra.Command{
		Use:   "set <bullish|neutral|bearish>",
		Short: "Change the assumptions of one scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.App()
			if err != nil {
				return err
			}
			out := newFormatter(rootOpts, cmd, a.Config.DisplayCurrency)

			name, err := models.ParseScenarioName(args[0])
			if err != nil {
				return out.Fail(err.Error(), nil, err)
			}
			sc, _ := a.Portfolio.Scenarios().Get(name)

			changed := cmd.Flags().Changed
			if changed("monthly") {
				sc.MonthlyDividend = monthly
			}
			if changed("annual") {
				sc.AnnualDividend = annual
			}
			if changed("yield") {
				sc.Yield = yield
			}
			if changed("growth") {
				sc.ShareGrowth = growth
			}
			if changed("year5") {
				sc.Year5Value = &year5
			}
			if changed("year10") {
				sc.Year10Value = &year10
			}

			if err := a.Portfolio.UpdateScenario(cmd.Context(), name, sc); err != nil {
				return out.Fail(err.Error(), nil, err)
			}
			return out.Success(sc, func(w io.Writer) {
				fmt.Fprintf(w, "Updated %s scenario\n", name)
			})
		},
	}
	cmd.Flags().Float64Var(&monthly, "monthly", 0, "monthly dividend per share")
	cmd.Flags().Float64Var(&annual, "annual", 0, "annual dividend per share")
	cmd.Flags().Float64Var(&yield, "yield", 0, "yield percent")
	cmd.Flags().Float64Var(&growth, "growth", 0, "annual share price growth percent")
	cmd.Flags().Float64Var(&year5, "year5", 0, "reference portfolio value after 5 years")
	cmd.Flags().Float64Var(&year10, "year10", 0, "reference portfolio value after 10 years")
	return cmd
}

func newScenarioUseCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "use <bullish|neutral|bearish>",
		Short: "Select the current scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.App()
			if err != nil {
				return err
			}
			out := newFormatter(rootOpts, cmd, a.Config.DisplayCurrency)

			if err := a.Portfolio.SetCurrentScenario(cmd.Context(), args[0]); err != nil {
				return out.Fail(err.Error(), nil, err)
			}
			current := a.Portfolio.CurrentScenario()
			return out.Success(map[string]any{"current": current}, func(w io.Writer) {
				fmt.Fprintf(w, "Current scenario: %s\n", current)
			})
		},
	}
}
