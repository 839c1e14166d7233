package portfolio

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/drip/internal/models"
)

// Projection horizons in years
const (
	DefaultProjectionYears = 10
	MaxProjectionYears     = 100
)

// Engine errors
var (
	ErrUnknownScenario = models.ErrUnknownScenario
	ErrInvalidHorizon  = errors.New("projection horizon must be between 1 and 100 years")
)

// roundTo rounds half away from zero to the given number of decimal places
func roundTo(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func roundCents(v float64) float64 {
	return roundTo(v, 2)
}

// Summaries derives valuation figures per holding, in input order.
// Growth percentage is 0 for holdings with no initial investment.
func Summaries(holdings []models.Holding, dividends []models.Dividend) []models.HoldingSummary {
	received := make(map[int]float64, len(holdings))
	for _, d := range dividends {
		received[d.HoldingID] += d.TotalReceived
	}

	out := make([]models.HoldingSummary, 0, len(holdings))
	for _, h := range holdings {
		value := h.Shares * h.CurrentSharePrice
		growth := value - h.InitialInvestment
		pct := 0.0
		if h.InitialInvestment != 0 {
			pct = growth / h.InitialInvestment * 100
		}
		out = append(out, models.HoldingSummary{
			Holding:          h,
			TotalDividends:   received[h.ID],
			CurrentValue:     value,
			Growth:           growth,
			GrowthPercentage: pct,
		})
	}
	return out
}

// Totals aggregates summaries across the portfolio
func Totals(summaries []models.HoldingSummary) models.PortfolioTotals {
	var t models.PortfolioTotals
	for _, s := range summaries {
		t.TotalInvestment += s.InitialInvestment
		t.TotalValue += s.CurrentValue
		t.TotalShares += s.Shares
		t.TotalDividends += s.TotalDividends
	}
	t.Growth = t.TotalValue - t.TotalInvestment
	if t.TotalInvestment != 0 {
		t.GrowthPercentage = t.Growth / t.TotalInvestment * 100
	}
	return t
}

// datedDividend pairs a dividend with its parsed pay date
type datedDividend struct {
	models.Dividend
	at time.Time
	ok bool
}

// sortedByDate returns dividends ordered by pay date, newest first when desc
// is set. Unparseable dates sort as the oldest.
func sortedByDate(dividends []models.Dividend, desc bool) []datedDividend {
	out := make([]datedDividend, 0, len(dividends))
	for _, d := range dividends {
		at, err := models.ParseDate(d.Date)
		out = append(out, datedDividend{Dividend: d, at: at, ok: err == nil})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return out[i].at.After(out[j].at)
		}
		return out[i].at.Before(out[j].at)
	})
	return out
}

// UpcomingDividends forecasts the next payment of every holding with at
// least one dividend. The next ex-date is one calendar month after the
// latest pay date; forecasts on or before today are dropped. The amount is
// the mean of up to the three most recent payments.
func UpcomingDividends(holdings []models.Holding, dividends []models.Dividend, now time.Time) []models.UpcomingDividend {
	byHolding := make(map[int][]models.Dividend)
	for _, d := range dividends {
		byHolding[d.HoldingID] = append(byHolding[d.HoldingID], d)
	}
	today := models.StartOfDay(now)

	upcoming := []models.UpcomingDividend{}
	for _, h := range holdings {
		own := byHolding[h.ID]
		if len(own) == 0 {
			continue
		}
		sorted := sortedByDate(own, true)
		latest := sorted[0]
		if !latest.ok {
			continue
		}

		next := latest.at.AddDate(0, 1, 0)
		if !next.After(today) {
			continue
		}

		recent := sorted
		if len(recent) > 3 {
			recent = recent[:3]
		}
		sum := 0.0
		for _, d := range recent {
			sum += d.Amount
		}
		avg := sum / float64(len(recent))

		upcoming = append(upcoming, models.UpcomingDividend{
			HoldingID: h.ID,
			Ticker:    h.Ticker,
			ExDate:    models.FormatDate(next),
			PayDate:   models.FormatDate(next.AddDate(0, 0, 1)),
			Amount:    roundCents(avg),
			EstTotal:  roundCents(avg * h.Shares),
		})
	}
	return upcoming
}

// Project compounds each holding over the horizon under the named scenario.
// Dividend income of a year is the scenario yield on the previous year's
// value, reinvested at that year's grown price.
func Project(summaries []models.HoldingSummary, scenarios models.Scenarios, name models.ScenarioName, years int) ([]models.HoldingProjection, error) {
	scenario, err := scenarios.Get(name)
	if err != nil {
		return nil, err
	}
	if years <= 0 || years > MaxProjectionYears {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidHorizon, years)
	}

	yield := scenario.AnnualDividend / 100
	growth := scenario.ShareGrowth / 100

	out := make([]models.HoldingProjection, 0, len(summaries))
	for _, s := range summaries {
		shares := s.Shares
		price := s.CurrentSharePrice
		value := shares * price

		points := make([]models.ProjectionPoint, 0, years+1)
		points = append(points, models.ProjectionPoint{
			Year:           0,
			Shares:         shares,
			SharePrice:     price,
			DividendIncome: yield * value,
			TotalValue:     value,
		})

		for year := 1; year <= years; year++ {
			price = price * (1 + growth)
			income := yield * value
			newShares := 0.0
			if price != 0 {
				newShares = income / price
			}
			shares += newShares
			value = shares * price
			points = append(points, models.ProjectionPoint{
				Year:           year,
				Shares:         shares,
				SharePrice:     price,
				DividendIncome: income,
				TotalValue:     value,
			})
		}

		out = append(out, models.HoldingProjection{
			HoldingID:      s.ID,
			Ticker:         s.Ticker,
			Color:          s.Color,
			ProjectionData: points,
		})
	}
	return out, nil
}

// CombineProjection sums every holding's projection per year
func CombineProjection(projections []models.HoldingProjection) []models.CombinedProjectionPoint {
	years := 0
	for _, p := range projections {
		if len(p.ProjectionData) > years {
			years = len(p.ProjectionData)
		}
	}

	combined := make([]models.CombinedProjectionPoint, years)
	for i := range combined {
		combined[i].Year = i
	}
	for _, p := range projections {
		for _, pt := range p.ProjectionData {
			if pt.Year < 0 || pt.Year >= years {
				continue
			}
			c := &combined[pt.Year]
			c.TotalValue += pt.TotalValue
			c.DividendIncome += pt.DividendIncome
			c.Shares += pt.Shares
		}
	}
	return combined
}

// Trajectory compares the average of the three most recent payments with
// thresholds halfway between the neutral and the outer scenarios. Fewer
// than three payments classify as neutral.
func Trajectory(dividends []models.Dividend, scenarios models.Scenarios) models.Trajectory {
	sorted := sortedByDate(dividends, false)
	if len(sorted) > 6 {
		sorted = sorted[len(sorted)-6:]
	}

	t := models.Trajectory{Scenario: models.ScenarioNeutral, Samples: len(sorted)}
	if len(sorted) > 0 {
		t.LastNewShares = sorted[len(sorted)-1].NewShares
	}
	if len(sorted) >= 3 {
		recent := sorted[len(sorted)-3:]
		sum := 0.0
		for _, d := range recent {
			sum += d.Amount
		}
		t.RecentAverage = sum / float64(len(recent))

		neutral := scenarios.Neutral.MonthlyDividend
		bullishThreshold := neutral + (scenarios.Bullish.MonthlyDividend-neutral)/2
		bearishThreshold := neutral - (neutral-scenarios.Bearish.MonthlyDividend)/2

		switch {
		case t.RecentAverage >= bullishThreshold:
			t.Scenario = models.ScenarioBullish
		case t.RecentAverage <= bearishThreshold:
			t.Scenario = models.ScenarioBearish
		}
	}

	switch t.Scenario {
	case models.ScenarioBullish:
		t.Progress = 75
	case models.ScenarioBearish:
		t.Progress = 25
	default:
		t.Progress = 50
	}
	return t
}

// MonthlyDividends totals received dividends per YYYY-MM month, oldest first.
// Dividends with unparseable dates are left out.
func MonthlyDividends(dividends []models.Dividend) []models.MonthlyDividend {
	byMonth := make(map[string]*models.MonthlyDividend)
	for _, d := range dividends {
		at, err := models.ParseDate(d.Date)
		if err != nil {
			continue
		}
		key := at.Format("2006-01")
		m, ok := byMonth[key]
		if !ok {
			m = &models.MonthlyDividend{Month: key}
			byMonth[key] = m
		}
		m.Total += d.TotalReceived
		m.Count++
	}

	out := make([]models.MonthlyDividend, 0, len(byMonth))
	for _, m := range byMonth {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// RecentDividends returns up to n dividends, newest first. n <= 0 returns all.
func RecentDividends(dividends []models.Dividend, n int) []models.Dividend {
	sorted := sortedByDate(dividends, true)
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	out := make([]models.Dividend, 0, len(sorted))
	for _, d := range sorted {
		out = append(out, d.Dividend)
	}
	return out
}
