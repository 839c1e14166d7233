package models

// HoldingSummary is a holding enriched with derived valuation figures
type HoldingSummary struct {
	Holding
	TotalDividends   float64 `json:"totalDividends"`
	CurrentValue     float64 `json:"currentValue"`
	Growth           float64 `json:"growth"`
	GrowthPercentage float64 `json:"growthPercentage"`
}

// PortfolioTotals aggregates summaries across all holdings
type PortfolioTotals struct {
	TotalInvestment  float64 `json:"totalInvestment"`
	TotalValue       float64 `json:"totalValue"`
	TotalShares      float64 `json:"totalShares"`
	TotalDividends   float64 `json:"totalDividends"`
	Growth           float64 `json:"growth"`
	GrowthPercentage float64 `json:"growthPercentage"`
}

// UpcomingDividend is a forecast of a holding's next payment
type UpcomingDividend struct {
	HoldingID int     `json:"holdingId"`
	Ticker    string  `json:"ticker"`
	ExDate    string  `json:"exDate"`
	PayDate   string  `json:"payDate"`
	Amount    float64 `json:"amount"`
	EstTotal  float64 `json:"estTotal"`
}

// ProjectionPoint is one year of a holding's compounding projection
type ProjectionPoint struct {
	Year           int     `json:"year"`
	Shares         float64 `json:"shares"`
	SharePrice     float64 `json:"sharePrice"`
	DividendIncome float64 `json:"dividendIncome"`
	TotalValue     float64 `json:"totalValue"`
}

// HoldingProjection is the projection series of one holding
type HoldingProjection struct {
	HoldingID      int               `json:"holdingId"`
	Ticker         string            `json:"ticker"`
	Color          string            `json:"color"`
	ProjectionData []ProjectionPoint `json:"projectionData"`
}

// CombinedProjectionPoint sums a projection year across holdings
type CombinedProjectionPoint struct {
	Year           int     `json:"year"`
	TotalValue     float64 `json:"totalValue"`
	DividendIncome float64 `json:"dividendIncome"`
	Shares         float64 `json:"shares"`
}

// MonthlyDividend totals dividends received in one YYYY-MM month
type MonthlyDividend struct {
	Month string  `json:"month"`
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

// Trajectory classifies recent dividend amounts against the scenario assumptions
type Trajectory struct {
	Scenario      ScenarioName `json:"scenario"`
	RecentAverage float64      `json:"recentAverage"`
	Progress      int          `json:"progress"`
	Samples       int          `json:"samples"`
	LastNewShares float64      `json:"lastNewShares"`
}
