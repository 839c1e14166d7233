// Package models defines data structures for drip
package models

// Holding is one tracked position. ID and Color are assigned at creation
// and never change afterwards.
type Holding struct {
	ID                int     `json:"id"`
	Ticker            string  `json:"ticker"`
	Name              string  `json:"name"`
	InitialInvestment float64 `json:"initialInvestment"`
	InitialSharePrice float64 `json:"initialSharePrice"`
	CurrentSharePrice float64 `json:"currentSharePrice"`
	Shares            float64 `json:"shares"`
	PurchaseDate      string  `json:"purchaseDate"`
	Color             string  `json:"color"`
}

// HoldingInput carries the caller supplied fields of a new holding.
// Shares of zero are derived from the investment and initial price.
type HoldingInput struct {
	Ticker            string  `json:"ticker"`
	Name              string  `json:"name"`
	InitialInvestment float64 `json:"initialInvestment"`
	InitialSharePrice float64 `json:"initialSharePrice"`
	CurrentSharePrice float64 `json:"currentSharePrice"`
	Shares            float64 `json:"shares"`
	PurchaseDate      string  `json:"purchaseDate"`
}

// Validate checks the input before a holding is created
func (in HoldingInput) Validate() error {
	v := &ValidationError{}
	if in.Ticker == "" {
		v.Add("ticker", "is required")
	}
	if in.Name == "" {
		v.Add("name", "is required")
	}
	checkNonNegative(v, "initialInvestment", in.InitialInvestment)
	checkNonNegative(v, "initialSharePrice", in.InitialSharePrice)
	checkNonNegative(v, "currentSharePrice", in.CurrentSharePrice)
	checkNonNegative(v, "shares", in.Shares)
	if in.PurchaseDate != "" {
		if _, err := ParseDate(in.PurchaseDate); err != nil {
			v.Add("purchaseDate", "must be a YYYY-MM-DD date")
		}
	}
	return v.OrNil()
}

// Validate checks an edited holding before it replaces the stored one
func (h Holding) Validate() error {
	v := &ValidationError{}
	if h.ID <= 0 {
		v.Add("id", "must be positive")
	}
	if h.Ticker == "" {
		v.Add("ticker", "is required")
	}
	if h.Name == "" {
		v.Add("name", "is required")
	}
	checkNonNegative(v, "initialInvestment", h.InitialInvestment)
	checkNonNegative(v, "initialSharePrice", h.InitialSharePrice)
	checkNonNegative(v, "currentSharePrice", h.CurrentSharePrice)
	checkNonNegative(v, "shares", h.Shares)
	return v.OrNil()
}

// FindHolding returns the holding with the given id
func FindHolding(holdings []Holding, id int) (Holding, bool) {
	for _, h := range holdings {
		if h.ID == id {
			return h, true
		}
	}
	return Holding{}, false
}

// TickerFor returns the ticker of the holding with the given id, or "Unknown".
func TickerFor(holdings []Holding, id int) string {
	if h, ok := FindHolding(holdings, id); ok {
		return h.Ticker
	}
	return "Unknown"
}
