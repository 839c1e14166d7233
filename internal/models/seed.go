package models

// SampleHoldings returns the sample position written to an empty store when seeding is enabled
func SampleHoldings() []Holding {
	return []Holding{
		{
			ID:                1,
			Ticker:            "MSTY",
			Name:              "MSTY DRIP ETF",
			InitialInvestment: 30000,
			InitialSharePrice: 21,
			CurrentSharePrice: 21,
			Shares:            1428.57,
			Color:             "#8884d8",
		},
	}
}

// SampleDividends returns the sample payment belonging to SampleHoldings
func SampleDividends() []Dividend {
	return []Dividend{
		{
			ID:              1,
			HoldingID:       1,
			Date:            "2025-02-14",
			ExDate:          "2025-02-13",
			RecordDate:      "2025-02-13",
			DeclarationDate: "2024-12-24",
			Amount:          2.02,
			SharesOwned:     1428.57,
			TotalReceived:   2885.71,
			Reinvested:      true,
			SharePrice:      21.35,
			NewShares:       135.16,
		},
	}
}
