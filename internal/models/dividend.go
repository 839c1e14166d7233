package models

// Dividend is one payment event tied to a holding. Derived fields are
// computed once at creation and the record is immutable afterwards.
type Dividend struct {
	ID              int     `json:"id"`
	HoldingID       int     `json:"holdingId"`
	Date            string  `json:"date"`
	ExDate          string  `json:"exDate"`
	RecordDate      string  `json:"recordDate"`
	DeclarationDate string  `json:"declarationDate"`
	Amount          float64 `json:"amount"`
	SharesOwned     float64 `json:"sharesOwned"`
	TotalReceived   float64 `json:"totalReceived"`
	Reinvested      bool    `json:"reinvested"`
	SharePrice      float64 `json:"sharePrice"`
	NewShares       float64 `json:"newShares"`
}

// DividendInput carries the caller supplied fields of a new dividend.
// Zero SharesOwned takes the holding's current share count, empty ExDate
// and RecordDate default to Date.
type DividendInput struct {
	HoldingID       int     `json:"holdingId"`
	Date            string  `json:"date"`
	ExDate          string  `json:"exDate"`
	RecordDate      string  `json:"recordDate"`
	DeclarationDate string  `json:"declarationDate"`
	Amount          float64 `json:"amount"`
	SharesOwned     float64 `json:"sharesOwned"`
	Reinvested      bool    `json:"reinvested"`
	SharePrice      float64 `json:"sharePrice"`
}

// Validate checks the input before a dividend is recorded
func (in DividendInput) Validate() error {
	v := &ValidationError{}
	if in.HoldingID <= 0 {
		v.Add("holdingId", "must reference a holding")
	}
	if _, err := ParseDate(in.Date); err != nil {
		v.Add("date", "must be a YYYY-MM-DD date")
	}
	for field, val := range map[string]string{
		"exDate":          in.ExDate,
		"recordDate":      in.RecordDate,
		"declarationDate": in.DeclarationDate,
	} {
		if val == "" {
			continue
		}
		if _, err := ParseDate(val); err != nil {
			v.Add(field, "must be a YYYY-MM-DD date")
		}
	}
	checkNonNegative(v, "amount", in.Amount)
	checkNonNegative(v, "sharesOwned", in.SharesOwned)
	if in.Reinvested && in.SharePrice <= 0 {
		v.Add("sharePrice", "must be positive when reinvested")
	}
	return v.OrNil()
}
