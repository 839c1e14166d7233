package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownScenario is returned for a scenario name outside the three variants
var ErrUnknownScenario = errors.New("unknown scenario")

// ScenarioName identifies one of the three projection scenarios
type ScenarioName string

const (
	ScenarioBullish ScenarioName = "bullish"
	ScenarioNeutral ScenarioName = "neutral"
	ScenarioBearish ScenarioName = "bearish"
)

// DefaultScenarioName is the selector value on a fresh install
const DefaultScenarioName = ScenarioNeutral

// ScenarioNames returns the scenario names in display order
func ScenarioNames() []ScenarioName {
	return []ScenarioName{ScenarioBullish, ScenarioNeutral, ScenarioBearish}
}

// ParseScenarioName validates a user supplied scenario name
func ParseScenarioName(s string) (ScenarioName, error) {
	name := ScenarioName(strings.ToLower(strings.TrimSpace(s)))
	switch name {
	case ScenarioBullish, ScenarioNeutral, ScenarioBearish:
		return name, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScenario, s)
}

// Scenario is a set of growth assumptions. AnnualDividend is read as a
// percentage yield on value and ShareGrowth as annual price growth percent.
// Year5Value and Year10Value are display only.
type Scenario struct {
	MonthlyDividend float64  `json:"monthlyDividend"`
	AnnualDividend  float64  `json:"annualDividend"`
	Yield           float64  `json:"yield"`
	ShareGrowth     float64  `json:"shareGrowth"`
	Year5Value      *float64 `json:"year5Value,omitempty"`
	Year10Value     *float64 `json:"year10Value,omitempty"`
}

// Validate checks a scenario's assumptions
func (s Scenario) Validate(name ScenarioName) error {
	v := &ValidationError{}
	prefix := string(name) + "."
	checkNonNegative(v, prefix+"monthlyDividend", s.MonthlyDividend)
	checkNonNegative(v, prefix+"annualDividend", s.AnnualDividend)
	checkNonNegative(v, prefix+"yield", s.Yield)
	// A falling price is allowed; below -100% the price would turn negative
	if s.ShareGrowth < -100 {
		v.Add(prefix+"shareGrowth", "must not be below -100")
	}
	return v.OrNil()
}

// Scenarios holds exactly one Scenario per variant
type Scenarios struct {
	Bullish Scenario `json:"bullish"`
	Neutral Scenario `json:"neutral"`
	Bearish Scenario `json:"bearish"`
}

// Get returns the named scenario
func (s Scenarios) Get(name ScenarioName) (Scenario, error) {
	switch name {
	case ScenarioBullish:
		return s.Bullish, nil
	case ScenarioNeutral:
		return s.Neutral, nil
	case ScenarioBearish:
		return s.Bearish, nil
	}
	return Scenario{}, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
}

// Set replaces the named scenario
func (s *Scenarios) Set(name ScenarioName, sc Scenario) error {
	switch name {
	case ScenarioBullish:
		s.Bullish = sc
	case ScenarioNeutral:
		s.Neutral = sc
	case ScenarioBearish:
		s.Bearish = sc
	default:
		return fmt.Errorf("%w: %q", ErrUnknownScenario, name)
	}
	return nil
}

// Validate checks all three scenarios
func (s Scenarios) Validate() error {
	merged := &ValidationError{}
	for _, name := range ScenarioNames() {
		sc, _ := s.Get(name)
		if err := sc.Validate(name); err != nil {
			var v *ValidationError
			if errors.As(err, &v) {
				for k, msg := range v.Fields {
					merged.Add(k, msg)
				}
			}
		}
	}
	return merged.OrNil()
}

func floatPtr(f float64) *float64 { return &f }

// DefaultScenarios returns the assumptions used on a fresh install
func DefaultScenarios() Scenarios {
	return Scenarios{
		Bullish: Scenario{
			MonthlyDividend: 3.50,
			AnnualDividend:  42.00,
			Yield:           16.7,
			ShareGrowth:     8.0,
			Year5Value:      floatPtr(114027),
			Year10Value:     floatPtr(432680),
		},
		Neutral: Scenario{
			MonthlyDividend: 2.25,
			AnnualDividend:  27.00,
			Yield:           10.7,
			ShareGrowth:     5.0,
			Year5Value:      floatPtr(70586),
			Year10Value:     floatPtr(163595),
		},
		Bearish: Scenario{
			MonthlyDividend: 1.25,
			AnnualDividend:  15.00,
			Yield:           5.9,
			ShareGrowth:     2.0,
			Year5Value:      floatPtr(44962),
			Year10Value:     floatPtr(67362),
		},
	}
}
