// Package portfolio provides the DRIP portfolio engine and the operations that mutate it
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/drip/internal/common"
	"github.com/bobmcallan/drip/internal/models"
	"github.com/bobmcallan/drip/internal/storage"
)

// Service owns the in-memory entity sets and persists every mutation
// through the gateway. Persist failures are returned but the in-memory
// change is kept.
type Service struct {
	gw     *storage.Gateway
	logger *common.Logger
	rng    *rand.Rand
	now    func() time.Time
	seed   bool

	mu        sync.RWMutex
	holdings  []models.Holding
	dividends []models.Dividend
	scenarios models.Scenarios
	current   models.ScenarioName
}

// Option configures a Service
type Option func(*Service)

// WithRand sets the random source used for holding colors
func WithRand(r *rand.Rand) Option {
	return func(s *Service) { s.rng = r }
}

// WithClock sets the time source used for forecasts
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSeedData makes an empty store start with the sample holding and dividend
func WithSeedData(seed bool) Option {
	return func(s *Service) { s.seed = seed }
}

// NewService creates a portfolio service and loads the persisted state
func NewService(ctx context.Context, gw *storage.Gateway, logger *common.Logger, opts ...Option) *Service {
	s := &Service{
		gw:     gw,
		logger: logger,
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x6472697020)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Reload(ctx)
	return s
}

// Reload re-reads every collection from storage, e.g. after an import
func (s *Service) Reload(ctx context.Context) {
	defHoldings := []models.Holding{}
	defDividends := []models.Dividend{}
	if s.seed {
		defHoldings = models.SampleHoldings()
		defDividends = models.SampleDividends()
	}

	holdings := storage.Load(ctx, s.gw, storage.KeyHoldings, defHoldings)
	dividends := storage.Load(ctx, s.gw, storage.KeyDividends, defDividends)
	scenarios := storage.Load(ctx, s.gw, storage.KeyScenarios, models.DefaultScenarios())
	current := storage.Load(ctx, s.gw, storage.KeyCurrentScenario, models.DefaultScenarioName)
	if _, err := models.ParseScenarioName(string(current)); err != nil {
		s.logger.Warn().Str("stored", string(current)).Msg("Unknown current scenario, using default")
		current = models.DefaultScenarioName
	}

	s.mu.Lock()
	s.holdings = holdings
	s.dividends = dividends
	s.scenarios = scenarios
	s.current = current
	s.mu.Unlock()

	s.logger.Debug().
		Int("holdings", len(holdings)).
		Int("dividends", len(dividends)).
		Str("current_scenario", string(current)).
		Msg("Portfolio state loaded")
}

// --- Mutations ---

// AddHolding creates a holding with the next free id and a random color.
// Zero shares are derived from investment / initial price, rounded to 2 places.
func (s *Service) AddHolding(ctx context.Context, in models.HoldingInput) (models.Holding, error) {
	if err := in.Validate(); err != nil {
		return models.Holding{}, err
	}

	shares := in.Shares
	if shares == 0 && in.InitialSharePrice > 0 {
		shares = decimal.NewFromFloat(in.InitialInvestment).
			Div(decimal.NewFromFloat(in.InitialSharePrice)).
			Round(2).
			InexactFloat64()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h := models.Holding{
		ID:                nextHoldingID(s.holdings),
		Ticker:            in.Ticker,
		Name:              in.Name,
		InitialInvestment: in.InitialInvestment,
		InitialSharePrice: in.InitialSharePrice,
		CurrentSharePrice: in.CurrentSharePrice,
		Shares:            shares,
		PurchaseDate:      in.PurchaseDate,
		Color:             s.randomColor(),
	}
	s.holdings = append(s.holdings, h)

	s.logger.Info().Int("id", h.ID).Str("ticker", h.Ticker).Float64("shares", h.Shares).Msg("Holding added")
	return h, s.gw.Save(ctx, storage.KeyHoldings, s.holdings)
}

// UpdateHolding replaces the holding with the same id. An unknown id is a
// logged no-op reported as false. An empty color keeps the stored one.
func (s *Service) UpdateHolding(ctx context.Context, h models.Holding) (bool, error) {
	if err := h.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := indexOfHolding(s.holdings, h.ID)
	if idx < 0 {
		s.logger.Warn().Int("id", h.ID).Msg("Update of unknown holding ignored")
		return false, nil
	}
	if h.Color == "" {
		h.Color = s.holdings[idx].Color
	}
	s.holdings[idx] = h

	s.logger.Info().Int("id", h.ID).Str("ticker", h.Ticker).Msg("Holding updated")
	return true, s.gw.Save(ctx, storage.KeyHoldings, s.holdings)
}

// DeleteHolding removes the holding and every dividend that references it.
// An unknown id is a logged no-op reported as false.
func (s *Service) DeleteHolding(ctx context.Context, id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := indexOfHolding(s.holdings, id)
	if idx < 0 {
		s.logger.Warn().Int("id", id).Msg("Delete of unknown holding ignored")
		return false, nil
	}

	holdings := make([]models.Holding, 0, len(s.holdings)-1)
	holdings = append(holdings, s.holdings[:idx]...)
	holdings = append(holdings, s.holdings[idx+1:]...)

	dividends := make([]models.Dividend, 0, len(s.dividends))
	removed := 0
	for _, d := range s.dividends {
		if d.HoldingID == id {
			removed++
			continue
		}
		dividends = append(dividends, d)
	}

	s.holdings = holdings
	s.dividends = dividends

	s.logger.Info().Int("id", id).Int("dividends_removed", removed).Msg("Holding deleted")

	errHoldings := s.gw.Save(ctx, storage.KeyHoldings, s.holdings)
	errDividends := s.gw.Save(ctx, storage.KeyDividends, s.dividends)
	return true, errors.Join(errHoldings, errDividends)
}

// AddDividend records a payment. A reinvested payment adds its new shares
// to the owning holding, which is persisted before the dividend. A missing
// holding skips the share update and the dividend is still recorded.
func (s *Service) AddDividend(ctx context.Context, in models.DividendInput) (models.Dividend, error) {
	if err := in.Validate(); err != nil {
		return models.Dividend{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := indexOfHolding(s.holdings, in.HoldingID)

	sharesOwned := in.SharesOwned
	if sharesOwned == 0 && idx >= 0 {
		sharesOwned = s.holdings[idx].Shares
	}

	d := models.Dividend{
		ID:              nextDividendID(s.dividends),
		HoldingID:       in.HoldingID,
		Date:            in.Date,
		ExDate:          in.ExDate,
		RecordDate:      in.RecordDate,
		DeclarationDate: in.DeclarationDate,
		Amount:          in.Amount,
		SharesOwned:     sharesOwned,
		TotalReceived:   in.Amount * sharesOwned,
		Reinvested:      in.Reinvested,
		SharePrice:      in.SharePrice,
	}
	if d.ExDate == "" {
		d.ExDate = d.Date
	}
	if d.RecordDate == "" {
		d.RecordDate = d.Date
	}
	if d.Reinvested {
		d.NewShares = d.TotalReceived / d.SharePrice
	}

	var errs []error
	if d.Reinvested {
		if idx >= 0 {
			s.holdings[idx].Shares += d.NewShares
			s.logger.Info().
				Int("holding_id", d.HoldingID).
				Float64("new_shares", d.NewShares).
				Float64("shares", s.holdings[idx].Shares).
				Msg("Dividend reinvested")
			errs = append(errs, s.gw.Save(ctx, storage.KeyHoldings, s.holdings))
		} else {
			s.logger.Warn().Int("holding_id", d.HoldingID).Msg("Reinvested dividend for unknown holding, shares not updated")
		}
	}

	s.dividends = append(s.dividends, d)
	s.logger.Info().Int("id", d.ID).Int("holding_id", d.HoldingID).Float64("total", d.TotalReceived).Msg("Dividend added")

	errs = append(errs, s.gw.Save(ctx, storage.KeyDividends, s.dividends))
	return d, errors.Join(errs...)
}

// UpdateScenarios replaces all three scenarios
func (s *Service) UpdateScenarios(ctx context.Context, scenarios models.Scenarios) error {
	if err := scenarios.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.scenarios = scenarios
	s.logger.Info().Msg("Scenarios updated")
	return s.gw.Save(ctx, storage.KeyScenarios, s.scenarios)
}

// UpdateScenario replaces a single scenario, keeping the other two
func (s *Service) UpdateScenario(ctx context.Context, name models.ScenarioName, sc models.Scenario) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.scenarios
	if err := next.Set(name, sc); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}

	s.scenarios = next
	s.logger.Info().Str("scenario", string(name)).Msg("Scenario updated")
	return s.gw.Save(ctx, storage.KeyScenarios, s.scenarios)
}

// SetCurrentScenario changes the scenario selected for display
func (s *Service) SetCurrentScenario(ctx context.Context, name string) error {
	parsed, err := models.ParseScenarioName(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = parsed
	s.logger.Info().Str("scenario", string(parsed)).Msg("Current scenario changed")
	return s.gw.Save(ctx, storage.KeyCurrentScenario, s.current)
}

// --- Accessors ---

// Holdings returns a copy of the holdings
func (s *Service) Holdings() []models.Holding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Holding(nil), s.holdings...)
}

// Holding returns the holding with the given id
func (s *Service) Holding(id int) (models.Holding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.FindHolding(s.holdings, id)
}

// Dividends returns a copy of the dividends
func (s *Service) Dividends() []models.Dividend {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Dividend(nil), s.dividends...)
}

// Scenarios returns the current assumptions
func (s *Service) Scenarios() models.Scenarios {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scenarios
}

// CurrentScenario returns the scenario selected for display
func (s *Service) CurrentScenario() models.ScenarioName {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// --- Reports, recomputed on every call ---

// Summary returns per-holding summaries and portfolio totals
func (s *Service) Summary() ([]models.HoldingSummary, models.PortfolioTotals) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summaries := Summaries(s.holdings, s.dividends)
	return summaries, Totals(summaries)
}

// Upcoming forecasts the next dividend of each holding as of the service clock
func (s *Service) Upcoming() []models.UpcomingDividend {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return UpcomingDividends(s.holdings, s.dividends, s.now())
}

// Projection projects every holding under the named scenario. An empty
// name uses the current scenario.
func (s *Service) Projection(name models.ScenarioName, years int) ([]models.HoldingProjection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if name == "" {
		name = s.current
	}
	projections, err := Project(Summaries(s.holdings, s.dividends), s.scenarios, name, years)
	if err != nil {
		return nil, fmt.Errorf("projection failed: %w", err)
	}
	return projections, nil
}

// Trajectory classifies recent dividends against the scenarios
func (s *Service) Trajectory() models.Trajectory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Trajectory(s.dividends, s.scenarios)
}

// MonthlyDividends groups received dividends by month
func (s *Service) MonthlyDividends() []models.MonthlyDividend {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return MonthlyDividends(s.dividends)
}

// --- helpers ---

func indexOfHolding(holdings []models.Holding, id int) int {
	for i, h := range holdings {
		if h.ID == id {
			return i
		}
	}
	return -1
}

func nextHoldingID(holdings []models.Holding) int {
	maxID := 0
	for _, h := range holdings {
		maxID = max(maxID, h.ID)
	}
	return maxID + 1
}

func nextDividendID(dividends []models.Dividend) int {
	maxID := 0
	for _, d := range dividends {
		maxID = max(maxID, d.ID)
	}
	return maxID + 1
}

// randomColor returns a #RRGGBB color; callers hold s.mu
func (s *Service) randomColor() string {
	return fmt.Sprintf("#%06X", s.rng.IntN(1<<24))
}
