package portfolio

import (
	"context"
	"errors"
	"math/rand/v2"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/drip/internal/common"
	"github.com/bobmcallan/drip/internal/interfaces"
	"github.com/bobmcallan/drip/internal/models"
	"github.com/bobmcallan/drip/internal/storage"
)

// --- Test helpers ---

func newTestStore(t *testing.T) interfaces.KVStore {
	t.Helper()
	fs, err := storage.NewFileStore(common.NewSilentLogger(), t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	return fs
}

func newTestService(t *testing.T, kv interfaces.KVStore, opts ...Option) *Service {
	t.Helper()
	gw := storage.NewGateway(kv, common.NewSilentLogger())
	base := []Option{
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithClock(func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }),
	}
	return NewService(context.Background(), gw, common.NewSilentLogger(), append(base, opts...)...)
}

func msty() models.HoldingInput {
	return models.HoldingInput{
		Ticker:            "MSTY",
		Name:              "MSTY DRIP ETF",
		InitialInvestment: 30000,
		InitialSharePrice: 21,
		CurrentSharePrice: 21,
		PurchaseDate:      "2025-01-02",
	}
}

var colorPattern = regexp.MustCompile(`^#[0-9A-F]{6}$`)

// --- Tests ---

func TestService_FreshStore(t *testing.T) {
	svc := newTestService(t, newTestStore(t))

	assert.Empty(t, svc.Holdings())
	assert.Empty(t, svc.Dividends())
	assert.Equal(t, models.DefaultScenarios(), svc.Scenarios())
	assert.Equal(t, models.ScenarioNeutral, svc.CurrentScenario())
}

func TestService_SeedData(t *testing.T) {
	svc := newTestService(t, newTestStore(t), WithSeedData(true))

	holdings := svc.Holdings()
	require.Len(t, holdings, 1)
	assert.Equal(t, "MSTY", holdings[0].Ticker)
	assert.Equal(t, 1428.57, holdings[0].Shares)
	assert.Len(t, svc.Dividends(), 1)
}

func TestService_AddHolding(t *testing.T) {
	ctx := context.Background()
	kv := newTestStore(t)
	svc := newTestService(t, kv)

	h1, err := svc.AddHolding(ctx, msty())
	require.NoError(t, err)
	assert.Equal(t, 1, h1.ID)
	assert.Equal(t, 1428.57, h1.Shares, "shares derived from investment / price")
	assert.Regexp(t, colorPattern, h1.Color)

	in := msty()
	in.Ticker = "JEPI"
	in.Shares = 50
	h2, err := svc.AddHolding(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 2, h2.ID)
	assert.Equal(t, 50.0, h2.Shares, "explicit shares are kept")

	reloaded := newTestService(t, kv)
	assert.Equal(t, []models.Holding{h1, h2}, reloaded.Holdings())
}

func TestService_AddHoldingIDsFollowMax(t *testing.T) {
	ctx := context.Background()
	kv := newTestStore(t)
	gw := storage.NewGateway(kv, common.NewSilentLogger())
	require.NoError(t, gw.Save(ctx, storage.KeyHoldings, []models.Holding{{ID: 4, Ticker: "A", Name: "A"}, {ID: 9, Ticker: "B", Name: "B"}}))

	svc := newTestService(t, kv)
	h, err := svc.AddHolding(ctx, msty())
	require.NoError(t, err)
	assert.Equal(t, 10, h.ID)
}

func TestService_AddHoldingValidation(t *testing.T) {
	ctx := context.Background()
	kv := newTestStore(t)
	svc := newTestService(t, kv)

	_, err := svc.AddHolding(ctx, models.HoldingInput{Name: "no ticker", InitialInvestment: -1})
	var v *models.ValidationError
	require.True(t, errors.As(err, &v))
	assert.Contains(t, v.Fields, "ticker")
	assert.Empty(t, svc.Holdings())

	keys, err := kv.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys, "rejected input writes nothing")
}

func TestService_ReinvestedDividendIncreasesShares(t *testing.T) {
	ctx := context.Background()
	kv := newTestStore(t)
	svc := newTestService(t, kv)

	h, err := svc.AddHolding(ctx, msty())
	require.NoError(t, err)

	d, err := svc.AddDividend(ctx, models.DividendInput{
		HoldingID:       h.ID,
		Date:            "2025-02-14",
		DeclarationDate: "2024-12-24",
		Amount:          2.02,
		Reinvested:      true,
		SharePrice:      21.35,
	})
	require.NoError(t, err)

	wantNew := (2.02 * 1428.57) / 21.35
	assert.Equal(t, 1, d.ID)
	assert.Equal(t, 1428.57, d.SharesOwned)
	assert.InDelta(t, 2.02*1428.57, d.TotalReceived, 1e-9)
	assert.InDelta(t, wantNew, d.NewShares, 1e-9)
	assert.Equal(t, "2025-02-14", d.ExDate)
	assert.Equal(t, "2025-02-14", d.RecordDate)

	got, ok := svc.Holding(h.ID)
	require.True(t, ok)
	assert.InDelta(t, 1428.57+wantNew, got.Shares, 1e-9)
	assert.InDelta(t, 1563.73, got.Shares, 0.005)
	assert.InDelta(t, got.Shares-1428.57, d.NewShares, 1e-9)

	reloaded := newTestService(t, kv)
	rh, _ := reloaded.Holding(h.ID)
	assert.InDelta(t, got.Shares, rh.Shares, 1e-9)
	require.Len(t, reloaded.Dividends(), 1)
}

func TestService_DividendNotReinvested(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newTestStore(t))
	h, _ := svc.AddHolding(ctx, msty())

	d, err := svc.AddDividend(ctx, models.DividendInput{HoldingID: h.ID, Date: "2025-02-14", ExDate: "2025-02-13", Amount: 2, SharesOwned: 100})
	require.NoError(t, err)
	assert.Equal(t, 200.0, d.TotalReceived)
	assert.Equal(t, 0.0, d.NewShares)
	assert.Equal(t, "2025-02-13", d.ExDate)

	got, _ := svc.Holding(h.ID)
	assert.Equal(t, 1428.57, got.Shares)
}

func TestService_DividendForMissingHolding(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newTestStore(t))

	d, err := svc.AddDividend(ctx, models.DividendInput{HoldingID: 42, Date: "2025-02-14", Amount: 1, Reinvested: true, SharePrice: 10})
	require.NoError(t, err)
	assert.Equal(t, 0.0, d.SharesOwned)
	assert.Len(t, svc.Dividends(), 1)
	assert.Empty(t, svc.Holdings())
}

func TestService_DividendValidation(t *testing.T) {
	svc := newTestService(t, newTestStore(t))
	_, err := svc.AddDividend(context.Background(), models.DividendInput{HoldingID: 1, Date: "2025-02-14", Reinvested: true})

	var v *models.ValidationError
	require.True(t, errors.As(err, &v))
	assert.Contains(t, v.Fields, "sharePrice")
	assert.Empty(t, svc.Dividends())
}

func TestService_DeleteHoldingCascades(t *testing.T) {
	ctx := context.Background()
	kv := newTestStore(t)
	svc := newTestService(t, kv)

	a, _ := svc.AddHolding(ctx, msty())
	in := msty()
	in.Ticker = "JEPI"
	b, _ := svc.AddHolding(ctx, in)

	for _, id := range []int{a.ID, b.ID, a.ID} {
		_, err := svc.AddDividend(ctx, models.DividendInput{HoldingID: id, Date: "2025-02-14", Amount: 1})
		require.NoError(t, err)
	}

	ok, err := svc.DeleteHolding(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	for _, d := range svc.Dividends() {
		assert.NotEqual(t, a.ID, d.HoldingID)
	}
	assert.Len(t, svc.Dividends(), 1)
	assert.Len(t, svc.Holdings(), 1)

	reloaded := newTestService(t, kv)
	assert.Len(t, reloaded.Holdings(), 1)
	assert.Len(t, reloaded.Dividends(), 1)

	ok, err = svc.DeleteHolding(ctx, 999)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_UpdateHolding(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newTestStore(t))
	h, _ := svc.AddHolding(ctx, msty())

	edit := h
	edit.CurrentSharePrice = 23.5
	edit.Color = ""
	ok, err := svc.UpdateHolding(ctx, edit)
	require.NoError(t, err)
	assert.True(t, ok)

	got, _ := svc.Holding(h.ID)
	assert.Equal(t, 23.5, got.CurrentSharePrice)
	assert.Equal(t, h.Color, got.Color, "color is stable")

	edit.ID = 77
	ok, err = svc.UpdateHolding(ctx, edit)
	require.NoError(t, err)
	assert.False(t, ok, "unknown id is a no-op")

	edit.ID = h.ID
	edit.Shares = -1
	_, err = svc.UpdateHolding(ctx, edit)
	assert.Error(t, err)
}

func TestService_Scenarios(t *testing.T) {
	ctx := context.Background()
	kv := newTestStore(t)
	svc := newTestService(t, kv)

	err := svc.SetCurrentScenario(ctx, "moonshot")
	assert.ErrorIs(t, err, models.ErrUnknownScenario)
	assert.Equal(t, models.ScenarioNeutral, svc.CurrentScenario())

	require.NoError(t, svc.SetCurrentScenario(ctx, "bullish"))
	require.NoError(t, svc.UpdateScenario(ctx, models.ScenarioBearish, models.Scenario{MonthlyDividend: 1, AnnualDividend: 10, Yield: 4, ShareGrowth: 1}))

	bad := models.DefaultScenarios()
	bad.Bullish.AnnualDividend = -3
	assert.Error(t, svc.UpdateScenarios(ctx, bad))

	reloaded := newTestService(t, kv)
	assert.Equal(t, models.ScenarioBullish, reloaded.CurrentScenario())
	assert.Equal(t, 10.0, reloaded.Scenarios().Bearish.AnnualDividend)
	assert.Equal(t, 42.0, reloaded.Scenarios().Bullish.AnnualDividend)
}

func TestService_ConcurrentScenarioUpdates(t *testing.T) {
	ctx := context.Background()
	kv := newTestStore(t)
	svc := newTestService(t, kv)

	names := []models.ScenarioName{models.ScenarioBullish, models.ScenarioNeutral, models.ScenarioBearish}
	const rounds = 25

	var wg sync.WaitGroup
	errs := make(chan error, len(names)*rounds)
	for i, name := range names {
		wg.Add(1)
		go func(base float64, name models.ScenarioName) {
			defer wg.Done()
			for r := 1; r <= rounds; r++ {
				sc := models.Scenario{MonthlyDividend: base, AnnualDividend: base * 12, Yield: float64(r), ShareGrowth: base}
				if err := svc.UpdateScenario(ctx, name, sc); err != nil {
					errs <- err
				}
			}
		}(float64(i+1), name)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("UpdateScenario failed: %v", err)
	}

	persisted := storage.Load(ctx, storage.NewGateway(kv, common.NewSilentLogger()), storage.KeyScenarios, models.Scenarios{})
	for i, name := range names {
		got, err := svc.Scenarios().Get(name)
		require.NoError(t, err)
		assert.Equal(t, float64(i+1), got.MonthlyDividend, "%s lost an update", name)
		assert.Equal(t, float64(rounds), got.Yield, name)

		stored, err := persisted.Get(name)
		require.NoError(t, err)
		assert.Equal(t, got, stored, name)
	}
}

func TestService_ProjectionWithFallingPrice(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newTestStore(t))

	_, err := svc.AddHolding(ctx, models.HoldingInput{
		Ticker:            "AAA",
		Name:              "Falling Co",
		InitialInvestment: 1000,
		InitialSharePrice: 10,
		CurrentSharePrice: 10,
		Shares:            100,
		PurchaseDate:      "2025-01-02",
	})
	require.NoError(t, err)

	require.NoError(t, svc.UpdateScenario(ctx, models.ScenarioBearish,
		models.Scenario{MonthlyDividend: 0.5, AnnualDividend: 6, Yield: 6, ShareGrowth: -3}))
	assert.Equal(t, -3.0, svc.Scenarios().Bearish.ShareGrowth)

	projections, err := svc.Projection(models.ScenarioBearish, 2)
	require.NoError(t, err)
	require.Len(t, projections, 1)

	points := projections[0].ProjectionData
	require.Len(t, points, 3)
	assert.InDelta(t, 9.7, points[1].SharePrice, 1e-9)
	assert.InDelta(t, 9.409, points[2].SharePrice, 1e-9)
	assert.InDelta(t, points[1].Shares*points[1].SharePrice, points[1].TotalValue, 1e-9)
	assert.Greater(t, points[1].Shares, points[0].Shares, "dividends still buy shares")

	err = svc.UpdateScenario(ctx, models.ScenarioBearish, models.Scenario{ShareGrowth: -150})
	assert.Error(t, err)
}

func TestService_QuotaFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, storage.WithQuota(newTestStore(t), 64))

	h, err := svc.AddHolding(ctx, msty())
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrQuotaExceeded)

	var saveErr *storage.SaveError
	require.True(t, errors.As(err, &saveErr))
	assert.Equal(t, storage.KeyHoldings, saveErr.Key)

	assert.Equal(t, 1, h.ID)
	assert.Len(t, svc.Holdings(), 1, "mutation stays in memory")
}

func TestService_Reports(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newTestStore(t), WithSeedData(true))

	summaries, totals := svc.Summary()
	require.Len(t, summaries, 1)
	assert.InDelta(t, 2885.71, summaries[0].TotalDividends, 1e-9)
	assert.InDelta(t, 30000, totals.TotalInvestment, 1e-9)

	upcoming := svc.Upcoming()
	require.Len(t, upcoming, 1)
	assert.Equal(t, "2025-03-14", upcoming[0].ExDate)

	projections, err := svc.Projection("", 10)
	require.NoError(t, err)
	require.Len(t, projections, 1)
	assert.Len(t, projections[0].ProjectionData, 11)

	_, err = svc.Projection("sideways", 10)
	assert.ErrorIs(t, err, ErrUnknownScenario)

	assert.Equal(t, models.ScenarioNeutral, svc.Trajectory().Scenario)
	assert.Len(t, svc.MonthlyDividends(), 1)

	require.NoError(t, svc.SetCurrentScenario(ctx, "bearish"))
	bear, err := svc.Projection("", 1)
	require.NoError(t, err)
	neutral, err := svc.Projection(models.ScenarioNeutral, 1)
	require.NoError(t, err)
	assert.Less(t, bear[0].ProjectionData[1].TotalValue, neutral[0].ProjectionData[1].TotalValue)
}
