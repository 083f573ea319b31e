package risk

import (
	"errors"
	"math/rand"
	"testing"

	"tradecore/pkg/apperrors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSizePosition_CappedByExposure(t *testing.T) {
	cfg := DefaultConfig()
	balance := d("10000")
	entry := d("100")

	stop := DeriveStopLoss(entry, cfg)
	assert.True(t, stop.Equal(d("97")), "stop = %s", stop)

	size, err := SizePosition(balance, entry, stop, cfg)
	require.NoError(t, err)
	// raw size 200/3 = 66.67 is capped at 1000/100 = 10
	assert.True(t, size.Equal(d("10")), "size = %s", size)
}

func TestSizePosition_RawSizeWhenBelowCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RiskPerTradePercent = d("0.1")

	// risk 10 over distance 3 is 3.333..., below the cap of 10
	size, err := SizePosition(d("10000"), d("100"), d("97"), cfg)
	require.NoError(t, err)
	assert.True(t, size.GreaterThan(d("3.33")) && size.LessThan(d("3.34")), "size = %s", size)
}

func TestSizePosition_LotFloorExceedsBudget(t *testing.T) {
	cfg := DefaultConfig()

	// PENGU-like price: cap is 1000/0.0285 ≈ 35087 so the floor is not binding
	size, err := SizePosition(d("10000"), d("0.0285"), d("0.027645"), cfg)
	require.NoError(t, err)
	assert.True(t, size.GreaterThanOrEqual(d("1000")))

	// tiny balance: cap is 1/0.005 = 200 but the <0.01 band floors at 10000
	size, err = SizePosition(d("10"), d("0.005"), d("0.00485"), cfg)
	require.NoError(t, err)
	assert.True(t, size.Equal(d("10000")), "size = %s", size)
	cost := size.Mul(d("0.005"))
	assert.True(t, cost.GreaterThan(d("10").Mul(cfg.MaxPositionPercent).Div(hundred)),
		"floor is allowed to push cost above the exposure cap")
}

func TestSizePosition_InvalidParameters(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name                 string
		balance, entry, stop string
	}{
		{"zero stop distance", "10000", "100", "100"},
		{"zero balance", "0", "100", "97"},
		{"negative entry", "10000", "-1", "97"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SizePosition(d(tt.balance), d(tt.entry), d(tt.stop), cfg)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidRiskParameters), "err = %v", err)
		})
	}
}

func TestSizePosition_BoundsProperty(t *testing.T) {
	cfg := DefaultConfig()
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		balance := decimal.NewFromFloat(100 + rng.Float64()*1e6).Round(2)
		entry := decimal.NewFromFloat(0.001 + rng.Float64()*50000).Round(6)
		stop := entry.Mul(decimal.NewFromFloat(0.5 + rng.Float64()*0.49)).Round(8)
		if !stop.IsPositive() || !entry.GreaterThan(stop) {
			continue
		}

		size, err := SizePosition(balance, entry, stop, cfg)
		require.NoError(t, err)

		minLot := cfg.MinLotFor(entry)
		maxSize := balance.Mul(cfg.MaxPositionPercent).Div(hundred).Div(entry)
		assert.True(t, size.GreaterThanOrEqual(minLot), "size %s below min lot %s at %s", size, minLot, entry)
		if minLot.LessThanOrEqual(maxSize) {
			assert.True(t, size.LessThanOrEqual(maxSize), "size %s above cap %s at %s", size, maxSize, entry)
		}
	}
}

func TestMinLotFor_Bands(t *testing.T) {
	cfg := DefaultConfig()
	cases := map[string]string{
		"0.005":  "10000",
		"0.0285": "1000",
		"0.71":   "100",
		"4.18":   "10",
		"19.8":   "1",
		"245":    "0.1",
		"999.99": "0.1",
		"1000":   "0.01",
		"116900": "0.01",
	}
	for price, want := range cases {
		got := cfg.MinLotFor(d(price))
		assert.True(t, got.Equal(d(want)), "MinLotFor(%s) = %s, want %s", price, got, want)
	}
}

func TestMinLotFor_Monotonic(t *testing.T) {
	cfg := DefaultConfig()
	prices := []string{"0.001", "0.05", "0.5", "5", "50", "500", "5000", "50000"}
	prev := cfg.MinLotFor(d(prices[0]))
	for _, p := range prices[1:] {
		lot := cfg.MinLotFor(d(p))
		if lot.GreaterThan(prev) {
			t.Errorf("min lot rose from %s to %s at price %s", prev, lot, p)
		}
		prev = lot
	}
}

func TestDeriveTakeProfit(t *testing.T) {
	cfg := DefaultConfig()
	tp := DeriveTakeProfit(d("100"), cfg)
	assert.True(t, tp.Equal(d("106")), "tp = %s", tp)
}

func TestCheckExposure(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, CheckExposure(4, cfg).Allowed)
	assert.NoError(t, CheckExposure(0, cfg).Err())

	dec := CheckExposure(5, cfg)
	assert.False(t, dec.Allowed)
	assert.ErrorIs(t, dec.Err(), apperrors.ErrMaxPositionsReached)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.MaxPositions = 0
	assert.ErrorIs(t, cfg.Validate(), apperrors.ErrInvalidRiskParameters)

	cfg = DefaultConfig()
	cfg.LotBands = []LotBand{
		{Below: d("1"), MinLot: d("10")},
		{Below: d("10"), MinLot: d("100")},
		{Below: decimal.Zero, MinLot: d("1")},
	}
	assert.ErrorIs(t, cfg.Validate(), apperrors.ErrInvalidRiskParameters, "cheaper band must not have a smaller lot")

	cfg = DefaultConfig()
	cfg.LotBands = []LotBand{
		{Below: decimal.Zero, MinLot: d("1")},
		{Below: d("10"), MinLot: d("1")},
	}
	assert.ErrorIs(t, cfg.Validate(), apperrors.ErrInvalidRiskParameters, "open-ended band must be last")
}
