package performance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReturns(t *testing.T) {
	returns := Returns([]float64{100, 110, 99})
	assert.Len(t, returns, 2)
	assert.InDelta(t, 0.10, returns[0], 1e-9)
	assert.InDelta(t, -0.10, returns[1], 1e-9)

	assert.Nil(t, Returns([]float64{100}))
	assert.Nil(t, Returns(nil))
}

func TestTotalReturn(t *testing.T) {
	assert.InDelta(t, 0.25, TotalReturn([]float64{100, 110, 125}), 1e-9)
	assert.InDelta(t, -0.5, TotalReturn([]float64{100, 50}), 1e-9)
	assert.Zero(t, TotalReturn([]float64{100}))
	assert.Zero(t, TotalReturn([]float64{0, 50}))
}

func TestAnnualReturn(t *testing.T) {
	// One full year of periods compounds to the total itself.
	assert.InDelta(t, 0.10, AnnualReturn(0.10, 252), 1e-9)
	// Half a year doubles up.
	assert.InDelta(t, 0.21, AnnualReturn(0.10, 126), 1e-9)
	assert.Zero(t, AnnualReturn(0.10, 0))
}

func TestMaxDrawdown(t *testing.T) {
	cases := []struct {
		name  string
		curve []float64
		want  float64
	}{
		{"monotonic rise", []float64{100, 110, 120}, 0},
		{"single dip", []float64{100, 120, 90, 130}, 0.25},
		{"full wipe", []float64{100, 0}, 1},
		{"empty", nil, 0},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, MaxDrawdown(tc.curve), 1e-9, tc.name)
	}
}

func TestDrawdownSeries(t *testing.T) {
	dd := DrawdownSeries([]float64{100, 120, 90, 120})
	assert.InDelta(t, 0, dd[0], 1e-9)
	assert.InDelta(t, 0, dd[1], 1e-9)
	assert.InDelta(t, 0.25, dd[2], 1e-9)
	assert.InDelta(t, 0, dd[3], 1e-9)
}

func TestMaxDrawdownDuration(t *testing.T) {
	// Below the 120 peak for three periods before recovering.
	curve := []float64{100, 120, 110, 100, 115, 125}
	assert.Equal(t, 3, MaxDrawdownDuration(curve))
	assert.Equal(t, 0, MaxDrawdownDuration([]float64{1, 2, 3}))
}

func TestSharpeRatio(t *testing.T) {
	// Constant positive returns have zero deviation.
	assert.Zero(t, SharpeRatio([]float64{0.01, 0.01, 0.01}))

	returns := []float64{0.01, -0.005, 0.02, 0.003, -0.001}
	sharpe := SharpeRatio(returns)
	assert.Greater(t, sharpe, 0.0)
}

func TestSortinoIgnoresUpside(t *testing.T) {
	// All-positive returns have no downside deviation.
	assert.Zero(t, SortinoRatio([]float64{0.01, 0.02, 0.03}, 0))

	mixed := SortinoRatio([]float64{0.02, -0.01, 0.02, -0.01}, 0)
	assert.Greater(t, mixed, 0.0)
}

func TestValueAtRisk(t *testing.T) {
	returns := []float64{-0.10, -0.05, -0.02, 0.01, 0.02, 0.03, 0.04, 0.05, 0.06, 0.07}
	// At 95% confidence the cutoff lands on the worst 5% of observations.
	assert.InDelta(t, 0.10, ValueAtRisk(returns, 0.95), 1e-9)
	assert.Zero(t, ValueAtRisk(nil, 0.95))

	cvar := ConditionalVaR(returns, 0.95)
	assert.InDelta(t, 0.10, cvar, 1e-9)
}

func TestWinRateAndProfitLossRatio(t *testing.T) {
	returns := []float64{0.02, -0.01, 0.03, -0.02, 0, 0.01}
	assert.InDelta(t, 0.6, WinRate(returns), 1e-9)
	assert.InDelta(t, 0.02/0.015, ProfitLossRatio(returns), 1e-9)

	assert.Zero(t, WinRate([]float64{0, 0}))
	assert.Zero(t, ProfitLossRatio([]float64{0.01, 0.02}))
}

func TestOmegaRatio(t *testing.T) {
	assert.True(t, math.IsInf(OmegaRatio([]float64{0.01, 0.02}, 0), 1))
	omega := OmegaRatio([]float64{0.02, -0.01}, 0)
	assert.InDelta(t, 2.0, omega, 1e-9)
}

func TestSummarize(t *testing.T) {
	curve := []float64{1_000_000, 1_010_000, 1_005_000, 1_020_000, 1_015_000, 1_030_000}
	s := Summarize(curve)

	assert.InDelta(t, 0.03, s.TotalReturn, 1e-9)
	assert.Greater(t, s.AnnualReturn, 0.0)
	assert.Greater(t, s.Volatility, 0.0)
	assert.Greater(t, s.MaxDrawdown, 0.0)
	assert.InDelta(t, 0.6, s.WinRate, 1e-9)
}
