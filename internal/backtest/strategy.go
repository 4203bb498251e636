package backtest

import (
	"apexsim/internal/analysis/indicators"
	"apexsim/internal/models"
)

// BuyAndHold buys once on the first bar with the given fraction of the
// starting cash and holds to the end.
type BuyAndHold struct {
	Fraction float64 // (0, 1], defaults to 1
}

func (s *BuyAndHold) Name() string { return "buy-and-hold" }

func (s *BuyAndHold) OnBar(e *Engine, candles []models.Candle, index int) {
	if index != 0 {
		return
	}
	fraction := s.Fraction
	if fraction <= 0 || fraction > 1 {
		fraction = 1
	}
	// Leave headroom for slippage and commission on the next bar's fill.
	budget := e.Cash() * fraction * 0.99
	qty := int64(budget / candles[index].Close)
	qty -= qty % 100
	if qty > 0 {
		e.Buy(qty, 0)
	}
}

// SMACross goes long when the fast moving average crosses above the slow
// one and exits on the opposite cross.
type SMACross struct {
	fast *indicators.SMA
	slow *indicators.SMA
}

// NewSMACross creates an SMA crossover strategy. fast must be shorter
// than slow; bad inputs fall back to 5/20.
func NewSMACross(fast, slow int) *SMACross {
	if fast <= 0 || slow <= fast {
		fast, slow = 5, 20
	}
	return &SMACross{
		fast: indicators.NewSMA(fast),
		slow: indicators.NewSMA(slow),
	}
}

func (s *SMACross) Name() string { return "sma-cross" }

func (s *SMACross) OnBar(e *Engine, candles []models.Candle, index int) {
	if index < s.slow.Period() {
		return
	}

	fastLine, err := s.fast.Calculate(candles)
	if err != nil {
		return
	}
	slowLine, err := s.slow.Calculate(candles)
	if err != nil {
		return
	}
	// Align the two series on their last elements.
	f0, f1 := fastLine[len(fastLine)-2], fastLine[len(fastLine)-1]
	s0, s1 := slowLine[len(slowLine)-2], slowLine[len(slowLine)-1]

	crossedUp := f0 <= s0 && f1 > s1
	crossedDown := f0 >= s0 && f1 < s1

	switch {
	case crossedUp && e.PositionQuantity() == 0:
		budget := e.Cash() * 0.99
		qty := int64(budget / candles[index].Close)
		qty -= qty % 100
		if qty > 0 {
			e.Buy(qty, 0)
		}
	case crossedDown && e.PositionQuantity() > 0:
		e.ClosePosition()
	}
}
