package indicators

import (
	"fmt"
	"math"

	"apexsim/internal/models"
)

// BollingerBands calculates Bollinger Bands.
type BollingerBands struct {
	period     int
	multiplier float64
}

// BollingerResult holds the three band series.
type BollingerResult struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// NewBollingerBands creates a Bollinger Bands indicator (20, 2.0 is
// conventional).
func NewBollingerBands(period int, multiplier float64) *BollingerBands {
	return &BollingerBands{period: period, multiplier: multiplier}
}

func (b *BollingerBands) Name() string {
	return fmt.Sprintf("BOLL_%d_%.1f", b.period, b.multiplier)
}

func (b *BollingerBands) Period() int {
	return b.period
}

func (b *BollingerBands) Calculate(candles []models.Candle) (*BollingerResult, error) {
	if b.period <= 0 || b.multiplier <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < b.period {
		return nil, ErrInsufficientData
	}

	closes := closePrices(candles)
	res := &BollingerResult{
		Upper:  make([]float64, len(candles)),
		Middle: make([]float64, len(candles)),
		Lower:  make([]float64, len(candles)),
	}

	for i := b.period - 1; i < len(candles); i++ {
		window := closes[i-b.period+1 : i+1]
		m := mean(window)
		sd := stdDev(window)
		res.Middle[i] = m
		res.Upper[i] = m + b.multiplier*sd
		res.Lower[i] = m - b.multiplier*sd
	}

	return res, nil
}

// ATR calculates the Average True Range with Wilder's smoothing.
type ATR struct {
	period int
}

// NewATR creates an ATR indicator (14 is conventional).
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

func (a *ATR) Name() string {
	return fmt.Sprintf("ATR_%d", a.period)
}

func (a *ATR) Period() int {
	return a.period
}

func (a *ATR) Calculate(candles []models.Candle) ([]float64, error) {
	if a.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < a.period+1 {
		return nil, ErrInsufficientData
	}

	tr := make([]float64, len(candles))
	tr[0] = candles[0].High - candles[0].Low
	for i := 1; i < len(candles); i++ {
		highLow := candles[i].High - candles[i].Low
		highClose := math.Abs(candles[i].High - candles[i-1].Close)
		lowClose := math.Abs(candles[i].Low - candles[i-1].Close)
		tr[i] = math.Max(highLow, math.Max(highClose, lowClose))
	}

	result := make([]float64, len(candles))
	result[a.period] = mean(tr[1 : a.period+1])
	for i := a.period + 1; i < len(candles); i++ {
		result[i] = (result[i-1]*float64(a.period-1) + tr[i]) / float64(a.period)
	}

	return result, nil
}

// HistoricalVolatility calculates annualized close-to-close volatility over
// a rolling window, assuming 252 trading days.
type HistoricalVolatility struct {
	period int
}

// NewHistoricalVolatility creates a historical volatility indicator.
func NewHistoricalVolatility(period int) *HistoricalVolatility {
	return &HistoricalVolatility{period: period}
}

func (h *HistoricalVolatility) Name() string {
	return fmt.Sprintf("HV_%d", h.period)
}

func (h *HistoricalVolatility) Period() int {
	return h.period
}

func (h *HistoricalVolatility) Calculate(candles []models.Candle) ([]float64, error) {
	if h.period <= 1 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < h.period+1 {
		return nil, ErrInsufficientData
	}

	closes := closePrices(candles)
	logReturns := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		if closes[i-1] > 0 && closes[i] > 0 {
			logReturns[i] = math.Log(closes[i] / closes[i-1])
		}
	}

	result := make([]float64, len(candles))
	for i := h.period; i < len(candles); i++ {
		window := logReturns[i-h.period+1 : i+1]
		result[i] = stdDev(window) * math.Sqrt(252)
	}

	return result, nil
}
