package indicators

import (
	"fmt"

	"apexsim/internal/models"
)

// SMA calculates Simple Moving Average.
type SMA struct {
	period int
}

// NewSMA creates a new SMA indicator.
func NewSMA(period int) *SMA {
	return &SMA{period: period}
}

func (s *SMA) Name() string {
	return fmt.Sprintf("SMA_%d", s.period)
}

func (s *SMA) Period() int {
	return s.period
}

func (s *SMA) Calculate(candles []models.Candle) ([]float64, error) {
	if s.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < s.period {
		return nil, ErrInsufficientData
	}

	result := make([]float64, len(candles))
	closes := closePrices(candles)

	for i := s.period - 1; i < len(candles); i++ {
		result[i] = mean(closes[i-s.period+1 : i+1])
	}

	return result, nil
}

// EMA calculates Exponential Moving Average.
type EMA struct {
	period int
}

// NewEMA creates a new EMA indicator.
func NewEMA(period int) *EMA {
	return &EMA{period: period}
}

func (e *EMA) Name() string {
	return fmt.Sprintf("EMA_%d", e.period)
}

func (e *EMA) Period() int {
	return e.period
}

func (e *EMA) Calculate(candles []models.Candle) ([]float64, error) {
	if e.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < e.period {
		return nil, ErrInsufficientData
	}
	return CalculateEMA(closePrices(candles), e.period), nil
}

// CalculateEMA calculates EMA on raw values (helper for other indicators).
// The first value with enough history seeds from an SMA.
func CalculateEMA(values []float64, period int) []float64 {
	if len(values) < period || period <= 0 {
		return nil
	}

	result := make([]float64, len(values))
	multiplier := 2.0 / float64(period+1)

	result[period-1] = mean(values[:period])
	for i := period; i < len(values); i++ {
		result[i] = (values[i]-result[i-1])*multiplier + result[i-1]
	}

	return result
}

// MACD calculates Moving Average Convergence Divergence.
type MACD struct {
	fastPeriod   int
	slowPeriod   int
	signalPeriod int
}

// MACDResult holds the three MACD series.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// NewMACD creates a MACD indicator; NewDefaultMACD uses 12/26/9.
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{fastPeriod: fast, slowPeriod: slow, signalPeriod: signal}
}

func NewDefaultMACD() *MACD {
	return NewMACD(12, 26, 9)
}

func (m *MACD) Name() string {
	return fmt.Sprintf("MACD_%d_%d_%d", m.fastPeriod, m.slowPeriod, m.signalPeriod)
}

func (m *MACD) Period() int {
	return m.slowPeriod + m.signalPeriod
}

func (m *MACD) Calculate(candles []models.Candle) (*MACDResult, error) {
	if m.fastPeriod <= 0 || m.slowPeriod <= m.fastPeriod || m.signalPeriod <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < m.Period() {
		return nil, ErrInsufficientData
	}

	closes := closePrices(candles)
	fast := CalculateEMA(closes, m.fastPeriod)
	slow := CalculateEMA(closes, m.slowPeriod)

	macd := make([]float64, len(candles))
	for i := m.slowPeriod - 1; i < len(candles); i++ {
		macd[i] = fast[i] - slow[i]
	}

	// Signal is an EMA of the MACD line, seeded after the slow warm-up.
	signal := make([]float64, len(candles))
	seeded := CalculateEMA(macd[m.slowPeriod-1:], m.signalPeriod)
	copy(signal[m.slowPeriod-1:], seeded)

	histogram := make([]float64, len(candles))
	start := m.slowPeriod + m.signalPeriod - 2
	for i := start; i < len(candles); i++ {
		histogram[i] = macd[i] - signal[i]
	}

	return &MACDResult{MACD: macd, Signal: signal, Histogram: histogram}, nil
}
