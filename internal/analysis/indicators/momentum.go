package indicators

import (
	"fmt"

	"apexsim/internal/models"
)

// RSI calculates the Relative Strength Index using Wilder's smoothing.
type RSI struct {
	period int
}

// NewRSI creates a new RSI indicator (14 is conventional).
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

func (r *RSI) Name() string {
	return fmt.Sprintf("RSI_%d", r.period)
}

func (r *RSI) Period() int {
	return r.period
}

func (r *RSI) Calculate(candles []models.Candle) ([]float64, error) {
	if r.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < r.period+1 {
		return nil, ErrInsufficientData
	}

	closes := closePrices(candles)
	result := make([]float64, len(candles))

	var avgGain, avgLoss float64
	for i := 1; i <= r.period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(r.period)
	avgLoss /= float64(r.period)
	result[r.period] = rsiValue(avgGain, avgLoss)

	for i := r.period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(r.period-1) + gain) / float64(r.period)
		avgLoss = (avgLoss*float64(r.period-1) + loss) / float64(r.period)
		result[i] = rsiValue(avgGain, avgLoss)
	}

	return result, nil
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// KDJ calculates the stochastic KDJ oscillator common in A-share charting.
type KDJ struct {
	period int
}

// KDJResult holds the K, D and J series.
type KDJResult struct {
	K []float64
	D []float64
	J []float64
}

// NewKDJ creates a KDJ indicator (9 is conventional).
func NewKDJ(period int) *KDJ {
	return &KDJ{period: period}
}

func (k *KDJ) Name() string {
	return fmt.Sprintf("KDJ_%d", k.period)
}

func (k *KDJ) Period() int {
	return k.period
}

func (k *KDJ) Calculate(candles []models.Candle) (*KDJResult, error) {
	if k.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < k.period {
		return nil, ErrInsufficientData
	}

	highs := highPrices(candles)
	lows := lowPrices(candles)
	closes := closePrices(candles)

	res := &KDJResult{
		K: make([]float64, len(candles)),
		D: make([]float64, len(candles)),
		J: make([]float64, len(candles)),
	}

	prevK, prevD := 50.0, 50.0
	for i := k.period - 1; i < len(candles); i++ {
		low := lows[i-k.period+1]
		high := highs[i-k.period+1]
		for j := i - k.period + 2; j <= i; j++ {
			if lows[j] < low {
				low = lows[j]
			}
			if highs[j] > high {
				high = highs[j]
			}
		}

		rsv := 50.0
		if high > low {
			rsv = (closes[i] - low) / (high - low) * 100
		}
		prevK = prevK*2/3 + rsv/3
		prevD = prevD*2/3 + prevK/3
		res.K[i] = prevK
		res.D[i] = prevD
		res.J[i] = 3*prevK - 2*prevD
	}

	return res, nil
}
