// Package performance provides stateless risk and return statistics over
// equity curves and return series.
package performance

import (
	"math"
	"sort"
)

// Trading days per year used for annualization.
const periodsPerYear = 252

// Summary aggregates the standard statistics for one equity curve.
type Summary struct {
	TotalReturn     float64
	AnnualReturn    float64
	Volatility      float64
	SharpeRatio     float64
	SortinoRatio    float64
	CalmarRatio     float64
	MaxDrawdown     float64
	MaxDrawdownDays int
	WinRate         float64
}

// Summarize computes the full statistics set for an equity curve.
func Summarize(equityCurve []float64) Summary {
	returns := Returns(equityCurve)
	total := TotalReturn(equityCurve)
	annual := AnnualReturn(total, len(equityCurve))
	maxDD := MaxDrawdown(equityCurve)

	return Summary{
		TotalReturn:     total,
		AnnualReturn:    annual,
		Volatility:      Volatility(returns),
		SharpeRatio:     SharpeRatio(returns),
		SortinoRatio:    SortinoRatio(returns, 0),
		CalmarRatio:     CalmarRatio(annual, maxDD),
		MaxDrawdown:     maxDD,
		MaxDrawdownDays: MaxDrawdownDuration(equityCurve),
		WinRate:         WinRate(returns),
	}
}

// Returns converts an equity curve into period-over-period simple returns.
func Returns(equityCurve []float64) []float64 {
	if len(equityCurve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(equityCurve)-1)
	for i := 1; i < len(equityCurve); i++ {
		if equityCurve[i-1] == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (equityCurve[i]-equityCurve[i-1])/equityCurve[i-1])
	}
	return returns
}

// TotalReturn is the overall return of the equity curve.
func TotalReturn(equityCurve []float64) float64 {
	if len(equityCurve) < 2 || equityCurve[0] == 0 {
		return 0
	}
	return (equityCurve[len(equityCurve)-1] - equityCurve[0]) / equityCurve[0]
}

// AnnualReturn compounds a total return over the number of observed periods
// into a yearly rate.
func AnnualReturn(totalReturn float64, periods int) float64 {
	if periods <= 0 || totalReturn <= -1 {
		return 0
	}
	years := float64(periods) / periodsPerYear
	if years <= 0 {
		return 0
	}
	return math.Pow(1+totalReturn, 1/years) - 1
}

// Volatility is the annualized standard deviation of period returns.
func Volatility(returns []float64) float64 {
	return stdDev(returns) * math.Sqrt(periodsPerYear)
}

// SharpeRatio is the annualized mean/stddev ratio of period returns, with a
// zero risk-free rate.
func SharpeRatio(returns []float64) float64 {
	sd := stdDev(returns)
	if sd == 0 {
		return 0
	}
	return mean(returns) / sd * math.Sqrt(periodsPerYear)
}

// SortinoRatio is the annualized excess return over the downside deviation
// below the risk-free rate.
func SortinoRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	downside := DownsideDeviation(returns, 0)
	annualDownside := downside * math.Sqrt(periodsPerYear)
	if annualDownside == 0 {
		return 0
	}
	annualMean := mean(returns) * periodsPerYear
	return (annualMean - riskFreeRate) / annualDownside
}

// CalmarRatio is annual return over maximum drawdown.
func CalmarRatio(annualReturn, maxDrawdown float64) float64 {
	if maxDrawdown <= 0 {
		return 0
	}
	return annualReturn / maxDrawdown
}

// MaxDrawdown is the largest peak-to-trough loss fraction of the curve.
func MaxDrawdown(equityCurve []float64) float64 {
	if len(equityCurve) == 0 {
		return 0
	}
	peak := equityCurve[0]
	maxDD := 0.0
	for _, value := range equityCurve {
		if value > peak {
			peak = value
		}
		if peak > 0 {
			if dd := (peak - value) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// DrawdownSeries returns the drawdown fraction at every point of the curve.
func DrawdownSeries(equityCurve []float64) []float64 {
	drawdowns := make([]float64, len(equityCurve))
	if len(equityCurve) == 0 {
		return drawdowns
	}
	peak := equityCurve[0]
	for i, value := range equityCurve {
		if value > peak {
			peak = value
		}
		if peak > 0 {
			drawdowns[i] = (peak - value) / peak
		}
	}
	return drawdowns
}

// MaxDrawdownDuration is the longest run of periods spent below a previous
// equity peak.
func MaxDrawdownDuration(equityCurve []float64) int {
	if len(equityCurve) == 0 {
		return 0
	}
	maxDuration, current := 0, 0
	peak := equityCurve[0]
	for _, value := range equityCurve {
		if value >= peak {
			peak = value
			if current > maxDuration {
				maxDuration = current
			}
			current = 0
		} else {
			current++
		}
	}
	if current > maxDuration {
		maxDuration = current
	}
	return maxDuration
}

// ValueAtRisk is the historical VaR at the given confidence, reported as a
// positive loss fraction.
func ValueAtRisk(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)

	index := int((1 - confidence) * float64(len(sorted)))
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return -sorted[index]
}

// ConditionalVaR is the mean loss beyond the VaR cutoff, reported as a
// positive loss fraction.
func ConditionalVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)

	cutoff := int((1 - confidence) * float64(len(sorted)))
	if cutoff == 0 {
		cutoff = 1
	}
	return -mean(sorted[:cutoff])
}

// WinRate is the fraction of non-zero return periods that were positive.
func WinRate(returns []float64) float64 {
	wins, losses := 0, 0
	for _, r := range returns {
		switch {
		case r > 0:
			wins++
		case r < 0:
			losses++
		}
	}
	if wins+losses == 0 {
		return 0
	}
	return float64(wins) / float64(wins+losses)
}

// ProfitLossRatio is the mean winning return over the mean losing return.
func ProfitLossRatio(returns []float64) float64 {
	var gains, losses []float64
	for _, r := range returns {
		switch {
		case r > 0:
			gains = append(gains, r)
		case r < 0:
			losses = append(losses, -r)
		}
	}
	if len(gains) == 0 || len(losses) == 0 {
		return 0
	}
	avgLoss := mean(losses)
	if avgLoss == 0 {
		return 0
	}
	return mean(gains) / avgLoss
}

// DownsideDeviation is the standard deviation of returns below threshold.
func DownsideDeviation(returns []float64, threshold float64) float64 {
	var sumSq float64
	count := 0
	for _, r := range returns {
		if r < threshold {
			diff := r - threshold
			sumSq += diff * diff
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(sumSq / float64(count))
}

// OmegaRatio is the probability-weighted gains over losses around a
// threshold return.
func OmegaRatio(returns []float64, threshold float64) float64 {
	var gains, losses float64
	for _, r := range returns {
		if r > threshold {
			gains += r - threshold
		} else {
			losses += threshold - r
		}
	}
	if losses == 0 {
		return math.Inf(1)
	}
	return gains / losses
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

func stdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var variance float64
	for _, v := range values {
		variance += (v - m) * (v - m)
	}
	return math.Sqrt(variance / float64(len(values)))
}
