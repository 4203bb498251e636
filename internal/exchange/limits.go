// Package exchange implements a single-account simulated securities
// exchange: account ledger with T+1 settlement, order matching with slippage
// and fees, daily price-limit handling with FIFO queuing, and the
// orchestrator that drives the order lifecycle from inbound ticks.
package exchange

import (
	"math"
	"strings"

	"apexsim/internal/models"
)

// Board-dependent daily price-limit percentages for A-share listings.
const (
	limitPctDefault    = 0.10 // main board
	limitPctST         = 0.05 // special-treatment flagged names
	limitPctStar       = 0.20 // STAR market, 688 prefix
	limitPctGrowth     = 0.20 // growth board, 300 prefix
	limitPctRegional   = 0.30 // Beijing exchange, 8/4 prefix
	limitPriceEpsilon  = 0.01 // a price within one cent of the band edge counts as locked
)

// LimitPct returns the daily price-limit percentage for a symbol, resolved
// from its code. Exchange prefixes such as "sh." or "sz." are ignored.
func LimitPct(symbol string) float64 {
	upper := strings.ToUpper(symbol)
	if strings.Contains(upper, "ST") {
		return limitPctST
	}

	code := bareCode(symbol)
	switch {
	case strings.HasPrefix(code, "688"):
		return limitPctStar
	case strings.HasPrefix(code, "300"):
		return limitPctGrowth
	case strings.HasPrefix(code, "8"), strings.HasPrefix(code, "4"):
		return limitPctRegional
	default:
		return limitPctDefault
	}
}

// LimitBand returns the permitted (low, high) price band for a symbol given
// its previous close, both rounded to the cent. A non-positive previous
// close yields (0, 0), meaning no band applies.
func LimitBand(symbol string, prevClose float64) (low, high float64) {
	if prevClose <= 0 {
		return 0, 0
	}
	pct := LimitPct(symbol)
	return roundCent(prevClose * (1 - pct)), roundCent(prevClose * (1 + pct))
}

// Classify reports whether a price sits at the symbol's limit-up or
// limit-down edge. Prices are considered at the limit when within one cent
// of the band edge; with no previous close the price is always normal.
func Classify(symbol string, price, prevClose float64) models.LimitStatus {
	if prevClose <= 0 {
		return models.LimitNone
	}
	low, high := LimitBand(symbol, prevClose)
	switch {
	case math.Abs(price-high) < limitPriceEpsilon:
		return models.LimitUp
	case math.Abs(price-low) < limitPriceEpsilon:
		return models.LimitDown
	default:
		return models.LimitNone
	}
}

// bareCode strips an exchange prefix like "sh." / "SZ." from a symbol code.
func bareCode(symbol string) string {
	if i := strings.IndexByte(symbol, '.'); i >= 0 && i <= 3 {
		return symbol[i+1:]
	}
	return symbol
}

// isShanghaiBoard reports whether a symbol trades on the board that charges
// a per-share transfer fee (code starting with 6, or an "sh." prefix).
func isShanghaiBoard(symbol string) bool {
	if strings.HasPrefix(strings.ToLower(symbol), "sh.") {
		return true
	}
	return strings.HasPrefix(bareCode(symbol), "6")
}

// roundCent rounds a monetary value to the currency's minor unit.
func roundCent(v float64) float64 {
	return math.Round(v*100) / 100
}
