package exchange

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"apexsim/internal/models"
)

// Matcher defaults, mirroring common A-share brokerage terms.
const (
	DefaultSlippageRate   = 0.0001  // 1 bp
	DefaultCommissionRate = 0.00025 // 2.5 bp
	DefaultStampTaxRate   = 0.001   // sells only
	minCommission         = 5.0
	transferFeePerShare   = 0.00002 // Shanghai board only

	lotSize            = int64(100)
	maxOrderVolume     = int64(1_000_000)
	largeOrderVolume   = int64(10_000)
	largeOrderPenalty  = 1.5
	liquidityCapDenom  = int64(10) // an order may take at most 1/10 of tick volume
)

// Matcher is the stateless-per-call decision engine: it validates an order
// against a quote, decides the fill price via a randomized slippage model,
// and computes fees. Each Matcher owns its own seeded RNG so concurrent
// matchers never interfere and tests stay deterministic.
type Matcher struct {
	slippageRate   float64
	commissionRate float64
	stampTaxRate   float64
	rng            *rand.Rand
}

// NewMatcher creates a matcher with the given default rates and RNG seed.
// Non-positive rates fall back to the package defaults; a zero seed draws
// one from the clock so default-config runs do not share a slippage stream.
func NewMatcher(slippageRate, commissionRate, stampTaxRate float64, seed int64) *Matcher {
	if slippageRate <= 0 {
		slippageRate = DefaultSlippageRate
	}
	if commissionRate <= 0 {
		commissionRate = DefaultCommissionRate
	}
	if stampTaxRate <= 0 {
		stampTaxRate = DefaultStampTaxRate
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Matcher{
		slippageRate:   slippageRate,
		commissionRate: commissionRate,
		stampTaxRate:   stampTaxRate,
		rng:            rand.New(rand.NewSource(seed)),
	}
}

// ValidateOrderVolume checks an order's volume against exchange rules:
// positive, at most 1,000,000 shares, buys in whole lots of 100. Sells may
// be any remainder (so a position can be fully liquidated) but must not
// exceed availableVolume when a positive one is given.
func (m *Matcher) ValidateOrderVolume(volume int64, side models.OrderSide, availableVolume int64) error {
	if volume <= 0 {
		return fmt.Errorf("order volume must be positive, got %d", volume)
	}
	if volume > maxOrderVolume {
		return fmt.Errorf("order volume %d exceeds maximum %d", volume, maxOrderVolume)
	}
	if side == models.OrderSideBuy && volume%lotSize != 0 {
		return fmt.Errorf("buy volume %d is not a multiple of lot size %d", volume, lotSize)
	}
	if side == models.OrderSideSell && availableVolume > 0 && volume > availableVolume {
		return fmt.Errorf("sell volume %d exceeds available %d", volume, availableVolume)
	}
	return nil
}

// TryMatch decides whether an order fills against the given tick.
//
// A limit order whose price is not crossed yields MatchNotCrossed and stays
// pending. When checkPriceLimit is set and the base price sits at the daily
// limit on the order's side, the result is MatchLimitLocked so the caller
// can queue the order instead of rejecting it. Liquidity beyond 10% of the
// tick's reported volume is a hard reject.
func (m *Matcher) TryMatch(order *models.Order, tick models.Tick, checkPriceLimit bool) models.MatchResult {
	if err := m.ValidateOrderVolume(order.Volume, order.Side, 0); err != nil {
		return rejected(err.Error())
	}

	var basePrice float64
	switch order.Type {
	case models.OrderTypeMarket:
		if order.Side == models.OrderSideBuy {
			basePrice = tick.AskPrice
		} else {
			basePrice = tick.BidPrice
		}
		if basePrice <= 0 {
			return rejected("no valid tick price for market order")
		}
	case models.OrderTypeLimit:
		if order.Price <= 0 {
			return rejected("limit price must be positive")
		}
		if order.Side == models.OrderSideBuy {
			if tick.AskPrice > order.Price {
				return models.MatchResult{Status: models.MatchNotCrossed, Reason: "ask above buy limit"}
			}
		} else {
			if tick.BidPrice < order.Price {
				return models.MatchResult{Status: models.MatchNotCrossed, Reason: "bid below sell limit"}
			}
		}
		basePrice = order.Price
	default:
		return rejected(fmt.Sprintf("unknown order type %q", order.Type))
	}

	if checkPriceLimit {
		switch Classify(order.Symbol, basePrice, tick.PrevClose) {
		case models.LimitUp:
			if order.Side == models.OrderSideBuy {
				return models.MatchResult{Status: models.MatchLimitLocked, Reason: "price at limit up"}
			}
		case models.LimitDown:
			if order.Side == models.OrderSideSell {
				return models.MatchResult{Status: models.MatchLimitLocked, Reason: "price at limit down"}
			}
		}
	}

	if tick.Volume > 0 && order.Volume > tick.Volume/liquidityCapDenom {
		return rejected(fmt.Sprintf("volume %d exceeds liquidity cap %d", order.Volume, tick.Volume/liquidityCapDenom))
	}

	rate := order.SlippageRate
	if rate <= 0 {
		rate = m.slippageRate
	}
	filled := m.CalculateSlippage(order.Side, basePrice, order.Volume, rate)

	return models.MatchResult{Status: models.MatchFilled, Price: filled, Volume: order.Volume}
}

// CalculateSlippage applies the randomized slippage model to a base price:
// a uniform draw in [-rate, rate], with the rate inflated by 50% for orders
// above 10,000 shares, taken by absolute value and applied against the
// taker — a markup for buys, a markdown for sells. The result is rounded to
// the cent. A non-positive base price is returned unchanged; a non-positive
// rate falls back to the matcher default.
func (m *Matcher) CalculateSlippage(side models.OrderSide, basePrice float64, volume int64, rate float64) float64 {
	if basePrice <= 0 {
		return basePrice
	}
	if rate <= 0 {
		rate = m.slippageRate
	}
	if volume > largeOrderVolume {
		rate *= largeOrderPenalty
	}

	perturbation := math.Abs(rate * (m.rng.Float64()*2 - 1))
	if side == models.OrderSideSell {
		perturbation = -perturbation
	}
	return roundCent(basePrice * (1 + perturbation))
}

// CalculateTotalCommission computes the full fee for a fill: brokerage
// commission with a flat minimum, stamp duty on sells, and the per-share
// transfer fee on Shanghai-board symbols. The sum is rounded to the cent.
// A non-positive rate falls back to the matcher default.
func (m *Matcher) CalculateTotalCommission(side models.OrderSide, symbol string, price float64, volume int64, rate float64) float64 {
	if rate <= 0 {
		rate = m.commissionRate
	}
	notional := price * float64(volume)

	fee := notional * rate
	if fee < minCommission {
		fee = minCommission
	}
	if side == models.OrderSideSell {
		fee += notional * m.stampTaxRate
	}
	if isShanghaiBoard(symbol) {
		fee += float64(volume) * transferFeePerShare
	}
	return roundCent(fee)
}

func rejected(reason string) models.MatchResult {
	return models.MatchResult{Status: models.MatchRejected, Reason: reason}
}
