package exchange

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	"apexsim/internal/models"
)

// Property: freezing then unfreezing the same amount restores available
// cash to its prior exact value, for any amount within the balance.
func TestProperty_FreezeUnfreezeCashRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("freeze/unfreeze round trip is exact", prop.ForAll(
		func(amount float64) bool {
			acc, err := NewAccount("prop", 1_000_000)
			if err != nil {
				return false
			}
			before := acc.AvailableCash()
			if !acc.FreezeCash(amount) {
				return false
			}
			acc.UnfreezeCash(amount)
			return acc.AvailableCash() == before && acc.FrozenCash() == 0
		},
		gen.Float64Range(0, 1_000_000),
	))

	properties.TestingRun(t)
}

// Property: for any settled position, total volume equals available plus
// frozen volume, across freeze/unfreeze/reduce sequences.
func TestProperty_PositionBucketInvariant(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("total == available + frozen after settlement", prop.ForAll(
		func(lots int64, frozenLots int64, sellLots int64) bool {
			volume := lots * 100
			acc, err := NewAccount("prop", 100_000_000)
			if err != nil {
				return false
			}
			if !acc.AddPosition("000001", volume, 10.0, 20240102) {
				return false
			}
			acc.UpdateAvailableVolume(20240103)

			freeze := (frozenLots % lots) * 100
			if freeze > 0 && !acc.FreezePosition("000001", freeze) {
				return false
			}
			sell := (sellLots % lots) * 100
			if sell > 0 {
				if _, ok := acc.ReducePosition("000001", sell, 11.0); !ok {
					return false
				}
			}

			pos, ok := acc.Position("000001")
			if !ok {
				return sell == volume
			}
			return pos.TotalVolume == pos.AvailableVolume+pos.FrozenVolume
		},
		gen.Int64Range(1, 1000),
		gen.Int64Range(0, 1000),
		gen.Int64Range(0, 1000),
	))

	properties.TestingRun(t)
}

// Property: the ledger's total-assets accessor always equals available cash
// plus frozen cash plus the summed position market value, within one cent.
func TestProperty_TotalAssetsConsistent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("total assets match their components", prop.ForAll(
		func(freeze float64, lots int64, price float64, mark float64) bool {
			acc, err := NewAccount("prop", 10_000_000)
			if err != nil {
				return false
			}
			if !acc.FreezeCash(freeze) {
				return false
			}
			volume := lots * 100
			if !acc.AddPosition("000001", volume, price, 20240102) {
				return false
			}
			acc.UpdatePositionPrice("000001", mark)

			var mv float64
			for _, pos := range acc.AllPositions() {
				mv += pos.MarketValue
			}
			want := acc.AvailableCash() + acc.FrozenCash() + mv
			return math.Abs(acc.TotalAssets()-want) <= 0.01
		},
		gen.Float64Range(0, 1_000_000),
		gen.Int64Range(1, 1000),
		gen.Float64Range(0.01, 500),
		gen.Float64Range(0.01, 500),
	))

	properties.TestingRun(t)
}

// Property: slippage never favors the taker — buy fills at or above the
// base price, sell fills at or below, and both stay inside the worst-case
// band for the effective rate.
func TestProperty_SlippageAlwaysCostsTaker(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)
	matcher := NewMatcher(0.001, 0, 0, time.Now().UnixNano())

	properties.Property("buy slippage is a markup, sell a markdown", prop.ForAll(
		func(base float64, volume int64) bool {
			rate := 0.001
			if volume > 10_000 {
				rate *= 1.5
			}
			buy := matcher.CalculateSlippage(models.OrderSideBuy, base, volume, 0.001)
			if buy < base-0.01 || buy > base*(1+rate)+0.01 {
				return false
			}
			sell := matcher.CalculateSlippage(models.OrderSideSell, base, volume, 0.001)
			return sell <= base+0.01 && sell >= base*(1-rate)-0.01
		},
		gen.Float64Range(0.01, 10_000),
		gen.Int64Range(100, 100_000),
	))

	properties.TestingRun(t)
}

// Property: every order reachable through the public surface is in one of
// the four lifecycle states, and terminal orders never hold frozen cash.
func TestProperty_TerminalOrdersHoldNothing(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("terminal orders release their cash hold", prop.ForAll(
		func(lots int64, cancel bool) bool {
			ex, err := New(Config{AccountID: "prop", InitialCapital: 10_000_000, Seed: 7}, zerolog.Nop())
			if err != nil {
				return false
			}
			ex.UpdateDaily(20240102)
			tick := models.Tick{
				Symbol: "000001", LastPrice: 10, BidPrice: 9.99, AskPrice: 10,
				Volume: 10_000_000, PrevClose: 10,
				Timestamp: time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC),
			}
			ex.OnTick(tick)

			order, err := ex.SubmitOrder(OrderRequest{
				Symbol: "000001", Side: models.OrderSideBuy, Type: models.OrderTypeMarket, Volume: lots * 100,
			})
			if err != nil {
				return false
			}
			if cancel {
				ex.CancelOrder(order.ID)
			}
			ex.OnTick(tick)

			final, ok := ex.Order(order.ID)
			if !ok || !final.Status.IsTerminal() {
				return false
			}
			return final.FrozenCash == 0 && ex.FrozenCash() == 0
		},
		gen.Int64Range(1, 100),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
