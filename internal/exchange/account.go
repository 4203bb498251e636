package exchange

import (
	"errors"
	"sync"

	"apexsim/internal/models"
)

// Sanity bounds on position mutations; values beyond these are treated as
// caller bugs and rejected.
const (
	maxPositionVolume = int64(1_000_000_000)
	maxPositionPrice  = 1_000_000.0
)

// ErrInvalidCapital is returned when an account is created with a
// non-positive initial capital.
var ErrInvalidCapital = errors.New("initial capital must be positive")

// Account is the ledger for one simulated account: cash in its three states
// (available, frozen, withdrawable), positions with T+1 availability, and
// realized P&L. All monetary amounts are rounded to the cent at every
// mutation boundary so floating-point drift never compounds.
type Account struct {
	mu sync.Mutex

	id              string
	initialCapital  float64
	availableCash   float64
	frozenCash      float64
	withdrawable    float64
	todaySellAmount float64
	realizedPnL     float64

	positions map[string]*models.Position
}

// NewAccount creates a ledger with the given initial capital, all of it
// available and withdrawable.
func NewAccount(id string, initialCapital float64) (*Account, error) {
	if initialCapital <= 0 {
		return nil, ErrInvalidCapital
	}
	return &Account{
		id:             id,
		initialCapital: initialCapital,
		availableCash:  initialCapital,
		withdrawable:   initialCapital,
		positions:      make(map[string]*models.Position),
	}, nil
}

// ID returns the account identifier.
func (a *Account) ID() string { return a.id }

// FreezeCash moves amount from available to frozen cash. It fails without
// state change on negative input or insufficient available cash.
func (a *Account) FreezeCash(amount float64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if amount < 0 {
		return false
	}
	amount = roundCent(amount)
	if a.availableCash < amount {
		return false
	}
	a.availableCash = roundCent(a.availableCash - amount)
	a.frozenCash = roundCent(a.frozenCash + amount)
	return true
}

// UnfreezeCash moves min(amount, frozen) back to available cash. Negative
// input is a no-op; frozen cash never goes negative.
func (a *Account) UnfreezeCash(amount float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if amount < 0 {
		return
	}
	amount = roundCent(amount)
	if amount > a.frozenCash {
		amount = a.frozenCash
	}
	a.frozenCash = roundCent(a.frozenCash - amount)
	a.availableCash = roundCent(a.availableCash + amount)
}

// DeductCash removes amount from available cash, failing without state
// change if the balance is insufficient. Used for fill costs and fees.
func (a *Account) DeductCash(amount float64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if amount < 0 {
		return false
	}
	amount = roundCent(amount)
	if a.availableCash < amount {
		return false
	}
	a.availableCash = roundCent(a.availableCash - amount)
	return true
}

// creditCash adds amount back to available cash. Used to unwind a deduction
// when a later step of the same commit fails.
func (a *Account) creditCash(amount float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if amount <= 0 {
		return
	}
	a.availableCash = roundCent(a.availableCash + amount)
}

// AddPosition records a buy fill: creates the position on first buy (with
// zero available volume, locked by T+1) or folds the lot into the weighted
// average cost of an existing one. The earliest buy date is never reset.
func (a *Account) AddPosition(symbol string, volume int64, price float64, buyDate int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if symbol == "" || volume <= 0 || price <= 0 {
		return false
	}
	if volume > maxPositionVolume || price > maxPositionPrice {
		return false
	}

	price = roundCent(price)
	cost := roundCent(float64(volume) * price)

	pos, ok := a.positions[symbol]
	if !ok {
		a.positions[symbol] = &models.Position{
			Symbol:        symbol,
			TotalVolume:   volume,
			AvgCost:       price,
			CurrentPrice:  price,
			MarketValue:   cost,
			UnrealizedPnL: 0,
			BuyDate:       buyDate,
		}
		return true
	}

	totalCost := float64(pos.TotalVolume)*pos.AvgCost + cost
	pos.TotalVolume += volume
	pos.AvgCost = roundCent(totalCost / float64(pos.TotalVolume))
	pos.MarketValue = roundCent(float64(pos.TotalVolume) * pos.CurrentPrice)
	pos.UnrealizedPnL = roundCent(pos.MarketValue - float64(pos.TotalVolume)*pos.AvgCost)
	return true
}

// ReducePosition records a sell fill of volume shares at sellPrice. It
// credits the proceeds to available cash (counted toward today's sell
// amount, withdrawable only after settlement), realizes P&L against the
// weighted average cost, consumes the sell-order hold, and deletes the
// position when it reaches zero. The realized P&L for this fill is
// returned; ok is false without state change when the position is missing
// or too small.
func (a *Account) ReducePosition(symbol string, volume int64, sellPrice float64) (realizedPnL float64, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if volume <= 0 || sellPrice <= 0 {
		return 0, false
	}
	pos, exists := a.positions[symbol]
	if !exists || pos.TotalVolume < volume {
		return 0, false
	}

	sellPrice = roundCent(sellPrice)
	cost := roundCent(float64(volume) * pos.AvgCost)
	revenue := roundCent(float64(volume) * sellPrice)
	realizedPnL = roundCent(revenue - cost)

	a.realizedPnL = roundCent(a.realizedPnL + realizedPnL)
	a.availableCash = roundCent(a.availableCash + revenue)
	a.todaySellAmount = roundCent(a.todaySellAmount + revenue)

	// Sold shares come out of the frozen (order-held) bucket first, then
	// out of available, so total == available + frozen survives for
	// settled positions.
	fromFrozen := volume
	if fromFrozen > pos.FrozenVolume {
		fromFrozen = pos.FrozenVolume
	}
	pos.FrozenVolume -= fromFrozen
	rest := volume - fromFrozen
	if rest > pos.AvailableVolume {
		rest = pos.AvailableVolume
	}
	pos.AvailableVolume -= rest
	pos.TotalVolume -= volume

	if pos.TotalVolume == 0 {
		delete(a.positions, symbol)
		return realizedPnL, true
	}
	pos.MarketValue = roundCent(float64(pos.TotalVolume) * pos.CurrentPrice)
	pos.UnrealizedPnL = roundCent(pos.MarketValue - float64(pos.TotalVolume)*pos.AvgCost)
	return realizedPnL, true
}

// UpdatePositionPrice marks one symbol's position to a new price,
// recomputing market value and unrealized P&L. Unknown symbols are ignored.
func (a *Account) UpdatePositionPrice(symbol string, price float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	pos, ok := a.positions[symbol]
	if !ok {
		return
	}
	pos.CurrentPrice = roundCent(price)
	pos.MarketValue = roundCent(float64(pos.TotalVolume) * pos.CurrentPrice)
	pos.UnrealizedPnL = roundCent(pos.MarketValue - float64(pos.TotalVolume)*pos.AvgCost)
}

// CanSell reports whether volume shares of symbol may be sold on
// currentDate. When the position's buy date is currentDate only already
// settled availability counts (normally zero, the T+1 rule); otherwise any
// share not held by an open order may go.
func (a *Account) CanSell(symbol string, volume int64, currentDate int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	pos, ok := a.positions[symbol]
	if !ok || volume <= 0 {
		return false
	}
	if pos.BuyDate == currentDate {
		return pos.AvailableVolume >= volume
	}
	return pos.TotalVolume-pos.FrozenVolume >= volume
}

// FreezePosition moves volume shares from available to frozen, holding them
// for an open sell order. Fails without state change when insufficient.
func (a *Account) FreezePosition(symbol string, volume int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if volume <= 0 {
		return false
	}
	pos, ok := a.positions[symbol]
	if !ok || pos.AvailableVolume < volume {
		return false
	}
	pos.AvailableVolume -= volume
	pos.FrozenVolume += volume
	return true
}

// UnfreezePosition returns up to volume held shares to the available
// bucket. Negative input and unknown symbols are no-ops.
func (a *Account) UnfreezePosition(symbol string, volume int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if volume <= 0 {
		return
	}
	pos, ok := a.positions[symbol]
	if !ok {
		return
	}
	if volume > pos.FrozenVolume {
		volume = pos.FrozenVolume
	}
	pos.FrozenVolume -= volume
	pos.AvailableVolume += volume
}

// UpdateAvailableVolume unlocks T+1 volume for every position whose buy
// date is strictly before currentDate: available becomes total minus the
// order-held shares.
func (a *Account) UpdateAvailableVolume(currentDate int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.unlockSettled(currentDate)
}

// DailySettlement performs the session rollover: yesterday's sell proceeds
// become withdrawable, the daily sell counter resets, and T+1 volume
// unlocks. Call exactly once per session before any new order submission.
func (a *Account) DailySettlement(currentDate int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.withdrawable = a.availableCash
	a.todaySellAmount = 0
	a.unlockSettled(currentDate)
}

func (a *Account) unlockSettled(currentDate int64) {
	for _, pos := range a.positions {
		if pos.BuyDate < currentDate {
			pos.AvailableVolume = pos.TotalVolume - pos.FrozenVolume
		}
	}
}

// Position returns a copy of the position for symbol; ok is false when the
// account holds none.
func (a *Account) Position(symbol string) (models.Position, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	pos, exists := a.positions[symbol]
	if !exists {
		return models.Position{}, false
	}
	return *pos, true
}

// AllPositions returns copies of every open position.
func (a *Account) AllPositions() []models.Position {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]models.Position, 0, len(a.positions))
	for _, pos := range a.positions {
		out = append(out, *pos)
	}
	return out
}

// TotalAssets returns available cash + frozen cash + the market value of
// every position.
func (a *Account) TotalAssets() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	total := a.availableCash + a.frozenCash
	for _, pos := range a.positions {
		total += pos.MarketValue
	}
	return roundCent(total)
}

// AvailableCash returns cash usable for new buys.
func (a *Account) AvailableCash() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.availableCash
}

// FrozenCash returns cash held by pending buy orders.
func (a *Account) FrozenCash() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frozenCash
}

// WithdrawableCash returns cash eligible for withdrawal (settled funds).
func (a *Account) WithdrawableCash() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.withdrawable
}

// InitialCapital returns the account's starting capital.
func (a *Account) InitialCapital() float64 { return a.initialCapital }

// RealizedPnL returns cumulative realized profit and loss.
func (a *Account) RealizedPnL() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.realizedPnL
}

// UnrealizedPnL returns the sum of unrealized P&L across positions.
func (a *Account) UnrealizedPnL() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	var total float64
	for _, pos := range a.positions {
		total += pos.UnrealizedPnL
	}
	return roundCent(total)
}

// TotalPnL returns realized plus unrealized P&L.
func (a *Account) TotalPnL() float64 {
	return roundCent(a.RealizedPnL() + a.UnrealizedPnL())
}
