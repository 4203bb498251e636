package models

import "time"

// Order represents one simulated order. Orders are owned exclusively by the
// exchange's order table; callers receive copies.
type Order struct {
	ID           string
	Symbol       string
	Side         OrderSide
	Type         OrderType
	Price        float64 // limit price, 0 for market orders
	Volume       int64
	FilledVolume int64
	FilledPrice  float64
	Status       OrderStatus
	Reason       string // reject reason, empty otherwise
	SubmittedAt  time.Time
	CancelledAt  time.Time
	FilledAt     time.Time

	// Per-order overrides; zero means "use the matcher default".
	CommissionRate float64
	SlippageRate   float64

	// FrozenCash is the exact reservation held against this order while it
	// is pending (buy orders only). Remembered here so release paths return
	// precisely what was taken instead of recomputing an estimate.
	FrozenCash float64
}

// Position represents holdings in one symbol.
//
// AvailableVolume counts settled shares not held by any open sell order;
// FrozenVolume counts shares held by open sell orders. Shares bought today
// are in neither bucket until the next session's settlement, so
// AvailableVolume+FrozenVolume == TotalVolume holds for settled positions
// and is <= TotalVolume otherwise.
type Position struct {
	Symbol          string
	TotalVolume     int64
	AvailableVolume int64
	FrozenVolume    int64
	AvgCost         float64
	CurrentPrice    float64
	MarketValue     float64
	UnrealizedPnL   float64
	BuyDate         int64 // earliest unresolved buy date, yyyymmdd
}

// TradeRecord is an immutable record of one fill.
type TradeRecord struct {
	TradeID     string
	OrderID     string
	Symbol      string
	Side        OrderSide
	Price       float64
	Volume      int64
	Commission  float64
	RealizedPnL float64 // sells only
	TradedAt    time.Time
}

// MatchStatus is the outcome class of one match attempt.
type MatchStatus int

const (
	// MatchFilled: the order fills completely at Price.
	MatchFilled MatchStatus = iota
	// MatchNotCrossed: a limit order whose price is not yet met; the order
	// stays pending.
	MatchNotCrossed
	// MatchLimitLocked: the quote is pinned at a daily price limit on the
	// order's side; the order should queue, not fail.
	MatchLimitLocked
	// MatchRejected: the order cannot fill on this or any later tick of the
	// same quote; Reason says why.
	MatchRejected
)

// MatchResult is the transient outcome of one match attempt. Never persisted.
type MatchResult struct {
	Status MatchStatus
	Price  float64
	Volume int64
	Reason string
}

// Filled reports whether the attempt produced a fill.
func (r MatchResult) Filled() bool { return r.Status == MatchFilled }
