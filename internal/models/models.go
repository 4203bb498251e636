// Package models provides domain models for the exchange simulator.
package models

import (
	"time"
)

// OrderSide represents the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType represents the type of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderFilled    OrderStatus = "FILLED"
	OrderCancelled OrderStatus = "CANCELLED"
	OrderRejected  OrderStatus = "REJECTED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderFilled || s == OrderCancelled || s == OrderRejected
}

// LimitStatus classifies a price against the symbol's daily price band.
type LimitStatus string

const (
	LimitNone LimitStatus = "NORMAL"
	LimitUp   LimitStatus = "LIMIT_UP"
	LimitDown LimitStatus = "LIMIT_DOWN"
)

// Tick represents one real-time market data event.
type Tick struct {
	Symbol    string
	LastPrice float64
	BidPrice  float64
	AskPrice  float64
	Volume    int64 // traded volume reported for the period
	PrevClose float64
	Timestamp time.Time
}

// Candle represents OHLCV data for a time period.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// DateKey returns a date as a sortable yyyymmdd integer. Trading-day
// arithmetic throughout the simulator compares these keys, not time.Time
// values, so two ticks inside the same session always land on one key.
func DateKey(t time.Time) int64 {
	return int64(t.Year())*10000 + int64(t.Month())*100 + int64(t.Day())
}
