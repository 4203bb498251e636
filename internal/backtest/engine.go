// Package backtest provides a simplified bar-driven backtest loop. Fills
// execute against candle closes with proportional slippage and commission
// but without price limits or settlement delay; those frictions belong to
// the tick-level exchange simulator.
package backtest

import (
	"fmt"
	"math"
	"time"

	"apexsim/internal/models"
	"apexsim/internal/performance"
)

// Config carries the engine's cost model.
type Config struct {
	InitialCapital float64
	CommissionRate float64
	MinCommission  float64
	SlippageRate   float64

	// Optional square-root market impact on top of proportional slippage.
	EnableMarketImpact bool
	MarketImpactCoef   float64
}

// DefaultConfig returns the conventional cost assumptions.
func DefaultConfig() Config {
	return Config{
		InitialCapital: 1_000_000,
		CommissionRate: 0.0003,
		MinCommission:  5.0,
		SlippageRate:   0.001,
	}
}

// Trade records one backtest fill.
type Trade struct {
	Symbol     string
	Side       models.OrderSide
	Quantity   int64
	Price      float64
	Commission float64
	Slippage   float64
	Timestamp  time.Time
}

// Result aggregates one backtest run.
type Result struct {
	Summary         performance.Summary
	EquityCurve     []float64
	Timestamps      []time.Time
	Trades          []Trade
	TotalCommission float64
	TotalSlippage   float64
	FinalEquity     float64
}

// Strategy reacts to each bar by placing orders on the engine. Orders
// placed during OnBar execute against the next bar.
type Strategy interface {
	Name() string
	OnBar(e *Engine, candles []models.Candle, index int)
}

type pendingOrder struct {
	side     models.OrderSide
	quantity int64
	price    float64 // limit price, 0 for market
}

type holding struct {
	quantity int64
	avgPrice float64
}

// Engine runs one single-symbol strategy over a candle series.
type Engine struct {
	cfg    Config
	symbol string

	cash    float64
	pos     holding
	pending []pendingOrder

	trades      []Trade
	equityCurve []float64
	timestamps  []time.Time
	currentBar  models.Candle
}

// NewEngine creates a backtest engine.
func NewEngine(cfg Config) *Engine {
	if cfg.InitialCapital <= 0 {
		cfg.InitialCapital = DefaultConfig().InitialCapital
	}
	if cfg.MinCommission <= 0 {
		cfg.MinCommission = DefaultConfig().MinCommission
	}
	return &Engine{cfg: cfg}
}

// Run replays the candles through the strategy and returns the aggregated
// result. State from any previous run is discarded.
func (e *Engine) Run(symbol string, candles []models.Candle, strategy Strategy) (*Result, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("no candles for %s", symbol)
	}

	e.symbol = symbol
	e.cash = e.cfg.InitialCapital
	e.pos = holding{}
	e.pending = nil
	e.trades = nil
	e.equityCurve = nil
	e.timestamps = nil

	for i, bar := range candles {
		e.currentBar = bar

		// Orders queued on the previous bar execute against this one.
		orders := e.pending
		e.pending = nil
		for _, order := range orders {
			e.execute(order, bar)
		}

		e.recordEquity(bar)
		strategy.OnBar(e, candles[:i+1], i)
	}

	// Liquidate whatever is left so the final equity is realized.
	if e.pos.quantity > 0 {
		last := candles[len(candles)-1]
		e.execute(pendingOrder{side: models.OrderSideSell, quantity: e.pos.quantity}, last)
		e.equityCurve[len(e.equityCurve)-1] = e.equity(last)
	}

	result := &Result{
		Summary:     performance.Summarize(e.equityCurve),
		EquityCurve: e.equityCurve,
		Timestamps:  e.timestamps,
		Trades:      e.trades,
		FinalEquity: e.equityCurve[len(e.equityCurve)-1],
	}
	for _, trade := range e.trades {
		result.TotalCommission += trade.Commission
		result.TotalSlippage += trade.Slippage
	}
	return result, nil
}

// Buy queues a buy for execution on the next bar. limitPrice 0 means a
// market order.
func (e *Engine) Buy(quantity int64, limitPrice float64) {
	if quantity <= 0 {
		return
	}
	e.pending = append(e.pending, pendingOrder{side: models.OrderSideBuy, quantity: quantity, price: limitPrice})
}

// Sell queues a sell for execution on the next bar.
func (e *Engine) Sell(quantity int64, limitPrice float64) {
	if quantity <= 0 {
		return
	}
	e.pending = append(e.pending, pendingOrder{side: models.OrderSideSell, quantity: quantity, price: limitPrice})
}

// ClosePosition queues a market sell of the whole holding.
func (e *Engine) ClosePosition() {
	if e.pos.quantity > 0 {
		e.Sell(e.pos.quantity, 0)
	}
}

// Cash returns the engine's current cash balance.
func (e *Engine) Cash() float64 { return e.cash }

// PositionQuantity returns the currently held share count.
func (e *Engine) PositionQuantity() int64 { return e.pos.quantity }

// PositionAvgPrice returns the holding's average entry price.
func (e *Engine) PositionAvgPrice() float64 { return e.pos.avgPrice }

// Equity returns cash plus the holding marked at the current bar's close.
func (e *Engine) Equity() float64 { return e.equity(e.currentBar) }

func (e *Engine) execute(order pendingOrder, bar models.Candle) {
	var execPrice float64
	switch {
	case order.price <= 0:
		execPrice = bar.Close
	case order.side == models.OrderSideBuy:
		if order.price < bar.Low {
			return
		}
		execPrice = math.Min(order.price, bar.Close)
	default:
		if order.price > bar.High {
			return
		}
		execPrice = math.Max(order.price, bar.Close)
	}

	slippage := e.slippageCost(execPrice, order.quantity)
	perShare := slippage / float64(order.quantity)
	if order.side == models.OrderSideBuy {
		execPrice += perShare
	} else {
		execPrice -= perShare
	}

	notional := execPrice * float64(order.quantity)
	commission := e.commission(notional)

	switch order.side {
	case models.OrderSideBuy:
		required := notional + commission
		if required > e.cash {
			return
		}
		e.cash -= required
		if e.pos.quantity == 0 {
			e.pos = holding{quantity: order.quantity, avgPrice: execPrice}
		} else {
			totalCost := e.pos.avgPrice*float64(e.pos.quantity) + notional
			e.pos.quantity += order.quantity
			e.pos.avgPrice = totalCost / float64(e.pos.quantity)
		}
	case models.OrderSideSell:
		if e.pos.quantity < order.quantity {
			return
		}
		e.cash += notional - commission
		e.pos.quantity -= order.quantity
		if e.pos.quantity == 0 {
			e.pos.avgPrice = 0
		}
	}

	e.trades = append(e.trades, Trade{
		Symbol:     e.symbol,
		Side:       order.side,
		Quantity:   order.quantity,
		Price:      execPrice,
		Commission: commission,
		Slippage:   slippage,
		Timestamp:  bar.Timestamp,
	})
}

func (e *Engine) commission(notional float64) float64 {
	c := notional * e.cfg.CommissionRate
	if c < e.cfg.MinCommission {
		c = e.cfg.MinCommission
	}
	return c
}

func (e *Engine) slippageCost(price float64, quantity int64) float64 {
	cost := price * float64(quantity) * e.cfg.SlippageRate
	if e.cfg.EnableMarketImpact {
		cost += price * math.Sqrt(float64(quantity)) * e.cfg.MarketImpactCoef
	}
	return cost
}

func (e *Engine) equity(bar models.Candle) float64 {
	return e.cash + float64(e.pos.quantity)*bar.Close
}

func (e *Engine) recordEquity(bar models.Candle) {
	e.equityCurve = append(e.equityCurve, e.equity(bar))
	e.timestamps = append(e.timestamps, bar.Timestamp)
}
