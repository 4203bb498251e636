package exchange

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apexerrors "apexsim/internal/errors"
	"apexsim/internal/logging"
	"apexsim/internal/models"
)

// Buffer added on top of the worst-case notional when reserving cash for a
// buy order, covering commission and transfer fees. The hold never drops
// below the flat minimum commission, which dominates on small notionals.
const reserveFeeBuffer = 0.003

// Config carries the knobs for one exchange instance.
type Config struct {
	AccountID      string
	InitialCapital float64
	SlippageRate   float64
	CommissionRate float64
	StampTaxRate   float64
	Seed           int64
}

// OrderRequest is a draft order as submitted by a strategy. Price is the
// limit price and must be zero for market orders. Rate overrides of zero
// mean "use the exchange defaults".
type OrderRequest struct {
	Symbol         string
	Side           models.OrderSide
	Type           models.OrderType
	Price          float64
	Volume         int64
	CommissionRate float64
	SlippageRate   float64
}

// Exchange is the orchestrator: it owns one account ledger, one matcher,
// one limit queue and the order table, and drives the order state machine
// (PENDING to FILLED, CANCELLED or REJECTED) from inbound ticks.
//
// All mutating and query methods take the instance lock, so a cancellation
// and a same-tick fill of the same order can never interleave: whichever
// acquires the lock first wins and the loser sees a terminal order. Log
// emission happens after the lock is released.
type Exchange struct {
	mu sync.Mutex

	account *Account
	matcher *Matcher
	queue   *LimitQueue

	orders   map[string]*models.Order
	orderSeq []string // order IDs in submission order, time priority
	trades   []models.TradeRecord

	lastTick    map[string]models.Tick
	currentDate int64

	orderCounter uint64
	tradeCounter uint64

	log zerolog.Logger
}

// New creates an exchange with a fresh account ledger.
func New(cfg Config, logger zerolog.Logger) (*Exchange, error) {
	account, err := NewAccount(cfg.AccountID, cfg.InitialCapital)
	if err != nil {
		return nil, err
	}
	return &Exchange{
		account:  account,
		matcher:  NewMatcher(cfg.SlippageRate, cfg.CommissionRate, cfg.StampTaxRate, cfg.Seed),
		queue:    NewLimitQueue(),
		orders:   make(map[string]*models.Order),
		lastTick: make(map[string]models.Tick),
		log:      logger.With().Str("component", "exchange").Str("account", cfg.AccountID).Logger(),
	}, nil
}

// SubmitOrder validates a draft, reserves the resources it needs (cash for
// buys, position volume for sells) and registers it as PENDING. On any
// failure the order is retained with status REJECTED, nothing is held
// against the account, and the returned error carries the reason. The
// returned order is a copy; the table keeps the original.
func (e *Exchange) SubmitOrder(req OrderRequest) (models.Order, error) {
	e.mu.Lock()
	order, err := e.submit(req)
	e.mu.Unlock()

	if err != nil {
		e.log.Warn().
			Str("order_id", order.ID).
			Str("symbol", req.Symbol).
			Str("side", string(req.Side)).
			Int64("volume", req.Volume).
			Err(err).
			Msg("order rejected at submission")
		return order, err
	}
	e.log.Info().
		Str("order_id", order.ID).
		Str("symbol", order.Symbol).
		Str("side", string(order.Side)).
		Str("type", string(order.Type)).
		Float64("price", order.Price).
		Int64("volume", order.Volume).
		Msg("order submitted")
	return order, nil
}

func (e *Exchange) submit(req OrderRequest) (models.Order, error) {
	now := time.Now()
	e.orderCounter++
	order := &models.Order{
		ID:             fmt.Sprintf("ORDER_%s_%s_%d", now.Format("20060102150405"), req.Symbol, e.orderCounter),
		Symbol:         req.Symbol,
		Side:           req.Side,
		Type:           req.Type,
		Price:          req.Price,
		Volume:         req.Volume,
		Status:         models.OrderPending,
		SubmittedAt:    now,
		CommissionRate: req.CommissionRate,
		SlippageRate:   req.SlippageRate,
	}
	e.orders[order.ID] = order
	e.orderSeq = append(e.orderSeq, order.ID)

	reject := func(reason string, sentinel error) (models.Order, error) {
		order.Status = models.OrderRejected
		order.Reason = reason
		return *order, apexerrors.NewRejectError(order.ID, reason, sentinel)
	}

	if req.Symbol == "" {
		return reject("symbol is empty", apexerrors.ErrInvalidOrder)
	}
	if req.Side != models.OrderSideBuy && req.Side != models.OrderSideSell {
		return reject(fmt.Sprintf("unknown order side %q", req.Side), apexerrors.ErrInvalidOrder)
	}
	if req.Type == models.OrderTypeLimit && req.Price <= 0 {
		return reject("limit order requires a positive price", apexerrors.ErrInvalidOrder)
	}
	if req.Type == models.OrderTypeMarket && req.Price != 0 {
		return reject("market order must not carry a price", apexerrors.ErrInvalidOrder)
	}
	if err := e.matcher.ValidateOrderVolume(req.Volume, req.Side, 0); err != nil {
		return reject(err.Error(), apexerrors.ErrInvalidOrder)
	}

	switch req.Side {
	case models.OrderSideBuy:
		reservation, err := e.buyReservation(order)
		if err != nil {
			return reject(err.Error(), apexerrors.ErrNoQuote)
		}
		if !e.account.FreezeCash(reservation) {
			return reject(fmt.Sprintf("insufficient cash: need %.2f, available %.2f", reservation, e.account.AvailableCash()), apexerrors.ErrInsufficientFunds)
		}
		order.FrozenCash = reservation
	case models.OrderSideSell:
		if !e.account.CanSell(req.Symbol, req.Volume, e.currentDate) {
			return reject(fmt.Sprintf("cannot sell %d shares of %s (T+1 or insufficient volume)", req.Volume, req.Symbol), apexerrors.ErrInsufficientPosition)
		}
		if !e.account.FreezePosition(req.Symbol, req.Volume) {
			return reject(fmt.Sprintf("cannot freeze %d shares of %s", req.Volume, req.Symbol), apexerrors.ErrInsufficientPosition)
		}
	}
	return *order, nil
}

// buyReservation returns the conservative cash hold for a buy order: the
// limit price for limit orders, the symbol's limit-up band over the last
// quote for market orders, both inflated by the fee buffer floored at the
// minimum commission.
func (e *Exchange) buyReservation(order *models.Order) (float64, error) {
	ref := order.Price
	if order.Type == models.OrderTypeMarket {
		tick, ok := e.lastTick[order.Symbol]
		if !ok {
			return 0, fmt.Errorf("no quote for %s yet, cannot price market order", order.Symbol)
		}
		_, ref = LimitBand(order.Symbol, tick.PrevClose)
		if ref <= 0 {
			base := tick.AskPrice
			if base <= 0 {
				base = tick.LastPrice
			}
			if base <= 0 {
				return 0, fmt.Errorf("no valid quote price for %s", order.Symbol)
			}
			ref = roundCent(base * (1 + LimitPct(order.Symbol)))
		}
	}
	notional := float64(order.Volume) * ref
	feeHold := notional * reserveFeeBuffer
	if feeHold < minCommission {
		feeHold = minCommission
	}
	return roundCent(notional + feeHold), nil
}

// tickEvent collects one order outcome during tick processing so logging
// can happen after the lock is released.
type tickEvent struct {
	orderID string
	status  models.OrderStatus
	price   float64
	volume  int64
	reason  string
	queued  bool
}

// OnTick marks positions in the tick's symbol to market, retries orders
// parked at a price limit, then walks every pending order on that symbol in
// submission order and asks the matcher to decide. Fills commit through the
// ledger and append a trade; limit-locked orders move into the FIFO queue
// and stay pending; hard failures release the order's holds and reject it.
func (e *Exchange) OnTick(tick models.Tick) {
	e.mu.Lock()
	events := e.processTick(tick)
	e.mu.Unlock()

	for _, ev := range events {
		log := logging.WithOrderID(logging.WithSymbol(e.log, tick.Symbol), ev.orderID)
		switch {
		case ev.status == models.OrderFilled:
			log.Info().
				Float64("price", ev.price).
				Int64("volume", ev.volume).
				Msg("order filled")
		case ev.status == models.OrderRejected:
			log.Warn().
				Str("reason", ev.reason).
				Msg("order rejected")
		case ev.queued:
			log.Debug().
				Str("reason", ev.reason).
				Msg("order queued at price limit")
		}
	}
}

func (e *Exchange) processTick(tick models.Tick) []tickEvent {
	e.lastTick[tick.Symbol] = tick
	if tick.LastPrice > 0 {
		e.account.UpdatePositionPrice(tick.Symbol, tick.LastPrice)
	}

	var events []tickEvent

	// Orders released from the limit queue go first, in their queued order,
	// and skip the price-limit check: they already waited at the limit. A
	// released order that still fails to cross goes back to the front of its
	// queue so it keeps its time priority.
	released := append(e.queue.ReleaseLimitUp(tick.Symbol, tick), e.queue.ReleaseLimitDown(tick.Symbol, tick)...)
	seen := make(map[string]bool, len(released))
	var requeueUp, requeueDown []string
	for _, id := range released {
		seen[id] = true
		order, ok := e.orders[id]
		if !ok || order.Status != models.OrderPending {
			continue
		}
		ev := e.decide(order, tick, false)
		events = append(events, ev)
		if order.Status == models.OrderPending && !ev.queued {
			if order.Side == models.OrderSideBuy {
				requeueUp = append(requeueUp, id)
			} else {
				requeueDown = append(requeueDown, id)
			}
		}
	}
	e.queue.RequeueLimitUp(tick.Symbol, requeueUp)
	e.queue.RequeueLimitDown(tick.Symbol, requeueDown)

	for _, id := range e.orderSeq {
		if seen[id] || e.queue.Contains(id) {
			continue
		}
		order, ok := e.orders[id]
		if !ok || order.Status != models.OrderPending || order.Symbol != tick.Symbol {
			continue
		}
		events = append(events, e.decide(order, tick, true))
	}
	return events
}

// decide runs one match attempt and applies its outcome to the order.
func (e *Exchange) decide(order *models.Order, tick models.Tick, checkPriceLimit bool) tickEvent {
	result := e.matcher.TryMatch(order, tick, checkPriceLimit)
	switch result.Status {
	case models.MatchFilled:
		return e.commitFill(order, result, tick)
	case models.MatchLimitLocked:
		if order.Side == models.OrderSideBuy {
			e.queue.EnqueueLimitUp(order.Symbol, order.ID)
		} else {
			e.queue.EnqueueLimitDown(order.Symbol, order.ID)
		}
		return tickEvent{orderID: order.ID, status: order.Status, reason: result.Reason, queued: true}
	case models.MatchNotCrossed:
		return tickEvent{orderID: order.ID, status: order.Status, reason: result.Reason}
	default:
		e.releaseHolds(order)
		e.transition(order, models.OrderRejected)
		order.Reason = result.Reason
		return tickEvent{orderID: order.ID, status: order.Status, reason: result.Reason}
	}
}

// commitFill settles a successful match: the submission-time reservation is
// released, the ledger is debited or credited for the exact fill including
// commission, a trade record is appended and the order turns FILLED. A
// commit that fails after its reservation indicates a reservation bug; the
// order alone is rejected and the ledger stays consistent.
func (e *Exchange) commitFill(order *models.Order, result models.MatchResult, tick models.Tick) tickEvent {
	commission := e.matcher.CalculateTotalCommission(order.Side, order.Symbol, result.Price, result.Volume, order.CommissionRate)

	var realizedPnL float64
	switch order.Side {
	case models.OrderSideBuy:
		e.account.UnfreezeCash(order.FrozenCash)
		order.FrozenCash = 0
		cost := roundCent(roundCent(result.Price*float64(result.Volume)) + commission)
		if !e.account.DeductCash(cost) {
			e.transition(order, models.OrderRejected)
			order.Reason = fmt.Sprintf("reservation shortfall: fill cost %.2f exceeds available cash", cost)
			return tickEvent{orderID: order.ID, status: order.Status, reason: order.Reason}
		}
		if !e.account.AddPosition(order.Symbol, result.Volume, result.Price, models.DateKey(tick.Timestamp)) {
			e.account.creditCash(cost)
			e.transition(order, models.OrderRejected)
			order.Reason = "position update failed after cash deduction"
			return tickEvent{orderID: order.ID, status: order.Status, reason: order.Reason}
		}
	case models.OrderSideSell:
		pnl, ok := e.account.ReducePosition(order.Symbol, result.Volume, result.Price)
		if !ok {
			e.releaseHolds(order)
			e.transition(order, models.OrderRejected)
			order.Reason = "position reduce failed at fill"
			return tickEvent{orderID: order.ID, status: order.Status, reason: order.Reason}
		}
		realizedPnL = pnl
		if !e.account.DeductCash(commission) {
			// Proceeds were just credited, so this cannot fail unless the
			// ledger is corrupt; record the trade either way.
			order.Reason = "commission deduction failed"
		}
	}

	e.transition(order, models.OrderFilled)
	order.FilledVolume = result.Volume
	order.FilledPrice = result.Price
	order.FilledAt = tick.Timestamp

	e.tradeCounter++
	e.trades = append(e.trades, models.TradeRecord{
		TradeID:     fmt.Sprintf("TRADE_%s_%d", tick.Timestamp.Format("20060102150405"), e.tradeCounter),
		OrderID:     order.ID,
		Symbol:      order.Symbol,
		Side:        order.Side,
		Price:       result.Price,
		Volume:      result.Volume,
		Commission:  commission,
		RealizedPnL: realizedPnL,
		TradedAt:    tick.Timestamp,
	})
	return tickEvent{orderID: order.ID, status: order.Status, price: result.Price, volume: result.Volume}
}

// CancelOrder cancels a PENDING order, releasing its cash or position hold
// exactly as a rejection would. It returns false for unknown IDs and for
// orders already in a terminal state.
func (e *Exchange) CancelOrder(orderID string) bool {
	e.mu.Lock()
	ok := e.cancel(orderID)
	e.mu.Unlock()

	if ok {
		e.log.Info().Str("order_id", orderID).Msg("order cancelled")
	}
	return ok
}

func (e *Exchange) cancel(orderID string) bool {
	order, exists := e.orders[orderID]
	if !exists || order.Status != models.OrderPending {
		return false
	}
	e.queue.Remove(orderID)
	e.releaseHolds(order)
	if !e.transition(order, models.OrderCancelled) {
		return false
	}
	order.CancelledAt = time.Now()
	return true
}

// UpdateDaily performs the session rollover: T+1 volume unlocks, sell
// proceeds become withdrawable, and the given date becomes the current
// trading date. Call exactly once per session before new submissions.
func (e *Exchange) UpdateDaily(currentDate int64) {
	e.mu.Lock()
	e.currentDate = currentDate
	e.account.DailySettlement(currentDate)
	e.mu.Unlock()

	e.log.Info().Int64("date", currentDate).Msg("daily settlement complete")
}

// releaseHolds returns whatever the order still holds: reserved cash for
// buys, frozen shares for sells. Idempotent.
func (e *Exchange) releaseHolds(order *models.Order) {
	switch order.Side {
	case models.OrderSideBuy:
		if order.FrozenCash > 0 {
			e.account.UnfreezeCash(order.FrozenCash)
			order.FrozenCash = 0
		}
	case models.OrderSideSell:
		if order.Status == models.OrderPending {
			e.account.UnfreezePosition(order.Symbol, order.Volume)
		}
	}
}

// transition is the single gate for order status changes: only
// PENDING -> {FILLED, CANCELLED, REJECTED} is legal. Anything else is a
// programming error and leaves the order untouched.
func (e *Exchange) transition(order *models.Order, to models.OrderStatus) bool {
	if order.Status != models.OrderPending || !to.IsTerminal() {
		e.log.Error().
			Str("order_id", order.ID).
			Str("from", string(order.Status)).
			Str("to", string(to)).
			Msg("illegal order state transition")
		return false
	}
	order.Status = to
	return true
}

// Order returns a copy of the order with the given ID.
func (e *Exchange) Order(orderID string) (models.Order, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.orders[orderID]
	if !ok {
		return models.Order{}, false
	}
	return *order, true
}

// PendingOrders returns copies of all PENDING orders in submission order,
// optionally filtered to one symbol (empty symbol means all).
func (e *Exchange) PendingOrders(symbol string) []models.Order {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []models.Order
	for _, id := range e.orderSeq {
		order := e.orders[id]
		if order.Status != models.OrderPending {
			continue
		}
		if symbol != "" && order.Symbol != symbol {
			continue
		}
		out = append(out, *order)
	}
	return out
}

// Orders returns copies of every order in submission order, whatever
// their status.
func (e *Exchange) Orders() []models.Order {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]models.Order, 0, len(e.orderSeq))
	for _, id := range e.orderSeq {
		out = append(out, *e.orders[id])
	}
	return out
}

// TradeHistory returns a copy of the trade records in execution order.
func (e *Exchange) TradeHistory() []models.TradeRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]models.TradeRecord, len(e.trades))
	copy(out, e.trades)
	return out
}

// QueuedOrders reports how many orders wait at the limit-up and limit-down
// queues for a symbol.
func (e *Exchange) QueuedOrders(symbol string) (limitUp, limitDown int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.LimitUpSize(symbol), e.queue.LimitDownSize(symbol)
}

// Position returns a copy of the position for symbol.
func (e *Exchange) Position(symbol string) (models.Position, bool) {
	return e.account.Position(symbol)
}

// AllPositions returns copies of every open position.
func (e *Exchange) AllPositions() []models.Position {
	return e.account.AllPositions()
}

// TotalAssets returns cash plus frozen cash plus position market value.
func (e *Exchange) TotalAssets() float64 { return e.account.TotalAssets() }

// AvailableCash returns cash usable for new buy orders.
func (e *Exchange) AvailableCash() float64 { return e.account.AvailableCash() }

// FrozenCash returns cash reserved by pending buy orders.
func (e *Exchange) FrozenCash() float64 { return e.account.FrozenCash() }

// AccountID returns the owning account's identifier.
func (e *Exchange) AccountID() string { return e.account.ID() }

// Account exposes the underlying ledger for reporting.
func (e *Exchange) Account() *Account { return e.account }
