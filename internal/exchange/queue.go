package exchange

import (
	"apexsim/internal/models"
)

// Fraction of a still-locked queue released per tick, modeling partial
// absorption of the opposite side's liquidity at the limit price.
const queueReleaseDenom = 10

// LimitQueue holds, per symbol, FIFO queues of order IDs stuck at a daily
// price limit: buys waiting at limit-up and sells waiting at limit-down.
// When the lock opens the whole queue is released in original order; while
// it holds, a bounded fraction (10% of the queue, at least one order) is
// released per tick and the remainder keeps its relative order.
//
// The queue stores order IDs only; the orchestrator owns the orders.
type LimitQueue struct {
	limitUp   map[string][]string
	limitDown map[string][]string
}

// NewLimitQueue creates an empty limit queue.
func NewLimitQueue() *LimitQueue {
	return &LimitQueue{
		limitUp:   make(map[string][]string),
		limitDown: make(map[string][]string),
	}
}

// EnqueueLimitUp appends a buy order to the symbol's limit-up queue.
func (q *LimitQueue) EnqueueLimitUp(symbol, orderID string) {
	q.limitUp[symbol] = append(q.limitUp[symbol], orderID)
}

// EnqueueLimitDown appends a sell order to the symbol's limit-down queue.
func (q *LimitQueue) EnqueueLimitDown(symbol, orderID string) {
	q.limitDown[symbol] = append(q.limitDown[symbol], orderID)
}

// ReleaseLimitUp returns the order IDs eligible to attempt a fill on this
// tick. If the quote is no longer pinned at limit-up the entire queue is
// released; otherwise max(1, len/10) orders come off the front.
func (q *LimitQueue) ReleaseLimitUp(symbol string, tick models.Tick) []string {
	stillLocked := Classify(symbol, tick.LastPrice, tick.PrevClose) == models.LimitUp
	return release(q.limitUp, symbol, stillLocked)
}

// ReleaseLimitDown is the limit-down counterpart of ReleaseLimitUp.
func (q *LimitQueue) ReleaseLimitDown(symbol string, tick models.Tick) []string {
	stillLocked := Classify(symbol, tick.LastPrice, tick.PrevClose) == models.LimitDown
	return release(q.limitDown, symbol, stillLocked)
}

func release(queues map[string][]string, symbol string, stillLocked bool) []string {
	queue, ok := queues[symbol]
	if !ok || len(queue) == 0 {
		return nil
	}

	if !stillLocked {
		delete(queues, symbol)
		return queue
	}

	n := len(queue) / queueReleaseDenom
	if n < 1 {
		n = 1
	}
	released := queue[:n:n]
	rest := queue[n:]
	if len(rest) == 0 {
		delete(queues, symbol)
	} else {
		queues[symbol] = rest
	}
	return released
}

// RequeueLimitUp puts released orders back at the front of the symbol's
// limit-up queue in the given order, so an order that fails to cross after
// its release keeps its original time priority.
func (q *LimitQueue) RequeueLimitUp(symbol string, orderIDs []string) {
	requeue(q.limitUp, symbol, orderIDs)
}

// RequeueLimitDown is the limit-down counterpart of RequeueLimitUp.
func (q *LimitQueue) RequeueLimitDown(symbol string, orderIDs []string) {
	requeue(q.limitDown, symbol, orderIDs)
}

func requeue(queues map[string][]string, symbol string, orderIDs []string) {
	if len(orderIDs) == 0 {
		return
	}
	queues[symbol] = append(append([]string(nil), orderIDs...), queues[symbol]...)
}

// Remove deletes an order from whichever queue holds it, preserving the
// order of the rest. Used on cancellation. Returns false if not queued.
func (q *LimitQueue) Remove(orderID string) bool {
	return removeFrom(q.limitUp, orderID) || removeFrom(q.limitDown, orderID)
}

// Contains reports whether an order currently waits in either queue.
func (q *LimitQueue) Contains(orderID string) bool {
	return contains(q.limitUp, orderID) || contains(q.limitDown, orderID)
}

// LimitUpSize returns the number of orders queued at limit-up for symbol.
func (q *LimitQueue) LimitUpSize(symbol string) int {
	return len(q.limitUp[symbol])
}

// LimitDownSize returns the number of orders queued at limit-down for symbol.
func (q *LimitQueue) LimitDownSize(symbol string) int {
	return len(q.limitDown[symbol])
}

// Clear empties both queues for every symbol.
func (q *LimitQueue) Clear() {
	q.limitUp = make(map[string][]string)
	q.limitDown = make(map[string][]string)
}

func removeFrom(queues map[string][]string, orderID string) bool {
	for symbol, queue := range queues {
		for i, id := range queue {
			if id != orderID {
				continue
			}
			queue = append(queue[:i:i], queue[i+1:]...)
			if len(queue) == 0 {
				delete(queues, symbol)
			} else {
				queues[symbol] = queue
			}
			return true
		}
	}
	return false
}

func contains(queues map[string][]string, orderID string) bool {
	for _, queue := range queues {
		for _, id := range queue {
			if id == orderID {
				return true
			}
		}
	}
	return false
}
