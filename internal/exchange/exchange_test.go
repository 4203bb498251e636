package exchange

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	apexerrors "apexsim/internal/errors"
	"apexsim/internal/models"
)

func newTestExchange(t *testing.T, capital float64) *Exchange {
	t.Helper()
	ex, err := New(Config{
		AccountID:      "test",
		InitialCapital: capital,
		CommissionRate: 0.00025,
		StampTaxRate:   0.001,
		Seed:           1,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ex
}

func tickAt(symbol string, last, bid, ask, prevClose float64, day int) models.Tick {
	return models.Tick{
		Symbol:    symbol,
		LastPrice: last,
		BidPrice:  bid,
		AskPrice:  ask,
		Volume:    1_000_000,
		PrevClose: prevClose,
		Timestamp: time.Date(2024, 1, day, 10, 0, 0, 0, time.UTC),
	}
}

func TestMarketBuyEndToEnd(t *testing.T) {
	ex := newTestExchange(t, 1_000_000)
	ex.UpdateDaily(20240102)

	tick := tickAt("000001", 10.00, 9.99, 10.00, 10.00, 2)
	ex.OnTick(tick)

	order, err := ex.SubmitOrder(OrderRequest{
		Symbol: "000001",
		Side:   models.OrderSideBuy,
		Type:   models.OrderTypeMarket,
		Volume: 1000,
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if order.Status != models.OrderPending {
		t.Fatalf("status = %s, want PENDING", order.Status)
	}
	if got := ex.FrozenCash(); got <= 0 {
		t.Error("buy order should hold frozen cash")
	}

	ex.OnTick(tick)

	filled, _ := ex.Order(order.ID)
	if filled.Status != models.OrderFilled {
		t.Fatalf("status = %s (%s), want FILLED", filled.Status, filled.Reason)
	}
	if filled.FilledPrice != 10.00 {
		t.Errorf("fill price = %.2f, want 10.00", filled.FilledPrice)
	}
	if filled.FilledVolume != 1000 {
		t.Errorf("fill volume = %d, want 1000", filled.FilledVolume)
	}

	// 1,000,000 - 1000 x 10.00 - commission max(2.50, 5.00) = 989,995.00.
	if got := ex.AvailableCash(); got != 989_995.00 {
		t.Errorf("available cash = %.2f, want 989995.00", got)
	}
	if got := ex.FrozenCash(); got != 0 {
		t.Errorf("frozen cash = %.2f, want 0 after fill", got)
	}

	pos, ok := ex.Position("000001")
	if !ok {
		t.Fatal("position should exist")
	}
	if pos.TotalVolume != 1000 || pos.AvgCost != 10.00 {
		t.Errorf("position = %d @ %.2f, want 1000 @ 10.00", pos.TotalVolume, pos.AvgCost)
	}

	trades := ex.TradeHistory()
	if len(trades) != 1 {
		t.Fatalf("trade count = %d, want 1", len(trades))
	}
	if trades[0].Commission != 5.00 {
		t.Errorf("commission = %.2f, want 5.00", trades[0].Commission)
	}
}

func TestSellRespectsT1(t *testing.T) {
	ex := newTestExchange(t, 1_000_000)
	ex.UpdateDaily(20240102)

	buyTick := tickAt("000001", 10.00, 9.99, 10.00, 10.00, 2)
	ex.OnTick(buyTick)
	buy, err := ex.SubmitOrder(OrderRequest{
		Symbol: "000001", Side: models.OrderSideBuy, Type: models.OrderTypeMarket, Volume: 1000,
	})
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	ex.OnTick(buyTick)
	if got, _ := ex.Order(buy.ID); got.Status != models.OrderFilled {
		t.Fatalf("buy status = %s", got.Status)
	}

	// Same session: the shares are unsettled and the sell is rejected.
	_, err = ex.SubmitOrder(OrderRequest{
		Symbol: "000001", Side: models.OrderSideSell, Type: models.OrderTypeMarket, Volume: 1000,
	})
	if err == nil {
		t.Fatal("same-day sell must be rejected")
	}

	// Next session the position settles and the sell goes through.
	ex.UpdateDaily(20240103)
	sellTick := tickAt("000001", 10.50, 10.50, 10.51, 10.00, 3)
	ex.OnTick(sellTick)
	sell, err := ex.SubmitOrder(OrderRequest{
		Symbol: "000001", Side: models.OrderSideSell, Type: models.OrderTypeMarket, Volume: 1000,
	})
	if err != nil {
		t.Fatalf("next-day sell: %v", err)
	}
	ex.OnTick(sellTick)

	filled, _ := ex.Order(sell.ID)
	if filled.Status != models.OrderFilled {
		t.Fatalf("sell status = %s (%s), want FILLED", filled.Status, filled.Reason)
	}
	if _, exists := ex.Position("000001"); exists {
		t.Error("position should be gone after full liquidation")
	}

	trades := ex.TradeHistory()
	if len(trades) != 2 {
		t.Fatalf("trade count = %d, want 2", len(trades))
	}
	if trades[1].RealizedPnL <= 0 {
		t.Errorf("sell above cost should realize a gain, got %.2f", trades[1].RealizedPnL)
	}
}

func TestSubmitRejectsWithoutSideEffects(t *testing.T) {
	ex := newTestExchange(t, 10_000)
	ex.UpdateDaily(20240102)
	ex.OnTick(tickAt("000001", 10.00, 9.99, 10.00, 10.00, 2))

	cases := []struct {
		name string
		req  OrderRequest
		want error
	}{
		{"empty symbol", OrderRequest{Side: models.OrderSideBuy, Type: models.OrderTypeMarket, Volume: 100}, apexerrors.ErrInvalidOrder},
		{"odd lot buy", OrderRequest{Symbol: "000001", Side: models.OrderSideBuy, Type: models.OrderTypeMarket, Volume: 150}, apexerrors.ErrInvalidOrder},
		{"limit without price", OrderRequest{Symbol: "000001", Side: models.OrderSideBuy, Type: models.OrderTypeLimit, Volume: 100}, apexerrors.ErrInvalidOrder},
		{"market with price", OrderRequest{Symbol: "000001", Side: models.OrderSideBuy, Type: models.OrderTypeMarket, Price: 10, Volume: 100}, apexerrors.ErrInvalidOrder},
		{"insufficient cash", OrderRequest{Symbol: "000001", Side: models.OrderSideBuy, Type: models.OrderTypeMarket, Volume: 10_000}, apexerrors.ErrInsufficientFunds},
		{"sell without position", OrderRequest{Symbol: "000001", Side: models.OrderSideSell, Type: models.OrderTypeMarket, Volume: 100}, apexerrors.ErrInsufficientPosition},
	}
	for _, tc := range cases {
		order, err := ex.SubmitOrder(tc.req)
		if err == nil {
			t.Errorf("%s: expected rejection", tc.name)
			continue
		}
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: error %v does not wrap %v", tc.name, err, tc.want)
		}
		if order.Status != models.OrderRejected {
			t.Errorf("%s: status = %s, want REJECTED", tc.name, order.Status)
		}
		// The rejected order is still queryable.
		if _, ok := ex.Order(order.ID); !ok {
			t.Errorf("%s: rejected order should be retained", tc.name)
		}
	}

	if got := ex.FrozenCash(); got != 0 {
		t.Errorf("frozen cash = %.2f, rejections must not hold resources", got)
	}
	if got := ex.AvailableCash(); got != 10_000 {
		t.Errorf("available cash = %.2f, want untouched 10000.00", got)
	}
}

func TestBuyReservationCoversMinimumCommission(t *testing.T) {
	// 100 shares at 1.00 cost 105.00 to fill: 100.00 notional plus the 5.00
	// flat commission. The hold must cover that, not just notional + 0.3%.
	ex := newTestExchange(t, 105.00)
	ex.UpdateDaily(20240102)
	tick := tickAt("000001", 1.00, 0.99, 1.00, 1.00, 2)
	ex.OnTick(tick)

	order, err := ex.SubmitOrder(OrderRequest{
		Symbol: "000001", Side: models.OrderSideBuy, Type: models.OrderTypeLimit, Price: 1.00, Volume: 100,
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if got := ex.FrozenCash(); got != 105.00 {
		t.Errorf("frozen cash = %.2f, want 105.00 with the commission floor", got)
	}

	ex.OnTick(tick)
	filled, _ := ex.Order(order.ID)
	if filled.Status != models.OrderFilled {
		t.Fatalf("status = %s (%s), want FILLED", filled.Status, filled.Reason)
	}
	if got := ex.AvailableCash(); got != 0 {
		t.Errorf("available cash = %.2f, want 0 after an exactly covered fill", got)
	}
	if got := ex.FrozenCash(); got != 0 {
		t.Errorf("frozen cash = %.2f, want 0 after fill", got)
	}

	// One cent short of the full fill cost must be rejected up front.
	short := newTestExchange(t, 104.99)
	short.UpdateDaily(20240102)
	short.OnTick(tick)
	_, err = short.SubmitOrder(OrderRequest{
		Symbol: "000001", Side: models.OrderSideBuy, Type: models.OrderTypeLimit, Price: 1.00, Volume: 100,
	})
	if !errors.Is(err, apexerrors.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds for an under-reserved buy", err)
	}
}

func TestMarketBuyAtLimitUpStaysPending(t *testing.T) {
	ex := newTestExchange(t, 1_000_000)
	ex.UpdateDaily(20240102)

	locked := tickAt("000001", 11.00, 10.99, 11.00, 10.00, 2)
	ex.OnTick(locked)

	order, err := ex.SubmitOrder(OrderRequest{
		Symbol: "000001", Side: models.OrderSideBuy, Type: models.OrderTypeMarket, Volume: 1000,
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}

	ex.OnTick(locked)

	got, _ := ex.Order(order.ID)
	if got.Status != models.OrderPending {
		t.Fatalf("status = %s (%s), want PENDING while limit locked", got.Status, got.Reason)
	}
	up, down := ex.QueuedOrders("000001")
	if up != 1 || down != 0 {
		t.Errorf("queued = (%d, %d), want (1, 0)", up, down)
	}

	// The lock opens and the queued order drains and fills.
	open := tickAt("000001", 10.50, 10.49, 10.50, 10.00, 2)
	ex.OnTick(open)

	got, _ = ex.Order(order.ID)
	if got.Status != models.OrderFilled {
		t.Fatalf("status after unlock = %s (%s), want FILLED", got.Status, got.Reason)
	}
	up, _ = ex.QueuedOrders("000001")
	if up != 0 {
		t.Errorf("queue should be drained, has %d", up)
	}
}

func TestReleasedOrderKeepsQueuePriority(t *testing.T) {
	ex := newTestExchange(t, 1_000_000)
	ex.UpdateDaily(20240102)

	// Two limit buys at the 11.00 limit-up price queue in submission order.
	locked := tickAt("000001", 11.00, 10.99, 11.00, 10.00, 2)
	ex.OnTick(locked)
	first, err := ex.SubmitOrder(OrderRequest{
		Symbol: "000001", Side: models.OrderSideBuy, Type: models.OrderTypeLimit, Price: 11.00, Volume: 100,
	})
	if err != nil {
		t.Fatalf("first SubmitOrder: %v", err)
	}
	second, err := ex.SubmitOrder(OrderRequest{
		Symbol: "000001", Side: models.OrderSideBuy, Type: models.OrderTypeLimit, Price: 11.00, Volume: 100,
	})
	if err != nil {
		t.Fatalf("second SubmitOrder: %v", err)
	}
	ex.OnTick(locked)
	if up, _ := ex.QueuedOrders("000001"); up != 2 {
		t.Fatalf("queued = %d, want 2", up)
	}

	// Still locked, so only the head order is released; the ask has gapped
	// above its limit, so it fails to cross and must keep its place at the
	// front instead of falling to the back.
	stillLocked := tickAt("000001", 11.00, 10.99, 11.05, 10.00, 2)
	ex.OnTick(stillLocked)
	if up, _ := ex.QueuedOrders("000001"); up != 2 {
		t.Fatalf("queued after failed release = %d, want 2", up)
	}

	// Lock opens, both orders cross; fills must come out in submission order.
	open := tickAt("000001", 10.50, 10.49, 10.50, 10.00, 2)
	ex.OnTick(open)

	trades := ex.TradeHistory()
	if len(trades) != 2 {
		t.Fatalf("trade count = %d, want 2", len(trades))
	}
	if trades[0].OrderID != first.ID {
		t.Errorf("first fill = %s, want the first-submitted order %s", trades[0].OrderID, first.ID)
	}
	if trades[1].OrderID != second.ID {
		t.Errorf("second fill = %s, want the second-submitted order %s", trades[1].OrderID, second.ID)
	}
}

func TestCancelReleasesHolds(t *testing.T) {
	ex := newTestExchange(t, 1_000_000)
	ex.UpdateDaily(20240102)
	ex.OnTick(tickAt("000001", 10.00, 9.99, 10.01, 10.00, 2))

	// An uncrossed limit buy stays pending with its cash held.
	order, err := ex.SubmitOrder(OrderRequest{
		Symbol: "000001", Side: models.OrderSideBuy, Type: models.OrderTypeLimit, Price: 9.50, Volume: 1000,
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if got := ex.FrozenCash(); got <= 0 {
		t.Fatal("limit buy should hold frozen cash")
	}

	if !ex.CancelOrder(order.ID) {
		t.Fatal("cancel of a pending order should succeed")
	}
	got, _ := ex.Order(order.ID)
	if got.Status != models.OrderCancelled {
		t.Errorf("status = %s, want CANCELLED", got.Status)
	}
	if cash := ex.FrozenCash(); cash != 0 {
		t.Errorf("frozen cash = %.2f, want 0 after cancel", cash)
	}
	if cash := ex.AvailableCash(); cash != 1_000_000 {
		t.Errorf("available cash = %.2f, want restored 1000000.00", cash)
	}
}

func TestCancelFillRace(t *testing.T) {
	ex := newTestExchange(t, 1_000_000)
	ex.UpdateDaily(20240102)
	tick := tickAt("000001", 10.00, 9.99, 10.00, 10.00, 2)
	ex.OnTick(tick)

	order, err := ex.SubmitOrder(OrderRequest{
		Symbol: "000001", Side: models.OrderSideBuy, Type: models.OrderTypeMarket, Volume: 1000,
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}

	// Cancel wins: the later tick sees a terminal order and does nothing.
	if !ex.CancelOrder(order.ID) {
		t.Fatal("cancel should succeed")
	}
	ex.OnTick(tick)
	got, _ := ex.Order(order.ID)
	if got.Status != models.OrderCancelled {
		t.Fatalf("status = %s, want CANCELLED to stick", got.Status)
	}
	if len(ex.TradeHistory()) != 0 {
		t.Error("no trade may exist for a cancelled order")
	}

	// Fill wins: cancelling a filled order fails without side effects.
	order, err = ex.SubmitOrder(OrderRequest{
		Symbol: "000001", Side: models.OrderSideBuy, Type: models.OrderTypeMarket, Volume: 1000,
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	ex.OnTick(tick)
	if ex.CancelOrder(order.ID) {
		t.Error("cancel of a filled order must fail")
	}
	got, _ = ex.Order(order.ID)
	if got.Status != models.OrderFilled {
		t.Errorf("status = %s, want FILLED to stick", got.Status)
	}
}

func TestCancelQueuedOrder(t *testing.T) {
	ex := newTestExchange(t, 1_000_000)
	ex.UpdateDaily(20240102)

	locked := tickAt("000001", 11.00, 10.99, 11.00, 10.00, 2)
	ex.OnTick(locked)
	order, err := ex.SubmitOrder(OrderRequest{
		Symbol: "000001", Side: models.OrderSideBuy, Type: models.OrderTypeMarket, Volume: 1000,
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	ex.OnTick(locked)
	if up, _ := ex.QueuedOrders("000001"); up != 1 {
		t.Fatalf("order should be queued, up = %d", up)
	}

	if !ex.CancelOrder(order.ID) {
		t.Fatal("cancel of a queued order should succeed")
	}
	if up, _ := ex.QueuedOrders("000001"); up != 0 {
		t.Errorf("queue should be empty after cancel, up = %d", up)
	}
	if got := ex.FrozenCash(); got != 0 {
		t.Errorf("frozen cash = %.2f, want 0", got)
	}
}

func TestPendingOrdersKeepSubmissionOrder(t *testing.T) {
	ex := newTestExchange(t, 1_000_000)
	ex.UpdateDaily(20240102)
	ex.OnTick(tickAt("000001", 10.00, 9.99, 10.01, 10.00, 2))

	var ids []string
	for i := 0; i < 3; i++ {
		order, err := ex.SubmitOrder(OrderRequest{
			Symbol: "000001", Side: models.OrderSideBuy, Type: models.OrderTypeLimit, Price: 9.50, Volume: 100,
		})
		if err != nil {
			t.Fatalf("SubmitOrder %d: %v", i, err)
		}
		ids = append(ids, order.ID)
	}

	pending := ex.PendingOrders("000001")
	if len(pending) != 3 {
		t.Fatalf("pending = %d, want 3", len(pending))
	}
	for i, order := range pending {
		if order.ID != ids[i] {
			t.Errorf("pending[%d] = %s, want %s", i, order.ID, ids[i])
		}
	}

	if all := ex.PendingOrders(""); len(all) != 3 {
		t.Errorf("unfiltered pending = %d, want 3", len(all))
	}
	if none := ex.PendingOrders("600000"); len(none) != 0 {
		t.Errorf("other-symbol pending = %d, want 0", len(none))
	}
}

func TestMarketBuyNeedsAQuote(t *testing.T) {
	ex := newTestExchange(t, 1_000_000)
	ex.UpdateDaily(20240102)

	_, err := ex.SubmitOrder(OrderRequest{
		Symbol: "000001", Side: models.OrderSideBuy, Type: models.OrderTypeMarket, Volume: 100,
	})
	if err == nil {
		t.Fatal("market buy without any cached quote must be rejected")
	}
}

func TestOnTickMarksPositions(t *testing.T) {
	ex := newTestExchange(t, 1_000_000)
	ex.UpdateDaily(20240102)
	tick := tickAt("000001", 10.00, 9.99, 10.00, 10.00, 2)
	ex.OnTick(tick)
	if _, err := ex.SubmitOrder(OrderRequest{
		Symbol: "000001", Side: models.OrderSideBuy, Type: models.OrderTypeMarket, Volume: 1000,
	}); err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	ex.OnTick(tick)

	ex.OnTick(tickAt("000001", 10.80, 10.79, 10.80, 10.00, 2))
	pos, _ := ex.Position("000001")
	if pos.CurrentPrice != 10.80 {
		t.Errorf("mark price = %.2f, want 10.80", pos.CurrentPrice)
	}
	if pos.UnrealizedPnL != 800.00 {
		t.Errorf("unrealized pnl = %.2f, want 800.00", pos.UnrealizedPnL)
	}
}
