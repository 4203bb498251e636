// Package store persists the simulator's order and trade journal. The
// exchange core stays persistence-free; the journal consumes its query
// API after the fact.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"apexsim/internal/models"
)

// Journal is a SQLite-backed record of orders, fills and daily equity.
type Journal struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal database at dbPath.
func Open(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening journal database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	j := &Journal{db: db}
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing journal schema: %w", err)
	}
	return j, nil
}

func (j *Journal) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		type TEXT NOT NULL,
		price REAL NOT NULL,
		volume INTEGER NOT NULL,
		filled_volume INTEGER NOT NULL,
		filled_price REAL NOT NULL,
		status TEXT NOT NULL,
		reason TEXT,
		submitted_at DATETIME NOT NULL,
		filled_at DATETIME,
		cancelled_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		price REAL NOT NULL,
		volume INTEGER NOT NULL,
		commission REAL NOT NULL,
		realized_pnl REAL NOT NULL,
		traded_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS equity_snapshots (
		date INTEGER PRIMARY KEY,
		total_assets REAL NOT NULL,
		available_cash REAL NOT NULL,
		frozen_cash REAL NOT NULL,
		realized_pnl REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol);
	CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
	CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
	CREATE INDEX IF NOT EXISTS idx_trades_traded_at ON trades(traded_at);
	`

	_, err := j.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// SaveOrder inserts or updates one order row.
func (j *Journal) SaveOrder(ctx context.Context, order models.Order) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO orders
			(id, symbol, side, type, price, volume, filled_volume, filled_price,
			 status, reason, submitted_at, filled_at, cancelled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, order.ID, order.Symbol, string(order.Side), string(order.Type),
		order.Price, order.Volume, order.FilledVolume, order.FilledPrice,
		string(order.Status), order.Reason,
		order.SubmittedAt, nullTime(order.FilledAt), nullTime(order.CancelledAt))
	if err != nil {
		return fmt.Errorf("saving order %s: %w", order.ID, err)
	}
	return nil
}

// SaveTrades inserts trade records in one transaction. Already-journaled
// trades are skipped.
func (j *Journal) SaveTrades(ctx context.Context, trades []models.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO trades
			(id, order_id, symbol, side, price, volume, commission, realized_pnl, traded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing trade insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range trades {
		if _, err := stmt.ExecContext(ctx, t.TradeID, t.OrderID, t.Symbol,
			string(t.Side), t.Price, t.Volume, t.Commission, t.RealizedPnL, t.TradedAt); err != nil {
			return fmt.Errorf("inserting trade %s: %w", t.TradeID, err)
		}
	}
	return tx.Commit()
}

// EquitySnapshot is one end-of-day account snapshot.
type EquitySnapshot struct {
	Date          int64 // yyyymmdd
	TotalAssets   float64
	AvailableCash float64
	FrozenCash    float64
	RealizedPnL   float64
}

// SaveEquitySnapshot upserts the snapshot for its date.
func (j *Journal) SaveEquitySnapshot(ctx context.Context, snap EquitySnapshot) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO equity_snapshots
			(date, total_assets, available_cash, frozen_cash, realized_pnl)
		VALUES (?, ?, ?, ?, ?)
	`, snap.Date, snap.TotalAssets, snap.AvailableCash, snap.FrozenCash, snap.RealizedPnL)
	if err != nil {
		return fmt.Errorf("saving equity snapshot %d: %w", snap.Date, err)
	}
	return nil
}

// Orders returns journaled orders, newest submission first. An empty
// symbol matches all symbols.
func (j *Journal) Orders(ctx context.Context, symbol string, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, symbol, side, type, price, volume, filled_volume, filled_price,
		       status, reason, submitted_at, filled_at, cancelled_at
		FROM orders
		WHERE (? = '' OR symbol = ?)
		ORDER BY submitted_at DESC
		LIMIT ?
	`, symbol, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("querying orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var o models.Order
		var side, typ, status string
		var reason sql.NullString
		var filledAt, cancelledAt sql.NullTime
		if err := rows.Scan(&o.ID, &o.Symbol, &side, &typ, &o.Price, &o.Volume,
			&o.FilledVolume, &o.FilledPrice, &status, &reason,
			&o.SubmittedAt, &filledAt, &cancelledAt); err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		o.Side = models.OrderSide(side)
		o.Type = models.OrderType(typ)
		o.Status = models.OrderStatus(status)
		o.Reason = reason.String
		if filledAt.Valid {
			o.FilledAt = filledAt.Time
		}
		if cancelledAt.Valid {
			o.CancelledAt = cancelledAt.Time
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// Trades returns journaled trades in execution order. An empty symbol
// matches all symbols.
func (j *Journal) Trades(ctx context.Context, symbol string) ([]models.TradeRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, order_id, symbol, side, price, volume, commission, realized_pnl, traded_at
		FROM trades
		WHERE (? = '' OR symbol = ?)
		ORDER BY traded_at ASC
	`, symbol, symbol)
	if err != nil {
		return nil, fmt.Errorf("querying trades: %w", err)
	}
	defer rows.Close()

	var trades []models.TradeRecord
	for rows.Next() {
		var t models.TradeRecord
		var side string
		if err := rows.Scan(&t.TradeID, &t.OrderID, &t.Symbol, &side,
			&t.Price, &t.Volume, &t.Commission, &t.RealizedPnL, &t.TradedAt); err != nil {
			return nil, fmt.Errorf("scanning trade: %w", err)
		}
		t.Side = models.OrderSide(side)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// EquityCurve returns the saved snapshots in date order.
func (j *Journal) EquityCurve(ctx context.Context) ([]EquitySnapshot, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT date, total_assets, available_cash, frozen_cash, realized_pnl
		FROM equity_snapshots
		ORDER BY date ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying equity snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []EquitySnapshot
	for rows.Next() {
		var s EquitySnapshot
		if err := rows.Scan(&s.Date, &s.TotalAssets, &s.AvailableCash,
			&s.FrozenCash, &s.RealizedPnL); err != nil {
			return nil, fmt.Errorf("scanning equity snapshot: %w", err)
		}
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
