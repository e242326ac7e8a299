package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/cutamar/govenue/internal/config"
	"github.com/cutamar/govenue/internal/storage"
)

type Mysql struct {
	DB *sql.DB
}

// New opens the connection pool and creates the trades table if needed.
func New(cfg *config.Config) (*Mysql, error) {
	db, err := sql.Open("mysql", cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to the database: %w", err)
	}

	_, err = db.Exec(
		`CREATE TABLE IF NOT EXISTS trades (
            trade_id BIGINT UNSIGNED NOT NULL,
            instrument VARCHAR(20) NOT NULL,
            seq BIGINT UNSIGNED NOT NULL,
            taker_order_id BIGINT UNSIGNED NOT NULL,
            maker_order_id BIGINT UNSIGNED NOT NULL,
            taker_side ENUM('buy', 'sell') NOT NULL,
            price DECIMAL(38,18) NOT NULL,
            qty DECIMAL(38,18) NOT NULL,
            amount DECIMAL(38,18) NOT NULL,
            client_ts BIGINT NOT NULL DEFAULT 0,
            created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
            PRIMARY KEY (instrument, trade_id),
            KEY idx_trades_seq (instrument, seq)
        )`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create 'trades' table: %w", err)
	}

	return &Mysql{DB: db}, nil
}

// SaveTrades stores a batch in one transaction. Replaying an already-stored
// trade is a no-op thanks to INSERT IGNORE on the primary key, so the
// archiver can safely re-consume the event stream after a restart.
func (m *Mysql) SaveTrades(ctx context.Context, trades []storage.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin trade batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT IGNORE INTO trades
            (trade_id, instrument, seq, taker_order_id, maker_order_id, taker_side, price, qty, amount, client_ts)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare trade insert: %w", err)
	}
	defer stmt.Close()

	for _, trade := range trades {
		_, err := stmt.ExecContext(ctx,
			trade.TradeID,
			trade.Instrument,
			trade.Seq,
			trade.TakerOrderID,
			trade.MakerOrderID,
			trade.TakerSide,
			trade.Price,
			trade.Qty,
			trade.Amount,
			trade.ClientTS,
		)
		if err != nil {
			return fmt.Errorf("insert trade %d: %w", trade.TradeID, err)
		}
	}

	return tx.Commit()
}

// TradesByInstrument returns the most recent trades, newest first.
func (m *Mysql) TradesByInstrument(ctx context.Context, instrument string, limit int) ([]storage.TradeRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := m.DB.QueryContext(ctx,
		`SELECT trade_id, instrument, seq, taker_order_id, maker_order_id, taker_side, price, qty, amount, client_ts
         FROM trades
         WHERE instrument = ?
         ORDER BY trade_id DESC
         LIMIT ?`,
		instrument, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var trades []storage.TradeRecord
	for rows.Next() {
		var t storage.TradeRecord
		if err := rows.Scan(
			&t.TradeID, &t.Instrument, &t.Seq,
			&t.TakerOrderID, &t.MakerOrderID, &t.TakerSide,
			&t.Price, &t.Qty, &t.Amount, &t.ClientTS,
		); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Close shuts the pool down.
func (m *Mysql) Close() error {
	return m.DB.Close()
}
