// Package storage archives executed trades for reporting and reconciliation.
// The archive is a downstream consumer of the event stream; the matching
// path never waits on it.
package storage

import (
	"context"
	"log/slog"

	venue "github.com/cutamar/govenue"
)

// TradeRecord is one executed fill as stored in the archive. Prices and
// quantities are kept as strings end to end so the database layer never
// rounds them.
type TradeRecord struct {
	TradeID      uint64 `json:"trade_id"`
	Seq          uint64 `json:"seq"`
	Instrument   string `json:"instrument"`
	TakerOrderID uint64 `json:"taker_order_id"`
	MakerOrderID uint64 `json:"maker_order_id"`
	TakerSide    string `json:"taker_side"`
	Price        string `json:"price"`
	Qty          string `json:"qty"`
	Amount       string `json:"amount"`
	ClientTS     int64  `json:"client_ts"`
}

// Storage is the trade archive contract.
type Storage interface {
	SaveTrades(ctx context.Context, trades []TradeRecord) error
	TradesByInstrument(ctx context.Context, instrument string, limit int) ([]TradeRecord, error)
	Close() error
}

// recordFromEvent converts a Trade event; returns false for any other type.
func recordFromEvent(ev *venue.Event) (TradeRecord, bool) {
	if ev.Type != venue.EventTrade {
		return TradeRecord{}, false
	}
	return TradeRecord{
		TradeID:      ev.TradeID,
		Seq:          ev.Seq,
		Instrument:   ev.Instrument,
		TakerOrderID: ev.OrderID,
		MakerOrderID: ev.MakerOrderID,
		TakerSide:    ev.Side.String(),
		Price:        ev.Price.String(),
		Qty:          ev.Qty.String(),
		Amount:       ev.Amount.String(),
		ClientTS:     ev.ClientTS,
	}, true
}

// Archiver adapts a Storage to the venue's EventPublisher interface,
// persisting the Trade events out of each batch.
type Archiver struct {
	store Storage
}

// NewArchiver wraps a Storage.
func NewArchiver(store Storage) *Archiver {
	return &Archiver{store: store}
}

// Publish implements venue.EventPublisher.
func (a *Archiver) Publish(events ...*venue.Event) {
	var trades []TradeRecord
	for _, ev := range events {
		if rec, ok := recordFromEvent(ev); ok {
			trades = append(trades, rec)
		}
	}
	if len(trades) == 0 {
		return
	}

	if err := a.store.SaveTrades(context.Background(), trades); err != nil {
		slog.Error("trade archive failed", "error", err, "trades", len(trades))
	}
}
