// Package journal records what the executor did each cycle: order lifecycle
// events and account equity snapshots. It is an audit trail, not state: the
// executor never reads it back.
package journal

import (
	"time"

	"github.com/rustyeddy/executor/market"
)

// EventKind labels a lifecycle action.
type EventKind string

const (
	EventOpen      EventKind = "open"
	EventProtect   EventKind = "protect"
	EventClose     EventKind = "close"
	EventLiquidate EventKind = "liquidate"
	EventReject    EventKind = "reject"
)

// Event is one order lifecycle action.
type Event struct {
	ID     string // ULID, time-sortable
	Time   time.Time
	Symbol string
	Kind   EventKind
	Ticket int64
	Side   market.Side
	Volume float64
	Price  float64
	Note   string
}

// EquitySnapshot is one per-cycle view of the shared account.
type EquitySnapshot struct {
	Time        time.Time
	Balance     float64
	Equity      float64
	MarginUsed  float64
	MarginFree  float64
	MarginLevel float64
}

type Journal interface {
	RecordEvent(Event) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Nop discards everything; used when journaling is disabled.
type Nop struct{}

func (Nop) RecordEvent(Event) error           { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) Close() error                      { return nil }
