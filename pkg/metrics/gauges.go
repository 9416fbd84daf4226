package metrics

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"trade-ledger/internal/lifecycle"
	"trade-ledger/pkg/models"
)

// Snapshot is a point-in-time copy of the ledger gauges
type Snapshot struct {
	ActiveTrades         int64
	PendingTrades        int64
	ActiveCounterparties int64
	SettledValue         decimal.Decimal
}

// Gauges holds the current ledger state reported by observable gauges.
// It is primed once from the store at startup and afterwards moves only
// with lifecycle events.
//
// Active trades are PENDING or CONFIRMED. SettledValue sums the total value
// of SETTLED trades.
type Gauges struct {
	mu   sync.Mutex
	snap Snapshot
}

// NewGauges creates zeroed gauges
func NewGauges() *Gauges {
	return &Gauges{snap: Snapshot{SettledValue: decimal.Zero}}
}

// Prime replaces the gauge state, typically with counts read from the store at startup
func (g *Gauges) Prime(s Snapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.snap = s
}

// Snapshot returns the current state
func (g *Gauges) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snap
}

// Observe applies the effect of one lifecycle event
func (g *Gauges) Observe(_ context.Context, event lifecycle.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch event.Type {
	case lifecycle.EventTradeCreated:
		g.addTrade(event.Trade, 1)
	case lifecycle.EventTradeDeleted:
		g.addTrade(event.Trade, -1)
	case lifecycle.EventTradeStatusChanged:
		previous := *event.Trade
		previous.Status = event.PreviousTradeStatus
		g.addTrade(&previous, -1)
		g.addTrade(event.Trade, 1)
	case lifecycle.EventTradeUpdated:
		if event.PreviousTrade != nil {
			g.addTrade(event.PreviousTrade, -1)
			g.addTrade(event.Trade, 1)
		}
	case lifecycle.EventCounterpartyCreated:
		g.addCounterparty(event.Counterparty.Status, 1)
	case lifecycle.EventCounterpartyDeleted:
		g.addCounterparty(event.Counterparty.Status, -1)
	case lifecycle.EventCounterpartyUpdated, lifecycle.EventCounterpartyStatus:
		g.addCounterparty(event.PreviousCounterpartyStatus, -1)
		g.addCounterparty(event.Counterparty.Status, 1)
	}
}

func (g *Gauges) addTrade(t *models.Trade, sign int64) {
	switch t.Status {
	case models.TradeStatusPending:
		g.snap.ActiveTrades += sign
		g.snap.PendingTrades += sign
	case models.TradeStatusConfirmed:
		g.snap.ActiveTrades += sign
	case models.TradeStatusSettled:
		g.snap.SettledValue = g.snap.SettledValue.Add(t.TotalValue().Mul(decimal.NewFromInt(sign)))
	}
}

func (g *Gauges) addCounterparty(status models.CounterpartyStatus, sign int64) {
	if status == models.CounterpartyStatusActive {
		g.snap.ActiveCounterparties += sign
	}
}
