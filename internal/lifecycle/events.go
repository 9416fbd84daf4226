package lifecycle

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"trade-ledger/pkg/models"
)

// EventType names a lifecycle event
type EventType string

const (
	EventTradeCreated        EventType = "trade.created"
	EventTradeRejected       EventType = "trade.rejected"
	EventTradeUpdated        EventType = "trade.updated"
	EventTradeStatusChanged  EventType = "trade.status_changed"
	EventTradeDeleted        EventType = "trade.deleted"
	EventCounterpartyCreated EventType = "counterparty.created"
	EventCounterpartyUpdated EventType = "counterparty.updated"
	EventCounterpartyStatus  EventType = "counterparty.status_changed"
	EventCounterpartyDeleted EventType = "counterparty.deleted"
)

// IsTrade reports whether the event concerns a trade
func (t EventType) IsTrade() bool {
	switch t {
	case EventTradeCreated, EventTradeRejected, EventTradeUpdated, EventTradeStatusChanged, EventTradeDeleted:
		return true
	}
	return false
}

// Event is published after every engine outcome that observers care about.
//
// Trade and Counterparty are snapshots and must not be mutated by observers.
// For EventTradeRejected, Trade is nil and Instrument/TradeType/Reason describe the attempt.
// For EventTradeUpdated, PreviousTrade holds the trade as it was before the update.
type Event struct {
	Type          EventType
	Trade         *models.Trade
	PreviousTrade *models.Trade
	Counterparty  *models.Counterparty

	PreviousTradeStatus        models.TradeStatus
	PreviousCounterpartyStatus models.CounterpartyStatus

	Instrument string
	TradeType  models.TradeType
	Kind       Kind
	Reason     string

	Elapsed    time.Duration
	OccurredAt time.Time
}

// Observer receives lifecycle events. Implementations must not block for long;
// they run synchronously on the request path.
type Observer interface {
	Observe(ctx context.Context, event Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(ctx context.Context, event Event)

// Observe calls f
func (f ObserverFunc) Observe(ctx context.Context, event Event) {
	f(ctx, event)
}

// Observers fans an event out to every member. A panicking member is logged
// and skipped; the remaining members still run.
type Observers []Observer

// Observe delivers event to each observer in order
func (o Observers) Observe(ctx context.Context, event Event) {
	for _, observer := range o {
		if observer == nil {
			continue
		}
		deliver(ctx, observer, event)
	}
}

func deliver(ctx context.Context, observer Observer, event Event) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"event": event.Type,
				"panic": r,
			}).Error("Lifecycle observer panicked")
		}
	}()
	observer.Observe(ctx, event)
}

type nopObserver struct{}

func (nopObserver) Observe(context.Context, Event) {}

// CanonicalTransition reports whether from → to follows the intended settlement flow:
// PENDING → CONFIRMED → SETTLED, with CANCELLED/FAILED reachable from PENDING or CONFIRMED.
// The engines do not enforce it.
func CanonicalTransition(from, to models.TradeStatus) bool {
	switch from {
	case models.TradeStatusPending:
		return to == models.TradeStatusConfirmed || to == models.TradeStatusCancelled || to == models.TradeStatusFailed
	case models.TradeStatusConfirmed:
		return to == models.TradeStatusSettled || to == models.TradeStatusCancelled || to == models.TradeStatusFailed
	}
	return false
}
