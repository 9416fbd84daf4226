// Package metrics publishes ledger activity as OpenTelemetry instruments.
//
// # Counters
//
//   - trading.trades.created: trades booked (instrument, type)
//   - trading.trades.confirmed: trades entering CONFIRMED (instrument, type)
//   - trading.trades.settled: trades entering SETTLED (instrument, type)
//   - trading.trades.failed: rejected bookings and trades entering FAILED (instrument, type, error_type)
//   - trading.counterparties.created: counterparties registered (type)
//   - trading.counterparties.activated: counterparties entering ACTIVE (type)
//   - trading.counterparties.deactivated: counterparties leaving ACTIVE (type)
//
// # Histograms (milliseconds)
//
//   - trading.trades.creation.time (instrument)
//   - trading.trades.processing.time (operation)
//   - trading.counterparties.creation.time (type)
//
// # Gauges
//
//   - trading.trades.active, trading.trades.pending, trading.counterparties.active,
//     trading.trades.total.value, all read from Gauges
package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"trade-ledger/internal/lifecycle"
	"trade-ledger/pkg/models"
)

// ErrorTypeStatusFailed tags trades failed through a status change rather than a rejected booking
const ErrorTypeStatusFailed = "STATUS_FAILED"

// OperationStatusUpdate tags processing-time samples of status changes
const OperationStatusUpdate = "STATUS_UPDATE"

// Recorder turns lifecycle events into metric samples
type Recorder struct {
	// Counters
	TradesCreated             metric.Int64Counter
	TradesConfirmed           metric.Int64Counter
	TradesSettled             metric.Int64Counter
	TradesFailed              metric.Int64Counter
	CounterpartiesCreated     metric.Int64Counter
	CounterpartiesActivated   metric.Int64Counter
	CounterpartiesDeactivated metric.Int64Counter

	// Histograms
	TradeCreationTime        metric.Float64Histogram
	TradeProcessingTime      metric.Float64Histogram
	CounterpartyCreationTime metric.Float64Histogram

	gauges       *Gauges
	registration metric.Registration
}

// NewRecorder registers every instrument on meter. Gauges are read from gauges,
// which the recorder also keeps up to date.
func NewRecorder(meter metric.Meter, gauges *Gauges) (*Recorder, error) {
	if gauges == nil {
		gauges = NewGauges()
	}
	r := &Recorder{gauges: gauges}

	counters := []struct {
		dst         *metric.Int64Counter
		name        string
		description string
		unit        string
	}{
		{&r.TradesCreated, "trading.trades.created", "Total number of trades created", "{trade}"},
		{&r.TradesConfirmed, "trading.trades.confirmed", "Total number of trades confirmed", "{trade}"},
		{&r.TradesSettled, "trading.trades.settled", "Total number of trades settled", "{trade}"},
		{&r.TradesFailed, "trading.trades.failed", "Total number of trades that failed", "{trade}"},
		{&r.CounterpartiesCreated, "trading.counterparties.created", "Total number of counterparties created", "{counterparty}"},
		{&r.CounterpartiesActivated, "trading.counterparties.activated", "Total number of counterparties activated", "{counterparty}"},
		{&r.CounterpartiesDeactivated, "trading.counterparties.deactivated", "Total number of counterparties deactivated", "{counterparty}"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name,
			metric.WithDescription(c.description),
			metric.WithUnit(c.unit),
		)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	histograms := []struct {
		dst         *metric.Float64Histogram
		name        string
		description string
	}{
		{&r.TradeCreationTime, "trading.trades.creation.time", "Time taken to create a trade"},
		{&r.TradeProcessingTime, "trading.trades.processing.time", "Time taken to process a trade"},
		{&r.CounterpartyCreationTime, "trading.counterparties.creation.time", "Time taken to create a counterparty"},
	}
	for _, h := range histograms {
		histogram, err := meter.Float64Histogram(h.name,
			metric.WithDescription(h.description),
			metric.WithUnit("ms"),
		)
		if err != nil {
			return nil, err
		}
		*h.dst = histogram
	}

	if err := r.registerGauges(meter); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Recorder) registerGauges(meter metric.Meter) error {
	activeTrades, err := meter.Int64ObservableGauge("trading.trades.active",
		metric.WithDescription("Number of currently active trades"))
	if err != nil {
		return err
	}
	pendingTrades, err := meter.Int64ObservableGauge("trading.trades.pending",
		metric.WithDescription("Number of currently pending trades"))
	if err != nil {
		return err
	}
	activeCounterparties, err := meter.Int64ObservableGauge("trading.counterparties.active",
		metric.WithDescription("Number of currently active counterparties"))
	if err != nil {
		return err
	}
	totalValue, err := meter.Float64ObservableGauge("trading.trades.total.value",
		metric.WithDescription("Total value of settled trades"))
	if err != nil {
		return err
	}

	r.registration, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		snap := r.gauges.Snapshot()
		o.ObserveInt64(activeTrades, snap.ActiveTrades)
		o.ObserveInt64(pendingTrades, snap.PendingTrades)
		o.ObserveInt64(activeCounterparties, snap.ActiveCounterparties)
		o.ObserveFloat64(totalValue, snap.SettledValue.InexactFloat64())
		return nil
	}, activeTrades, pendingTrades, activeCounterparties, totalValue)
	return err
}

// Gauges returns the state object behind the observable gauges
func (r *Recorder) Gauges() *Gauges {
	return r.gauges
}

// Close unregisters the gauge callback
func (r *Recorder) Close() error {
	if r.registration == nil {
		return nil
	}
	return r.registration.Unregister()
}

// Observe records one lifecycle event
func (r *Recorder) Observe(ctx context.Context, event lifecycle.Event) {
	r.gauges.Observe(ctx, event)

	switch event.Type {
	case lifecycle.EventTradeCreated:
		attrs := tradeAttributes(event.Trade.Instrument, event.Trade.TradeType)
		r.TradesCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
		r.TradeCreationTime.Record(ctx, millis(event), metric.WithAttributes(attribute.String("instrument", event.Trade.Instrument)))

	case lifecycle.EventTradeRejected:
		attrs := append(tradeAttributes(event.Instrument, event.TradeType), attribute.String("error_type", event.Reason))
		r.TradesFailed.Add(ctx, 1, metric.WithAttributes(attrs...))

	case lifecycle.EventTradeStatusChanged:
		r.TradeProcessingTime.Record(ctx, millis(event), metric.WithAttributes(attribute.String("operation", OperationStatusUpdate)))
		if event.PreviousTradeStatus == event.Trade.Status {
			return
		}
		attrs := tradeAttributes(event.Trade.Instrument, event.Trade.TradeType)
		switch event.Trade.Status {
		case models.TradeStatusConfirmed:
			r.TradesConfirmed.Add(ctx, 1, metric.WithAttributes(attrs...))
		case models.TradeStatusSettled:
			r.TradesSettled.Add(ctx, 1, metric.WithAttributes(attrs...))
		case models.TradeStatusFailed:
			attrs = append(attrs, attribute.String("error_type", ErrorTypeStatusFailed))
			r.TradesFailed.Add(ctx, 1, metric.WithAttributes(attrs...))
		}

	case lifecycle.EventCounterpartyCreated:
		attrs := metric.WithAttributes(attribute.String("type", string(event.Counterparty.Type)))
		r.CounterpartiesCreated.Add(ctx, 1, attrs)
		r.CounterpartyCreationTime.Record(ctx, millis(event), attrs)

	case lifecycle.EventCounterpartyUpdated, lifecycle.EventCounterpartyStatus:
		attrs := metric.WithAttributes(attribute.String("type", string(event.Counterparty.Type)))
		wasActive := event.PreviousCounterpartyStatus == models.CounterpartyStatusActive
		switch {
		case !wasActive && event.Counterparty.IsActive():
			r.CounterpartiesActivated.Add(ctx, 1, attrs)
		case wasActive && !event.Counterparty.IsActive():
			r.CounterpartiesDeactivated.Add(ctx, 1, attrs)
		}
	}
}

func tradeAttributes(instrument string, tradeType models.TradeType) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("instrument", instrument),
		attribute.String("type", string(tradeType)),
	}
}

func millis(event lifecycle.Event) float64 {
	return float64(event.Elapsed.Microseconds()) / 1000
}
