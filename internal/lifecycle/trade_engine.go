package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"trade-ledger/pkg/models"
)

// TradeStats summarises the trade book by status
type TradeStats struct {
	Total     int64 `json:"total_count"`
	Pending   int64 `json:"pending_count"`
	Confirmed int64 `json:"confirmed_count"`
	Settled   int64 `json:"settled_count"`
	Cancelled int64 `json:"cancelled_count"`
	Failed    int64 `json:"failed_count"`
}

// TradeEngine validates and executes trade creation, update, status changes and deletion
type TradeEngine struct {
	store Store
	opts  options
	log   *logrus.Entry
}

// NewTradeEngine creates a trade engine over store
func NewTradeEngine(store Store, opts ...Option) *TradeEngine {
	o := buildOptions(opts)
	return &TradeEngine{
		store: store,
		opts:  o,
		log:   o.logger.WithField("component", "trade_engine"),
	}
}

// CreateTrade books a new PENDING trade.
//
// Field validation runs first, then in order: reference uniqueness, counterparty
// existence, counterparty status, settlement date ordering.
func (e *TradeEngine) CreateTrade(ctx context.Context, req TradeRequest) (*models.Trade, error) {
	started := e.opts.now()
	log := e.log.WithField("trade_reference", req.TradeReference)
	log.Debug("Creating trade")

	if fields := req.Validate(); len(fields) > 0 {
		return nil, e.rejectCreate(ctx, req, validationError(fields), started)
	}

	var trade *models.Trade
	err := e.store.Transaction(ctx, func(tx Store) error {
		counterparty, err := e.checkRules(ctx, tx, req, 0)
		if err != nil {
			return err
		}

		trade = &models.Trade{Status: models.TradeStatusPending}
		req.apply(trade)
		if err := saveTrade(ctx, tx, trade); err != nil {
			return err
		}
		trade.Counterparty = counterparty
		return nil
	})
	if err != nil {
		return nil, e.rejectCreate(ctx, req, e.classify("create trade", err), started)
	}

	log.WithField("trade_id", trade.ID).Info("Created trade")
	e.publish(ctx, Event{
		Type:    EventTradeCreated,
		Trade:   trade,
		Elapsed: e.opts.now().Sub(started),
	})
	return trade, nil
}

// UpdateTrade replaces every field of trade id except its status
func (e *TradeEngine) UpdateTrade(ctx context.Context, id uint, req TradeRequest) (*models.Trade, error) {
	log := e.log.WithField("trade_id", id)
	log.Debug("Updating trade")

	if fields := req.Validate(); len(fields) > 0 {
		return nil, validationError(fields)
	}

	var trade, previous *models.Trade
	err := e.store.Transaction(ctx, func(tx Store) error {
		existing, err := tx.Trades().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return tradeNotFound(id)
		}

		counterparty, err := e.checkRules(ctx, tx, req, id)
		if err != nil {
			return err
		}

		previous = cloneTrade(existing)
		req.apply(existing)
		if err := saveTrade(ctx, tx, existing); err != nil {
			return err
		}
		existing.Counterparty = counterparty
		trade = existing
		return nil
	})
	if err != nil {
		return nil, e.fail(log, "update trade", err)
	}

	log.Info("Updated trade")
	e.publish(ctx, Event{Type: EventTradeUpdated, Trade: trade, PreviousTrade: previous})
	return trade, nil
}

// UpdateTradeStatus overwrites the status of trade id. Any status may follow any other.
func (e *TradeEngine) UpdateTradeStatus(ctx context.Context, id uint, status models.TradeStatus) (*models.Trade, error) {
	started := e.opts.now()
	log := e.log.WithFields(logrus.Fields{"trade_id": id, "status": status})
	log.Debug("Updating trade status")

	if !status.Valid() {
		v := NewValidator()
		v.ValidateEnum("status", string(status), false, tradeStatusNames())
		return nil, validationError(v.Errors())
	}

	var (
		trade    *models.Trade
		previous models.TradeStatus
	)
	err := e.store.Transaction(ctx, func(tx Store) error {
		existing, err := tx.Trades().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return tradeNotFound(id)
		}

		previous = existing.Status
		existing.Status = status
		if err := saveTrade(ctx, tx, existing); err != nil {
			return err
		}
		trade = existing
		return nil
	})
	if err != nil {
		return nil, e.fail(log, "update trade status", err)
	}

	if previous != status && !CanonicalTransition(previous, status) {
		log.WithField("previous_status", previous).Warn("Applied non-canonical trade status transition")
	}
	log.WithField("previous_status", previous).Info("Updated trade status")
	e.publish(ctx, Event{
		Type:                EventTradeStatusChanged,
		Trade:               trade,
		PreviousTradeStatus: previous,
		Elapsed:             e.opts.now().Sub(started),
	})
	return trade, nil
}

// DeleteTrade removes trade id unless it is CONFIRMED or SETTLED
func (e *TradeEngine) DeleteTrade(ctx context.Context, id uint) error {
	log := e.log.WithField("trade_id", id)
	log.Debug("Deleting trade")

	var trade *models.Trade
	err := e.store.Transaction(ctx, func(tx Store) error {
		existing, err := tx.Trades().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return tradeNotFound(id)
		}
		if !existing.Status.Deletable() {
			return newError(KindInvalidState, ReasonTradeLocked, "cannot delete confirmed or settled trades")
		}
		if err := tx.Trades().Delete(ctx, id); err != nil {
			return err
		}
		trade = existing
		return nil
	})
	if err != nil {
		return e.fail(log, "delete trade", err)
	}

	log.Info("Deleted trade")
	e.publish(ctx, Event{Type: EventTradeDeleted, Trade: trade})
	return nil
}

// GetTrade returns trade id, or nil when it does not exist
func (e *TradeEngine) GetTrade(ctx context.Context, id uint) (*models.Trade, error) {
	trade, err := e.store.Trades().FindByID(ctx, id)
	if err != nil {
		return nil, e.classify("get trade", err)
	}
	return trade, nil
}

// GetTradeByReference returns the trade with the given reference, or nil
func (e *TradeEngine) GetTradeByReference(ctx context.Context, reference string) (*models.Trade, error) {
	trade, err := e.store.Trades().FindByReference(ctx, reference)
	if err != nil {
		return nil, e.classify("get trade by reference", err)
	}
	return trade, nil
}

// ListTrades returns one page of trades, newest trade date first
func (e *TradeEngine) ListTrades(ctx context.Context, page Page) ([]models.Trade, error) {
	return e.find(ctx, "list trades", TradeFilter{}, e.opts.normalize(page))
}

// ListAllTrades returns every trade, newest trade date first
func (e *TradeEngine) ListAllTrades(ctx context.Context) ([]models.Trade, error) {
	return e.find(ctx, "list all trades", TradeFilter{}, Page{})
}

// SearchTrades returns one page of trades matching filter
func (e *TradeEngine) SearchTrades(ctx context.Context, filter TradeFilter, page Page) ([]models.Trade, error) {
	return e.find(ctx, "search trades", filter, e.opts.normalize(page))
}

// TradesByCounterparty returns every trade booked against counterpartyID
func (e *TradeEngine) TradesByCounterparty(ctx context.Context, counterpartyID uint) ([]models.Trade, error) {
	return e.find(ctx, "trades by counterparty", TradeFilter{CounterpartyID: counterpartyID}, Page{})
}

// TradesByCounterpartyPage returns one page of trades booked against counterpartyID
func (e *TradeEngine) TradesByCounterpartyPage(ctx context.Context, counterpartyID uint, page Page) ([]models.Trade, error) {
	return e.find(ctx, "trades by counterparty", TradeFilter{CounterpartyID: counterpartyID}, e.opts.normalize(page))
}

// TradesByStatus returns every trade currently in status
func (e *TradeEngine) TradesByStatus(ctx context.Context, status models.TradeStatus) ([]models.Trade, error) {
	if !status.Valid() {
		v := NewValidator()
		v.ValidateEnum("status", string(status), false, tradeStatusNames())
		return nil, validationError(v.Errors())
	}
	return e.find(ctx, "trades by status", TradeFilter{Status: status}, Page{})
}

// PendingTrades returns every PENDING trade
func (e *TradeEngine) PendingTrades(ctx context.Context) ([]models.Trade, error) {
	return e.find(ctx, "pending trades", TradeFilter{Status: models.TradeStatusPending}, Page{})
}

// TradesByDateRange returns trades whose trade date lies in [start, end].
// A reversed range is swapped.
func (e *TradeEngine) TradesByDateRange(ctx context.Context, start, end time.Time) ([]models.Trade, error) {
	start, end, err := dateRange(start, end)
	if err != nil {
		return nil, err
	}
	return e.find(ctx, "trades by date range", TradeFilter{TradeDateFrom: start, TradeDateTo: end}, Page{})
}

// TradesBySettlementDateRange returns trades settling in [start, end]
func (e *TradeEngine) TradesBySettlementDateRange(ctx context.Context, start, end time.Time) ([]models.Trade, error) {
	start, end, err := dateRange(start, end)
	if err != nil {
		return nil, err
	}
	return e.find(ctx, "trades by settlement date range", TradeFilter{SettlementDateFrom: start, SettlementDateTo: end}, Page{})
}

// RecentTrades returns trades dated within the last days days, today included
func (e *TradeEngine) RecentTrades(ctx context.Context, days int) ([]models.Trade, error) {
	if days < 0 {
		return nil, validationError(ValidationErrors{{Field: "days", Message: "days cannot be negative"}})
	}
	cutoff := models.Date(e.opts.now()).AddDate(0, 0, -days)
	return e.find(ctx, "recent trades", TradeFilter{TradeDateFrom: cutoff}, Page{})
}

// TradesByInstrument returns every trade in instrument
func (e *TradeEngine) TradesByInstrument(ctx context.Context, instrument string) ([]models.Trade, error) {
	return e.find(ctx, "trades by instrument", TradeFilter{Instrument: instrument}, Page{})
}

// TradesByType returns every BUY or every SELL trade
func (e *TradeEngine) TradesByType(ctx context.Context, tradeType models.TradeType) ([]models.Trade, error) {
	return e.find(ctx, "trades by type", TradeFilter{TradeType: tradeType}, Page{})
}

// TradesByCurrency returns every trade denominated in currency
func (e *TradeEngine) TradesByCurrency(ctx context.Context, currency string) ([]models.Trade, error) {
	return e.find(ctx, "trades by currency", TradeFilter{Currency: currency}, Page{})
}

// TradesAboveValue returns trades whose total value is at least minValue
func (e *TradeEngine) TradesAboveValue(ctx context.Context, minValue decimal.Decimal) ([]models.Trade, error) {
	return e.find(ctx, "trades above value", TradeFilter{MinTotalValue: &minValue}, Page{})
}

// TotalValueByCounterparty sums quantity × price over every trade of counterpartyID.
// It is zero when the counterparty has no trades.
func (e *TradeEngine) TotalValueByCounterparty(ctx context.Context, counterpartyID uint) (decimal.Decimal, error) {
	total, err := e.store.Trades().TotalValue(ctx, counterpartyID)
	if err != nil {
		return decimal.Zero, e.classify("total trade value", err)
	}
	return total, nil
}

// TradeStats counts trades overall and per status
func (e *TradeEngine) TradeStats(ctx context.Context) (TradeStats, error) {
	var stats TradeStats
	counts := []struct {
		filter TradeFilter
		dst    *int64
	}{
		{TradeFilter{}, &stats.Total},
		{TradeFilter{Status: models.TradeStatusPending}, &stats.Pending},
		{TradeFilter{Status: models.TradeStatusConfirmed}, &stats.Confirmed},
		{TradeFilter{Status: models.TradeStatusSettled}, &stats.Settled},
		{TradeFilter{Status: models.TradeStatusCancelled}, &stats.Cancelled},
		{TradeFilter{Status: models.TradeStatusFailed}, &stats.Failed},
	}
	for _, c := range counts {
		n, err := e.store.Trades().Count(ctx, c.filter)
		if err != nil {
			return TradeStats{}, e.classify("trade stats", err)
		}
		*c.dst = n
	}
	return stats, nil
}

func (e *TradeEngine) checkRules(ctx context.Context, tx Store, req TradeRequest, selfID uint) (*models.Counterparty, error) {
	exists, err := tx.Trades().ExistsByReference(ctx, req.TradeReference, selfID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, duplicateReference(req.TradeReference)
	}

	counterparty, err := tx.Counterparties().FindByID(ctx, req.CounterpartyID)
	if err != nil {
		return nil, err
	}
	if counterparty == nil {
		return nil, newError(KindInvalidReference, ReasonCounterpartyNotFound, "counterparty not found with id: %d", req.CounterpartyID)
	}
	if !counterparty.IsActive() {
		return nil, newError(KindInvalidReference, ReasonCounterpartyInactive, "cannot book trade with inactive counterparty: %s", counterparty.Code)
	}

	if models.Date(req.SettlementDate).Before(models.Date(req.TradeDate)) {
		return nil, newError(KindInvalidTemporalOrder, ReasonInvalidSettlementDate, "settlement date cannot be before trade date")
	}
	return counterparty, nil
}

func saveTrade(ctx context.Context, tx Store, trade *models.Trade) error {
	err := tx.Trades().Save(ctx, trade)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUniqueViolation):
		return duplicateReference(trade.TradeReference)
	case errors.Is(err, ErrForeignKeyViolation):
		return newError(KindInvalidReference, ReasonCounterpartyNotFound, "counterparty not found with id: %d", trade.CounterpartyID)
	}
	return err
}

func (e *TradeEngine) find(ctx context.Context, op string, filter TradeFilter, page Page) ([]models.Trade, error) {
	trades, err := e.store.Trades().Find(ctx, filter, page)
	if err != nil {
		return nil, e.classify(op, err)
	}
	if trades == nil {
		trades = []models.Trade{}
	}
	return trades, nil
}

func (e *TradeEngine) rejectCreate(ctx context.Context, req TradeRequest, err error, started time.Time) error {
	kind, reason := KindOf(err), ReasonOf(err)
	if kind != KindSystem {
		e.log.WithFields(logrus.Fields{
			"trade_reference": req.TradeReference,
			"kind":            kind,
			"reason":          reason,
		}).Warn("Rejected trade")
	}
	e.publish(ctx, Event{
		Type:       EventTradeRejected,
		Instrument: req.Instrument,
		TradeType:  req.TradeType,
		Kind:       kind,
		Reason:     reason,
		Elapsed:    e.opts.now().Sub(started),
	})
	return err
}

func (e *TradeEngine) fail(log *logrus.Entry, op string, err error) error {
	err = e.classify(op, err)
	if KindOf(err) != KindSystem {
		log.WithField("reason", ReasonOf(err)).Warnf("Rejected %s", op)
	}
	return err
}

func (e *TradeEngine) classify(op string, err error) error {
	return classify(e.log, op, err)
}

func (e *TradeEngine) publish(ctx context.Context, event Event) {
	event.OccurredAt = e.opts.now()
	if event.Trade != nil {
		event.Trade = cloneTrade(event.Trade)
		event.Counterparty = event.Trade.Counterparty
	}
	Observers{e.opts.observer}.Observe(ctx, event)
}

// classify passes lifecycle errors through and turns anything else into a logged System error
func classify(log *logrus.Entry, op string, err error) error {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr
	}
	log.WithError(err).WithField("operation", op).Error("Lifecycle operation failed")
	return systemError(op, err)
}

func dateRange(start, end time.Time) (time.Time, time.Time, error) {
	v := NewValidator()
	v.ValidateDate("start_date", start)
	v.ValidateDate("end_date", end)
	if v.HasErrors() {
		return start, end, validationError(v.Errors())
	}
	start, end = models.Date(start), models.Date(end)
	if start.After(end) {
		start, end = end, start
	}
	return start, end, nil
}

func cloneTrade(t *models.Trade) *models.Trade {
	c := *t
	if t.Counterparty != nil {
		cp := *t.Counterparty
		c.Counterparty = &cp
	}
	return &c
}
