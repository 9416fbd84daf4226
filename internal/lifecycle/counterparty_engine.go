package lifecycle

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"trade-ledger/pkg/models"
)

// CounterpartyStats summarises the counterparty book
type CounterpartyStats struct {
	Total         int64 `json:"total_count"`
	Active        int64 `json:"active_count"`
	Inactive      int64 `json:"inactive_count"`
	Suspended     int64 `json:"suspended_count"`
	Individual    int64 `json:"individual_count"`
	Corporate     int64 `json:"corporate_count"`
	Institutional int64 `json:"institutional_count"`
	WithTrades    int64 `json:"with_trades_count"`
}

// CounterpartyEngine validates and executes counterparty registration, update and deletion
type CounterpartyEngine struct {
	store Store
	opts  options
	log   *logrus.Entry
}

// NewCounterpartyEngine creates a counterparty engine over store
func NewCounterpartyEngine(store Store, opts ...Option) *CounterpartyEngine {
	o := buildOptions(opts)
	return &CounterpartyEngine{
		store: store,
		opts:  o,
		log:   o.logger.WithField("component", "counterparty_engine"),
	}
}

// CreateCounterparty registers a counterparty. The code must be unused; status defaults to ACTIVE.
func (e *CounterpartyEngine) CreateCounterparty(ctx context.Context, req CounterpartyRequest) (*models.Counterparty, error) {
	started := e.opts.now()
	log := e.log.WithField("code", req.Code)
	log.Debug("Creating counterparty")

	if fields := req.Validate(); len(fields) > 0 {
		return nil, validationError(fields)
	}

	var counterparty *models.Counterparty
	err := e.store.Transaction(ctx, func(tx Store) error {
		exists, err := tx.Counterparties().ExistsByCode(ctx, req.Code, 0)
		if err != nil {
			return err
		}
		if exists {
			return duplicateCode(req.Code)
		}

		counterparty = &models.Counterparty{}
		req.apply(counterparty)
		return saveCounterparty(ctx, tx, counterparty)
	})
	if err != nil {
		return nil, e.fail(log, "create counterparty", err)
	}

	log.WithField("counterparty_id", counterparty.ID).Info("Created counterparty")
	e.publish(ctx, Event{
		Type:         EventCounterpartyCreated,
		Counterparty: counterparty,
		Elapsed:      e.opts.now().Sub(started),
	})
	return counterparty, nil
}

// UpdateCounterparty replaces every field of counterparty id, status included
func (e *CounterpartyEngine) UpdateCounterparty(ctx context.Context, id uint, req CounterpartyRequest) (*models.Counterparty, error) {
	log := e.log.WithField("counterparty_id", id)
	log.Debug("Updating counterparty")

	if fields := req.Validate(); len(fields) > 0 {
		return nil, validationError(fields)
	}

	var (
		counterparty *models.Counterparty
		previous     models.CounterpartyStatus
	)
	err := e.store.Transaction(ctx, func(tx Store) error {
		existing, err := tx.Counterparties().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return counterpartyNotFound(id)
		}

		exists, err := tx.Counterparties().ExistsByCode(ctx, req.Code, id)
		if err != nil {
			return err
		}
		if exists {
			return duplicateCode(req.Code)
		}

		previous = existing.Status
		req.apply(existing)
		if err := saveCounterparty(ctx, tx, existing); err != nil {
			return err
		}
		counterparty = existing
		return nil
	})
	if err != nil {
		return nil, e.fail(log, "update counterparty", err)
	}

	log.Info("Updated counterparty")
	e.publish(ctx, Event{
		Type:                       EventCounterpartyUpdated,
		Counterparty:               counterparty,
		PreviousCounterpartyStatus: previous,
	})
	return counterparty, nil
}

// UpdateCounterpartyStatus changes only the status of counterparty id
func (e *CounterpartyEngine) UpdateCounterpartyStatus(ctx context.Context, id uint, status models.CounterpartyStatus) (*models.Counterparty, error) {
	log := e.log.WithFields(logrus.Fields{"counterparty_id": id, "status": status})

	if !status.Valid() {
		v := NewValidator()
		v.ValidateEnum("status", string(status), false, counterpartyStatusNames())
		return nil, validationError(v.Errors())
	}

	var (
		counterparty *models.Counterparty
		previous     models.CounterpartyStatus
	)
	err := e.store.Transaction(ctx, func(tx Store) error {
		existing, err := tx.Counterparties().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return counterpartyNotFound(id)
		}

		previous = existing.Status
		existing.Status = status
		if err := saveCounterparty(ctx, tx, existing); err != nil {
			return err
		}
		counterparty = existing
		return nil
	})
	if err != nil {
		return nil, e.fail(log, "update counterparty status", err)
	}

	log.WithField("previous_status", previous).Info("Updated counterparty status")
	e.publish(ctx, Event{
		Type:                       EventCounterpartyStatus,
		Counterparty:               counterparty,
		PreviousCounterpartyStatus: previous,
	})
	return counterparty, nil
}

// DeleteCounterparty removes counterparty id. It is refused while any trade references it.
func (e *CounterpartyEngine) DeleteCounterparty(ctx context.Context, id uint) error {
	log := e.log.WithField("counterparty_id", id)
	log.Debug("Deleting counterparty")

	var counterparty *models.Counterparty
	err := e.store.Transaction(ctx, func(tx Store) error {
		existing, err := tx.Counterparties().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return counterpartyNotFound(id)
		}

		trades, err := tx.Trades().Count(ctx, TradeFilter{CounterpartyID: id})
		if err != nil {
			return err
		}
		if trades > 0 {
			return hasTrades()
		}

		err = tx.Counterparties().Delete(ctx, id)
		if errors.Is(err, ErrForeignKeyViolation) {
			return hasTrades()
		}
		if err != nil {
			return err
		}
		counterparty = existing
		return nil
	})
	if err != nil {
		return e.fail(log, "delete counterparty", err)
	}

	log.Info("Deleted counterparty")
	e.publish(ctx, Event{Type: EventCounterpartyDeleted, Counterparty: counterparty})
	return nil
}

// GetCounterparty returns counterparty id, or nil when it does not exist
func (e *CounterpartyEngine) GetCounterparty(ctx context.Context, id uint) (*models.Counterparty, error) {
	counterparty, err := e.store.Counterparties().FindByID(ctx, id)
	if err != nil {
		return nil, classify(e.log, "get counterparty", err)
	}
	return counterparty, nil
}

// GetCounterpartyByCode returns the counterparty with code, or nil
func (e *CounterpartyEngine) GetCounterpartyByCode(ctx context.Context, code string) (*models.Counterparty, error) {
	counterparty, err := e.store.Counterparties().FindByCode(ctx, code)
	if err != nil {
		return nil, classify(e.log, "get counterparty by code", err)
	}
	return counterparty, nil
}

// ListCounterparties returns one page of counterparties ordered by name
func (e *CounterpartyEngine) ListCounterparties(ctx context.Context, page Page) ([]models.Counterparty, error) {
	return e.find(ctx, "list counterparties", CounterpartyFilter{}, e.opts.normalize(page))
}

// ListAllCounterparties returns every counterparty ordered by name
func (e *CounterpartyEngine) ListAllCounterparties(ctx context.Context) ([]models.Counterparty, error) {
	return e.find(ctx, "list all counterparties", CounterpartyFilter{}, Page{})
}

// CounterpartiesByType returns every counterparty of type t
func (e *CounterpartyEngine) CounterpartiesByType(ctx context.Context, t models.CounterpartyType) ([]models.Counterparty, error) {
	if !t.Valid() {
		v := NewValidator()
		v.ValidateEnum("type", string(t), false, counterpartyTypeNames())
		return nil, validationError(v.Errors())
	}
	return e.find(ctx, "counterparties by type", CounterpartyFilter{Type: t}, Page{})
}

// CounterpartiesByStatus returns every counterparty in status
func (e *CounterpartyEngine) CounterpartiesByStatus(ctx context.Context, status models.CounterpartyStatus) ([]models.Counterparty, error) {
	if !status.Valid() {
		v := NewValidator()
		v.ValidateEnum("status", string(status), false, counterpartyStatusNames())
		return nil, validationError(v.Errors())
	}
	return e.find(ctx, "counterparties by status", CounterpartyFilter{Status: status}, Page{})
}

// ActiveCounterparties returns every ACTIVE counterparty
func (e *CounterpartyEngine) ActiveCounterparties(ctx context.Context) ([]models.Counterparty, error) {
	return e.find(ctx, "active counterparties", CounterpartyFilter{Status: models.CounterpartyStatusActive}, Page{})
}

// SearchCounterparties matches name case-insensitively on substring
func (e *CounterpartyEngine) SearchCounterparties(ctx context.Context, name string) ([]models.Counterparty, error) {
	return e.find(ctx, "search counterparties", CounterpartyFilter{NameContains: name}, Page{})
}

// CounterpartiesWithTrades returns counterparties referenced by at least one trade
func (e *CounterpartyEngine) CounterpartiesWithTrades(ctx context.Context) ([]models.Counterparty, error) {
	with := true
	return e.find(ctx, "counterparties with trades", CounterpartyFilter{HasTrades: &with}, Page{})
}

// CounterpartiesWithoutTrades returns counterparties no trade references
func (e *CounterpartyEngine) CounterpartiesWithoutTrades(ctx context.Context) ([]models.Counterparty, error) {
	with := false
	return e.find(ctx, "counterparties without trades", CounterpartyFilter{HasTrades: &with}, Page{})
}

// CounterpartyStats counts counterparties overall, per status and per type
func (e *CounterpartyEngine) CounterpartyStats(ctx context.Context) (CounterpartyStats, error) {
	var stats CounterpartyStats
	with := true
	counts := []struct {
		filter CounterpartyFilter
		dst    *int64
	}{
		{CounterpartyFilter{}, &stats.Total},
		{CounterpartyFilter{Status: models.CounterpartyStatusActive}, &stats.Active},
		{CounterpartyFilter{Status: models.CounterpartyStatusInactive}, &stats.Inactive},
		{CounterpartyFilter{Status: models.CounterpartyStatusSuspended}, &stats.Suspended},
		{CounterpartyFilter{Type: models.CounterpartyTypeIndividual}, &stats.Individual},
		{CounterpartyFilter{Type: models.CounterpartyTypeCorporate}, &stats.Corporate},
		{CounterpartyFilter{Type: models.CounterpartyTypeInstitutional}, &stats.Institutional},
		{CounterpartyFilter{HasTrades: &with}, &stats.WithTrades},
	}
	for _, c := range counts {
		n, err := e.store.Counterparties().Count(ctx, c.filter)
		if err != nil {
			return CounterpartyStats{}, classify(e.log, "counterparty stats", err)
		}
		*c.dst = n
	}
	return stats, nil
}

func (e *CounterpartyEngine) find(ctx context.Context, op string, filter CounterpartyFilter, page Page) ([]models.Counterparty, error) {
	counterparties, err := e.store.Counterparties().Find(ctx, filter, page)
	if err != nil {
		return nil, classify(e.log, op, err)
	}
	if counterparties == nil {
		counterparties = []models.Counterparty{}
	}
	return counterparties, nil
}

func (e *CounterpartyEngine) fail(log *logrus.Entry, op string, err error) error {
	err = classify(e.log, op, err)
	if KindOf(err) != KindSystem {
		log.WithField("reason", ReasonOf(err)).Warnf("Rejected %s", op)
	}
	return err
}

func (e *CounterpartyEngine) publish(ctx context.Context, event Event) {
	event.OccurredAt = e.opts.now()
	if event.Counterparty != nil {
		cp := *event.Counterparty
		event.Counterparty = &cp
	}
	Observers{e.opts.observer}.Observe(ctx, event)
}

func saveCounterparty(ctx context.Context, tx Store, counterparty *models.Counterparty) error {
	err := tx.Counterparties().Save(ctx, counterparty)
	if errors.Is(err, ErrUniqueViolation) {
		return duplicateCode(counterparty.Code)
	}
	return err
}

func hasTrades() *Error {
	return newError(KindInvalidState, ReasonHasTrades, "cannot delete counterparty with existing trades, delete its trades first")
}
