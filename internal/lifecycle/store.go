package lifecycle

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"trade-ledger/pkg/models"
)

// Page selects a zero-based page of results. A zero Size means "everything".
type Page struct {
	Index int
	Size  int
}

// Offset returns the number of rows to skip, saturating at math.MaxInt
func (p Page) Offset() int {
	if p.Index <= 0 || p.Size <= 0 {
		return 0
	}
	if p.Index > math.MaxInt/p.Size {
		return math.MaxInt
	}
	return p.Index * p.Size
}

// TradeFilter narrows trade queries. Zero-valued fields do not filter.
type TradeFilter struct {
	CounterpartyID     uint
	Status             models.TradeStatus
	TradeType          models.TradeType
	Instrument         string
	Currency           string
	TradeDateFrom      time.Time
	TradeDateTo        time.Time
	SettlementDateFrom time.Time
	SettlementDateTo   time.Time
	MinTotalValue      *decimal.Decimal
}

// CounterpartyFilter narrows counterparty queries. Zero-valued fields do not filter.
type CounterpartyFilter struct {
	Type         models.CounterpartyType
	Status       models.CounterpartyStatus
	NameContains string
	HasTrades    *bool
}

// TradeRepository persists trades.
//
// Lookups return (nil, nil) when nothing matches and always load the owning
// counterparty. Find returns trades ordered by trade date desc, created-at desc.
type TradeRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Trade, error)
	FindByReference(ctx context.Context, reference string) (*models.Trade, error)
	ExistsByReference(ctx context.Context, reference string, excludeID uint) (bool, error)
	Find(ctx context.Context, filter TradeFilter, page Page) ([]models.Trade, error)
	Count(ctx context.Context, filter TradeFilter) (int64, error)
	TotalValue(ctx context.Context, counterpartyID uint) (decimal.Decimal, error)
	Save(ctx context.Context, trade *models.Trade) error
	Delete(ctx context.Context, id uint) error
}

// CounterpartyRepository persists counterparties.
//
// Lookups return (nil, nil) when nothing matches. Find returns counterparties
// ordered by name asc.
type CounterpartyRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Counterparty, error)
	FindByCode(ctx context.Context, code string) (*models.Counterparty, error)
	ExistsByCode(ctx context.Context, code string, excludeID uint) (bool, error)
	Find(ctx context.Context, filter CounterpartyFilter, page Page) ([]models.Counterparty, error)
	Count(ctx context.Context, filter CounterpartyFilter) (int64, error)
	Save(ctx context.Context, counterparty *models.Counterparty) error
	Delete(ctx context.Context, id uint) error
}

// Store groups both repositories behind one transaction boundary
type Store interface {
	Trades() TradeRepository
	Counterparties() CounterpartyRepository
	// Transaction runs fn with a Store bound to a single transaction.
	// Returning an error from fn rolls the transaction back.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}
