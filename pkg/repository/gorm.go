package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"trade-ledger/internal/lifecycle"
	"trade-ledger/pkg/models"
)

// GormStore is a lifecycle.Store backed by a gorm connection
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps db
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Trades returns the trade repository
func (s *GormStore) Trades() lifecycle.TradeRepository {
	return &gormTrades{db: s.db}
}

// Counterparties returns the counterparty repository
func (s *GormStore) Counterparties() lifecycle.CounterpartyRepository {
	return &gormCounterparties{db: s.db}
}

// Transaction runs fn inside a database transaction
func (s *GormStore) Transaction(ctx context.Context, fn func(tx lifecycle.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

type gormTrades struct {
	db *gorm.DB
}

func (r *gormTrades) FindByID(ctx context.Context, id uint) (*models.Trade, error) {
	var trade models.Trade
	err := r.db.WithContext(ctx).Preload("Counterparty").First(&trade, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	return &trade, nil
}

func (r *gormTrades) FindByReference(ctx context.Context, reference string) (*models.Trade, error) {
	var trade models.Trade
	err := r.db.WithContext(ctx).Preload("Counterparty").
		Where("trade_reference = ?", reference).
		First(&trade).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	return &trade, nil
}

func (r *gormTrades) ExistsByReference(ctx context.Context, reference string, excludeID uint) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.Trade{}).Where("trade_reference = ?", reference)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, translate(err)
	}
	return count > 0, nil
}

func (r *gormTrades) Find(ctx context.Context, filter lifecycle.TradeFilter, page lifecycle.Page) ([]models.Trade, error) {
	query := tradeScope(r.db.WithContext(ctx).Preload("Counterparty"), filter).
		Order("trade_date DESC, created_at DESC, id DESC")
	if page.Size > 0 {
		query = query.Offset(page.Offset()).Limit(page.Size)
	}

	var trades []models.Trade
	if err := query.Find(&trades).Error; err != nil {
		return nil, translate(err)
	}
	return trades, nil
}

func (r *gormTrades) Count(ctx context.Context, filter lifecycle.TradeFilter) (int64, error) {
	var count int64
	err := tradeScope(r.db.WithContext(ctx).Model(&models.Trade{}), filter).Count(&count).Error
	if err != nil {
		return 0, translate(err)
	}
	return count, nil
}

func (r *gormTrades) TotalValue(ctx context.Context, counterpartyID uint) (decimal.Decimal, error) {
	var total decimal.Decimal
	row := r.db.WithContext(ctx).Model(&models.Trade{}).
		Select("COALESCE(SUM(quantity * price), 0)").
		Where("counterparty_id = ?", counterpartyID).
		Row()
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, translate(err)
	}
	return total, nil
}

func (r *gormTrades) Save(ctx context.Context, trade *models.Trade) error {
	db := r.db.WithContext(ctx).Omit(clause.Associations)
	if trade.ID == 0 {
		return translate(db.Create(trade).Error)
	}
	return translate(db.Save(trade).Error)
}

func (r *gormTrades) Delete(ctx context.Context, id uint) error {
	return translate(r.db.WithContext(ctx).Delete(&models.Trade{}, id).Error)
}

func tradeScope(db *gorm.DB, f lifecycle.TradeFilter) *gorm.DB {
	if f.CounterpartyID != 0 {
		db = db.Where("counterparty_id = ?", f.CounterpartyID)
	}
	if f.Status != "" {
		db = db.Where("status = ?", f.Status)
	}
	if f.TradeType != "" {
		db = db.Where("trade_type = ?", f.TradeType)
	}
	if f.Instrument != "" {
		db = db.Where("instrument = ?", f.Instrument)
	}
	if f.Currency != "" {
		db = db.Where("currency = ?", f.Currency)
	}
	if !f.TradeDateFrom.IsZero() {
		db = db.Where("trade_date >= ?", models.Date(f.TradeDateFrom))
	}
	if !f.TradeDateTo.IsZero() {
		db = db.Where("trade_date <= ?", models.Date(f.TradeDateTo))
	}
	if !f.SettlementDateFrom.IsZero() {
		db = db.Where("settlement_date >= ?", models.Date(f.SettlementDateFrom))
	}
	if !f.SettlementDateTo.IsZero() {
		db = db.Where("settlement_date <= ?", models.Date(f.SettlementDateTo))
	}
	if f.MinTotalValue != nil {
		db = db.Where("quantity * price >= ?", *f.MinTotalValue)
	}
	return db
}

type gormCounterparties struct {
	db *gorm.DB
}

func (r *gormCounterparties) FindByID(ctx context.Context, id uint) (*models.Counterparty, error) {
	var counterparty models.Counterparty
	err := r.db.WithContext(ctx).First(&counterparty, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	return &counterparty, nil
}

func (r *gormCounterparties) FindByCode(ctx context.Context, code string) (*models.Counterparty, error) {
	var counterparty models.Counterparty
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&counterparty).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	return &counterparty, nil
}

func (r *gormCounterparties) ExistsByCode(ctx context.Context, code string, excludeID uint) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.Counterparty{}).Where("code = ?", code)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, translate(err)
	}
	return count > 0, nil
}

func (r *gormCounterparties) Find(ctx context.Context, filter lifecycle.CounterpartyFilter, page lifecycle.Page) ([]models.Counterparty, error) {
	query := counterpartyScope(r.db.WithContext(ctx), filter).Order("LOWER(name) ASC, name ASC, id ASC")
	if page.Size > 0 {
		query = query.Offset(page.Offset()).Limit(page.Size)
	}

	var counterparties []models.Counterparty
	if err := query.Find(&counterparties).Error; err != nil {
		return nil, translate(err)
	}
	return counterparties, nil
}

func (r *gormCounterparties) Count(ctx context.Context, filter lifecycle.CounterpartyFilter) (int64, error) {
	var count int64
	err := counterpartyScope(r.db.WithContext(ctx).Model(&models.Counterparty{}), filter).Count(&count).Error
	if err != nil {
		return 0, translate(err)
	}
	return count, nil
}

func (r *gormCounterparties) Save(ctx context.Context, counterparty *models.Counterparty) error {
	db := r.db.WithContext(ctx)
	if counterparty.ID == 0 {
		return translate(db.Create(counterparty).Error)
	}
	return translate(db.Save(counterparty).Error)
}

func (r *gormCounterparties) Delete(ctx context.Context, id uint) error {
	return translate(r.db.WithContext(ctx).Delete(&models.Counterparty{}, id).Error)
}

const tradesExist = "EXISTS (SELECT 1 FROM trades WHERE trades.counterparty_id = counterparties.id)"

func counterpartyScope(db *gorm.DB, f lifecycle.CounterpartyFilter) *gorm.DB {
	if f.Type != "" {
		db = db.Where("type = ?", f.Type)
	}
	if f.Status != "" {
		db = db.Where("status = ?", f.Status)
	}
	if f.NameContains != "" {
		db = db.Where("LOWER(name) LIKE ?", "%"+escapeLike(strings.ToLower(f.NameContains))+"%")
	}
	if f.HasTrades != nil {
		if *f.HasTrades {
			db = db.Where(tradesExist)
		} else {
			db = db.Where("NOT " + tradesExist)
		}
	}
	return db
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
