package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeType represents the direction of a trade
type TradeType string

const (
	TradeTypeBuy  TradeType = "BUY"
	TradeTypeSell TradeType = "SELL"
)

// Valid reports whether t is BUY or SELL
func (t TradeType) Valid() bool {
	return t == TradeTypeBuy || t == TradeTypeSell
}

// TradeStatus represents where a trade is in its settlement lifecycle
type TradeStatus string

const (
	TradeStatusPending   TradeStatus = "PENDING"
	TradeStatusConfirmed TradeStatus = "CONFIRMED"
	TradeStatusSettled   TradeStatus = "SETTLED"
	TradeStatusCancelled TradeStatus = "CANCELLED"
	TradeStatusFailed    TradeStatus = "FAILED"
)

// TradeStatuses lists every known trade status
var TradeStatuses = []TradeStatus{
	TradeStatusPending,
	TradeStatusConfirmed,
	TradeStatusSettled,
	TradeStatusCancelled,
	TradeStatusFailed,
}

// Valid reports whether s is a known trade status
func (s TradeStatus) Valid() bool {
	for _, known := range TradeStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Deletable reports whether a trade in this status may be removed
func (s TradeStatus) Deletable() bool {
	return s != TradeStatusConfirmed && s != TradeStatusSettled
}

// Trade is a single booked trade against one counterparty
type Trade struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	TradeReference string          `gorm:"not null;size:50;uniqueIndex:idx_trades_trade_reference" json:"trade_reference"`
	CounterpartyID uint            `gorm:"not null;index" json:"counterparty_id"`
	Instrument     string          `gorm:"not null;size:100;index" json:"instrument"`
	TradeType      TradeType       `gorm:"not null;size:4" json:"trade_type"`
	Quantity       decimal.Decimal `gorm:"type:decimal(19,4);not null" json:"quantity"`
	Price          decimal.Decimal `gorm:"type:decimal(19,4);not null" json:"price"`
	TradeDate      time.Time       `gorm:"type:date;not null;index" json:"trade_date"`
	SettlementDate time.Time       `gorm:"type:date;not null" json:"settlement_date"`
	Currency       string          `gorm:"not null;size:3" json:"currency"`
	Status         TradeStatus     `gorm:"not null;size:20;default:'PENDING';index" json:"status"`
	Notes          string          `gorm:"size:1000" json:"notes,omitempty"`
	CreatedAt      time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`

	// Relationships
	Counterparty *Counterparty `gorm:"foreignKey:CounterpartyID;constraint:OnDelete:RESTRICT" json:"counterparty,omitempty"`
}

// TotalValue returns quantity × price
func (t *Trade) TotalValue() decimal.Decimal {
	return t.Quantity.Mul(t.Price)
}

// TableName methods
func (Trade) TableName() string { return "trades" }
