package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeDTO is the wire shape of a trade: the owning counterparty is flattened
// to id/name/code and the total value is computed.
type TradeDTO struct {
	ID               uint            `json:"id"`
	TradeReference   string          `json:"trade_reference"`
	CounterpartyID   uint            `json:"counterparty_id"`
	CounterpartyName string          `json:"counterparty_name,omitempty"`
	CounterpartyCode string          `json:"counterparty_code,omitempty"`
	Instrument       string          `json:"instrument"`
	TradeType        TradeType       `json:"trade_type"`
	Quantity         decimal.Decimal `json:"quantity"`
	Price            decimal.Decimal `json:"price"`
	TotalValue       decimal.Decimal `json:"total_value"`
	TradeDate        string          `json:"trade_date"`
	SettlementDate   string          `json:"settlement_date"`
	Currency         string          `json:"currency"`
	Status           TradeStatus     `json:"status"`
	Notes            string          `json:"notes,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// NewTradeDTO flattens t
func NewTradeDTO(t *Trade) TradeDTO {
	dto := TradeDTO{
		ID:             t.ID,
		TradeReference: t.TradeReference,
		CounterpartyID: t.CounterpartyID,
		Instrument:     t.Instrument,
		TradeType:      t.TradeType,
		Quantity:       t.Quantity,
		Price:          t.Price,
		TotalValue:     t.TotalValue(),
		TradeDate:      t.TradeDate.Format(DateLayout),
		SettlementDate: t.SettlementDate.Format(DateLayout),
		Currency:       t.Currency,
		Status:         t.Status,
		Notes:          t.Notes,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
	if t.Counterparty != nil {
		dto.CounterpartyName = t.Counterparty.Name
		dto.CounterpartyCode = t.Counterparty.Code
	}
	return dto
}

// NewTradeDTOs flattens a slice of trades, never returning nil
func NewTradeDTOs(trades []Trade) []TradeDTO {
	out := make([]TradeDTO, 0, len(trades))
	for i := range trades {
		out = append(out, NewTradeDTO(&trades[i]))
	}
	return out
}

// CounterpartyDTO is the wire shape of a counterparty
type CounterpartyDTO struct {
	ID          uint               `json:"id"`
	Name        string             `json:"name"`
	Code        string             `json:"code"`
	Email       string             `json:"email,omitempty"`
	PhoneNumber string             `json:"phone_number,omitempty"`
	Address     string             `json:"address,omitempty"`
	Type        CounterpartyType   `json:"type"`
	Status      CounterpartyStatus `json:"status"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// NewCounterpartyDTO copies c
func NewCounterpartyDTO(c *Counterparty) CounterpartyDTO {
	return CounterpartyDTO{
		ID:          c.ID,
		Name:        c.Name,
		Code:        c.Code,
		Email:       c.Email,
		PhoneNumber: c.PhoneNumber,
		Address:     c.Address,
		Type:        c.Type,
		Status:      c.Status,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// NewCounterpartyDTOs copies a slice of counterparties, never returning nil
func NewCounterpartyDTOs(counterparties []Counterparty) []CounterpartyDTO {
	out := make([]CounterpartyDTO, 0, len(counterparties))
	for i := range counterparties {
		out = append(out, NewCounterpartyDTO(&counterparties[i]))
	}
	return out
}
