package lifecycle

import (
	"time"

	"github.com/shopspring/decimal"

	"trade-ledger/pkg/models"
)

// Field bounds shared by request validation and the schema
const (
	TradeReferenceMinLen = 3
	TradeReferenceMaxLen = 50
	InstrumentMaxLen     = 100
	CurrencyLen          = 3
	NotesMaxLen          = 1000

	// quantity and price are decimal(19,4)
	AmountIntDigits = 15
	AmountScale     = 4

	CounterpartyNameMinLen = 2
	CounterpartyNameMaxLen = 100
	CounterpartyCodeMinLen = 2
	CounterpartyCodeMaxLen = 20
	EmailMaxLen            = 100
	PhoneNumberMaxLen      = 20
	AddressMaxLen          = 500
)

// TradeRequest carries every client-supplied trade field. Status is not part of it.
type TradeRequest struct {
	TradeReference string
	CounterpartyID uint
	Instrument     string
	TradeType      models.TradeType
	Quantity       decimal.Decimal
	Price          decimal.Decimal
	TradeDate      time.Time
	SettlementDate time.Time
	Currency       string
	Notes          string
}

// Validate checks field-level constraints only; no store access
func (r TradeRequest) Validate() ValidationErrors {
	v := NewValidator()
	v.ValidateString("trade_reference", r.TradeReference, TradeReferenceMinLen, TradeReferenceMaxLen, true)
	v.ValidateID("counterparty_id", r.CounterpartyID)
	v.ValidateString("instrument", r.Instrument, 1, InstrumentMaxLen, true)
	v.ValidateEnum("trade_type", string(r.TradeType), r.TradeType.Valid(), []string{
		string(models.TradeTypeBuy), string(models.TradeTypeSell),
	})
	v.ValidatePositive("quantity", r.Quantity)
	v.ValidateDecimal("quantity", r.Quantity, AmountIntDigits, AmountScale)
	v.ValidatePositive("price", r.Price)
	v.ValidateDecimal("price", r.Price, AmountIntDigits, AmountScale)
	v.ValidateDate("trade_date", r.TradeDate)
	v.ValidateDate("settlement_date", r.SettlementDate)
	v.ValidateString("currency", r.Currency, CurrencyLen, CurrencyLen, true)
	v.ValidateString("notes", r.Notes, 0, NotesMaxLen, false)
	return v.Errors()
}

// apply copies the request onto t, leaving identity, status and timestamps alone
func (r TradeRequest) apply(t *models.Trade) {
	t.TradeReference = r.TradeReference
	t.CounterpartyID = r.CounterpartyID
	t.Instrument = r.Instrument
	t.TradeType = r.TradeType
	t.Quantity = r.Quantity
	t.Price = r.Price
	t.TradeDate = models.Date(r.TradeDate)
	t.SettlementDate = models.Date(r.SettlementDate)
	t.Currency = r.Currency
	t.Notes = r.Notes
}

// CounterpartyRequest carries every client-supplied counterparty field.
// An empty Status means ACTIVE.
type CounterpartyRequest struct {
	Name        string
	Code        string
	Email       string
	PhoneNumber string
	Address     string
	Type        models.CounterpartyType
	Status      models.CounterpartyStatus
}

// Validate checks field-level constraints only; no store access
func (r CounterpartyRequest) Validate() ValidationErrors {
	v := NewValidator()
	v.ValidateString("name", r.Name, CounterpartyNameMinLen, CounterpartyNameMaxLen, true)
	v.ValidateString("code", r.Code, CounterpartyCodeMinLen, CounterpartyCodeMaxLen, true)
	v.ValidateEmail("email", r.Email, EmailMaxLen)
	v.ValidateString("phone_number", r.PhoneNumber, 0, PhoneNumberMaxLen, false)
	v.ValidateString("address", r.Address, 0, AddressMaxLen, false)
	v.ValidateEnum("type", string(r.Type), r.Type.Valid(), counterpartyTypeNames())
	if r.Status != "" && !r.Status.Valid() {
		v.ValidateEnum("status", string(r.Status), false, counterpartyStatusNames())
	}
	return v.Errors()
}

func (r CounterpartyRequest) status() models.CounterpartyStatus {
	if r.Status == "" {
		return models.CounterpartyStatusActive
	}
	return r.Status
}

func (r CounterpartyRequest) apply(c *models.Counterparty) {
	c.Name = r.Name
	c.Code = r.Code
	c.Email = r.Email
	c.PhoneNumber = r.PhoneNumber
	c.Address = r.Address
	c.Type = r.Type
	c.Status = r.status()
}

func counterpartyTypeNames() []string {
	names := make([]string, 0, len(models.CounterpartyTypes))
	for _, t := range models.CounterpartyTypes {
		names = append(names, string(t))
	}
	return names
}

func counterpartyStatusNames() []string {
	names := make([]string, 0, len(models.CounterpartyStatuses))
	for _, s := range models.CounterpartyStatuses {
		names = append(names, string(s))
	}
	return names
}

func tradeStatusNames() []string {
	names := make([]string, 0, len(models.TradeStatuses))
	for _, s := range models.TradeStatuses {
		names = append(names, string(s))
	}
	return names
}
