package lifecycle

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidateString(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		min, max int
		required bool
		message  string
	}{
		{"required and blank", "   ", 2, 10, true, "code is required"},
		{"optional and empty", "", 2, 10, false, ""},
		{"too short", "A", 2, 10, true, "code must be at least 2 characters"},
		{"too long", "ABCDEFGHIJK", 2, 10, true, "code must be at most 10 characters"},
		{"exact length", "USDX", 3, 3, true, "code must be exactly 3 characters"},
		{"multibyte counts runes", "日本", 2, 2, true, ""},
		{"ok", "GS001", 2, 10, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator()
			v.ValidateString("code", tt.value, tt.min, tt.max, tt.required)
			if tt.message == "" {
				assert.False(t, v.HasErrors())
				return
			}
			if assert.Len(t, v.Errors(), 1) {
				assert.Equal(t, tt.message, v.Errors()[0].Message)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	v := NewValidator()
	v.ValidateEmail("email", "", EmailMaxLen)
	v.ValidateEmail("email", "desk@gs.com", EmailMaxLen)
	assert.False(t, v.HasErrors())

	v.ValidateEmail("email", "desk@", EmailMaxLen)
	assert.Equal(t, ValidationErrors{{Field: "email", Message: "invalid email format"}}, v.Errors())
}

func TestValidateNumbersAndDates(t *testing.T) {
	v := NewValidator()
	v.ValidatePositive("quantity", decimal.RequireFromString("0.0001"))
	v.ValidateDate("trade_date", time.Now())
	v.ValidateID("counterparty_id", 1)
	assert.False(t, v.HasErrors())

	v.ValidatePositive("quantity", decimal.Zero)
	v.ValidateDate("trade_date", time.Time{})
	v.ValidateID("counterparty_id", 0)
	assert.Equal(t, "quantity: quantity must be greater than 0; trade_date: trade_date is required; counterparty_id: counterparty_id is required",
		v.Errors().Error())
}

func TestValidateDecimal(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		messages []string
	}{
		{"four decimal places", "0.0001", nil},
		{"trailing zeros beyond scale", "1.50000", nil},
		{"largest value", "999999999999999.9999", nil},
		{"too many decimal places", "0.00001", []string{"price must have at most 4 decimal places"}},
		{"too many integer digits", "1000000000000000", []string{"price must have at most 15 integer digits"}},
		{"negative too large", "-1000000000000000", []string{"price must have at most 15 integer digits"}},
		{"both", "1000000000000000.12345", []string{
			"price must have at most 4 decimal places",
			"price must have at most 15 integer digits",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator()
			v.ValidateDecimal("price", decimal.RequireFromString(tt.value), AmountIntDigits, AmountScale)

			var messages []string
			for _, e := range v.Errors() {
				messages = append(messages, e.Message)
			}
			assert.Equal(t, tt.messages, messages)
		})
	}
}

func TestValidateIDFitsBigint(t *testing.T) {
	v := NewValidator()
	v.ValidateID("counterparty_id", math.MaxInt64)
	assert.False(t, v.HasErrors())

	v.ValidateID("counterparty_id", math.MaxInt64+1)
	assert.Equal(t, ValidationErrors{{
		Field:   "counterparty_id",
		Message: "counterparty_id must be at most 9223372036854775807",
	}}, v.Errors())
}

func TestTradeRequestRejectsAmountsOutsideColumn(t *testing.T) {
	req := TradeRequest{
		TradeReference: "TRD-001",
		CounterpartyID: 1,
		Instrument:     "AAPL",
		TradeType:      "BUY",
		Quantity:       decimal.RequireFromString("0.00001"),
		Price:          decimal.RequireFromString("1234567890123456"),
		TradeDate:      time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		SettlementDate: time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC),
		Currency:       "USD",
	}

	assert.Equal(t, ValidationErrors{
		{Field: "quantity", Message: "quantity must have at most 4 decimal places"},
		{Field: "price", Message: "price must have at most 15 integer digits"},
	}, req.Validate())
}

func TestTradeRequestCollectsEveryViolation(t *testing.T) {
	fields := TradeRequest{}.Validate()

	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Field)
	}
	assert.Equal(t, []string{
		"trade_reference", "counterparty_id", "instrument", "trade_type",
		"quantity", "price", "trade_date", "settlement_date", "currency",
	}, names)
}

func TestNormalizePage(t *testing.T) {
	o := buildOptions([]Option{WithPageLimits(10, 50)})

	assert.Equal(t, Page{Index: 0, Size: 10}, o.normalize(Page{Index: -3}))
	assert.Equal(t, Page{Index: 2, Size: 50}, o.normalize(Page{Index: 2, Size: 1000}))
	assert.Equal(t, Page{Index: 1, Size: 5}, o.normalize(Page{Index: 1, Size: 5}))
	assert.Equal(t, 10, Page{Index: 2, Size: 5}.Offset())
}

func TestNormalizePageKeepsOffsetInRange(t *testing.T) {
	o := buildOptions([]Option{WithPageLimits(10, 50)})

	page := o.normalize(Page{Index: math.MaxInt / 10, Size: 20})
	assert.Equal(t, Page{Index: math.MaxInt / 20, Size: 20}, page)
	assert.Positive(t, page.Offset())

	assert.Equal(t, math.MaxInt, Page{Index: math.MaxInt, Size: 3}.Offset())
	assert.Zero(t, Page{Index: -1, Size: 3}.Offset())
}
