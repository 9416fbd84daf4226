package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format for trade and settlement dates
const DateLayout = "2006-01-02"

// DecimalFromString creates a decimal from string, returning zero on bad input
func DecimalFromString(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// DecimalFromInt creates a decimal from int64
func DecimalFromInt(value int64) decimal.Decimal {
	return decimal.NewFromInt(value)
}

// Date truncates t to midnight UTC of its calendar day
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a calendar date
func ParseDate(value string) (time.Time, error) {
	return time.Parse(DateLayout, value)
}

// MustDate parses a YYYY-MM-DD string and panics on error. Intended for fixtures.
func MustDate(value string) time.Time {
	t, err := ParseDate(value)
	if err != nil {
		panic(err)
	}
	return t
}
