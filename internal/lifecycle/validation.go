package lifecycle

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidationError represents a single field-level violation
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	messages := make([]string, 0, len(ve))
	for _, err := range ve {
		messages = append(messages, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return strings.Join(messages, "; ")
}

// Validator accumulates field violations
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// AddError adds a validation error
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

// ValidateString checks presence and length in characters.
// An optional field that is empty is accepted; blank input counts as empty.
func (v *Validator) ValidateString(field, value string, minLen, maxLen int, required bool) {
	if strings.TrimSpace(value) == "" {
		if required {
			v.AddError(field, fmt.Sprintf("%s is required", field))
		}
		return
	}

	length := utf8.RuneCountInString(value)
	if minLen == maxLen && length != minLen {
		v.AddError(field, fmt.Sprintf("%s must be exactly %d characters", field, minLen))
		return
	}
	if length < minLen {
		v.AddError(field, fmt.Sprintf("%s must be at least %d characters", field, minLen))
	}
	if maxLen > 0 && length > maxLen {
		v.AddError(field, fmt.Sprintf("%s must be at most %d characters", field, maxLen))
	}
}

// ValidateEmail validates an optional email address
func (v *Validator) ValidateEmail(field, email string, maxLen int) {
	if email == "" {
		return
	}
	if len(email) > maxLen {
		v.AddError(field, fmt.Sprintf("%s must be at most %d characters", field, maxLen))
		return
	}
	if !emailRegex.MatchString(email) {
		v.AddError(field, "invalid email format")
	}
}

// ValidatePositive requires value > 0
func (v *Validator) ValidatePositive(field string, value decimal.Decimal) {
	if !value.IsPositive() {
		v.AddError(field, fmt.Sprintf("%s must be greater than 0", field))
	}
}

// ValidateDecimal bounds value to a fixed decimal(intDigits+scale, scale) column
func (v *Validator) ValidateDecimal(field string, value decimal.Decimal, intDigits, scale int) {
	if !value.Equal(value.Truncate(int32(scale))) {
		v.AddError(field, fmt.Sprintf("%s must have at most %d decimal places", field, scale))
	}
	if value.Abs().GreaterThanOrEqual(decimal.New(1, int32(intDigits))) {
		v.AddError(field, fmt.Sprintf("%s must have at most %d integer digits", field, intDigits))
	}
}

// ValidateDate requires a non-zero date
func (v *Validator) ValidateDate(field string, value time.Time) {
	if value.IsZero() {
		v.AddError(field, fmt.Sprintf("%s is required", field))
	}
}

// ValidateID requires a non-zero surrogate id that fits a bigint column
func (v *Validator) ValidateID(field string, id uint) {
	if id == 0 {
		v.AddError(field, fmt.Sprintf("%s is required", field))
		return
	}
	if uint64(id) > math.MaxInt64 {
		v.AddError(field, fmt.Sprintf("%s must be at most %d", field, int64(math.MaxInt64)))
	}
}

// ValidateEnum checks that value is present and known
func (v *Validator) ValidateEnum(field, value string, valid bool, allowed []string) {
	if value == "" {
		v.AddError(field, fmt.Sprintf("%s is required", field))
		return
	}
	if !valid {
		v.AddError(field, fmt.Sprintf("invalid %s (valid values: %s)", field, strings.Join(allowed, ", ")))
	}
}
