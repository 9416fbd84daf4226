package lifecycle

import (
	"errors"
	"fmt"
)

// Kind classifies a lifecycle failure so transports can map it to a client-visible status
type Kind string

const (
	KindNotFound             Kind = "NOT_FOUND"
	KindDuplicateKey         Kind = "DUPLICATE_KEY"
	KindInvalidReference     Kind = "INVALID_REFERENCE"
	KindInvalidTemporalOrder Kind = "INVALID_TEMPORAL_ORDER"
	KindInvalidState         Kind = "INVALID_STATE"
	KindValidation           Kind = "VALIDATION_ERROR"
	KindSystem               Kind = "SYSTEM_ERROR"
)

// Reasons refine a Kind. They double as the error_type metric tag.
const (
	ReasonInvalidFields         = "INVALID_FIELDS"
	ReasonDuplicateReference    = "DUPLICATE_REFERENCE"
	ReasonDuplicateCode         = "DUPLICATE_CODE"
	ReasonTradeNotFound         = "TRADE_NOT_FOUND"
	ReasonCounterpartyNotFound  = "COUNTERPARTY_NOT_FOUND"
	ReasonCounterpartyInactive  = "COUNTERPARTY_INACTIVE"
	ReasonInvalidSettlementDate = "INVALID_SETTLEMENT_DATE"
	ReasonTradeLocked           = "TRADE_CONFIRMED_OR_SETTLED"
	ReasonHasTrades             = "COUNTERPARTY_HAS_TRADES"
	ReasonSystem                = "SYSTEM_ERROR"
)

// Errors returned by store implementations for constraint violations.
// Engines translate them into DuplicateKey / InvalidReference / InvalidState failures.
var (
	ErrUniqueViolation     = errors.New("unique constraint violation")
	ErrForeignKeyViolation = errors.New("foreign key constraint violation")
)

// Error is a structured lifecycle failure
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Fields  ValidationErrors
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Reason, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Reason, e.Message)
}

// Unwrap exposes the underlying store error, if any
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, reason, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Reason:  reason,
		Message: fmt.Sprintf(format, args...),
	}
}

func validationError(fields ValidationErrors) *Error {
	return &Error{
		Kind:    KindValidation,
		Reason:  ReasonInvalidFields,
		Message: "validation failed: " + fields.Error(),
		Fields:  fields,
	}
}

// systemError hides the cause behind a generic message; the cause stays reachable via Unwrap
func systemError(op string, err error) *Error {
	return &Error{
		Kind:    KindSystem,
		Reason:  ReasonSystem,
		Message: op + " failed",
		Err:     err,
	}
}

// KindOf returns the Kind carried by err. Errors that are not lifecycle errors are System errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Kind
	}
	return KindSystem
}

// IsKind reports whether err carries the given Kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ReasonOf returns the Reason carried by err, or ReasonSystem for foreign errors
func ReasonOf(err error) string {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Reason
	}
	return ReasonSystem
}

func duplicateReference(reference string) *Error {
	return newError(KindDuplicateKey, ReasonDuplicateReference, "trade with reference '%s' already exists", reference)
}

func duplicateCode(code string) *Error {
	return newError(KindDuplicateKey, ReasonDuplicateCode, "counterparty with code '%s' already exists", code)
}

func tradeNotFound(id uint) *Error {
	return newError(KindNotFound, ReasonTradeNotFound, "trade not found with id: %d", id)
}

func counterpartyNotFound(id uint) *Error {
	return newError(KindNotFound, ReasonCounterpartyNotFound, "counterparty not found with id: %d", id)
}
