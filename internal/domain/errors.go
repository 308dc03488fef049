package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Authentication & Authorization Errors (AUTH_*)
	ErrorCodeAuthMissing           ErrorCode = "AUTH_MISSING"
	ErrorCodeAuthInvalid           ErrorCode = "AUTH_INVALID"
	ErrorCodeAuthInsufficientPerms ErrorCode = "AUTH_INSUFFICIENT_PERMISSIONS"

	// Lookup & uniqueness errors
	ErrorCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrorCodeAlreadyExists     ErrorCode = "ALREADY_EXISTS"
	ErrorCodeCrossTenantAccess ErrorCode = "CROSS_TENANT_ACCESS"

	// Billing domain errors
	ErrorCodeInvalidPromotion      ErrorCode = "INVALID_PROMOTION"
	ErrorCodeInsufficientPayment   ErrorCode = "INSUFFICIENT_PAYMENT"
	ErrorCodeInvoiceInvalidState   ErrorCode = "INVOICE_INVALID_STATE"
	ErrorCodeAmountExceedsDeposit  ErrorCode = "AMOUNT_EXCEEDS_DEPOSIT"
	ErrorCodeDepositAmountMismatch ErrorCode = "DEPOSIT_AMOUNT_MISMATCH"
	ErrorCodeNoActiveDeposit       ErrorCode = "NO_ACTIVE_DEPOSIT"

	// Validation Errors (VALIDATION_*)
	ErrorCodeValidationFailed        ErrorCode = "VALIDATION_FAILED"
	ErrorCodeValidationAmountInvalid ErrorCode = "VALIDATION_AMOUNT_INVALID"

	// Payment provider errors
	ErrorCodeProviderError ErrorCode = "PROVIDER_ERROR"

	// Internal Errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError by code so sentinel values work with errors.Is
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// WithDetail returns a copy of the error carrying an extra detail field.
// Sentinels are shared, so they are never mutated in place.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &DomainError{Code: e.Code, Message: e.Message, Details: details, Err: e.Err}
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsNotFoundError reports errors that must look like a missing entity to callers.
// Cross-tenant access is folded in so other accounts' resources stay invisible.
func IsNotFoundError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeNotFound || code == ErrorCodeCrossTenantAccess
}

// IsAuthError checks if an error is authentication/authorization related
func IsAuthError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeAuthMissing ||
		code == ErrorCodeAuthInvalid ||
		code == ErrorCodeAuthInsufficientPerms
}

// IsValidationError reports caller errors: bad input or a violated billing invariant.
// None of these are retried automatically.
func IsValidationError(err error) bool {
	switch GetErrorCode(err) {
	case ErrorCodeValidationFailed,
		ErrorCodeValidationAmountInvalid,
		ErrorCodeAlreadyExists,
		ErrorCodeInvalidPromotion,
		ErrorCodeInsufficientPayment,
		ErrorCodeInvoiceInvalidState,
		ErrorCodeAmountExceedsDeposit,
		ErrorCodeDepositAmountMismatch,
		ErrorCodeNoActiveDeposit:
		return true
	}
	return false
}

// Structured error instances
var (
	ErrAuthMissing          = NewDomainError(ErrorCodeAuthMissing, "authentication required")
	ErrAuthInvalid          = NewDomainError(ErrorCodeAuthInvalid, "invalid authentication")
	ErrAuthInsufficientPerm = NewDomainError(ErrorCodeAuthInsufficientPerms, "role is not allowed to perform this action")

	ErrReservationNotFound = NewDomainError(ErrorCodeNotFound, "reservation not found")
	ErrInvoiceNotFound     = NewDomainError(ErrorCodeNotFound, "invoice not found")
	ErrPromotionNotFound   = NewDomainError(ErrorCodeNotFound, "promotion not found")
	ErrTransactionNotFound = NewDomainError(ErrorCodeNotFound, "payment transaction not found")
	ErrCrossTenantAccess   = NewDomainError(ErrorCodeCrossTenantAccess, "resource belongs to a different account")

	ErrInvoiceAlreadyExists = NewDomainError(ErrorCodeAlreadyExists, "an invoice already exists for this reservation")
	ErrDepositAlreadyHeld   = NewDomainError(ErrorCodeAlreadyExists, "a deposit is already held for this reservation")
	ErrAlreadyExists        = NewDomainError(ErrorCodeAlreadyExists, "resource already exists")

	ErrInvalidPromotion       = NewDomainError(ErrorCodeInvalidPromotion, "Promotion code is invalid or not currently active")
	ErrInsufficientPayment    = NewDomainError(ErrorCodeInsufficientPayment, "Payment amount is less than total due")
	ErrInvoiceNotPending      = NewDomainError(ErrorCodeInvoiceInvalidState, "Invoice is not pending")
	ErrInvoiceVoid            = NewDomainError(ErrorCodeInvoiceInvalidState, "Invoice is void")
	ErrInvoiceAlreadyPaid     = NewDomainError(ErrorCodeInvoiceInvalidState, "Invoice is already paid")
	ErrNothingToCharge        = NewDomainError(ErrorCodeInvoiceInvalidState, "Invoice has no outstanding amount")
	ErrReservationNotBillable = NewDomainError(ErrorCodeValidationFailed, "Reservation is not in a billable status")
	ErrAmountExceedsDeposit   = NewDomainError(ErrorCodeAmountExceedsDeposit, "Amount exceeds the held deposit")
	ErrDepositAmountMismatch  = NewDomainError(ErrorCodeDepositAmountMismatch, "Amount must equal the held deposit; partial settlement is not supported")
	ErrNoActiveDeposit        = NewDomainError(ErrorCodeNoActiveDeposit, "No deposit is currently held for this reservation")

	ErrValidationFailed        = NewDomainError(ErrorCodeValidationFailed, "validation failed")
	ErrValidationAmountInvalid = NewDomainError(ErrorCodeValidationAmountInvalid, "Amount must be greater than zero")

	ErrProviderError = NewDomainError(ErrorCodeProviderError, "payment provider error")

	ErrInternalError = NewDomainError(ErrorCodeInternalError, "internal server error")
	ErrDatabaseError = NewDomainError(ErrorCodeDatabaseError, "database error")
)
