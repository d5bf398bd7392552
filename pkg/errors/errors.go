package errors

import (
	stderrors "errors"
	"fmt"
)

type AppError struct {
	Code    string
	Message string
	Err     error
	Details map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail attaches a structured value callers can inspect (e.g. max_headroom).
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or "" if none.
func CodeOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// As is a thin re-export so callers don't need both errors packages.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	ok := stderrors.As(err, &appErr)
	return appErr, ok
}

// Common error codes
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeValidationFailed  = "VALIDATION_FAILED"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	ErrCodeAlreadyExists     = "ALREADY_EXISTS"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
)

// Ledger error codes
const (
	ErrCodeNoCapacity             = "NO_CAPACITY_AVAILABLE"
	ErrCodeInvalidTransition      = "INVALID_TRANSITION"
	ErrCodeReconciliationMismatch = "RECONCILIATION_MISMATCH"
	ErrCodeDuplicateReferral      = "DUPLICATE_REFERRAL"
	ErrCodeDuplicateReference     = "DUPLICATE_REFERENCE"
	ErrCodeGiftCodeNotFound       = "GIFT_CODE_NOT_FOUND"
	ErrCodeGiftCodeExhausted      = "GIFT_CODE_EXHAUSTED"
	ErrCodeGiftCodeExpired        = "GIFT_CODE_EXPIRED"
	ErrCodeGiftCodeAlreadyUsed    = "GIFT_CODE_ALREADY_USED"
	ErrCodeUnknownProvider        = "UNKNOWN_PROVIDER"
	ErrCodeNoMatch                = "NO_MATCH"
	ErrCodeFeatureDisabled        = "FEATURE_DISABLED"
	ErrCodeAccountMissing         = "ACCOUNT_MISSING"
)
