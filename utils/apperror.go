package utils

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the ledger services. Match with errors.Is.
var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	ErrInvalidSignature = errors.New("invalid payment signature")
	ErrInvalidState     = errors.New("invalid state")
	ErrGateway          = errors.New("gateway error")
	ErrRender           = errors.New("render error")

	// ErrDuplicate is returned by repositories on unique index violations.
	ErrDuplicate = errors.New("duplicate key")
)

// LedgerError carries a stable code and a caller-facing message on top of a taxonomy kind.
type LedgerError struct {
	Code      string
	Message   string
	Kind      error
	Err       error
	Retryable bool
}

func (e *LedgerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LedgerError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func NewValidationError(format string, args ...interface{}) error {
	return &LedgerError{Code: "validation_error", Message: fmt.Sprintf(format, args...), Kind: ErrValidation}
}

func NewNotFoundError(entity, id string) error {
	return &LedgerError{Code: "not_found", Message: fmt.Sprintf("%s %s not found", entity, id), Kind: ErrNotFound}
}

func NewInvalidSignatureError(orderID string) error {
	return &LedgerError{Code: "invalid_signature", Message: "signature mismatch for order " + orderID, Kind: ErrInvalidSignature}
}

func NewInvalidStateError(format string, args ...interface{}) error {
	return &LedgerError{Code: "invalid_state", Message: fmt.Sprintf(format, args...), Kind: ErrInvalidState}
}

// NewGatewayError wraps an upstream failure. retryable marks 5xx/network class errors.
func NewGatewayError(op string, err error, retryable bool) error {
	return &LedgerError{Code: "gateway_error", Message: op + " failed", Kind: ErrGateway, Err: err, Retryable: retryable}
}

func NewRenderError(invoiceID string, err error) error {
	return &LedgerError{Code: "render_error", Message: "render failed for invoice " + invoiceID, Kind: ErrRender, Err: err, Retryable: true}
}

// IsRetryable reports whether err is a LedgerError the caller may retry with backoff.
func IsRetryable(err error) bool {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Retryable
	}
	return false
}
