package domain

import "errors"

// The anchoring path surfaces three error kinds so callers can decide on
// retry: validation failures (correct the input), transport failures (safe to
// retry the whole call) and chain rejections (resubmission would likely
// revert identically).

// ValidationError reports malformed input, caught before any I/O
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError wraps err as a ValidationError
func NewValidationError(err error) error {
	return &ValidationError{Err: err}
}

// TransportError reports a network or RPC failure. The transaction was never
// submitted, or submission failed atomically, so retrying the whole call is
// safe.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError wraps err as a TransportError
func NewTransportError(err error) error {
	return &TransportError{Err: err}
}

// ChainRejectionError reports a transaction that was mined but reverted, or
// was rejected by node policy
type ChainRejectionError struct {
	Err error
}

func (e *ChainRejectionError) Error() string {
	return "chain rejection: " + e.Err.Error()
}

func (e *ChainRejectionError) Unwrap() error {
	return e.Err
}

// NewChainRejectionError wraps err as a ChainRejectionError
func NewChainRejectionError(err error) error {
	return &ChainRejectionError{Err: err}
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsTransport reports whether err is a TransportError
func IsTransport(err error) bool {
	var t *TransportError
	return errors.As(err, &t)
}

// IsChainRejection reports whether err is a ChainRejectionError
func IsChainRejection(err error) bool {
	var c *ChainRejectionError
	return errors.As(err, &c)
}
