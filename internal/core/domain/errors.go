package domain

import "errors"

// Sentinel errors shared by every layer. Adapters wrap them with %w so the
// API error handler can map them with errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("access forbidden")

	ErrInvalidRequest   = errors.New("invalid request")
	ErrUnknownCharacter = errors.New("unknown character")

	ErrInsufficientFunds   = errors.New("insufficient credits")
	ErrLedgerInconsistency = errors.New("ledger inconsistency")
	ErrRefundFailed        = errors.New("refund failed")

	ErrGenerationNotFound = errors.New("generation not found")
	ErrCharacterNotFound  = errors.New("character not found")
	ErrInvalidTransition  = errors.New("invalid status transition")

	ErrBackend        = errors.New("media backend error")
	ErrBackendTimeout = errors.New("media backend timed out")

	ErrRequestInFlight = errors.New("a request with this idempotency key is still in flight")
)
