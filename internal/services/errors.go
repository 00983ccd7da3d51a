// Package services defines the business logic for chats, entries, gifting,
// and billing. This file centralizes common service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

// Chat- and entry-related errors.
var (
	// ErrChatNotFound indicates that the requested chat does not exist or is
	// not accessible to the current account.
	ErrChatNotFound = errors.New("chat not found")

	// ErrChatExists is returned when both participants already share an
	// active chat; direct chats are unique per pair.
	ErrChatExists = errors.New("chat already exists")

	// ErrEmptyBody is returned when a text entry carries no content.
	ErrEmptyBody = errors.New("entry body is empty")

	// ErrTooLong is returned when a text entry exceeds the configured
	// maximum length.
	ErrTooLong = errors.New("entry body too long")

	// ErrNotParticipant is returned when the sender does not belong to the
	// target chat.
	ErrNotParticipant = errors.New("sender is not a chat participant")

	// ErrSenderUnresolved marks a data-integrity anomaly: a stored sender id
	// resolves to neither an end-user profile nor a model persona (or both).
	ErrSenderUnresolved = errors.New("sender profile cannot be resolved")

	// ErrEntryNotFound indicates that a referenced chat entry is missing.
	ErrEntryNotFound = errors.New("entry not found")
)

// Quota errors.
var (
	// ErrNoActiveTariff is returned when the account has no tariff
	// assignment to charge the send against.
	ErrNoActiveTariff = errors.New("no active tariff")

	// ErrDailyLimitReached is returned when the tariff's daily send
	// allowance is exhausted.
	ErrDailyLimitReached = errors.New("daily send limit reached")
)

// Billing errors.
var (
	// ErrInsufficientFunds is returned when a debit would take the balance
	// below zero. No state changes when it is returned.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrGiftNotFound indicates the referenced gift is missing or retired.
	ErrGiftNotFound = errors.New("gift not found")

	// ErrProfileNotFound indicates a referenced account or persona is missing.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrTariffNotFound indicates the referenced tariff is missing or inactive.
	ErrTariffNotFound = errors.New("tariff not found")

	// ErrTxnNotFound indicates the referenced transaction record is missing.
	ErrTxnNotFound = errors.New("transaction not found")

	// ErrTxnConflict is returned on an attempt to re-run a terminal status
	// transition that cannot be treated as an idempotent replay.
	ErrTxnConflict = errors.New("transaction state conflict")

	// ErrPaymentProvider wraps failures of the external payment provider.
	ErrPaymentProvider = errors.New("payment provider error")

	// ErrValidation is returned for malformed input that never reaches the
	// persistence layer.
	ErrValidation = errors.New("invalid input")
)

// Auth errors.
var (
	// ErrBadLogin is returned when a Telegram login payload fails signature
	// or freshness verification.
	ErrBadLogin = errors.New("login verification failed")

	// ErrAuthDisabled is returned when login is attempted but the server
	// has no session-token signing secret configured.
	ErrAuthDisabled = errors.New("session tokens not configured")
)
