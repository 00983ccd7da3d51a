// Package handlers defines the HTTP-layer error codes shared by every
// endpoint. Codes are lowercase snake_case and stable: clients branch on
// them programmatically, with the message reserved for humans. Handlers
// pick the most specific code and pass it to fail() together with the HTTP
// status.
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodePaymentReq   = "payment_required"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeSendFailed       = "send_failed"
	ErrCodeCreateFailed     = "create_failed"
	ErrCodeListFailed       = "list_failed"
	ErrCodeQuotaExceeded    = "quota_exceeded"
	ErrCodeNoTariff         = "no_active_tariff"
	ErrCodePaymentFailed    = "payment_failed"
	ErrCodeAuthDisabled     = "auth_disabled"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
