// Package handlers defines the HTTP-layer error codes used across all API
// endpoints. Codes are lowercase snake_case; generic codes mirror common
// HTTP status semantics, domain-specific codes cover business failures the
// status alone cannot convey. Handlers pass the most specific matching code
// to fail() together with the status and message.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeSignatureInvalid = "signature_invalid"
	ErrCodeListFailed       = "list_failed"
	ErrCodeDislikeFailed    = "dislike_failed"
	ErrCodeCorrectionFailed = "correction_failed"
	ErrCodeImportFailed     = "import_failed"
)
