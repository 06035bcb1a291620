// Package handlers defines HTTP-layer error codes used by the admin endpoints
// and router fallbacks.
//
// Codes are lowercase snake_case and stable; clients branch on them rather
// than on messages. The webhook endpoint never returns these: it always
// acknowledges with 200.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "bad_request",
//	  "message": "user_id and order_id are required"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeRegisterFailed = "register_failed"
	ErrCodeLookupFailed   = "lookup_failed"
)
