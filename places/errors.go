// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

package places

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ProviderError describes a failed places query.
type ProviderError struct {
	Type     ErrorType
	Provider string
	Status   string // provider status, e.g. OVER_QUERY_LIMIT
	Message  string
	Err      error
}

// ErrorType classifies provider failures.
type ErrorType int

const (
	// ErrorTypeUnknown unclassified failure.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeRateLimit too many requests.
	ErrorTypeRateLimit
	// ErrorTypeQuotaExceeded daily quota or billing.
	ErrorTypeQuotaExceeded
	// ErrorTypeTimeout connection or gateway timeout.
	ErrorTypeTimeout
	// ErrorTypeInvalidRequest malformed request or premature page token.
	ErrorTypeInvalidRequest
	// ErrorTypeNetworkError upstream unavailable.
	ErrorTypeNetworkError
	// ErrorTypeDenied key rejected.
	ErrorTypeDenied
	// ErrorTypeMalformedResponse body could not be decoded.
	ErrorTypeMalformedResponse
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeQuotaExceeded:
		return "quota_exceeded"
	case ErrorTypeTimeout:
		return "timeout"
	case ErrorTypeInvalidRequest:
		return "invalid_request"
	case ErrorTypeNetworkError:
		return "network"
	case ErrorTypeDenied:
		return "denied"
	case ErrorTypeMalformedResponse:
		return "malformed_response"
	default:
		return "unknown"
	}
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}

	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}

	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func errorType(err error) (ErrorType, bool) {
	var pErr *ProviderError
	if errors.As(err, &pErr) {
		return pErr.Type, true
	}

	return ErrorTypeUnknown, false
}

// KindOf classifies err, falling back to its message when it is not a
// ProviderError.
func KindOf(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}

	switch {
	case IsRateLimitError(err):
		return ErrorTypeRateLimit
	case IsQuotaExceededError(err):
		return ErrorTypeQuotaExceeded
	case IsTimeoutError(err):
		return ErrorTypeTimeout
	}

	t, _ := errorType(err)

	return t
}

// IsRateLimitError reports whether the provider throttled the request.
func IsRateLimitError(err error) bool {
	if t, ok := errorType(err); ok {
		return t == ErrorTypeRateLimit
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "429")
}

// IsQuotaExceededError reports whether the quota or billing limit was hit.
func IsQuotaExceededError(err error) bool {
	if t, ok := errorType(err); ok {
		return t == ErrorTypeQuotaExceeded
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "over_query_limit") ||
		strings.Contains(errStr, "quota exceeded")
}

// IsTimeoutError reports whether the request timed out.
func IsTimeoutError(err error) bool {
	if t, ok := errorType(err); ok {
		return t == ErrorTypeTimeout
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

// ClassifyHTTPError maps an HTTP status code to a ProviderError.
func ClassifyHTTPError(provider string, statusCode int) *ProviderError {
	e := &ProviderError{Provider: provider, Status: http.StatusText(statusCode)}

	switch statusCode {
	case http.StatusTooManyRequests:
		e.Type, e.Message = ErrorTypeRateLimit, "rate limit reached"
	case http.StatusForbidden, http.StatusUnauthorized:
		e.Type, e.Message = ErrorTypeDenied, "access denied"
	case http.StatusBadRequest:
		e.Type, e.Message = ErrorTypeInvalidRequest, "invalid request"
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		e.Type, e.Message = ErrorTypeTimeout, fmt.Sprintf("upstream timeout (status %d)", statusCode)
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		e.Type, e.Message = ErrorTypeNetworkError, fmt.Sprintf("service unavailable (status %d)", statusCode)
	default:
		e.Type, e.Message = ErrorTypeUnknown, fmt.Sprintf("HTTP error %d", statusCode)
	}

	return e
}

// ClassifyStatus maps a Google Places status string to a ProviderError.
// OK and ZERO_RESULTS are not errors and return nil.
func ClassifyStatus(provider, status, message string) *ProviderError {
	e := &ProviderError{Provider: provider, Status: status, Message: "status " + status}
	if message != "" {
		e.Message += " - " + message
	}

	switch Status(status) {
	case StatusOK, StatusZeroResults:
		return nil
	}

	switch status {
	case "OVER_QUERY_LIMIT":
		e.Type = ErrorTypeQuotaExceeded
	case "REQUEST_DENIED":
		e.Type = ErrorTypeDenied
	case "INVALID_REQUEST":
		e.Type = ErrorTypeInvalidRequest
	default:
		e.Type = ErrorTypeUnknown
	}

	return e
}
