// ABOUTME: Typed error hierarchy for generation-provider API failures.
// ABOUTME: Classifies status codes and quota body markers into credential failures (rotate) vs terminal errors.
package provider

import (
	"strings"
	"unicode/utf8"
)

// APIError is the base type for errors surfaced by a generation provider.
// Subtypes embed APIError and override CredentialFailure.
type APIError struct {
	Message    string
	Provider   string
	StatusCode int
	Cause      error
}

func (e *APIError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// CredentialFailure returns false for the base APIError. Subtypes whose
// failure is tied to the credential in use override this.
func (e *APIError) CredentialFailure() bool {
	return false
}

// RateLimitError represents a 429 Too Many Requests response. The credential
// in use is rate-limited; rotating to the next credential may succeed.
type RateLimitError struct {
	APIError
}

func (e *RateLimitError) Error() string           { return e.APIError.Error() }
func (e *RateLimitError) Unwrap() error           { return e.APIError.Unwrap() }
func (e *RateLimitError) CredentialFailure() bool { return true }

// AuthRejectedError represents a 401 or 403 response. The credential was
// rejected outright; rotation may find one that is still accepted.
type AuthRejectedError struct {
	APIError
}

func (e *AuthRejectedError) Error() string           { return e.APIError.Error() }
func (e *AuthRejectedError) Unwrap() error           { return e.APIError.Unwrap() }
func (e *AuthRejectedError) CredentialFailure() bool { return true }

// QuotaExceededError represents quota exhaustion reported in the response
// body rather than the status code. Tied to the credential's account.
type QuotaExceededError struct {
	APIError
}

func (e *QuotaExceededError) Error() string           { return e.APIError.Error() }
func (e *QuotaExceededError) Unwrap() error           { return e.APIError.Unwrap() }
func (e *QuotaExceededError) CredentialFailure() bool { return true }

// InvalidRequestError represents a 4xx response that no credential can fix.
type InvalidRequestError struct {
	APIError
}

func (e *InvalidRequestError) Error() string { return e.APIError.Error() }
func (e *InvalidRequestError) Unwrap() error { return e.APIError.Unwrap() }

// ServerError represents a 5xx response. Not a credential failure: switching
// keys does not help a provider outage.
type ServerError struct {
	APIError
}

func (e *ServerError) Error() string { return e.APIError.Error() }
func (e *ServerError) Unwrap() error { return e.APIError.Unwrap() }

// NetworkError represents a transport-level failure (DNS, refused
// connection, timeout) before any provider response arrived.
type NetworkError struct {
	APIError
}

func (e *NetworkError) Error() string { return e.APIError.Error() }
func (e *NetworkError) Unwrap() error { return e.APIError.Unwrap() }

// IsCredentialFailure reports whether err should trigger credential rotation.
// Any error implementing CredentialFailure() bool is consulted; everything
// else is treated as terminal for the current attempt.
func IsCredentialFailure(err error) bool {
	type credentialFailure interface {
		CredentialFailure() bool
	}
	if cf, ok := err.(credentialFailure); ok {
		return cf.CredentialFailure()
	}
	return false
}

// quotaMarkers are body substrings that identify quota exhaustion even when
// the status code alone is ambiguous.
var quotaMarkers = []string{
	"quota exceeded",
	"insufficient_quota",
	"billing hard limit",
}

// ErrorFromResponse maps a non-2xx provider response to a typed error.
// 429 and 401/403 become credential failures; a 2xx-range status with a
// quota marker in the body is also treated as a credential failure, since
// some providers report quota exhaustion inside a 200 envelope.
func ErrorFromResponse(providerName string, statusCode int, body []byte) error {
	msg := truncateMessage(strings.TrimSpace(string(body)), 280)
	base := APIError{
		Message:    msg,
		Provider:   providerName,
		StatusCode: statusCode,
	}
	if base.Message == "" {
		base.Message = "provider request failed"
	}

	if hasQuotaMarker(body) {
		return &QuotaExceededError{APIError: base}
	}

	switch {
	case statusCode == 429:
		return &RateLimitError{APIError: base}
	case statusCode == 401 || statusCode == 403:
		return &AuthRejectedError{APIError: base}
	case statusCode >= 500:
		return &ServerError{APIError: base}
	default:
		return &InvalidRequestError{APIError: base}
	}
}

// truncateMessage caps a message at limit bytes, backing up to a rune
// boundary so a multi-byte character is never split.
func truncateMessage(msg string, limit int) string {
	if len(msg) <= limit {
		return msg
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}

func hasQuotaMarker(body []byte) bool {
	lower := strings.ToLower(string(body))
	for _, marker := range quotaMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
