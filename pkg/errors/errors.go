// Package errors defines the typed error taxonomy used throughout the client.
//
// Errors split into two families: those where retrying might help
// (RateLimitError, ServerError, TransportError, retryable AuthError) and
// those the caller has to fix (ConfigError, terminal AuthError, APIError,
// ParseError). Use IsRetryable to tell them apart without matching types.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ConfigError indicates a problem with the client configuration.
type ConfigError struct {
	// Field contains the name of the configuration field that caused the error
	Field string
	// Message contains the detailed error message
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// AuthReason classifies why an authentication attempt failed.
type AuthReason int

const (
	// AuthInvalidCredentials means the service rejected the credentials.
	// Retrying with the same credentials will not help.
	AuthInvalidCredentials AuthReason = iota
	// AuthNetworkFailure means the token exchange could not complete.
	// Retrying may help.
	AuthNetworkFailure
	// AuthExpired means the current credential has expired. The client
	// refreshes transparently; callers only see this if refresh also failed.
	AuthExpired
)

// String returns the reason as a short label.
func (r AuthReason) String() string {
	switch r {
	case AuthInvalidCredentials:
		return "invalid credentials"
	case AuthNetworkFailure:
		return "network failure"
	case AuthExpired:
		return "expired"
	default:
		return fmt.Sprintf("AuthReason(%d)", int(r))
	}
}

// AuthError indicates an authentication failure.
type AuthError struct {
	// Reason classifies the failure.
	Reason AuthReason
	// StatusCode is the HTTP status code (if from an HTTP response)
	StatusCode int
	// Body contains the raw response body (if available)
	Body string
	// Err contains the underlying error if available
	Err error
}

func (e *AuthError) Error() string {
	msg := fmt.Sprintf("auth error (%s)", e.Reason)
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(": status code %d", e.StatusCode)
	}
	if e.Body != "" {
		msg += fmt.Sprintf(", body: %q", e.Body)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(", err: %v", e.Err)
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Err }

// APIError represents a terminal rejection from the Reddit API: a 4xx
// status other than 401 and 429. It is never retried.
type APIError struct {
	// StatusCode is the HTTP status code
	StatusCode int
	// Body contains the raw response body
	Body string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request rejected with status %d: %s", e.StatusCode, e.Body)
}

// RateLimitError indicates the service returned 429 and retries were exhausted.
type RateLimitError struct {
	// RetryAfter is the server-advised delay before trying again, if sent.
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// ServerError indicates the service kept returning 5xx after bounded retries.
type ServerError struct {
	// StatusCode is the last HTTP status code received
	StatusCode int
	// Attempts is how many times the request was tried
	Attempts int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: status %d after %d attempts", e.StatusCode, e.Attempts)
}

// TransportError wraps an I/O failure from the underlying HTTP transport
// after bounded retries.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError indicates a problem parsing the API response.
type ParseError struct {
	// Operation is the name of the API operation where parsing failed
	Operation string
	// Message contains the detailed error message
	Message string
	// Err contains the underlying error if available
	Err error
}

func (e *ParseError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Operation != "" {
		return fmt.Sprintf("parse error during %s: %s", e.Operation, msg)
	}
	return fmt.Sprintf("parse error: %s", msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StateError indicates an operation was attempted when the client is not ready.
type StateError struct {
	// Operation is the name of the operation that was attempted
	Operation string
	// Message contains the detailed error message
	Message string
}

func (e *StateError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("state error during %s: %s", e.Operation, e.Message)
	}
	return fmt.Sprintf("state error: %s", e.Message)
}

// IsRetryable reports whether the error is one where a later retry of the
// whole operation might succeed. Terminal rejections, credential problems
// and malformed responses return false.
func IsRetryable(err error) bool {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return true
	}
	var se *ServerError
	if errors.As(err, &se) {
		return true
	}
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Reason == AuthNetworkFailure
	}
	return false
}
