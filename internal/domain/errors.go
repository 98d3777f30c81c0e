package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrPhoneTaken         = errors.New("phone number is already registered")
	ErrInvalidCredentials = errors.New("invalid identifier or password")
	ErrUnauthenticated    = errors.New("login required")

	ErrNotConfigured  = errors.New("upstream API key not configured")
	ErrGatewayTimeout = errors.New("gateway timeout")
	ErrBadGateway     = errors.New("bad gateway")

	// ErrMalformedResponse means a 200 reply whose body was not a chat completion.
	ErrMalformedResponse = errors.New("malformed upstream response")
)

// UpstreamError is a response from the AI service that was neither a
// success nor retryable into one. Status and body are relayed verbatim.
type UpstreamError struct {
	StatusCode int
	Body       []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, string(e.Body))
}

type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid input (%s): %s", strings.Join(e.Fields, ", "), e.Reason)
}

func NewValidationError(reason string, fields ...string) *ValidationError {
	return &ValidationError{Fields: fields, Reason: reason}
}
