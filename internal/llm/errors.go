package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorClass is the coarse backend failure taxonomy surfaced in failed
// ModelResults.
type ErrorClass string

const (
	ErrClassAuth      ErrorClass = "auth"
	ErrClassTimeout   ErrorClass = "timeout"
	ErrClassRateLimit ErrorClass = "rate-limit"
	ErrClassMalformed ErrorClass = "malformed-response"
	ErrClassUnknown   ErrorClass = "unknown"
)

// ErrMalformedResponse marks replies that arrived but could not be decoded.
var ErrMalformedResponse = errors.New("malformed response")

// APIError is a non-2xx or in-band error reply from a provider.
type APIError struct {
	Provider Provider
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.Status, e.Message)
}

// Classify maps a provider call error to its failure class.
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrClassUnknown
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden:
			return ErrClassAuth
		case apiErr.Status == http.StatusTooManyRequests:
			return ErrClassRateLimit
		default:
			return ErrClassUnknown
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrClassTimeout
	}

	if errors.Is(err, ErrMalformedResponse) {
		return ErrClassMalformed
	}

	return ErrClassUnknown
}
