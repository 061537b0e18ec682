package weather

import (
	"errors"
	"fmt"
)

// Classified fetch outcomes. Every failed fetch maps to exactly one of these
// so callers can tell them apart with errors.Is / errors.As.
var (
	// ErrBadRequest is an HTTP 400 from the provider.
	ErrBadRequest = errors.New("weather provider rejected the request")

	// ErrNotFound is an HTTP 404 from the provider.
	ErrNotFound = errors.New("no weather data for the requested coordinates")

	// ErrTransport covers network, timeout and connection failures where no
	// HTTP status was received, including a rejected call on an open breaker.
	ErrTransport = errors.New("weather provider unreachable")

	// ErrMalformedResponse is a 2xx response whose body does not decode into
	// the expected schema.
	ErrMalformedResponse = errors.New("malformed weather provider response")
)

// ProviderError is any non-2xx status outside the dedicated 400/404 cases.
type ProviderError struct {
	Status int
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("weather provider error: status %d", e.Status)
}
