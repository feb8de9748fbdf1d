package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrExtractionIncomplete means required listing fields stayed empty
	// after every extraction attempt.
	ErrExtractionIncomplete = errors.New("extraction incomplete")

	// ErrTransportTimeout means no response arrived before the channel timeout.
	ErrTransportTimeout = errors.New("transport timeout")

	// ErrTransportFailure means the channel to the other context is unavailable.
	ErrTransportFailure = errors.New("transport failure")

	// ErrServiceConfiguration is fatal to a session (e.g. missing credential).
	ErrServiceConfiguration = errors.New("service configuration error")

	// ErrPersistence wraps durable store failures. Never aborts a session.
	ErrPersistence = errors.New("persistence error")
)

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}
