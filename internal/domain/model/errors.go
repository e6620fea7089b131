package model

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the vault and the generation service. Callers
// match them with errors.Is.
var (
	// ErrValidation indicates bad input shape or range. Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrCredential indicates a missing or undecryptable API key.
	ErrCredential = errors.New("credential unavailable")

	// ErrPermission indicates the provider is not allowed for the user.
	ErrPermission = errors.New("provider not allowed")

	// ErrProvider indicates an adapter start or poll call failed.
	ErrProvider = errors.New("provider request failed")

	// ErrTimeout indicates the poll budget was exhausted.
	ErrTimeout = errors.New("generation timed out")

	// ErrUnsupportedProvider indicates no adapter is registered for the provider.
	ErrUnsupportedProvider = fmt.Errorf("%w: provider not supported", ErrProvider)

	// ErrJobNotFound indicates the requested generation job does not exist.
	ErrJobNotFound = errors.New("generation job not found")

	// ErrInvalidTransition indicates a job status change that would leave a
	// terminal state or move backwards.
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// ProviderError carries the vendor's own message for a failed adapter call.
type ProviderError struct {
	Message    string
	StatusCode int
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider error (status %d): %s", e.StatusCode, e.Message)
	}
	return "provider error: " + e.Message
}

// Unwrap lets errors.Is(err, ErrProvider) match.
func (e *ProviderError) Unwrap() error {
	return ErrProvider
}

// ProviderMessage extracts the vendor message from err, or returns fallback
// when err carries none.
func ProviderMessage(err error, fallback string) string {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	return fallback
}
