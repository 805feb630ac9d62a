package apperr

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict is a generic sentinel for uniqueness races.
	ErrConflict = errors.New("conflict")
)

// EncodingProbeError is a hard rejection from the encoding probe. Reason is one
// of "empty" or "low_printable".
type EncodingProbeError struct {
	Reason         string
	PrintableRatio float64
}

func (e *EncodingProbeError) Error() string {
	if e.Reason == "low_printable" {
		return fmt.Sprintf("encoding probe rejected input: printable ratio %.3f below minimum", e.PrintableRatio)
	}
	return fmt.Sprintf("encoding probe rejected input: %s", e.Reason)
}

// ScrubConfirmationError rejects an embedding cache write whose metadata does
// not confirm PII scrubbing.
type ScrubConfirmationError struct {
	AcceptedKeys []string
}

func (e *ScrubConfirmationError) Error() string {
	return fmt.Sprintf("embedding cache store rejected: scrub metadata missing truthy confirmation under any of %v (top level or under \"privacy\")", e.AcceptedKeys)
}

// FingerprintNotFoundError means no fingerprint row exists for a session.
type FingerprintNotFoundError struct {
	SessionID uuid.UUID
}

func (e *FingerprintNotFoundError) Error() string {
	return fmt.Sprintf("no incident fingerprint for session %s", e.SessionID)
}

func (e *FingerprintNotFoundError) Unwrap() error { return ErrNotFound }

// FingerprintUnavailableError means a fingerprint row exists but carries no
// embedding, so similarity search cannot run for it.
type FingerprintUnavailableError struct {
	SessionID uuid.UUID
}

func (e *FingerprintUnavailableError) Error() string {
	return fmt.Sprintf("incident fingerprint for session %s has no embedding", e.SessionID)
}
