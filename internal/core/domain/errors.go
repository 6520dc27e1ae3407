package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers unknown document/chunk references.
	ErrNotFound = errors.New("not found")
	// ErrIngestion is fatal per document; no partial store write survives it.
	ErrIngestion = errors.New("ingestion failed")
	// ErrTransientBackend is retryable at the gateway call site.
	ErrTransientBackend = errors.New("transient backend failure")
	// ErrQuotaExceeded is non-retryable and cancels outstanding sub-task work.
	ErrQuotaExceeded = errors.New("backend quota exceeded")
	// ErrNoEvidence is reported inline as low coverage, never fatal.
	ErrNoEvidence = errors.New("no evidence found")
	// ErrDimensionMismatch is a configuration defect.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
