// Package domain defines domain-level errors for the prices feature.
package domain

import (
	"errors"
	"fmt"
)

// Validation failures. They are reported before any I/O and are always wrapped in a *ValidationError.
var (
	// ErrInvalidSymbol indicates a missing or empty symbol.
	ErrInvalidSymbol = errors.New("symbol is required")

	// ErrInvalidMonth indicates a month that is not in YYYY-MM form.
	ErrInvalidMonth = errors.New("month must be in YYYY-MM format")

	// ErrInvalidGranularity indicates an aggregate granularity other than daily, weekly or monthly.
	ErrInvalidGranularity = errors.New("granularity must be daily, weekly or monthly")
)

// Upstream outcomes.
var (
	// ErrUpstreamThrottled indicates the provider (or the local quota guard) refused the call.
	// The engine treats it as a successful empty result and never caches it.
	ErrUpstreamThrottled = errors.New("upstream rate limit reached")
)

// Cache store failures. The engine absorbs all of them: reads degrade to a miss
// and writes are logged and dropped.
var (
	// ErrEntryNotFound indicates the requested document does not exist.
	ErrEntryNotFound = errors.New("cache entry not found")

	// ErrStoreUnavailable indicates no backing store is configured or reachable.
	ErrStoreUnavailable = errors.New("cache store unavailable")

	// ErrCacheRead indicates a document could not be read or decoded.
	ErrCacheRead = errors.New("cache read failed")

	// ErrCacheWrite indicates a document could not be written.
	ErrCacheWrite = errors.New("cache write failed")
)

// ValidationError is returned for caller input rejected before any I/O.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError wraps err for the named field.
func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

// UpstreamError is a transport, HTTP or provider failure from the market-data provider.
// It propagates to the request boundary and is not retried inline.
type UpstreamError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s: http %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
