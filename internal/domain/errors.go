package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCursor      = errors.New("invalid cursor")
	ErrSyncInProgress     = errors.New("sync already in progress")
	ErrNoAdapters         = errors.New("no source adapters configured")
	ErrInvalidOpportunity = errors.New("invalid opportunity")
	ErrInvalidQuery       = errors.New("invalid feed query")
)

// ProviderTransportError is a network or non-2xx HTTP failure.
type ProviderTransportError struct {
	Source     string
	Page       int
	StatusCode int
	Err        error
}

func (e *ProviderTransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s transport error (page %d, status %d): %v", e.Source, e.Page, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s transport error (page %d): %v", e.Source, e.Page, e.Err)
}

func (e *ProviderTransportError) Unwrap() error { return e.Err }

// ProviderRateLimitedError is an HTTP 429 that survived every retry attempt.
type ProviderRateLimitedError struct {
	Source   string
	Page     int
	Attempts int
}

func (e *ProviderRateLimitedError) Error() string {
	return fmt.Sprintf("%s rate limited on page %d after %d attempts", e.Source, e.Page, e.Attempts)
}

// ProviderFormatError is an unexpected response shape.
type ProviderFormatError struct {
	Source string
	Page   int
	Err    error
}

func (e *ProviderFormatError) Error() string {
	return fmt.Sprintf("%s format error (page %d): %v", e.Source, e.Page, e.Err)
}

func (e *ProviderFormatError) Unwrap() error { return e.Err }

// PersistenceError is a per-record upsert failure.
type PersistenceError struct {
	Source    string
	SourceRef string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", DedupeKey(e.Source, e.SourceRef), e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
