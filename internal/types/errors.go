package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrMaxRetries        = errors.New("max retries exceeded")
	ErrBlocked           = errors.New("blocked by anti-bot challenge")
	ErrEmptyResponse     = errors.New("empty response body")
	ErrInvalidIdentifier = errors.New("invalid product identifier")
	ErrNotFound          = errors.New("not found")
)

// FetchError wraps errors that occur during fetching.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
	Blocked    bool
	RetryAfter time.Duration // populated from Retry-After header on HTTP 429/503
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur during storage/export.
type StorageError struct {
	Backend string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("storage error (%s %s): %v", e.Backend, e.Op, e.Err)
	}
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ValidationError carries every rule violation found for one record.
type ValidationError struct {
	Identifier string
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("record %s failed validation: %s", e.Identifier, strings.Join(e.Violations, "; "))
}

// PipelineError wraps errors that occur in the processing pipeline.
type PipelineError struct {
	Stage      string
	Identifier string
	Err        error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at stage %q for %s: %v", e.Stage, e.Identifier, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
