package ingestion

import (
	"errors"
	"fmt"

	"github.com/feedsync/backend/internal/domain/supplier"
)

// FetchErrorKind classifies feed download failures
type FetchErrorKind string

const (
	FetchNetwork FetchErrorKind = "network"
	FetchTimeout FetchErrorKind = "timeout"
	FetchStatus  FetchErrorKind = "status"
)

// FetchError is returned when a feed could not be downloaded.
// URL is always stored masked.
type FetchError struct {
	Kind       FetchErrorKind
	StatusCode int
	URL        string
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchStatus:
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	case FetchTimeout:
		return fmt.Sprintf("fetch %s: timed out", e.URL)
	default:
		if e.Err != nil {
			return fmt.Sprintf("fetch %s: network failure: %v", e.URL, e.Err)
		}
		return fmt.Sprintf("fetch %s: network failure", e.URL)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether a second attempt may succeed
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case FetchNetwork, FetchTimeout:
		return true
	case FetchStatus:
		return e.StatusCode >= 500 || e.StatusCode == 429
	default:
		return false
	}
}

// ParseErrorKind classifies feed decoding failures
type ParseErrorKind string

const (
	ParseMalformed         ParseErrorKind = "malformed"
	ParseUnknownShape      ParseErrorKind = "unknown_shape"
	ParseUnsupportedFormat ParseErrorKind = "unsupported_format"
)

// ParseError is returned when a payload cannot be decoded into records
type ParseError struct {
	Kind   ParseErrorKind
	Format supplier.FormatType
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s feed: %s: %v", e.Format, e.Kind, e.Err)
	}
	return fmt.Sprintf("parse %s feed: %s", e.Format, e.Kind)
}

func (e *ParseError) Unwrap() error { return e.Err }

// LoginError means the storefront session could not be authenticated
type LoginError struct {
	URL    string
	Reason string
	Err    error
}

func (e *LoginError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("login at %s failed: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("login at %s failed: %s", e.URL, e.Reason)
}

func (e *LoginError) Unwrap() error { return e.Err }

// ExtractionError describes a single listing node that could not be read.
// It never aborts a page.
type ExtractionError struct {
	Page   int
	Index  int
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("page %d node %d: %s", e.Page, e.Index, e.Reason)
}

// WriteErrorKind classifies persistence failures
type WriteErrorKind string

const (
	WriteConstraint WriteErrorKind = "constraint"
	WriteConnection WriteErrorKind = "connection"
	WriteUnknown    WriteErrorKind = "unknown"
)

// WriteError is returned when a supplier batch could not be persisted.
// The batch transaction has been rolled back when this is returned.
type WriteError struct {
	Kind     WriteErrorKind
	Supplier string
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s batch: %s: %v", e.Supplier, e.Kind, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ConfigError means a supplier entry cannot be used as configured
type ConfigError struct {
	SupplierID string
	Reason     string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("supplier %s: %s", e.SupplierID, e.Reason)
}

// Stage names the pipeline stage an error belongs to
func Stage(err error) string {
	var (
		fetchErr  *FetchError
		parseErr  *ParseError
		loginErr  *LoginError
		writeErr  *WriteError
		configErr *ConfigError
	)
	switch {
	case errors.As(err, &fetchErr):
		return "fetch"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &loginErr):
		return "login"
	case errors.As(err, &writeErr):
		return "write"
	case errors.As(err, &configErr):
		return "config"
	default:
		return "unknown"
	}
}
