package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration signals an unsupported or inconsistent pipeline configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrResolution signals a document id with no content in the backing store.
	ErrResolution = errors.New("content resolution failed")
	// ErrFormat signals a malformed run file, TSV, topic or rewrite table line.
	ErrFormat = errors.New("malformed input")
	// ErrScorerProvider signals a failure of an external relevance scorer or generator.
	ErrScorerProvider = errors.New("scorer provider error")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)

// KeyPrefix namespaces every key castrank writes to the store.
const KeyPrefix = "castrank:"

// FormatError wraps ErrFormat with the offending source and line.
type FormatError struct {
	Source string
	Line   int
	Reason string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s:%d: %s", ErrFormat.Error(), e.Source, e.Line, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrFormat.Error(), e.Source, e.Reason)
}

func (e *FormatError) Unwrap() error { return ErrFormat }

// NewFormatError creates a format error for source at line (1-based, 0 when unknown).
func NewFormatError(source string, line int, reason string) error {
	return &FormatError{Source: source, Line: line, Reason: reason}
}

// ResolutionError wraps ErrResolution with the unresolved document id.
type ResolutionError struct {
	DocID string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s: no content for %q", ErrResolution.Error(), e.DocID)
}

func (e *ResolutionError) Unwrap() error { return ErrResolution }

// NewResolutionError creates a resolution error for docID.
func NewResolutionError(docID string) error {
	return &ResolutionError{DocID: docID}
}
