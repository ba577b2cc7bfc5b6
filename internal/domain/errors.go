package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for state and lookup failures. Handlers map these onto
// HTTP statuses.
var (
	ErrNotFound            = errors.New("document not found")
	ErrInvalidState        = errors.New("operation not allowed in current document state")
	ErrPreviewNotAvailable = errors.New("preview not available")
)

// ValidationError rejects bad input shape/size before any processing starts.
// It is synchronous: no document record exists when it is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// ScanRejectedError means the Content Scanner refused the bytes. The verdict
// is safe to show to the user; it never echoes payload content.
type ScanRejectedError struct {
	Verdict string
}

func (e *ScanRejectedError) Error() string {
	return fmt.Sprintf("scan rejected: %s", e.Verdict)
}

// ExtractionError means the Text Extractor could not open or read the
// document.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("text extraction failed: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ParseError means the Statement Parser extracted zero transactions from a
// non-empty text body.
type ParseError struct {
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("statement parse failed: %s", e.Detail)
}
