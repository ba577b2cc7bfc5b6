package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation", &ValidationError{Reason: "filename is required"}, "validation failed: filename is required"},
		{"scan rejected", &ScanRejectedError{Verdict: "executable content"}, "scan rejected: executable content"},
		{"extraction", &ExtractionError{Err: errors.New("encrypted document")}, "text extraction failed: encrypted document"},
		{"parse", &ParseError{Detail: "no recognizable lines"}, "statement parse failed: no recognizable lines"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorsAsThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("runPipeline: %w", &ScanRejectedError{Verdict: "script content"})

	var scanErr *ScanRejectedError
	if !errors.As(wrapped, &scanErr) {
		t.Fatal("errors.As failed to find ScanRejectedError")
	}
	if scanErr.Verdict != "script content" {
		t.Errorf("Verdict = %q, want %q", scanErr.Verdict, "script content")
	}
}

func TestExtractionErrorUnwrap(t *testing.T) {
	cause := errors.New("corrupt xref table")
	err := &ExtractionError{Err: cause}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the wrapped cause")
	}
}
