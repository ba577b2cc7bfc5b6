// Package scanner inspects raw upload bytes before anything else touches
// them. It is a signature scan, not an antivirus engine: it rejects
// oversized payloads, payloads without the expected document magic header,
// and payloads carrying script/markup injection patterns that have no
// business inside a statement or receipt.
package scanner

import (
	"bytes"
	"fmt"
)

// pdfMagic is the header every supported document must begin with.
var pdfMagic = []byte("%PDF-")

// defaultSignatures is the built-in block-list. Matching is byte-wise and
// case-insensitive.
var defaultSignatures = []string{
	"<script",
	"javascript:",
	"vbscript:",
	"/JavaScript",
	"/OpenAction",
	"/Launch",
	"/EmbeddedFile",
	"<?php",
	"<%eval",
}

// mzMagic marks a DOS/PE executable; checked against the header only.
var mzMagic = []byte{0x4D, 0x5A}

// ScanResult is the outcome of a content scan. Verdict is a short,
// user-safe reason; it never echoes payload content.
type ScanResult struct {
	Clean   bool
	Verdict string
}

// Scanner checks upload bytes against a size cap, the document magic header
// and a signature block-list.
type Scanner struct {
	maxBytes   int64
	signatures [][]byte
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithSignatures replaces the built-in block-list.
func WithSignatures(signatures []string) Option {
	return func(s *Scanner) {
		s.signatures = lowerAll(signatures)
	}
}

// New creates a Scanner with the given size cap and the built-in
// signature block-list.
func New(maxBytes int64, opts ...Option) *Scanner {
	s := &Scanner{
		maxBytes:   maxBytes,
		signatures: lowerAll(defaultSignatures),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan inspects data. The checks run cheapest-first and stop at the first
// failure: size, executable header, document magic, block-list.
func (s *Scanner) Scan(data []byte) ScanResult {
	if int64(len(data)) > s.maxBytes {
		return ScanResult{
			Clean:   false,
			Verdict: fmt.Sprintf("file exceeds maximum allowed size of %d bytes", s.maxBytes),
		}
	}

	if len(data) == 0 {
		return ScanResult{Clean: false, Verdict: "file is empty"}
	}

	if bytes.HasPrefix(data, mzMagic) {
		return ScanResult{Clean: false, Verdict: "executable content is not allowed"}
	}

	if !bytes.HasPrefix(data, pdfMagic) {
		return ScanResult{Clean: false, Verdict: "file is not a PDF document"}
	}

	lowered := bytes.ToLower(data)
	for _, sig := range s.signatures {
		if bytes.Contains(lowered, sig) {
			return ScanResult{Clean: false, Verdict: "file contains a blocked content signature"}
		}
	}

	return ScanResult{Clean: true, Verdict: "clean"}
}

func lowerAll(signatures []string) [][]byte {
	out := make([][]byte, 0, len(signatures))
	for _, sig := range signatures {
		if sig == "" {
			continue
		}
		out = append(out, bytes.ToLower([]byte(sig)))
	}
	return out
}
