// Package statement turns extracted statement text into ordered candidate
// transactions. A registry maps bank-name hints onto layout strategies
// (fixed-column, delimiter-based, line-pattern regex) with a generic
// heuristic fallback for unknown banks.
package statement

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/ledgerscan/internal/domain"
)

// Warning records a line that could not be parsed. Skipped lines are not
// fatal; the overall parse only fails when zero transactions come out of a
// non-empty text body.
type Warning struct {
	Line   int
	Text   string
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: %s", w.Line, w.Reason)
}

// Parser is one bank-dialect layout strategy. Implementations must be
// deterministic: identical text yields identical output, in statement order.
type Parser interface {
	// Name identifies the dialect.
	Name() string
	// Parse extracts candidate transactions from statement text.
	Parse(text string) ([]domain.ExtractedTransaction, []Warning, error)
}

// rawLine is one candidate transaction as seen by a strategy, before
// normalization.
type rawLine struct {
	TransactionDate time.Time
	BookingDate     *time.Time
	Amount          decimal.Decimal // signed, bank convention
	Description     string
	MerchantName    string
	ReferenceNumber string
	PaymentMethod   string
}

// finalize converts raw strategy output into the canonical candidate shape:
// the bank's signed amount becomes a non-negative Amount plus a Type, IDs
// are assigned in statement order and IsSelected defaults to true.
func finalize(lines []rawLine) []domain.ExtractedTransaction {
	out := make([]domain.ExtractedTransaction, 0, len(lines))
	for i, ln := range lines {
		txType := domain.TypeIncome
		amount := ln.Amount
		if amount.IsNegative() {
			txType = domain.TypeExpense
			amount = amount.Neg()
		}

		out = append(out, domain.ExtractedTransaction{
			ID:              fmt.Sprintf("txn-%d", i+1),
			TransactionDate: ln.TransactionDate,
			BookingDate:     ln.BookingDate,
			Amount:          amount,
			Description:     strings.TrimSpace(ln.Description),
			MerchantName:    strings.TrimSpace(ln.MerchantName),
			ReferenceNumber: strings.TrimSpace(ln.ReferenceNumber),
			PaymentMethod:   ln.PaymentMethod,
			Type:            txType,
			IsSelected:      true,
		})
	}
	return out
}

// splitLines splits statement text into trimmed lines, keeping original
// line numbers for warnings. Page separators from the extractor count as
// line breaks.
func splitLines(text string) []numberedLine {
	normalized := strings.ReplaceAll(text, "\f", "\n")
	normalized = strings.ReplaceAll(normalized, "\r\n", "\n")

	var out []numberedLine
	for i, raw := range strings.Split(normalized, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		out = append(out, numberedLine{Number: i + 1, Text: line})
	}
	return out
}

type numberedLine struct {
	Number int
	Text   string
}

// Date layouts accepted across dialects, most specific first.
var dateLayouts = []string{
	"02.01.2006",
	"2006-01-02",
	"02/01/2006",
	"02.01.06",
}

// parseDate parses a date token in any accepted layout.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if len(s) != len(layout) {
			continue
		}
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

var amountCleaner = regexp.MustCompile(`[€$£\s]|EUR|GBP|USD`)

// parseAmount parses a signed amount token in German ("1.234,56") or
// English ("1,234.56") notation, tolerating currency symbols and a
// trailing sign.
func parseAmount(s string) (decimal.Decimal, error) {
	s = amountCleaner.ReplaceAllString(strings.TrimSpace(s), "")
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	if !amountToken.MatchString(s) {
		return decimal.Zero, fmt.Errorf("unrecognized amount %q", s)
	}

	// Trailing sign ("49,99-") used by some exports.
	negative := false
	if strings.HasSuffix(s, "-") {
		negative = true
		s = strings.TrimSuffix(s, "-")
	} else if strings.HasSuffix(s, "+") {
		s = strings.TrimSuffix(s, "+")
	}

	s = normalizeSeparators(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unrecognized amount %q", s)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// normalizeSeparators rewrites thousands/decimal separators into plain
// decimal-point notation. When both separators appear, the rightmost one is
// the decimal separator; a lone comma followed by exactly two digits is a
// decimal comma.
func normalizeSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma != -1 && lastDot != -1:
		if lastComma > lastDot {
			// German: dot thousands, comma decimal.
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			// English: comma thousands, dot decimal.
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma != -1:
		if len(s)-lastComma-1 == 2 {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s[:lastComma], ",", "", -1) + "." + s[lastComma+1:]
		} else {
			// Thousands-only comma ("1,234").
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot != -1:
		// Statement amounts carry at most two decimals, so a dot followed
		// by three digits ("1.234") is a German thousands separator.
		if len(s)-lastDot-1 == 3 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}
	return s
}

var amountToken = regexp.MustCompile(`^[+-]?\d{1,3}(?:[.,]\d{3})*(?:[.,]\d{1,2})?[+-]?$|^[+-]?\d+(?:[.,]\d{1,2})?[+-]?$`)

// looksLikeAmount reports whether a token plausibly denotes an amount.
func looksLikeAmount(s string) bool {
	s = amountCleaner.ReplaceAllString(strings.TrimSpace(s), "")
	return s != "" && amountToken.MatchString(s)
}

// looksLikeDate reports whether a token is a date in an accepted layout.
func looksLikeDate(s string) bool {
	_, err := parseDate(s)
	return err == nil
}
