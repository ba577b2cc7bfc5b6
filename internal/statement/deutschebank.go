package statement

import (
	"strings"

	"github.com/dvloznov/ledgerscan/internal/domain"
)

// Fixed column offsets of the Deutsche Bank statement export:
//
//	Buchungstag Wert        Verwendungszweck                          Betrag
//	01.03.2024  02.03.2024  KARTENZAHLUNG REWE SAGT DANKE             -49,99
//
// Booking date occupies columns 0-10, value date 12-22, the purpose text
// starts at column 24 and the amount is right-aligned at the line end.
const (
	dbBookingStart = 0
	dbBookingEnd   = 10
	dbValueStart   = 12
	dbValueEnd     = 22
	dbDescStart    = 24
	dbMinLineLen   = 30
)

// DeutscheBankParser parses the fixed-column Deutsche Bank layout. The
// value date column is the transaction date; the booking date is carried
// alongside.
type DeutscheBankParser struct{}

// NewDeutscheBankParser creates the Deutsche Bank strategy.
func NewDeutscheBankParser() *DeutscheBankParser {
	return &DeutscheBankParser{}
}

// Name implements Parser.
func (p *DeutscheBankParser) Name() string { return "deutschebank" }

// Parse implements Parser.
func (p *DeutscheBankParser) Parse(text string) ([]domain.ExtractedTransaction, []Warning, error) {
	var (
		raws     []rawLine
		warnings []Warning
	)

	for _, line := range splitLines(text) {
		if len(line.Text) < dbMinLineLen {
			continue
		}
		if !looksLikeDate(strings.TrimSpace(sliceCols(line.Text, dbBookingStart, dbBookingEnd))) {
			continue // header or boilerplate
		}

		bookingDate, err := parseDate(sliceCols(line.Text, dbBookingStart, dbBookingEnd))
		if err != nil {
			warnings = append(warnings, Warning{Line: line.Number, Text: line.Text, Reason: err.Error()})
			continue
		}

		txDate, err := parseDate(sliceCols(line.Text, dbValueStart, dbValueEnd))
		if err != nil {
			warnings = append(warnings, Warning{Line: line.Number, Text: line.Text, Reason: "missing value date: " + err.Error()})
			continue
		}

		rest := sliceCols(line.Text, dbDescStart, len(line.Text))
		fields := strings.Fields(rest)
		if len(fields) < 2 {
			warnings = append(warnings, Warning{Line: line.Number, Text: line.Text, Reason: "no description and amount columns"})
			continue
		}

		amountTok := fields[len(fields)-1]
		amount, err := parseAmount(amountTok)
		if err != nil {
			warnings = append(warnings, Warning{Line: line.Number, Text: line.Text, Reason: err.Error()})
			continue
		}

		raws = append(raws, rawLine{
			TransactionDate: txDate,
			BookingDate:     &bookingDate,
			Amount:          amount,
			Description:     strings.Join(fields[:len(fields)-1], " "),
		})
	}

	return finalize(raws), warnings, nil
}

// sliceCols slices by byte columns, clamped to the line length.
func sliceCols(s string, start, end int) string {
	if start >= len(s) {
		return ""
	}
	if end > len(s) {
		end = len(s)
	}
	return s[start:end]
}

var _ Parser = (*DeutscheBankParser)(nil)
