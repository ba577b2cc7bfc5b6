package statement

import (
	"strings"

	"github.com/dvloznov/ledgerscan/internal/domain"
)

// SparkasseParser parses the semicolon-delimited Sparkasse export layout:
//
//	Buchungstag;Valuta;Buchungstext;Verwendungszweck;Referenz;Betrag[;Währung]
//	01.03.2024;02.03.2024;KARTENZAHLUNG;REWE SAGT DANKE//KOELN;REF1234;-49,99;EUR
//
// The counterparty in the purpose field precedes "//" when present.
type SparkasseParser struct{}

// NewSparkasseParser creates the Sparkasse strategy.
func NewSparkasseParser() *SparkasseParser {
	return &SparkasseParser{}
}

// Name implements Parser.
func (p *SparkasseParser) Name() string { return "sparkasse" }

const spkMinFields = 6

// Parse implements Parser. Lines without a semicolon are boilerplate;
// delimited lines that do not start with a date are headers. Both are
// ignored silently.
func (p *SparkasseParser) Parse(text string) ([]domain.ExtractedTransaction, []Warning, error) {
	var (
		raws     []rawLine
		warnings []Warning
	)

	for _, line := range splitLines(text) {
		if !strings.Contains(line.Text, ";") {
			continue
		}

		fields := splitDelimited(line.Text)
		if !looksLikeDate(fields[0]) {
			continue
		}
		if len(fields) < spkMinFields {
			warnings = append(warnings, Warning{Line: line.Number, Text: line.Text, Reason: "too few delimited fields"})
			continue
		}

		bookingDate, err := parseDate(fields[0])
		if err != nil {
			warnings = append(warnings, Warning{Line: line.Number, Text: line.Text, Reason: err.Error()})
			continue
		}
		txDate, err := parseDate(fields[1])
		if err != nil {
			warnings = append(warnings, Warning{Line: line.Number, Text: line.Text, Reason: "bad value date: " + err.Error()})
			continue
		}
		amount, err := parseAmount(fields[5])
		if err != nil {
			warnings = append(warnings, Warning{Line: line.Number, Text: line.Text, Reason: err.Error()})
			continue
		}

		purpose := fields[3]
		merchant := ""
		if idx := strings.Index(purpose, "//"); idx > 0 {
			merchant = strings.TrimSpace(purpose[:idx])
		}
		if purpose == "" {
			warnings = append(warnings, Warning{Line: line.Number, Text: line.Text, Reason: "empty purpose field"})
			continue
		}

		raws = append(raws, rawLine{
			TransactionDate: txDate,
			BookingDate:     &bookingDate,
			Amount:          amount,
			Description:     purpose,
			MerchantName:    merchant,
			ReferenceNumber: fields[4],
			PaymentMethod:   paymentMethodFor(fields[2]),
		})
	}

	return finalize(raws), warnings, nil
}

// splitDelimited splits on ";" and strips surrounding quotes and space from
// every field.
func splitDelimited(line string) []string {
	fields := strings.Split(line, ";")
	for i, f := range fields {
		f = strings.TrimSpace(f)
		f = strings.Trim(f, `"`)
		fields[i] = strings.TrimSpace(f)
	}
	return fields
}

// paymentMethodFor maps German posting texts onto payment methods.
func paymentMethodFor(buchungstext string) string {
	switch strings.ToUpper(strings.TrimSpace(buchungstext)) {
	case "KARTENZAHLUNG", "KARTENZAHLUNG/-ABRECHNUNG":
		return "card"
	case "LASTSCHRIFT", "FOLGELASTSCHRIFT", "ERSTLASTSCHRIFT":
		return "direct_debit"
	case "UEBERWEISUNG", "ÜBERWEISUNG", "ONLINE-UEBERWEISUNG", "GUTSCHR. UEBERWEISUNG":
		return "transfer"
	case "DAUERAUFTRAG":
		return "standing_order"
	case "BARGELDAUSZAHLUNG", "BARGELDEINZAHLUNG":
		return "cash"
	}
	return ""
}

var _ Parser = (*SparkasseParser)(nil)
