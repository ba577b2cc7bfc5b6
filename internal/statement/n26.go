package statement

import (
	"regexp"
	"strings"

	"github.com/dvloznov/ledgerscan/internal/domain"
)

// n26Line matches the line-oriented N26 statement layout:
//
//	01.03.2024 REWE SAGT DANKE Mastercard Payment -49,99€
//	05.03.2024 ACME GMBH Incoming Transfer +2.100,00€
//
// Groups: date, merchant, transaction kind, signed amount.
var n26Line = regexp.MustCompile(
	`^(\d{2}\.\d{2}\.\d{4})\s+(.+?)\s+` +
		`(Mastercard Payment|Direct Debit|Outgoing Transfer|Incoming Transfer|Standing Order|Credit|Cash Withdrawal)\s+` +
		`([+-]?\d[\d.,]*)\s*€?$`)

var n26Methods = map[string]string{
	"Mastercard Payment": "card",
	"Direct Debit":       "direct_debit",
	"Outgoing Transfer":  "transfer",
	"Incoming Transfer":  "transfer",
	"Standing Order":     "standing_order",
	"Credit":             "transfer",
	"Cash Withdrawal":    "cash",
}

// N26Parser parses the N26 layout with a line-pattern regex.
type N26Parser struct{}

// NewN26Parser creates the N26 strategy.
func NewN26Parser() *N26Parser {
	return &N26Parser{}
}

// Name implements Parser.
func (p *N26Parser) Name() string { return "n26" }

// Parse implements Parser. Only lines starting with a date are transaction
// candidates; a candidate the pattern does not match produces a warning.
func (p *N26Parser) Parse(text string) ([]domain.ExtractedTransaction, []Warning, error) {
	var (
		raws     []rawLine
		warnings []Warning
	)

	for _, line := range splitLines(text) {
		first, _, _ := strings.Cut(line.Text, " ")
		if !looksLikeDate(first) {
			continue
		}

		m := n26Line.FindStringSubmatch(line.Text)
		if m == nil {
			warnings = append(warnings, Warning{Line: line.Number, Text: line.Text, Reason: "line does not match statement pattern"})
			continue
		}

		txDate, err := parseDate(m[1])
		if err != nil {
			warnings = append(warnings, Warning{Line: line.Number, Text: line.Text, Reason: err.Error()})
			continue
		}
		amount, err := parseAmount(m[4])
		if err != nil {
			warnings = append(warnings, Warning{Line: line.Number, Text: line.Text, Reason: err.Error()})
			continue
		}

		merchant := strings.TrimSpace(m[2])
		raws = append(raws, rawLine{
			TransactionDate: txDate,
			Amount:          amount,
			Description:     merchant + " " + m[3],
			MerchantName:    merchant,
			PaymentMethod:   n26Methods[m[3]],
		})
	}

	return finalize(raws), warnings, nil
}

var _ Parser = (*N26Parser)(nil)
