package statement

import (
	"strings"
	"time"

	"github.com/dvloznov/ledgerscan/internal/domain"
)

// GenericParser is the heuristic fallback for unknown banks. A transaction
// line is any line carrying a date token and an amount token; everything
// between them is the description.
type GenericParser struct{}

// NewGenericParser creates the fallback strategy.
func NewGenericParser() *GenericParser {
	return &GenericParser{}
}

// Name implements Parser.
func (p *GenericParser) Name() string { return "generic" }

// Parse implements Parser. Lines without any date token are treated as
// statement boilerplate and ignored silently; lines that look like
// transactions but cannot be fully parsed produce warnings.
func (p *GenericParser) Parse(text string) ([]domain.ExtractedTransaction, []Warning, error) {
	var (
		raws     []rawLine
		warnings []Warning
	)

	for _, line := range splitLines(text) {
		tokens := strings.Fields(line.Text)

		dateIdx := -1
		for i, tok := range tokens {
			if looksLikeDate(tok) {
				dateIdx = i
				break
			}
		}
		if dateIdx == -1 {
			continue // boilerplate
		}

		txDate, err := parseDate(tokens[dateIdx])
		if err != nil {
			warnings = append(warnings, Warning{Line: line.Number, Text: line.Text, Reason: err.Error()})
			continue
		}

		// An immediately following second date is the booking date.
		descStart := dateIdx + 1
		var bookingDate *time.Time
		if descStart < len(tokens) && looksLikeDate(tokens[descStart]) {
			if bd, err := parseDate(tokens[descStart]); err == nil {
				bookingDate = &bd
				descStart++
			}
		}

		amountIdx := -1
		for i := len(tokens) - 1; i > descStart; i-- {
			if looksLikeAmount(tokens[i]) {
				amountIdx = i
				break
			}
		}
		if amountIdx == -1 {
			warnings = append(warnings, Warning{Line: line.Number, Text: line.Text, Reason: "no amount token found"})
			continue
		}

		amount, err := parseAmount(tokens[amountIdx])
		if err != nil {
			warnings = append(warnings, Warning{Line: line.Number, Text: line.Text, Reason: err.Error()})
			continue
		}

		description := strings.Join(tokens[descStart:amountIdx], " ")
		if description == "" {
			warnings = append(warnings, Warning{Line: line.Number, Text: line.Text, Reason: "no description between date and amount"})
			continue
		}

		raws = append(raws, rawLine{
			TransactionDate: txDate,
			BookingDate:     bookingDate,
			Amount:          amount,
			Description:     description,
		})
	}

	return finalize(raws), warnings, nil
}

var _ Parser = (*GenericParser)(nil)
