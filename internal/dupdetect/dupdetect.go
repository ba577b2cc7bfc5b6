// Package dupdetect scores candidate transactions against the user's
// existing ledger window and flags probable duplicates.
package dupdetect

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/ledgerscan/internal/domain"
)

// Matching window and scoring constants.
const (
	// windowDays bounds the candidate window: only ledger transactions
	// within ±windowDays of the candidate date are considered at all.
	windowDays = 3

	// dateSpreadDays is the denominator of date similarity.
	dateSpreadDays = 7.0

	// weights of the composite score.
	weightAmount      = 0.40
	weightDate        = 0.30
	weightDescription = 0.25
	weightType        = 0.05

	// DefaultThreshold marks a candidate as duplicate.
	DefaultThreshold = 0.80
)

// amountTolerance is the absolute pre-filter on amounts: only ledger
// transactions within one cent enter scoring.
var amountTolerance = decimal.NewFromFloat(0.01)

// Match pairs an existing ledger transaction with its similarity score.
type Match struct {
	Transaction domain.LedgerTransaction
	Score       float64
}

// Detector finds probable duplicates of extracted candidates in the ledger.
type Detector struct {
	ledger    domain.LedgerReader
	threshold float64
	log       zerolog.Logger
}

// New creates a Detector reading existing transactions from ledger.
func New(ledger domain.LedgerReader, threshold float64, log zerolog.Logger) *Detector {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Detector{ledger: ledger, threshold: threshold, log: log}
}

// FindDuplicates returns existing ledger transactions matching the
// candidate, ranked by score descending. Ties are broken by the earlier
// existing transaction date so the result is stable for a given ledger
// snapshot.
func (d *Detector) FindDuplicates(ctx context.Context, userID string, candidate domain.ExtractedTransaction) ([]Match, error) {
	existing, err := d.ledger.TransactionsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("FindDuplicates: loading ledger: %w", err)
	}
	return d.rank(existing, candidate), nil
}

func (d *Detector) rank(existing []domain.LedgerTransaction, candidate domain.ExtractedTransaction) []Match {
	var matches []Match
	for _, tx := range existing {
		if score := Score(tx, candidate); score > 0 {
			matches = append(matches, Match{Transaction: tx, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Transaction.TransactionDate.Before(matches[j].Transaction.TransactionDate)
	})
	return matches
}

// Annotate scores every candidate against the user's ledger and flags the
// ones crossing the threshold: IsDuplicate is set, DuplicateTransactionID
// points at the single best match, and IsSelected is forced to false. The
// per-candidate scoring only reads the ledger snapshot, so it fans out
// across goroutines.
func (d *Detector) Annotate(ctx context.Context, userID string, candidates []domain.ExtractedTransaction) error {
	if len(candidates) == 0 {
		return nil
	}

	existing, err := d.ledger.TransactionsForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("Annotate: loading ledger: %w", err)
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := range candidates {
		g.Go(func() error {
			matches := d.rank(existing, candidates[i])
			if len(matches) == 0 || matches[0].Score < d.threshold {
				return nil
			}

			best := matches[0]
			candidates[i].IsDuplicate = true
			candidates[i].DuplicateTransactionID = best.Transaction.ID
			candidates[i].DuplicateReason = fmt.Sprintf(
				"matches existing transaction from %s (%.0f%% similar)",
				best.Transaction.TransactionDate.Format("2006-01-02"), best.Score*100)
			candidates[i].ConfidenceScore = best.Score
			candidates[i].IsSelected = false
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	dupes := 0
	for i := range candidates {
		if candidates[i].IsDuplicate {
			dupes++
		}
	}
	d.log.Debug().Int("candidates", len(candidates)).Int("duplicates", dupes).Msg("duplicate annotation complete")
	return nil
}

// Score computes the weighted similarity of an existing ledger transaction
// and a candidate, in [0,1]. Transactions outside the ±3 day window or the
// one-cent amount tolerance score 0 without evaluating description
// similarity.
func Score(existing domain.LedgerTransaction, candidate domain.ExtractedTransaction) float64 {
	dayDiff := absDays(existing.TransactionDate, candidate.TransactionDate)
	if dayDiff > windowDays {
		return 0
	}

	amountDiff := existing.Amount.Sub(candidate.Amount).Abs()
	if amountDiff.GreaterThan(amountTolerance) {
		return 0
	}

	return weightAmount*amountSimilarity(existing.Amount, candidate.Amount) +
		weightDate*dateSimilarity(dayDiff) +
		weightDescription*descriptionSimilarity(existing.Description, candidate.Description) +
		weightType*typeSimilarity(existing.Type, candidate.Type)
}

// amountSimilarity is max(0, 1 − |Δ|/candidate). Near-zero candidates use
// exact-match semantics instead of the ratio, which is unstable there: the
// pre-filter already bounds |Δ| to one cent, so they count as identical.
func amountSimilarity(existing, candidate decimal.Decimal) float64 {
	if candidate.Abs().LessThanOrEqual(amountTolerance) {
		return 1
	}
	ratio, _ := existing.Sub(candidate).Abs().Div(candidate.Abs()).Float64()
	if sim := 1 - ratio; sim > 0 {
		return sim
	}
	return 0
}

func dateSimilarity(dayDiff int) float64 {
	if sim := 1 - float64(dayDiff)/dateSpreadDays; sim > 0 {
		return sim
	}
	return 0
}

// descriptionSimilarity is the Jaccard similarity of lower-cased word sets,
// with an exact-match short circuit. Either side empty scores 0.
func descriptionSimilarity(a, b string) float64 {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return 0
	}
	if strings.EqualFold(a, b) {
		return 1
	}

	setA := tokenSet(a)
	setB := tokenSet(b)

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func typeSimilarity(a domain.TransactionType, b domain.TransactionType) float64 {
	if a == b {
		return 1
	}
	return 0
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		set[tok] = true
	}
	return set
}

// absDays is the whole-day distance between two calendar dates; clock time
// is ignored.
func absDays(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	days := int(ad.Sub(bd).Hours() / 24)
	if days < 0 {
		return -days
	}
	return days
}
