// Package categorizer ranks existing ledger categories against a candidate
// transaction's text using user-defined keywords, a built-in lexicon, and
// merchant matching. Suggestions are best-effort and never block an import.
package categorizer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/ledgerscan/internal/domain"
)

const (
	userKeywordScore    = 0.8
	lexiconKeywordScore = 0.6
	merchantScore       = 0.9
	amountScore         = 0.1

	scoreCutoff    = 0.3
	maxSuggestions = 5

	categoryCacheTTL = 5 * time.Minute
)

// largeAmountThreshold feeds the weak amount heuristic: categories flagged
// large_amounts in the lexicon get a small boost for postings at or above it.
var largeAmountThreshold = decimal.NewFromInt(500)

var stopwords = map[string]bool{
	"und": true, "oder": true, "aber": true, "eine": true, "einer": true,
	"der": true, "die": true, "das": true, "den": true, "dem": true,
	"mit": true, "von": true, "fuer": true, "ohne": true, "ueber": true,
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"your": true, "this": true, "that": true, "danke": true, "sagt": true,
	"gmbh": true,
}

// Suggester scores categories for extracted transactions. Per-user category
// lists are cached briefly to avoid hammering the ledger during batch
// processing of a statement.
type Suggester struct {
	ledger  domain.LedgerReader
	learned KeywordStore
	lex     *lexicon
	cache   *gocache.Cache
	log     zerolog.Logger
}

func New(ledger domain.LedgerReader, learned KeywordStore, log zerolog.Logger) (*Suggester, error) {
	lex, err := loadLexicon(lexiconYAML)
	if err != nil {
		return nil, fmt.Errorf("New: %w", err)
	}
	return &Suggester{
		ledger:  ledger,
		learned: learned,
		lex:     lex,
		cache:   gocache.New(categoryCacheTTL, 2*categoryCacheTTL),
		log:     log.With().Str("component", "categorizer").Logger(),
	}, nil
}

// Suggest returns up to five category suggestions scoring above the cutoff,
// highest first. Ties are broken by category name so the ranking is stable.
func (s *Suggester) Suggest(ctx context.Context, userID, description, merchant string, amount decimal.Decimal, txType domain.TransactionType) ([]domain.CategorySuggestion, error) {
	categories, err := s.categories(ctx, userID, txType)
	if err != nil {
		return nil, fmt.Errorf("Suggest: %w", err)
	}

	haystack := strings.ToLower(description + " " + merchant)
	merchantHay := strings.ToLower(merchant)

	suggestions := make([]domain.CategorySuggestion, 0, len(categories))
	for _, cat := range categories {
		score, reasons := s.scoreCategory(ctx, userID, cat, txType, haystack, merchantHay, amount)
		if score <= scoreCutoff {
			continue
		}
		if score > 1.0 {
			score = 1.0
		}
		reason := "pattern recognition"
		if len(reasons) > 0 {
			reason = strings.Join(reasons, ", ")
		}
		suggestions = append(suggestions, domain.CategorySuggestion{
			CategoryID:      cat.ID,
			Name:            cat.Name,
			Icon:            cat.Icon,
			Color:           cat.Color,
			ConfidenceScore: score,
			MatchReason:     reason,
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].ConfidenceScore != suggestions[j].ConfidenceScore {
			return suggestions[i].ConfidenceScore > suggestions[j].ConfidenceScore
		}
		return suggestions[i].Name < suggestions[j].Name
	})
	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}

	s.log.Debug().
		Str("user_id", userID).
		Int("categories", len(categories)).
		Int("suggestions", len(suggestions)).
		Msg("category suggestion complete")
	return suggestions, nil
}

func (s *Suggester) scoreCategory(ctx context.Context, userID string, cat domain.Category, txType domain.TransactionType, haystack, merchantHay string, amount decimal.Decimal) (float64, []string) {
	var score float64
	var reasons []string

	userKeywords := cat.Keywords
	if s.learned != nil {
		learned, err := s.learned.Keywords(ctx, userID, cat.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("category_id", cat.ID).Msg("loading learned keywords failed")
		} else {
			userKeywords = append(append([]string(nil), userKeywords...), learned...)
		}
	}
	for _, kw := range userKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || !strings.Contains(haystack, kw) {
			continue
		}
		score += userKeywordScore
		reasons = append(reasons, fmt.Sprintf("keyword %q", kw))
	}

	if entry, ok := s.lex.lookup(txType, cat.Name); ok {
		for _, kw := range entry.Keywords {
			kw = strings.ToLower(kw)
			if !strings.Contains(haystack, kw) {
				continue
			}
			score += lexiconKeywordScore
			reasons = append(reasons, fmt.Sprintf("keyword %q", kw))
		}
		for _, m := range entry.Merchants {
			if merchantHay == "" || !strings.Contains(merchantHay, strings.ToLower(m)) {
				continue
			}
			score += merchantScore
			reasons = append(reasons, fmt.Sprintf("merchant %q", m))
			break
		}
		if entry.LargeAmounts && amount.GreaterThanOrEqual(largeAmountThreshold) {
			score += amountScore
		}
	}

	return score, reasons
}

// Learn records a confirmed category choice by appending novel tokens from
// the transaction text to the category's learned keyword set.
func (s *Suggester) Learn(ctx context.Context, userID, categoryID, description, merchant string) error {
	if s.learned == nil {
		return nil
	}
	tokens := learnTokens(description + " " + merchant)
	if len(tokens) == 0 {
		return nil
	}
	if err := s.learned.Append(ctx, userID, categoryID, tokens); err != nil {
		return fmt.Errorf("Learn: %w", err)
	}
	s.log.Debug().
		Str("user_id", userID).
		Str("category_id", categoryID).
		Strs("tokens", tokens).
		Msg("learned category keywords")
	return nil
}

// learnTokens extracts candidate keywords: lowercased words longer than
// three characters that are not stopwords or pure digits, deduplicated in
// order of first appearance.
func learnTokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]bool, len(fields))
	var tokens []string
	for _, f := range fields {
		if len(f) <= 3 || stopwords[f] || seen[f] {
			continue
		}
		if isNumeric(f) {
			continue
		}
		seen[f] = true
		tokens = append(tokens, f)
	}
	return tokens
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func (s *Suggester) categories(ctx context.Context, userID string, txType domain.TransactionType) ([]domain.Category, error) {
	key := "categories/" + userID + "/" + string(txType)
	if cached, ok := s.cache.Get(key); ok {
		return cached.([]domain.Category), nil
	}
	categories, err := s.ledger.CategoriesByType(ctx, userID, txType)
	if err != nil {
		return nil, fmt.Errorf("loading categories: %w", err)
	}
	s.cache.Set(key, categories, gocache.DefaultExpiration)
	return categories, nil
}
