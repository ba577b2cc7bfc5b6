package categorizer

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dvloznov/ledgerscan/internal/domain"
)

//go:embed lexicon.yaml
var lexiconYAML []byte

// lexiconEntry is one built-in category profile. Keywords match as
// case-insensitive substrings; merchants match against the merchant name
// only. LargeAmounts marks categories that typically carry large postings.
type lexiconEntry struct {
	Name         string   `yaml:"name"`
	Keywords     []string `yaml:"keywords"`
	Merchants    []string `yaml:"merchants"`
	LargeAmounts bool     `yaml:"large_amounts"`
}

type lexiconFile struct {
	Expense []lexiconEntry `yaml:"expense"`
	Income  []lexiconEntry `yaml:"income"`
}

// lexicon indexes the built-in entries by (type, normalized category name).
type lexicon struct {
	entries map[domain.TransactionType]map[string]lexiconEntry
}

func loadLexicon(raw []byte) (*lexicon, error) {
	var file lexiconFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("loadLexicon: parsing lexicon: %w", err)
	}

	lex := &lexicon{entries: map[domain.TransactionType]map[string]lexiconEntry{
		domain.TypeExpense: make(map[string]lexiconEntry, len(file.Expense)),
		domain.TypeIncome:  make(map[string]lexiconEntry, len(file.Income)),
	}}
	for _, e := range file.Expense {
		lex.entries[domain.TypeExpense][normalizeName(e.Name)] = e
	}
	for _, e := range file.Income {
		lex.entries[domain.TypeIncome][normalizeName(e.Name)] = e
	}
	return lex, nil
}

// lookup returns the built-in entry for a user category, matched by
// normalized name.
func (l *lexicon) lookup(txType domain.TransactionType, categoryName string) (lexiconEntry, bool) {
	byName, ok := l.entries[txType]
	if !ok {
		return lexiconEntry{}, false
	}
	e, ok := byName[normalizeName(categoryName)]
	return e, ok
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
