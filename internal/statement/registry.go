package statement

import (
	"sort"
	"strings"
)

// Registry maps normalized bank-name hints onto parser strategies. Unknown
// hints fall back to the generic heuristic parser.
type Registry struct {
	parsers  map[string]Parser
	fallback Parser
}

// NewRegistry creates a registry pre-loaded with the supported dialects.
func NewRegistry() *Registry {
	r := &Registry{
		parsers:  make(map[string]Parser),
		fallback: NewGenericParser(),
	}
	r.Register("deutsche bank", NewDeutscheBankParser())
	r.Register("sparkasse", NewSparkasseParser())
	r.Register("n26", NewN26Parser())
	return r
}

// Register adds a strategy under a bank-name hint. Hints are matched
// case-insensitively and ignoring spaces and punctuation, so "Deutsche
// Bank", "deutsche-bank" and "DEUTSCHEBANK" all select the same strategy.
func (r *Registry) Register(hint string, p Parser) {
	r.parsers[normalizeHint(hint)] = p
}

// Get returns the strategy for the hint, or the generic fallback when the
// hint is unknown or empty.
func (r *Registry) Get(hint string) Parser {
	if p, ok := r.parsers[normalizeHint(hint)]; ok {
		return p
	}
	return r.fallback
}

// Supported lists the registered dialect hints, sorted.
func (r *Registry) Supported() []string {
	out := make([]string, 0, len(r.parsers))
	for hint := range r.parsers {
		out = append(out, hint)
	}
	sort.Strings(out)
	return out
}

func normalizeHint(hint string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(hint) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
