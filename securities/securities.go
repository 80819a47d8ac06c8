// Package securities maps statement-supplied security identifiers (tickers,
// CUSIPs, ISINs, free-text names) to the canonical commodity symbols known to
// the user's configuration.
package securities

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Security is a canonical instrument identity. Looked up from the configured
// table, never mutated. Multiple identifiers may resolve to the same Security.
type Security struct {
	Symbol   string
	CUSIP    string
	ISIN     string
	Name     string
	Currency string
}

// Table indexes securities by every identifier they are known under.
// Construct with NewTable; lookups are case-insensitive.
type Table struct {
	byID       map[string]Security
	securities []Security
}

// NewTable builds a table from the configured securities. Each security is
// indexed under its symbol, CUSIP, ISIN and display name. Conflicting
// identifiers (same identifier, different symbol) are rejected.
func NewTable(securities []Security) (*Table, error) {
	t := &Table{
		byID:       make(map[string]Security),
		securities: append([]Security(nil), securities...),
	}
	for _, sec := range securities {
		if sec.Symbol == "" {
			return nil, fmt.Errorf("security %q has no symbol", sec.Name)
		}
		for _, id := range []string{sec.Symbol, sec.CUSIP, sec.ISIN, sec.Name} {
			if id == "" {
				continue
			}
			key := normalizeIdentifier(id)
			if existing, ok := t.byID[key]; ok && existing.Symbol != sec.Symbol {
				return nil, fmt.Errorf("identifier %q maps to both %s and %s", id, existing.Symbol, sec.Symbol)
			}
			t.byID[key] = sec
		}
	}
	return t, nil
}

// Securities returns a copy of the configured securities.
func (t *Table) Securities() []Security {
	return append([]Security(nil), t.securities...)
}

// normalizeIdentifier folds an identifier for matching: unicode marks are
// stripped, the result lowercased and trimmed.
func normalizeIdentifier(id string) string {
	chain := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	normalized, _, err := transform.String(chain, id)
	if err != nil {
		normalized = id
	}
	return strings.ToLower(strings.TrimSpace(normalized))
}

// UnresolvedError reports an identifier that matched nothing in the table,
// even via substring fallback. It carries everything the user needs to extend
// their configuration; callers aggregate these into the diagnostics report
// instead of aborting.
type UnresolvedError struct {
	Identifier     string
	Name           string
	CurrencyHint   string
	PartialMatches []string
}

func (e *UnresolvedError) Error() string {
	if e.Name != "" && e.Name != e.Identifier {
		return fmt.Sprintf("unresolved security %q (%s)", e.Identifier, e.Name)
	}
	return fmt.Sprintf("unresolved security %q", e.Identifier)
}

// Resolver resolves statement identifiers against a Table.
type Resolver struct {
	table *Table
}

// NewResolver creates a resolver over the given table.
func NewResolver(table *Table) *Resolver {
	return &Resolver{table: table}
}

// Resolve maps an identifier to a Security. Exact matches always win over
// substring matches, even when a substring candidate is lexically longer;
// partial matches must never shadow a correct identifier. When no exact match
// exists, identifier and fallbackName are matched case-insensitively as
// substrings of known identifiers and names, preferring the longest matching
// candidate. Ties between equally long candidates are not silently broken:
// the first in symbol order wins and all candidates are listed on the
// returned tie report.
//
// A failed resolution returns an *UnresolvedError; the resolver itself never
// logs or aborts.
func (r *Resolver) Resolve(identifier, fallbackName string) (Security, *Tie, error) {
	if exact, ok := r.lookupExact(identifier); ok {
		return exact, nil, nil
	}
	if exact, ok := r.lookupExact(fallbackName); ok {
		return exact, nil, nil
	}

	candidates := r.substringCandidates(identifier, fallbackName)
	if len(candidates) == 0 {
		return Security{}, nil, &UnresolvedError{
			Identifier:     identifier,
			Name:           fallbackName,
			PartialMatches: r.nearMatches(identifier, fallbackName),
		}
	}

	best := candidates[0]
	var tied []string
	for _, c := range candidates[1:] {
		if len(c.matched) == len(best.matched) && c.security.Symbol != best.security.Symbol {
			tied = append(tied, c.security.Symbol)
		}
	}
	if len(tied) > 0 {
		return best.security, &Tie{Identifier: identifier, Chosen: best.security.Symbol, Others: tied}, nil
	}
	return best.security, nil, nil
}

// Tie records a substring resolution that had multiple equally long
// candidates. The resolution still succeeds, but the tie is surfaced for
// user review.
type Tie struct {
	Identifier string
	Chosen     string
	Others     []string
}

func (r *Resolver) lookupExact(id string) (Security, bool) {
	if id == "" {
		return Security{}, false
	}
	sec, ok := r.table.byID[normalizeIdentifier(id)]
	return sec, ok
}

type candidate struct {
	security Security
	matched  string
}

// substringCandidates returns securities whose identifiers contain, or are
// contained in, the statement identifier or fallback name. Sorted longest
// match first, then by symbol for determinism.
func (r *Resolver) substringCandidates(identifier, fallbackName string) []candidate {
	probes := make([]string, 0, 2)
	for _, p := range []string{identifier, fallbackName} {
		if n := normalizeIdentifier(p); n != "" {
			probes = append(probes, n)
		}
	}

	seen := make(map[string]candidate)
	for id, sec := range r.table.byID {
		for _, probe := range probes {
			if !strings.Contains(id, probe) && !strings.Contains(probe, id) {
				continue
			}
			matched := id
			if len(probe) < len(matched) {
				matched = probe
			}
			if prev, ok := seen[sec.Symbol]; !ok || len(matched) > len(prev.matched) {
				seen[sec.Symbol] = candidate{security: sec, matched: matched}
			}
		}
	}

	candidates := make([]candidate, 0, len(seen))
	for _, c := range seen {
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if len(candidates[i].matched) != len(candidates[j].matched) {
			return len(candidates[i].matched) > len(candidates[j].matched)
		}
		return candidates[i].security.Symbol < candidates[j].security.Symbol
	})
	return candidates
}

// nearMatches lists configured symbols sharing a 3-character prefix with the
// failed identifier, to make the unresolved report actionable.
func (r *Resolver) nearMatches(identifier, fallbackName string) []string {
	var matches []string
	for _, probe := range []string{identifier, fallbackName} {
		n := normalizeIdentifier(probe)
		if len(n) < 3 {
			continue
		}
		for _, sec := range r.table.securities {
			if strings.HasPrefix(normalizeIdentifier(sec.Symbol), n[:3]) {
				matches = append(matches, sec.Symbol)
			}
		}
	}
	sort.Strings(matches)
	return dedupeStrings(matches)
}

func dedupeStrings(in []string) []string {
	out := in[:0]
	var last string
	for i, s := range in {
		if i == 0 || s != last {
			out = append(out, s)
		}
		last = s
	}
	return out
}
