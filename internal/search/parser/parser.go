// Package parser turns raw query strings into executable query plans.
package parser

import (
	"sort"
	"strings"

	"github.com/studykit/qadex/internal/indexer/tokenizer"
)

// Mode controls how multiple query terms are combined.
type Mode string

const (
	// ModeAnd requires every term to match.
	ModeAnd Mode = "AND"
	// ModeOr matches entries containing any term.
	ModeOr Mode = "OR"
)

// QueryPlan is the normalised form of a search query.
type QueryPlan struct {
	Raw          string
	Terms        []string
	ExcludeTerms []string
	Mode         Mode
}

// IsEmpty reports whether the plan has no positive terms to search for.
func (p QueryPlan) IsEmpty() bool {
	return len(p.Terms) == 0
}

// Parse tokenises a raw query string into a QueryPlan. Terms prefixed with
// '-' become exclusions. The AND/OR mode is taken from an uppercase operator
// token in the query; the default is OR. Stopwords and short tokens are
// dropped during normalisation, so a plan may come back empty even for a
// non-blank query.
func Parse(raw string) QueryPlan {
	plan := QueryPlan{Raw: raw, Mode: ModeOr}

	seen := make(map[string]bool)
	excluded := make(map[string]bool)

	for _, field := range strings.Fields(raw) {
		switch field {
		case "AND":
			plan.Mode = ModeAnd
			continue
		case "OR":
			plan.Mode = ModeOr
			continue
		}

		exclude := false
		if strings.HasPrefix(field, "-") && len(field) > 1 {
			exclude = true
			field = field[1:]
		}

		for _, term := range tokenizer.Terms(field) {
			if exclude {
				if !excluded[term] {
					excluded[term] = true
					plan.ExcludeTerms = append(plan.ExcludeTerms, term)
				}
				continue
			}
			if !seen[term] {
				seen[term] = true
				plan.Terms = append(plan.Terms, term)
			}
		}
	}
	return plan
}

// Normalize returns a canonical string form of the plan, used for cache
// keys. Terms are already deduplicated in parse order; the canonical form
// sorts them so queries differing only in term order share a key.
func (p QueryPlan) Normalize() string {
	terms := append([]string(nil), p.Terms...)
	excludes := append([]string(nil), p.ExcludeTerms...)
	sort.Strings(terms)
	sort.Strings(excludes)

	var b strings.Builder
	b.WriteString(string(p.Mode))
	b.WriteByte('|')
	b.WriteString(strings.Join(terms, ","))
	b.WriteByte('|')
	b.WriteString(strings.Join(excludes, ","))
	return b.String()
}
