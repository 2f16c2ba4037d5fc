// Package categorize assigns a spending category to a transaction
// from keywords found in its description.
package categorize

import (
	"regexp"
	"sort"
	"strings"
)

// FallbackCategory is assigned when no keyword matches.
const FallbackCategory = "autre"

// DefaultCategories is the built-in keyword table. The rules document
// can extend or replace it per run.
var DefaultCategories = map[string][]string{
	"salaire":        {"salaire", "payroll", "remuneration"},
	"loyer":          {"loyer", "rent"},
	"alimentation":   {"supermarche", "carrefour", "auchan", "leclerc", "alimentation", "epicerie", "boulangerie", "restaurant"},
	"transports":     {"sncf", "ratp", "uber", "taxi", "essence", "carburant", "autoroute"},
	"sante":          {"pharmacie", "medecin", "hopital", "mutuelle"},
	"divertissement": {"cinema", "netflix", "spotify", "concert", "loisir"},
}

// Classifier matches descriptions against precompiled keyword
// patterns. It is immutable after construction and safe for
// concurrent use.
type Classifier struct {
	categories []compiledCategory
}

type compiledCategory struct {
	name     string
	patterns []*regexp.Regexp
}

// New builds a Classifier from a category -> keywords table. A nil or
// empty table falls back to DefaultCategories. Categories are matched
// in sorted name order so classification is deterministic.
func New(table map[string][]string) *Classifier {
	if len(table) == 0 {
		table = DefaultCategories
	}

	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)

	c := &Classifier{categories: make([]compiledCategory, 0, len(names))}
	for _, name := range names {
		cat := compiledCategory{name: strings.ToLower(name)}
		for _, kw := range table[name] {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			cat.patterns = append(cat.patterns, regexp.MustCompile(`\b`+regexp.QuoteMeta(kw)+`\b`))
		}
		c.categories = append(c.categories, cat)
	}
	return c
}

// Classify returns the first category whose keywords appear in the
// description, or FallbackCategory.
func (c *Classifier) Classify(description string) string {
	if description == "" {
		return FallbackCategory
	}
	description = strings.ToLower(description)

	for _, cat := range c.categories {
		for _, p := range cat.patterns {
			if p.MatchString(description) {
				return cat.name
			}
		}
	}
	return FallbackCategory
}
