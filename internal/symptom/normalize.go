// Package symptom turns heterogeneous symptom datasets into a canonical
// vocabulary: token normalization, schema-heuristic row extraction and
// frequency-ranked vocabulary building.
package symptom

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// RewriteRule replaces every occurrence of From with To.
type RewriteRule struct {
	From string `yaml:"from" json:"from" validate:"required"`
	To   string `yaml:"to" json:"to"`
}

// maxRewritePasses bounds the rewrite loop for user supplied tables.
const maxRewritePasses = 8

// DefaultRules returns the built-in rewrite table. Order matters.
func DefaultRules() []RewriteRule {
	return []RewriteRule{
		{From: "sore throat", To: "sore_throat"},
		{From: "shortness of breath", To: "shortness_of_breath"},
		{From: "runny nose", To: "runny_nose"},
		{From: "high fever", To: "fever"},
		{From: "feverish", To: "fever"},
	}
}

// Normalizer maps raw symptom text to SymptomTokens. It holds no state
// besides its rewrite table and is safe for concurrent use.
type Normalizer struct {
	rules []RewriteRule
}

// NewNormalizer builds a normalizer from the default table followed by extra.
func NewNormalizer(extra ...RewriteRule) *Normalizer {
	rules := append(DefaultRules(), extra...)
	n := &Normalizer{rules: make([]RewriteRule, 0, len(rules))}
	for _, r := range rules {
		from := fold(r.From)
		if from == "" {
			continue
		}
		n.rules = append(n.rules, RewriteRule{From: from, To: foldReplacement(r.To)})
	}
	return n
}

// Rules returns a copy of the active rewrite table.
func (n *Normalizer) Rules() []RewriteRule {
	out := make([]RewriteRule, len(n.rules))
	copy(out, n.rules)
	return out
}

var defaultNormalizer = NewNormalizer()

// Normalize uses the default rewrite table.
func Normalize(raw string) (string, bool) {
	return defaultNormalizer.Normalize(raw)
}

// Normalize returns the token for raw, or false when nothing survives.
// The result always matches ^[a-z0-9_]+$ and normalizing it again is a no-op.
func (n *Normalizer) Normalize(raw string) (string, bool) {
	s := fold(raw)
	if s == "" {
		return "", false
	}
	s = n.rewrite(s)
	s = strings.Join(strings.FieldsFunc(s, isWordSeparator), "_")
	if s == "" {
		return "", false
	}
	return s, true
}

// NormalizeValue normalizes string cells; any other kind yields false.
func (n *Normalizer) NormalizeValue(v Value) (string, bool) {
	s, ok := v.Str()
	if !ok {
		return "", false
	}
	return n.Normalize(s)
}

// NormalizeAll normalizes each entry, dropping the ones that vanish.
func (n *Normalizer) NormalizeAll(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if tok, ok := n.Normalize(r); ok {
			out = append(out, tok)
		}
	}
	return out
}

func (n *Normalizer) rewrite(s string) string {
	for pass := 0; pass < maxRewritePasses; pass++ {
		before := s
		for _, r := range n.rules {
			s = strings.ReplaceAll(s, r.From, r.To)
		}
		if s == before {
			break
		}
	}
	return s
}

// fold lowercases after NFKC, turns everything outside [a-z0-9] into
// spaces and collapses whitespace.
func fold(raw string) string {
	s := strings.ToLower(norm.NFKC.String(raw))
	s = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// foldReplacement is fold that keeps underscores, so a rule can join words.
func foldReplacement(raw string) string {
	s := strings.ToLower(norm.NFKC.String(raw))
	s = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func isWordSeparator(r rune) bool {
	return r == ' ' || r == '_'
}
