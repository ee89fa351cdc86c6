package symptom

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	StrategyNamedField = "named_field"
	StrategyPresence   = "presence_columns"
	StrategyFreeText   = "free_text"
)

var (
	symptomFieldNames = map[string]struct{}{
		"symptoms": {}, "symptom": {}, "symptom_list": {}, "symptom(s)": {},
	}
	reservedColumns = map[string]struct{}{
		"disease": {}, "diagnosis": {}, "label": {}, "id": {},
	}
	presenceColumnPattern = regexp.MustCompile(`^[a-z0-9_ ]+$`)
)

const (
	maxPresenceColumnLen = 40
	minFreeTextLen       = 2
	maxFreeTextLen       = 500
	symptomDelimiters    = "|,;\n/"
)

// Strategy extracts symptom tokens from a row. A strategy that claims the
// row ends the search even when it found nothing.
type Strategy struct {
	Name    string
	Extract func(row Record, n *Normalizer) (tokens []string, claimed bool)
}

// DefaultStrategies returns named-field, presence-column and free-text
// extraction in priority order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: StrategyNamedField, Extract: namedField},
		{Name: StrategyPresence, Extract: presenceColumns},
		{Name: StrategyFreeText, Extract: freeText},
	}
}

// Extractor runs strategies in order and stops at the first one that claims
// the row or yields tokens.
type Extractor struct {
	Normalizer *Normalizer
	Strategies []Strategy
}

// NewExtractor returns an extractor with the default strategies.
func NewExtractor(n *Normalizer) *Extractor {
	if n == nil {
		n = defaultNormalizer
	}
	return &Extractor{Normalizer: n, Strategies: DefaultStrategies()}
}

// Extract returns the deduplicated tokens of row in first-seen order and the
// name of the strategy that produced them. An empty result means the row
// carries no usable symptoms.
func (e *Extractor) Extract(row Record) ([]string, string) {
	for _, s := range e.Strategies {
		tokens, claimed := s.Extract(row, e.Normalizer)
		tokens = dedupe(tokens)
		if len(tokens) > 0 || claimed {
			return tokens, s.Name
		}
	}
	return nil, ""
}

func namedField(row Record, n *Normalizer) ([]string, bool) {
	for _, f := range row {
		if _, ok := symptomFieldNames[strings.ToLower(f.Name)]; !ok {
			continue
		}
		s, ok := f.Value.Str()
		if !ok {
			return nil, true
		}
		if strings.ContainsAny(s, symptomDelimiters) {
			return n.NormalizeAll(splitSymptoms(s)), true
		}
		return n.NormalizeAll([]string{s}), true
	}
	return nil, false
}

func presenceColumns(row Record, n *Normalizer) ([]string, bool) {
	var out []string
	for _, f := range row {
		k := strings.ToLower(f.Name)
		if _, reserved := reservedColumns[k]; reserved {
			continue
		}
		if len(k) >= maxPresenceColumnLen || !presenceColumnPattern.MatchString(k) {
			continue
		}
		if !f.Value.Truthy() {
			continue
		}
		if tok, ok := n.Normalize(k); ok {
			out = append(out, tok)
		}
	}
	return out, false
}

func freeText(row Record, n *Normalizer) ([]string, bool) {
	var texts []string
	for _, f := range row {
		s, ok := f.Value.Str()
		if !ok {
			continue
		}
		if l := utf8.RuneCountInString(s); l > minFreeTextLen && l < maxFreeTextLen {
			texts = append(texts, s)
		}
	}
	if len(texts) == 0 {
		return nil, false
	}
	return n.NormalizeAll(splitSymptoms(strings.Join(texts, " | "))), false
}

func splitSymptoms(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(symptomDelimiters, r)
	})
}

func dedupe(tokens []string) []string {
	if len(tokens) < 2 {
		return tokens
	}
	seen := make(map[string]struct{}, len(tokens))
	out := tokens[:0]
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
