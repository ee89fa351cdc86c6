package symptom

import (
	"encoding/json"
	"fmt"
	"regexp"
)

var tokenPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// ValidToken reports whether tok is a well-formed SymptomToken.
func ValidToken(tok string) bool {
	return tokenPattern.MatchString(tok)
}

// Vocabulary is the ordered, deduplicated set of tokens the classifier
// knows about. Position i is feature column i. It is never mutated after
// construction.
type Vocabulary struct {
	tokens []string
	index  map[string]int
}

// NewVocabulary validates tokens and fixes their order.
func NewVocabulary(tokens []string) (*Vocabulary, error) {
	v := &Vocabulary{
		tokens: make([]string, len(tokens)),
		index:  make(map[string]int, len(tokens)),
	}
	for i, tok := range tokens {
		if !ValidToken(tok) {
			return nil, fmt.Errorf("vocabulary token %d %q is not normalized", i, tok)
		}
		if prev, dup := v.index[tok]; dup {
			return nil, fmt.Errorf("vocabulary token %q repeated at %d and %d", tok, prev, i)
		}
		v.tokens[i] = tok
		v.index[tok] = i
	}
	return v, nil
}

// Len is the feature width.
func (v *Vocabulary) Len() int {
	return len(v.tokens)
}

// Index returns the feature column of tok.
func (v *Vocabulary) Index(tok string) (int, bool) {
	i, ok := v.index[tok]
	return i, ok
}

// Token returns the token at column i.
func (v *Vocabulary) Token(i int) string {
	return v.tokens[i]
}

// Tokens returns a copy of the tokens in feature order.
func (v *Vocabulary) Tokens() []string {
	out := make([]string, len(v.tokens))
	copy(out, v.tokens)
	return out
}

func (v *Vocabulary) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.tokens)
}

func (v *Vocabulary) UnmarshalJSON(data []byte) error {
	var tokens []string
	if err := json.Unmarshal(data, &tokens); err != nil {
		return err
	}
	parsed, err := NewVocabulary(tokens)
	if err != nil {
		return err
	}
	*v = *parsed
	return nil
}
