// Package features converts symptom sets into multi-hot vectors over a
// vocabulary and disease labels into dense class indices.
package features

import (
	"github.com/Skufu/symptom2disease/internal/symptom"
)

// Vector is a multi-hot feature vector. Bit i is 1 when vocabulary token i
// is present.
type Vector []uint8

// Encoding is the result of encoding one symptom set.
type Encoding struct {
	Vector Vector
	// Unknown lists the input tokens absent from the vocabulary, deduplicated,
	// in input order. They contribute nothing to Vector.
	Unknown []string
}

// Encode maps already normalized tokens onto vocab. The vector does not
// depend on the order of symptoms.
func Encode(symptoms []string, vocab *symptom.Vocabulary) Encoding {
	vec := make(Vector, vocab.Len())
	var unknown []string
	seen := make(map[string]struct{})
	for _, s := range symptoms {
		if i, ok := vocab.Index(s); ok {
			vec[i] = 1
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		unknown = append(unknown, s)
	}
	return Encoding{Vector: vec, Unknown: unknown}
}

// EncodeAll encodes a batch of symptom sets.
func EncodeAll(sets [][]string, vocab *symptom.Vocabulary) []Vector {
	out := make([]Vector, len(sets))
	for i, s := range sets {
		out[i] = Encode(s, vocab).Vector
	}
	return out
}

// Decode returns the tokens whose bits are set, in vocabulary order.
func Decode(vec Vector, vocab *symptom.Vocabulary) []string {
	var out []string
	for i, bit := range vec {
		if bit != 0 && i < vocab.Len() {
			out = append(out, vocab.Token(i))
		}
	}
	return out
}

// Active returns the indices of the set bits.
func (v Vector) Active() []int {
	var out []int
	for i, bit := range v {
		if bit != 0 {
			out = append(out, i)
		}
	}
	return out
}
