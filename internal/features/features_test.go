package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/symptom2disease/internal/symptom"
)

func vocab(t *testing.T, tokens ...string) *symptom.Vocabulary {
	t.Helper()
	v, err := symptom.NewVocabulary(tokens)
	require.NoError(t, err)
	return v
}

func TestEncodeNormalizedSymptoms(t *testing.T) {
	v := vocab(t, "fever", "cough", "sore_throat")
	tokens := symptom.NewNormalizer().NormalizeAll([]string{"Fever", "feverish", "Cough"})

	enc := Encode(tokens, v)
	assert.Equal(t, Vector{1, 1, 0}, enc.Vector)
	assert.Empty(t, enc.Unknown)
}

func TestEncodeIsOrderIndependentAndReportsUnknown(t *testing.T) {
	v := vocab(t, "fever", "cough", "sore_throat")
	a := Encode([]string{"sore_throat", "rash", "fever", "rash"}, v)
	b := Encode([]string{"fever", "sore_throat", "rash"}, v)

	assert.Equal(t, a.Vector, b.Vector)
	assert.Equal(t, Vector{1, 0, 1}, a.Vector)
	assert.Equal(t, []string{"rash"}, a.Unknown)
	assert.Equal(t, []int{0, 2}, a.Vector.Active())
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	v := vocab(t, "fever", "cough", "sore_throat", "nausea")
	sets := [][]string{
		{"fever", "chills"},
		{},
		{"nausea", "cough", "sore_throat", "fever"},
		{"unknown_one", "unknown_two"},
	}
	for _, s := range sets {
		enc := Encode(s, v)
		decoded := Decode(enc.Vector, v)

		var known []string
		for _, tok := range s {
			if _, ok := v.Index(tok); ok {
				known = append(known, tok)
			}
		}
		assert.Equal(t, Encode(known, v).Vector, Encode(decoded, v).Vector)
	}
}

func TestEncodeAll(t *testing.T) {
	v := vocab(t, "a", "b")
	out := EncodeAll([][]string{{"a"}, {"b", "z"}}, v)
	assert.Equal(t, []Vector{{1, 0}, {0, 1}}, out)
}

func TestLabelIndex(t *testing.T) {
	li := FitLabels([]string{"Flu", "Allergy", "Flu", "Common Cold"})
	assert.Equal(t, []string{"Allergy", "Common Cold", "Flu"}, li.Classes())
	assert.Equal(t, 3, li.Len())

	i, err := li.Encode("Flu")
	require.NoError(t, err)
	assert.Equal(t, 2, i)

	label, err := li.Decode(1)
	require.NoError(t, err)
	assert.Equal(t, "Common Cold", label)

	_, err = li.Encode("Measles")
	assert.Error(t, err)
	_, err = li.Decode(3)
	assert.Error(t, err)
	_, err = li.Decode(-1)
	assert.Error(t, err)

	ys, err := li.EncodeAll([]string{"Allergy", "Flu"})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, ys)
}

func TestLabelIndexJSON(t *testing.T) {
	li := FitLabels([]string{"b", "a"})
	data, err := li.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, string(data))

	var back LabelIndex
	require.NoError(t, back.UnmarshalJSON(data))
	assert.Equal(t, li.Classes(), back.Classes())
	assert.Error(t, back.UnmarshalJSON([]byte(`["a","a"]`)))
}
