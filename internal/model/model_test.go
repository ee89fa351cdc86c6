package model

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/symptom2disease/internal/features"
)

// toyData: class c always has feature c; features 3..5 are noise.
func toyData() ([]features.Vector, []int) {
	var X []features.Vector
	var y []int
	for i := 0; i < 30; i++ {
		c := i % 3
		x := make(features.Vector, 6)
		x[c] = 1
		x[3+(i/3)%3] = 1
		X = append(X, x)
		y = append(y, c)
	}
	return X, y
}

func argmax(p []float64) int {
	return TopIndices(p, 1)[0]
}

func sum(p []float64) float64 {
	var s float64
	for _, v := range p {
		s += v
	}
	return s
}

func trainers() map[string]Trainer {
	return map[string]Trainer{
		KindForest:     &ForestTrainer{Config: ForestConfig{Trees: 25, MaxFeatures: 6, Seed: 7, Workers: 3}},
		KindNaiveBayes: &NaiveBayesTrainer{},
	}
}

func TestClassifiersLearnToyProblem(t *testing.T) {
	X, y := toyData()
	for kind, trainer := range trainers() {
		t.Run(kind, func(t *testing.T) {
			c, err := trainer.Fit(context.Background(), X, y, 3)
			require.NoError(t, err)
			assert.Equal(t, kind, c.Kind())
			assert.Equal(t, 6, c.NumFeatures())
			assert.Equal(t, 3, c.NumClasses())

			for cl := 0; cl < 3; cl++ {
				x := make(features.Vector, 6)
				x[cl] = 1
				assert.Equal(t, cl, argmax(c.PredictProba(x)))
			}
			probes := append([]features.Vector{make(features.Vector, 6), {1, 1, 1, 1, 1, 1}}, X...)
			for _, x := range probes {
				p := c.PredictProba(x)
				require.Len(t, p, 3)
				assert.InDelta(t, 1.0, sum(p), 1e-6)
			}
		})
	}
}

func TestForestIsReproducibleAcrossWorkerCounts(t *testing.T) {
	X, y := toyData()
	fit := func(workers int) Classifier {
		c, err := (&ForestTrainer{Config: ForestConfig{Trees: 12, Seed: 42, Workers: workers}}).Fit(context.Background(), X, y, 3)
		require.NoError(t, err)
		return c
	}
	a, b := fit(1), fit(8)
	for _, x := range X {
		assert.Equal(t, a.PredictProba(x), b.PredictProba(x))
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	X, y := toyData()
	for kind, trainer := range trainers() {
		t.Run(kind, func(t *testing.T) {
			c, err := trainer.Fit(context.Background(), X, y, 3)
			require.NoError(t, err)

			env, err := Marshal(c)
			require.NoError(t, err)
			data, err := json.Marshal(env)
			require.NoError(t, err)

			var back Envelope
			require.NoError(t, json.Unmarshal(data, &back))
			restored, err := Unmarshal(back)
			require.NoError(t, err)

			for _, x := range X {
				assert.InDeltaSlice(t, c.PredictProba(x), restored.PredictProba(x), 1e-12)
			}
		})
	}
}

func TestUnmarshalRejectsBadEnvelopes(t *testing.T) {
	_, err := Unmarshal(Envelope{Kind: "gradient_boosting", Params: json.RawMessage(`{}`)})
	assert.Error(t, err)

	_, err = Unmarshal(Envelope{Kind: KindForest, Params: json.RawMessage(`{"features":2,"classes":2,"trees":[]}`)})
	assert.Error(t, err)

	_, err = Unmarshal(Envelope{Kind: KindForest, Params: json.RawMessage(`{"features":2,"classes":2,"trees":[{"nodes":[{"f":5,"l":1,"r":2}]}]}`)})
	assert.Error(t, err)

	_, err = Unmarshal(Envelope{Kind: KindNaiveBayes, Params: json.RawMessage(`{"features":2,"classes":1,"log_prior":[0],"log_present":[[0]],"log_absent":[[0]]}`)})
	assert.Error(t, err)
}

func TestFitValidatesInput(t *testing.T) {
	tr := &ForestTrainer{}
	ctx := context.Background()
	_, err := tr.Fit(ctx, nil, nil, 2)
	assert.Error(t, err)
	_, err = tr.Fit(ctx, []features.Vector{{1}, {0, 1}}, []int{0, 1}, 2)
	assert.Error(t, err)
	_, err = tr.Fit(ctx, []features.Vector{{1}}, []int{3}, 2)
	assert.Error(t, err)
	_, err = tr.Fit(ctx, []features.Vector{{1}}, []int{0, 1}, 2)
	assert.Error(t, err)
}

func TestFitHonorsCancellation(t *testing.T) {
	X, y := toyData()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&ForestTrainer{Config: ForestConfig{Trees: 4, Workers: 1}}).Fit(ctx, X, y, 3)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewTrainer(t *testing.T) {
	tr, err := NewTrainer(Options{})
	require.NoError(t, err)
	assert.IsType(t, &ForestTrainer{}, tr)

	tr, err = NewTrainer(Options{Kind: KindNaiveBayes, Alpha: 0.5})
	require.NoError(t, err)
	assert.Equal(t, &NaiveBayesTrainer{Alpha: 0.5}, tr)

	_, err = NewTrainer(Options{Kind: "svm"})
	assert.Error(t, err)
}

func TestTopIndices(t *testing.T) {
	assert.Equal(t, []int{1, 0, 2}, TopIndices([]float64{0.3, 0.5, 0.2}, 5))
	assert.Equal(t, []int{0, 2}, TopIndices([]float64{0.4, 0.2, 0.4}, 2))
	assert.Empty(t, TopIndices(nil, 3))
}

func TestStratifiedSplit(t *testing.T) {
	var y []int
	for i := 0; i < 50; i++ {
		y = append(y, 0)
	}
	for i := 0; i < 10; i++ {
		y = append(y, 1)
	}
	y = append(y, 2)

	train, test := StratifiedSplit(y, 0.2, 42)
	assert.Len(t, train, 49)
	assert.Len(t, test, 12)

	perClass := map[int]int{}
	for _, i := range test {
		perClass[y[i]]++
	}
	assert.Equal(t, map[int]int{0: 10, 1: 2}, perClass)

	train2, test2 := StratifiedSplit(y, 0.2, 42)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)

	seen := map[int]bool{}
	for _, i := range append(append([]int{}, train...), test...) {
		assert.False(t, seen[i])
		seen[i] = true
	}
	assert.Len(t, seen, len(y))
}

type fixedClassifier struct {
	probs map[int][]float64
}

func (f fixedClassifier) Kind() string     { return "fixed" }
func (f fixedClassifier) NumFeatures() int { return 1 }
func (f fixedClassifier) NumClasses() int  { return 3 }
func (f fixedClassifier) PredictProba(x features.Vector) []float64 {
	return f.probs[int(x[0])]
}

func TestEvaluate(t *testing.T) {
	c := fixedClassifier{probs: map[int][]float64{
		0: {0.7, 0.2, 0.1},
		1: {0.1, 0.3, 0.6},
		2: {0.2, 0.3, 0.5},
		3: {0.5, 0.1, 0.4},
	}}
	X := []features.Vector{{0}, {1}, {2}, {3}}
	y := []int{0, 1, 2, 1}

	r := Evaluate(c, X, y, []string{"Flu", "Cold", "Allergy"}, 2)
	assert.Equal(t, 4, r.Samples)
	assert.InDelta(t, 0.5, r.Accuracy, 1e-9)
	// sample 1 has class 1 second; sample 3 has class 1 outside the top 2.
	assert.InDelta(t, 0.75, r.TopKAccuracy, 1e-9)

	require.Len(t, r.Classes, 3)
	flu := r.Classes[0]
	assert.Equal(t, "Flu", flu.Label)
	assert.InDelta(t, 0.5, flu.Precision, 1e-9)
	assert.InDelta(t, 1.0, flu.Recall, 1e-9)
	cold := r.Classes[1]
	assert.Equal(t, 2, cold.Support)
	assert.Zero(t, cold.Precision)
	assert.Zero(t, cold.Recall)
	allergy := r.Classes[2]
	assert.InDelta(t, 0.5, allergy.Precision, 1e-9)
	assert.InDelta(t, 1.0, allergy.Recall, 1e-9)

	out := r.String()
	assert.True(t, strings.Contains(out, "Allergy"))
	assert.True(t, strings.Contains(out, "top-2 accuracy: 0.750"))
}
