// Package model holds the probabilistic classifiers that map feature vectors
// to disease classes, together with their training diagnostics.
package model

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Skufu/symptom2disease/internal/features"
)

const (
	KindForest     = "random_forest"
	KindNaiveBayes = "bernoulli_nb"
)

// Classifier is a fitted model. Implementations are immutable and safe for
// concurrent PredictProba calls.
type Classifier interface {
	Kind() string
	NumFeatures() int
	NumClasses() int
	// PredictProba returns one probability per class index, summing to 1.
	PredictProba(x features.Vector) []float64
}

// Trainer fits a Classifier.
type Trainer interface {
	Fit(ctx context.Context, X []features.Vector, y []int, numClasses int) (Classifier, error)
}

// Options selects and configures a trainer.
type Options struct {
	Kind   string
	Forest ForestConfig
	Alpha  float64
}

// NewTrainer returns the trainer for opts.Kind; empty means random forest.
func NewTrainer(opts Options) (Trainer, error) {
	switch opts.Kind {
	case "", KindForest:
		return &ForestTrainer{Config: opts.Forest}, nil
	case KindNaiveBayes:
		return &NaiveBayesTrainer{Alpha: opts.Alpha}, nil
	default:
		return nil, fmt.Errorf("unknown model kind %q", opts.Kind)
	}
}

// Envelope is the persisted form of a Classifier.
type Envelope struct {
	Kind   string          `json:"kind"`
	Params json.RawMessage `json:"params"`
}

var decoders = map[string]func(json.RawMessage) (Classifier, error){
	KindForest: func(raw json.RawMessage) (Classifier, error) {
		var f Forest
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, err
		}
		return &f, f.validate()
	},
	KindNaiveBayes: func(raw json.RawMessage) (Classifier, error) {
		var nb NaiveBayes
		if err := json.Unmarshal(raw, &nb); err != nil {
			return nil, err
		}
		return &nb, nb.validate()
	},
}

// Marshal wraps c in an Envelope.
func Marshal(c Classifier) (Envelope, error) {
	params, err := json.Marshal(c)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", c.Kind(), err)
	}
	return Envelope{Kind: c.Kind(), Params: params}, nil
}

// Unmarshal restores a Classifier from its Envelope.
func Unmarshal(env Envelope) (Classifier, error) {
	decode, ok := decoders[env.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown model kind %q", env.Kind)
	}
	c, err := decode(env.Params)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Kind, err)
	}
	return c, nil
}

// TopIndices returns the k class indices with the highest probability,
// highest first. Equal probabilities keep class index order.
func TopIndices(probs []float64, k int) []int {
	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return probs[idx[a]] > probs[idx[b]]
	})
	if k < len(idx) {
		idx = idx[:k]
	}
	return idx
}

func checkTrainingSet(X []features.Vector, y []int, numClasses int) (int, error) {
	if len(X) == 0 {
		return 0, fmt.Errorf("no training samples")
	}
	if len(X) != len(y) {
		return 0, fmt.Errorf("%d samples but %d labels", len(X), len(y))
	}
	if numClasses < 1 {
		return 0, fmt.Errorf("need at least one class, got %d", numClasses)
	}
	width := len(X[0])
	for i, x := range X {
		if len(x) != width {
			return 0, fmt.Errorf("sample %d has %d features, want %d", i, len(x), width)
		}
		if y[i] < 0 || y[i] >= numClasses {
			return 0, fmt.Errorf("sample %d has class %d outside [0, %d)", i, y[i], numClasses)
		}
	}
	return width, nil
}

func normalizeInPlace(p []float64) {
	var sum float64
	for _, v := range p {
		sum += v
	}
	if sum <= 0 {
		for i := range p {
			p[i] = 1 / float64(len(p))
		}
		return
	}
	for i := range p {
		p[i] /= sum
	}
}
