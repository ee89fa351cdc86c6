package predict

import (
	"time"

	"github.com/Skufu/symptom2disease/internal/apperr"
	"github.com/Skufu/symptom2disease/internal/features"
	"github.com/Skufu/symptom2disease/internal/model"
	"github.com/Skufu/symptom2disease/internal/symptom"
)

// Bundle is the vocabulary, label index and classifier that were trained
// together. It is built once, validated, and then only read, so one Bundle
// can serve concurrent requests without locking.
type Bundle struct {
	version    string
	createdAt  time.Time
	vocabulary *symptom.Vocabulary
	labels     *features.LabelIndex
	classifier model.Classifier
	rewrites   []symptom.RewriteRule
	normalizer *symptom.Normalizer
}

// Meta identifies a bundle. Rewrites are the rewrite rules added to the
// default table at training time; serving must normalize with the same ones.
type Meta struct {
	Version   string
	CreatedAt time.Time
	Rewrites  []symptom.RewriteRule
}

// NewBundle checks that the three artifacts agree on feature width and class
// count. A mismatch is an ArtifactMismatchError: serving it would give
// silently wrong predictions.
func NewBundle(meta Meta, vocab *symptom.Vocabulary, labels *features.LabelIndex, c model.Classifier) (*Bundle, error) {
	if vocab == nil || labels == nil || c == nil {
		return nil, apperr.ArtifactMismatch("bundle %s is incomplete", meta.Version)
	}
	if c.NumFeatures() != vocab.Len() {
		return nil, apperr.ArtifactMismatch("bundle %s: vocabulary has %d symptoms but the model expects %d features",
			meta.Version, vocab.Len(), c.NumFeatures())
	}
	if c.NumClasses() != labels.Len() {
		return nil, apperr.ArtifactMismatch("bundle %s: label index has %d diseases but the model predicts %d classes",
			meta.Version, labels.Len(), c.NumClasses())
	}
	return &Bundle{
		version:    meta.Version,
		createdAt:  meta.CreatedAt,
		vocabulary: vocab,
		labels:     labels,
		classifier: c,
		rewrites:   meta.Rewrites,
		normalizer: symptom.NewNormalizer(meta.Rewrites...),
	}, nil
}

func (b *Bundle) Meta() Meta {
	return Meta{Version: b.version, CreatedAt: b.createdAt, Rewrites: b.rewrites}
}

func (b *Bundle) Vocabulary() *symptom.Vocabulary { return b.vocabulary }
func (b *Bundle) Labels() *features.LabelIndex    { return b.labels }
func (b *Bundle) Classifier() model.Classifier    { return b.classifier }

// Result is a ranked prediction plus the submitted symptoms the vocabulary
// does not know.
type Result struct {
	Predictions []Prediction `json:"top3_predictions"`
	Unknown     []string     `json:"unknown_symptoms"`
}

// Predict normalizes and encodes the submitted symptoms and ranks the top k
// diseases. An empty submission is an InputError and never reaches the model.
func (b *Bundle) Predict(symptoms []string, k int) (Result, error) {
	tokens := b.normalizer.NormalizeAll(symptoms)
	if len(tokens) == 0 {
		return Result{}, apperr.Input("no symptoms provided")
	}
	enc := features.Encode(tokens, b.vocabulary)
	ranked, err := Rank(b.classifier.PredictProba(enc.Vector), k, b.labels)
	if err != nil {
		return Result{}, apperr.Internal(err, "rank predictions")
	}
	unknown := enc.Unknown
	if unknown == nil {
		unknown = []string{}
	}
	return Result{Predictions: ranked, Unknown: unknown}, nil
}
