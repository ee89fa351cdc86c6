// Package training runs the offline pipeline: clean a dataset, build the
// vocabulary and label index, fit a classifier and assemble a bundle.
package training

import (
	"context"
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"github.com/Skufu/symptom2disease/internal/artifact"
	"github.com/Skufu/symptom2disease/internal/config"
	"github.com/Skufu/symptom2disease/internal/dataset"
	"github.com/Skufu/symptom2disease/internal/features"
	"github.com/Skufu/symptom2disease/internal/model"
	"github.com/Skufu/symptom2disease/internal/predict"
	"github.com/Skufu/symptom2disease/internal/symptom"
)

// Pipeline trains one bundle from one table.
type Pipeline struct {
	Config config.Training
	Logger *zap.Logger
}

// Sample is a training row and what the fitted model predicts for it.
type Sample struct {
	Symptoms    []string
	Disease     string
	Predictions []predict.Prediction
}

// Result is everything a run produced.
type Result struct {
	Bundle     *predict.Bundle
	Build      *symptom.BuildResult
	Evaluation *model.Report // nil when nothing was held out
	TrainSize  int
	TestSize   int
	Samples    []Sample
}

func New(cfg config.Training, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{Config: cfg, Logger: logger}
}

// ModelOptions maps the training config onto trainer options.
func ModelOptions(cfg config.Training) model.Options {
	return model.Options{
		Kind: cfg.Model.Kind,
		Forest: model.ForestConfig{
			Trees:          cfg.Model.Trees,
			MaxDepth:       cfg.Model.MaxDepth,
			MinSamplesLeaf: cfg.Model.MinSamplesLeaf,
			Seed:           cfg.Seed,
			Workers:        cfg.Model.Workers,
		},
		Alpha: cfg.Model.Alpha,
	}
}

func (p *Pipeline) Run(ctx context.Context, table *dataset.Table) (*Result, error) {
	cfg := p.Config
	normalizer := symptom.NewNormalizer(cfg.ExtraRewrites...)
	builder := &symptom.Builder{Extractor: symptom.NewExtractor(normalizer), MaxVocabulary: cfg.MaxVocabulary}

	built, err := builder.Build(table.Columns, table.Records)
	if err != nil {
		return nil, err
	}
	rep := built.Report
	p.Logger.Info("dataset cleaned",
		zap.String("source", table.Path),
		zap.String("disease_field", rep.DiseaseField),
		zap.Int("rows", rep.Rows),
		zap.Int("kept", rep.Kept),
		zap.Int("missing_disease", rep.MissingDisease),
		zap.Int("no_symptoms", rep.NoSymptoms),
		zap.Any("strategies", rep.Strategies),
		zap.Int("vocabulary", built.Vocabulary.Len()),
	)

	sets := make([][]string, len(built.Examples))
	diseases := make([]string, len(built.Examples))
	for i, ex := range built.Examples {
		sets[i] = ex.Symptoms
		diseases[i] = ex.Disease
	}
	labels := features.FitLabels(diseases)
	y, err := labels.EncodeAll(diseases)
	if err != nil {
		return nil, fmt.Errorf("encode labels: %w", err)
	}
	X := features.EncodeAll(sets, built.Vocabulary)
	p.Logger.Info("feature matrix",
		zap.Int("samples", len(X)),
		zap.Int("features", built.Vocabulary.Len()),
		zap.Int("classes", labels.Len()),
	)

	trainIdx, testIdx := model.StratifiedSplit(y, cfg.TestFraction, cfg.Seed)
	Xtrain, ytrain := subset(X, y, trainIdx)
	Xtest, ytest := subset(X, y, testIdx)

	trainer, err := model.NewTrainer(ModelOptions(cfg))
	if err != nil {
		return nil, err
	}
	clf, err := trainer.Fit(ctx, Xtrain, ytrain, labels.Len())
	if err != nil {
		return nil, fmt.Errorf("fit %s: %w", cfg.Model.Kind, err)
	}
	p.Logger.Info("model fitted", zap.String("kind", clf.Kind()), zap.Int("train", len(trainIdx)), zap.Int("test", len(testIdx)))

	res := &Result{Build: built, TrainSize: len(trainIdx), TestSize: len(testIdx)}
	if len(testIdx) > 0 {
		report := model.Evaluate(clf, Xtest, ytest, labels.Classes(), cfg.TopKDiagnostic)
		res.Evaluation = &report
		p.Logger.Info("held-out evaluation",
			zap.Float64("accuracy", report.Accuracy),
			zap.Int("top_k", report.TopK),
			zap.Float64("top_k_accuracy", report.TopKAccuracy),
			zap.Float64("macro_f1", report.Macro.F1),
		)
	} else {
		p.Logger.Warn("no held-out rows, skipping evaluation")
	}

	bundle, err := predict.NewBundle(artifact.NewMeta(cfg.ExtraRewrites), built.Vocabulary, labels, clf)
	if err != nil {
		return nil, err
	}
	res.Bundle = bundle

	res.Samples, err = p.samples(bundle, built.Examples)
	if err != nil {
		return nil, err
	}
	for _, s := range res.Samples {
		var predicted string
		if len(s.Predictions) > 0 {
			predicted = s.Predictions[0].Disease
		}
		p.Logger.Info("sample prediction",
			zap.Strings("symptoms", s.Symptoms),
			zap.String("predicted", predicted),
			zap.String("actual", s.Disease),
		)
	}
	return res, nil
}

// samples predicts a seeded random pick of cleaned rows.
func (p *Pipeline) samples(b *predict.Bundle, examples []symptom.CleanedExample) ([]Sample, error) {
	n := p.Config.SamplePredictions
	if n > len(examples) {
		n = len(examples)
	}
	rng := rand.New(rand.NewSource(p.Config.Seed))
	out := make([]Sample, 0, n)
	for _, i := range rng.Perm(len(examples))[:n] {
		ex := examples[i]
		r, err := b.Predict(ex.Symptoms, p.Config.TopKDiagnostic)
		if err != nil {
			return nil, fmt.Errorf("sample prediction: %w", err)
		}
		out = append(out, Sample{Symptoms: ex.Symptoms, Disease: ex.Disease, Predictions: r.Predictions})
	}
	return out, nil
}

func subset(X []features.Vector, y []int, idx []int) ([]features.Vector, []int) {
	xs := make([]features.Vector, len(idx))
	ys := make([]int, len(idx))
	for i, j := range idx {
		xs[i] = X[j]
		ys[i] = y[j]
	}
	return xs, ys
}
