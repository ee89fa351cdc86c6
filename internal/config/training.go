package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Skufu/symptom2disease/internal/symptom"
)

// Training controls one training run.
type Training struct {
	MaxVocabulary     int                   `yaml:"max_vocabulary" validate:"min=1"`
	TestFraction      float64               `yaml:"test_fraction" validate:"gte=0,lt=1"`
	Seed              int64                 `yaml:"seed"`
	TopKDiagnostic    int                   `yaml:"top_k_diagnostic" validate:"min=1"`
	SamplePredictions int                   `yaml:"sample_predictions" validate:"gte=0"`
	Model             Model                 `yaml:"model"`
	ExtraRewrites     []symptom.RewriteRule `yaml:"extra_rewrites" validate:"dive"`
}

// Model selects the classifier. Forest fields are ignored by bernoulli_nb
// and Alpha by random_forest.
type Model struct {
	Kind           string  `yaml:"kind" validate:"oneof=random_forest bernoulli_nb"`
	Trees          int     `yaml:"trees" validate:"min=1,max=5000"`
	MaxDepth       int     `yaml:"max_depth" validate:"gte=0"`
	MinSamplesLeaf int     `yaml:"min_samples_leaf" validate:"min=1"`
	Workers        int     `yaml:"workers" validate:"gte=0"`
	Alpha          float64 `yaml:"alpha" validate:"gt=0"`
}

func DefaultTraining() Training {
	return Training{
		MaxVocabulary:     symptom.DefaultMaxVocabulary,
		TestFraction:      0.2,
		Seed:              42,
		TopKDiagnostic:    3,
		SamplePredictions: 3,
		Model: Model{
			Kind:           "random_forest",
			Trees:          300,
			MinSamplesLeaf: 1,
			Alpha:          1,
		},
	}
}

// LoadTraining overlays the YAML file at path on the defaults. An empty
// path means defaults only. Unknown keys are rejected.
func LoadTraining(path string) (*Training, error) {
	cfg := DefaultTraining()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open training config: %w", err)
		}
		defer f.Close()
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse training config %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (t *Training) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("invalid training config: %w", err)
	}
	return nil
}
