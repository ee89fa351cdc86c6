// Package artifact persists model bundles. The vocabulary, the label index
// and the classifier are always written and read together under one version.
package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Skufu/symptom2disease/internal/apperr"
	"github.com/Skufu/symptom2disease/internal/features"
	"github.com/Skufu/symptom2disease/internal/model"
	"github.com/Skufu/symptom2disease/internal/predict"
	"github.com/Skufu/symptom2disease/internal/symptom"
)

// Store saves and loads the current bundle.
type Store interface {
	Save(ctx context.Context, b *predict.Bundle) (Manifest, error)
	Load(ctx context.Context) (*predict.Bundle, error)
}

// Manifest describes a stored bundle.
type Manifest struct {
	Version   string                `json:"version"`
	CreatedAt time.Time             `json:"created_at"`
	ModelKind string                `json:"model_kind"`
	Features  int                   `json:"features"`
	Classes   int                   `json:"classes"`
	Rewrites  []symptom.RewriteRule `json:"rewrites,omitempty"`
}

// NewMeta returns bundle metadata with a fresh version.
func NewMeta(rewrites []symptom.RewriteRule) predict.Meta {
	return predict.Meta{
		Version:   uuid.NewString(),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Rewrites:  rewrites,
	}
}

type vocabularyPart struct {
	Version  string              `json:"version"`
	Symptoms *symptom.Vocabulary `json:"symptoms"`
}

type labelsPart struct {
	Version  string               `json:"version"`
	Diseases *features.LabelIndex `json:"diseases"`
}

type modelPart struct {
	Version string         `json:"version"`
	Model   model.Envelope `json:"model"`
}

// parts is the encoded form shared by every store.
type parts struct {
	Manifest   []byte
	Vocabulary []byte
	Labels     []byte
	Model      []byte
}

func encode(b *predict.Bundle) (Manifest, parts, error) {
	meta := b.Meta()
	if meta.Version == "" {
		return Manifest{}, parts{}, fmt.Errorf("bundle has no version")
	}
	m := Manifest{
		Version:   meta.Version,
		CreatedAt: meta.CreatedAt,
		ModelKind: b.Classifier().Kind(),
		Features:  b.Vocabulary().Len(),
		Classes:   b.Labels().Len(),
		Rewrites:  meta.Rewrites,
	}
	env, err := model.Marshal(b.Classifier())
	if err != nil {
		return Manifest{}, parts{}, err
	}

	var p parts
	if p.Vocabulary, err = json.Marshal(vocabularyPart{Version: m.Version, Symptoms: b.Vocabulary()}); err != nil {
		return Manifest{}, parts{}, fmt.Errorf("encode vocabulary: %w", err)
	}
	if p.Labels, err = json.Marshal(labelsPart{Version: m.Version, Diseases: b.Labels()}); err != nil {
		return Manifest{}, parts{}, fmt.Errorf("encode labels: %w", err)
	}
	if p.Model, err = json.Marshal(modelPart{Version: m.Version, Model: env}); err != nil {
		return Manifest{}, parts{}, fmt.Errorf("encode model: %w", err)
	}
	if p.Manifest, err = json.MarshalIndent(m, "", "  "); err != nil {
		return Manifest{}, parts{}, fmt.Errorf("encode manifest: %w", err)
	}
	return m, p, nil
}

// decode rebuilds a bundle and rejects parts from different versions.
func decode(p parts) (*predict.Bundle, error) {
	var m Manifest
	if err := json.Unmarshal(p.Manifest, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	var vp vocabularyPart
	if err := json.Unmarshal(p.Vocabulary, &vp); err != nil {
		return nil, fmt.Errorf("decode vocabulary: %w", err)
	}
	var lp labelsPart
	if err := json.Unmarshal(p.Labels, &lp); err != nil {
		return nil, fmt.Errorf("decode labels: %w", err)
	}
	var mp modelPart
	if err := json.Unmarshal(p.Model, &mp); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}

	versions := []struct{ name, version string }{
		{"vocabulary", vp.Version},
		{"labels", lp.Version},
		{"model", mp.Version},
	}
	for _, v := range versions {
		if v.version != m.Version {
			return nil, apperr.ArtifactMismatch("%s artifact has version %q, manifest has %q", v.name, v.version, m.Version)
		}
	}
	if vp.Symptoms == nil || lp.Diseases == nil {
		return nil, apperr.ArtifactMismatch("bundle %s is missing its vocabulary or labels", m.Version)
	}
	if vp.Symptoms.Len() != m.Features || lp.Diseases.Len() != m.Classes {
		return nil, apperr.ArtifactMismatch("bundle %s: manifest records %d symptoms and %d diseases, artifacts hold %d and %d",
			m.Version, m.Features, m.Classes, vp.Symptoms.Len(), lp.Diseases.Len())
	}

	c, err := model.Unmarshal(mp.Model)
	if err != nil {
		return nil, err
	}
	return predict.NewBundle(predict.Meta{Version: m.Version, CreatedAt: m.CreatedAt, Rewrites: m.Rewrites}, vp.Symptoms, lp.Diseases, c)
}
