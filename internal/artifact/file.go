package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Skufu/symptom2disease/internal/predict"
)

const (
	ManifestFile   = "manifest.json"
	VocabularyFile = "vocabulary.json"
	LabelsFile     = "labels.json"
	ModelFile      = "model.json"
)

// FileStore keeps one bundle as JSON files in a directory. The manifest is
// written last, so a crashed save leaves the previous manifest pointing at
// a version the other files no longer carry and Load refuses it.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (s *FileStore) Save(ctx context.Context, b *predict.Bundle) (Manifest, error) {
	m, p, err := encode(b)
	if err != nil {
		return Manifest{}, err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return Manifest{}, fmt.Errorf("create artifact dir: %w", err)
	}
	writes := []struct {
		name string
		data []byte
	}{
		{VocabularyFile, p.Vocabulary},
		{LabelsFile, p.Labels},
		{ModelFile, p.Model},
		{ManifestFile, p.Manifest},
	}
	for _, w := range writes {
		if err := ctx.Err(); err != nil {
			return Manifest{}, err
		}
		if err := writeAtomic(filepath.Join(s.Dir, w.name), w.data); err != nil {
			return Manifest{}, err
		}
	}
	return m, nil
}

func (s *FileStore) Load(ctx context.Context) (*predict.Bundle, error) {
	var p parts
	reads := []struct {
		name string
		dst  *[]byte
	}{
		{ManifestFile, &p.Manifest},
		{VocabularyFile, &p.Vocabulary},
		{LabelsFile, &p.Labels},
		{ModelFile, &p.Model},
	}
	for _, r := range reads {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(s.Dir, r.name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", r.name, err)
		}
		*r.dst = data
	}
	return decode(p)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
