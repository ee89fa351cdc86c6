package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Skufu/symptom2disease/internal/symptom"
)

// WriteCleaned writes examples as a two column CSV: the sorted symptoms
// joined with "|" and the disease. The file is replaced atomically.
func WriteCleaned(path string, examples []symptom.CleanedExample) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cleaned dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".clean-*.csv")
	if err != nil {
		return fmt.Errorf("create cleaned file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write([]string{"symptoms", "disease"}); err != nil {
		tmp.Close()
		return fmt.Errorf("write cleaned header: %w", err)
	}
	for _, ex := range examples {
		if err := w.Write([]string{strings.Join(ex.Symptoms, "|"), ex.Disease}); err != nil {
			tmp.Close()
			return fmt.Errorf("write cleaned row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush cleaned table: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cleaned file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace cleaned table: %w", err)
	}
	return nil
}
