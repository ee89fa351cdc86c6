// Package dataset finds and reads the tabular symptom datasets used for
// training and persists the cleaned table.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Skufu/symptom2disease/internal/apperr"
	"github.com/Skufu/symptom2disease/internal/symptom"
)

// CleanedFileName is the cleaned table written next to the raw datasets.
const CleanedFileName = "clean_data.csv"

// Table is a dataset read into schema-less records.
type Table struct {
	Path    string
	Columns []string
	Records []symptom.Record
}

// ReadFile reads a CSV or TSV file. The first line is the header; short rows
// are padded with nulls and surplus cells are ignored.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	return Read(f, path)
}

// Read parses delimited text from r; name picks the delimiter by extension.
func Read(r io.Reader, name string) (*Table, error) {
	reader := csv.NewReader(r)
	if strings.EqualFold(filepath.Ext(name), ".tsv") {
		reader.Comma = '\t'
	}
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: empty file", filepath.Base(name))
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", filepath.Base(name), err)
	}
	columns := make([]string, len(header))
	for i, cell := range header {
		columns[i] = cleanCell(cell)
	}

	t := &Table{Path: name, Columns: columns}
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s line %d: %w", filepath.Base(name), line, err)
		}
		rec := make(symptom.Record, len(columns))
		for i, col := range columns {
			v := symptom.NullValue()
			if i < len(row) {
				v = symptom.ParseCell(row[i])
			}
			rec[i] = symptom.Field{Name: col, Value: v}
		}
		t.Records = append(t.Records, rec)
	}
	if len(t.Records) == 0 {
		return nil, fmt.Errorf("%s: no data rows", filepath.Base(name))
	}
	return t, nil
}

// Discover returns the first .csv or .tsv file in dir, by name, that has at
// least one readable row. The cleaned table is skipped. Unreadable files are
// logged and passed over.
func Discover(dir string, logger *zap.Logger) (*Table, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list dataset dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !isTabular(e.Name()) || strings.EqualFold(e.Name(), CleanedFileName) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		t, err := ReadFile(path)
		if err != nil {
			logger.Warn("skipping unreadable dataset", zap.String("path", path), zap.Error(err))
			continue
		}
		logger.Info("dataset selected",
			zap.String("path", path),
			zap.Int("rows", len(t.Records)),
			zap.Strings("columns", t.Columns),
		)
		return t, nil
	}
	return nil, apperr.Input("no readable .csv or .tsv dataset in %s", dir)
}

func isTabular(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".tsv":
		return true
	}
	return false
}

func cleanCell(v string) string {
	v = strings.TrimPrefix(v, "\ufeff")
	return strings.TrimSpace(v)
}
