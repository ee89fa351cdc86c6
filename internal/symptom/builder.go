package symptom

import (
	"sort"
	"strings"

	"github.com/Skufu/symptom2disease/internal/apperr"
)

// DefaultMaxVocabulary caps the vocabulary when no limit is configured.
const DefaultMaxVocabulary = 2000

var diseaseFieldPriority = [][]string{
	{"disease", "diagnosis", "label", "diseases"},
	{"prognosis", "illness"},
}

// ResolveDiseaseField picks the label column for a whole dataset: the first
// primary candidate, then the first secondary one, else the last column.
func ResolveDiseaseField(columns []string) (string, error) {
	for _, candidates := range diseaseFieldPriority {
		for _, col := range columns {
			for _, cand := range candidates {
				if strings.EqualFold(col, cand) {
					return col, nil
				}
			}
		}
	}
	if len(columns) == 0 {
		return "", apperr.Input("dataset has no columns to take a disease label from")
	}
	return columns[len(columns)-1], nil
}

// CleanedExample is one usable training row.
type CleanedExample struct {
	Symptoms []string
	Disease  string
}

// Report counts what happened to the input rows.
type Report struct {
	DiseaseField   string
	Rows           int
	Kept           int
	MissingDisease int
	NoSymptoms     int
	Strategies     map[string]int
}

// Excluded is the number of dropped rows.
func (r Report) Excluded() int {
	return r.MissingDisease + r.NoSymptoms
}

// BuildResult is the output of Builder.Build.
type BuildResult struct {
	Vocabulary *Vocabulary
	Examples   []CleanedExample
	Report     Report
}

// Builder aggregates extracted symptoms into a cleaned table and a
// frequency-ranked vocabulary. Output depends only on its input order.
type Builder struct {
	Extractor     *Extractor
	MaxVocabulary int
}

// NewBuilder returns a builder with the default extractor and cap.
func NewBuilder(n *Normalizer) *Builder {
	return &Builder{Extractor: NewExtractor(n), MaxVocabulary: DefaultMaxVocabulary}
}

// Build cleans records. columns is the dataset header; when empty it is taken
// from the first record.
func (b *Builder) Build(columns []string, records []Record) (*BuildResult, error) {
	if len(columns) == 0 && len(records) > 0 {
		columns = records[0].Columns()
	}
	field, err := ResolveDiseaseField(columns)
	if err != nil {
		return nil, err
	}

	report := Report{DiseaseField: field, Rows: len(records), Strategies: map[string]int{}}
	counts := make(map[string]int)
	var order []string
	examples := make([]CleanedExample, 0, len(records))

	for _, row := range records {
		symptoms, strategy := b.Extractor.Extract(row)
		value, _ := row.Get(field)
		disease := strings.TrimSpace(value.String())
		if value.IsNull() || disease == "" {
			report.MissingDisease++
			continue
		}
		if len(symptoms) == 0 {
			report.NoSymptoms++
			continue
		}
		report.Strategies[strategy]++
		for _, s := range symptoms {
			if counts[s] == 0 {
				order = append(order, s)
			}
			counts[s]++
		}
		sorted := append([]string(nil), symptoms...)
		sort.Strings(sorted)
		examples = append(examples, CleanedExample{Symptoms: sorted, Disease: disease})
	}
	report.Kept = len(examples)
	if report.Kept == 0 {
		return nil, apperr.Input("no rows could be cleaned from %d input rows (disease field %q)", report.Rows, field)
	}

	vocab, err := NewVocabulary(rankTokens(order, counts, b.maxVocabulary()))
	if err != nil {
		return nil, err
	}
	return &BuildResult{Vocabulary: vocab, Examples: examples, Report: report}, nil
}

func (b *Builder) maxVocabulary() int {
	if b.MaxVocabulary <= 0 {
		return DefaultMaxVocabulary
	}
	return b.MaxVocabulary
}

// rankTokens orders by descending count; order breaks ties by first sighting.
func rankTokens(order []string, counts map[string]int, limit int) []string {
	ranked := append([]string(nil), order...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return counts[ranked[i]] > counts[ranked[j]]
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
