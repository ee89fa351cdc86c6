package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/symptom2disease/internal/apperr"
	"github.com/Skufu/symptom2disease/internal/symptom"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestReadParsesCells(t *testing.T) {
	in := "\ufeffSymptoms, Disease ,itching\n\"fever, cough\",Flu,1\nheadache\n"
	tbl, err := Read(strings.NewReader(in), "x.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"Symptoms", "Disease", "itching"}, tbl.Columns)
	require.Len(t, tbl.Records, 2)

	first := tbl.Records[0]
	v, ok := first.Get("Symptoms")
	require.True(t, ok)
	s, _ := v.Str()
	assert.Equal(t, "fever, cough", s)
	v, _ = first.Get("itching")
	assert.Equal(t, symptom.KindNumber, v.Kind())

	second := tbl.Records[1]
	require.Len(t, second, 3)
	v, _ = second.Get("Disease")
	assert.True(t, v.IsNull())
}

func TestReadTSV(t *testing.T) {
	tbl, err := Read(strings.NewReader("symptom\tdisease\nrunny nose\tCold\n"), "data.TSV")
	require.NoError(t, err)
	assert.Equal(t, []string{"symptom", "disease"}, tbl.Columns)
	require.Len(t, tbl.Records, 1)
}

func TestReadRejectsEmpty(t *testing.T) {
	_, err := Read(strings.NewReader(""), "x.csv")
	assert.Error(t, err)
	_, err = Read(strings.NewReader("symptoms,disease\n"), "x.csv")
	assert.Error(t, err)
}

func TestDiscoverPicksFirstReadable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, CleanedFileName, "symptoms,disease\nfever,Flu\n")
	writeFile(t, dir, "a_header_only.csv", "symptoms,disease\n")
	writeFile(t, dir, "b_notes.txt", "fever,Flu\n")
	writeFile(t, dir, "d_symptoms.tsv", "symptoms\tdisease\ncough\tCold\n")
	writeFile(t, dir, "e_later.csv", "symptoms,disease\nrash,Measles\n")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "a_dir.csv"), 0o755))

	tbl, err := Discover(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "d_symptoms.tsv"), tbl.Path)
	require.Len(t, tbl.Records, 1)
}

func TestDiscoverNothingUsable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.csv", "")

	_, err := Discover(dir, nil)
	assert.True(t, apperr.Is(err, apperr.KindInput))

	_, err = Discover(filepath.Join(dir, "missing"), nil)
	assert.Error(t, err)
}

func TestCleanedTableRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", CleanedFileName)
	examples := []symptom.CleanedExample{
		{Symptoms: []string{"cough", "fever"}, Disease: "Flu"},
		{Symptoms: []string{"runny_nose"}, Disease: "Common Cold"},
	}
	require.NoError(t, WriteCleaned(path, examples))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "symptoms,disease\ncough|fever,Flu\nrunny_nose,Common Cold\n", string(raw))

	tbl, err := ReadFile(path)
	require.NoError(t, err)
	res, err := symptom.NewBuilder(nil).Build(tbl.Columns, tbl.Records)
	require.NoError(t, err)
	assert.Equal(t, examples, res.Examples)
	assert.Equal(t, 2, res.Report.Kept)
}
