package artifact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/symptom2disease/internal/apperr"
	"github.com/Skufu/symptom2disease/internal/features"
	"github.com/Skufu/symptom2disease/internal/model"
	"github.com/Skufu/symptom2disease/internal/predict"
	"github.com/Skufu/symptom2disease/internal/symptom"
)

func testBundle(t *testing.T) *predict.Bundle {
	t.Helper()
	vocab, err := symptom.NewVocabulary([]string{"fever", "cough", "rash"})
	require.NoError(t, err)
	labels := features.FitLabels([]string{"Flu", "Measles", "Cold"})
	X := []features.Vector{{1, 1, 0}, {1, 0, 1}, {0, 1, 0}, {1, 1, 0}, {0, 0, 1}, {0, 1, 0}}
	y := []int{1, 2, 0, 1, 2, 0}
	c, err := (&model.NaiveBayesTrainer{}).Fit(context.Background(), X, y, 3)
	require.NoError(t, err)
	b, err := predict.NewBundle(NewMeta([]symptom.RewriteRule{{From: "tummy ache", To: "stomach_pain"}}), vocab, labels, c)
	require.NoError(t, err)
	return b
}

func assertSameBundle(t *testing.T, want, got *predict.Bundle) {
	t.Helper()
	assert.Equal(t, want.Meta().Version, got.Meta().Version)
	assert.True(t, want.Meta().CreatedAt.Equal(got.Meta().CreatedAt))
	assert.Equal(t, want.Meta().Rewrites, got.Meta().Rewrites)
	assert.Equal(t, want.Vocabulary().Tokens(), got.Vocabulary().Tokens())
	assert.Equal(t, want.Labels().Classes(), got.Labels().Classes())

	in := []string{"fever", "cough"}
	a, err := want.Predict(in, 3)
	require.NoError(t, err)
	b, err := got.Predict(in, 3)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFileStoreRoundTrip(t *testing.T) {
	b := testBundle(t)
	store := NewFileStore(filepath.Join(t.TempDir(), "artifacts"))

	m, err := store.Save(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, b.Meta().Version, m.Version)
	assert.Equal(t, model.KindNaiveBayes, m.ModelKind)
	assert.Equal(t, 3, m.Features)
	assert.Equal(t, 3, m.Classes)

	for _, name := range []string{ManifestFile, VocabularyFile, LabelsFile, ModelFile} {
		assert.FileExists(t, filepath.Join(store.Dir, name))
	}

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assertSameBundle(t, b, loaded)
}

func TestFileStoreRejectsMixedVersions(t *testing.T) {
	ctx := context.Background()
	older := NewFileStore(t.TempDir())
	newer := NewFileStore(t.TempDir())
	_, err := older.Save(ctx, testBundle(t))
	require.NoError(t, err)
	_, err = newer.Save(ctx, testBundle(t))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(newer.Dir, ModelFile))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(older.Dir, ModelFile), data, 0o644))

	_, err = older.Load(ctx)
	assert.True(t, apperr.Is(err, apperr.KindArtifactMismatch))
}

func TestFileStoreMissing(t *testing.T) {
	_, err := NewFileStore(filepath.Join(t.TempDir(), "nothing")).Load(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

type fakeRow struct {
	vals [][]byte
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.vals) {
		return errors.New("column count mismatch")
	}
	for i, d := range dest {
		*(d.(*[]byte)) = r.vals[i]
	}
	return nil
}

type fakeDB struct {
	sql  []string
	args [][]any
	row  fakeRow
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql = append(f.sql, sql)
	f.args = append(f.args, args)
	return pgconn.CommandTag{}, nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	f.sql = append(f.sql, sql)
	return f.row
}

func TestPgStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := &fakeDB{}
	store := &PgStore{db: db}
	require.NoError(t, store.Migrate(ctx))
	assert.Equal(t, createTable, db.sql[0])

	b := testBundle(t)
	_, err := store.Save(ctx, b)
	require.NoError(t, err)
	require.Len(t, db.args, 2)
	args := db.args[1]
	require.Len(t, args, 6)
	assert.Equal(t, b.Meta().Version, args[0])

	for _, a := range args[2:] {
		db.row.vals = append(db.row.vals, []byte(a.(string)))
	}
	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assertSameBundle(t, b, loaded)
}

func TestPgStoreEmpty(t *testing.T) {
	store := &PgStore{db: &fakeDB{row: fakeRow{err: pgx.ErrNoRows}}}
	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoBundle)
}
