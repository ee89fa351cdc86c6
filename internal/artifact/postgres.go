package artifact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Skufu/symptom2disease/internal/predict"
)

const createTable = `CREATE TABLE IF NOT EXISTS model_bundles (
	version    TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	manifest   JSONB NOT NULL,
	vocabulary JSONB NOT NULL,
	labels     JSONB NOT NULL,
	model      JSONB NOT NULL
)`

const insertBundle = `INSERT INTO model_bundles (version, created_at, manifest, vocabulary, labels, model)
VALUES ($1, $2, $3, $4, $5, $6)`

const selectLatest = `SELECT manifest, vocabulary, labels, model
FROM model_bundles
ORDER BY created_at DESC, version DESC
LIMIT 1`

// ErrNoBundle is returned by Load when nothing has been saved yet.
var ErrNoBundle = errors.New("no model bundle stored")

// querier is the subset of *pgxpool.Pool the store needs.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgStore keeps every saved bundle as one row in model_bundles and loads the
// newest. A save is a single INSERT, so all three artifacts land together
// or not at all.
type PgStore struct {
	db querier
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{db: pool}
}

// Migrate creates the table when it is missing.
func (s *PgStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("create model_bundles: %w", err)
	}
	return nil
}

func (s *PgStore) Save(ctx context.Context, b *predict.Bundle) (Manifest, error) {
	m, p, err := encode(b)
	if err != nil {
		return Manifest{}, err
	}
	_, err = s.db.Exec(ctx, insertBundle,
		m.Version, m.CreatedAt,
		string(p.Manifest), string(p.Vocabulary), string(p.Labels), string(p.Model),
	)
	if err != nil {
		return Manifest{}, fmt.Errorf("insert bundle %s: %w", m.Version, err)
	}
	return m, nil
}

func (s *PgStore) Load(ctx context.Context) (*predict.Bundle, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var p parts
	err := s.db.QueryRow(ctx, selectLatest).Scan(&p.Manifest, &p.Vocabulary, &p.Labels, &p.Model)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoBundle
	}
	if err != nil {
		return nil, fmt.Errorf("select bundle: %w", err)
	}
	return decode(p)
}
