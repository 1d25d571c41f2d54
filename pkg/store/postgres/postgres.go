// Package postgres implements store.Store on PostgreSQL through pkg/database.
//
// Aggregate counts (items, likes, comments, followers) are computed in SQL on every
// read, and like/follow toggles are single statements, so concurrent toggles cannot
// double-count.
package postgres

import (
	"context"
	_ "embed"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Combine-Capital/lovetree/pkg/database"
	"github.com/Combine-Capital/lovetree/pkg/store"
)

//go:embed schema.sql
var schema string

// Store is a PostgreSQL store.Store.
type Store struct {
	db      database.TxRunner
	timeout time.Duration
	now     func() time.Time
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithQueryTimeout bounds every store call. Zero disables the bound.
func WithQueryTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store over db.
func New(db database.TxRunner, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate creates missing tables and upserts the stage reference data.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithTransaction(ctx, func(tx database.Transaction) error {
		if _, err := tx.Exec(ctx, schema); err != nil {
			return database.Classify(err, "schema", "")
		}
		for _, st := range store.DefaultStages {
			_, err := tx.Exec(ctx, upsertStageSQL, st.ID, st.Name, st.Description, st.Color, st.Position)
			if err != nil {
				return database.Classify(err, "stage", "")
			}
		}
		return nil
	})
}

const upsertStageSQL = `INSERT INTO stages (id, name, description, color, position)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description,
    color = EXCLUDED.color, position = EXCLUDED.position`

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) stamp() time.Time {
	return s.now().UTC()
}

// collect scans every row with scan and closes rows. The result is never nil.
func collect[T any](rows pgx.Rows, scan func(pgx.CollectableRow) (T, error)) ([]T, error) {
	out, err := pgx.CollectRows(rows, scan)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// likePattern escapes LIKE metacharacters and wraps q for a substring match.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}
