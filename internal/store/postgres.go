package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/saturn/internal/db"
	"github.com/sells-group/saturn/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS scored_requests (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	batch_id     TEXT NOT NULL DEFAULT '',
	brand_id     TEXT NOT NULL,
	adgroup_id   TEXT NOT NULL,
	shape        TEXT NOT NULL,
	mode         TEXT NOT NULL DEFAULT '',
	entity_id    TEXT NOT NULL DEFAULT '',
	output       TEXT NOT NULL DEFAULT '',
	observed_svr DOUBLE PRECISION NOT NULL,
	pacing       DOUBLE PRECISION NOT NULL,
	score        DOUBLE PRECISION NOT NULL,
	multiplier   DOUBLE PRECISION NOT NULL,
	status       TEXT NOT NULL,
	message      TEXT NOT NULL DEFAULT '',
	pass_through BOOLEAN NOT NULL DEFAULT false,
	cached       BOOLEAN NOT NULL DEFAULT false,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_scored_requests_created_at ON scored_requests(created_at);
CREATE INDEX IF NOT EXISTS idx_scored_requests_batch_id ON scored_requests(batch_id);
CREATE INDEX IF NOT EXISTS idx_scored_requests_adgroup ON scored_requests(brand_id, adgroup_id);
`

// Ping checks the pool can run a query.
func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SaveResults bulk-loads rows with COPY.
func (s *PostgresStore) SaveResults(ctx context.Context, results []model.ScoredRequest) error {
	if len(results) == 0 {
		return nil
	}
	prepared := prepare(results)
	rows := make([][]any, len(prepared))
	for i, r := range prepared {
		rows[i] = resultRow(r, postgresDialect.timeValue(r.CreatedAt))
	}
	_, err := db.CopyFrom(ctx, s.pool, "scored_requests", resultColumns, rows)
	return eris.Wrap(err, "postgres: save results")
}

// ListResults returns rows matching the filter, newest first.
func (s *PostgresStore) ListResults(ctx context.Context, filter ResultFilter) ([]model.ScoredRequest, error) {
	query, args := filter.listQuery(postgresDialect)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list results")
	}
	defer rows.Close()

	var out []model.ScoredRequest
	for rows.Next() {
		var created time.Time
		r, err := scanResult(rows, &created)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		r.CreatedAt = created.UTC()
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate results")
}

// Summarize aggregates rows created at or after since. A zero since covers
// the whole table.
func (s *PostgresStore) Summarize(ctx context.Context, since time.Time) (*Summary, error) {
	query := summarySelect
	var args []any
	if !since.IsZero() {
		query += " WHERE created_at >= $1"
		args = append(args, since.UTC())
	}

	var sum Summary
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&sum.Total, &sum.OK, &sum.Errors, &sum.PassThrough, &sum.Cached, &sum.MeanMultiplier,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: summarize")
	}
	return &sum, nil
}
