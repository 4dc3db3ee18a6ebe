package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/saturn/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS scored_requests (
	id           TEXT PRIMARY KEY,
	batch_id     TEXT NOT NULL DEFAULT '',
	brand_id     TEXT NOT NULL,
	adgroup_id   TEXT NOT NULL,
	shape        TEXT NOT NULL,
	mode         TEXT NOT NULL DEFAULT '',
	entity_id    TEXT NOT NULL DEFAULT '',
	output       TEXT NOT NULL DEFAULT '',
	observed_svr REAL NOT NULL,
	pacing       REAL NOT NULL,
	score        REAL NOT NULL,
	multiplier   REAL NOT NULL,
	status       TEXT NOT NULL,
	message      TEXT NOT NULL DEFAULT '',
	pass_through INTEGER NOT NULL DEFAULT 0,
	cached       INTEGER NOT NULL DEFAULT 0,
	created_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scored_requests_created_at ON scored_requests(created_at);
CREATE INDEX IF NOT EXISTS idx_scored_requests_batch_id ON scored_requests(batch_id);
CREATE INDEX IF NOT EXISTS idx_scored_requests_adgroup ON scored_requests(brand_id, adgroup_id);
`

// Migrate creates the schema if it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Ping checks the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveResults inserts all rows in one transaction.
func (s *SQLiteStore) SaveResults(ctx context.Context, results []model.ScoredRequest) error {
	if len(results) == 0 {
		return nil
	}
	rows := prepare(results)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(resultColumns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO scored_requests (%s) VALUES (%s)",
		strings.Join(resultColumns, ", "), placeholders,
	))
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, resultRow(r, formatTime(r.CreatedAt))...); err != nil {
			return eris.Wrapf(err, "sqlite: insert result %s", r.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit results")
}

// ListResults returns rows matching the filter, newest first.
func (s *SQLiteStore) ListResults(ctx context.Context, filter ResultFilter) ([]model.ScoredRequest, error) {
	query, args := filter.listQuery(sqliteDialect)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list results")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ScoredRequest
	for rows.Next() {
		var created string
		r, err := scanResult(rows, &created)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		r.CreatedAt, err = time.Parse(sqliteTimeLayout, created)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse created_at %q", created)
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate results")
}

// Summarize aggregates rows created at or after since. A zero since covers
// the whole table.
func (s *SQLiteStore) Summarize(ctx context.Context, since time.Time) (*Summary, error) {
	query := summarySelect
	var args []any
	if !since.IsZero() {
		query += " WHERE created_at >= ?"
		args = append(args, formatTime(since))
	}

	var sum Summary
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&sum.Total, &sum.OK, &sum.Errors, &sum.PassThrough, &sum.Cached, &sum.MeanMultiplier,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: summarize")
	}
	return &sum, nil
}
