package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/saturn/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_Ping(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`SELECT 1`).WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS scored_requests`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveResults(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectCopyFrom(pgx.Identifier{"scored_requests"}, resultColumns).WillReturnResult(2)

	err := s.SaveResults(context.Background(), []model.ScoredRequest{
		scored("b1", "B1", "A1", okResult, now),
		scored("b1", "B1", "A2", failureResult, now),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveResults_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"scored_requests"}, resultColumns).
		WillReturnError(errors.New("connection reset"))

	err := s.SaveResults(context.Background(), []model.ScoredRequest{
		scored("", "B1", "A1", okResult, time.Now()),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save results")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveResults_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	require.NoError(t, s.SaveResults(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListResults(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows(resultColumns).AddRow(
		"r1", "b1", "B1", "A1",
		"calibrated", "", "", "",
		0.01, -1.0, 0.01, 1.2,
		"ok", "", false, true,
		created,
	)
	mock.ExpectQuery(`SELECT id, batch_id, .* FROM scored_requests WHERE batch_id = \$1 AND brand_id = \$2 ORDER BY created_at DESC, id LIMIT \$3`).
		WithArgs("b1", "B1", DefaultListLimit).
		WillReturnRows(rows)

	out, err := s.ListResults(context.Background(), ResultFilter{BatchID: "b1", BrandID: "B1"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "r1", out[0].ID)
	assert.Equal(t, model.ShapeCalibrated, out[0].Request.Shape)
	assert.Equal(t, model.StatusOK, out[0].Result.Status)
	assert.True(t, out[0].Result.Cached)
	assert.Equal(t, 1.2, out[0].Result.Multiplier)
	assert.Equal(t, created, out[0].CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListResults_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .* FROM scored_requests`).WillReturnError(errors.New("boom"))

	_, err := s.ListResults(context.Background(), ResultFilter{Limit: 5, Offset: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list results")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Summarize(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)SELECT\s+COUNT\(\*\).*FROM scored_requests WHERE created_at >= \$1`).
		WithArgs(since).
		WillReturnRows(pgxmock.NewRows([]string{"total", "ok", "errors", "pass_through", "cached", "mean"}).
			AddRow(10, 8, 2, 1, 3, 1.1))

	sum, err := s.Summarize(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 10, OK: 8, Errors: 2, PassThrough: 1, Cached: 3, MeanMultiplier: 1.1}, *sum)
	assert.InDelta(t, 0.2, sum.ErrorRate(), 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Close(t *testing.T) {
	closed := false
	s := &PostgresStore{closeFn: func() { closed = true }}
	require.NoError(t, s.Close())
	assert.True(t, closed)

	assert.NoError(t, (&PostgresStore{}).Close())
}
