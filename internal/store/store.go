// Package store persists scored requests for auditing and monitoring.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/saturn/internal/model"
)

// ResultFilter specifies criteria for listing scored requests.
type ResultFilter struct {
	BatchID   string       `json:"batch_id,omitempty"`
	BrandID   string       `json:"brand_id,omitempty"`
	AdgroupID string       `json:"adgroup_id,omitempty"`
	Status    model.Status `json:"status,omitempty"`
	Since     time.Time    `json:"since,omitempty"`
	Limit     int          `json:"limit,omitempty"`
	Offset    int          `json:"offset,omitempty"`
}

// DefaultListLimit caps ListResults when the filter sets no limit.
const DefaultListLimit = 100

// Summary aggregates scored requests over a time window.
type Summary struct {
	Total          int     `json:"total"`
	OK             int     `json:"ok"`
	Errors         int     `json:"errors"`
	PassThrough    int     `json:"pass_through"`
	Cached         int     `json:"cached"`
	MeanMultiplier float64 `json:"mean_multiplier"`
}

// ErrorRate is Errors / Total, or 0 for an empty window.
func (s Summary) ErrorRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Errors) / float64(s.Total)
}

// Store defines the persistence interface for scored requests.
type Store interface {
	SaveResults(ctx context.Context, results []model.ScoredRequest) error
	ListResults(ctx context.Context, filter ResultFilter) ([]model.ScoredRequest, error)
	Summarize(ctx context.Context, since time.Time) (*Summary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// resultColumns is the column order for inserts and selects.
var resultColumns = []string{
	"id", "batch_id", "brand_id", "adgroup_id", "shape", "mode", "entity_id", "output",
	"observed_svr", "pacing", "score", "multiplier", "status", "message",
	"pass_through", "cached", "created_at",
}

func selectResults() string {
	return "SELECT " + strings.Join(resultColumns, ", ") + " FROM scored_requests"
}

// dialect captures how a backend spells placeholders and stores times.
type dialect struct {
	placeholder func(n int) string
	timeValue   func(t time.Time) any
}

var sqliteDialect = dialect{
	placeholder: func(int) string { return "?" },
	timeValue:   func(t time.Time) any { return formatTime(t) },
}

var postgresDialect = dialect{
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	timeValue:   func(t time.Time) any { return t.UTC() },
}

// where renders the filter predicates.
func (f ResultFilter) where(d dialect) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(clause, d.placeholder(len(args))))
	}
	if f.BatchID != "" {
		add("batch_id = %s", f.BatchID)
	}
	if f.BrandID != "" {
		add("brand_id = %s", f.BrandID)
	}
	if f.AdgroupID != "" {
		add("adgroup_id = %s", f.AdgroupID)
	}
	if f.Status != "" {
		add("status = %s", string(f.Status))
	}
	if !f.Since.IsZero() {
		add("created_at >= %s", d.timeValue(f.Since))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// listQuery builds the full ListResults query, newest first.
func (f ResultFilter) listQuery(d dialect) (string, []any) {
	where, args := f.where(d)
	query := selectResults() + where + " ORDER BY created_at DESC, id"

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	args = append(args, limit)
	query += " LIMIT " + d.placeholder(len(args))

	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += " OFFSET " + d.placeholder(len(args))
	}
	return query, args
}

// prepare fills in the ID and timestamp of rows that lack them.
func prepare(results []model.ScoredRequest) []model.ScoredRequest {
	now := time.Now().UTC()
	out := make([]model.ScoredRequest, len(results))
	for i, r := range results {
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		out[i] = r
	}
	return out
}

const summarySelect = `SELECT
	COUNT(*),
	COALESCE(SUM(CASE WHEN status = 'ok' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN pass_through THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN cached THEN 1 ELSE 0 END), 0),
	COALESCE(AVG(CASE WHEN status = 'ok' AND NOT pass_through THEN multiplier END), 0)
FROM scored_requests`

// sqliteTimeLayout is fixed width so stored timestamps sort as text.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

type scannable interface {
	Scan(dest ...any) error
}

// scanResult reads one row in resultColumns order. created is scanned by the
// caller-supplied target so each backend can decode its own time format.
func scanResult(row scannable, created any) (model.ScoredRequest, error) {
	var r model.ScoredRequest
	var shape, mode, output, status string
	err := row.Scan(
		&r.ID, &r.BatchID, &r.Request.BrandID, &r.Request.AdgroupID,
		&shape, &mode, &r.Request.EntityID, &output,
		&r.Request.Score, &r.Request.Pacing, &r.Result.Score, &r.Result.Multiplier,
		&status, &r.Result.Message, &r.Result.PassThrough, &r.Result.Cached,
		created,
	)
	r.Request.Shape = model.Shape(shape)
	r.Request.Mode = model.Mode(mode)
	r.Request.Output = model.Output(output)
	r.Result.Status = model.Status(status)
	return r, err
}

func resultRow(r model.ScoredRequest, created any) []any {
	return []any{
		r.ID, r.BatchID, r.Request.BrandID, r.Request.AdgroupID,
		string(r.Request.Shape), string(r.Request.Mode), r.Request.EntityID, string(r.Request.Output),
		r.Request.Score, r.Request.Pacing, r.Result.Score, r.Result.Multiplier,
		string(r.Result.Status), r.Result.Message, r.Result.PassThrough, r.Result.Cached,
		created,
	}
}
