package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/saturn/internal/store"
)

// MetricsSnapshot holds a point-in-time view of scoring health.
type MetricsSnapshot struct {
	// Scored requests within the lookback window.
	Total           int     `json:"total"`
	OK              int     `json:"ok"`
	Errors          int     `json:"errors"`
	PassThrough     int     `json:"pass_through"`
	Cached          int     `json:"cached"`
	ErrorRate       float64 `json:"error_rate"`
	PassThroughRate float64 `json:"pass_through_rate"`
	MeanMultiplier  float64 `json:"mean_multiplier"`

	// Live engine state, when a source is attached.
	ModelID      string `json:"model_id,omitempty"`
	CacheEntries int    `json:"cache_entries"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Summarizer abstracts the store aggregate the collector needs.
type Summarizer interface {
	Summarize(ctx context.Context, since time.Time) (*store.Summary, error)
}

// EngineStats exposes live engine state. *svr.Engine satisfies it.
type EngineStats interface {
	ModelID() string
	CacheLen() int
}

// Collector gathers metrics from the store and, optionally, a live engine.
type Collector struct {
	store  Summarizer
	engine EngineStats
}

// NewCollector creates a new metrics collector. engine may be nil.
func NewCollector(st Summarizer, engine EngineStats) *Collector {
	return &Collector{store: st, engine: engine}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := time.Now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)
	sum, err := c.store.Summarize(ctx, cutoff)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: summarize results")
	}

	snap.Total = sum.Total
	snap.OK = sum.OK
	snap.Errors = sum.Errors
	snap.PassThrough = sum.PassThrough
	snap.Cached = sum.Cached
	snap.MeanMultiplier = sum.MeanMultiplier
	snap.ErrorRate = sum.ErrorRate()
	if sum.Total > 0 {
		snap.PassThroughRate = float64(sum.PassThrough) / float64(sum.Total)
	}

	if c.engine != nil {
		snap.ModelID = c.engine.ModelID()
		snap.CacheEntries = c.engine.CacheLen()
	}
	return snap, nil
}
