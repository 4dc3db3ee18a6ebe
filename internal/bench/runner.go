package bench

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/saturn/internal/model"
)

// Engine is the part of *svr.Engine the benchmark drives.
type Engine interface {
	Run(req model.Request) (model.Result, error)
	HasModel(adgroupID string) bool
}

// Options tunes a benchmark run.
type Options struct {
	Workers int
	QPS     float64 // requests per second; 0 means unthrottled
	Pacing  float64 // sent as is; model.NoPacing for none
}

// Report summarizes a benchmark run.
type Report struct {
	Requests    int           `json:"requests"`
	ModelCalls  int           `json:"model_calls"`
	Errors      int           `json:"errors"`
	PassThrough int           `json:"pass_through"`
	Elapsed     time.Duration `json:"elapsed"`
	FirstError  string        `json:"first_error,omitempty"`
}

// Seconds is the total wall time.
func (r *Report) Seconds() float64 { return r.Elapsed.Seconds() }

// QPS is requests per second.
func (r *Report) QPS() float64 { return rateOf(r.Requests, r.Elapsed) }

// CallQPS is model calls per second.
func (r *Report) CallQPS() float64 { return rateOf(r.ModelCalls, r.Elapsed) }

// LatencyMS is the mean wall time per request in milliseconds.
func (r *Report) LatencyMS() float64 { return latencyOf(r.Requests, r.Elapsed) }

// CallLatencyMS is the mean wall time per model call in milliseconds.
func (r *Report) CallLatencyMS() float64 { return latencyOf(r.ModelCalls, r.Elapsed) }

func rateOf(n int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}

func latencyOf(n int, d time.Duration) float64 {
	if n == 0 {
		return 0
	}
	return float64(d.Microseconds()) / 1e3 / float64(n)
}

// Write prints the report in the benchmark's text layout.
func (r *Report) Write(w io.Writer) error {
	perEntity := 0
	if r.Requests > 0 {
		perEntity = r.ModelCalls / r.Requests
	}
	_, err := fmt.Fprintf(w,
		"processing %d requests:\n"+
			"  total time: %.6f seconds\n  qps: %d\n  latency: %.6f milliseconds\n\n"+
			"considering %d adgroups per request, hence %d model calls:\n"+
			"  total time: %.6f seconds\n  qps: %d\n  latency: %.6f milliseconds\n",
		r.Requests, r.Seconds(), int(r.QPS()), r.LatencyMS(),
		perEntity, r.ModelCalls, r.Seconds(), int(r.CallQPS()), r.CallLatencyMS(),
	)
	if err == nil && r.Errors > 0 {
		_, err = fmt.Fprintf(w, "\n%d calls failed, first: %s\n", r.Errors, r.FirstError)
	}
	return err
}

// Run scores every request of ds against every entity. Failed calls are
// counted, not fatal; an entity missing from the model is fatal.
func Run(ctx context.Context, eng Engine, ds *Dataset, opts Options) (*Report, error) {
	for _, e := range ds.Entities {
		if !eng.HasModel(e.AdgroupID) {
			return nil, eris.Errorf("bench: adgroup %q is not in the model", e.AdgroupID)
		}
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	pacing := opts.Pacing
	var limiter *rate.Limiter
	if opts.QPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.QPS), 1)
	}

	n := ds.Requests()
	var (
		errCount, passCount atomic.Int64
		firstErr            sync.Once
		report              = &Report{Requests: n, ModelCalls: n * len(ds.Entities)}
	)

	jobs := make(chan int)
	var timer Timer
	timer.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for j := range n {
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					return eris.Wrap(err, "bench: rate limiter wait")
				}
			}
			select {
			case jobs <- j:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for range opts.Workers {
		g.Go(func() error {
			for j := range jobs {
				for i, e := range ds.Entities {
					req := model.NewRequest(e.BrandID, e.AdgroupID, ds.Scores[i][j]).WithPacing(pacing)
					res, err := eng.Run(req)
					if err != nil {
						errCount.Add(1)
						firstErr.Do(func() { report.FirstError = err.Error() })
						zap.L().Debug("bench: run failed",
							zap.String("adgroup_id", e.AdgroupID),
							zap.Int("request", j),
							zap.Error(err),
						)
						continue
					}
					if res.PassThrough {
						passCount.Add(1)
					}
				}
			}
			return nil
		})
	}
	err := g.Wait()
	timer.Stop()
	if err != nil {
		return nil, err
	}

	report.Elapsed = timer.Elapsed()
	report.Errors = int(errCount.Load())
	report.PassThrough = int(passCount.Load())
	return report, nil
}
