package batch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/saturn/internal/model"
)

// Engine runs one request. *svr.Engine satisfies it.
type Engine interface {
	Run(req model.Request) (model.Result, error)
}

// Options tunes Process.
type Options struct {
	Workers int
	QPS     float64 // 0 means unthrottled
	BatchID string  // generated when empty
}

// Outcome is the scored batch in input order.
type Outcome struct {
	BatchID string
	Results []model.ScoredRequest
	OK      int
	Failed  int
}

// Process scores reqs concurrently. A failed request is recorded in its
// result and never aborts the batch; only cancellation does.
func Process(ctx context.Context, eng Engine, reqs []model.Request, opts Options) (*Outcome, error) {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.BatchID == "" {
		opts.BatchID = uuid.NewString()
	}
	var limiter *rate.Limiter
	if opts.QPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.QPS), 1)
	}
	log := zap.L().With(zap.String("batch_id", opts.BatchID))
	log.Info("processing batch",
		zap.Int("requests", len(reqs)),
		zap.Int("workers", opts.Workers),
	)

	out := &Outcome{
		BatchID: opts.BatchID,
		Results: make([]model.ScoredRequest, len(reqs)),
	}
	var failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, req := range reqs {
		if limiter != nil {
			if err := limiter.Wait(gctx); err != nil {
				break
			}
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := eng.Run(req)
			if err != nil {
				failed.Add(1)
				log.Debug("request failed",
					zap.Int("row", i+1),
					zap.String("adgroup_id", req.AdgroupID),
					zap.Error(err),
				)
			}
			out.Results[i] = model.ScoredRequest{
				ID:        uuid.NewString(),
				BatchID:   opts.BatchID,
				Request:   req,
				Result:    res,
				CreatedAt: time.Now().UTC(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "batch: process")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "batch: process")
	}

	out.Failed = int(failed.Load())
	out.OK = len(reqs) - out.Failed
	log.Info("batch complete",
		zap.Int("ok", out.OK),
		zap.Int("failed", out.Failed),
	)
	return out, nil
}
