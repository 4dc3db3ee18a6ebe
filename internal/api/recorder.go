package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/saturn/internal/model"
)

// Saver persists scored requests. store.Store satisfies it.
type Saver interface {
	SaveResults(ctx context.Context, rows []model.ScoredRequest) error
}

// RecorderOptions tunes a Recorder.
type RecorderOptions struct {
	Buffer        int           // queued rows before Record drops; default 1024
	BatchSize     int           // rows per save; default 100
	FlushInterval time.Duration // default 1s
}

// Recorder saves served results in the background. Record never blocks the
// request path; rows are dropped when the queue is full.
type Recorder struct {
	saver    Saver
	opts     RecorderOptions
	queue    chan model.ScoredRequest
	done     chan struct{}
	closeMu  sync.Mutex
	closed   bool
	mu       sync.Mutex
	dropped  int64
	saved    int64
	failures int64
}

// NewRecorder starts a background writer. Call Close to flush and stop it.
func NewRecorder(saver Saver, opts RecorderOptions) *Recorder {
	if opts.Buffer <= 0 {
		opts.Buffer = 1024
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	r := &Recorder{
		saver: saver,
		opts:  opts,
		queue: make(chan model.ScoredRequest, opts.Buffer),
		done:  make(chan struct{}),
	}
	go r.loop()
	return r
}

// Record queues one row.
func (r *Recorder) Record(row model.ScoredRequest) {
	r.closeMu.Lock()
	defer r.closeMu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- row:
	default:
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
	}
}

// Close flushes queued rows and stops the writer.
func (r *Recorder) Close() {
	r.closeMu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.closeMu.Unlock()
	<-r.done
}

// Stats returns rows saved, dropped on a full queue, and lost to failed saves.
func (r *Recorder) Stats() (saved, dropped, failed int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saved, r.dropped, r.failures
}

func (r *Recorder) loop() {
	defer close(r.done)
	ticker := time.NewTicker(r.opts.FlushInterval)
	defer ticker.Stop()

	buf := make([]model.ScoredRequest, 0, r.opts.BatchSize)
	for {
		select {
		case row, ok := <-r.queue:
			if !ok {
				r.flush(buf)
				return
			}
			buf = append(buf, row)
			if len(buf) >= r.opts.BatchSize {
				r.flush(buf)
				buf = make([]model.ScoredRequest, 0, r.opts.BatchSize)
			}
		case <-ticker.C:
			if len(buf) > 0 {
				r.flush(buf)
				buf = make([]model.ScoredRequest, 0, r.opts.BatchSize)
			}
		}
	}
}

func (r *Recorder) flush(rows []model.ScoredRequest) {
	if len(rows) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := r.saver.SaveResults(ctx, rows)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.failures += int64(len(rows))
		zap.L().Error("api: record results", zap.Int("rows", len(rows)), zap.Error(err))
		return
	}
	r.saved += int64(len(rows))
}
