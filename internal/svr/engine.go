// Package svr turns observed SVR scores into capped bid multipliers.
package svr

import (
	"errors"
	"io"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/saturn/internal/calibration"
	"github.com/sells-group/saturn/internal/features"
	"github.com/sells-group/saturn/internal/model"
	"github.com/sells-group/saturn/internal/scoring"
)

// Option configures New and Open.
type Option func(*options)

type options struct {
	files Files
	set   *features.Set
	log   *zap.Logger
}

// WithFiles overrides the configuration file names Open reads.
func WithFiles(f Files) Option {
	return func(o *options) { o.files = f }
}

// WithComposerSet shares a feature composer set between engines.
func WithComposerSet(s *features.Set) Option {
	return func(o *options) { o.set = s }
}

// WithLogger sets the engine logger. The global logger is used otherwise.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

func buildOptions(opts []Option) options {
	o := options{files: DefaultFiles()}
	for _, fn := range opts {
		fn(&o)
	}
	if o.set == nil {
		o.set = features.NewSet(features.DefaultRegistry())
	}
	if o.log == nil {
		o.log = zap.L()
	}
	return o
}

// Engine computes bid multipliers for one loaded model. It is safe for
// concurrent use; the Last* accessors only reflect the latest Run.
type Engine struct {
	id       string
	settings *Settings
	resolver *Resolver
	cache    *Cache
	model    scoring.Model
	registry *features.Registry
	renderer *features.Renderer
	log      *zap.Logger

	mu   sync.Mutex
	last model.Result
}

// NormalizePath strips trailing slashes and rejects an empty or root path.
func NormalizePath(path string) (string, error) {
	path = strings.TrimRight(path, "/")
	if path == "" {
		return "", newError(KindConfig, eris.New("svr: can not use root directory as model path"))
	}
	return path, nil
}

// Open loads settings, tables and the catalog model from a model directory.
func Open(path string, opts ...Option) (*Engine, error) {
	dir, err := NormalizePath(path)
	if err != nil {
		return nil, err
	}
	o := buildOptions(opts)

	s, err := LoadSettings(dir, o.files)
	if err != nil {
		return nil, err
	}
	cat, err := scoring.LoadCatalog(filepath.Join(dir, scoring.ObjectFile))
	if err != nil {
		return nil, newError(KindConfig, err)
	}
	return New(dir, s, cat, opts...)
}

// New builds an engine around an already loaded model. The engine owns m
// and closes it on Close if it implements io.Closer.
func New(id string, s *Settings, m scoring.Model, opts ...Option) (*Engine, error) {
	if m == nil {
		return nil, newError(KindConfig, eris.New("svr: nil scoring model"))
	}
	if s == nil {
		return nil, newError(KindConfig, eris.New("svr: nil settings"))
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)

	reg := o.set.Registry()
	if f, _, err := reg.Lookup(features.ScoreField); err != nil || f.Type != features.Float {
		return nil, newError(KindUnknownField, eris.Errorf("svr: registry needs float field %q", features.ScoreField))
	}
	r, err := o.set.Add(s.Features)
	if err != nil {
		return nil, composeError(err)
	}

	e := &Engine{
		id:       id,
		settings: s,
		resolver: NewResolver(s),
		cache:    NewCache(),
		model:    m,
		registry: reg,
		renderer: r,
		log:      o.log.With(zap.String("model_id", id)),
	}
	e.log.Info("engine ready",
		zap.String("composer_id", r.ID()),
		zap.Int("feature_width", r.Width()),
		zap.Int("adgroup_curves", len(s.AdgroupCurve)),
		zap.Int("adgroup_cutoffs", len(s.AdgroupCutoff)),
		zap.Int("brand_defaults", len(s.BrandDefaults)),
	)
	return e, nil
}

func composeError(err error) error {
	switch {
	case errors.Is(err, features.ErrUnknownField):
		return newError(KindUnknownField, err)
	case errors.Is(err, features.ErrUnknownType):
		return newError(KindUnknownType, err)
	default:
		return newError(KindConfig, err)
	}
}

// ModelID is the normalized model path, or the id passed to New.
func (e *Engine) ModelID() string { return e.id }

// Settings returns the engine configuration. Callers must not modify it.
func (e *Engine) Settings() *Settings { return e.settings }

// CacheLen returns the number of memoized missing-score multipliers.
func (e *Engine) CacheLen() int { return e.cache.Len() }

// HasModel reports whether the model has an entry for the adgroup.
func (e *Engine) HasModel(adgroupID string) bool {
	return e.model.HasTag(scoring.Adgroup(adgroupID))
}

// Close releases the scoring model.
func (e *Engine) Close() error {
	if c, ok := e.model.(io.Closer); ok {
		return eris.Wrap(c.Close(), "svr: close model")
	}
	return nil
}

// Run computes the multiplier for one request. Failures come back both as
// an error result (zero score and multiplier) and as a *Error.
func (e *Engine) Run(req model.Request) (model.Result, error) {
	start := time.Now()
	res, err := e.safeRun(req)
	if err != nil {
		res = model.Result{Status: model.StatusError, Message: err.Error()}
		e.log.Debug("run failed",
			zap.String("brand_id", req.BrandID),
			zap.String("adgroup_id", req.AdgroupID),
			zap.Error(err),
		)
	}
	e.observe(req, res, time.Since(start))
	e.remember(res)
	return res, err
}

func (e *Engine) safeRun(req model.Request) (res model.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = model.Result{}
			err = newError(KindModel, eris.Errorf("svr: scoring model panicked: %v", r))
		}
	}()
	if math.IsNaN(req.Score) {
		return model.Result{}, newError(KindInvalidArgument, eris.New("svr: observed svr is NaN"))
	}
	if req.Shape.IsRaw() {
		return e.runRaw(req)
	}
	return e.runCalibrated(req)
}

func passThrough(score float64) model.Result {
	return model.Result{Score: score, Multiplier: 1.0, Status: model.StatusOK, PassThrough: true}
}

// runCalibrated scores a calibrated request. A missing score is served from
// the cache, so later requests reuse the first request's pacing.
func (e *Engine) runCalibrated(req model.Request) (model.Result, error) {
	adgroup := scoring.Adgroup(req.AdgroupID)
	if !e.model.HasTag(adgroup) {
		return passThrough(req.Score), nil
	}
	if err := calibration.ValidatePacing(req.Pacing); err != nil {
		return model.Result{}, newError(KindInvalidArgument, err)
	}

	path := []scoring.Tag{scoring.Brand(req.BrandID), adgroup}
	score := req.Score
	var (
		m      float64
		cached bool
		err    error
	)
	if score < 0 {
		score = e.resolver.Resolve(req.BrandID, req.AdgroupID, false)
		key := CacheKey{BrandID: req.BrandID, Kind: scoring.KindAdgroup, EntityID: req.AdgroupID, Output: model.OutputQuantile}
		m, cached, err = e.cache.GetOrCompute(key, func() (float64, error) {
			return e.calibrated(score, req.AdgroupID, req.Pacing, path)
		})
		countLookup(cached, err)
	} else {
		m, err = e.calibrated(score, req.AdgroupID, req.Pacing, path)
	}
	if err != nil {
		return model.Result{}, err
	}

	return model.Result{
		Score:      score,
		Multiplier: m * e.settings.Cap(req.AdgroupID),
		Status:     model.StatusOK,
		Cached:     cached,
	}, nil
}

func (e *Engine) calibrated(score float64, adgroupID string, pacing float64, path []scoring.Tag) (float64, error) {
	q, err := e.predict(score, model.OutputQuantile, path...)
	if err != nil {
		return 0, err
	}
	return e.calibrate(q, adgroupID, pacing), nil
}

// calibrate maps a quantile to a pre-cap multiplier. Pacing must already be
// validated.
func (e *Engine) calibrate(q float64, adgroupID string, pacing float64) float64 {
	if cutoff, ok := e.settings.Cutoff(adgroupID); ok {
		return calibration.Step(q, cutoff)
	}
	curve := e.settings.Curve(adgroupID).WithPacing(pacing, e.settings.PacingStrength)
	return curve.Eval(q)
}

func (e *Engine) runRaw(req model.Request) (model.Result, error) {
	kind, err := scoring.KindForMode(req.Mode)
	if err != nil {
		return model.Result{}, newError(KindInvalidArgument, err)
	}
	output := req.Output
	switch output {
	case "":
		output = model.OutputMultiplier
	case model.OutputMultiplier, model.OutputCPSVR, model.OutputQuantile:
	default:
		return model.Result{}, newError(KindInvalidArgument, eris.Errorf("svr: unknown output %q", output))
	}

	tag := scoring.Tag{Kind: kind, ID: req.EntityID}
	if !e.model.HasTag(tag) {
		return passThrough(req.Score), nil
	}

	score := req.Score
	var (
		v      float64
		cached bool
	)
	if score < 0 {
		if kind == scoring.KindBrand {
			score = e.resolver.Resolve(req.EntityID, "", false)
		} else {
			score = e.resolver.Floor(false)
		}
		key := CacheKey{Kind: kind, EntityID: req.EntityID, Output: output}
		v, cached, err = e.cache.GetOrCompute(key, func() (float64, error) {
			return e.predict(score, output, tag)
		})
		countLookup(cached, err)
	} else {
		v, err = e.predict(score, output, tag)
	}
	if err != nil {
		return model.Result{}, err
	}
	return model.Result{Score: score, Multiplier: v, Status: model.StatusOK, Cached: cached}, nil
}

// predict renders the score into a fresh value set and asks the model for
// output along path.
func (e *Engine) predict(score float64, output model.Output, path ...scoring.Tag) (float64, error) {
	vals := e.registry.NewValues()
	if err := vals.SetFloat(features.ScoreField, score); err != nil {
		return 0, newError(KindModel, err)
	}
	x, err := e.renderer.Render(vals)
	if err != nil {
		return 0, newError(KindModel, eris.Wrap(err, "svr: render features"))
	}
	q, err := e.model.Predict(x, output, path...)
	if err != nil {
		return 0, newError(KindModel, eris.Wrap(err, "svr: predict"))
	}
	if math.IsNaN(q) || math.IsInf(q, 0) {
		return 0, newError(KindModel, eris.Errorf("svr: model returned %v", q))
	}
	return q, nil
}

func countLookup(hit bool, err error) {
	switch {
	case err != nil:
	case hit:
		CacheLookupsTotal.WithLabelValues("hit").Inc()
	default:
		CacheLookupsTotal.WithLabelValues("miss").Inc()
	}
}

func (e *Engine) observe(req model.Request, res model.Result, d time.Duration) {
	shape := string(model.ShapeCalibrated)
	if req.Shape.IsRaw() {
		shape = string(model.ShapeRaw)
	}
	outcome := string(res.Status)
	if res.PassThrough {
		outcome = "pass_through"
	}
	RunsTotal.WithLabelValues(outcome, shape).Inc()
	RunDuration.Observe(d.Seconds())
}

func (e *Engine) remember(res model.Result) {
	e.mu.Lock()
	e.last = res
	e.mu.Unlock()
}

// LastScore is the score echoed by the most recent Run.
func (e *Engine) LastScore() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last.Score
}

// LastMultiplier is the multiplier of the most recent Run.
func (e *Engine) LastMultiplier() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last.Multiplier
}

// LastMessage is the error message of the most recent Run, empty on success.
func (e *Engine) LastMessage() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last.Message
}
