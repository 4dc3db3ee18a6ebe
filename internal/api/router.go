// Package api serves the engine over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/saturn/internal/model"
)

// Engine is the part of *svr.Engine the API exposes.
type Engine interface {
	Run(req model.Request) (model.Result, error)
	HasModel(adgroupID string) bool
	ModelID() string
}

// Options configures NewRouter.
type Options struct {
	CORSOrigins []string
	// Recorder persists served results when non-nil.
	Recorder *Recorder
	// Metrics overrides the /metrics handler; promhttp.Handler() otherwise.
	Metrics http.Handler
	Timeout time.Duration
}

type server struct {
	eng      Engine
	rec      *Recorder
	validate *validator.Validate
	log      *zap.Logger
}

// NewRouter builds the HTTP handler for eng.
func NewRouter(eng Engine, opts Options) http.Handler {
	s := &server{
		eng:      eng,
		rec:      opts.Recorder,
		validate: newValidator(),
		log:      zap.L().With(zap.String("component", "api")),
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(opts.Timeout))
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", s.health)
	r.Handle("/metrics", metrics)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/multiplier", s.multiplier)
		r.Get("/models/{adgroupID}", s.hasModel)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errResp struct {
	Error string `json:"error"`
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errResp{Error: msg})
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	return v
}
