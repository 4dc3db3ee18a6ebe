// Package prob scores bid requests with the click-through and win-rate
// probability models.
package prob

import (
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/saturn/internal/features"
	"github.com/sells-group/saturn/internal/scoring"
	"github.com/sells-group/saturn/internal/svr"
)

// ErrInput marks a malformed input vector.
var ErrInput = eris.New("prob: invalid input")

// Kind selects a probability model.
type Kind string

const (
	KindCTR     Kind = "ctr"
	KindWinRate Kind = "winrate"
)

type kindSpec struct {
	class  string
	object string
	inputs []string
}

var kinds = map[Kind]kindSpec{
	KindCTR: {
		class:  scoring.ChainClass,
		object: scoring.CTRObjectFile,
		inputs: []string{
			"ctr_campaign_id",
			"ctr_creative_id",
			"ctr_creative_type",
			"ctr_adomain",
			"ctr_sic",
			"ctr_gender",
			"ctr_banner_size",
			"ctr_carrier",
			"ctr_device_type",
			"ctr_publisher_id",
			"ctr_traffic_name",
			"ctr_uid_type",
			"ctr_device_model",
			"ctr_isp",
			"ctr_hour",
			"ctr_age",
			"ctr_sl_adjusted_confidence",
		},
	},
	KindWinRate: {
		class:  scoring.ForestClass,
		object: scoring.WinRateObjectFile,
		inputs: []string{
			"wr_uid_type",
			"wr_device_type",
			"wr_os",
			"wr_device_make",
			"wr_bundle",
			"wr_banner_size",
			"wr_user_gender",
			"wr_pub_bid_rate",
			"wr_isp",
			"wr_adomain",
			"wr_device_model",
			"wr_hour",
			"wr_sl_adjusted_confidence",
			"wr_weekday",
		},
	},
}

// ParseKind accepts "ctr" and "winrate".
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(s))
	if _, ok := kinds[k]; !ok {
		return "", eris.Errorf("prob: unknown model kind %q", s)
	}
	return k, nil
}

// Inputs lists the positional input fields of a model kind.
func Inputs(k Kind) []string {
	spec, ok := kinds[k]
	if !ok {
		return nil
	}
	out := make([]string, len(spec.inputs))
	copy(out, spec.inputs)
	return out
}

// Predictor evaluates one probability model. It is immutable after Open and
// safe for concurrent use.
type Predictor struct {
	id         string
	kind       Kind
	inputs     []features.Field
	registry   *features.Registry
	renderer   *features.Renderer
	classifier scoring.Classifier
	log        *zap.Logger
}

// Open loads the feature composition from settingsFile and the classifier
// object from a probability model directory.
func Open(path string, kind Kind, settingsFile string, log *zap.Logger) (*Predictor, error) {
	spec, ok := kinds[kind]
	if !ok {
		return nil, eris.Errorf("prob: unknown model kind %q", kind)
	}
	dir, err := svr.NormalizePath(path)
	if err != nil {
		return nil, err
	}
	if settingsFile == "" {
		settingsFile = svr.DefaultFiles().Settings
	}

	s, err := svr.LoadSettings(dir, svr.Files{Settings: settingsFile})
	if err != nil {
		return nil, err
	}
	c, err := scoring.LoadClassifier(filepath.Join(dir, spec.object), spec.class)
	if err != nil {
		return nil, err
	}
	return New(dir, kind, s.Features, c, log)
}

// New builds a predictor from a feature composition and a loaded classifier.
func New(id string, kind Kind, specs []features.Spec, c scoring.Classifier, log *zap.Logger) (*Predictor, error) {
	spec, ok := kinds[kind]
	if !ok {
		return nil, eris.Errorf("prob: unknown model kind %q", kind)
	}
	if c == nil {
		return nil, eris.New("prob: nil classifier")
	}
	if c.Class() != spec.class {
		return nil, eris.Errorf("prob: %s needs a %s, got %s", kind, spec.class, c.Class())
	}
	if log == nil {
		log = zap.L()
	}

	reg := features.DefaultRegistry()
	r, err := features.Compose(reg, specs)
	if err != nil {
		return nil, eris.Wrap(err, "prob: compose features")
	}
	if r.Width() < c.Width() {
		return nil, eris.Errorf("prob: features render %d values, %s reads %d", r.Width(), c.Class(), c.Width())
	}

	inputs := make([]features.Field, len(spec.inputs))
	for i, name := range spec.inputs {
		f, _, err := reg.Lookup(name)
		if err != nil {
			return nil, err
		}
		inputs[i] = f
	}

	p := &Predictor{
		id:         id,
		kind:       kind,
		inputs:     inputs,
		registry:   reg,
		renderer:   r,
		classifier: c,
		log:        log.With(zap.String("model_id", id), zap.String("kind", string(kind))),
	}
	p.log.Info("predictor ready",
		zap.String("composer_id", r.ID()),
		zap.Int("feature_width", r.Width()),
		zap.String("class", c.Class()),
	)
	return p, nil
}

// ModelID is the normalized model path, or the id passed to New.
func (p *Predictor) ModelID() string { return p.id }

// Kind is the model kind.
func (p *Predictor) Kind() Kind { return p.kind }

// Predict sets the positional inputs, renders the features and returns the
// model probability.
func (p *Predictor) Predict(input []string) (float64, error) {
	if len(input) != len(p.inputs) {
		return 0, eris.Wrapf(ErrInput, "%s takes %d values, got %d", p.kind, len(p.inputs), len(input))
	}
	start := time.Now()

	v := p.registry.NewValues()
	for i, f := range p.inputs {
		if err := setField(v, f, input[i]); err != nil {
			return 0, eris.Wrapf(ErrInput, "value %d (%s): %v", i+1, f.Name, err)
		}
	}
	x, err := p.renderer.Render(v)
	if err != nil {
		return 0, eris.Wrap(err, "prob: render")
	}
	prob, err := p.classifier.Prob(x)
	if err != nil {
		return 0, eris.Wrap(err, "prob: predict")
	}

	p.log.Debug("predicted",
		zap.Float64("prob", prob),
		zap.Duration("elapsed", time.Since(start)),
	)
	return prob, nil
}

func setField(v *features.Values, f features.Field, raw string) error {
	switch f.Type {
	case features.Int:
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return eris.Errorf("%q is not an integer", raw)
		}
		return v.SetInt(f.Name, n)
	case features.Float:
		x, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return eris.Errorf("%q is not a number", raw)
		}
		return v.SetFloat(f.Name, x)
	default:
		return v.SetString(f.Name, raw)
	}
}

// Close releases the classifier if it holds resources.
func (p *Predictor) Close() error {
	if c, ok := p.classifier.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
