package svr

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/saturn/internal/calibration"
	"github.com/sells-group/saturn/internal/features"
	"github.com/sells-group/saturn/internal/model"
)

// Fallbacks used when the settings document leaves a value out.
const (
	DefaultCap         = 2.0
	DefaultNonLBAScore = 0.0001
	DefaultLBAScore    = 0.001
)

// Files names the configuration files inside a model directory.
type Files struct {
	Settings      string
	BrandDefaults string
	Cutoffs       string
}

// DefaultFiles returns the standard file layout.
func DefaultFiles() Files {
	return Files{
		Settings:      "model_config.json",
		BrandDefaults: "brand_default_svr.txt",
		Cutoffs:       "adgroup_quantile_cutoff.txt",
	}
}

// Settings is the engine configuration. It must not be modified once an
// engine has been built from it.
type Settings struct {
	DefaultCurve       calibration.Curve
	DefaultCap         float64
	PacingStrength     float64
	DefaultNonLBAScore float64
	DefaultLBAScore    float64

	AdgroupCurve    map[string]calibration.Curve
	AdgroupCap      map[string]float64
	AdgroupCutoff   map[string]float64
	BrandDefaults   map[string]model.ScorePair
	AdgroupDefaults map[string]model.ScorePair

	Features []features.Spec
}

// DefaultSettings returns settings holding only the hard-coded fallbacks.
func DefaultSettings() *Settings {
	return &Settings{
		DefaultCurve:       calibration.DefaultCurve(),
		DefaultCap:         DefaultCap,
		DefaultNonLBAScore: DefaultNonLBAScore,
		DefaultLBAScore:    DefaultLBAScore,
		AdgroupCurve:       make(map[string]calibration.Curve),
		AdgroupCap:         make(map[string]float64),
		AdgroupCutoff:      make(map[string]float64),
		BrandDefaults:      make(map[string]model.ScorePair),
		AdgroupDefaults:    make(map[string]model.ScorePair),
	}
}

// Curve returns the adgroup curve, or the default curve.
func (s *Settings) Curve(adgroupID string) calibration.Curve {
	if c, ok := s.AdgroupCurve[adgroupID]; ok {
		return c
	}
	return s.DefaultCurve
}

// Cap returns the adgroup cap, or the default cap.
func (s *Settings) Cap(adgroupID string) float64 {
	if c, ok := s.AdgroupCap[adgroupID]; ok {
		return c
	}
	return s.DefaultCap
}

// Cutoff returns the adgroup quantile cutoff if one is configured.
func (s *Settings) Cutoff(adgroupID string) (float64, bool) {
	c, ok := s.AdgroupCutoff[adgroupID]
	return c, ok
}

// Validate checks every constraint and reports all violations at once.
func (s *Settings) Validate() error {
	var errs []string

	if err := s.DefaultCurve.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("default_multiplier_curve: %v", err))
	}
	for _, id := range sortedKeys(s.AdgroupCurve) {
		if err := s.AdgroupCurve[id].Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("adgroup_multiplier_curve[%s]: %v", id, err))
		}
	}
	if err := calibration.ValidateStrength(s.PacingStrength); err != nil {
		errs = append(errs, err.Error())
	}
	if s.DefaultCap < 0 {
		errs = append(errs, fmt.Sprintf("default_multiplier_cap must be >= 0, got %v", s.DefaultCap))
	}
	for _, id := range sortedKeys(s.AdgroupCap) {
		if c := s.AdgroupCap[id]; c < 0 {
			errs = append(errs, fmt.Sprintf("adgroup_multiplier_cap[%s] must be >= 0, got %v", id, c))
		}
	}
	for _, id := range sortedKeys(s.AdgroupCutoff) {
		if c := s.AdgroupCutoff[id]; !(c >= 0 && c <= 1) {
			errs = append(errs, fmt.Sprintf("adgroup_quantile_cutoff[%s] must be within [0,1], got %v", id, c))
		}
	}
	if len(s.Features) == 0 {
		errs = append(errs, "features is required")
	}

	if len(errs) > 0 {
		return newError(KindConfig, eris.Errorf("svr: invalid settings: %s", strings.Join(errs, "; ")))
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LoadSettings reads the settings document and the optional tables from dir.
// Table files that do not exist are skipped.
func LoadSettings(dir string, files Files) (*Settings, error) {
	path := filepath.Join(dir, files.Settings)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newError(KindConfig, eris.Wrapf(err, "svr: read settings %s", path))
	}

	s, err := ParseSettings(data, formatOf(path))
	if err != nil {
		return nil, err
	}

	if files.BrandDefaults != "" {
		if err := s.loadBrandDefaults(filepath.Join(dir, files.BrandDefaults)); err != nil {
			return nil, err
		}
	}
	if files.Cutoffs != "" {
		if err := s.loadCutoffs(filepath.Join(dir, files.Cutoffs)); err != nil {
			return nil, err
		}
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Document formats accepted by ParseSettings.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ParseSettings decodes a settings document on top of the fallbacks.
func ParseSettings(data []byte, format string) (*Settings, error) {
	var doc document
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	case FormatJSON, "":
		err = json.Unmarshal(data, &doc)
	default:
		err = eris.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return nil, newError(KindConfig, eris.Wrap(err, "svr: decode settings"))
	}

	if err := validateDocument(&doc); err != nil {
		return nil, newError(KindConfig, err)
	}

	s := doc.settings()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

type document struct {
	Features        []features.Spec     `json:"features" yaml:"features" validate:"required,min=1"`
	DefaultNonLBA   *float64            `json:"default_nonlba_svr" yaml:"default_nonlba_svr"`
	DefaultLBA      *float64            `json:"default_lba_svr" yaml:"default_lba_svr"`
	DefaultCurve    *curveDoc           `json:"default_multiplier_curve" yaml:"default_multiplier_curve"`
	DefaultCap      *float64            `json:"default_multiplier_cap" yaml:"default_multiplier_cap"`
	PacingStrength  *pacingStrength     `json:"adjust_multiplier_curve_for_pacing" yaml:"adjust_multiplier_curve_for_pacing"`
	AdgroupDefaults []adgroupDefaultDoc `json:"adgroup_default_svr" yaml:"adgroup_default_svr" validate:"dive"`
	AdgroupCurves   []adgroupCurveDoc   `json:"adgroup_multiplier_curve" yaml:"adgroup_multiplier_curve" validate:"dive"`
	AdgroupCaps     []adgroupCapDoc     `json:"adgroup_multiplier_cap" yaml:"adgroup_multiplier_cap" validate:"dive"`
}

type curveDoc struct {
	Mu    *float64 `json:"mu" yaml:"mu"`
	Sigma *float64 `json:"sigma" yaml:"sigma"`
}

type adgroupDefaultDoc struct {
	AdgroupID flexID  `json:"adgroup_id" yaml:"adgroup_id" validate:"required"`
	NonLBA    float64 `json:"nonlba" yaml:"nonlba"`
	LBA       float64 `json:"lba" yaml:"lba"`
}

type adgroupCurveDoc struct {
	AdgroupID flexID  `json:"adgroup_id" yaml:"adgroup_id" validate:"required"`
	Mu        float64 `json:"mu" yaml:"mu"`
	Sigma     float64 `json:"sigma" yaml:"sigma"`
}

type adgroupCapDoc struct {
	AdgroupID flexID  `json:"adgroup_id" yaml:"adgroup_id" validate:"required"`
	Cap       float64 `json:"cap" yaml:"cap"`
}

func (d *document) settings() *Settings {
	s := DefaultSettings()
	s.Features = d.Features

	if d.DefaultNonLBA != nil {
		s.DefaultNonLBAScore = *d.DefaultNonLBA
	}
	if d.DefaultLBA != nil {
		s.DefaultLBAScore = *d.DefaultLBA
	}
	if d.DefaultCurve != nil {
		if d.DefaultCurve.Mu != nil {
			s.DefaultCurve.Mu = *d.DefaultCurve.Mu
		}
		if d.DefaultCurve.Sigma != nil {
			s.DefaultCurve.Sigma = *d.DefaultCurve.Sigma
		}
	}
	if d.DefaultCap != nil {
		s.DefaultCap = *d.DefaultCap
	}
	if d.PacingStrength != nil {
		s.PacingStrength = float64(*d.PacingStrength)
	}
	for _, r := range d.AdgroupDefaults {
		s.AdgroupDefaults[string(r.AdgroupID)] = model.ScorePair{NonLBA: r.NonLBA, LBA: r.LBA}
	}
	for _, r := range d.AdgroupCurves {
		s.AdgroupCurve[string(r.AdgroupID)] = calibration.Curve{Mu: r.Mu, Sigma: r.Sigma}
	}
	for _, r := range d.AdgroupCaps {
		s.AdgroupCap[string(r.AdgroupID)] = r.Cap
	}
	return s
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validateDocument(doc *document) error {
	err := validate.Struct(doc)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return eris.Wrap(err, "svr: validate settings")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return eris.Errorf("svr: invalid settings: %s", strings.Join(msgs, "; "))
}

// pacingStrength accepts either a number or a bool; true means 1.
type pacingStrength float64

func (p *pacingStrength) set(on bool) {
	if on {
		*p = 1
	} else {
		*p = 0
	}
}

func (p *pacingStrength) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*p = pacingStrength(f)
		return nil
	}
	var on bool
	if err := json.Unmarshal(b, &on); err != nil {
		return eris.Errorf("adjust_multiplier_curve_for_pacing must be a number or bool, got %s", b)
	}
	p.set(on)
	return nil
}

func (p *pacingStrength) UnmarshalYAML(n *yaml.Node) error {
	var f float64
	if err := n.Decode(&f); err == nil {
		*p = pacingStrength(f)
		return nil
	}
	var on bool
	if err := n.Decode(&on); err != nil {
		return eris.Errorf("adjust_multiplier_curve_for_pacing must be a number or bool, got %q", n.Value)
	}
	p.set(on)
	return nil
}

// flexID accepts identifiers written either as strings or as bare numbers.
type flexID string

func (id *flexID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return eris.Errorf("identifier must be a string or number, got %s", b)
	}
	*id = flexID(n.String())
	return nil
}

func (id *flexID) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return eris.Errorf("identifier must be a scalar at line %d", n.Line)
	}
	*id = flexID(n.Value)
	return nil
}
