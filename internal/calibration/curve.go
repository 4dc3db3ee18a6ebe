// Package calibration maps model quantiles to multipliers through a
// logit-normal CDF.
package calibration

import (
	"math"

	"github.com/rotisserie/eris"
)

// Epsilon bounds quantiles away from 0 and 1 before the logit is taken.
const Epsilon = 1e-9

// Default curve parameters used when nothing more specific is configured.
const (
	DefaultMu    = 0.0
	DefaultSigma = 0.5
)

// ErrInvalidCurve is returned for a curve whose sigma is not strictly positive.
var ErrInvalidCurve = eris.New("calibration: sigma must be > 0")

// Curve parameterizes a logit-normal CDF.
type Curve struct {
	Mu    float64 `json:"mu" yaml:"mu"`
	Sigma float64 `json:"sigma" yaml:"sigma"`
}

// DefaultCurve returns the hard-coded fallback curve.
func DefaultCurve() Curve {
	return Curve{Mu: DefaultMu, Sigma: DefaultSigma}
}

// Validate checks that sigma is positive and both parameters are finite.
func (c Curve) Validate() error {
	if math.IsNaN(c.Mu) || math.IsInf(c.Mu, 0) {
		return eris.Errorf("calibration: mu must be finite, got %v", c.Mu)
	}
	if !(c.Sigma > 0) || math.IsInf(c.Sigma, 0) {
		return eris.Wrapf(ErrInvalidCurve, "sigma=%v", c.Sigma)
	}
	return nil
}

// WithMu returns a copy of c with mu replaced.
func (c Curve) WithMu(mu float64) Curve {
	c.Mu = mu
	return c
}

// Eval is shorthand for LogitNormalCDF(q, c).
func (c Curve) Eval(q float64) float64 {
	return LogitNormalCDF(q, c)
}

// Clamp forces q into [Epsilon, 1-Epsilon].
func Clamp(q float64) float64 {
	switch {
	case q < Epsilon:
		return Epsilon
	case q > 1-Epsilon:
		return 1 - Epsilon
	default:
		return q
	}
}

// Logit returns ln(q/(1-q)) of the clamped quantile.
func Logit(q float64) float64 {
	q = Clamp(q)
	return math.Log(q / (1 - q))
}

// NormalCDF is the standard normal cumulative distribution function.
func NormalCDF(z float64) float64 {
	return 0.5 * math.Erfc(-z/math.Sqrt2)
}

// LogitNormalCDF evaluates Φ((logit(q) − mu) / sigma). The result is in [0,1]
// and non-decreasing in q for any valid curve.
func LogitNormalCDF(q float64, c Curve) float64 {
	return NormalCDF((Logit(q) - c.Mu) / c.Sigma)
}

// Step is the cutoff rule: 1 when q reaches the cutoff, otherwise 0.
func Step(q, cutoff float64) float64 {
	if q >= cutoff {
		return 1.0
	}
	return 0.0
}
