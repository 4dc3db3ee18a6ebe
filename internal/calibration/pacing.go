package calibration

import (
	"math"

	"github.com/rotisserie/eris"
)

// NoPacing is the sentinel for an unknown pacing signal.
const NoPacing = -1.0

// MaxPacingStrength bounds the pacing adjustment strength.
const MaxPacingStrength = 2.0

// ErrInvalidPacing is returned for a pacing value that is neither the
// sentinel nor within [0,1].
var ErrInvalidPacing = eris.New("calibration: pacing must be -1 or within [0,1]")

// HasPacing reports whether p carries a pacing signal.
func HasPacing(p float64) bool {
	return p != NoPacing
}

// ValidatePacing accepts the sentinel or any value in [0,1].
func ValidatePacing(p float64) error {
	if p == NoPacing {
		return nil
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		return eris.Wrapf(ErrInvalidPacing, "pacing=%v", p)
	}
	return nil
}

// ValidateStrength checks the pacing adjustment strength is within [0,2].
func ValidateStrength(s float64) error {
	if math.IsNaN(s) || s < 0 || s > MaxPacingStrength {
		return eris.Errorf("calibration: pacing strength must be within [0,%v], got %v", MaxPacingStrength, s)
	}
	return nil
}

// PacedMu maps a pacing signal onto a curve location:
// 0 -> -strength, 0.5 -> -0.5*strength, 1 -> +strength.
func PacedMu(pacing, strength float64) float64 {
	return (2*pacing*pacing - 1) * strength
}

// WithPacing returns the curve used for a request. The configured mu is kept
// when pacing is the sentinel or the strength is zero.
func (c Curve) WithPacing(pacing, strength float64) Curve {
	if !HasPacing(pacing) || strength <= 0 {
		return c
	}
	return c.WithMu(PacedMu(pacing, strength))
}
