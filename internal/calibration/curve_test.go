package calibration

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogitNormalCDF_Midpoint(t *testing.T) {
	assert.Equal(t, 0.5, LogitNormalCDF(0.5, DefaultCurve()))
}

func TestLogitNormalCDF_Monotonic(t *testing.T) {
	curves := []Curve{
		DefaultCurve(),
		{Mu: -1.5, Sigma: 0.2},
		{Mu: 2, Sigma: 3},
	}
	for _, c := range curves {
		prev := -1.0
		for i := 1; i < 1000; i++ {
			q := float64(i) / 1000
			got := LogitNormalCDF(q, c)
			require.GreaterOrEqual(t, got, prev, "curve %+v at q=%v", c, q)
			require.GreaterOrEqual(t, got, 0.0)
			require.LessOrEqual(t, got, 1.0)
			prev = got
		}
	}
}

func TestLogitNormalCDF_ClampsEndpoints(t *testing.T) {
	c := DefaultCurve()

	lo := LogitNormalCDF(0, c)
	hi := LogitNormalCDF(1, c)

	assert.False(t, math.IsNaN(lo))
	assert.False(t, math.IsNaN(hi))
	assert.Equal(t, LogitNormalCDF(Epsilon, c), lo)
	assert.Equal(t, LogitNormalCDF(1-Epsilon, c), hi)
	assert.Equal(t, lo, LogitNormalCDF(-3, c))
	assert.Equal(t, hi, LogitNormalCDF(7, c))
}

func TestLogitNormalCDF_MuShiftsCurve(t *testing.T) {
	// logit(q) == mu puts the evaluation at the CDF midpoint.
	q := 1 / (1 + math.Exp(-1.2))
	assert.InDelta(t, 0.5, LogitNormalCDF(q, Curve{Mu: 1.2, Sigma: 0.7}), 1e-12)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, Epsilon, Clamp(0))
	assert.Equal(t, 1-Epsilon, Clamp(1))
	assert.Equal(t, 0.25, Clamp(0.25))
}

func TestNormalCDF(t *testing.T) {
	assert.Equal(t, 0.5, NormalCDF(0))
	assert.InDelta(t, 0.8413447460685429, NormalCDF(1), 1e-12)
	assert.InDelta(t, 0.15865525393145707, NormalCDF(-1), 1e-12)
}

func TestCurveValidate(t *testing.T) {
	tests := []struct {
		name    string
		curve   Curve
		wantErr bool
	}{
		{"default", DefaultCurve(), false},
		{"zero sigma", Curve{Sigma: 0}, true},
		{"negative sigma", Curve{Sigma: -0.1}, true},
		{"nan sigma", Curve{Sigma: math.NaN()}, true},
		{"inf mu", Curve{Mu: math.Inf(1), Sigma: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.curve.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.True(t, errors.Is(Curve{Sigma: 0}.Validate(), ErrInvalidCurve))
}

func TestStep(t *testing.T) {
	assert.Equal(t, 1.0, Step(0.9, 0.85))
	assert.Equal(t, 1.0, Step(0.85, 0.85))
	assert.Equal(t, 0.0, Step(0.8, 0.85))
}
