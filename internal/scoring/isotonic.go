package scoring

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
)

// Isotonic is a monotone piecewise-linear curve. Inputs outside the knot
// range evaluate to the nearest end value.
type Isotonic struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

// Validate checks the knots are usable: equal lengths, at least one point,
// x strictly increasing and y non-decreasing.
func (c Isotonic) Validate() error {
	if len(c.X) == 0 {
		return eris.New("isotonic: no knots")
	}
	if len(c.X) != len(c.Y) {
		return eris.Errorf("isotonic: %d x knots but %d y knots", len(c.X), len(c.Y))
	}
	for i := range c.X {
		if math.IsNaN(c.X[i]) || math.IsNaN(c.Y[i]) {
			return eris.Errorf("isotonic: NaN knot at %d", i)
		}
		if i == 0 {
			continue
		}
		if c.X[i] <= c.X[i-1] {
			return eris.Errorf("isotonic: x not increasing at %d", i)
		}
		if c.Y[i] < c.Y[i-1] {
			return eris.Errorf("isotonic: y decreasing at %d", i)
		}
	}
	return nil
}

// Eval interpolates the curve at v.
func (c Isotonic) Eval(v float64) float64 {
	n := len(c.X)
	if math.IsNaN(v) {
		return math.NaN()
	}
	if v <= c.X[0] {
		return c.Y[0]
	}
	if v >= c.X[n-1] {
		return c.Y[n-1]
	}
	// First knot strictly greater than v; 1 <= i <= n-1 here.
	i := sort.Search(n, func(i int) bool { return c.X[i] > v })
	x0, x1 := c.X[i-1], c.X[i]
	y0, y1 := c.Y[i-1], c.Y[i]
	return y0 + (y1-y0)*(v-x0)/(x1-x0)
}
