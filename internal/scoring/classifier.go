package scoring

import (
	"encoding/json"
	"math"
	"os"

	"github.com/rotisserie/eris"
)

// Classifier class names accepted by LoadClassifier.
const (
	ChainClass  = "ChainModel"
	ForestClass = "BinaryRandomForestClassifier"
)

// Classifier object files inside a probability model directory.
const (
	CTRObjectFile     = "ctr_model_object.json"
	WinRateObjectFile = "wr_model_object.json"
)

// Classifier maps a rendered feature vector to a probability in [0,1].
type Classifier interface {
	Class() string
	Width() int
	Prob(x []float64) (float64, error)
}

// Chain is a logistic regression followed by an optional isotonic
// calibration of its output.
type Chain struct {
	Weights     []float64 `json:"weights"`
	Intercept   float64   `json:"intercept"`
	Calibration *Isotonic `json:"calibration,omitempty"`
}

// Class implements Classifier.
func (c *Chain) Class() string { return ChainClass }

// Width implements Classifier.
func (c *Chain) Width() int { return len(c.Weights) }

// Prob implements Classifier.
func (c *Chain) Prob(x []float64) (float64, error) {
	if len(x) < len(c.Weights) {
		return 0, eris.Wrapf(ErrInput, "need %d values, have %d", len(c.Weights), len(x))
	}
	z := c.Intercept
	for i, w := range c.Weights {
		z += w * x[i]
	}
	p := 1 / (1 + math.Exp(-z))
	if c.Calibration != nil {
		p = c.Calibration.Eval(p)
	}
	return p, nil
}

func (c *Chain) validate() error {
	if len(c.Weights) == 0 {
		return eris.New("scoring: chain has no weights")
	}
	for i, w := range c.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return eris.Errorf("scoring: chain weight %d is not finite", i)
		}
	}
	if c.Calibration != nil {
		if err := c.Calibration.Validate(); err != nil {
			return eris.Wrap(err, "scoring: chain calibration")
		}
	}
	return nil
}

// Node is one node of a decision tree. A node with Feature < 0 is a leaf
// holding the positive-class probability in Value; otherwise x[Feature] <=
// Threshold goes Left.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

// Tree is a flat decision tree rooted at node 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t Tree) eval(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// validate rejects dangling children and cycles. Children must point
// forward so every walk terminates.
func (t Tree) validate() (width int, err error) {
	if len(t.Nodes) == 0 {
		return 0, eris.New("empty tree")
	}
	for i, n := range t.Nodes {
		if n.Feature < 0 {
			if n.Value < 0 || n.Value > 1 || math.IsNaN(n.Value) {
				return 0, eris.Errorf("node %d: leaf value %g outside [0,1]", i, n.Value)
			}
			continue
		}
		for _, c := range []int{n.Left, n.Right} {
			if c <= i || c >= len(t.Nodes) {
				return 0, eris.Errorf("node %d: bad child %d", i, c)
			}
		}
		if n.Feature+1 > width {
			width = n.Feature + 1
		}
	}
	return width, nil
}

// Forest averages the leaf probabilities of its trees.
type Forest struct {
	Trees []Tree `json:"trees"`
	width int
}

// Class implements Classifier.
func (f *Forest) Class() string { return ForestClass }

// Width implements Classifier.
func (f *Forest) Width() int { return f.width }

// Prob implements Classifier.
func (f *Forest) Prob(x []float64) (float64, error) {
	if len(x) < f.width {
		return 0, eris.Wrapf(ErrInput, "need %d values, have %d", f.width, len(x))
	}
	var sum float64
	for _, t := range f.Trees {
		sum += t.eval(x)
	}
	return sum / float64(len(f.Trees)), nil
}

func (f *Forest) validate() error {
	if len(f.Trees) == 0 {
		return eris.New("scoring: forest has no trees")
	}
	f.width = 0
	for i, t := range f.Trees {
		w, err := t.validate()
		if err != nil {
			return eris.Wrapf(err, "scoring: tree %d", i)
		}
		if w > f.width {
			f.width = w
		}
	}
	return nil
}

type classifierDoc struct {
	ClassName string `json:"class_name"`
	Chain
	Forest
}

// ParseClassifier decodes a classifier document, insisting on class.
func ParseClassifier(data []byte, class string) (Classifier, error) {
	var doc classifierDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "scoring: decode classifier")
	}
	if doc.ClassName != class {
		return nil, eris.Errorf("scoring: expecting a %q, got %q", class, doc.ClassName)
	}
	switch class {
	case ChainClass:
		c := doc.Chain
		if err := c.validate(); err != nil {
			return nil, err
		}
		return &c, nil
	case ForestClass:
		f := doc.Forest
		if err := f.validate(); err != nil {
			return nil, err
		}
		return &f, nil
	default:
		return nil, eris.Errorf("scoring: unknown classifier class %q", class)
	}
}

// LoadClassifier reads a classifier file, insisting on class.
func LoadClassifier(path, class string) (Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "scoring: read classifier %s", path)
	}
	c, err := ParseClassifier(data, class)
	if err != nil {
		return nil, eris.Wrapf(err, "scoring: load classifier %s", path)
	}
	return c, nil
}
