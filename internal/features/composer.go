package features

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/rotisserie/eris"
)

// Transform type names accepted in a spec.
const (
	TypeDirectNumber       = "DirectNumber"
	TypeOneHot             = "OneHot"
	TypeHashedColumn       = "HashedColumn"
	TypeHashedColumnCross  = "HashedColumnCross"
	TypeHashedColumnBundle = "HashedColumnBundle"
)

// Args holds transform arguments. Which fields are used depends on the type.
type Args struct {
	Column      string   `json:"column,omitempty" yaml:"column,omitempty"`
	Columns     []string `json:"columns,omitempty" yaml:"columns,omitempty"`
	Values      []string `json:"values,omitempty" yaml:"values,omitempty"`
	NPredictors int      `json:"n_predictors,omitempty" yaml:"n_predictors,omitempty"`
}

// Spec describes one transform in a feature composition.
type Spec struct {
	Type string `json:"type" yaml:"type"`
	Args Args   `json:"args" yaml:"args"`
}

type transform interface {
	width() int
	render(v *Values, out []float64)
}

// Renderer turns Values into a fixed-width vector. It is immutable and safe
// for concurrent use.
type Renderer struct {
	id    string
	reg   *Registry
	parts []transform
	width int
}

// ID identifies the composition; identical spec lists share an ID.
func (r *Renderer) ID() string { return r.id }

// Width is the length of every rendered vector.
func (r *Renderer) Width() int { return r.width }

// Render produces the feature vector for v.
func (r *Renderer) Render(v *Values) ([]float64, error) {
	if v == nil {
		return nil, eris.New("features: render: nil values")
	}
	if v.reg != r.reg {
		return nil, eris.New("features: render: values bound to a different registry")
	}
	out := make([]float64, r.width)
	off := 0
	for _, p := range r.parts {
		w := p.width()
		p.render(v, out[off:off+w])
		off += w
	}
	return out, nil
}

// Compose builds a renderer for specs against reg.
func Compose(reg *Registry, specs []Spec) (*Renderer, error) {
	if len(specs) == 0 {
		return nil, eris.Wrap(ErrInvalidSpec, "features: compose: empty spec list")
	}
	id, err := specID(specs)
	if err != nil {
		return nil, err
	}

	r := &Renderer{id: id, reg: reg}
	for i, s := range specs {
		t, err := build(reg, s)
		if err != nil {
			return nil, eris.Wrapf(err, "features: compose: spec %d (%s)", i, s.Type)
		}
		r.parts = append(r.parts, t)
		r.width += t.width()
	}
	return r, nil
}

func specID(specs []Spec) (string, error) {
	raw, err := json.Marshal(specs)
	if err != nil {
		return "", eris.Wrap(err, "features: encode spec list")
	}
	h := fnv.New64a()
	_, _ = h.Write(raw)
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

func build(reg *Registry, s Spec) (transform, error) {
	switch s.Type {
	case TypeDirectNumber:
		f, idx, err := reg.Lookup(s.Args.Column)
		if err != nil {
			return nil, err
		}
		if !f.Type.Numeric() {
			return nil, eris.Wrapf(ErrFieldType, "%s needs a numeric field, %q is %s", s.Type, f.Name, f.Type)
		}
		return directNumber{idx: idx}, nil

	case TypeOneHot:
		_, idx, err := reg.Lookup(s.Args.Column)
		if err != nil {
			return nil, err
		}
		if len(s.Args.Values) == 0 {
			return nil, eris.Wrapf(ErrInvalidSpec, "%s needs values", s.Type)
		}
		pos := make(map[string]int, len(s.Args.Values))
		for i, val := range s.Args.Values {
			if _, dup := pos[val]; dup {
				return nil, eris.Wrapf(ErrInvalidSpec, "%s has duplicate value %q", s.Type, val)
			}
			pos[val] = i
		}
		return oneHot{idx: idx, pos: pos}, nil

	case TypeHashedColumn, TypeHashedColumnCross, TypeHashedColumnBundle:
		if s.Args.NPredictors <= 0 {
			return nil, eris.Wrapf(ErrInvalidSpec, "%s needs n_predictors > 0", s.Type)
		}
		cols := s.Args.Columns
		if s.Type == TypeHashedColumn {
			if s.Args.Column == "" {
				return nil, eris.Wrapf(ErrInvalidSpec, "%s needs column", s.Type)
			}
			cols = []string{s.Args.Column}
		}
		if len(cols) == 0 {
			return nil, eris.Wrapf(ErrInvalidSpec, "%s needs columns", s.Type)
		}
		idx := make([]int, len(cols))
		for i, c := range cols {
			_, j, err := reg.Lookup(c)
			if err != nil {
				return nil, err
			}
			idx[i] = j
		}
		return hashed{
			idx:    idx,
			names:  cols,
			n:      s.Args.NPredictors,
			bundle: s.Type == TypeHashedColumnBundle,
		}, nil

	default:
		return nil, eris.Wrapf(ErrUnknownType, "type %q", s.Type)
	}
}

type directNumber struct{ idx int }

func (d directNumber) width() int { return 1 }

func (d directNumber) render(v *Values, out []float64) {
	out[0] = v.cells[d.idx].num
}

type oneHot struct {
	idx int
	pos map[string]int
}

func (o oneHot) width() int { return len(o.pos) }

func (o oneHot) render(v *Values, out []float64) {
	if i, ok := o.pos[v.cells[o.idx].str]; ok {
		out[i] = 1
	}
}

// hashed covers HashedColumn (one column), HashedColumnCross (one bucket for
// the joined columns) and HashedColumnBundle (one bucket per column).
type hashed struct {
	idx    []int
	names  []string
	n      int
	bundle bool
}

func (h hashed) width() int { return h.n }

func (h hashed) render(v *Values, out []float64) {
	if h.bundle {
		for i, j := range h.idx {
			out[bucket(h.n, h.names[i], v.cells[j].str)] += 1
		}
		return
	}
	parts := make([]string, 0, 2*len(h.idx))
	for i, j := range h.idx {
		parts = append(parts, h.names[i], v.cells[j].str)
	}
	out[bucket(h.n, parts...)] = 1
}

func bucket(n int, parts ...string) int {
	h := fnv.New32a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0x1f})
	}
	return int(h.Sum32() % uint32(n))
}

// Set composes renderers against one registry and shares a renderer between
// identical spec lists. It is safe for concurrent use.
type Set struct {
	reg *Registry

	mu        sync.Mutex
	renderers map[string]*Renderer
}

// NewSet returns an empty composer set over reg.
func NewSet(reg *Registry) *Set {
	return &Set{reg: reg, renderers: make(map[string]*Renderer)}
}

// Registry returns the registry the set composes against.
func (s *Set) Registry() *Registry { return s.reg }

// Add composes specs, reusing an existing renderer for an identical list.
func (s *Set) Add(specs []Spec) (*Renderer, error) {
	id, err := specID(specs)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.renderers[id]; ok {
		return r, nil
	}
	r, err := Compose(s.reg, specs)
	if err != nil {
		return nil, err
	}
	s.renderers[id] = r
	return r, nil
}

// Len returns the number of distinct renderers.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.renderers)
}
