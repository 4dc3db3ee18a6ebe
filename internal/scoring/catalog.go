package scoring

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/saturn/internal/model"
)

// CatalogClass is the only class_name LoadCatalog accepts.
const CatalogClass = "CatalogModel"

// ObjectFile is the catalog file name inside a model directory.
const ObjectFile = "model_object.json"

// Entry maps output names to curves for one tag.
type Entry map[model.Output]Isotonic

type catalogDoc struct {
	ClassName      string           `json:"class_name"`
	Input          int              `json:"input"`
	Adgroups       map[string]Entry `json:"adgroups"`
	Brands         map[string]Entry `json:"brands"`
	LocationGroups map[string]Entry `json:"location_groups"`
}

// Catalog is the reference scoring model: one curve per (tag, output),
// evaluated on a single position of the feature vector. It is immutable
// after loading and safe for concurrent use.
type Catalog struct {
	input   int
	entries map[Tag]Entry
}

// LoadCatalog reads and validates a catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "scoring: read catalog %s", path)
	}
	c, err := ParseCatalog(data)
	if err != nil {
		return nil, eris.Wrapf(err, "scoring: load catalog %s", path)
	}
	return c, nil
}

// ParseCatalog decodes a catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var doc catalogDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "scoring: decode catalog")
	}
	if doc.ClassName != CatalogClass {
		return nil, eris.Errorf("scoring: expecting a %q, got %q", CatalogClass, doc.ClassName)
	}
	if doc.Input < 0 {
		return nil, eris.Errorf("scoring: negative input index %d", doc.Input)
	}

	c := &Catalog{input: doc.Input, entries: make(map[Tag]Entry)}
	groups := []struct {
		kind    Kind
		entries map[string]Entry
	}{
		{KindAdgroup, doc.Adgroups},
		{KindBrand, doc.Brands},
		{KindLocationGroup, doc.LocationGroups},
	}
	for _, g := range groups {
		for id, e := range g.entries {
			tag := Tag{Kind: g.kind, ID: id}
			for out, curve := range e {
				if err := curve.Validate(); err != nil {
					return nil, eris.Wrapf(err, "scoring: %s output %s", tag, out)
				}
			}
			c.entries[tag] = e
		}
	}
	return c, nil
}

// Input is the feature-vector position the curves are evaluated on.
func (c *Catalog) Input() int { return c.input }

// HasTag reports whether the catalog has an entry for tag.
func (c *Catalog) HasTag(tag Tag) bool {
	_, ok := c.entries[tag]
	return ok
}

// Tags returns every tag of the given kind, sorted by ID.
func (c *Catalog) Tags(kind Kind) []string {
	var ids []string
	for t := range c.entries {
		if t.Kind == kind {
			ids = append(ids, t.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// Predict evaluates output for the most specific tag in path that the
// catalog knows.
func (c *Catalog) Predict(x []float64, output model.Output, path ...Tag) (float64, error) {
	if c.input >= len(x) {
		return 0, eris.Wrapf(ErrInput, "need position %d, have %d values", c.input, len(x))
	}
	for i := len(path) - 1; i >= 0; i-- {
		e, ok := c.entries[path[i]]
		if !ok {
			continue
		}
		curve, ok := e[output]
		if !ok {
			return 0, eris.Wrapf(ErrNoOutput, "%s has no %s", path[i], output)
		}
		return curve.Eval(x[c.input]), nil
	}
	return 0, eris.Wrapf(ErrNoTag, "path %v", path)
}
