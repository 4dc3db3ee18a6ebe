package features

import (
	"strconv"

	"github.com/rotisserie/eris"
)

type cell struct {
	str string
	num float64
}

func zeroCell(t FieldType) cell {
	if t.Numeric() {
		return cell{str: "0"}
	}
	return cell{}
}

// Values holds one request's field values. It is not safe for concurrent
// use; create one per request.
type Values struct {
	reg   *Registry
	cells []cell
}

// Registry returns the registry the values are bound to.
func (v *Values) Registry() *Registry {
	return v.reg
}

func (v *Values) slot(name string, want FieldType) (int, error) {
	f, i, err := v.reg.Lookup(name)
	if err != nil {
		return -1, err
	}
	if f.Type != want {
		return -1, eris.Wrapf(ErrFieldType, "field %q is %s, not %s", name, f.Type, want)
	}
	return i, nil
}

// SetString sets a string field.
func (v *Values) SetString(name, value string) error {
	i, err := v.slot(name, String)
	if err != nil {
		return err
	}
	v.cells[i] = cell{str: value}
	return nil
}

// SetInt sets an int field.
func (v *Values) SetInt(name string, value int) error {
	i, err := v.slot(name, Int)
	if err != nil {
		return err
	}
	v.cells[i] = cell{str: strconv.Itoa(value), num: float64(value)}
	return nil
}

// SetFloat sets a float field.
func (v *Values) SetFloat(name string, value float64) error {
	i, err := v.slot(name, Float)
	if err != nil {
		return err
	}
	v.cells[i] = cell{str: strconv.FormatFloat(value, 'g', -1, 64), num: value}
	return nil
}

// Reset clears every field: numbers become zero and strings empty.
func (v *Values) Reset() {
	for i, f := range v.reg.fields {
		v.cells[i] = zeroCell(f.Type)
	}
}

// Clone returns an independent copy.
func (v *Values) Clone() *Values {
	out := &Values{reg: v.reg, cells: make([]cell, len(v.cells))}
	copy(out.cells, v.cells)
	return out
}
