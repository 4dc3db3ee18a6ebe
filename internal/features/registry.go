// Package features renders request-scoped field values into the numeric
// vectors a scoring model consumes.
package features

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// Sentinel errors.
var (
	ErrUnknownField = eris.New("features: unknown field")
	ErrUnknownType  = eris.New("features: unknown transform type")
	ErrInvalidSpec  = eris.New("features: invalid transform spec")
	ErrFieldType    = eris.New("features: field type mismatch")
	ErrDuplicate    = eris.New("features: duplicate field name")
)

// FieldType is the value type of a registered field.
type FieldType int

const (
	String FieldType = iota
	Int
	Float
)

func (t FieldType) String() string {
	switch t {
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// Numeric reports whether the field holds a number.
func (t FieldType) Numeric() bool {
	return t == Int || t == Float
}

// Field is a named, typed column.
type Field struct {
	Name string
	Type FieldType
}

// ScoreField is the float field the engine sets to the observed or default
// score before rendering.
const ScoreField = "user_extlba"

// BaseFields are the bid-request fields the multiplier models read.
var BaseFields = []Field{
	{"gender", String},
	{"carrier", String},
	{"device", String},
	{"device_make", String},
	{"device_model", String},
	{"hour", String},
	{"state", String},
	{"zip", String},
	{"os", String},
	{"bundle", String},
	{"pub_id", Int},
	{"age", Int},
	{"sconf", Int},
	{"device_year", Int},
	{"lat", Float},
	{"lon", Float},
	{"bid_floor", Float},
	{ScoreField, Float},
}

// CTRFields are the click-through model columns.
var CTRFields = []Field{
	{"ctr_campaign_id", String},
	{"ctr_adgroup_id", String},
	{"ctr_creative_id", String},
	{"ctr_publisher_id", String},
	{"ctr_traffic_name", String},
	{"ctr_age", String},
	{"ctr_gender", String},
	{"ctr_banner_size", String},
	{"ctr_os", String},
	{"ctr_carrier", String},
	{"ctr_pub_type", String},
	{"ctr_device_type", String},
	{"ctr_creative_type", String},
	{"ctr_adomain", String},
	{"ctr_uid_type", String},
	{"ctr_device_make", String},
	{"ctr_device_model", String},
	{"ctr_device_year", String},
	{"ctr_isp", String},
	{"ctr_hour", String},
	{"ctr_sic", String},
	{"ctr_dt", String},
	{"ctr_bundle", String},
	{"ctr_sl_adjusted_confidence", Int},
}

// WinRateFields are the win-rate model columns.
var WinRateFields = []Field{
	{"wr_uid_type", String},
	{"wr_device_type", String},
	{"wr_os", String},
	{"wr_device_make", String},
	{"wr_bundle", String},
	{"wr_banner_size", String},
	{"wr_user_gender", String},
	{"wr_pub_bid_rate", String},
	{"wr_isp", String},
	{"wr_adomain", String},
	{"wr_device_model", String},
	{"wr_hour", Int},
	{"wr_sl_adjusted_confidence", Int},
	{"wr_weekday", Int},
}

// DefaultFields is the field set shared by every bundled model.
var DefaultFields = concatFields(BaseFields, CTRFields, WinRateFields)

func concatFields(groups ...[]Field) []Field {
	var out []Field
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// Registry is an immutable set of uniquely named fields.
type Registry struct {
	fields []Field
	index  map[string]int
}

// NewRegistry builds a registry, rejecting duplicate names.
func NewRegistry(fields []Field) (*Registry, error) {
	r := &Registry{
		fields: make([]Field, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	copy(r.fields, fields)
	for i, f := range fields {
		if f.Name == "" {
			return nil, eris.Wrapf(ErrInvalidSpec, "field %d has no name", i)
		}
		if _, ok := r.index[f.Name]; ok {
			return nil, eris.Wrapf(ErrDuplicate, "field %q", f.Name)
		}
		r.index[f.Name] = i
	}
	return r, nil
}

// DefaultRegistry returns a registry over DefaultFields.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultFields)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the field and its position.
func (r *Registry) Lookup(name string) (Field, int, error) {
	i, ok := r.index[name]
	if !ok {
		return Field{}, -1, eris.Wrapf(ErrUnknownField, "field %q", name)
	}
	return r.fields[i], i, nil
}

// Len returns the number of registered fields.
func (r *Registry) Len() int {
	return len(r.fields)
}

// Fields returns a copy of the registered fields in order.
func (r *Registry) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// NewValues returns a zeroed value set bound to r.
func (r *Registry) NewValues() *Values {
	v := &Values{reg: r, cells: make([]cell, len(r.fields))}
	v.Reset()
	return v
}
