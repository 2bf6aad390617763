package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ScalarType is the declared type of a feature attribute.
type ScalarType string

const (
	TypeString  ScalarType = "String"
	TypeInteger ScalarType = "Integer"
	TypeLong    ScalarType = "Long"
	TypeShort   ScalarType = "Short"
	TypeFloat   ScalarType = "Float"
	TypeDouble  ScalarType = "Double"

	// Geometry subkinds
	TypeGeometry        ScalarType = "Geometry"
	TypePoint           ScalarType = "Point"
	TypeMultiPoint      ScalarType = "MultiPoint"
	TypeLineString      ScalarType = "LineString"
	TypeMultiLineString ScalarType = "MultiLineString"
	TypePolygon         ScalarType = "Polygon"
	TypeMultiPolygon    ScalarType = "MultiPolygon"
)

// TypeAny is used where no expected type is known.
const TypeAny ScalarType = ""

var scalarTypes = []ScalarType{
	TypeString, TypeInteger, TypeLong, TypeShort, TypeFloat, TypeDouble,
	TypeGeometry, TypePoint, TypeMultiPoint, TypeLineString,
	TypeMultiLineString, TypePolygon, TypeMultiPolygon,
}

// ParseScalarType matches s case-insensitively against the known type
// names. An empty string yields TypeAny.
func ParseScalarType(s string) (ScalarType, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TypeAny, nil
	}
	for _, t := range scalarTypes {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return TypeAny, fmt.Errorf("unknown attribute type %q", s)
}

func (t ScalarType) IsGeometry() bool {
	switch t {
	case TypeGeometry, TypePoint, TypeMultiPoint, TypeLineString,
		TypeMultiLineString, TypePolygon, TypeMultiPolygon:
		return true
	}
	return false
}

func (t ScalarType) IsInteger() bool {
	return t == TypeInteger || t == TypeLong || t == TypeShort
}

func (t ScalarType) IsReal() bool {
	return t == TypeFloat || t == TypeDouble
}

func (t ScalarType) IsNumeric() bool {
	return t.IsInteger() || t.IsReal()
}

// numericRank orders numeric types from narrowest to widest.
var numericRank = map[ScalarType]int{
	TypeShort:   1,
	TypeInteger: 2,
	TypeLong:    3,
	TypeFloat:   4,
	TypeDouble:  5,
}

// Wider returns the wider of two types. Numeric types widen along
// Short < Integer < Long < Float < Double; a concrete type beats String and
// String beats TypeAny.
func Wider(a, b ScalarType) ScalarType {
	ra, aNum := numericRank[a]
	rb, bNum := numericRank[b]
	switch {
	case aNum && bNum:
		if rb > ra {
			return b
		}
		return a
	case aNum:
		return a
	case bNum:
		return b
	case a == TypeAny:
		return b
	default:
		return a
	}
}

// LiteralType guesses the type of a literal written as text: a 32-bit
// integer first, then a floating point number, falling back to String.
func LiteralType(s string) ScalarType {
	s = strings.TrimSpace(s)
	if _, err := strconv.ParseInt(s, 10, 32); err == nil {
		return TypeInteger
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return TypeDouble
	}
	return TypeString
}

// CoerceValue converts a decoded JSON number, or numeric text, to the Go
// type of t. Other values pass through unchanged.
func CoerceValue(t ScalarType, v any) any {
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case string:
		if !t.IsNumeric() {
			return v
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return v
		}
		n = f
	default:
		return v
	}
	switch t {
	case TypeInteger:
		return int32(n)
	case TypeLong:
		return int64(n)
	case TypeShort:
		return int16(n)
	case TypeFloat:
		return float32(n)
	}
	return n
}

// AllowedFor reports whether an attribute of type t can feed a control that
// expects values of type expected.
func (t ScalarType) AllowedFor(expected ScalarType) bool {
	switch {
	case expected == TypeAny:
		return true
	case expected == TypeString:
		return !t.IsGeometry()
	case expected.IsReal():
		return t.IsNumeric()
	case expected.IsInteger():
		return t.IsInteger()
	case expected.IsGeometry():
		return t.IsGeometry()
	}
	return t == expected
}

// ─────────────────────────────────────────────────────────────
// Fields
// ─────────────────────────────────────────────────────────────

// AttributeField is one named, typed attribute with an optional example value.
type AttributeField struct {
	Name  string     `json:"name"`
	Type  ScalarType `json:"type"`
	Value any        `json:"value,omitempty"`
}

// FieldList is an ordered list of fields with unique names.
type FieldList []AttributeField

// Index returns the position of the named field or -1.
func (l FieldList) Index(name string) int {
	for i := range l {
		if l[i].Name == name {
			return i
		}
	}
	return -1
}

func (l FieldList) Find(name string) (AttributeField, bool) {
	if i := l.Index(name); i >= 0 {
		return l[i], true
	}
	return AttributeField{}, false
}

func (l FieldList) Names() []string {
	names := make([]string, len(l))
	for i, f := range l {
		names[i] = f.Name
	}
	return names
}

func (l FieldList) Clone() FieldList {
	if l == nil {
		return nil
	}
	out := make(FieldList, len(l))
	copy(out, l)
	return out
}

// SetType changes the type of the named field. Returns false if absent.
func (l FieldList) SetType(name string, t ScalarType) bool {
	i := l.Index(name)
	if i < 0 {
		return false
	}
	l[i].Type = t
	return true
}

// Add appends a field, replacing the type and value of an existing field
// with the same name.
func (l FieldList) Add(f AttributeField) FieldList {
	if i := l.Index(f.Name); i >= 0 {
		l[i] = f
		return l
	}
	return append(l, f)
}

// ─────────────────────────────────────────────────────────────
// Feature types and features
// ─────────────────────────────────────────────────────────────

// DefaultCRS is applied to synthesized sources and to external schemas that
// arrive without a reference system.
const DefaultCRS = "EPSG:4326"

// FeatureType describes the attributes of a feature collection. Fields
// include the geometry field, at the position its store reports it.
type FeatureType struct {
	Name          string    `json:"name"`
	CRS           string    `json:"crs"`
	GeometryField string    `json:"geometryField"`
	Fields        FieldList `json:"fields"`
}

// GeometryType returns the declared type of the default geometry field.
func (ft *FeatureType) GeometryType() ScalarType {
	if ft == nil {
		return TypeAny
	}
	if f, ok := ft.Fields.Find(ft.GeometryField); ok {
		return f.Type
	}
	return TypeAny
}

// Feature is one row of a feature collection. Values line up with the
// owning FeatureType's Fields.
type Feature struct {
	ID     string `json:"id"`
	Values []any  `json:"values"`
}

// Value returns the value of the named attribute.
func (f *Feature) Value(ft *FeatureType, name string) (any, bool) {
	if f == nil || ft == nil {
		return nil, false
	}
	i := ft.Fields.Index(name)
	if i < 0 || i >= len(f.Values) {
		return nil, false
	}
	return f.Values[i], true
}
