// Package style holds the in-memory style document: layers, styles,
// feature-type-styles, rules and symbolizers, plus the expression and filter
// trees they carry. The tree is treated as read-only by every consumer.
package style

import (
	"fmt"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// LayerKind distinguishes layers that reference a named dataset from layers
// that may carry their own inline features.
type LayerKind string

const (
	LayerNamed LayerKind = "named"
	LayerUser  LayerKind = "user"
)

// Document is a complete style document.
type Document struct {
	Name   string
	Layers []*Layer
}

// Layer is one styled layer.
type Layer struct {
	ID     string
	Name   string
	Kind   LayerKind
	Styles []*Style

	// InlineFeatures is only meaningful on user layers.
	InlineFeatures *geojson.FeatureCollection
}

// HasInlineFeatures reports whether the layer embeds its own feature collection.
func (l *Layer) HasInlineFeatures() bool {
	return l != nil && l.Kind == LayerUser && l.InlineFeatures != nil
}

type Style struct {
	Name              string
	FeatureTypeStyles []*FeatureTypeStyle
}

type FeatureTypeStyle struct {
	Name  string
	Rules []*Rule
}

type Rule struct {
	Name        string
	Filter      Filter
	Symbolizers []*Symbolizer
}

// SymbolizerKind is the rendering instruction a symbolizer performs.
type SymbolizerKind string

const (
	SymbolizerPoint   SymbolizerKind = "point"
	SymbolizerLine    SymbolizerKind = "line"
	SymbolizerPolygon SymbolizerKind = "polygon"
	SymbolizerRaster  SymbolizerKind = "raster"
	SymbolizerText    SymbolizerKind = "text"
)

// Symbolizer is one rendering instruction with the expressions it evaluates.
type Symbolizer struct {
	Kind        SymbolizerKind
	Geometry    Expression
	Label       Expression
	Size        Expression
	Rotation    Expression
	Opacity     Expression
	Fill        Expression
	Stroke      Expression
	StrokeWidth Expression
	Parameters  []Parameter
}

// Parameter is a vendor option carried by a symbolizer.
type Parameter struct {
	Name  string
	Value Expression
}

// Symbolizer parameter names, in evaluation order.
const (
	ParamGeometry    = "geometry"
	ParamLabel       = "label"
	ParamSize        = "size"
	ParamRotation    = "rotation"
	ParamOpacity     = "opacity"
	ParamFill        = "fill"
	ParamStroke      = "stroke"
	ParamStrokeWidth = "stroke-width"
)

// NamedExpression pairs a symbolizer expression with its parameter name.
type NamedExpression struct {
	Name string
	Expr Expression
}

// Expressions returns the symbolizer's non-nil expressions in a fixed order:
// geometry, label, size, rotation, opacity, fill, stroke, stroke-width, then
// vendor parameters in declaration order.
func (s *Symbolizer) Expressions() []NamedExpression {
	if s == nil {
		return nil
	}
	all := []NamedExpression{
		{ParamGeometry, s.Geometry},
		{ParamLabel, s.Label},
		{ParamSize, s.Size},
		{ParamRotation, s.Rotation},
		{ParamOpacity, s.Opacity},
		{ParamFill, s.Fill},
		{ParamStroke, s.Stroke},
		{ParamStrokeWidth, s.StrokeWidth},
	}
	for _, p := range s.Parameters {
		all = append(all, NamedExpression{p.Name, p.Value})
	}

	out := all[:0]
	for _, ne := range all {
		if ne.Expr != nil {
			out = append(out, ne)
		}
	}
	return out
}

// ── Expressions ─────────────────────────────────────────────

// Expression is a property reference, a literal or a function call.
type Expression interface {
	expressionNode()
}

// Property references a feature attribute by name.
type Property struct {
	Name string
}

// Literal is a constant kept in its textual form.
type Literal struct {
	Value string
}

// Function is a call to a named function.
type Function struct {
	Name string
	Args []Expression
}

func (Property) expressionNode() {}
func (Literal) expressionNode()  {}
func (Function) expressionNode() {}

// Prop builds a property reference.
func Prop(name string) Property { return Property{Name: name} }

// Lit builds a literal from a Go value.
func Lit(v any) Literal {
	switch x := v.(type) {
	case string:
		return Literal{Value: x}
	case int:
		return Literal{Value: strconv.Itoa(x)}
	case int64:
		return Literal{Value: strconv.FormatInt(x, 10)}
	case float64:
		return Literal{Value: strconv.FormatFloat(x, 'f', -1, 64)}
	case bool:
		return Literal{Value: strconv.FormatBool(x)}
	default:
		return Literal{Value: fmt.Sprint(x)}
	}
}

// Call builds a function call.
func Call(name string, args ...Expression) Function {
	return Function{Name: name, Args: args}
}

// ── Filters ─────────────────────────────────────────────────

// Filter is a rule predicate.
type Filter interface {
	filterNode()
}

// CompareOp is a binary comparison operator.
type CompareOp string

const (
	OpEqual          CompareOp = "eq"
	OpNotEqual       CompareOp = "ne"
	OpLess           CompareOp = "lt"
	OpLessOrEqual    CompareOp = "le"
	OpGreater        CompareOp = "gt"
	OpGreaterOrEqual CompareOp = "ge"

	// Temporal binary operators
	OpBegins CompareOp = "begins"
	OpAfter  CompareOp = "after"
	OpBefore CompareOp = "before"
	OpDuring CompareOp = "during"
)

// Valid reports whether op is a known comparison operator.
func (op CompareOp) Valid() bool {
	switch op {
	case OpEqual, OpNotEqual, OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual,
		OpBegins, OpAfter, OpBefore, OpDuring:
		return true
	}
	return false
}

type Comparison struct {
	Op          CompareOp
	Left, Right Expression
}

type Between struct {
	Expr         Expression
	Lower, Upper Expression
}

type Like struct {
	Expr    Expression
	Pattern string
}

type IsNull struct {
	Expr Expression
}

// BBox tests a geometry property against a bounding box.
type BBox struct {
	Property string
	Bounds   orb.Bound
	CRS      string
}

// LogicOp combines several filters.
type LogicOp string

const (
	LogicAnd LogicOp = "and"
	LogicOr  LogicOp = "or"
)

type Logical struct {
	Op      LogicOp
	Filters []Filter
}

type Negation struct {
	Filter Filter
}

func (Comparison) filterNode() {}
func (Between) filterNode()    {}
func (Like) filterNode()       {}
func (IsNull) filterNode()     {}
func (BBox) filterNode()       {}
func (Logical) filterNode()    {}
func (Negation) filterNode()   {}

func Compare(op CompareOp, left, right Expression) Comparison {
	return Comparison{Op: op, Left: left, Right: right}
}

func And(filters ...Filter) Logical { return Logical{Op: LogicAnd, Filters: filters} }
func Or(filters ...Filter) Logical  { return Logical{Op: LogicOr, Filters: filters} }
func Not(f Filter) Negation         { return Negation{Filter: f} }
