// Package inference derives an attribute schema from the expressions of a
// style document, without any real dataset to consult.
package inference

import (
	"sldpreview/internal/domain"
	"sldpreview/internal/functions"
	"sldpreview/internal/style"
)

// Result is the outcome of one inference pass. Fields are in first-discovery
// order; geometry-valued attribute names are kept apart from Fields.
type Result struct {
	Fields         domain.FieldList `json:"fields"`
	GeometryFields []string         `json:"geometryFields"`
}

// ExpectedType is the type a symbolizer slot expects its expression to yield.
func ExpectedType(param string) domain.ScalarType {
	switch param {
	case style.ParamGeometry:
		return domain.TypeGeometry
	case style.ParamSize, style.ParamRotation, style.ParamOpacity, style.ParamStrokeWidth:
		return domain.TypeDouble
	default:
		return domain.TypeString
	}
}

// Inferrer runs inference passes against a function registry.
type Inferrer struct {
	funcs *functions.Registry
}

// New creates an Inferrer. A nil registry uses functions.Default().
func New(funcs *functions.Registry) *Inferrer {
	if funcs == nil {
		funcs = functions.Default()
	}
	return &Inferrer{funcs: funcs}
}

// Infer walks doc and returns the fields it references. The document is not
// modified; running Infer twice on the same document gives equal results.
func Infer(doc *style.Document) Result {
	return New(nil).Infer(doc)
}

func (in *Inferrer) Infer(doc *style.Document) Result {
	v := &visitor{funcs: in.funcs}
	doc.EachRule(func(_ *style.Layer, rule *style.Rule) {
		if rule.Filter != nil {
			v.filter(rule.Filter)
		}
		for _, sym := range rule.Symbolizers {
			v.symbolizer(sym)
		}
	})
	return Result{Fields: v.fields, GeometryFields: v.geometry}
}

// InferSymbolizer runs a pass over a single symbolizer.
func (in *Inferrer) InferSymbolizer(sym *style.Symbolizer) Result {
	v := &visitor{funcs: in.funcs}
	v.symbolizer(sym)
	return Result{Fields: v.fields, GeometryFields: v.geometry}
}

// ─────────────────────────────────────────────────────────────
// Visitor
// ─────────────────────────────────────────────────────────────

type visitor struct {
	funcs    *functions.Registry
	fields   domain.FieldList
	geometry []string
}

func (v *visitor) symbolizer(sym *style.Symbolizer) {
	if sym == nil {
		return
	}
	for _, ne := range sym.Expressions() {
		v.expr(ne.Expr, ExpectedType(ne.Name))
	}
}

// expr visits e in a position expecting the given type and returns the type
// e resolves to.
func (v *visitor) expr(e style.Expression, expected domain.ScalarType) domain.ScalarType {
	switch x := e.(type) {
	case style.Property:
		t, _ := v.property(x.Name, expected)
		return t
	case style.Literal:
		return domain.LiteralType(x.Value)
	case style.Function:
		sig, ok := v.funcs.Lookup(x.Name)
		for i, arg := range x.Args {
			param := domain.TypeString
			if ok {
				param = sig.ParamType(i)
			}
			v.expr(arg, param)
		}
		if !ok || sig.Returns == domain.TypeAny {
			return domain.TypeString
		}
		return sig.Returns
	}
	return domain.TypeAny
}

// property records a reference to name. It returns the field's type and
// whether this reference discovered it.
func (v *visitor) property(name string, expected domain.ScalarType) (domain.ScalarType, bool) {
	if name == "" {
		return domain.TypeAny, false
	}
	if expected.IsGeometry() {
		if v.hasGeometry(name) {
			return expected, false
		}
		if i := v.fields.Index(name); i >= 0 {
			v.fields = append(v.fields[:i], v.fields[i+1:]...)
		}
		v.geometry = append(v.geometry, name)
		return expected, true
	}
	if v.hasGeometry(name) {
		return domain.TypeGeometry, false
	}
	if f, ok := v.fields.Find(name); ok {
		return f.Type, false
	}

	t := expected
	if t == domain.TypeAny {
		t = domain.TypeString
	}
	v.fields = append(v.fields, domain.AttributeField{Name: name, Type: t})
	return t, true
}

func (v *visitor) hasGeometry(name string) bool {
	for _, g := range v.geometry {
		if g == name {
			return true
		}
	}
	return false
}

// operand visits one side of a comparison. Bare properties default to String.
func (v *visitor) operand(e style.Expression) (t domain.ScalarType, prop string, added bool) {
	if p, ok := e.(style.Property); ok {
		t, added = v.property(p.Name, domain.TypeString)
		return t, p.Name, added
	}
	return v.expr(e, domain.TypeString), "", false
}

// upgrade retypes a field discovered by the current comparison to the type
// the other side resolved to.
func (v *visitor) upgrade(name string, added bool, to domain.ScalarType) {
	if name == "" || !added || to == domain.TypeAny || to.IsGeometry() {
		return
	}
	v.fields.SetType(name, to)
}

func (v *visitor) filter(f style.Filter) {
	switch x := f.(type) {
	case style.Comparison:
		lt, lname, ladded := v.operand(x.Left)
		rt, rname, radded := v.operand(x.Right)
		if lname != "" && rname == "" {
			v.upgrade(lname, ladded, rt)
		}
		if rname != "" && lname == "" {
			v.upgrade(rname, radded, lt)
		}
	case style.Between:
		_, name, added := v.operand(x.Expr)
		lower := v.expr(x.Lower, domain.TypeString)
		upper := v.expr(x.Upper, domain.TypeString)
		v.upgrade(name, added, domain.Wider(lower, upper))
	case style.Like:
		v.expr(x.Expr, domain.TypeString)
	case style.IsNull:
		v.expr(x.Expr, domain.TypeString)
	case style.BBox:
		v.property(x.Property, domain.TypeGeometry)
	case style.Logical:
		for _, child := range x.Filters {
			v.filter(child)
		}
	case style.Negation:
		if x.Filter != nil {
			v.filter(x.Filter)
		}
	}
}
