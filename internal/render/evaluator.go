// Package render performs trial renders: it evaluates every expression of a
// symbolizer against a feature and reports the first value that the slot
// cannot use. Nothing is drawn.
package render

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"sldpreview/internal/domain"
	"sldpreview/internal/functions"
	"sldpreview/internal/geometry"
	"sldpreview/internal/inference"
	"sldpreview/internal/style"
)

// Evaluator evaluates symbolizer expressions.
type Evaluator struct {
	funcs *functions.Registry
}

// NewEvaluator creates an Evaluator. A nil registry uses functions.Default().
func NewEvaluator(funcs *functions.Registry) *Evaluator {
	if funcs == nil {
		funcs = functions.Default()
	}
	return &Evaluator{funcs: funcs}
}

// Render evaluates each expression of sym against f, whose values line up
// with ft. It returns an *Error for the first value a slot cannot use.
func (e *Evaluator) Render(ctx context.Context, ft *domain.FeatureType, f *domain.Feature, sym *style.Symbolizer) error {
	if sym == nil || f == nil {
		return nil
	}
	for _, ne := range sym.Expressions() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := e.eval(ne.Expr, inference.ExpectedType(ne.Name), ft, f); err != nil {
			return err
		}
	}
	return nil
}

// eval resolves expr and converts it to expected.
func (e *Evaluator) eval(expr style.Expression, expected domain.ScalarType, ft *domain.FeatureType, f *domain.Feature) (any, error) {
	switch x := expr.(type) {
	case style.Property:
		v, _ := f.Value(ft, x.Name)
		return coerce(v, expected, x.Name)
	case style.Literal:
		return coerce(x.Value, expected, "")
	case style.Function:
		sig, known := e.funcs.Lookup(x.Name)
		for i, arg := range x.Args {
			want := domain.TypeString
			if known {
				want = sig.ParamType(i)
			}
			if _, err := e.eval(arg, want, ft, f); err != nil {
				return nil, err
			}
		}
		returns := domain.TypeString
		if known && sig.Returns != domain.TypeAny {
			returns = sig.Returns
		}
		return coerce(zeroValue(returns), expected, "")
	case nil:
		return nil, nil
	}
	return nil, &Error{Kind: KindUnknown, Cause: fmt.Errorf("unsupported expression %T", expr)}
}

// zeroValue stands in for a function result of type t.
func zeroValue(t domain.ScalarType) any {
	switch {
	case t.IsNumeric():
		return 0.0
	case t.IsGeometry():
		return geometry.ExamplePoint()
	}
	return ""
}

// coerce converts v to expected. Nil values are accepted everywhere.
func coerce(v any, expected domain.ScalarType, field string) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch {
	case expected.IsNumeric():
		return toNumber(v, field)
	case expected.IsGeometry():
		if g, ok := v.(orb.Geometry); ok {
			return g, nil
		}
		if _, ok := v.(*geometry.Coverage); ok {
			return v, nil
		}
		return nil, &Error{Kind: KindGeometry, Field: field, Value: fmt.Sprint(v)}
	}
	return v, nil
}

func toNumber(v any, field string) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return numberFromText(n.String(), field)
	case string:
		return numberFromText(n, field)
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	}
	return numberFromText(fmt.Sprint(v), field)
}

func numberFromText(s, field string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, &Error{Kind: KindNumberDecode, Field: field, Value: s, Cause: err}
	}
	return f, nil
}
