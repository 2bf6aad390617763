package render

import (
	"fmt"
)

// Kind classifies a render failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNumberDecode: a numeric slot received text that is not a number.
	KindNumberDecode
	// KindGeometry: a geometry slot received a value that is not a geometry.
	KindGeometry
	// KindFunction: a function call could not be evaluated.
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindNumberDecode:
		return "number-decode"
	case KindGeometry:
		return "geometry"
	case KindFunction:
		return "function"
	}
	return "unknown"
}

// Error is a failed trial render. Field names the attribute whose value
// caused the failure, when one did.
type Error struct {
	Kind  Kind
	Field string
	Value string
	Cause error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNumberDecode:
		if e.Field != "" {
			return fmt.Sprintf("field %q: For input string: %q", e.Field, e.Value)
		}
		return fmt.Sprintf("For input string: %q", e.Value)
	case KindGeometry:
		return fmt.Sprintf("field %q: not a geometry: %s", e.Field, e.Value)
	}
	if e.Cause != nil {
		return fmt.Sprintf("render %s: %v", e.Kind, e.Cause)
	}
	return "render " + e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error of the same Kind, so errors.Is(err,
// &render.Error{Kind: render.KindNumberDecode}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}
