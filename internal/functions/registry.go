// Package functions declares the parameter and return types of the filter
// functions a style document may call.
package functions

import (
	"strings"
	"sync"

	"sldpreview/internal/domain"
)

// Signature is the declared shape of a function. When Variadic is set the
// last parameter type repeats for any further arguments.
type Signature struct {
	Name     string
	Params   []domain.ScalarType
	Variadic bool
	Returns  domain.ScalarType
}

// ParamType returns the declared type of argument i, or TypeAny when the
// function takes no such argument.
func (s Signature) ParamType(i int) domain.ScalarType {
	switch {
	case i < len(s.Params):
		return s.Params[i]
	case s.Variadic && len(s.Params) > 0:
		return s.Params[len(s.Params)-1]
	}
	return domain.TypeAny
}

// Registry maps function names (case-insensitive) to signatures.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Signature
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Signature)}
}

func (r *Registry) Register(sig Signature) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[strings.ToLower(sig.Name)] = sig
}

func (r *Registry) Lookup(name string) (Signature, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sig, ok := r.funcs[strings.ToLower(name)]
	return sig, ok
}

// Names returns the registered function names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for _, sig := range r.funcs {
		names = append(names, sig.Name)
	}
	return names
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the registry of built-in functions.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = NewRegistry()
		for _, sig := range builtins {
			defaultReg.Register(sig)
		}
	})
	return defaultReg
}

const (
	str  = domain.TypeString
	i32  = domain.TypeInteger
	i64  = domain.TypeLong
	f64  = domain.TypeDouble
	geom = domain.TypeGeometry
	pt   = domain.TypePoint
	anyT = domain.TypeAny
)

func sig(name string, returns domain.ScalarType, params ...domain.ScalarType) Signature {
	return Signature{Name: name, Params: params, Returns: returns}
}

func variadic(name string, returns domain.ScalarType, params ...domain.ScalarType) Signature {
	return Signature{Name: name, Params: params, Variadic: true, Returns: returns}
}

var builtins = []Signature{
	// ── String ──────────────────────────────────────────────
	sig("strConcat", str, str, str),
	sig("strLength", i32, str),
	sig("strToUpperCase", str, str),
	sig("strToLowerCase", str, str),
	sig("strTrim", str, str),
	sig("strCapitalize", str, str),
	sig("strSubstring", str, str, i32, i32),
	sig("strSubstringStart", str, str, i32),
	sig("strReplace", str, str, str, str, anyT),
	sig("strIndexOf", i32, str, str),
	sig("strAbbreviate", str, str, i32, i32, str),
	sig("numberFormat", str, str, f64),
	sig("dateFormat", str, str, str),
	sig("env", str, str),

	// ── Conversion ──────────────────────────────────────────
	sig("parseInt", i32, str),
	sig("parseLong", i64, str),
	sig("parseDouble", f64, str),

	// ── Math ────────────────────────────────────────────────
	sig("abs", f64, f64),
	sig("ceil", f64, f64),
	sig("floor", f64, f64),
	sig("round", i32, f64),
	sig("sqrt", f64, f64),
	sig("toDegrees", f64, f64),
	sig("toRadians", f64, f64),
	variadic("max", f64, f64),
	variadic("min", f64, f64),

	// ── Classification ──────────────────────────────────────
	variadic("Interpolate", f64, f64, anyT),
	variadic("Categorize", str, f64, anyT),
	variadic("Recode", str, str, anyT),

	// ── Geometry ────────────────────────────────────────────
	sig("area", f64, geom),
	sig("geomLength", f64, geom),
	sig("centroid", pt, geom),
	sig("interiorPoint", pt, geom),
	sig("startPoint", pt, geom),
	sig("endPoint", pt, geom),
	sig("vertices", domain.TypeMultiPoint, geom),
	sig("boundary", geom, geom),
	sig("buffer", geom, geom, f64),
	sig("convexHull", geom, geom),
	sig("startAngle", f64, geom),
	sig("endAngle", f64, geom),
}
