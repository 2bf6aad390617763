// Package geometry classifies the default geometry of a feature source, either
// from a concrete geometry value or from the symbolizers of a style document.
package geometry

import (
	"strings"

	"github.com/paulmach/orb"

	"sldpreview/internal/domain"
	"sldpreview/internal/style"
)

// Kind is the classification of a default geometry field.
type Kind int

const (
	Unknown Kind = iota
	Point
	Line
	Polygon
	Raster
)

var kindNames = map[Kind]string{
	Unknown: "unknown",
	Point:   "point",
	Line:    "line",
	Polygon: "polygon",
	Raster:  "raster",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	*k = ParseKind(string(b))
	return nil
}

// ParseKind is the inverse of String. Unrecognized names map to Unknown.
func ParseKind(s string) Kind {
	for k, name := range kindNames {
		if strings.EqualFold(s, name) {
			return k
		}
	}
	return Unknown
}

// Tally counts symbolizers by the geometry they draw.
type Tally struct {
	Point   int `json:"point"`
	Line    int `json:"line"`
	Polygon int `json:"polygon"`
	Raster  int `json:"raster"`
}

// ClassifyByTally picks a kind from symbolizer counts using the fixed
// precedence Polygon > Line > Point > Raster.
func ClassifyByTally(t Tally) Kind {
	switch {
	case t.Polygon > 0:
		return Polygon
	case t.Line > 0:
		return Line
	case t.Point > 0:
		return Point
	case t.Raster > 0:
		return Raster
	}
	return Unknown
}

// TallyDocument counts the point, line, polygon and raster symbolizers of
// every layer. Text symbolizers do not count.
func TallyDocument(doc *style.Document) Tally {
	var t Tally
	doc.EachSymbolizer(func(_ *style.Layer, _ *style.Rule, sym *style.Symbolizer) {
		switch sym.Kind {
		case style.SymbolizerPoint:
			t.Point++
		case style.SymbolizerLine:
			t.Line++
		case style.SymbolizerPolygon:
			t.Polygon++
		case style.SymbolizerRaster:
			t.Raster++
		}
	})
	return t
}

// ClassifyDocument is ClassifyByTally over TallyDocument.
func ClassifyDocument(doc *style.Document) Kind {
	return ClassifyByTally(TallyDocument(doc))
}

// ClassifyByValue maps a concrete geometry value to its kind.
func ClassifyByValue(v any) Kind {
	switch v.(type) {
	case orb.Point, orb.MultiPoint:
		return Point
	case orb.LineString, orb.MultiLineString:
		return Line
	case orb.Ring, orb.Polygon, orb.MultiPolygon:
		return Polygon
	case Coverage, *Coverage:
		return Raster
	}
	return Unknown
}

// ClassifyByName maps a geometry type name as reported by a store
// (e.g. gpkg_geometry_columns, PostGIS geometry_columns) to its kind.
func ClassifyByName(name string) Kind {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "POINT", "MULTIPOINT":
		return Point
	case "LINESTRING", "MULTILINESTRING", "LINE", "MULTILINE":
		return Line
	case "POLYGON", "MULTIPOLYGON":
		return Polygon
	case "RASTER", "GRID":
		return Raster
	}
	return Unknown
}

// ClassifyByType maps a declared geometry field type to its kind.
func ClassifyByType(t domain.ScalarType) Kind {
	switch t {
	case domain.TypePoint, domain.TypeMultiPoint:
		return Point
	case domain.TypeLineString, domain.TypeMultiLineString:
		return Line
	case domain.TypePolygon, domain.TypeMultiPolygon:
		return Polygon
	}
	return Unknown
}

// Binding is the field type used for a synthesized geometry of the given kind.
func Binding(k Kind) domain.ScalarType {
	switch k {
	case Polygon:
		return domain.TypeMultiPolygon
	case Line:
		return domain.TypeLineString
	default:
		return domain.TypePoint
	}
}

// TypeOf returns the declared field type matching a geometry value.
func TypeOf(v any) domain.ScalarType {
	switch v.(type) {
	case orb.Point:
		return domain.TypePoint
	case orb.MultiPoint:
		return domain.TypeMultiPoint
	case orb.LineString:
		return domain.TypeLineString
	case orb.MultiLineString:
		return domain.TypeMultiLineString
	case orb.Ring, orb.Polygon:
		return domain.TypePolygon
	case orb.MultiPolygon:
		return domain.TypeMultiPolygon
	}
	return domain.TypeGeometry
}
