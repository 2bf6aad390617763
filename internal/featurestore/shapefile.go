package featurestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"

	"sldpreview/internal/domain"
)

// ShapefileGeometryField names the geometry of a shapefile, which the format
// leaves unnamed.
const ShapefileGeometryField = "the_geom"

// ShapefileStore serves an ESRI shapefile as a single type. The reference
// system comes from the .prj sidecar; without one Schema reports
// ErrMissingCRS until ForceCRS is called.
type ShapefileStore struct {
	*MemoryStore

	mu  sync.RWMutex
	crs string
}

// OpenShapefile reads every record of path into memory. The type is named
// after the file.
func OpenShapefile(path string) (*ShapefileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no file given", ErrNoStore)
	}
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer r.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	ft := shapefileSchema(name, r)

	mem := NewMemoryStore()
	if err := mem.CreateSchema(ft); err != nil {
		return nil, err
	}
	attrs := r.Fields()
	for r.Next() {
		n, shape := r.Shape()
		values := make([]any, len(ft.Fields))
		for i := range attrs {
			values[i] = dbfValue(ft.Fields[i].Type, r.ReadAttribute(n, i))
		}
		values[len(attrs)] = shapeGeometry(shape)
		if err := mem.AddFeature(domain.Feature{ID: fmt.Sprintf("%s.%d", name, n+1), Values: values}); err != nil {
			return nil, err
		}
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return &ShapefileStore{MemoryStore: mem, crs: prjCRS(path)}, nil
}

func (s *ShapefileStore) ForceCRS(crs string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crs = crs
}

func (s *ShapefileStore) Schema(ctx context.Context, typeName string) (*domain.FeatureType, error) {
	ft, err := s.MemoryStore.Schema(ctx, typeName)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.crs == "" {
		return nil, ErrMissingCRS
	}
	ft.CRS = s.crs
	return ft, nil
}

// ── Schema and values ───────────────────────────────────────

func shapefileSchema(name string, r *shp.Reader) *domain.FeatureType {
	ft := &domain.FeatureType{Name: name, GeometryField: ShapefileGeometryField}
	for _, f := range r.Fields() {
		ft.Fields = append(ft.Fields, domain.AttributeField{Name: f.String(), Type: dbfType(f)})
	}
	ft.Fields = append(ft.Fields, domain.AttributeField{Name: ShapefileGeometryField, Type: shapeType(r.GeometryType)})
	return ft
}

// dbfType maps a dBase column to an attribute type. Numeric columns without
// decimals are integers, Long once they no longer fit nine digits.
func dbfType(f shp.Field) domain.ScalarType {
	switch f.Fieldtype {
	case 'N':
		if f.Precision > 0 {
			return domain.TypeDouble
		}
		if f.Size > 9 {
			return domain.TypeLong
		}
		return domain.TypeInteger
	case 'F':
		return domain.TypeDouble
	}
	return domain.TypeString
}

func dbfValue(t domain.ScalarType, raw string) any {
	raw = strings.TrimSpace(strings.Trim(raw, "\x00"))
	if raw == "" {
		return nil
	}
	switch t {
	case domain.TypeInteger:
		if n, err := strconv.ParseInt(raw, 10, 32); err == nil {
			return int32(n)
		}
	case domain.TypeLong:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
	case domain.TypeDouble:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	default:
		return raw
	}
	return nil
}

func shapeType(t shp.ShapeType) domain.ScalarType {
	switch t {
	case shp.POINT, shp.POINTZ, shp.POINTM:
		return domain.TypePoint
	case shp.MULTIPOINT, shp.MULTIPOINTZ, shp.MULTIPOINTM:
		return domain.TypeMultiPoint
	case shp.POLYLINE, shp.POLYLINEZ, shp.POLYLINEM:
		return domain.TypeMultiLineString
	case shp.POLYGON, shp.POLYGONZ, shp.POLYGONM:
		return domain.TypeMultiPolygon
	}
	return domain.TypeGeometry
}

// shapeGeometry converts a record to orb, dropping Z and M. Null shapes are nil.
func shapeGeometry(s shp.Shape) orb.Geometry {
	switch g := s.(type) {
	case *shp.Point:
		return orb.Point{g.X, g.Y}
	case *shp.PointZ:
		return orb.Point{g.X, g.Y}
	case *shp.PointM:
		return orb.Point{g.X, g.Y}
	case *shp.MultiPoint:
		return multiPoint(g.Points)
	case *shp.MultiPointZ:
		return multiPoint(g.Points)
	case *shp.MultiPointM:
		return multiPoint(g.Points)
	case *shp.PolyLine:
		return multiLine(g.Parts, g.Points)
	case *shp.PolyLineZ:
		return multiLine(g.Parts, g.Points)
	case *shp.PolyLineM:
		return multiLine(g.Parts, g.Points)
	case *shp.Polygon:
		return multiPolygon(g.Parts, g.Points)
	case *shp.PolygonZ:
		return multiPolygon(g.Parts, g.Points)
	case *shp.PolygonM:
		return multiPolygon(g.Parts, g.Points)
	}
	return nil
}

func multiPoint(points []shp.Point) orb.MultiPoint {
	out := make(orb.MultiPoint, len(points))
	for i, p := range points {
		out[i] = orb.Point{p.X, p.Y}
	}
	return out
}

// splitParts cuts the point list at each part offset.
func splitParts(parts []int32, points []shp.Point) [][]orb.Point {
	out := make([][]orb.Point, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start > end || int(end) > len(points) {
			continue
		}
		part := make([]orb.Point, 0, end-start)
		for _, p := range points[start:end] {
			part = append(part, orb.Point{p.X, p.Y})
		}
		out = append(out, part)
	}
	return out
}

func multiLine(parts []int32, points []shp.Point) orb.MultiLineString {
	var out orb.MultiLineString
	for _, part := range splitParts(parts, points) {
		out = append(out, orb.LineString(part))
	}
	return out
}

// multiPolygon groups rings: a clockwise ring starts a polygon, the
// counter-clockwise rings after it are its holes.
func multiPolygon(parts []int32, points []shp.Point) orb.MultiPolygon {
	var out orb.MultiPolygon
	for _, part := range splitParts(parts, points) {
		ring := orb.Ring(part)
		if ring.Orientation() == orb.CCW && len(out) > 0 {
			out[len(out)-1] = append(out[len(out)-1], ring)
			continue
		}
		out = append(out, orb.Polygon{ring})
	}
	return out
}

// ── Projection sidecar ──────────────────────────────────────

var (
	prjAuthority = regexp.MustCompile(`AUTHORITY\["EPSG",\s*"?(\d+)"?\]`)
	prjWGS84     = regexp.MustCompile(`^GEOGCS\["(GCS_WGS_1984|WGS 84|WGS84)"`)
)

// prjCRS reads the .prj next to path. The last EPSG authority in the WKT
// belongs to the outermost system; an ESRI WGS84 definition without one
// maps to EPSG:4326. Anything else yields "".
func prjCRS(path string) string {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	data, err := os.ReadFile(base + ".prj")
	if err != nil {
		return ""
	}
	wkt := strings.TrimSpace(string(data))
	if m := prjAuthority.FindAllStringSubmatch(wkt, -1); len(m) > 0 {
		return "EPSG:" + m[len(m)-1][1]
	}
	if prjWGS84.MatchString(wkt) {
		return domain.DefaultCRS
	}
	return ""
}
