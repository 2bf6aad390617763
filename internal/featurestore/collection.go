package featurestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/paulmach/orb/geojson"

	"sldpreview/internal/domain"
	"sldpreview/internal/geometry"
)

// CollectionGeometryField is the geometry field name given to GeoJSON
// feature collections, which carry no name of their own.
const CollectionGeometryField = "geom"

// CollectionStore serves a GeoJSON feature collection as a single type.
type CollectionStore struct {
	mu       sync.RWMutex
	name     string
	crs      string
	schema   *domain.FeatureType
	features []domain.Feature
	closed   bool
}

// NewCollectionStore wraps fc. An empty crs leaves the schema without a
// reference system until ForceCRS is called.
func NewCollectionStore(name string, fc *geojson.FeatureCollection, crs string) *CollectionStore {
	schema := CollectionSchema(name, fc)
	return &CollectionStore{
		name:     name,
		crs:      crs,
		schema:   schema,
		features: collectionFeatures(schema, fc),
	}
}

// OpenGeoJSON loads a GeoJSON file. The type is named after the file. A legacy
// "crs" member, when present, sets the reference system.
func OpenGeoJSON(path string) (*CollectionStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no file given", ErrNoStore)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return NewCollectionStore(name, fc, legacyCRS(data)), nil
}

// legacyCRS reads the pre-RFC 7946 named "crs" member.
func legacyCRS(data []byte) string {
	var probe struct {
		CRS *struct {
			Type       string `json:"type"`
			Properties struct {
				Name string `json:"name"`
			} `json:"properties"`
		} `json:"crs"`
	}
	if json.Unmarshal(data, &probe) != nil || probe.CRS == nil {
		return ""
	}
	return NormalizeCRS(probe.CRS.Properties.Name)
}

// NormalizeCRS reduces OGC URN and CRS84 spellings to EPSG:<code>.
func NormalizeCRS(name string) string {
	name = strings.TrimSpace(name)
	upper := strings.ToUpper(name)
	switch {
	case name == "":
		return ""
	case strings.HasSuffix(upper, "CRS84"):
		return domain.DefaultCRS
	case strings.HasPrefix(upper, "URN:OGC:DEF:CRS:EPSG:"):
		parts := strings.Split(name, ":")
		return "EPSG:" + parts[len(parts)-1]
	}
	return name
}

// CollectionSchema derives a feature type from the first feature: its
// property keys in sorted order, numbers as Double and everything else as
// String, followed by the geometry field.
func CollectionSchema(name string, fc *geojson.FeatureCollection) *domain.FeatureType {
	ft := &domain.FeatureType{Name: name, GeometryField: CollectionGeometryField}
	geomType := domain.TypeGeometry

	if fc != nil && len(fc.Features) > 0 && fc.Features[0] != nil {
		first := fc.Features[0]
		keys := make([]string, 0, len(first.Properties))
		for k := range first.Properties {
			if k == CollectionGeometryField {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			ft.Fields = append(ft.Fields, domain.AttributeField{Name: k, Type: jsonValueType(first.Properties[k])})
		}
		if first.Geometry != nil {
			geomType = geometry.TypeOf(first.Geometry)
		}
	}
	ft.Fields = append(ft.Fields, domain.AttributeField{Name: CollectionGeometryField, Type: geomType})
	return ft
}

func jsonValueType(v any) domain.ScalarType {
	switch v.(type) {
	case float64, float32, int, int64, int32, json.Number:
		return domain.TypeDouble
	default:
		return domain.TypeString
	}
}

func collectionFeatures(ft *domain.FeatureType, fc *geojson.FeatureCollection) []domain.Feature {
	if fc == nil {
		return nil
	}
	out := make([]domain.Feature, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f == nil {
			continue
		}
		values := make([]any, len(ft.Fields))
		for j, field := range ft.Fields {
			if field.Name == ft.GeometryField {
				values[j] = f.Geometry
				continue
			}
			values[j] = f.Properties[field.Name]
		}
		id := fmt.Sprint(f.ID)
		if f.ID == nil {
			id = fmt.Sprintf("%s.%d", ft.Name, i+1)
		}
		out = append(out, domain.Feature{ID: id, Values: values})
	}
	return out
}

func (s *CollectionStore) ForceCRS(crs string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crs = crs
}

func (s *CollectionStore) TypeNames(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return []string{s.name}, nil
}

func (s *CollectionStore) Schema(_ context.Context, typeName string) (*domain.FeatureType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if typeName != s.name {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeName)
	}
	if s.crs == "" {
		return nil, ErrMissingCRS
	}
	cp := *s.schema
	cp.CRS = s.crs
	cp.Fields = s.schema.Fields.Clone()
	return &cp, nil
}

func (s *CollectionStore) Features(_ context.Context, typeName string, limit int) ([]domain.Feature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if typeName != s.name {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeName)
	}
	n := len(s.features)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.Feature, n)
	copy(out, s.features[:n])
	return out, nil
}

func (s *CollectionStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
