// Package sample synthesizes the single example feature a preview renders
// when no real data source is connected.
package sample

import (
	"fmt"
	"strings"

	"sldpreview/internal/domain"
	"sldpreview/internal/featurestore"
	"sldpreview/internal/geometry"
)

// FeatureID is the id of the synthesized feature.
const FeatureID = "1234"

// Result is a synthesized feature type with its one feature, held in a
// memory store.
type Result struct {
	FeatureType  *domain.FeatureType
	Feature      *domain.Feature
	Store        *featurestore.MemoryStore
	GeometryKind geometry.Kind
}

// Build synthesizes one feature for ft. Values in existing, matched by field
// name, are used in place of placeholders. A nil ft gives a nil result.
func Build(ft *domain.FeatureType, existing []domain.AttributeField) (*Result, error) {
	if ft == nil {
		return nil, nil
	}

	kind := geometry.ClassifyByType(ft.GeometryType())
	supplied := make(map[string]any, len(existing))
	for _, f := range existing {
		if f.Value != nil {
			supplied[f.Name] = f.Value
		}
	}

	values := make([]any, len(ft.Fields))
	for i, field := range ft.Fields {
		if field.Name == ft.GeometryField || field.Type.IsGeometry() {
			values[i] = geometry.Example(kind)
			continue
		}
		values[i] = PlaceholderValue(i, field.Name, field.Type, supplied[field.Name])
	}

	store := featurestore.NewMemoryStore()
	if err := store.CreateSchema(ft); err != nil {
		return nil, fmt.Errorf("sample schema: %w", err)
	}
	feature := domain.Feature{ID: FeatureID, Values: values}
	if err := store.AddFeature(feature); err != nil {
		store.Close()
		return nil, fmt.Errorf("sample feature: %w", err)
	}

	return &Result{
		FeatureType:  ft,
		Feature:      &feature,
		Store:        store,
		GeometryKind: kind,
	}, nil
}

// PlaceholderValue returns the value for the field at index. A supplied value
// wins, except a blank one for a String field. Otherwise String fields get
// their own name and numeric fields get their index.
func PlaceholderValue(index int, name string, t domain.ScalarType, supplied any) any {
	if supplied != nil {
		s, isString := supplied.(string)
		if !isString || t != domain.TypeString || strings.TrimSpace(s) != "" {
			return supplied
		}
	}

	switch t {
	case domain.TypeInteger:
		return int32(index)
	case domain.TypeLong:
		return int64(index)
	case domain.TypeShort:
		return int16(index)
	case domain.TypeFloat:
		return float32(index)
	case domain.TypeDouble:
		return float64(index)
	default:
		return name
	}
}
