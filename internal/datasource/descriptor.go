// Package datasource decides which feature source a style preview draws
// from: a synthesized one built from the document's own expressions, a real
// external store, or the feature collections embedded in user layers.
package datasource

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"sldpreview/internal/domain"
	"sldpreview/internal/featurestore"
	"sldpreview/internal/geometry"
)

// RasterField is the single field of a raster source's feature type.
const RasterField = "grid"

// SourceDescriptor bundles the schema, geometry kind and open store of one
// data source. It owns the store: Reset and the setters close it.
type SourceDescriptor struct {
	id                string
	typeName          string
	geometryFieldName string
	geometryKind      geometry.Kind
	featureType       *domain.FeatureType
	store             featurestore.Store
	raster            featurestore.RasterReader

	fieldNames []string
	fieldTypes map[string]domain.ScalarType
}

func NewSourceDescriptor() *SourceDescriptor {
	return &SourceDescriptor{id: uuid.NewString()}
}

func (d *SourceDescriptor) ID() string                         { return d.id }
func (d *SourceDescriptor) TypeName() string                   { return d.typeName }
func (d *SourceDescriptor) GeometryFieldName() string          { return d.geometryFieldName }
func (d *SourceDescriptor) GeometryKind() geometry.Kind        { return d.geometryKind }
func (d *SourceDescriptor) FeatureType() *domain.FeatureType   { return d.featureType }
func (d *SourceDescriptor) Store() featurestore.Store          { return d.store }
func (d *SourceDescriptor) Raster() featurestore.RasterReader { return d.raster }

// HasData reports whether the descriptor holds a store or a raster.
func (d *SourceDescriptor) HasData() bool {
	return d != nil && (d.store != nil || d.raster != nil)
}

// Reset closes any open store and clears every field except the id.
func (d *SourceDescriptor) Reset() {
	if d == nil {
		return
	}
	d.closeSources()
	d.typeName = ""
	d.geometryFieldName = ""
	d.geometryKind = geometry.Unknown
	d.featureType = nil
	d.fieldNames = nil
	d.fieldTypes = nil
}

func (d *SourceDescriptor) closeSources() {
	if d.store != nil {
		d.store.Close()
		d.store = nil
	}
	if d.raster != nil {
		d.raster.Close()
		d.raster = nil
	}
}

// SetStore replaces the source with a vector store, closing the previous one.
func (d *SourceDescriptor) SetStore(store featurestore.Store, ft *domain.FeatureType, kind geometry.Kind) {
	d.closeSources()
	d.store = store
	d.featureType = ft
	d.geometryKind = kind
	if ft != nil {
		d.typeName = ft.Name
		d.geometryFieldName = ft.GeometryField
	}
	d.fieldNames = nil
	d.fieldTypes = nil
}

// SetRaster replaces the source with a raster, closing the previous one.
func (d *SourceDescriptor) SetRaster(r featurestore.RasterReader) {
	d.closeSources()
	d.raster = r
	d.geometryKind = geometry.Raster
	d.geometryFieldName = RasterField
	d.typeName = RasterField
	d.featureType = &domain.FeatureType{
		Name:          RasterField,
		GeometryField: RasterField,
		Fields:        domain.FieldList{{Name: RasterField, Type: domain.TypeGeometry}},
	}
	d.fieldNames = nil
	d.fieldTypes = nil
}

// PopulateFieldMap indexes the feature type's fields by name.
func (d *SourceDescriptor) PopulateFieldMap() {
	d.fieldNames = nil
	d.fieldTypes = make(map[string]domain.ScalarType)
	if d.featureType == nil {
		return
	}
	for _, f := range d.featureType.Fields {
		d.fieldNames = append(d.fieldNames, f.Name)
		d.fieldTypes[f.Name] = f.Type
	}
}

// FieldNames returns the indexed field names in schema order.
func (d *SourceDescriptor) FieldNames() []string {
	return append([]string(nil), d.fieldNames...)
}

// FieldType returns the indexed type of a field.
func (d *SourceDescriptor) FieldType(name string) (domain.ScalarType, bool) {
	t, ok := d.fieldTypes[name]
	return t, ok
}

// Fields returns the feature type's fields, geometry included.
func (d *SourceDescriptor) Fields() domain.FieldList {
	if d == nil || d.featureType == nil {
		return nil
	}
	return d.featureType.Fields.Clone()
}

// Features reads every feature of the source. A raster yields one feature
// whose grid value is the coverage.
func (d *SourceDescriptor) Features(ctx context.Context) ([]domain.Feature, error) {
	return d.features(ctx, 0)
}

// FirstFeature reads the first feature, or nil when the source is empty.
func (d *SourceDescriptor) FirstFeature(ctx context.Context) (*domain.Feature, error) {
	features, err := d.features(ctx, 1)
	if err != nil || len(features) == 0 {
		return nil, err
	}
	return &features[0], nil
}

func (d *SourceDescriptor) features(ctx context.Context, limit int) ([]domain.Feature, error) {
	switch {
	case d == nil || !d.HasData():
		return nil, featurestore.ErrNoStore
	case d.raster != nil:
		return []domain.Feature{{ID: RasterField + ".1", Values: []any{d.raster.Coverage()}}}, nil
	}
	features, err := d.store.Features(ctx, d.typeName, limit)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", d.typeName, err)
	}
	return features, nil
}
