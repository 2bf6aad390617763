package datasource

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"sldpreview/internal/domain"
	"sldpreview/internal/geometry"
	"sldpreview/internal/inference"
	"sldpreview/internal/sample"
)

const (
	// InternalTypeName names synthesized feature types.
	InternalTypeName = "MEMORY"
	// DefaultGeometryField is used when the document names no geometry.
	DefaultGeometryField = "geom"
)

// InternalStrategy synthesizes a source from the document itself. It never
// touches a real store.
type InternalStrategy struct {
	Inferrer *inference.Inferrer
}

func NewInternalStrategy(inf *inference.Inferrer) *InternalStrategy {
	if inf == nil {
		inf = inference.New(nil)
	}
	return &InternalStrategy{Inferrer: inf}
}

func (s *InternalStrategy) Connect(ctx context.Context, req ConnectRequest) ([]*SourceDescriptor, error) {
	if req.Document == nil {
		return nil, nil
	}

	result := s.Inferrer.Infer(req.Document)
	fields := req.Fields.Clone()
	if len(fields) == 0 {
		fields = result.Fields
	}

	geomName := DefaultGeometryField
	if n := len(result.GeometryFields); n > 0 {
		geomName = result.GeometryFields[n-1]
	}
	kind := geometry.ClassifyDocument(req.Document)

	ft := &domain.FeatureType{
		Name:          InternalTypeName,
		CRS:           domain.DefaultCRS,
		GeometryField: geomName,
	}
	for _, f := range fields {
		if f.Type.IsGeometry() || f.Name == geomName {
			continue
		}
		ft.Fields = append(ft.Fields, domain.AttributeField{Name: f.Name, Type: f.Type})
	}
	ft.Fields = append(ft.Fields, domain.AttributeField{Name: geomName, Type: geometry.Binding(kind)})

	// user-entered values win over stored samples
	values := append(append([]domain.AttributeField(nil), req.Values...), fieldValues(fields)...)
	built, err := sample.Build(ft, values)
	if err != nil {
		return nil, fmt.Errorf("internal source: %w", err)
	}

	d := NewSourceDescriptor()
	d.SetStore(built.Store, built.FeatureType, kind)
	d.PopulateFieldMap()

	log.Debug().Int("fields", len(ft.Fields)).Str("geometry", geomName).Stringer("kind", kind).Msg("internal source built")
	return []*SourceDescriptor{d}, nil
}

// fieldValues keeps the fields that carry a value.
func fieldValues(fields domain.FieldList) []domain.AttributeField {
	var out []domain.AttributeField
	for _, f := range fields {
		if f.Value != nil {
			out = append(out, f)
		}
	}
	return out
}
