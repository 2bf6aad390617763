package datasource

import (
	"context"
	"fmt"

	"sldpreview/internal/domain"
	"sldpreview/internal/featurestore"
	"sldpreview/internal/geometry"
)

// InlineStrategy builds one descriptor per user layer that embeds a feature
// collection. Descriptors take the layer's ID.
type InlineStrategy struct{}

func NewInlineStrategy() *InlineStrategy { return &InlineStrategy{} }

func (s *InlineStrategy) Connect(ctx context.Context, req ConnectRequest) ([]*SourceDescriptor, error) {
	var out []*SourceDescriptor
	for _, layer := range req.Document.InlineLayers() {
		fc := layer.InlineFeatures
		store := featurestore.NewCollectionStore(layer.ID, fc, domain.DefaultCRS)

		kind := geometry.Unknown
		if len(fc.Features) > 0 && fc.Features[0] != nil {
			kind = geometry.ClassifyByValue(fc.Features[0].Geometry)
		}

		ft, err := store.Schema(ctx, layer.ID)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("inline layer %s: %w", layer.ID, err)
		}

		d := &SourceDescriptor{id: layer.ID}
		d.SetStore(store, ft, kind)
		d.PopulateFieldMap()
		out = append(out, d)
	}
	return out, nil
}
