package datasource

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"sldpreview/internal/domain"
	"sldpreview/internal/featurestore"
	"sldpreview/internal/geometry"
)

// ExternalStrategy connects to the real store named by the connection
// properties: a vector store first, else a raster.
type ExternalStrategy struct {
	OpenVector func(ctx context.Context, props domain.ConnectionProperties) (featurestore.Store, error)
	OpenRaster func(path string) (featurestore.RasterReader, error)
	Reporter   ErrorReporter
}

func NewExternalStrategy(reporter ErrorReporter) *ExternalStrategy {
	if reporter == nil {
		reporter = LogReporter{}
	}
	return &ExternalStrategy{
		OpenVector: featurestore.OpenVector,
		OpenRaster: featurestore.OpenRaster,
		Reporter:   reporter,
	}
}

// Connect always returns one descriptor. When neither a vector store nor a
// raster can be opened the failure is reported and the descriptor is empty.
func (s *ExternalStrategy) Connect(ctx context.Context, req ConnectRequest) ([]*SourceDescriptor, error) {
	props := req.Properties.Clone()
	if !props.HasPassword() {
		props.SetPassword(domain.DummyPassword)
	}

	d := NewSourceDescriptor()

	vecErr := s.connectVector(ctx, d, props)
	if vecErr == nil {
		d.PopulateFieldMap()
		return []*SourceDescriptor{d}, nil
	}
	log.Debug().Err(vecErr).Str("connection", props.DebugString()).Msg("no vector store")

	if path := props.Filename(); path != "" && s.OpenRaster != nil {
		r, err := s.OpenRaster(path)
		if err == nil {
			d.SetRaster(r)
			d.PopulateFieldMap()
			return []*SourceDescriptor{d}, nil
		}
		log.Debug().Err(err).Str("path", path).Msg("no raster")
	}

	s.report(fmt.Errorf("failed to connect: %s: %w", props.DebugString(), vecErr))
	return []*SourceDescriptor{d}, nil
}

func (s *ExternalStrategy) connectVector(ctx context.Context, d *SourceDescriptor, props domain.ConnectionProperties) error {
	if s.OpenVector == nil {
		return featurestore.ErrNoStore
	}
	store, err := s.OpenVector(ctx, props)
	if err != nil {
		return err
	}
	if store == nil {
		return featurestore.ErrNoStore
	}

	names, err := store.TypeNames(ctx)
	if err == nil && len(names) == 0 {
		err = fmt.Errorf("%w: store has no feature types", featurestore.ErrNoStore)
	}
	if err != nil {
		store.Close()
		return err
	}
	typeName := names[0]

	ft, err := store.Schema(ctx, typeName)
	if errors.Is(err, featurestore.ErrMissingCRS) {
		// Stores that record no reference system are read as the default CRS
		if forcer, ok := store.(featurestore.CRSForcer); ok {
			log.Info().Str("type", typeName).Str("crs", domain.DefaultCRS).Msg("schema has no CRS, applying default")
			forcer.ForceCRS(domain.DefaultCRS)
			ft, err = store.Schema(ctx, typeName)
		}
	}
	if err != nil {
		store.Close()
		return err
	}

	d.SetStore(store, ft, vectorKind(ctx, store, ft))
	return nil
}

// vectorKind classifies by the declared geometry type, falling back to the
// value of the first feature for generic geometry columns.
func vectorKind(ctx context.Context, store featurestore.Store, ft *domain.FeatureType) geometry.Kind {
	if k := geometry.ClassifyByType(ft.GeometryType()); k != geometry.Unknown {
		return k
	}
	if ft.GeometryField == "" {
		return geometry.Unknown
	}
	features, err := store.Features(ctx, ft.Name, 1)
	if err != nil || len(features) == 0 {
		return geometry.Unknown
	}
	v, _ := features[0].Value(ft, ft.GeometryField)
	return geometry.ClassifyByValue(v)
}

func (s *ExternalStrategy) report(err error) {
	if s.Reporter != nil {
		s.Reporter.Report("ExternalStrategy", err)
	}
}
