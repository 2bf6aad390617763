// Package featurestore opens the feature sources a preview draws from: the
// in-memory store holding synthesized features, shapefiles, GeoJSON
// collections and CSV point files, spatial databases reached through
// dbclient, and image rasters.
package featurestore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"sldpreview/internal/dbclient"
	"sldpreview/internal/domain"
	"sldpreview/internal/geometry"
)

var (
	// ErrNoStore means the connection properties do not describe a vector store.
	ErrNoStore = errors.New("no vector store for connection")

	// ErrMissingCRS is returned by Schema when the store reports no
	// coordinate reference system for the type.
	ErrMissingCRS = errors.New("schema has no coordinate reference system")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store is closed")

	// ErrUnknownType is returned for a type name the store does not hold.
	ErrUnknownType = errors.New("unknown feature type")
)

// Store is a vector feature source.
type Store interface {
	// TypeNames lists the feature types, the preferred one first.
	TypeNames(ctx context.Context) ([]string, error)

	// Schema describes a feature type.
	Schema(ctx context.Context, typeName string) (*domain.FeatureType, error)

	// Features returns up to limit features of a type; limit <= 0 reads all.
	Features(ctx context.Context, typeName string, limit int) ([]domain.Feature, error)

	Close() error
}

// CRSForcer is implemented by stores that can be told which reference system
// to assume when their schema reports none.
type CRSForcer interface {
	ForceCRS(crs string)
}

// RasterReader is an opened raster source.
type RasterReader interface {
	Path() string
	Coverage() *geometry.Coverage
	Close() error
}

// OpenVector opens the vector store described by props. It returns ErrNoStore
// when props name no vector source it knows how to open.
func OpenVector(ctx context.Context, props domain.ConnectionProperties) (Store, error) {
	driver := props.Driver()
	if driver == "" {
		driver = driverForFile(props.Filename())
	}

	switch driver {
	case domain.DatabaseDriverGeoJSON:
		return OpenGeoJSON(props.Filename())
	case domain.DatabaseDriverCSV:
		return OpenCSV(props.Filename(), props[domain.PropDelimiter])
	case domain.DatabaseDriverShapefile:
		return OpenShapefile(props.Filename())
	case domain.DatabaseDriverSQLite, domain.DatabaseDriverGeoPackage,
		domain.DatabaseDriverPostgres, domain.DatabaseDriverMySQL, domain.DatabaseDriverMongoDB:
		profile, password := domain.ProfileFromProperties(props)
		profile.Driver = driver
		return openDatabase(ctx, profile, password)
	case "":
		return nil, ErrNoStore
	default:
		return nil, fmt.Errorf("%w: driver %q", ErrNoStore, driver)
	}
}

// driverForFile guesses the store from a file extension.
func driverForFile(path string) domain.DatabaseDriver {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return domain.DatabaseDriverGeoJSON
	case ".shp":
		return domain.DatabaseDriverShapefile
	case ".csv", ".tsv":
		return domain.DatabaseDriverCSV
	case ".gpkg":
		return domain.DatabaseDriverGeoPackage
	case ".sqlite", ".db":
		return domain.DatabaseDriverSQLite
	}
	return ""
}

func openDatabase(ctx context.Context, profile *domain.ConnectionProfile, password string) (Store, error) {
	conn, err := dbclient.NewConnector(profile, password)
	if err != nil {
		return nil, err
	}
	if err := conn.TestConnection(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connect %s: %w", profile.Driver, err)
	}
	schema, err := conn.Introspect(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("introspect %s: %w", profile.Driver, err)
	}
	log.Debug().Str("driver", string(profile.Driver)).Int("tables", len(schema.Tables)).Msg("database store opened")
	return newDatabaseStore(conn, schema, profile.Table), nil
}
