package featurestore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"sldpreview/internal/dbclient"
	"sldpreview/internal/domain"
)

// maxDatabaseRows caps unbounded reads from a database table.
const maxDatabaseRows = 1000

// databaseStore serves the feature tables of a spatial database.
type databaseStore struct {
	conn   dbclient.Connector
	schema *dbclient.SchemaInfo
	table  string

	mu     sync.Mutex
	crs    string
	closed bool
}

func newDatabaseStore(conn dbclient.Connector, schema *dbclient.SchemaInfo, table string) *databaseStore {
	return &databaseStore{conn: conn, schema: schema, table: table}
}

func (s *databaseStore) ForceCRS(crs string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crs = crs
}

// TypeNames lists tables with a geometry column, the configured table first.
// A database with no spatial tables lists all of them.
func (s *databaseStore) TypeNames(context.Context) ([]string, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	var spatial, all []string
	for _, t := range s.schema.Tables {
		all = append(all, t.Name)
		if t.GeometryColumn != "" {
			spatial = append(spatial, t.Name)
		}
	}
	names := spatial
	if len(names) == 0 {
		names = all
	}
	if s.table != "" {
		out := []string{s.table}
		for _, n := range names {
			if n != s.table {
				out = append(out, n)
			}
		}
		return out, nil
	}
	return names, nil
}

func (s *databaseStore) Schema(_ context.Context, typeName string) (*domain.FeatureType, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	table, ok := s.schema.Table(typeName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeName)
	}

	ft := &domain.FeatureType{Name: table.Name, GeometryField: table.GeometryColumn}
	for _, col := range table.Columns {
		t := dbclient.ScalarTypeFor(col.Type)
		if col.Name == table.GeometryColumn {
			t = geometryColumnType(table.GeometryType)
		}
		ft.Fields = append(ft.Fields, domain.AttributeField{Name: col.Name, Type: t})
	}

	if table.GeometryColumn == "" {
		return ft, nil
	}
	switch {
	case table.SRID > 0:
		ft.CRS = "EPSG:" + strconv.Itoa(table.SRID)
	default:
		s.mu.Lock()
		ft.CRS = s.crs
		s.mu.Unlock()
		if ft.CRS == "" {
			return nil, ErrMissingCRS
		}
	}
	return ft, nil
}

// geometryColumnType maps a store's geometry type name to a field type.
func geometryColumnType(name string) domain.ScalarType {
	switch strings.ToUpper(name) {
	case "POINT":
		return domain.TypePoint
	case "MULTIPOINT":
		return domain.TypeMultiPoint
	case "LINESTRING":
		return domain.TypeLineString
	case "MULTILINESTRING":
		return domain.TypeMultiLineString
	case "POLYGON":
		return domain.TypePolygon
	case "MULTIPOLYGON":
		return domain.TypeMultiPolygon
	}
	return domain.TypeGeometry
}

func (s *databaseStore) Features(ctx context.Context, typeName string, limit int) ([]domain.Feature, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	table, ok := s.schema.Table(typeName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeName)
	}
	if limit <= 0 {
		limit = maxDatabaseRows
	}
	page, err := s.conn.ReadRows(ctx, table, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Feature, 0, len(page.Rows))
	for i, row := range page.Rows {
		out = append(out, domain.Feature{
			ID:     fmt.Sprintf("%s.%d", table.Name, i+1),
			Values: row,
		})
	}
	return out, nil
}

func (s *databaseStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *databaseStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.conn.Close()
}
