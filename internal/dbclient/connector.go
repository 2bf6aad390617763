package dbclient

import (
	"context"
	"fmt"

	"sldpreview/internal/domain"
)

// SchemaInfo describes the feature tables of a spatial database.
type SchemaInfo struct {
	Tables []TableInfo `json:"tables"`
}

// Table returns the named table, or the first table with a geometry column
// when name is empty.
func (s *SchemaInfo) Table(name string) (*TableInfo, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.Tables {
		t := &s.Tables[i]
		if name == "" && t.GeometryColumn != "" {
			return t, true
		}
		if name != "" && t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// TableInfo describes a table/collection.
type TableInfo struct {
	Name           string       `json:"name"`
	Columns        []ColumnInfo `json:"columns"`
	GeometryColumn string       `json:"geometryColumn,omitempty"`
	GeometryType   string       `json:"geometryType,omitempty"` // POINT, MULTIPOLYGON, ...
	SRID           int          `json:"srid"`                   // 0 when the store reports none
}

// ColumnInfo describes a column/field.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// RowPage is a batch of rows read from a feature table. Geometry columns are
// decoded to orb geometries.
type RowPage struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Connector abstracts read access to an external spatial database.
type Connector interface {
	// TestConnection verifies connectivity.
	TestConnection(ctx context.Context) error

	// Introspect returns the feature tables with their geometry columns.
	Introspect(ctx context.Context) (*SchemaInfo, error)

	// ReadRows returns up to limit rows of table.
	ReadRows(ctx context.Context, table *TableInfo, limit int) (*RowPage, error)

	// Close closes the connection.
	Close() error
}

// NewConnector creates a Connector for the given connection profile.
// The password must be provided separately (from SecretStore).
func NewConnector(conn *domain.ConnectionProfile, password string) (Connector, error) {
	switch conn.Driver {
	case domain.DatabaseDriverSQLite, domain.DatabaseDriverGeoPackage:
		return newSQLiteConnector(conn)
	case domain.DatabaseDriverMySQL:
		return newSQLConnector(dialectMySQL, buildMySQLDSN(conn, password))
	case domain.DatabaseDriverPostgres:
		c, err := newSQLConnector(dialectPostgres, buildPostgresDSN(conn, password))
		if err != nil {
			return nil, err
		}
		c.schema = conn.Schema
		return c, nil
	case domain.DatabaseDriverMongoDB:
		return newMongoConnector(conn, password)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", conn.Driver)
	}
}
