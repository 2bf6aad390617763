package dbclient

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"sldpreview/internal/domain"

	"github.com/paulmach/orb"
	_ "modernc.org/sqlite"
)

var dialectSQLite = dialect{
	driverName:     "sqlite",
	quote:          quoteDouble,
	introspect:     introspectSQLite,
	selectGeometry: func(col string) string { return col },
	decodeGeometry: decodeGeoPackage,
}

// newSQLiteConnector creates a connector for an external SQLite or
// GeoPackage file. Opens in WAL mode with busy timeout for concurrent access.
func newSQLiteConnector(conn *domain.ConnectionProfile) (*sqlConnector, error) {
	if conn.Host == "" {
		return nil, fmt.Errorf("sqlite: no file given")
	}
	dsn := conn.Host + "?_journal_mode=WAL&_busy_timeout=5000"
	return newSQLConnector(dialectSQLite, dsn)
}

// spatialDeclTypes are declared column types treated as geometry in plain
// SQLite files (SpatiaLite-style declarations).
var spatialDeclTypes = map[string]bool{
	"GEOMETRY":        true,
	"POINT":           true,
	"LINESTRING":      true,
	"POLYGON":         true,
	"MULTIPOINT":      true,
	"MULTILINESTRING": true,
	"MULTIPOLYGON":    true,
}

func introspectSQLite(ctx context.Context, db *sql.DB, _ string) (*SchemaInfo, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master
		 WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		   AND name NOT LIKE 'gpkg_%' AND name NOT LIKE 'rtree_%'
		 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, err
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var tables []TableInfo
	for _, name := range names {
		cols, err := sqliteColumns(ctx, db, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, TableInfo{Name: name, Columns: cols})
	}

	// GeoPackage registers its feature geometry columns
	if gpkg, err := db.QueryContext(ctx,
		`SELECT table_name, column_name, geometry_type_name, srs_id FROM gpkg_geometry_columns`); err == nil {
		for gpkg.Next() {
			var tbl, col, typ string
			var srid int
			if gpkg.Scan(&tbl, &col, &typ, &srid) == nil {
				markGeometry(tables, tbl, col, typ, srid)
			}
		}
		gpkg.Close()
	}

	for _, t := range tables {
		for _, col := range t.Columns {
			if spatialDeclTypes[strings.ToUpper(col.Type)] {
				markGeometry(tables, t.Name, col.Name, col.Type, 0)
				break
			}
		}
	}
	return &SchemaInfo{Tables: tables}, nil
}

func sqliteColumns(ctx context.Context, db *sql.DB, table string) ([]ColumnInfo, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteDouble(table)))
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var cid, notNull, pk int
		var name, typ string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, ColumnInfo{Name: name, Type: typ})
	}
	return cols, rows.Err()
}

// decodeGeoPackage strips the GeoPackage binary header, if present, and
// decodes the remaining WKB.
func decodeGeoPackage(b []byte) (orb.Geometry, error) {
	if len(b) < 8 || b[0] != 'G' || b[1] != 'P' {
		return decodeWKB(b)
	}
	flags := b[3]
	if flags&0x10 != 0 {
		// empty geometry
		return nil, nil
	}
	var envelope int
	switch (flags >> 1) & 0x07 {
	case 0:
		envelope = 0
	case 1:
		envelope = 32
	case 2, 3:
		envelope = 48
	case 4:
		envelope = 64
	default:
		return nil, fmt.Errorf("invalid geopackage envelope flag %d", (flags>>1)&0x07)
	}
	start := 8 + envelope
	if len(b) < start {
		return nil, fmt.Errorf("truncated geopackage header")
	}
	return decodeWKB(b[start:])
}
