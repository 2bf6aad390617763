package dbclient

import (
	"context"
	"database/sql"
	"fmt"

	"sldpreview/internal/domain"

	_ "github.com/lib/pq"
)

var dialectPostgres = dialect{
	driverName:     "postgres",
	quote:          quoteDouble,
	introspect:     introspectPostGIS,
	selectGeometry: func(col string) string { return "ST_AsBinary(" + col + ")" },
	decodeGeometry: decodeWKB,
}

// buildPostgresDSN constructs a Postgres connection string from a ConnectionProfile.
func buildPostgresDSN(conn *domain.ConnectionProfile, password string) string {
	port := conn.Port
	if port == 0 {
		port = 5432
	}
	sslMode := conn.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		conn.Host, port, conn.Username, password, conn.Database, sslMode,
	)
}

// introspectPostGIS lists columns via information_schema and geometry columns
// via the PostGIS geometry_columns view.
func introspectPostGIS(ctx context.Context, db *sql.DB, schema string) (*SchemaInfo, error) {
	if schema == "" {
		schema = "public"
	}
	rows, err := db.QueryContext(ctx,
		`SELECT table_name, column_name, CASE WHEN data_type = 'USER-DEFINED' THEN udt_name ELSE data_type END
		 FROM information_schema.columns
		 WHERE table_schema = $1
		 ORDER BY table_name, ordinal_position`, schema)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	tables, err := collectColumns(rows)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}

	geomRows, err := db.QueryContext(ctx,
		`SELECT f_table_name, f_geometry_column, srid, type
		 FROM geometry_columns
		 WHERE f_table_schema = $1`, schema)
	if err != nil {
		// No PostGIS: the tables have no usable geometry
		return &SchemaInfo{Tables: tables}, nil
	}
	defer geomRows.Close()

	for geomRows.Next() {
		var tbl, col, typ string
		var srid int
		if err := geomRows.Scan(&tbl, &col, &srid, &typ); err != nil {
			continue
		}
		markGeometry(tables, tbl, col, typ, srid)
	}
	return &SchemaInfo{Tables: tables}, geomRows.Err()
}
