package dbclient

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"sldpreview/internal/domain"

	_ "github.com/go-sql-driver/mysql"
)

var dialectMySQL = dialect{
	driverName:     "mysql",
	quote:          quoteBacktick,
	introspect:     introspectMySQL,
	selectGeometry: func(col string) string { return "ST_AsBinary(" + col + ")" },
	decodeGeometry: decodeWKB,
}

// buildMySQLDSN constructs a MySQL DSN from a ConnectionProfile.
func buildMySQLDSN(conn *domain.ConnectionProfile, password string) string {
	port := conn.Port
	if port == 0 {
		port = 3306
	}
	// Format: user:password@tcp(host:port)/dbname?parseTime=true
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		conn.Username, password, conn.Host, port, conn.Database,
	)
	if conn.SSLMode == "require" {
		dsn += "&tls=true"
	}
	return dsn
}

var mysqlGeometryTypes = map[string]bool{
	"geometry":           true,
	"point":              true,
	"linestring":         true,
	"polygon":            true,
	"multipoint":         true,
	"multilinestring":    true,
	"multipolygon":       true,
	"geometrycollection": true,
}

func introspectMySQL(ctx context.Context, db *sql.DB, _ string) (*SchemaInfo, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE FROM INFORMATION_SCHEMA.COLUMNS
		 WHERE TABLE_SCHEMA = DATABASE()
		 ORDER BY TABLE_NAME, ORDINAL_POSITION`)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	tables, err := collectColumns(rows)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}

	// MySQL 8 records the SRS per column; older servers leave it unknown
	srids := map[string]int{}
	if srsRows, err := db.QueryContext(ctx,
		`SELECT TABLE_NAME, COLUMN_NAME, SRS_ID FROM INFORMATION_SCHEMA.ST_GEOMETRY_COLUMNS
		 WHERE TABLE_SCHEMA = DATABASE()`); err == nil {
		for srsRows.Next() {
			var tbl, col string
			var srid sql.NullInt64
			if srsRows.Scan(&tbl, &col, &srid) == nil && srid.Valid {
				srids[tbl+"."+col] = int(srid.Int64)
			}
		}
		srsRows.Close()
	}

	for _, t := range tables {
		for _, col := range t.Columns {
			if mysqlGeometryTypes[strings.ToLower(col.Type)] {
				markGeometry(tables, t.Name, col.Name, col.Type, srids[t.Name+"."+col.Name])
				break
			}
		}
	}
	return &SchemaInfo{Tables: tables}, nil
}
