package dbclient

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
)

// dialect captures what differs between the SQL drivers.
type dialect struct {
	driverName string

	// quote quotes an identifier.
	quote func(string) string

	// introspect lists feature tables with their geometry columns.
	introspect func(ctx context.Context, db *sql.DB, schema string) (*SchemaInfo, error)

	// selectGeometry wraps a quoted geometry column so it reads back as WKB
	// (or a GeoPackage blob).
	selectGeometry func(quoted string) string

	// decodeGeometry turns the selected geometry bytes into a value.
	decodeGeometry func([]byte) (orb.Geometry, error)
}

func quoteDouble(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteBacktick(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// sqlConnector is the shared implementation for MySQL, Postgres, and SQLite.
type sqlConnector struct {
	dialect dialect
	db      *sql.DB
	schema  string

	mu         sync.Mutex
	lastAccess time.Time
}

// newSQLConnector creates a generic SQL connector.
func newSQLConnector(d dialect, dsn string) (*sqlConnector, error) {
	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.driverName, err)
	}
	// A preview reads a handful of rows; keep the pool small
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(10 * time.Minute)

	return &sqlConnector{dialect: d, db: db}, nil
}

func (c *sqlConnector) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return c.db.PingContext(ctx)
}

func (c *sqlConnector) Introspect(ctx context.Context) (*SchemaInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	c.mu.Lock()
	c.lastAccess = time.Now()
	c.mu.Unlock()

	return c.dialect.introspect(ctx, c.db, c.schema)
}

func (c *sqlConnector) ReadRows(ctx context.Context, table *TableInfo, limit int) (*RowPage, error) {
	if table == nil {
		return nil, fmt.Errorf("no table given")
	}
	if limit <= 0 {
		limit = 1
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	c.mu.Lock()
	c.lastAccess = time.Now()
	c.mu.Unlock()

	q := c.dialect.quote
	page := &RowPage{}
	selects := make([]string, 0, len(table.Columns))
	for _, col := range table.Columns {
		page.Columns = append(page.Columns, col.Name)
		if col.Name == table.GeometryColumn {
			selects = append(selects, c.dialect.selectGeometry(q(col.Name)))
			continue
		}
		selects = append(selects, q(col.Name))
	}
	if len(selects) == 0 {
		return page, nil
	}

	query := fmt.Sprintf("SELECT %s FROM %s LIMIT %d", strings.Join(selects, ", "), q(table.Name), limit)
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table.Name, err)
	}
	defer rows.Close()

	for rows.Next() {
		values := make([]any, len(selects))
		ptrs := make([]any, len(selects))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table.Name, err)
		}

		row := make([]any, len(values))
		for i, v := range values {
			if page.Columns[i] == table.GeometryColumn {
				g, err := c.geometryValue(v)
				if err != nil {
					return nil, fmt.Errorf("decode %s.%s: %w", table.Name, table.GeometryColumn, err)
				}
				row[i] = g
				continue
			}
			row[i] = formatValue(v)
		}
		page.Rows = append(page.Rows, row)
	}
	return page, rows.Err()
}

func (c *sqlConnector) geometryValue(v any) (orb.Geometry, error) {
	switch b := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return c.dialect.decodeGeometry(b)
	case string:
		return c.dialect.decodeGeometry([]byte(b))
	}
	return nil, fmt.Errorf("unexpected geometry value %T", v)
}

// formatValue converts driver values ([]byte, time.Time) to JSON-friendly types.
func formatValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return val
	}
}

func decodeWKB(b []byte) (orb.Geometry, error) {
	if len(b) == 0 {
		return nil, nil
	}
	return wkb.Unmarshal(b)
}

func (c *sqlConnector) Close() error {
	return c.db.Close()
}

// ── Shared introspection helpers ───────────────────────────

// collectColumns reads (table, column, type) rows into tables, in order.
func collectColumns(rows *sql.Rows) ([]TableInfo, error) {
	defer rows.Close()

	var tables []TableInfo
	index := map[string]int{}
	for rows.Next() {
		var tbl, col, typ string
		if err := rows.Scan(&tbl, &col, &typ); err != nil {
			return nil, err
		}
		i, ok := index[tbl]
		if !ok {
			i = len(tables)
			index[tbl] = i
			tables = append(tables, TableInfo{Name: tbl})
		}
		tables[i].Columns = append(tables[i].Columns, ColumnInfo{Name: col, Type: typ})
	}
	return tables, rows.Err()
}

// markGeometry records the geometry column of the named table.
func markGeometry(tables []TableInfo, table, column, geomType string, srid int) {
	for i := range tables {
		if tables[i].Name == table && tables[i].GeometryColumn == "" {
			tables[i].GeometryColumn = column
			tables[i].GeometryType = strings.ToUpper(geomType)
			tables[i].SRID = srid
			return
		}
	}
}
