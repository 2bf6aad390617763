package dbclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"sldpreview/internal/domain"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// mongoConnector implements Connector for MongoDB. Geometries are stored as
// GeoJSON subdocuments, which MongoDB always interprets as WGS84.
type mongoConnector struct {
	client *mongo.Client
	dbName string
}

func newMongoConnector(conn *domain.ConnectionProfile, password string) (*mongoConnector, error) {
	uri := buildMongoURI(conn, password)

	dbName := conn.Database
	if dbName == "" {
		dbName = databaseFromURI(uri)
	}

	logURI := uri
	if password != "" {
		logURI = strings.ReplaceAll(logURI, password, "***")
	}
	log.Debug().Str("uri", logURI).Str("database", dbName).Msg("connecting to mongo")

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return &mongoConnector{client: client, dbName: dbName}, nil
}

// buildMongoURI uses Host as-is when it is already a connection string,
// otherwise builds one from host and port.
func buildMongoURI(conn *domain.ConnectionProfile, password string) string {
	if strings.HasPrefix(conn.Host, "mongodb+srv://") || strings.HasPrefix(conn.Host, "mongodb://") {
		uri := conn.Host
		if password != "" {
			uri = strings.ReplaceAll(uri, "<password>", password)
			uri = strings.ReplaceAll(uri, "<db_password>", password)
		}
		return uri
	}

	port := conn.Port
	if port == 0 {
		port = 27017
	}
	uri := fmt.Sprintf("mongodb://%s:%d", conn.Host, port)
	if conn.Username != "" {
		uri = fmt.Sprintf("mongodb://%s:%s@%s:%d", conn.Username, password, conn.Host, port)
	}

	// extraJson carries authSource, replicaSet, and similar options
	if conn.ExtraJSON != "" && conn.ExtraJSON != "{}" {
		var extras map[string]string
		if json.Unmarshal([]byte(conn.ExtraJSON), &extras) == nil && len(extras) > 0 {
			keys := make([]string, 0, len(extras))
			for k := range extras {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			params := make([]string, 0, len(keys))
			for _, k := range keys {
				params = append(params, k+"="+extras[k])
			}
			uri += "/?" + strings.Join(params, "&")
		}
	}
	return uri
}

// databaseFromURI extracts the path segment of a mongo URI
// (user:pass@host/DB?params), defaulting to "test".
func databaseFromURI(uri string) string {
	rest := uri
	for _, prefix := range []string{"mongodb+srv://", "mongodb://"} {
		rest = strings.TrimPrefix(rest, prefix)
	}
	if i := strings.Index(rest, "@"); i != -1 {
		rest = rest[i+1:]
	}
	if i := strings.Index(rest, "/"); i != -1 {
		path := rest[i+1:]
		if q := strings.Index(path, "?"); q != -1 {
			path = path[:q]
		}
		if path != "" {
			return path
		}
	}
	return "test"
}

func (m *mongoConnector) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return m.client.Ping(ctx, nil)
}

// Introspect samples one document per collection to derive its fields.
func (m *mongoConnector) Introspect(ctx context.Context) (*SchemaInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	db := m.client.Database(m.dbName)
	collections, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	sort.Strings(collections)

	schema := &SchemaInfo{}
	for _, name := range collections {
		table := TableInfo{Name: name}

		var doc bson.M
		err := db.Collection(name).FindOne(ctx, bson.M{}).Decode(&doc)
		if err != nil {
			schema.Tables = append(schema.Tables, table)
			continue
		}

		keys := make([]string, 0, len(doc))
		for k := range doc {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			if g, ok := mongoGeometry(doc[k]); ok && table.GeometryColumn == "" {
				table.GeometryColumn = k
				table.GeometryType = strings.ToUpper(g.GeoJSONType())
				table.SRID = 4326
				table.Columns = append(table.Columns, ColumnInfo{Name: k, Type: "geometry"})
				continue
			}
			table.Columns = append(table.Columns, ColumnInfo{Name: k, Type: mongoTypeName(doc[k])})
		}
		schema.Tables = append(schema.Tables, table)
	}
	return schema, nil
}

func (m *mongoConnector) ReadRows(ctx context.Context, table *TableInfo, limit int) (*RowPage, error) {
	if table == nil {
		return nil, fmt.Errorf("no collection given")
	}
	if limit <= 0 {
		limit = 1
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	coll := m.client.Database(m.dbName).Collection(table.Name)
	cursor, err := coll.Find(ctx, bson.M{}, options.Find().SetLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	defer cursor.Close(ctx)

	page := &RowPage{}
	for _, col := range table.Columns {
		page.Columns = append(page.Columns, col.Name)
	}

	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		row := make([]any, len(page.Columns))
		for i, col := range page.Columns {
			v, ok := doc[col]
			if !ok {
				continue
			}
			if col == table.GeometryColumn {
				if g, ok := mongoGeometry(v); ok {
					row[i] = g
				}
				continue
			}
			row[i] = mongoValue(v)
		}
		page.Rows = append(page.Rows, row)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	log.Debug().Str("collection", table.Name).Int("rows", len(page.Rows)).Msg("mongo rows read")
	return page, nil
}

// mongoGeometry decodes a GeoJSON subdocument.
func mongoGeometry(v any) (orb.Geometry, bool) {
	switch v.(type) {
	case bson.M, bson.D:
	default:
		return nil, false
	}
	raw, err := bson.MarshalExtJSON(v, false, false)
	if err != nil {
		return nil, false
	}
	var probe struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
		Geometries  json.RawMessage `json:"geometries"`
	}
	if json.Unmarshal(raw, &probe) != nil || probe.Type == "" {
		return nil, false
	}
	if probe.Coordinates == nil && probe.Geometries == nil {
		return nil, false
	}
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, false
	}
	return g.Geometry(), true
}

func mongoTypeName(v any) string {
	switch v.(type) {
	case int32:
		return "int"
	case int64:
		return "long"
	case float64:
		return "double"
	case bool:
		return "bool"
	case bson.DateTime, time.Time:
		return "date"
	default:
		return "string"
	}
}

func mongoValue(v any) any {
	switch val := v.(type) {
	case bson.ObjectID:
		return val.Hex()
	case bson.DateTime:
		return val.Time().UTC().Format(time.RFC3339)
	case bson.A:
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(raw)
	case bson.M, bson.D:
		raw, err := bson.MarshalExtJSON(val, false, false)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(raw)
	default:
		return val
	}
}

func (m *mongoConnector) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
