package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScalarType(t *testing.T) {
	got, err := ParseScalarType(" double ")
	require.NoError(t, err)
	assert.Equal(t, TypeDouble, got)

	got, err = ParseScalarType("MULTIPOLYGON")
	require.NoError(t, err)
	assert.Equal(t, TypeMultiPolygon, got)

	got, err = ParseScalarType("")
	require.NoError(t, err)
	assert.Equal(t, TypeAny, got)

	_, err = ParseScalarType("Decimal")
	assert.Error(t, err)
}

func TestWider(t *testing.T) {
	assert.Equal(t, TypeLong, Wider(TypeInteger, TypeLong))
	assert.Equal(t, TypeDouble, Wider(TypeDouble, TypeShort))
	assert.Equal(t, TypeInteger, Wider(TypeString, TypeInteger))
	assert.Equal(t, TypeString, Wider(TypeAny, TypeString))
	assert.Equal(t, TypeString, Wider(TypeString, TypeAny))
}

func TestLiteralType(t *testing.T) {
	assert.Equal(t, TypeInteger, LiteralType("42"))
	assert.Equal(t, TypeDouble, LiteralType("4294967296"))
	assert.Equal(t, TypeDouble, LiteralType("1.5"))
	assert.Equal(t, TypeString, LiteralType("red"))
}

func TestCoerceValue(t *testing.T) {
	assert.Equal(t, int32(3), CoerceValue(TypeInteger, 3.0))
	assert.Equal(t, int64(7), CoerceValue(TypeLong, "7"))
	assert.Equal(t, int16(2), CoerceValue(TypeShort, 2.0))
	assert.Equal(t, float32(1.5), CoerceValue(TypeFloat, 1.5))
	assert.Equal(t, 2.5, CoerceValue(TypeDouble, "2.5"))
	assert.Equal(t, "12", CoerceValue(TypeString, "12"))
	assert.Equal(t, "n/a", CoerceValue(TypeDouble, "n/a"))
	assert.Equal(t, true, CoerceValue(TypeInteger, true))
}

func TestAllowedFor(t *testing.T) {
	assert.True(t, TypeShort.AllowedFor(TypeDouble))
	assert.False(t, TypeDouble.AllowedFor(TypeInteger))
	assert.True(t, TypeLong.AllowedFor(TypeInteger))
	assert.True(t, TypeInteger.AllowedFor(TypeString))
	assert.False(t, TypePoint.AllowedFor(TypeString))
	assert.True(t, TypePolygon.AllowedFor(TypeGeometry))
	assert.True(t, TypePoint.AllowedFor(TypeAny))
}

func TestFieldList(t *testing.T) {
	l := FieldList{{Name: "a", Type: TypeString}}
	l = l.Add(AttributeField{Name: "b", Type: TypeDouble})
	l = l.Add(AttributeField{Name: "a", Type: TypeInteger, Value: int32(1)})
	assert.Equal(t, []string{"a", "b"}, l.Names())
	assert.Equal(t, TypeInteger, l[0].Type)

	cp := l.Clone()
	assert.True(t, cp.SetType("b", TypeFloat))
	assert.False(t, cp.SetType("c", TypeFloat))
	assert.Equal(t, TypeDouble, l[1].Type)

	_, ok := l.Find("c")
	assert.False(t, ok)
}

func TestConnectionProperties(t *testing.T) {
	p := ConnectionProperties{PropPassword: "secret", PropHost: " "}
	assert.True(t, p.IsEmpty())

	p = ConnectionProperties{PropDriver: "PostGIS", PropHost: "db", PropPort: "5433", PropPassword: "secret"}
	assert.Equal(t, DatabaseDriverPostgres, p.Driver())
	assert.Equal(t, 5433, p.Port())
	assert.Equal(t, "{dbtype=PostGIS, host=db, port=5433}", p.DebugString())

	uri := ConnectionProperties{PropDriver: "mongodb", PropHost: "mongodb://admin:s3cret@db:27017/gis"}
	assert.Equal(t, "{dbtype=mongodb, host=mongodb://admin:xxxxx@db:27017/gis}", uri.DebugString())

	plain := ConnectionProperties{PropURL: "file:///data/roads.geojson"}
	assert.Equal(t, "{url=file:///data/roads.geojson}", plain.DebugString())

	profile, password := ProfileFromProperties(p)
	assert.Equal(t, "secret", password)
	assert.Equal(t, "db", profile.Host)

	csv := (&ConnectionProfile{Driver: DatabaseDriverCSV, Host: "/data/towns.csv"}).Properties("")
	assert.Equal(t, "/data/towns.csv", csv.Filename())
	assert.False(t, csv.HasPassword())
}
