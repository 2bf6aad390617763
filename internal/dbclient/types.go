package dbclient

import (
	"strings"

	"sldpreview/internal/domain"
)

// ScalarTypeFor maps a column type reported by a driver to an attribute type.
// Unknown types read as String.
func ScalarTypeFor(dbType string) domain.ScalarType {
	t := strings.ToLower(strings.TrimSpace(dbType))
	if i := strings.IndexByte(t, '('); i != -1 {
		t = strings.TrimSpace(t[:i])
	}
	switch t {
	case "int", "integer", "int4", "mediumint":
		return domain.TypeInteger
	case "bigint", "int8", "long", "bigserial":
		return domain.TypeLong
	case "smallint", "int2", "tinyint":
		return domain.TypeShort
	case "real", "float4", "float":
		return domain.TypeFloat
	case "double", "double precision", "float8", "numeric", "decimal":
		return domain.TypeDouble
	}
	if spatialDeclTypes[strings.ToUpper(t)] || t == "geography" {
		return domain.TypeGeometry
	}
	return domain.TypeString
}
