package sample_test

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sldpreview/internal/domain"
	"sldpreview/internal/geometry"
	"sldpreview/internal/sample"
)

func pointType() *domain.FeatureType {
	return &domain.FeatureType{
		Name:          "MEMORY",
		CRS:           domain.DefaultCRS,
		GeometryField: "geom",
		Fields: domain.FieldList{
			{Name: "name", Type: domain.TypeString},
			{Name: "angle", Type: domain.TypeDouble},
			{Name: "size", Type: domain.TypeDouble},
			{Name: "geom", Type: domain.TypePoint},
		},
	}
}

func TestBuild_IndexKeyedPlaceholders(t *testing.T) {
	for i := 0; i < 2; i++ {
		r, err := sample.Build(pointType(), nil)
		require.NoError(t, err)
		require.NotNil(t, r)

		assert.Equal(t, "1234", r.Feature.ID)
		assert.Equal(t, []any{"name", 1.0, 2.0, geometry.ExamplePoint()}, r.Feature.Values)
		assert.Equal(t, geometry.Point, r.GeometryKind)
	}
}

func TestBuild_StoreHoldsExactlyOneFeature(t *testing.T) {
	r, err := sample.Build(pointType(), nil)
	require.NoError(t, err)

	features, err := r.Store.Features(context.Background(), "MEMORY", 0)
	require.NoError(t, err)
	assert.Len(t, features, 1)
}

func TestBuild_SuppliedValuesWin(t *testing.T) {
	r, err := sample.Build(pointType(), []domain.AttributeField{
		{Name: "name", Type: domain.TypeString, Value: "Big Ben"},
		{Name: "size", Type: domain.TypeDouble, Value: 12.5},
	})
	require.NoError(t, err)
	assert.Equal(t, "Big Ben", r.Feature.Values[0])
	assert.Equal(t, 1.0, r.Feature.Values[1])
	assert.Equal(t, 12.5, r.Feature.Values[2])
}

func TestBuild_BlankStringFallsBack(t *testing.T) {
	r, err := sample.Build(pointType(), []domain.AttributeField{{Name: "name", Value: "  "}})
	require.NoError(t, err)
	assert.Equal(t, "name", r.Feature.Values[0])
}

func TestBuild_GeometryFollowsBinding(t *testing.T) {
	ft := &domain.FeatureType{
		Name:          "MEMORY",
		GeometryField: "the_geom",
		Fields:        domain.FieldList{{Name: "the_geom", Type: domain.TypeMultiPolygon}},
	}
	r, err := sample.Build(ft, nil)
	require.NoError(t, err)
	assert.Equal(t, geometry.Polygon, r.GeometryKind)
	_, ok := r.Feature.Values[0].(orb.MultiPolygon)
	assert.True(t, ok)
}

func TestBuild_NilFeatureType(t *testing.T) {
	r, err := sample.Build(nil, nil)
	assert.NoError(t, err)
	assert.Nil(t, r)
}

func TestPlaceholderValue_Types(t *testing.T) {
	assert.Equal(t, int32(3), sample.PlaceholderValue(3, "n", domain.TypeInteger, nil))
	assert.Equal(t, int64(3), sample.PlaceholderValue(3, "n", domain.TypeLong, nil))
	assert.Equal(t, int16(3), sample.PlaceholderValue(3, "n", domain.TypeShort, nil))
	assert.Equal(t, float32(3), sample.PlaceholderValue(3, "n", domain.TypeFloat, nil))
	assert.Equal(t, "n", sample.PlaceholderValue(3, "n", domain.TypeString, nil))
	assert.Equal(t, "n", sample.PlaceholderValue(3, "n", domain.TypeAny, nil))
}
