package render_test

import (
	"context"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sldpreview/internal/domain"
	"sldpreview/internal/render"
	"sldpreview/internal/style"
)

var featureType = &domain.FeatureType{
	Name:          "MEMORY",
	GeometryField: "geom",
	Fields: domain.FieldList{
		{Name: "name", Type: domain.TypeString},
		{Name: "pop", Type: domain.TypeString},
		{Name: "size", Type: domain.TypeDouble},
		{Name: "geom", Type: domain.TypePoint},
	},
}

var feature = &domain.Feature{ID: "1234", Values: []any{"name", "pop", 2.0, orb.Point{1, 2}}}

func TestRender_AcceptsUsableValues(t *testing.T) {
	sym := &style.Symbolizer{
		Kind:     style.SymbolizerPoint,
		Geometry: style.Prop("geom"),
		Label:    style.Prop("name"),
		Size:     style.Prop("size"),
		Opacity:  style.Lit("0.5"),
		Fill:     style.Lit("#ff0000"),
	}
	assert.NoError(t, render.NewEvaluator(nil).Render(context.Background(), featureType, feature, sym))
}

func TestRender_NumberDecodeNamesField(t *testing.T) {
	sym := &style.Symbolizer{Kind: style.SymbolizerPoint, Size: style.Prop("pop")}
	err := render.NewEvaluator(nil).Render(context.Background(), featureType, feature, sym)
	require.Error(t, err)

	var rerr *render.Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, render.KindNumberDecode, rerr.Kind)
	assert.Equal(t, "pop", rerr.Field)
	assert.Equal(t, "pop", rerr.Value)
	assert.True(t, errors.Is(err, &render.Error{Kind: render.KindNumberDecode}))
	assert.Equal(t, `field "pop": For input string: "pop"`, err.Error())
}

func TestRender_FunctionArgumentsAreChecked(t *testing.T) {
	sym := &style.Symbolizer{
		Kind:     style.SymbolizerPoint,
		Rotation: style.Call("sqrt", style.Prop("pop")),
	}
	err := render.NewEvaluator(nil).Render(context.Background(), featureType, feature, sym)
	var rerr *render.Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "pop", rerr.Field)

	sym.Rotation = style.Call("strLength", style.Prop("pop"))
	assert.NoError(t, render.NewEvaluator(nil).Render(context.Background(), featureType, feature, sym))
}

func TestRender_GeometrySlotRejectsText(t *testing.T) {
	sym := &style.Symbolizer{Kind: style.SymbolizerPoint, Geometry: style.Prop("name")}
	err := render.NewEvaluator(nil).Render(context.Background(), featureType, feature, sym)
	var rerr *render.Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, render.KindGeometry, rerr.Kind)
}

func TestRender_MissingPropertyIsIgnored(t *testing.T) {
	sym := &style.Symbolizer{Kind: style.SymbolizerPoint, Size: style.Prop("nope")}
	assert.NoError(t, render.NewEvaluator(nil).Render(context.Background(), featureType, feature, sym))
}

func TestRender_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sym := &style.Symbolizer{Kind: style.SymbolizerPoint, Size: style.Prop("size")}
	assert.ErrorIs(t, render.NewEvaluator(nil).Render(ctx, featureType, feature, sym), context.Canceled)
}
