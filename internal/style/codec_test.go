package style_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sldpreview/internal/style"
)

const roadsDoc = `{
  "name": "roads",
  "layers": [
    {
      "id": "roads",
      "name": "roads",
      "kind": "named",
      "styles": [{
        "featureTypeStyles": [{
          "rules": [{
            "name": "major",
            "filter": {"op": "and", "filters": [
              {"op": "gt", "left": {"property": "lanes"}, "right": {"literal": 2}},
              {"op": "not", "filter": {"op": "isNull", "expr": {"property": "ref"}}}
            ]},
            "symbolizers": [
              {"kind": "line", "geometry": {"property": "the_geom"}, "strokeWidth": {"literal": 2.5}},
              {"kind": "text", "label": {"function": "strToUpperCase", "args": [{"property": "ref"}]}}
            ]
          }]
        }]
      }]
    },
    {
      "name": "pins",
      "styles": [],
      "inlineFeatures": {"type": "FeatureCollection", "features": [
        {"type": "Feature", "geometry": {"type": "Point", "coordinates": [1, 2]}, "properties": {"name": "a"}}
      ]}
    }
  ]
}`

func TestDecode_BuildsTree(t *testing.T) {
	doc, err := style.Decode(strings.NewReader(roadsDoc))
	require.NoError(t, err)
	require.Len(t, doc.Layers, 2)

	roads := doc.Layers[0]
	assert.Equal(t, style.LayerNamed, roads.Kind)
	rule := roads.Styles[0].FeatureTypeStyles[0].Rules[0]

	and, ok := rule.Filter.(style.Logical)
	require.True(t, ok, "expected logical filter, got %T", rule.Filter)
	assert.Equal(t, style.LogicAnd, and.Op)
	require.Len(t, and.Filters, 2)
	gt := and.Filters[0].(style.Comparison)
	assert.Equal(t, style.Prop("lanes"), gt.Left)
	assert.Equal(t, style.Lit(2), gt.Right)

	line := rule.Symbolizers[0]
	assert.Equal(t, style.SymbolizerLine, line.Kind)
	assert.Equal(t, style.Prop("the_geom"), line.Geometry)
	assert.Equal(t, style.Literal{Value: "2.5"}, line.StrokeWidth)

	label := rule.Symbolizers[1].Label.(style.Function)
	assert.Equal(t, "strToUpperCase", label.Name)
	assert.Equal(t, []style.Expression{style.Prop("ref")}, label.Args)
}

func TestDecode_UserLayerGetsIDAndKind(t *testing.T) {
	doc, err := style.Decode(strings.NewReader(roadsDoc))
	require.NoError(t, err)

	pins := doc.Layers[1]
	assert.Equal(t, style.LayerUser, pins.Kind)
	assert.NotEmpty(t, pins.ID)
	require.True(t, pins.HasInlineFeatures())
	assert.Len(t, pins.InlineFeatures.Features, 1)

	inline := doc.InlineLayers()
	require.Len(t, inline, 1)
	assert.Equal(t, pins.ID, inline[0].ID)
}

func TestDecode_RejectsUnknownFilterOp(t *testing.T) {
	_, err := style.Decode(strings.NewReader(`{"layers":[{"name":"x","styles":[{"featureTypeStyles":[{"rules":[
		{"filter":{"op":"near"},"symbolizers":[]}]}]}]}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown filter op")
}

func TestDecode_RejectsEmptyExpression(t *testing.T) {
	_, err := style.Decode(strings.NewReader(`{"layers":[{"name":"x","styles":[{"featureTypeStyles":[{"rules":[
		{"symbolizers":[{"kind":"point","size":{}}]}]}]}]}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty expression")
}

func TestEncode_RoundTripKeepsFilterAndExpressions(t *testing.T) {
	doc, err := style.Decode(strings.NewReader(roadsDoc))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, style.Encode(&buf, doc))

	again, err := style.Decode(&buf)
	require.NoError(t, err)

	r1 := doc.Layers[0].Styles[0].FeatureTypeStyles[0].Rules[0]
	r2 := again.Layers[0].Styles[0].FeatureTypeStyles[0].Rules[0]
	assert.Equal(t, r1.Filter, r2.Filter)
	assert.Equal(t, r1.Symbolizers, r2.Symbolizers)
	assert.Equal(t, doc.Layers[1].ID, again.Layers[1].ID)
}

func TestSymbolizerExpressions_FixedOrder(t *testing.T) {
	sym := &style.Symbolizer{
		Kind:     style.SymbolizerPoint,
		Rotation: style.Prop("angle"),
		Geometry: style.Prop("geom"),
		Size:     style.Lit(4),
		Parameters: []style.Parameter{
			{Name: "labelObstacle", Value: style.Lit("true")},
		},
	}
	var names []string
	for _, ne := range sym.Expressions() {
		names = append(names, ne.Name)
	}
	assert.Equal(t, []string{"geometry", "size", "rotation", "labelObstacle"}, names)

	sym.SetExpression("labelObstacle", style.Lit("false"))
	e, ok := sym.Expression("labelObstacle")
	require.True(t, ok)
	assert.Equal(t, style.Lit("false"), e)
}

func TestJSONSchema_DescribesLayers(t *testing.T) {
	data, err := style.JSONSchema()
	require.NoError(t, err)

	var s map[string]any
	require.NoError(t, json.Unmarshal(data, &s))
	props, ok := s["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "layers")
}
