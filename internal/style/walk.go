package style

import (
	"fmt"

	"github.com/paulmach/orb/geojson"
)

// EachRule calls fn for every rule of every layer, in document order.
func (d *Document) EachRule(fn func(layer *Layer, rule *Rule)) {
	if d == nil {
		return
	}
	for _, layer := range d.Layers {
		if layer == nil {
			continue
		}
		for _, st := range layer.Styles {
			if st == nil {
				continue
			}
			for _, fts := range st.FeatureTypeStyles {
				if fts == nil {
					continue
				}
				for _, rule := range fts.Rules {
					if rule != nil {
						fn(layer, rule)
					}
				}
			}
		}
	}
}

// EachSymbolizer calls fn for every symbolizer with its enclosing layer and rule.
func (d *Document) EachSymbolizer(fn func(layer *Layer, rule *Rule, sym *Symbolizer)) {
	d.EachRule(func(layer *Layer, rule *Rule) {
		for _, sym := range rule.Symbolizers {
			if sym != nil {
				fn(layer, rule, sym)
			}
		}
	})
}

// Symbolizers returns every symbolizer in document order.
func (d *Document) Symbolizers() []*Symbolizer {
	var out []*Symbolizer
	d.EachSymbolizer(func(_ *Layer, _ *Rule, sym *Symbolizer) {
		out = append(out, sym)
	})
	return out
}

// Layer returns the layer with the given ID.
func (d *Document) Layer(id string) (*Layer, bool) {
	if d == nil {
		return nil, false
	}
	for _, l := range d.Layers {
		if l != nil && l.ID == id {
			return l, true
		}
	}
	return nil, false
}

// InlineLayers returns the user layers that embed a feature collection.
func (d *Document) InlineLayers() []*Layer {
	if d == nil {
		return nil
	}
	var out []*Layer
	for _, l := range d.Layers {
		if l.HasInlineFeatures() {
			out = append(out, l)
		}
	}
	return out
}

// SetInlineFeatures replaces the embedded features of a user layer.
func (d *Document) SetInlineFeatures(layerID string, fc *geojson.FeatureCollection) error {
	l, ok := d.Layer(layerID)
	if !ok {
		return fmt.Errorf("layer not found: %s", layerID)
	}
	if l.Kind != LayerUser {
		return fmt.Errorf("layer %s is not a user layer", layerID)
	}
	l.InlineFeatures = fc
	return nil
}

// Expression returns the named symbolizer expression.
func (s *Symbolizer) Expression(name string) (Expression, bool) {
	for _, ne := range s.Expressions() {
		if ne.Name == name {
			return ne.Expr, true
		}
	}
	return nil, false
}

// SetExpression replaces the named expression, adding a vendor parameter
// when the name is not one of the built-in slots.
func (s *Symbolizer) SetExpression(name string, e Expression) {
	switch name {
	case ParamGeometry:
		s.Geometry = e
	case ParamLabel:
		s.Label = e
	case ParamSize:
		s.Size = e
	case ParamRotation:
		s.Rotation = e
	case ParamOpacity:
		s.Opacity = e
	case ParamFill:
		s.Fill = e
	case ParamStroke:
		s.Stroke = e
	case ParamStrokeWidth:
		s.StrokeWidth = e
	default:
		for i := range s.Parameters {
			if s.Parameters[i].Name == name {
				s.Parameters[i].Value = e
				return
			}
		}
		s.Parameters = append(s.Parameters, Parameter{Name: name, Value: e})
	}
}
