package style

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ─────────────────────────────────────────────────────────────
// Wire format
// ─────────────────────────────────────────────────────────────

type documentWire struct {
	Name   string      `json:"name,omitempty" jsonschema:"description=Document title"`
	Layers []layerWire `json:"layers" jsonschema:"description=Styled layers in drawing order"`
}

type layerWire struct {
	ID             string                     `json:"id,omitempty" jsonschema:"description=Stable layer identity; generated when absent"`
	Name           string                     `json:"name"`
	Kind           LayerKind                  `json:"kind" jsonschema:"enum=named,enum=user"`
	Styles         []styleWire                `json:"styles"`
	InlineFeatures *geojson.FeatureCollection `json:"inlineFeatures,omitempty" jsonschema:"description=GeoJSON FeatureCollection embedded in a user layer"`
}

type styleWire struct {
	Name              string    `json:"name,omitempty"`
	FeatureTypeStyles []ftsWire `json:"featureTypeStyles"`
}

type ftsWire struct {
	Name  string     `json:"name,omitempty"`
	Rules []ruleWire `json:"rules"`
}

type ruleWire struct {
	Name        string           `json:"name,omitempty"`
	Filter      *filterWire      `json:"filter,omitempty"`
	Symbolizers []symbolizerWire `json:"symbolizers"`
}

type symbolizerWire struct {
	Kind        SymbolizerKind  `json:"kind" jsonschema:"enum=point,enum=line,enum=polygon,enum=raster,enum=text"`
	Geometry    *exprWire       `json:"geometry,omitempty"`
	Label       *exprWire       `json:"label,omitempty"`
	Size        *exprWire       `json:"size,omitempty"`
	Rotation    *exprWire       `json:"rotation,omitempty"`
	Opacity     *exprWire       `json:"opacity,omitempty"`
	Fill        *exprWire       `json:"fill,omitempty"`
	Stroke      *exprWire       `json:"stroke,omitempty"`
	StrokeWidth *exprWire       `json:"strokeWidth,omitempty"`
	Parameters  []parameterWire `json:"parameters,omitempty"`
}

type parameterWire struct {
	Name  string    `json:"name"`
	Value *exprWire `json:"value"`
}

// exprWire sets exactly one of property, literal or function.
type exprWire struct {
	Property string      `json:"property,omitempty"`
	Literal  any         `json:"literal,omitempty"`
	Function string      `json:"function,omitempty"`
	Args     []*exprWire `json:"args,omitempty"`
}

type filterWire struct {
	Op       string        `json:"op" jsonschema:"enum=eq,enum=ne,enum=lt,enum=le,enum=gt,enum=ge,enum=begins,enum=after,enum=before,enum=during,enum=between,enum=like,enum=isNull,enum=bbox,enum=and,enum=or,enum=not"`
	Left     *exprWire     `json:"left,omitempty"`
	Right    *exprWire     `json:"right,omitempty"`
	Expr     *exprWire     `json:"expr,omitempty"`
	Lower    *exprWire     `json:"lower,omitempty"`
	Upper    *exprWire     `json:"upper,omitempty"`
	Pattern  string        `json:"pattern,omitempty"`
	Property string        `json:"property,omitempty"`
	Bounds   []float64     `json:"bounds,omitempty" jsonschema:"minItems=4,maxItems=4"`
	CRS      string        `json:"crs,omitempty"`
	Filters  []*filterWire `json:"filters,omitempty"`
	Filter   *filterWire   `json:"filter,omitempty"`
}

// ─────────────────────────────────────────────────────────────
// Public codec
// ─────────────────────────────────────────────────────────────

// Load reads a style document from a JSON file.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open style document: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a style document in its JSON form. Layers without an ID are
// assigned a fresh one.
func Decode(r io.Reader) (*Document, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var w documentWire
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("decode style document: %w", err)
	}

	doc := &Document{Name: w.Name}
	for i, lw := range w.Layers {
		layer, err := lw.toModel()
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		doc.Layers = append(doc.Layers, layer)
	}
	return doc, nil
}

// Encode writes the document in its JSON form.
func Encode(w io.Writer, d *Document) error {
	if d == nil {
		return fmt.Errorf("nil document")
	}
	out := documentWire{Name: d.Name}
	for _, l := range d.Layers {
		if l != nil {
			out.Layers = append(out.Layers, layerToWire(l))
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// Save writes the document to a JSON file.
func Save(path string, d *Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create style document: %w", err)
	}
	if err := Encode(f, d); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ── wire → model ────────────────────────────────────────────

func (lw layerWire) toModel() (*Layer, error) {
	layer := &Layer{
		ID:             lw.ID,
		Name:           lw.Name,
		Kind:           lw.Kind,
		InlineFeatures: lw.InlineFeatures,
	}
	if layer.ID == "" {
		layer.ID = uuid.New().String()
	}
	switch layer.Kind {
	case "":
		layer.Kind = LayerNamed
		if lw.InlineFeatures != nil {
			layer.Kind = LayerUser
		}
	case LayerNamed, LayerUser:
	default:
		return nil, fmt.Errorf("unknown layer kind %q", lw.Kind)
	}

	for _, sw := range lw.Styles {
		st := &Style{Name: sw.Name}
		for _, fw := range sw.FeatureTypeStyles {
			fts := &FeatureTypeStyle{Name: fw.Name}
			for ri, rw := range fw.Rules {
				rule, err := rw.toModel()
				if err != nil {
					return nil, fmt.Errorf("rule %d: %w", ri, err)
				}
				fts.Rules = append(fts.Rules, rule)
			}
			st.FeatureTypeStyles = append(st.FeatureTypeStyles, fts)
		}
		layer.Styles = append(layer.Styles, st)
	}
	return layer, nil
}

func (rw ruleWire) toModel() (*Rule, error) {
	rule := &Rule{Name: rw.Name}
	if rw.Filter != nil {
		f, err := rw.Filter.toModel()
		if err != nil {
			return nil, fmt.Errorf("filter: %w", err)
		}
		rule.Filter = f
	}
	for si, sw := range rw.Symbolizers {
		sym, err := sw.toModel()
		if err != nil {
			return nil, fmt.Errorf("symbolizer %d: %w", si, err)
		}
		rule.Symbolizers = append(rule.Symbolizers, sym)
	}
	return rule, nil
}

func (sw symbolizerWire) toModel() (*Symbolizer, error) {
	switch sw.Kind {
	case SymbolizerPoint, SymbolizerLine, SymbolizerPolygon, SymbolizerRaster, SymbolizerText:
	default:
		return nil, fmt.Errorf("unknown symbolizer kind %q", sw.Kind)
	}

	sym := &Symbolizer{Kind: sw.Kind}
	slots := []struct {
		name string
		w    *exprWire
	}{
		{ParamGeometry, sw.Geometry},
		{ParamLabel, sw.Label},
		{ParamSize, sw.Size},
		{ParamRotation, sw.Rotation},
		{ParamOpacity, sw.Opacity},
		{ParamFill, sw.Fill},
		{ParamStroke, sw.Stroke},
		{ParamStrokeWidth, sw.StrokeWidth},
	}
	for _, s := range slots {
		if s.w == nil {
			continue
		}
		e, err := s.w.toModel()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
		sym.SetExpression(s.name, e)
	}
	for _, pw := range sw.Parameters {
		if pw.Value == nil {
			continue
		}
		e, err := pw.Value.toModel()
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", pw.Name, err)
		}
		sym.Parameters = append(sym.Parameters, Parameter{Name: pw.Name, Value: e})
	}
	return sym, nil
}

func (ew *exprWire) toModel() (Expression, error) {
	switch {
	case ew == nil:
		return nil, fmt.Errorf("missing expression")
	case ew.Property != "":
		return Property{Name: ew.Property}, nil
	case ew.Function != "":
		fn := Function{Name: ew.Function}
		for i, aw := range ew.Args {
			arg, err := aw.toModel()
			if err != nil {
				return nil, fmt.Errorf("%s arg %d: %w", ew.Function, i, err)
			}
			fn.Args = append(fn.Args, arg)
		}
		return fn, nil
	case ew.Literal != nil:
		return Literal{Value: literalText(ew.Literal)}, nil
	}
	return nil, fmt.Errorf("empty expression")
}

func literalText(v any) string {
	switch x := v.(type) {
	case json.Number:
		return x.String()
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func (fw *filterWire) toModel() (Filter, error) {
	switch op := CompareOp(fw.Op); {
	case op.Valid():
		left, err := fw.Left.toModel()
		if err != nil {
			return nil, fmt.Errorf("%s left: %w", op, err)
		}
		right, err := fw.Right.toModel()
		if err != nil {
			return nil, fmt.Errorf("%s right: %w", op, err)
		}
		return Comparison{Op: op, Left: left, Right: right}, nil
	}

	switch fw.Op {
	case "between":
		expr, err := fw.Expr.toModel()
		if err != nil {
			return nil, fmt.Errorf("between expr: %w", err)
		}
		lower, err := fw.Lower.toModel()
		if err != nil {
			return nil, fmt.Errorf("between lower: %w", err)
		}
		upper, err := fw.Upper.toModel()
		if err != nil {
			return nil, fmt.Errorf("between upper: %w", err)
		}
		return Between{Expr: expr, Lower: lower, Upper: upper}, nil
	case "like":
		expr, err := fw.Expr.toModel()
		if err != nil {
			return nil, fmt.Errorf("like expr: %w", err)
		}
		return Like{Expr: expr, Pattern: fw.Pattern}, nil
	case "isNull":
		expr, err := fw.Expr.toModel()
		if err != nil {
			return nil, fmt.Errorf("isNull expr: %w", err)
		}
		return IsNull{Expr: expr}, nil
	case "bbox":
		if fw.Property == "" {
			return nil, fmt.Errorf("bbox: property is required")
		}
		if len(fw.Bounds) != 4 {
			return nil, fmt.Errorf("bbox: bounds must have 4 values, got %d", len(fw.Bounds))
		}
		return BBox{
			Property: fw.Property,
			Bounds: orb.Bound{
				Min: orb.Point{fw.Bounds[0], fw.Bounds[1]},
				Max: orb.Point{fw.Bounds[2], fw.Bounds[3]},
			},
			CRS: fw.CRS,
		}, nil
	case "and", "or":
		l := Logical{Op: LogicOp(fw.Op)}
		for i, child := range fw.Filters {
			if child == nil {
				continue
			}
			f, err := child.toModel()
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", fw.Op, i, err)
			}
			l.Filters = append(l.Filters, f)
		}
		return l, nil
	case "not":
		if fw.Filter == nil {
			return nil, fmt.Errorf("not: filter is required")
		}
		f, err := fw.Filter.toModel()
		if err != nil {
			return nil, fmt.Errorf("not: %w", err)
		}
		return Negation{Filter: f}, nil
	}
	return nil, fmt.Errorf("unknown filter op %q", fw.Op)
}

// ── model → wire ────────────────────────────────────────────

func layerToWire(l *Layer) layerWire {
	lw := layerWire{ID: l.ID, Name: l.Name, Kind: l.Kind, InlineFeatures: l.InlineFeatures}
	for _, st := range l.Styles {
		if st == nil {
			continue
		}
		sw := styleWire{Name: st.Name}
		for _, fts := range st.FeatureTypeStyles {
			if fts == nil {
				continue
			}
			fw := ftsWire{Name: fts.Name}
			for _, rule := range fts.Rules {
				if rule != nil {
					fw.Rules = append(fw.Rules, ruleToWire(rule))
				}
			}
			sw.FeatureTypeStyles = append(sw.FeatureTypeStyles, fw)
		}
		lw.Styles = append(lw.Styles, sw)
	}
	return lw
}

func ruleToWire(r *Rule) ruleWire {
	rw := ruleWire{Name: r.Name, Filter: filterToWire(r.Filter)}
	for _, sym := range r.Symbolizers {
		if sym == nil {
			continue
		}
		sw := symbolizerWire{
			Kind:        sym.Kind,
			Geometry:    exprToWire(sym.Geometry),
			Label:       exprToWire(sym.Label),
			Size:        exprToWire(sym.Size),
			Rotation:    exprToWire(sym.Rotation),
			Opacity:     exprToWire(sym.Opacity),
			Fill:        exprToWire(sym.Fill),
			Stroke:      exprToWire(sym.Stroke),
			StrokeWidth: exprToWire(sym.StrokeWidth),
		}
		for _, p := range sym.Parameters {
			sw.Parameters = append(sw.Parameters, parameterWire{Name: p.Name, Value: exprToWire(p.Value)})
		}
		rw.Symbolizers = append(rw.Symbolizers, sw)
	}
	return rw
}

func exprToWire(e Expression) *exprWire {
	switch x := e.(type) {
	case Property:
		return &exprWire{Property: x.Name}
	case Literal:
		return &exprWire{Literal: x.Value}
	case Function:
		w := &exprWire{Function: x.Name}
		for _, a := range x.Args {
			w.Args = append(w.Args, exprToWire(a))
		}
		return w
	}
	return nil
}

func filterToWire(f Filter) *filterWire {
	switch x := f.(type) {
	case Comparison:
		return &filterWire{Op: string(x.Op), Left: exprToWire(x.Left), Right: exprToWire(x.Right)}
	case Between:
		return &filterWire{Op: "between", Expr: exprToWire(x.Expr), Lower: exprToWire(x.Lower), Upper: exprToWire(x.Upper)}
	case Like:
		return &filterWire{Op: "like", Expr: exprToWire(x.Expr), Pattern: x.Pattern}
	case IsNull:
		return &filterWire{Op: "isNull", Expr: exprToWire(x.Expr)}
	case BBox:
		return &filterWire{
			Op:       "bbox",
			Property: x.Property,
			Bounds:   []float64{x.Bounds.Min[0], x.Bounds.Min[1], x.Bounds.Max[0], x.Bounds.Max[1]},
			CRS:      x.CRS,
		}
	case Logical:
		w := &filterWire{Op: string(x.Op)}
		for _, child := range x.Filters {
			w.Filters = append(w.Filters, filterToWire(child))
		}
		return w
	case Negation:
		return &filterWire{Op: "not", Filter: filterToWire(x.Filter)}
	}
	return nil
}
