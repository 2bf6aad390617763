package datasource

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"sldpreview/internal/domain"
	"sldpreview/internal/featurestore"
	"sldpreview/internal/geometry"
	"sldpreview/internal/sample"
	"sldpreview/internal/style"
)

// ErrConnected is returned by AddField and UpdateFields while a real source
// is connected; its schema is authoritative.
var ErrConnected = errors.New("connected to a real data source")

// MaxCorrectionAttempts bounds ConnectAndCorrect.
const MaxCorrectionAttempts = 3

// Listener is told when the active source changes.
type Listener interface {
	DataSourceLoaded(kind geometry.Kind, connected bool)
	DataSourceAboutToUnload(store featurestore.Store)
}

// ListenerFuncs adapts a pair of functions to Listener. Either may be nil.
// Register it by pointer.
type ListenerFuncs struct {
	Loaded func(kind geometry.Kind, connected bool)
	Unload func(store featurestore.Store)
}

func (f *ListenerFuncs) DataSourceLoaded(kind geometry.Kind, connected bool) {
	if f.Loaded != nil {
		f.Loaded(kind, connected)
	}
}

func (f *ListenerFuncs) DataSourceAboutToUnload(store featurestore.Store) {
	if f.Unload != nil {
		f.Unload(store)
	}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithFields seeds the held field list.
func WithFields(fields domain.FieldList) Option {
	return func(o *Orchestrator) { o.fields = fields.Clone() }
}

// WithSampleValues sets stored sample values used for synthesized features.
func WithSampleValues(values []domain.AttributeField) Option {
	return func(o *Orchestrator) { o.values = append([]domain.AttributeField(nil), values...) }
}

// Orchestrator owns the active, example and inline descriptors of the
// document being previewed.
type Orchestrator struct {
	internal Strategy
	external Strategy
	inline   Strategy
	reporter ErrorReporter

	mu        sync.Mutex
	doc       *style.Document
	props     domain.ConnectionProperties
	fields    domain.FieldList
	values    []domain.AttributeField
	active    *SourceDescriptor
	example   *SourceDescriptor
	inlines   []*SourceDescriptor
	listeners []Listener
	connected bool
}

func NewOrchestrator(internal, external, inline Strategy, reporter ErrorReporter, opts ...Option) *Orchestrator {
	if reporter == nil {
		reporter = LogReporter{}
	}
	o := &Orchestrator{
		internal: internal,
		external: external,
		inline:   inline,
		reporter: reporter,
		active:   NewSourceDescriptor(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ── Listeners ───────────────────────────────────────────────

// AddListener registers l. When a geometry kind is already known, l is told
// at once, even if it was registered before.
func (o *Orchestrator) AddListener(l Listener) {
	if l == nil {
		return
	}
	o.mu.Lock()
	registered := false
	for _, existing := range o.listeners {
		if existing == l {
			registered = true
			break
		}
	}
	if !registered {
		o.listeners = append(o.listeners, l)
	}
	kind, connected := o.active.GeometryKind(), o.connected
	o.mu.Unlock()

	if kind != geometry.Unknown {
		l.DataSourceLoaded(kind, connected)
	}
}

func (o *Orchestrator) RemoveListener(l Listener) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, existing := range o.listeners {
		if existing == l {
			o.listeners = append(o.listeners[:i:i], o.listeners[i+1:]...)
			return
		}
	}
}

func (o *Orchestrator) listenersLocked() []Listener {
	return append([]Listener(nil), o.listeners...)
}

func notifyLoaded(listeners []Listener, kind geometry.Kind, connected bool) {
	for _, l := range listeners {
		l.DataSourceLoaded(kind, connected)
	}
}

func notifyUnload(listeners []Listener, stores []featurestore.Store) {
	for _, s := range stores {
		for _, l := range listeners {
			l.DataSourceAboutToUnload(s)
		}
	}
}

// ── Connect ─────────────────────────────────────────────────

// Connect releases every held source, then builds the example source, the
// inline sources, and the active source: External when props is non-empty,
// else Internal. Held fields survive only a reconnect of the same document.
// Listeners are told once the active source is populated; when nothing could
// be built they are not called.
func (o *Orchestrator) Connect(ctx context.Context, doc *style.Document, props domain.ConnectionProperties) {
	if doc == nil {
		return
	}

	o.mu.Lock()
	listeners := o.listenersLocked()
	unloading := o.openStoresLocked()
	o.mu.Unlock()

	notifyUnload(listeners, unloading)

	o.mu.Lock()
	o.resetLocked()
	if o.doc != nil && o.doc != doc {
		o.fields = nil
	}
	o.doc = doc
	o.props = props.Clone()
	o.buildExampleLocked(ctx)
	o.buildInlineLocked(ctx)
	if !o.props.IsEmpty() {
		o.openExternalLocked(ctx)
	} else {
		o.openInternalLocked(ctx)
	}
	listeners = o.listenersLocked()
	kind, connected, populated := o.active.GeometryKind(), o.connected, o.active.HasData()
	o.mu.Unlock()

	if populated {
		notifyLoaded(listeners, kind, connected)
	}
}

// Reset releases every held source and forgets the document and fields.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	listeners := o.listenersLocked()
	unloading := o.openStoresLocked()
	o.mu.Unlock()

	notifyUnload(listeners, unloading)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.resetLocked()
	o.doc = nil
	o.props = nil
	o.fields = nil
}

// openStoresLocked lists the stores held by the active and example sources.
func (o *Orchestrator) openStoresLocked() []featurestore.Store {
	var stores []featurestore.Store
	for _, d := range []*SourceDescriptor{o.active, o.example} {
		if d != nil && d.Store() != nil {
			stores = append(stores, d.Store())
		}
	}
	return stores
}

// resetLocked closes every held store.
func (o *Orchestrator) resetLocked() {
	for _, d := range append([]*SourceDescriptor{o.active, o.example}, o.inlines...) {
		d.Reset()
	}
	o.active = NewSourceDescriptor()
	o.example = nil
	o.inlines = nil
	o.connected = false
}

func (o *Orchestrator) request() ConnectRequest {
	return ConnectRequest{
		Document:   o.doc,
		Properties: o.props,
		Fields:     o.fields,
		Values:     o.values,
	}
}

func (o *Orchestrator) buildExampleLocked(ctx context.Context) {
	if o.internal == nil {
		o.reporter.Report("Orchestrator", errors.New("no internal strategy set"))
		return
	}
	list, err := o.internal.Connect(ctx, o.request())
	if err != nil {
		o.reporter.Report("Orchestrator", err)
		return
	}
	if len(list) == 1 {
		o.example.Reset()
		o.example = list[0]
	}
}

func (o *Orchestrator) buildInlineLocked(ctx context.Context) {
	for _, d := range o.inlines {
		d.Reset()
	}
	o.inlines = nil
	if o.inline == nil {
		o.reporter.Report("Orchestrator", errors.New("no inline strategy set"))
		return
	}
	list, err := o.inline.Connect(ctx, o.request())
	if err != nil {
		o.reporter.Report("Orchestrator", err)
		return
	}
	o.inlines = list
}

func (o *Orchestrator) openInternalLocked(ctx context.Context) {
	o.connected = false
	if o.internal == nil {
		o.reporter.Report("Orchestrator", errors.New("no internal strategy set"))
		return
	}
	list, err := o.internal.Connect(ctx, o.request())
	if err != nil {
		o.reporter.Report("Orchestrator", err)
		return
	}
	if len(list) == 1 {
		o.active.Reset()
		o.active = list[0]
		if len(o.fields) == 0 {
			o.fields = scalarFields(o.active.Fields())
		}
	}
}

func (o *Orchestrator) openExternalLocked(ctx context.Context) {
	if o.external == nil {
		o.reporter.Report("Orchestrator", errors.New("no external strategy set"))
		return
	}
	list, err := o.external.Connect(ctx, o.request())
	if err != nil {
		o.reporter.Report("Orchestrator", err)
	}
	if len(list) != 1 || !list[0].HasData() {
		for _, d := range list {
			d.Reset()
		}
		o.openInternalLocked(ctx)
		return
	}

	o.active.Reset()
	o.active = list[0]
	o.connected = true
	// The real schema replaces whatever fields were held
	o.fields = scalarFields(o.readAttributesLocked(ctx))
	log.Info().Str("type", o.active.TypeName()).Stringer("kind", o.active.GeometryKind()).Msg("connected to external source")
}

// scalarFields drops geometry fields.
func scalarFields(fields domain.FieldList) domain.FieldList {
	var out domain.FieldList
	for _, f := range fields {
		if !f.Type.IsGeometry() {
			out = append(out, f)
		}
	}
	return out
}

// ── Fields ──────────────────────────────────────────────────

// AddField appends a field and rebuilds the synthesized source. It is
// rejected while connected to a real source.
func (o *Orchestrator) AddField(ctx context.Context, field domain.AttributeField) error {
	if field.Name == "" {
		return nil
	}
	o.mu.Lock()
	if o.connected {
		o.mu.Unlock()
		return ErrConnected
	}
	o.fields = o.fields.Clone().Add(field)
	o.mu.Unlock()

	o.regenerate(ctx)
	return nil
}

// UpdateFields replaces the field list and rebuilds the synthesized source.
// It is rejected while connected to a real source.
func (o *Orchestrator) UpdateFields(ctx context.Context, fields domain.FieldList) error {
	if fields == nil {
		return nil
	}
	o.mu.Lock()
	if o.connected {
		o.mu.Unlock()
		return ErrConnected
	}
	o.fields = fields.Clone()
	o.mu.Unlock()

	o.regenerate(ctx)
	return nil
}

// UpdateFieldType changes the type of a held field.
func (o *Orchestrator) UpdateFieldType(name string, t domain.ScalarType) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fields := o.fields.Clone()
	if fields.SetType(name, t) {
		o.fields = fields
	}
}

// SetSampleValues replaces the stored sample values. They apply from the
// next build.
func (o *Orchestrator) SetSampleValues(values []domain.AttributeField) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.values = append([]domain.AttributeField(nil), values...)
}

// Fields returns the held field list.
func (o *Orchestrator) Fields() domain.FieldList {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fields.Clone()
}

// regenerate rebuilds the active source from the held fields and notifies.
func (o *Orchestrator) regenerate(ctx context.Context) {
	o.mu.Lock()
	if o.doc == nil {
		o.mu.Unlock()
		return
	}
	listeners := o.listenersLocked()
	var unloading []featurestore.Store
	if s := o.active.Store(); s != nil {
		unloading = append(unloading, s)
	}
	o.mu.Unlock()

	notifyUnload(listeners, unloading)

	o.mu.Lock()
	o.openInternalLocked(ctx)
	listeners = o.listenersLocked()
	kind, connected, populated := o.active.GeometryKind(), o.connected, o.active.HasData()
	o.mu.Unlock()

	if populated {
		notifyLoaded(listeners, kind, connected)
	}
}

// UpdateUserLayers rebuilds the inline sources after the document's
// embedded features changed.
func (o *Orchestrator) UpdateUserLayers(ctx context.Context) {
	o.mu.Lock()
	if o.doc == nil {
		o.mu.Unlock()
		return
	}
	o.buildInlineLocked(ctx)
	listeners := o.listenersLocked()
	kind, connected, populated := o.active.GeometryKind(), o.connected, o.active.HasData()
	o.mu.Unlock()

	if populated {
		notifyLoaded(listeners, kind, connected)
	}
}

// ── Queries ─────────────────────────────────────────────────

func (o *Orchestrator) ActiveSource() *SourceDescriptor {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// ExampleSource is the synthesized source used to preview a single symbol.
func (o *Orchestrator) ExampleSource() *SourceDescriptor {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.example
}

func (o *Orchestrator) GeometryKind() geometry.Kind {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active.GeometryKind()
}

func (o *Orchestrator) IsConnected() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.connected
}

// Attributes returns the names of the active source's fields that can feed
// a value of the expected type.
func (o *Orchestrator) Attributes(expected domain.ScalarType) []string {
	var out []string
	for _, f := range o.PropertyDescriptors() {
		if f.Type.AllowedFor(expected) {
			out = append(out, f.Name)
		}
	}
	return out
}

// PropertyDescriptors returns the active source's fields, geometry included.
func (o *Orchestrator) PropertyDescriptors() []domain.AttributeField {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active.Fields()
}

// InlineSources returns the inline sources keyed by layer ID.
func (o *Orchestrator) InlineSources() map[string]*SourceDescriptor {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]*SourceDescriptor, len(o.inlines))
	for _, d := range o.inlines {
		out[d.ID()] = d
	}
	return out
}

// InlineLayerIDs returns the IDs of the inline sources in sorted order.
func (o *Orchestrator) InlineLayerIDs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]string, 0, len(o.inlines))
	for _, d := range o.inlines {
		ids = append(ids, d.ID())
	}
	sort.Strings(ids)
	return ids
}

func (o *Orchestrator) InlineSource(layerID string) (*SourceDescriptor, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, d := range o.inlines {
		if d.ID() == layerID {
			return d, true
		}
	}
	return nil, false
}

// ReadAttributes reads the active source's first feature into fields with
// values. Geometry fields take the type of their value.
func (o *Orchestrator) ReadAttributes(ctx context.Context) []domain.AttributeField {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.readAttributesLocked(ctx)
}

func (o *Orchestrator) readAttributesLocked(ctx context.Context) []domain.AttributeField {
	ft := o.active.FeatureType()
	if ft == nil {
		return nil
	}
	f, err := o.active.FirstFeature(ctx)
	if err != nil {
		o.reporter.Report("Orchestrator", err)
		return nil
	}

	out := make([]domain.AttributeField, 0, len(ft.Fields))
	for i, field := range ft.Fields {
		var v any
		if f != nil && i < len(f.Values) {
			v = f.Values[i]
		}
		t := field.Type
		if t == domain.TypeGeometry && v != nil {
			t = geometry.TypeOf(v)
		}
		if !t.IsGeometry() {
			v = sample.PlaceholderValue(i, field.Name, t, v)
		}
		out = append(out, domain.AttributeField{Name: field.Name, Type: t, Value: v})
	}
	return out
}

// ConnectAndCorrect connects, then on the synthesized path runs correction
// passes, rebuilding after each pass that changed a field type, at most
// MaxCorrectionAttempts times.
func (o *Orchestrator) ConnectAndCorrect(ctx context.Context, doc *style.Document, props domain.ConnectionProperties, c *Corrector) {
	o.Connect(ctx, doc, props)
	if c == nil || doc == nil {
		return
	}
	for attempt := 0; attempt < MaxCorrectionAttempts; attempt++ {
		if o.IsConnected() {
			return
		}
		if !c.Attempt(ctx, doc, o.ActiveSource(), o) {
			return
		}
		o.regenerate(ctx)
	}
}
