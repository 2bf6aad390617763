package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"sldpreview/internal/datasource"
	"sldpreview/internal/domain"
	"sldpreview/internal/featurestore"
	"sldpreview/internal/geometry"
	"sldpreview/internal/inference"
	"sldpreview/internal/secret"
	"sldpreview/internal/storage"
	"sldpreview/internal/style"
)

// ─────────────────────────────────────────────────────────────
// Preview Service — the document being previewed and its data source
// ─────────────────────────────────────────────────────────────

// Events emitted to the frontend.
const (
	EventDataSourceLoaded    = "datasource:loaded"
	EventDataSourceUnloading = "datasource:unloading"
	EventDocumentChanged     = "document:changed"
)

// ErrNoDocument is returned by operations that need an open document.
var ErrNoDocument = errors.New("no document loaded")

// LoadedEvent is the payload of EventDataSourceLoaded.
type LoadedEvent struct {
	Document  string        `json:"document"`
	Kind      geometry.Kind `json:"kind"`
	Connected bool          `json:"connected"`
}

// ProfileInput is the service-layer DTO for creating and updating
// connection profiles.
type ProfileInput struct {
	Name     string `json:"name"`
	Driver   string `json:"driver"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
	Schema   string `json:"schema"`
	SSLMode  string `json:"sslMode"`
	Table    string `json:"table"`
}

func (in ProfileInput) apply(p *domain.ConnectionProfile) {
	p.Name = in.Name
	p.Driver = domain.DatabaseDriver(in.Driver)
	p.Host = in.Host
	p.Port = in.Port
	p.Database = in.Database
	p.Username = in.Username
	p.Schema = in.Schema
	p.SSLMode = in.SSLMode
	p.Table = in.Table
}

// PreviewService holds one style document, connects it to a data source
// through the orchestrator and forwards source changes to the frontend.
type PreviewService struct {
	orch      *datasource.Orchestrator
	corrector *datasource.Corrector
	profiles  domain.ConnectionProfileStore
	samples   *storage.SampleValueStore
	secrets   secret.SecretStore
	emitter   EventEmitter
	running   reloadGuard

	mu        sync.Mutex
	docPath   string
	doc       *style.Document
	props     domain.ConnectionProperties
	profileID string

	// watcher / cron lifecycle
	watchMu     sync.Mutex
	watchCancel context.CancelFunc
	watcher     *fsnotify.Watcher
	cronSched   *cron.Cron
}

// NewPreviewService creates a PreviewService. profiles, samples and secrets
// may be nil; the features that need them then report an error or do
// nothing.
func NewPreviewService(
	profiles domain.ConnectionProfileStore,
	samples *storage.SampleValueStore,
	secrets secret.SecretStore,
	emitter EventEmitter,
) *PreviewService {
	reporter := datasource.LogReporter{}
	orch := datasource.NewOrchestrator(
		datasource.NewInternalStrategy(nil),
		datasource.NewExternalStrategy(reporter),
		datasource.NewInlineStrategy(),
		reporter,
	)
	return NewPreviewServiceWith(orch, datasource.NewCorrector(nil, reporter), profiles, samples, secrets, emitter)
}

// NewPreviewServiceWith is NewPreviewService with a caller-built
// orchestrator and corrector.
func NewPreviewServiceWith(
	orch *datasource.Orchestrator,
	corrector *datasource.Corrector,
	profiles domain.ConnectionProfileStore,
	samples *storage.SampleValueStore,
	secrets secret.SecretStore,
	emitter EventEmitter,
) *PreviewService {
	if emitter == nil {
		emitter = LogEmitter{}
	}
	s := &PreviewService{
		orch:      orch,
		corrector: corrector,
		profiles:  profiles,
		samples:   samples,
		secrets:   secrets,
		emitter:   emitter,
	}
	orch.AddListener(&datasource.ListenerFuncs{
		Loaded: s.onLoaded,
		Unload: s.onUnload,
	})
	return s
}

func (s *PreviewService) onLoaded(kind geometry.Kind, connected bool) {
	s.emitter.Emit(context.Background(), EventDataSourceLoaded, LoadedEvent{
		Document:  s.DocumentPath(),
		Kind:      kind,
		Connected: connected,
	})
}

func (s *PreviewService) onUnload(store featurestore.Store) {
	s.emitter.Emit(context.Background(), EventDataSourceUnloading, s.DocumentPath())
}

// Orchestrator exposes the underlying orchestrator.
func (s *PreviewService) Orchestrator() *datasource.Orchestrator {
	return s.orch
}

func (s *PreviewService) DocumentPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docPath
}

func (s *PreviewService) Document() *style.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// ── Documents ──────────────────────────────────────────────

// OpenDocument reads a style document from disk and connects it with the
// current connection properties.
func (s *PreviewService) OpenDocument(ctx context.Context, path string) (*Snapshot, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	doc, err := style.Load(abs)
	if err != nil {
		return nil, err
	}
	return s.LoadDocument(ctx, abs, doc)
}

// LoadDocument switches to an in-memory document. path keys the stored
// sample values and may be empty.
func (s *PreviewService) LoadDocument(ctx context.Context, path string, doc *style.Document) (*Snapshot, error) {
	if doc == nil {
		return nil, ErrNoDocument
	}
	s.mu.Lock()
	s.docPath = path
	s.doc = doc
	s.mu.Unlock()

	s.orch.Reset()
	s.orch.SetSampleValues(s.loadSampleValues(path))
	s.emitter.Emit(ctx, EventDocumentChanged, path)

	s.connect(ctx)
	return s.Snapshot(ctx), nil
}

// Reload re-reads the open document from disk and infers its schema again.
// A reload already in progress makes this call a no-op.
func (s *PreviewService) Reload(ctx context.Context) error {
	path := s.DocumentPath()
	if path == "" {
		return ErrNoDocument
	}
	if !s.running.TryLock(path) {
		log.Debug().Str("document", path).Msg("reload already running")
		return nil
	}
	defer s.running.Unlock(path)

	doc, err := style.Load(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()

	s.orch.Reset()
	s.emitter.Emit(ctx, EventDocumentChanged, path)
	s.connect(ctx)
	return nil
}

// Refresh reconnects the open document without re-reading it. Held fields
// are kept.
func (s *PreviewService) Refresh(ctx context.Context) error {
	if s.Document() == nil {
		return ErrNoDocument
	}
	key := "refresh:" + s.DocumentPath()
	if !s.running.TryLock(key) {
		return nil
	}
	defer s.running.Unlock(key)

	s.connect(ctx)
	return nil
}

func (s *PreviewService) connect(ctx context.Context) {
	s.mu.Lock()
	doc, props := s.doc, s.props.Clone()
	s.mu.Unlock()
	s.orch.ConnectAndCorrect(ctx, doc, props, s.corrector)
}

// UpdateInlineFeatures replaces the embedded features of a user layer and
// rebuilds the inline sources.
func (s *PreviewService) UpdateInlineFeatures(ctx context.Context, layerID string, fc *geojson.FeatureCollection) error {
	doc := s.Document()
	if doc == nil {
		return ErrNoDocument
	}
	if err := doc.SetInlineFeatures(layerID, fc); err != nil {
		return err
	}
	s.orch.UpdateUserLayers(ctx)
	return nil
}

// ── Connection ─────────────────────────────────────────────

// ConnectProperties connects the open document to the source described by
// props. Empty props fall back to synthesis.
func (s *PreviewService) ConnectProperties(ctx context.Context, props domain.ConnectionProperties) (*Snapshot, error) {
	if s.Document() == nil {
		return nil, ErrNoDocument
	}
	s.mu.Lock()
	s.props = props.Clone()
	s.profileID = ""
	s.mu.Unlock()

	s.connect(ctx)
	return s.Snapshot(ctx), nil
}

// ConnectProfile connects the open document to a saved profile. The
// password is resolved from the secret store.
func (s *PreviewService) ConnectProfile(ctx context.Context, id string) (*Snapshot, error) {
	props, err := s.profileProperties(id)
	if err != nil {
		return nil, err
	}
	snap, err := s.ConnectProperties(ctx, props)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.profileID = id
	s.mu.Unlock()
	snap.ProfileID = id
	return snap, nil
}

// Disconnect drops the external source and synthesizes from a fresh
// inference of the document.
func (s *PreviewService) Disconnect(ctx context.Context) (*Snapshot, error) {
	if s.Document() == nil {
		return nil, ErrNoDocument
	}
	s.mu.Lock()
	s.props = nil
	s.profileID = ""
	path := s.docPath
	s.mu.Unlock()

	s.orch.Reset()
	s.orch.SetSampleValues(s.loadSampleValues(path))
	s.connect(ctx)
	return s.Snapshot(ctx), nil
}

func (s *PreviewService) profileProperties(id string) (domain.ConnectionProperties, error) {
	if s.profiles == nil {
		return nil, fmt.Errorf("no profile store")
	}
	p, err := s.profiles.GetProfile(id)
	if err != nil {
		return nil, err
	}
	return p.Properties(secret.Password(s.secrets, id)), nil
}

// ── Fields ─────────────────────────────────────────────────

// AddField adds a field to the synthesized source.
func (s *PreviewService) AddField(ctx context.Context, field domain.AttributeField) error {
	return s.orch.AddField(ctx, field)
}

// UpdateFields replaces the synthesized source's fields.
func (s *PreviewService) UpdateFields(ctx context.Context, fields domain.FieldList) error {
	return s.orch.UpdateFields(ctx, fields)
}

// SaveSampleValues stores values for the open document and rebuilds the
// synthesized source with them.
func (s *PreviewService) SaveSampleValues(ctx context.Context, values []domain.AttributeField) error {
	path := s.DocumentPath()
	if s.samples != nil && path != "" {
		if err := s.samples.Save(path, values); err != nil {
			return err
		}
	}
	s.orch.SetSampleValues(values)
	if s.orch.IsConnected() {
		return nil
	}
	return s.orch.UpdateFields(ctx, s.orch.Fields())
}

func (s *PreviewService) loadSampleValues(path string) []domain.AttributeField {
	if s.samples == nil || path == "" {
		return nil
	}
	values, err := s.samples.Load(path)
	if err != nil {
		log.Warn().Err(err).Str("document", path).Msg("failed to load sample values")
		return nil
	}
	return values
}

// ── Queries ────────────────────────────────────────────────

// InferSchema runs schema inference over the open document.
func (s *PreviewService) InferSchema() (inference.Result, error) {
	doc := s.Document()
	if doc == nil {
		return inference.Result{}, ErrNoDocument
	}
	return inference.Infer(doc), nil
}

// Classify returns the geometry kind the open document's symbolizers imply.
func (s *PreviewService) Classify() (geometry.Kind, error) {
	doc := s.Document()
	if doc == nil {
		return geometry.Unknown, ErrNoDocument
	}
	return geometry.ClassifyDocument(doc), nil
}

// Attributes lists the active source's fields usable where expected is
// required.
func (s *PreviewService) Attributes(expected domain.ScalarType) []string {
	return s.orch.Attributes(expected)
}

// FieldView is one attribute of a snapshot. Geometry values are GeoJSON.
type FieldView struct {
	Name  string            `json:"name"`
	Type  domain.ScalarType `json:"type"`
	Value any               `json:"value,omitempty"`
}

// InlineView describes one inline source.
type InlineView struct {
	LayerID string        `json:"layerId"`
	Kind    geometry.Kind `json:"kind"`
	Fields  []FieldView   `json:"fields"`
}

// Snapshot is the state of the preview after a connect.
type Snapshot struct {
	Document      string        `json:"document"`
	ProfileID     string        `json:"profileId,omitempty"`
	Kind          geometry.Kind `json:"kind"`
	Connected     bool          `json:"connected"`
	TypeName      string        `json:"typeName"`
	GeometryField string        `json:"geometryField"`
	CRS           string        `json:"crs"`
	Fields        []FieldView   `json:"fields"`
	Inline        []InlineView  `json:"inline,omitempty"`
}

// Snapshot describes the active source and its first feature.
func (s *PreviewService) Snapshot(ctx context.Context) *Snapshot {
	s.mu.Lock()
	snap := &Snapshot{Document: s.docPath, ProfileID: s.profileID}
	s.mu.Unlock()

	active := s.orch.ActiveSource()
	snap.Kind = s.orch.GeometryKind()
	snap.Connected = s.orch.IsConnected()
	snap.TypeName = active.TypeName()
	snap.GeometryField = active.GeometryFieldName()
	if ft := active.FeatureType(); ft != nil {
		snap.CRS = ft.CRS
	}
	for _, f := range s.orch.ReadAttributes(ctx) {
		snap.Fields = append(snap.Fields, fieldView(f))
	}

	inlines := s.orch.InlineSources()
	ids := make([]string, 0, len(inlines))
	for id := range inlines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		d := inlines[id]
		view := InlineView{LayerID: id, Kind: d.GeometryKind()}
		for _, f := range d.Fields() {
			view.Fields = append(view.Fields, FieldView{Name: f.Name, Type: f.Type})
		}
		snap.Inline = append(snap.Inline, view)
	}
	return snap
}

func fieldView(f domain.AttributeField) FieldView {
	v := f.Value
	if g, ok := v.(orb.Geometry); ok {
		v = geojson.NewGeometry(g)
	}
	return FieldView{Name: f.Name, Type: f.Type, Value: v}
}

// ── Profiles ───────────────────────────────────────────────

func (s *PreviewService) ListProfiles() ([]domain.ConnectionProfile, error) {
	if s.profiles == nil {
		return nil, nil
	}
	return s.profiles.ListProfiles()
}

func (s *PreviewService) CreateProfile(input ProfileInput) (*domain.ConnectionProfile, error) {
	if s.profiles == nil {
		return nil, fmt.Errorf("no profile store")
	}
	p := &domain.ConnectionProfile{}
	input.apply(p)
	if err := s.profiles.CreateProfile(p); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	if input.Password != "" && s.secrets != nil {
		if err := s.secrets.Set(secret.ProfileKey(p.ID), []byte(input.Password)); err != nil {
			log.Warn().Err(err).Str("profile", p.ID).Msg("failed to store password")
		}
	}
	return p, nil
}

func (s *PreviewService) UpdateProfile(id string, input ProfileInput) error {
	if s.profiles == nil {
		return fmt.Errorf("no profile store")
	}
	p, err := s.profiles.GetProfile(id)
	if err != nil {
		return err
	}
	input.apply(p)
	if err := s.profiles.UpdateProfile(p); err != nil {
		return err
	}
	if input.Password != "" && s.secrets != nil {
		_ = s.secrets.Set(secret.ProfileKey(id), []byte(input.Password))
	}
	return nil
}

func (s *PreviewService) DeleteProfile(id string) error {
	if s.profiles == nil {
		return fmt.Errorf("no profile store")
	}
	if s.secrets != nil {
		_ = s.secrets.Delete(secret.ProfileKey(id))
	}
	return s.profiles.DeleteProfile(id)
}

// TestProfile opens the profile's store and closes it again.
func (s *PreviewService) TestProfile(ctx context.Context, id string) error {
	props, err := s.profileProperties(id)
	if err != nil {
		return err
	}
	store, err := featurestore.OpenVector(ctx, props)
	if err != nil {
		return err
	}
	return store.Close()
}

// Close stops watching and releases the held sources.
func (s *PreviewService) Close() {
	s.Stop()
	s.orch.Reset()
}
