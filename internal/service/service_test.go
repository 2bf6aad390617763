package service_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sldpreview/internal/domain"
	"sldpreview/internal/geometry"
	"sldpreview/internal/secret"
	"sldpreview/internal/service"
	"sldpreview/internal/storage"
	"sldpreview/internal/style"
)

// ─────────────────────────────────────────────────────────────
// Fixtures
// ─────────────────────────────────────────────────────────────

func pointDocument() *style.Document {
	return &style.Document{Name: "towns", Layers: []*style.Layer{{
		ID:   "towns",
		Kind: style.LayerNamed,
		Styles: []*style.Style{{FeatureTypeStyles: []*style.FeatureTypeStyle{{
			Rules: []*style.Rule{{Symbolizers: []*style.Symbolizer{{
				Kind:     style.SymbolizerPoint,
				Geometry: style.Prop("location"),
				Label:    style.Prop("name"),
				Size:     style.Prop("pop"),
			}}}},
		}}}},
	}}}
}

const roadsGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"ref": "A1", "lanes": 2},
     "geometry": {"type": "LineString", "coordinates": [[0, 0], [1, 1]]}}
  ]
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func newService(t *testing.T) (*service.PreviewService, *service.MockEmitter) {
	t.Helper()
	emitter := &service.MockEmitter{}
	svc := service.NewPreviewService(nil, nil, nil, emitter)
	t.Cleanup(svc.Close)
	return svc, emitter
}

func findField(snap *service.Snapshot, name string) (service.FieldView, bool) {
	for _, f := range snap.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return service.FieldView{}, false
}

// ─────────────────────────────────────────────────────────────
// reloadGuard tests
// ─────────────────────────────────────────────────────────────

func TestReloadGuard_TryLock(t *testing.T) {
	var g service.ExportedRunningGuard

	if !g.TryLock("/styles/a.json") {
		t.Fatal("expected first TryLock to succeed")
	}
	if g.TryLock("/styles/a.json") {
		t.Fatal("expected second TryLock for same document to fail")
	}
	if !g.TryLock("/styles/b.json") {
		t.Fatal("expected TryLock for different document to succeed")
	}
	g.Unlock("/styles/a.json")
	g.Unlock("/styles/b.json")

	if !g.TryLock("/styles/a.json") {
		t.Fatal("expected TryLock to succeed after unlock")
	}
	g.Unlock("/styles/a.json")
}

func TestReloadGuard_WaitAll(t *testing.T) {
	var g service.ExportedRunningGuard

	if !g.TryLock("doc") {
		t.Fatal("expected lock to succeed")
	}

	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		g.WaitAll(ctx)
		close(done)
	}()

	go func() {
		time.Sleep(20 * time.Millisecond)
		g.Unlock("doc")
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("WaitAll timed out")
	}
}

// ─────────────────────────────────────────────────────────────
// MockEmitter tests
// ─────────────────────────────────────────────────────────────

func TestMockEmitter_RecordsEvents(t *testing.T) {
	m := &service.MockEmitter{}
	ctx := context.Background()

	m.Emit(ctx, "test:event", map[string]string{"foo": "bar"})
	m.Emit(ctx, "test:event2", nil)
	m.Emit(ctx, "test:event", "again")

	if len(m.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(m.Events))
	}
	if got := m.Named("test:event"); len(got) != 2 || got[1].Data != "again" {
		t.Errorf("unexpected Named result: %+v", got)
	}
}

// ─────────────────────────────────────────────────────────────
// PreviewService tests
// ─────────────────────────────────────────────────────────────

func TestPreviewService_RequiresDocument(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.LoadDocument(ctx, "", nil); err != service.ErrNoDocument {
		t.Errorf("expected ErrNoDocument, got %v", err)
	}
	if _, err := svc.ConnectProperties(ctx, nil); err != service.ErrNoDocument {
		t.Errorf("expected ErrNoDocument, got %v", err)
	}
	if err := svc.Reload(ctx); err != service.ErrNoDocument {
		t.Errorf("expected ErrNoDocument, got %v", err)
	}
	if _, err := svc.InferSchema(); err != service.ErrNoDocument {
		t.Errorf("expected ErrNoDocument, got %v", err)
	}
}

func TestPreviewService_SynthesizesAndEmits(t *testing.T) {
	svc, emitter := newService(t)

	snap, err := svc.LoadDocument(context.Background(), "towns.json", pointDocument())
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	if snap.Connected {
		t.Error("expected a synthesized source")
	}
	if snap.Kind != geometry.Point {
		t.Errorf("expected Point, got %v", snap.Kind)
	}
	if snap.GeometryField != "location" {
		t.Errorf("expected geometry field 'location', got %q", snap.GeometryField)
	}
	if snap.CRS != domain.DefaultCRS {
		t.Errorf("expected %s, got %s", domain.DefaultCRS, snap.CRS)
	}
	if f, ok := findField(snap, "name"); !ok || f.Value != "name" {
		t.Errorf("expected placeholder value 'name', got %+v", f)
	}
	if f, ok := findField(snap, "location"); !ok || f.Value == nil {
		t.Errorf("expected an example geometry, got %+v", f)
	}

	loaded := emitter.Named(service.EventDataSourceLoaded)
	if len(loaded) != 1 {
		t.Fatalf("expected 1 loaded event, got %d", len(loaded))
	}
	ev, ok := loaded[0].Data.(service.LoadedEvent)
	if !ok {
		t.Fatalf("unexpected payload %T", loaded[0].Data)
	}
	if ev.Document != "towns.json" || ev.Kind != geometry.Point || ev.Connected {
		t.Errorf("unexpected event %+v", ev)
	}
	if len(emitter.Named(service.EventDocumentChanged)) != 1 {
		t.Error("expected one document:changed event")
	}
}

func TestPreviewService_InferAndClassify(t *testing.T) {
	svc, _ := newService(t)
	if _, err := svc.LoadDocument(context.Background(), "", pointDocument()); err != nil {
		t.Fatal(err)
	}

	res, err := svc.InferSchema()
	if err != nil {
		t.Fatal(err)
	}
	if len(res.GeometryFields) != 1 || res.GeometryFields[0] != "location" {
		t.Errorf("unexpected geometry fields %v", res.GeometryFields)
	}
	kind, err := svc.Classify()
	if err != nil || kind != geometry.Point {
		t.Errorf("expected Point, got %v (%v)", kind, err)
	}
	attrs := svc.Attributes(domain.TypeDouble)
	if len(attrs) != 1 || attrs[0] != "pop" {
		t.Errorf("expected [pop], got %v", attrs)
	}
}

func TestPreviewService_ConnectGeoJSONAndDisconnect(t *testing.T) {
	svc, emitter := newService(t)
	ctx := context.Background()
	roads := writeFile(t, t.TempDir(), "roads.geojson", roadsGeoJSON)

	if _, err := svc.LoadDocument(ctx, "", pointDocument()); err != nil {
		t.Fatal(err)
	}
	snap, err := svc.ConnectProperties(ctx, domain.ConnectionProperties{domain.PropURL: roads})
	if err != nil {
		t.Fatal(err)
	}
	if !snap.Connected {
		t.Fatal("expected connected")
	}
	if snap.Kind != geometry.Line {
		t.Errorf("expected Line, got %v", snap.Kind)
	}
	if snap.CRS != domain.DefaultCRS {
		t.Errorf("expected default CRS to be applied, got %q", snap.CRS)
	}
	if f, ok := findField(snap, "ref"); !ok || f.Value != "A1" {
		t.Errorf("expected ref=A1, got %+v", f)
	}
	if err := svc.AddField(ctx, domain.AttributeField{Name: "x", Type: domain.TypeString}); err == nil {
		t.Error("expected AddField to be rejected while connected")
	}
	if len(emitter.Named(service.EventDataSourceUnloading)) == 0 {
		t.Error("expected the synthesized source to be unloaded before connecting")
	}

	snap, err = svc.Disconnect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Connected || snap.Kind != geometry.Point {
		t.Errorf("expected a synthesized Point source, got %+v", snap)
	}
	if _, ok := findField(snap, "ref"); ok {
		t.Error("expected fields to be inferred again after disconnect")
	}
}

func TestPreviewService_ProfilesAndSampleValues(t *testing.T) {
	db, err := storage.New(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	secrets := secret.NewEnvStore()
	svc := service.NewPreviewService(storage.NewProfileStore(db), storage.NewSampleValueStore(db), secrets, &service.MockEmitter{})
	defer svc.Close()
	ctx := context.Background()

	dir := t.TempDir()
	roads := writeFile(t, dir, "roads.geojson", roadsGeoJSON)
	p, err := svc.CreateProfile(service.ProfileInput{Name: "roads", Driver: "geojson", Host: roads, Password: "pw"})
	if err != nil {
		t.Fatal(err)
	}
	if secret.Password(secrets, p.ID) != "pw" {
		t.Error("expected password in secret store")
	}
	if err := svc.TestProfile(ctx, p.ID); err != nil {
		t.Errorf("TestProfile: %v", err)
	}

	docPath := filepath.Join(dir, "towns.json")
	if err := style.Save(docPath, pointDocument()); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.OpenDocument(ctx, docPath); err != nil {
		t.Fatal(err)
	}

	if err := svc.SaveSampleValues(ctx, []domain.AttributeField{{Name: "name", Type: domain.TypeString, Value: "Oxford"}}); err != nil {
		t.Fatal(err)
	}
	snap := svc.Snapshot(ctx)
	if f, _ := findField(snap, "name"); f.Value != "Oxford" {
		t.Errorf("expected sample value Oxford, got %v", f.Value)
	}

	// A fresh open of the same document reuses the stored values
	snap, err = svc.OpenDocument(ctx, docPath)
	if err != nil {
		t.Fatal(err)
	}
	if f, _ := findField(snap, "name"); f.Value != "Oxford" {
		t.Errorf("expected stored sample value after reopen, got %v", f.Value)
	}

	snap, err = svc.ConnectProfile(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !snap.Connected || snap.ProfileID != p.ID {
		t.Errorf("expected connection through profile, got %+v", snap)
	}

	if err := svc.DeleteProfile(p.ID); err != nil {
		t.Fatal(err)
	}
	profiles, _ := svc.ListProfiles()
	if len(profiles) != 0 {
		t.Errorf("expected no profiles, got %d", len(profiles))
	}
	if secret.Password(secrets, p.ID) != "" {
		t.Error("expected password to be removed")
	}
}

func TestPreviewService_ReloadReinfers(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	docPath := filepath.Join(t.TempDir(), "towns.json")

	if err := style.Save(docPath, pointDocument()); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.OpenDocument(ctx, docPath); err != nil {
		t.Fatal(err)
	}

	doc := pointDocument()
	doc.Layers[0].Styles[0].FeatureTypeStyles[0].Rules[0].Symbolizers[0].Rotation = style.Prop("heading")
	if err := style.Save(docPath, doc); err != nil {
		t.Fatal(err)
	}
	if err := svc.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := findField(svc.Snapshot(ctx), "heading"); !ok {
		t.Error("expected the reloaded document's new field")
	}
}

func TestPreviewService_WatchRejectsBadSchedule(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	docPath := filepath.Join(t.TempDir(), "towns.json")
	if err := style.Save(docPath, pointDocument()); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.OpenDocument(ctx, docPath); err != nil {
		t.Fatal(err)
	}

	if err := svc.Watch(ctx, "not a schedule"); err == nil {
		t.Error("expected invalid schedule error")
	}
	if err := svc.Watch(ctx, "@every 1h"); err != nil {
		t.Errorf("Watch: %v", err)
	}
	svc.Stop()
	svc.Stop()
}
