package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sldpreview/internal/secret"
	"sldpreview/internal/service"
	"sldpreview/internal/storage"
	"sldpreview/internal/style"
)

// ── Fixtures ────────────────────────────────────────────────

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

func documentJSON(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, style.Encode(&buf, pointDocument()))
	return buf.String()
}

// approvingEmitter answers every approval request it sees.
type approvingEmitter struct {
	mu      sync.Mutex
	queue   *ApprovalQueue
	approve bool
	events  []string
}

func (e *approvingEmitter) Emit(_ context.Context, event string, data any) {
	e.mu.Lock()
	e.events = append(e.events, event)
	q, approve := e.queue, e.approve
	e.mu.Unlock()

	if action, ok := data.(PendingAction); ok && q != nil {
		go func() {
			if approve {
				q.Approve(action.ID)
			} else {
				q.Reject(action.ID)
			}
		}()
	}
}

type fixture struct {
	srv     *Server
	preview *service.PreviewService
	emitter *approvingEmitter
	db      *storage.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	emitter := &approvingEmitter{approve: true}
	preview := service.NewPreviewService(
		storage.NewProfileStore(db), storage.NewSampleValueStore(db), secret.NewEnvStore(), emitter,
	)
	t.Cleanup(preview.Close)

	srv := New(context.Background(), Deps{Emitter: emitter, Preview: preview})
	emitter.queue = srv.approval
	return &fixture{srv: srv, preview: preview, emitter: emitter, db: db}
}

func call(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) string {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func decode[T any](t *testing.T, text string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(text), &v), text)
	return v
}

type snapshotWire struct {
	Kind          string `json:"kind"`
	Connected     bool   `json:"connected"`
	GeometryField string `json:"geometryField"`
	Fields        []struct {
		Name  string `json:"name"`
		Type  string `json:"type"`
		Value any    `json:"value"`
	} `json:"fields"`
}

func (s snapshotWire) value(name string) (any, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// ── Schema tools ────────────────────────────────────────────

func TestInferSchema_InlineDocument(t *testing.T) {
	f := newFixture(t)

	out := call(t, f.srv.handleInferSchema, map[string]any{"document": documentJSON(t)})
	res := decode[struct {
		Fields []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"fields"`
		GeometryFields []string `json:"geometryFields"`
	}](t, out)

	assert.Equal(t, []string{"location"}, res.GeometryFields)
	names := map[string]string{}
	for _, fl := range res.Fields {
		names[fl.Name] = fl.Type
	}
	assert.Equal(t, "String", names["name"])
	assert.Equal(t, "Double", names["pop"])
}

func TestInferSchema_NoDocument(t *testing.T) {
	f := newFixture(t)
	var req mcp.CallToolRequest
	_, err := f.srv.handleInferSchema(context.Background(), req)
	assert.Error(t, err)
}

func TestClassifyGeometry(t *testing.T) {
	f := newFixture(t)
	out := call(t, f.srv.handleClassifyGeometry, map[string]any{"document": documentJSON(t)})
	res := decode[map[string]any](t, out)
	assert.Equal(t, "point", res["kind"])
}

// ── Document tools ──────────────────────────────────────────

func TestLoadDocument_SynthesizesAndAddsFields(t *testing.T) {
	f := newFixture(t)

	out := call(t, f.srv.handleLoadDocument, map[string]any{"document": documentJSON(t), "name": "towns"})
	snap := decode[snapshotWire](t, out)
	assert.False(t, snap.Connected)
	assert.Equal(t, "point", snap.Kind)
	assert.Equal(t, "location", snap.GeometryField)
	v, ok := snap.value("name")
	require.True(t, ok)
	assert.Equal(t, "name", v)

	out = call(t, f.srv.handleAddField, map[string]any{"name": "rank", "type": "integer", "value": "7"})
	snap = decode[snapshotWire](t, out)
	v, ok = snap.value("rank")
	require.True(t, ok)
	assert.Equal(t, float64(7), v)

	out = call(t, f.srv.handleGetAttributes, map[string]any{"expectedType": "Integer"})
	assert.Equal(t, []string{"rank"}, decode[[]string](t, out))
}

func TestGetAttributes_UnknownType(t *testing.T) {
	f := newFixture(t)
	var req mcp.CallToolRequest
	req.Params.Arguments = map[string]any{"expectedType": "Blob"}
	_, err := f.srv.handleGetAttributes(context.Background(), req)
	assert.Error(t, err)
}

func TestGetSnapshot_NoDocument(t *testing.T) {
	f := newFixture(t)
	out := call(t, f.srv.handleGetSnapshot, nil)
	assert.Contains(t, out, "No document is open")
}

// ── Connection tools ────────────────────────────────────────

const roadsGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"ref": "A1", "lanes": 2},
     "geometry": {"type": "LineString", "coordinates": [[0, 0], [1, 1]]}}
  ]
}`

func TestConnectDocument_PropertiesAndProfile(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	roads := filepath.Join(dir, "roads.geojson")
	require.NoError(t, os.WriteFile(roads, []byte(roadsGeoJSON), 0644))

	call(t, f.srv.handleLoadDocument, map[string]any{"document": documentJSON(t)})

	out := call(t, f.srv.handleConnectDocument, map[string]any{
		"properties": map[string]any{"dbtype": "geojson", "url": roads},
	})
	snap := decode[snapshotWire](t, out)
	assert.True(t, snap.Connected)
	assert.Equal(t, "line", snap.Kind)
	v, _ := snap.value("ref")
	assert.Equal(t, "A1", v)

	out = call(t, f.srv.handleAddField, map[string]any{"name": "extra"})
	assert.Contains(t, out, "connected")

	out = call(t, f.srv.handleDisconnect, nil)
	assert.False(t, decode[snapshotWire](t, out).Connected)

	out = call(t, f.srv.handleCreateProfile, map[string]any{
		"name": "roads", "driver": "geojson", "host": roads,
	})
	profile := decode[map[string]any](t, out)
	id, _ := profile["id"].(string)
	require.NotEmpty(t, id)

	assert.Equal(t, "Connection OK", call(t, f.srv.handleTestProfile, map[string]any{"profileId": id}))

	out = call(t, f.srv.handleConnectDocument, map[string]any{"profileId": id})
	assert.True(t, decode[snapshotWire](t, out).Connected)

	out = call(t, f.srv.handleListProfiles, nil)
	assert.Len(t, decode[[]map[string]any](t, out), 1)
}

// ── Approvals ───────────────────────────────────────────────

func TestDeleteProfile_Approved(t *testing.T) {
	f := newFixture(t)
	p, err := f.preview.CreateProfile(service.ProfileInput{Name: "p", Driver: "geojson", Host: "/tmp/x.geojson"})
	require.NoError(t, err)

	out := call(t, f.srv.handleDeleteProfile, map[string]any{"profileId": p.ID})
	assert.Contains(t, out, "Deleted profile")

	profiles, err := f.preview.ListProfiles()
	require.NoError(t, err)
	assert.Empty(t, profiles)
	assert.Contains(t, f.emitter.events, EventApprovalRequired)
}

func TestUpdateFields_Rejected(t *testing.T) {
	f := newFixture(t)
	f.emitter.approve = false
	call(t, f.srv.handleLoadDocument, map[string]any{"document": documentJSON(t)})

	out := call(t, f.srv.handleUpdateFields, map[string]any{
		"fields": `[{"name":"only","type":"String"}]`,
	})
	assert.Contains(t, out, "rejected")

	snap := f.preview.Snapshot(context.Background())
	names := []string{}
	for _, fl := range snap.Fields {
		names = append(names, fl.Name)
	}
	assert.NotContains(t, names, "only")
}

func TestUpdateFields_Approved(t *testing.T) {
	f := newFixture(t)
	call(t, f.srv.handleLoadDocument, map[string]any{"document": documentJSON(t)})

	out := call(t, f.srv.handleUpdateFields, map[string]any{
		"fields": `[{"name":"location","type":"Point"},{"name":"code","type":"Long","value":42}]`,
	})
	snap := decode[snapshotWire](t, out)
	v, ok := snap.value("code")
	require.True(t, ok)
	assert.Equal(t, float64(42), v)
}

func TestFieldsArg_Invalid(t *testing.T) {
	for _, raw := range []string{``, `not json`, `[{"type":"String"}]`, `[{"name":"a","type":"Blob"}]`} {
		var req mcp.CallToolRequest
		req.Params.Arguments = map[string]any{"fields": raw}
		_, err := fieldsArg(req)
		assert.Error(t, err, raw)
	}
}

func TestApprovalQueue_Timeout(t *testing.T) {
	emitter := &approvingEmitter{}
	q := NewApprovalQueue(context.Background(), emitter)
	q.SetTimeout(20 * time.Millisecond)

	ok, err := q.Request("delete_profile", "Delete")
	assert.False(t, ok)
	assert.Error(t, err)
	assert.Contains(t, emitter.events, EventApprovalDismissed)
}

func TestApprovalQueue_Backend(t *testing.T) {
	db, err := storage.New(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	defer db.Close()
	store := storage.NewApprovalStore(db)

	q := NewApprovalQueue(context.Background(), service.LogEmitter{})
	q.SetBackend(store)
	q.interval = 10 * time.Millisecond

	// The desktop app resolves the request from the shared table
	go func() {
		for i := 0; i < 200; i++ {
			pending, _ := store.ListPending()
			if len(pending) == 1 {
				store.Resolve(pending[0].ID, true)
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	ok, err := q.Request("delete_profile", "Delete profile p")
	require.NoError(t, err)
	assert.True(t, ok)

	pending, err := store.ListPending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

// ── Resources ───────────────────────────────────────────────

func TestDocumentSchemaResource(t *testing.T) {
	f := newFixture(t)
	contents, err := f.srv.handleDocumentSchemaResource(context.Background(), mcp.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	text := contents[0].(mcp.TextResourceContents)
	assert.Equal(t, uriDocumentSchema, text.URI)
	assert.True(t, json.Valid([]byte(text.Text)))
}

func TestSnapshotResource(t *testing.T) {
	f := newFixture(t)
	contents, err := f.srv.handleSnapshotResource(context.Background(), mcp.ReadResourceRequest{})
	require.NoError(t, err)
	assert.Equal(t, "null", contents[0].(mcp.TextResourceContents).Text)

	call(t, f.srv.handleLoadDocument, map[string]any{"document": documentJSON(t)})
	contents, err = f.srv.handleSnapshotResource(context.Background(), mcp.ReadResourceRequest{})
	require.NoError(t, err)
	assert.Contains(t, contents[0].(mcp.TextResourceContents).Text, `"kind": "point"`)
}

func TestPrompts(t *testing.T) {
	f := newFixture(t)
	var req mcp.GetPromptRequest
	req.Params.Arguments = map[string]string{"path": "towns.json", "driver": "postgis"}

	res, err := f.srv.handleConnectDatasourcePrompt(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	assert.Contains(t, res.Messages[0].Content.(mcp.TextContent).Text, "postgis")
}
