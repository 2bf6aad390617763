package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sldpreview/internal/config"
	"sldpreview/internal/domain"
	mcpserver "sldpreview/internal/mcp"
	"sldpreview/internal/service"
	"sldpreview/internal/style"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		DataDir:       t.TempDir(),
		LogLevel:      "info",
		SecretBackend: "env",
	}
}

func TestOpenBackend(t *testing.T) {
	cfg := testConfig(t)
	b, err := OpenBackend(cfg, &service.MockEmitter{})
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, cfg.DBPath(), b.DB.Path())
	_, err = os.Stat(cfg.DBPath())
	assert.NoError(t, err)
}

func TestOpenBackend_BadSecretBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.SecretBackend = "vault"
	_, err := OpenBackend(cfg, nil)
	assert.Error(t, err)
}

func TestFieldInput(t *testing.T) {
	f, err := FieldInput{Name: "pop", Type: "long", Value: "12"}.field()
	require.NoError(t, err)
	assert.Equal(t, domain.TypeLong, f.Type)
	assert.Equal(t, int64(12), f.Value)

	f, err = FieldInput{Name: "name"}.field()
	require.NoError(t, err)
	assert.Equal(t, domain.TypeString, f.Type)
	assert.Nil(t, f.Value)

	_, err = FieldInput{Type: "String"}.field()
	assert.Error(t, err)
	_, err = FieldInput{Name: "x", Type: "Blob"}.field()
	assert.Error(t, err)

	list, err := fieldList([]FieldInput{{Name: "a"}, {Name: "b", Type: "Double", Value: "1.5"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, list.Names())
	assert.Equal(t, 1.5, list[1].Value)
}

func TestApprovalWatcher_EmitsOnce(t *testing.T) {
	b, err := OpenBackend(testConfig(t), nil)
	require.NoError(t, err)
	defer b.Close()

	emitter := &service.MockEmitter{}
	w := newApprovalWatcher(context.Background(), b.Approvals, emitter)

	require.NoError(t, b.Approvals.Create("a1", "delete_profile", "Delete profile p", ""))
	w.check()
	w.check()

	events := emitter.Named(mcpserver.EventApprovalRequired)
	require.Len(t, events, 1)
	action, ok := events[0].Data.(mcpserver.PendingAction)
	require.True(t, ok)
	assert.Equal(t, "a1", action.ID)
	assert.Equal(t, "delete_profile", action.Tool)

	// Resolved approvals are forgotten, so a reused ID would be sent again
	require.NoError(t, b.Approvals.Resolve("a1", true))
	w.check()
	w.mu.Lock()
	assert.Empty(t, w.emitted)
	w.mu.Unlock()
}

func TestApp_Bindings(t *testing.T) {
	cfg := testConfig(t)
	b, err := OpenBackend(cfg, nil)
	require.NoError(t, err)
	defer b.Close()

	a := &App{ctx: context.Background(), cfg: cfg, backend: b, preview: b.Preview, approvals: b.Approvals}

	assert.Nil(t, a.GetSnapshot())

	dir := t.TempDir()
	docPath := filepath.Join(dir, "towns.json")
	doc := &style.Document{Name: "towns", Layers: []*style.Layer{{
		ID:   "towns",
		Kind: style.LayerNamed,
		Styles: []*style.Style{{FeatureTypeStyles: []*style.FeatureTypeStyle{{
			Rules: []*style.Rule{{Symbolizers: []*style.Symbolizer{{
				Kind:     style.SymbolizerPoint,
				Geometry: style.Prop("location"),
				Label:    style.Prop("name"),
			}}}},
		}}}},
	}}}
	require.NoError(t, style.Save(docPath, doc))

	snap, err := a.OpenDocument(docPath)
	require.NoError(t, err)
	assert.False(t, snap.Connected)

	snap, err = a.AddField(FieldInput{Name: "rank", Type: "Integer", Value: "3"})
	require.NoError(t, err)
	var rank any
	for _, f := range snap.Fields {
		if f.Name == "rank" {
			rank = f.Value
		}
	}
	assert.Equal(t, int32(3), rank)

	names, err := a.GetAttributes("Integer")
	require.NoError(t, err)
	assert.Equal(t, []string{"rank"}, names)

	require.NoError(t, b.Approvals.Create("x", "update_fields", "", ""))
	pending, err := a.ListPendingApprovals()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NoError(t, a.RejectAction("x"))
	assert.Error(t, a.ApproveAction("x"))
}
