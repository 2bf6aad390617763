package app

import (
	"fmt"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"sldpreview/internal/domain"
	"sldpreview/internal/geometry"
	"sldpreview/internal/inference"
	"sldpreview/internal/service"
)

// ============================================================
// Documents
// ============================================================

// OpenDocument loads a style document and starts watching it when the
// configuration asks for it.
func (a *App) OpenDocument(path string) (*service.Snapshot, error) {
	snap, err := a.preview.OpenDocument(a.ctx, path)
	if err != nil {
		return nil, err
	}
	if a.cfg.Watch {
		if err := a.preview.Watch(a.ctx, a.cfg.RefreshSchedule); err != nil {
			log.Warn().Err(err).Str("document", path).Msg("watch failed")
		}
	}
	return snap, nil
}

// PickDocument opens a native file picker and loads the chosen document.
// An empty result means the dialog was cancelled.
func (a *App) PickDocument() (*service.Snapshot, error) {
	path, err := wailsRuntime.OpenFileDialog(a.ctx, wailsRuntime.OpenDialogOptions{
		Title: "Open Style Document",
		Filters: []wailsRuntime.FileFilter{
			{DisplayName: "Style Documents", Pattern: "*.json"},
			{DisplayName: "All Files", Pattern: "*.*"},
		},
	})
	if err != nil || path == "" {
		return nil, err
	}
	return a.OpenDocument(path)
}

func (a *App) ReloadDocument() (*service.Snapshot, error) {
	if err := a.preview.Reload(a.ctx); err != nil {
		return nil, err
	}
	return a.preview.Snapshot(a.ctx), nil
}

func (a *App) GetSnapshot() *service.Snapshot {
	if a.preview.Document() == nil {
		return nil
	}
	return a.preview.Snapshot(a.ctx)
}

func (a *App) InferSchema() (inference.Result, error) {
	return a.preview.InferSchema()
}

func (a *App) ClassifyGeometry() (geometry.Kind, error) {
	return a.preview.Classify()
}

// GetAttributes lists attribute names usable where expectedType is
// required. An empty type accepts every attribute.
func (a *App) GetAttributes(expectedType string) ([]string, error) {
	expected, err := domain.ParseScalarType(expectedType)
	if err != nil {
		return nil, err
	}
	return a.preview.Attributes(expected), nil
}

// UpdateInlineFeatures replaces a user layer's features with a GeoJSON
// FeatureCollection.
func (a *App) UpdateInlineFeatures(layerID, featureCollection string) (*service.Snapshot, error) {
	fc, err := geojson.UnmarshalFeatureCollection([]byte(featureCollection))
	if err != nil {
		return nil, fmt.Errorf("parse features: %w", err)
	}
	if err := a.preview.UpdateInlineFeatures(a.ctx, layerID, fc); err != nil {
		return nil, err
	}
	return a.preview.Snapshot(a.ctx), nil
}

// ============================================================
// Fields
// ============================================================

func (a *App) AddField(input FieldInput) (*service.Snapshot, error) {
	field, err := input.field()
	if err != nil {
		return nil, err
	}
	if err := a.preview.AddField(a.ctx, field); err != nil {
		return nil, err
	}
	return a.preview.Snapshot(a.ctx), nil
}

func (a *App) UpdateFields(inputs []FieldInput) (*service.Snapshot, error) {
	fields, err := fieldList(inputs)
	if err != nil {
		return nil, err
	}
	if err := a.preview.UpdateFields(a.ctx, fields); err != nil {
		return nil, err
	}
	return a.preview.Snapshot(a.ctx), nil
}

// SaveSampleValues stores the typed values for the open document.
func (a *App) SaveSampleValues(inputs []FieldInput) (*service.Snapshot, error) {
	fields, err := fieldList(inputs)
	if err != nil {
		return nil, err
	}
	if err := a.preview.SaveSampleValues(a.ctx, fields); err != nil {
		return nil, err
	}
	return a.preview.Snapshot(a.ctx), nil
}
