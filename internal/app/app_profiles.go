package app

import (
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"sldpreview/internal/domain"
	"sldpreview/internal/service"
)

// ============================================================
// Connection profiles
// ============================================================

func (a *App) ListProfiles() ([]ProfileView, error) {
	profiles, err := a.preview.ListProfiles()
	if err != nil {
		return nil, err
	}
	views := make([]ProfileView, len(profiles))
	for i, p := range profiles {
		views[i] = profileView(p)
	}
	return views, nil
}

func (a *App) CreateProfile(input service.ProfileInput) (*ProfileView, error) {
	p, err := a.preview.CreateProfile(input)
	if err != nil {
		return nil, err
	}
	view := profileView(*p)
	return &view, nil
}

func (a *App) UpdateProfile(id string, input service.ProfileInput) error {
	return a.preview.UpdateProfile(id, input)
}

func (a *App) DeleteProfile(id string) error {
	return a.preview.DeleteProfile(id)
}

func (a *App) TestProfile(id string) error {
	return a.preview.TestProfile(a.ctx, id)
}

// ============================================================
// Connecting
// ============================================================

func (a *App) ConnectProfile(id string) (*service.Snapshot, error) {
	return a.preview.ConnectProfile(a.ctx, id)
}

// ConnectProperties connects with raw connection properties, e.g.
// {"dbtype": "geojson", "url": "/data/roads.geojson"}.
func (a *App) ConnectProperties(props map[string]string) (*service.Snapshot, error) {
	return a.preview.ConnectProperties(a.ctx, domain.ConnectionProperties(props))
}

func (a *App) Disconnect() (*service.Snapshot, error) {
	return a.preview.Disconnect(a.ctx)
}

// PickDataFile opens a native file picker for file-based data sources.
func (a *App) PickDataFile() (string, error) {
	return wailsRuntime.OpenFileDialog(a.ctx, wailsRuntime.OpenDialogOptions{
		Title: "Select Data File",
		Filters: []wailsRuntime.FileFilter{
			{DisplayName: "Shapefile", Pattern: "*.shp"},
			{DisplayName: "GeoJSON", Pattern: "*.geojson;*.json"},
			{DisplayName: "CSV Points", Pattern: "*.csv;*.tsv"},
			{DisplayName: "GeoPackage", Pattern: "*.gpkg"},
			{DisplayName: "SQLite", Pattern: "*.db;*.sqlite;*.sqlite3"},
			{DisplayName: "All Files", Pattern: "*.*"},
		},
	})
}
