package featurestore

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"sldpreview/internal/domain"
)

// ── CSV Point Files ─────────────────────────────────────────
// A CSV file with a header row and a pair of coordinate columns, served as a
// point collection. Longitude/latitude columns imply EPSG:4326; x/y columns
// leave the reference system to ForceCRS.

var coordinateColumns = [][2]string{
	{"lon", "lat"},
	{"lng", "lat"},
	{"longitude", "latitude"},
	{"x", "y"},
	{"easting", "northing"},
}

// OpenCSV loads a CSV point file. An empty delimiter means a comma, or a tab
// for .tsv files.
func OpenCSV(path, delimiter string) (*CollectionStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no file given", ErrNoStore)
	}
	if delimiter == "" && strings.EqualFold(filepath.Ext(path), ".tsv") {
		delimiter = "\t"
	}

	headers, rows, err := readCSVFile(path, delimiter)
	if err != nil {
		return nil, err
	}
	xi, yi, geographic, err := findCoordinates(headers)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	fc := geojson.NewFeatureCollection()
	for n, row := range rows {
		if len(row) <= xi || len(row) <= yi {
			continue
		}
		x, errX := strconv.ParseFloat(strings.TrimSpace(row[xi]), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(row[yi]), 64)
		if errX != nil || errY != nil {
			return nil, fmt.Errorf("%s: row %d: coordinates are not numbers", path, n+2)
		}
		f := geojson.NewFeature(orb.Point{x, y})
		for j, h := range headers {
			if j == xi || j == yi || j >= len(row) {
				continue
			}
			f.Properties[h] = inferCSVValue(row[j])
		}
		fc.Append(f)
	}

	crs := ""
	if geographic {
		crs = domain.DefaultCRS
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return NewCollectionStore(name, fc, crs), nil
}

func readCSVFile(path, delimiter string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	if delimiter != "" {
		reader.Comma = []rune(delimiter)[0]
	}
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%s: empty csv file", path)
	}
	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}
	return headers, records[1:], nil
}

// findCoordinates locates the coordinate column pair, matching names
// case-insensitively.
func findCoordinates(headers []string) (xi, yi int, geographic bool, err error) {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		index[strings.ToLower(h)] = i
	}
	for n, pair := range coordinateColumns {
		x, okX := index[pair[0]]
		y, okY := index[pair[1]]
		if okX && okY {
			return x, y, n < 3, nil
		}
	}
	return 0, 0, false, fmt.Errorf("no coordinate columns (lon/lat or x/y)")
}

// inferCSVValue reads a cell as a number when it parses as one. Empty cells
// are nil; everything else stays text.
func inferCSVValue(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
