package featurestore

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	_ "golang.org/x/image/tiff"

	"sldpreview/internal/geometry"
)

// imageRaster is a raster read from an image file. Only the header is
// decoded; the preview needs the grid shape, not the pixels.
type imageRaster struct {
	path     string
	coverage geometry.Coverage
}

// OpenRaster opens a PNG, JPEG or TIFF image as a raster. Bounds come from
// an accompanying world file when one exists, else from pixel space.
func OpenRaster(path string) (RasterReader, error) {
	if path == "" {
		return nil, fmt.Errorf("open raster: no file given")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open raster: %w", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("decode raster %s: %w", path, err)
	}

	cov := geometry.Coverage{
		Width:  cfg.Width,
		Height: cfg.Height,
		Bands:  bandCount(cfg.ColorModel),
		Format: format,
		Bounds: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{float64(cfg.Width), float64(cfg.Height)}},
	}
	if wf, ok := readWorldFile(path); ok {
		cov.Bounds = wf.bounds(cfg.Width, cfg.Height)
	}
	return &imageRaster{path: path, coverage: cov}, nil
}

func bandCount(m color.Model) int {
	switch m {
	case color.GrayModel, color.Gray16Model:
		return 1
	case color.YCbCrModel:
		return 3
	}
	return 4
}

func (r *imageRaster) Path() string { return r.path }

func (r *imageRaster) Coverage() *geometry.Coverage {
	cov := r.coverage
	return &cov
}

func (r *imageRaster) Close() error { return nil }

// ── World files ─────────────────────────────────────────────

// worldFile is the six-line affine transform stored next to an image.
type worldFile struct {
	a, d, b, e, c, f float64
}

func (w worldFile) bounds(width, height int) orb.Bound {
	x0, y0 := w.c, w.f
	x1 := w.c + w.a*float64(width) + w.b*float64(height)
	y1 := w.f + w.d*float64(width) + w.e*float64(height)
	return orb.Bound{
		Min: orb.Point{min(x0, x1), min(y0, y1)},
		Max: orb.Point{max(x0, x1), max(y0, y1)},
	}
}

// worldFileExts returns candidate world-file extensions for an image: the
// first and last letters of the extension plus "w" (".png" -> ".pgw"),
// the extension plus "w", and ".wld".
func worldFileExts(ext string) []string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	var out []string
	if len(ext) >= 2 {
		out = append(out, "."+ext[:1]+ext[len(ext)-1:]+"w")
	}
	return append(out, "."+ext+"w", ".wld")
}

func readWorldFile(path string) (worldFile, bool) {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	for _, ext := range worldFileExts(filepath.Ext(path)) {
		data, err := os.ReadFile(base + ext)
		if err != nil {
			continue
		}
		fields := strings.Fields(string(data))
		if len(fields) < 6 {
			continue
		}
		var v [6]float64
		ok := true
		for i := range v {
			n, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				ok = false
				break
			}
			v[i] = n
		}
		if ok {
			return worldFile{a: v[0], d: v[1], b: v[2], e: v[3], c: v[4], f: v[5]}, true
		}
	}
	return worldFile{}, false
}
