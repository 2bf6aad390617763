package geometry

import (
	"github.com/paulmach/orb"
)

// Coverage is a raster value: a grid of Width x Height cells over Bounds.
type Coverage struct {
	Bounds orb.Bound
	Width  int
	Height int
	Bands  int
	Format string
}

// Example returns the canonical preview shape for a kind. The shapes are
// fixed so repeated previews render identically.
func Example(k Kind) orb.Geometry {
	switch k {
	case Polygon:
		return ExamplePolygon()
	case Line:
		return ExampleLine()
	default:
		return ExamplePoint()
	}
}

func ExamplePoint() orb.Point {
	return orb.Point{-0.1278, 51.5074}
}

func ExampleLine() orb.LineString {
	return orb.LineString{
		{-0.1300, 51.5050},
		{-0.1280, 51.5070},
		{-0.1250, 51.5075},
		{-0.1220, 51.5100},
	}
}

func ExamplePolygon() orb.MultiPolygon {
	return orb.MultiPolygon{
		orb.Polygon{
			orb.Ring{
				{-0.1300, 51.5050},
				{-0.1200, 51.5050},
				{-0.1200, 51.5100},
				{-0.1300, 51.5100},
				{-0.1300, 51.5050},
			},
		},
	}
}
