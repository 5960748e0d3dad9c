package encode

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"sort"

	geojson "github.com/paulmach/go.geojson"
	"github.com/rs/zerolog/log"
)

// XYProjector places geographic coordinates on the canvas without
// snapping to pixels. Points on the hidden hemisphere of an
// orthographic view report ok=false and are left out of the drawing.
type XYProjector interface {
	XY(lat, lon float64) (x, y float64, ok bool)
}

var (
	seaColour     = color.RGBA{8, 10, 15, 255}
	landColour    = color.RGBA{26, 29, 35, 255}
	outlineColour = color.RGBA{36, 42, 53, 255}
)

// RenderBasemap rasterizes the land polygons of a GeoJSON file into an
// underlay image for the frame writer.
func RenderBasemap(path string, proj XYProjector, width, height int) (*image.RGBA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{seaColour}, image.Point{}, draw.Src)

	polygons := 0
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		if f.Geometry.IsPolygon() {
			fillPolygon(img, proj, f.Geometry.Polygon, landColour)
			for _, ring := range f.Geometry.Polygon {
				drawRing(img, proj, ring, outlineColour)
			}
			polygons++
		} else if f.Geometry.IsMultiPolygon() {
			for _, poly := range f.Geometry.MultiPolygon {
				fillPolygon(img, proj, poly, landColour)
				for _, ring := range poly {
					drawRing(img, proj, ring, outlineColour)
				}
				polygons++
			}
		}
	}

	log.Debug().Int("polygons", polygons).Str("path", path).Msg("Basemap rendered")
	return img, nil
}

// fillPolygon scanline-fills the rings with even-odd crossings. Hidden
// vertices are dropped, so polygons cut by the orthographic limb fill
// only their visible part.
func fillPolygon(img *image.RGBA, proj XYProjector, rings [][][]float64, c color.RGBA) {
	if len(rings) == 0 {
		return
	}
	width := img.Bounds().Dx()
	height := img.Bounds().Dy()

	type point struct{ x, y float64 }
	projected := make([][]point, 0, len(rings))
	minY, maxY := float64(height), 0.0
	for _, ring := range rings {
		pts := make([]point, 0, len(ring))
		for _, p := range ring {
			// GeoJSON positions are lon-first.
			x, y, ok := proj.XY(p[1], p[0])
			if !ok {
				continue
			}
			pts = append(pts, point{x, y})
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
		if len(pts) >= 3 {
			projected = append(projected, pts)
		}
	}

	for y := int(minY); y <= int(maxY); y++ {
		if y < 0 || y >= height {
			continue
		}
		var nodes []int
		fy := float64(y)
		for _, ring := range projected {
			for i := 0; i < len(ring); i++ {
				j := (i + 1) % len(ring)
				if (ring[i].y < fy && ring[j].y >= fy) || (ring[j].y < fy && ring[i].y >= fy) {
					nodeX := ring[i].x + (fy-ring[i].y)/(ring[j].y-ring[i].y)*(ring[j].x-ring[i].x)
					nodes = append(nodes, int(nodeX))
				}
			}
		}
		sort.Ints(nodes)
		for i := 0; i < len(nodes)-1; i += 2 {
			xs, xe := nodes[i], nodes[i+1]
			if xs < 0 {
				xs = 0
			}
			if xe >= width {
				xe = width - 1
			}
			for x := xs; x < xe; x++ {
				off := y*img.Stride + x*4
				img.Pix[off], img.Pix[off+1], img.Pix[off+2], img.Pix[off+3] = c.R, c.G, c.B, 255
			}
		}
	}
}

func drawRing(img *image.RGBA, proj XYProjector, coords [][]float64, c color.RGBA) {
	for i := 0; i < len(coords)-1; i++ {
		x1, y1, ok1 := proj.XY(coords[i][1], coords[i][0])
		x2, y2, ok2 := proj.XY(coords[i+1][1], coords[i+1][0])
		if !ok1 || !ok2 {
			continue
		}
		drawLine(img, int(x1), int(y1), int(x2), int(y2), c)
	}
}

func drawLine(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	width := img.Bounds().Dx()
	height := img.Bounds().Dy()
	dx, dy := math.Abs(float64(x2-x1)), math.Abs(float64(y2-y1))
	sx, sy := -1, -1
	if x1 < x2 {
		sx = 1
	}
	if y1 < y2 {
		sy = 1
	}
	err := dx - dy
	for {
		if x1 >= 0 && x1 < width && y1 >= 0 && y1 < height {
			off := y1*img.Stride + x1*4
			img.Pix[off], img.Pix[off+1], img.Pix[off+2], img.Pix[off+3] = c.R, c.G, c.B, 255
		}
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}
