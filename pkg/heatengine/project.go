package heatengine

import (
	"fmt"
	"strconv"
	"strings"
)

// Projector maps a geographic coordinate onto a pixel index, or reports
// that the point falls outside the canvas.
type Projector interface {
	Project(lat, lon float64) (pixel uint32, ok bool)
}

// ProjectionKind selects one of the two supported projections. The
// values double as the wire names in intermediate metadata.
type ProjectionKind string

const (
	ProjectionEquirect ProjectionKind = "equirect"
	ProjectionOrtho    ProjectionKind = "ortho"
)

// ParseProjectionKind validates a metadata projection name.
func ParseProjectionKind(s string) (ProjectionKind, error) {
	switch ProjectionKind(s) {
	case ProjectionEquirect, ProjectionOrtho:
		return ProjectionKind(s), nil
	}
	return "", fmt.Errorf("unknown projection %q", s)
}

// BBox is a geographic rectangle in degrees.
type BBox struct {
	Left, Bottom, Right, Top float64
}

// WorldBBox covers the whole globe, the default canvas extent.
var WorldBBox = BBox{Left: -180, Bottom: -90, Right: 180, Top: 90}

func (b BBox) Width() float64  { return b.Right - b.Left }
func (b BBox) Height() float64 { return b.Top - b.Bottom }

func (b BBox) String() string {
	return formatFloats(b.Left, b.Bottom, b.Right, b.Top)
}

// UnmarshalText parses "left,bottom,right,top". Satisfies
// encoding.TextUnmarshaler so the flag parser accepts BBox values.
func (b *BBox) UnmarshalText(text []byte) error {
	vals, err := parseFloats(string(text), 4)
	if err != nil {
		return fmt.Errorf("bbox: %w", err)
	}
	b.Left, b.Bottom, b.Right, b.Top = vals[0], vals[1], vals[2], vals[3]
	return nil
}

// Centre is the projection centre for the orthographic view.
type Centre struct {
	Lat, Lon float64
}

func (c Centre) String() string {
	return formatFloats(c.Lat, c.Lon)
}

func (c *Centre) UnmarshalText(text []byte) error {
	vals, err := parseFloats(string(text), 2)
	if err != nil {
		return fmt.Errorf("centre: %w", err)
	}
	c.Lat, c.Lon = vals[0], vals[1]
	return nil
}

// Equirectangular projects onto a width x height canvas covering BBox.
// Boundary points are off canvas: an inclusive bottom or right edge
// would round onto row Height or column Width.
type Equirectangular struct {
	BBox   BBox
	Width  uint32
	Height uint32
}

func (p Equirectangular) Project(lat, lon float64) (uint32, bool) {
	b := p.BBox
	if lat >= b.Top || lat <= b.Bottom || lon >= b.Right || lon <= b.Left {
		return 0, false
	}

	x := uint32((lon - b.Left) / b.Width() * float64(p.Width))
	y := uint32((b.Top - lat) / b.Height() * float64(p.Height))

	i := y*p.Width + x
	if i >= p.Width*p.Height {
		panic(fmt.Sprintf("pixel index %d out of %dx%d canvas for lat=%v lon=%v bbox=%v",
			i, p.Width, p.Height, lat, lon, b))
	}
	return i, true
}

// XY is the continuous form of Project used by the basemap painter.
// No bounds are applied; callers clip.
func (p Equirectangular) XY(lat, lon float64) (x, y float64, ok bool) {
	b := p.BBox
	x = (lon - b.Left) / b.Width() * float64(p.Width)
	y = (b.Top - lat) / b.Height() * float64(p.Height)
	return x, y, true
}

// CanvasWidth derives the canvas width from the projection: the
// orthographic canvas is square, the equirectangular one keeps the
// bbox aspect ratio.
func CanvasWidth(kind ProjectionKind, height uint32, bbox BBox) uint32 {
	if kind == ProjectionOrtho {
		return height
	}
	return uint32(bbox.Width() / bbox.Height() * float64(height))
}

// NewProjector builds the projector for a parsed configuration.
func NewProjector(kind ProjectionKind, bbox BBox, centre Centre, width, height uint32) Projector {
	if kind == ProjectionOrtho {
		return Orthographic{CentreLat: centre.Lat, CentreLon: centre.Lon, Radius: height}
	}
	return Equirectangular{BBox: bbox, Width: width, Height: height}
}

func formatFloats(vals ...float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d comma-separated values, got %d", n, len(parts))
	}
	vals := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("value %q: %w", p, err)
		}
		vals[i] = v
	}
	return vals, nil
}
