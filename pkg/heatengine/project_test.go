package heatengine

import "testing"

func TestEquirectangularConcrete(t *testing.T) {
	// 20x20 canvas over a +-10 degree box: (5, 5) lands at x=15, y=5.
	p := Equirectangular{BBox: BBox{Left: -10, Bottom: -10, Right: 10, Top: 10}, Width: 20, Height: 20}
	i, ok := p.Project(5, 5)
	if !ok {
		t.Fatal("point inside bbox projected off canvas")
	}
	if i != 115 {
		t.Errorf("Project(5, 5) = %d; want 115", i)
	}
}

func TestEquirectangularBoundary(t *testing.T) {
	p := Equirectangular{BBox: WorldBBox, Width: 360, Height: 180}

	tests := []struct {
		lat, lon float64
		inside   bool
	}{
		{90, 0, false},   // on the top edge
		{-90, 0, false},  // on the bottom edge
		{0, 180, false},  // on the right edge
		{0, -180, false}, // on the left edge
		{89.999, 0, true},
		{0, 0, true},
		{-89.999, 179.999, true},
		{0.001, -179.999, true},
	}

	for _, tt := range tests {
		i, ok := p.Project(tt.lat, tt.lon)
		if ok != tt.inside {
			t.Errorf("Project(%v, %v) ok = %v; want %v", tt.lat, tt.lon, ok, tt.inside)
			continue
		}
		if ok && i >= p.Width*p.Height {
			t.Errorf("Project(%v, %v) = %d, outside the %d-pixel canvas", tt.lat, tt.lon, i, p.Width*p.Height)
		}
	}
}

func TestOrthographic(t *testing.T) {
	p := Orthographic{CentreLat: 0, CentreLon: 0, Radius: 100}

	// The centre of the visible hemisphere lands mid-canvas.
	i, ok := p.Project(0, 0)
	if !ok {
		t.Fatal("centre point projected off canvas")
	}
	if want := uint32(50*100 + 50); i != want {
		t.Errorf("Project(0, 0) = %d; want %d", i, want)
	}

	// The far hemisphere is hidden.
	if _, ok := p.Project(0, 180); ok {
		t.Error("antipode unexpectedly visible")
	}
	if _, ok := p.Project(0, -120); ok {
		t.Error("far hemisphere point unexpectedly visible")
	}

	// Every visible point stays inside the square canvas.
	for lat := -80.0; lat <= 80; lat += 7.3 {
		for lon := -80.0; lon <= 80; lon += 7.3 {
			if i, ok := p.Project(lat, lon); ok && i >= 100*100 {
				t.Fatalf("Project(%v, %v) = %d, outside canvas", lat, lon, i)
			}
		}
	}
}

func TestOrthographicCentreOffset(t *testing.T) {
	// Seen from above London, London is mid-canvas and Auckland hidden.
	p := Orthographic{CentreLat: 51.5, CentreLon: -0.1, Radius: 200}

	i, ok := p.Project(51.5, -0.1)
	if !ok {
		t.Fatal("projection centre off canvas")
	}
	if want := uint32(100*200 + 100); i != want {
		t.Errorf("Project(centre) = %d; want %d", i, want)
	}

	if _, ok := p.Project(-36.8, 174.8); ok {
		t.Error("Auckland visible from above London")
	}
}

func TestCanvasWidth(t *testing.T) {
	tests := []struct {
		kind   ProjectionKind
		height uint32
		bbox   BBox
		want   uint32
	}{
		{ProjectionOrtho, 512, WorldBBox, 512},
		{ProjectionEquirect, 180, WorldBBox, 360}, // the world box is 2:1
		{ProjectionEquirect, 100, BBox{Left: -10, Bottom: -10, Right: 10, Top: 10}, 100},
		{ProjectionEquirect, 100, BBox{Left: 0, Bottom: 0, Right: 30, Top: 20}, 150},
	}
	for _, tt := range tests {
		if got := CanvasWidth(tt.kind, tt.height, tt.bbox); got != tt.want {
			t.Errorf("CanvasWidth(%s, %d, %v) = %d; want %d", tt.kind, tt.height, tt.bbox, got, tt.want)
		}
	}
}

func TestBBoxUnmarshalText(t *testing.T) {
	var b BBox
	if err := b.UnmarshalText([]byte("-25.5,30,45.25,60")); err != nil {
		t.Fatal(err)
	}
	want := BBox{Left: -25.5, Bottom: 30, Right: 45.25, Top: 60}
	if b != want {
		t.Errorf("got %+v; want %+v", b, want)
	}

	if err := b.UnmarshalText([]byte("1,2,3")); err == nil {
		t.Error("want error for three values")
	}
	if err := b.UnmarshalText([]byte("a,b,c,d")); err == nil {
		t.Error("want error for non-numeric values")
	}
}

func TestCentreUnmarshalText(t *testing.T) {
	var c Centre
	if err := c.UnmarshalText([]byte("51.5,-0.1")); err != nil {
		t.Fatal(err)
	}
	if c.Lat != 51.5 || c.Lon != -0.1 {
		t.Errorf("got %+v; want lat 51.5, lon -0.1", c)
	}

	if err := c.UnmarshalText([]byte("51.5")); err == nil {
		t.Error("want error for a single value")
	}
}

func TestParseProjectionKind(t *testing.T) {
	if _, err := ParseProjectionKind("mercator"); err == nil {
		t.Error("want error for unknown projection")
	}
	kind, err := ParseProjectionKind("ortho")
	if err != nil {
		t.Fatal(err)
	}
	if kind != ProjectionOrtho {
		t.Errorf("got %q; want ortho", kind)
	}
}
