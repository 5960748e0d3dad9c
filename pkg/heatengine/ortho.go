package heatengine

import "math"

// Orthographic projects the hemisphere facing the centre point onto a
// square canvas. Radius is the canvas side length in pixels; points on
// the far hemisphere are off canvas.
type Orthographic struct {
	CentreLat float64
	CentreLon float64
	Radius    uint32
}

func (p Orthographic) Project(lat, lon float64) (uint32, bool) {
	xf, yf, ok := p.XY(lat, lon)
	if !ok || xf < 0 || yf < 0 {
		return 0, false
	}
	x := uint32(xf)
	y := uint32(yf)
	if x >= p.Radius || y >= p.Radius {
		// Limb points land exactly on the canvas edge.
		return 0, false
	}
	return y*p.Radius + x, true
}

// XY returns continuous canvas coordinates, or ok=false when the point
// is on the hidden hemisphere.
func (p Orthographic) XY(lat, lon float64) (x, y float64, ok bool) {
	lat0 := p.CentreLat * math.Pi / 180
	lon0 := p.CentreLon * math.Pi / 180
	phi := lat * math.Pi / 180
	dLon := lon*math.Pi/180 - lon0

	sinPhi, cosPhi := math.Sincos(phi)
	sinLat0, cosLat0 := math.Sincos(lat0)

	cosC := sinLat0*sinPhi + cosLat0*cosPhi*math.Cos(dLon)
	if cosC < 0 {
		return 0, 0, false
	}

	r := float64(p.Radius) / 2
	x = r + r*cosPhi*math.Sin(dLon)
	y = r - r*(cosLat0*sinPhi-sinLat0*cosPhi*math.Cos(dLon))
	return x, y, true
}
