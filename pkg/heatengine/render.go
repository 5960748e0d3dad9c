package heatengine

import "math"

// DecayFactor is the per-frame multiplicative attenuation applied to
// every lit pixel before the frame's own edits land.
const DecayFactor = 0.99

// Renderer replays FrameRecords through a decaying intensity raster.
// It owns one raster for the whole pass; frames must arrive in
// ascending order because each frame's state builds on the last.
//
// A pixel is either unset (never touched, rendered as 0) or set with a
// float magnitude. The two are tracked in parallel slices so the
// decay, accumulate and emit steps stay branch-light.
type Renderer struct {
	width  uint32
	height uint32
	mag    []float64
	set    []bool
	out    []uint8

	dropped uint64
}

func NewRenderer(width, height uint32) *Renderer {
	n := int(width) * int(height)
	return &Renderer{
		width:  width,
		height: height,
		mag:    make([]float64, n),
		set:    make([]bool, n),
		out:    make([]uint8, n),
	}
}

func (r *Renderer) Width() uint32  { return r.width }
func (r *Renderer) Height() uint32 { return r.height }

// Dropped counts deltas skipped for referencing pixels outside the
// raster. Such deltas are tolerated, not fatal.
func (r *Renderer) Dropped() uint64 { return r.dropped }

// RenderFrame advances the raster by one frame: decay every lit pixel
// by DecayFactor, add the frame's deltas, then emit intensities
// normalized so the brightest pixel is 255. Unset pixels emit 0; if
// nothing is lit the whole frame emits 0.
//
// The returned buffer is reused and only valid until the next call.
func (r *Renderer) RenderFrame(rec FrameRecord) []uint8 {
	for i, m := range r.mag {
		if r.set[i] && m > 0 {
			r.mag[i] = m * DecayFactor
		}
	}

	for _, d := range rec.Deltas {
		if int64(d.Pixel) >= int64(len(r.mag)) {
			r.dropped++
			continue
		}
		r.mag[d.Pixel] += float64(d.Count)
		r.set[d.Pixel] = true
	}

	max := 0.0
	for i, m := range r.mag {
		if r.set[i] && m > max {
			max = m
		}
	}
	if max == 0 {
		for i := range r.out {
			r.out[i] = 0
		}
		return r.out
	}

	for i, m := range r.mag {
		if !r.set[i] {
			r.out[i] = 0
			continue
		}
		v := math.Round(255 * m / max)
		if v > 255 {
			v = 255
		} else if v < 0 {
			v = 0
		}
		r.out[i] = uint8(v)
	}
	return r.out
}
