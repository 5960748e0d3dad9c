// Package encode writes rendered frame sequences to their output
// formats: an animated GIF, or numbered PNG frames with an optional
// basemap underlay and date stamp.
package encode

import (
	"errors"
	"image"
	"image/color"
	"image/gif"
	"io"

	"github.com/editpulse/editpulse/pkg/heatengine"
)

// PlaybackFPS is the animation rate every sink targets, regardless of
// the binning interval: one displayed second covers 30 frames of
// history.
const PlaybackFPS = 30

// GIF accumulates rendered frames into a palette-indexed animation
// with a single global colour table. The renderer's normalized
// intensity doubles as the palette index: 0 is the empty colour,
// 1..len(steps) the ramp colours, 255 the white top slot,
// and everything in between falls into the empty-colour padding.
type GIF struct {
	width   int
	height  int
	palette color.Palette
	frames  []*image.Paletted
}

func NewGIF(width, height int, ramp *heatengine.Ramp) *GIF {
	return &GIF{
		width:   width,
		height:  height,
		palette: GlobalPalette(ramp),
	}
}

// GlobalPalette lays the ramp out over all 256 slots: the empty colour
// at 0 and in every unassigned slot, the ramp steps from 1, and white
// at the top.
func GlobalPalette(ramp *heatengine.Ramp) color.Palette {
	rgb := ramp.PaletteRGB()
	p := make(color.Palette, 256)
	empty := color.RGBA{rgb[0], rgb[1], rgb[2], 255}
	for i := range p {
		p[i] = empty
	}
	for i := 1; i < len(rgb)/3; i++ {
		p[i] = color.RGBA{rgb[i*3], rgb[i*3+1], rgb[i*3+2], 255}
	}
	p[255] = color.RGBA{255, 255, 255, 255}
	return p
}

// AddFrame copies one rendered intensity buffer into the animation.
// The buffer must hold width*height bytes.
func (g *GIF) AddFrame(intensity []uint8) {
	img := image.NewPaletted(image.Rect(0, 0, g.width, g.height), g.palette)
	copy(img.Pix, intensity)
	g.frames = append(g.frames, img)
}

func (g *GIF) FrameCount() int { return len(g.frames) }

// Encode writes the animation with an infinite loop and a fixed
// 30 fps frame delay.
func (g *GIF) Encode(w io.Writer) error {
	if len(g.frames) == 0 {
		return errors.New("gif: no frames to encode")
	}

	delays := make([]int, len(g.frames))
	for i := range delays {
		delays[i] = 100 / PlaybackFPS
	}

	return gif.EncodeAll(w, &gif.GIF{
		Image:     g.frames,
		Delay:     delays,
		LoopCount: 0,
		Config: image.Config{
			ColorModel: g.palette,
			Width:      g.width,
			Height:     g.height,
		},
	})
}
