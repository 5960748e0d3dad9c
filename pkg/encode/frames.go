package encode

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"

	"github.com/rs/zerolog/log"
)

// FrameSequence writes rendered frames as numbered PNGs, grayscale
// activity over an optional basemap underlay. Files are named
// <prefix>000000.png, <prefix>000001.png and so on.
type FrameSequence struct {
	Prefix  string
	Width   int
	Height  int
	Basemap *image.RGBA // optional underlay, drawn beneath the activity
	Stamper *Stamper    // optional date label

	written int
}

// WriteFrame renders one intensity buffer to the next numbered file.
// The buffer must hold Width*Height bytes.
func (s *FrameSequence) WriteFrame(intensity []uint8) error {
	img := image.NewRGBA(image.Rect(0, 0, s.Width, s.Height))
	if s.Basemap != nil {
		copy(img.Pix, s.Basemap.Pix)
	} else {
		draw.Draw(img, img.Bounds(), &image.Uniform{color.RGBA{0, 0, 0, 255}}, image.Point{}, draw.Src)
	}

	// Lighten blend per channel, so faint activity never punches dark
	// holes into the underlay.
	for i, v := range intensity {
		if v == 0 {
			continue
		}
		off := i * 4
		if v > img.Pix[off] {
			img.Pix[off] = v
		}
		if v > img.Pix[off+1] {
			img.Pix[off+1] = v
		}
		if v > img.Pix[off+2] {
			img.Pix[off+2] = v
		}
	}

	if s.Stamper != nil {
		s.Stamper.Draw(img, s.written)
	}

	path := fmt.Sprintf("%s%06d.png", s.Prefix, s.written)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	s.written++
	return nil
}

func (s *FrameSequence) Written() int { return s.written }

// Finish logs how to assemble the sequence into a video.
func (s *FrameSequence) Finish() {
	log.Info().
		Int("frames", s.written).
		Msgf("Frames written; assemble with: ffmpeg -framerate %d -i %s%%06d.png -pix_fmt yuv420p out.mp4", PlaybackFPS, s.Prefix)
}
