package encode

import (
	"fmt"
	"image"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Stamper draws a small date label into the corner of each frame.
// With a known start it prints the UTC date a frame begins at; frames
// replayed from an intermediate file carry renumbered offsets only, so
// the label degrades to a day offset.
type Stamper struct {
	secPerFrame uint32
	start       int64
}

// NewStamper builds a stamper for frames of secPerFrame seconds.
// start is the unix timestamp of frame 0, or negative when unknown.
func NewStamper(secPerFrame uint32, start int64) *Stamper {
	return &Stamper{secPerFrame: secPerFrame, start: start}
}

// Label is the text stamped on one frame.
func (s *Stamper) Label(frame int) string {
	elapsed := int64(frame) * int64(s.secPerFrame)
	if s.start < 0 {
		return fmt.Sprintf("+%dd", elapsed/86400)
	}
	return time.Unix(s.start+elapsed, 0).UTC().Format("2006-01-02")
}

// Draw stamps the label into the bottom-left corner.
func (s *Stamper) Draw(img *image.RGBA, frame int) {
	label := s.Label(frame)
	x := 6
	y := img.Bounds().Dy() - 6

	// Drop shadow.
	d := &font.Drawer{
		Dst:  img,
		Src:  image.Black,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x+1, y+1),
	}
	d.DrawString(label)

	d.Src = image.White
	d.Dot = fixed.P(x, y)
	d.DrawString(label)
}
