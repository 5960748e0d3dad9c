package heatengine

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// MaxRampSteps caps the number of colour steps so the palette plus the
// empty colour and the overflow slot fit in the 256-entry table.
const MaxRampSteps = 254

// OverflowIndex is the palette slot reserved for magnitudes past the
// 8-bit range. It sits above every possible ramp entry and never
// aliases a ramp colour.
const OverflowIndex uint8 = 255

// RampStep is one colour of the ramp with the age threshold it was
// configured for. Ages are parsed in file order and not validated.
type RampStep struct {
	Age    uint32
	Colour [3]uint8
}

// Ramp is the colour configuration for rendered output: an empty
// colour for untouched pixels plus an ordered list of steps.
type Ramp struct {
	Empty [3]uint8
	Steps []RampStep
}

func LoadRamp(path string) (*Ramp, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ramp, err := ParseRamp(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ramp, nil
}

// ParseRamp reads the ramp text format: the first line is the empty
// colour "R,G,B", every further non-empty line is a step "age,R,G,B".
func ParseRamp(r io.Reader) (*Ramp, error) {
	sc := bufio.NewScanner(r)

	ramp := &Ramp{}
	lineNo := 0
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		lineNo++

		if lineNo == 1 {
			c, err := parseColour(line)
			if err != nil {
				return nil, fmt.Errorf("empty colour: %w", err)
			}
			ramp.Empty = c
			continue
		}

		age, rest, ok := strings.Cut(line, ",")
		if !ok {
			return nil, fmt.Errorf("step %d: want age,R,G,B", lineNo-1)
		}
		var step RampStep
		v, err := strconv.ParseUint(strings.TrimSpace(age), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("step %d age: %w", lineNo-1, err)
		}
		step.Age = uint32(v)
		step.Colour, err = parseColour(rest)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", lineNo-1, err)
		}
		ramp.Steps = append(ramp.Steps, step)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if lineNo == 0 {
		return nil, fmt.Errorf("ramp file is empty")
	}
	if len(ramp.Steps) > MaxRampSteps {
		return nil, fmt.Errorf("ramp has %d steps, max is %d", len(ramp.Steps), MaxRampSteps)
	}
	return ramp, nil
}

func parseColour(s string) ([3]uint8, error) {
	var c [3]uint8
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return c, fmt.Errorf("want R,G,B, got %q", s)
	}
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return c, fmt.Errorf("channel %q: %w", p, err)
		}
		c[i] = uint8(v)
	}
	return c, nil
}

// PaletteRGB flattens the ramp into palette bytes: the empty colour at
// index 0 followed by every step colour in order.
func (r *Ramp) PaletteRGB() []uint8 {
	out := make([]uint8, 0, (len(r.Steps)+1)*3)
	out = append(out, r.Empty[0], r.Empty[1], r.Empty[2])
	for _, s := range r.Steps {
		out = append(out, s.Colour[0], s.Colour[1], s.Colour[2])
	}
	return out
}

// IndexForMagnitude maps a raw magnitude onto the inverse-linear
// palette scale used for direct intensity output: unset pixels take
// index 0, magnitudes past 255 take the reserved OverflowIndex, and
// anything else takes 255-magnitude. A set magnitude of 0 aliases
// OverflowIndex; callers treat zero intensity as unset.
func (r *Ramp) IndexForMagnitude(magnitude uint32, set bool) uint8 {
	if !set {
		return 0
	}
	if magnitude > 255 {
		return OverflowIndex
	}
	return uint8(255 - magnitude)
}
