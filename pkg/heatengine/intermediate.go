package heatengine

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Meta is the configuration block of an intermediate file. It carries
// everything needed to resume rendering without the original input.
type Meta struct {
	Version     string
	Height      uint32
	Width       uint32
	SecPerFrame uint32
	BBox        BBox
	Centre      Centre
	Projection  ProjectionKind
}

// maxLineBytes bounds a single body line. One line holds every active
// pixel of a frame, so lines can run to many megabytes.
const maxLineBytes = 1 << 30

// WriteIntermediate serializes the configuration and frame sequence in
// the line-oriented text layout:
//
//	metadata <key> <value>
//	<blank>
//	<frame>[,<pixel>,<count>]*
func WriteIntermediate(w io.Writer, meta Meta, frames []FrameRecord) error {
	bw := bufio.NewWriterSize(w, 1<<20)

	fmt.Fprintf(bw, "metadata version %s\n", meta.Version)
	fmt.Fprintf(bw, "metadata height %d\n", meta.Height)
	fmt.Fprintf(bw, "metadata width %d\n", meta.Width)
	fmt.Fprintf(bw, "metadata sec_per_frame %d\n", meta.SecPerFrame)
	fmt.Fprintf(bw, "metadata bbox %s\n", meta.BBox)
	fmt.Fprintf(bw, "metadata centre %s\n", meta.Centre)
	fmt.Fprintf(bw, "metadata projection %s\n", meta.Projection)
	fmt.Fprintln(bw)

	buf := make([]byte, 0, 1<<16)
	for _, rec := range frames {
		buf = strconv.AppendUint(buf[:0], uint64(rec.Frame), 10)
		for _, d := range rec.Deltas {
			buf = append(buf, ',')
			buf = strconv.AppendUint(buf, uint64(d.Pixel), 10)
			buf = append(buf, ',')
			buf = strconv.AppendUint(buf, uint64(d.Count), 10)
		}
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadIntermediate parses a complete intermediate file back into its
// configuration and frame sequence.
func ReadIntermediate(r io.Reader) (Meta, []FrameRecord, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1<<20), maxLineBytes)

	meta, err := scanMeta(sc)
	if err != nil {
		return Meta{}, nil, err
	}

	var frames []FrameRecord
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		rec, err := parseFrameLine(line)
		if err != nil {
			return Meta{}, nil, err
		}
		frames = append(frames, rec)
	}
	if err := sc.Err(); err != nil {
		return Meta{}, nil, err
	}
	return meta, frames, nil
}

// ReadMeta parses only the metadata header, up to the first blank
// line. The frame body is not touched.
func ReadMeta(r io.Reader) (Meta, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1<<20), maxLineBytes)
	return scanMeta(sc)
}

func scanMeta(sc *bufio.Scanner) (Meta, error) {
	var meta Meta
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			break
		}
		fields := strings.SplitN(line, " ", 3)
		if len(fields) != 3 || fields[0] != "metadata" {
			return meta, fmt.Errorf("malformed metadata line %q", line)
		}
		key, value := fields[1], fields[2]
		var err error
		switch key {
		case "version":
			meta.Version = value
		case "height":
			meta.Height, err = parseUint32(value)
		case "width":
			meta.Width, err = parseUint32(value)
		case "sec_per_frame":
			meta.SecPerFrame, err = parseUint32(value)
		case "bbox":
			err = meta.BBox.UnmarshalText([]byte(value))
		case "centre":
			err = meta.Centre.UnmarshalText([]byte(value))
		case "projection":
			meta.Projection, err = ParseProjectionKind(value)
		default:
			// Unknown keys are tolerated.
		}
		if err != nil {
			return meta, fmt.Errorf("metadata %s: %w", key, err)
		}
	}
	return meta, sc.Err()
}

func parseFrameLine(line string) (FrameRecord, error) {
	var rec FrameRecord

	head, rest, hasDeltas := strings.Cut(line, ",")
	frame, err := parseUint32(head)
	if err != nil {
		return rec, fmt.Errorf("frame number %q: %w", head, err)
	}
	rec.Frame = frame
	if !hasDeltas {
		return rec, nil
	}

	parts := strings.Split(rest, ",")
	if len(parts)%2 != 0 {
		return rec, fmt.Errorf("frame %d: odd delta field count %d", frame, len(parts))
	}
	rec.Deltas = make([]PixelDelta, 0, len(parts)/2)
	for i := 0; i < len(parts); i += 2 {
		pixel, err := parseUint32(parts[i])
		if err != nil {
			return rec, fmt.Errorf("frame %d: pixel %q: %w", frame, parts[i], err)
		}
		count, err := strconv.ParseUint(parts[i+1], 10, 16)
		if err != nil {
			return rec, fmt.Errorf("frame %d: count %q: %w", frame, parts[i+1], err)
		}
		rec.Deltas = append(rec.Deltas, PixelDelta{Pixel: pixel, Count: uint16(count)})
	}
	return rec, nil
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	return uint32(v), err
}
