// Command editpulse-inspect summarizes a saved intermediate file
// without rendering it: run metadata, per-frame activity statistics
// and, on request, an activity-profile chart or a colour ramp proof
// strip.
package main

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/editpulse/editpulse/pkg/encode"
	"github.com/editpulse/editpulse/pkg/heatengine"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var cli struct {
	Input      string `arg:"" placeholder:"FILE" help:"Intermediate file to inspect."`
	Chart      string `placeholder:"FILE" help:"Write a per-frame edit volume chart (SVG when FILE ends in .svg, PNG otherwise)."`
	Top        int    `default:"5" placeholder:"N" help:"How many of the busiest frames to list."`
	RampProof  string `name:"ramp-proof" placeholder:"FILE" help:"Write a PNG strip of the palette colour each magnitude maps to."`
	ColourRamp string `placeholder:"FILE" help:"Colour ramp file for --ramp-proof."`
	Verbose    bool   `short:"v" help:"Enable debug logging."`
}

var (
	chartStroke = drawing.Color{R: 53, G: 111, B: 178, A: 255}
	chartFill   = drawing.Color{R: 53, G: 111, B: 178, A: 64}
)

type frameStats struct {
	totals       []float64
	activeFrames int
	totalEdits   uint64
	totalDeltas  int
	saturated    int
}

func main() {
	kong.Parse(&cli,
		kong.Name("editpulse-inspect"),
		kong.Description("Summarizes a saved editpulse intermediate file."),
	)

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cli.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("editpulse-inspect failed")
	}
}

func run() error {
	f, err := os.Open(cli.Input)
	if err != nil {
		return err
	}
	defer f.Close()

	meta, records, err := heatengine.ReadIntermediate(f)
	if err != nil {
		return fmt.Errorf("reading %s: %w", cli.Input, err)
	}

	stats := collect(records)
	report(meta, records, stats)

	if cli.Chart != "" {
		if err := writeChart(cli.Chart, stats.totals); err != nil {
			return fmt.Errorf("writing chart: %w", err)
		}
		log.Info().Str("path", cli.Chart).Msg("Activity chart written")
	}

	if cli.RampProof != "" {
		if cli.ColourRamp == "" {
			return errors.New("--ramp-proof needs --colour-ramp")
		}
		ramp, err := heatengine.LoadRamp(cli.ColourRamp)
		if err != nil {
			return err
		}
		if err := writeRampProof(cli.RampProof, ramp); err != nil {
			return fmt.Errorf("writing ramp proof: %w", err)
		}
		log.Info().Str("path", cli.RampProof).Msg("Ramp proof written")
	}
	return nil
}

func collect(records []heatengine.FrameRecord) frameStats {
	stats := frameStats{totals: make([]float64, len(records))}
	for i, rec := range records {
		var edits uint64
		for _, d := range rec.Deltas {
			edits += uint64(d.Count)
			if d.Count == math.MaxUint16 {
				stats.saturated++
			}
		}
		stats.totals[i] = float64(edits)
		stats.totalEdits += edits
		stats.totalDeltas += len(rec.Deltas)
		if len(rec.Deltas) > 0 {
			stats.activeFrames++
		}
	}
	return stats
}

func report(meta heatengine.Meta, records []heatengine.FrameRecord, stats frameStats) {
	fmt.Printf("version:       %s\n", meta.Version)
	fmt.Printf("canvas:        %dx%d %s\n", meta.Width, meta.Height, meta.Projection)
	fmt.Printf("bbox:          %s\n", meta.BBox)
	fmt.Printf("centre:        %s\n", meta.Centre)
	fmt.Printf("sec per frame: %d (%s)\n", meta.SecPerFrame, spanLabel(meta.SecPerFrame))
	fmt.Printf("frames:        %d", len(records))
	if len(records) > 0 {
		fmt.Printf(" (%d active, plays for %.1fs at %d fps)",
			stats.activeFrames, float64(len(records))/encode.PlaybackFPS, encode.PlaybackFPS)
	}
	fmt.Println()
	fmt.Printf("edits:         %d across %d pixel deltas\n", stats.totalEdits, stats.totalDeltas)
	if stats.saturated > 0 {
		fmt.Printf("saturated:     %d deltas pinned at %d\n", stats.saturated, math.MaxUint16)
	}

	if len(records) == 0 || cli.Top <= 0 {
		return
	}
	order := make([]int, len(records))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return stats.totals[order[a]] > stats.totals[order[b]]
	})
	n := cli.Top
	if n > len(order) {
		n = len(order)
	}
	fmt.Println("busiest frames:")
	for _, i := range order[:n] {
		fmt.Printf("  #%-8d %14.0f edits across %d pixels\n",
			records[i].Frame, stats.totals[i], len(records[i].Deltas))
	}
}

// spanLabel renders a frame interval in the unit people pick them in,
// whole days when it divides evenly.
func spanLabel(sec uint32) string {
	d := time.Duration(sec) * time.Second
	if d >= 24*time.Hour && d%(24*time.Hour) == 0 {
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	}
	return d.String()
}

func writeChart(path string, totals []float64) error {
	if len(totals) < 2 {
		return errors.New("need at least two frames to chart")
	}
	x := make([]float64, len(totals))
	for i := range x {
		x[i] = float64(i)
	}

	graph := chart.Chart{
		Title:  "Edits per frame",
		Width:  1200,
		Height: 400,
		Series: []chart.Series{
			chart.ContinuousSeries{
				Style: chart.Style{
					StrokeColor: chartStroke,
					FillColor:   chartFill,
				},
				XValues: x,
				YValues: totals,
			},
		},
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	provider := chart.PNG
	if strings.EqualFold(filepath.Ext(path), ".svg") {
		provider = chart.SVG
	}
	if err := graph.Render(provider, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeRampProof draws a 256x32 strip where column m takes the palette
// colour a direct-intensity magnitude of m maps to. Ramp authors use it
// to see step coverage, the unassigned padding range and the overflow
// slot before committing to a long render.
func writeRampProof(path string, ramp *heatengine.Ramp) error {
	const stripHeight = 32
	img := image.NewPaletted(image.Rect(0, 0, 256, stripHeight), encode.GlobalPalette(ramp))
	for m := 0; m < 256; m++ {
		idx := ramp.IndexForMagnitude(uint32(m), true)
		for y := 0; y < stripHeight; y++ {
			img.Pix[y*img.Stride+m] = idx
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
