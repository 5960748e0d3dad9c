// Command editpulse renders the edit history of an OpenStreetMap
// planet file into an animated heat map: an animated GIF, or numbered
// PNG frames ready for video assembly.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"
	"github.com/editpulse/editpulse/pkg/encode"
	"github.com/editpulse/editpulse/pkg/heatengine"
	"github.com/editpulse/editpulse/pkg/sources"
	"github.com/editpulse/editpulse/pkg/utils"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const appVersion = "0.3.0"

// In-memory (frame, pixel) pairs held before a spill merge.
const spillMaxPairs = 4_000_000

var cli struct {
	Input            string             `short:"i" placeholder:"FILE" help:"Full-history planet PBF (path or http(s) URL), or a saved intermediate file with --load-intermediate."`
	Output           string             `short:"o" required:"" placeholder:"PATH" help:"Output file, or filename prefix with --frames."`
	Height           uint32             `help:"Canvas height in pixels."`
	SecPerFrame      uint32             `short:"s" help:"Seconds of history per output frame."`
	ColourRamp       string             `placeholder:"FILE" help:"Colour ramp file for the animation palette."`
	SaveIntermediate bool               `help:"Write the aggregated frames as text instead of rendering."`
	LoadIntermediate bool               `help:"Treat the input as a saved intermediate file."`
	BBox             *heatengine.BBox   `name:"bbox" short:"b" placeholder:"L,B,R,T" help:"Geographic crop in degrees."`
	Centre           *heatengine.Centre `short:"c" placeholder:"LAT,LON" help:"Orthographic centre point."`
	Ortho            bool               `xor:"projection" help:"Project onto a globe facing the centre point."`
	Equirect         bool               `xor:"projection" help:"Flat equirectangular projection (the default)."`
	GIF              bool               `name:"gif" xor:"format" help:"Write an animated GIF (the default)."`
	Frames           bool               `xor:"format" help:"Write numbered PNG frames for video assembly."`
	Basemap          string             `placeholder:"FILE" help:"GeoJSON land polygons (path or http(s) URL) drawn beneath PNG frames."`
	Stamp            bool               `help:"Stamp PNG frames with the date they cover."`
	SpillDir         string             `placeholder:"DIR" help:"Bound ingest memory by spilling counts to a badger store at this path."`
	CacheDir         string             `name:"cache-dir" default:"cache" placeholder:"DIR" help:"Directory for downloaded remote inputs."`
	PBFWorkers       int                `name:"pbf-workers" default:"1" help:"Parallel PBF block decoders."`
	Demo             int                `placeholder:"N" help:"Ingest N synthetic events instead of a planet file."`
	Verbose          bool               `short:"v" help:"Enable debug logging."`
}

// runConfig is the resolved geometry and timing for the whole run,
// after flags, intermediate metadata and defaults are reconciled.
type runConfig struct {
	height      uint32
	width       uint32
	secPerFrame uint32
	bbox        heatengine.BBox
	centre      heatengine.Centre
	kind        heatengine.ProjectionKind
}

func main() {
	kong.Parse(&cli,
		kong.Name("editpulse"),
		kong.Description("Renders the edit history of an OpenStreetMap planet file into an animated heat map."),
	)

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cli.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	start := time.Now()
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("editpulse failed")
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("Finished")
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	meta, haveMeta, err := loadMeta()
	if err != nil {
		return err
	}
	cfg, err := resolveConfig(meta, haveMeta)
	if err != nil {
		return err
	}
	log.Debug().
		Uint32("width", cfg.width).
		Uint32("height", cfg.height).
		Uint32("sec_per_frame", cfg.secPerFrame).
		Str("projection", string(cfg.kind)).
		Msg("Configuration resolved")

	if !cli.Frames {
		if cli.Basemap != "" {
			log.Warn().Msg("--basemap only applies to --frames output")
		}
		if cli.Stamp {
			log.Warn().Msg("--stamp only applies to --frames output")
		}
	}

	var records []heatengine.FrameRecord
	stampStart := int64(-1)
	if cli.LoadIntermediate {
		records, err = loadFrames()
	} else {
		records, stampStart, err = aggregate(ctx, cfg)
	}
	if err != nil {
		return err
	}

	if cli.SaveIntermediate {
		return saveIntermediate(cfg, records)
	}

	if len(records) == 0 {
		return errors.New("no frames to render: the input produced no usable events")
	}

	renderer := heatengine.NewRenderer(cfg.width, cfg.height)
	if cli.Frames {
		err = writePNGFrames(cfg, renderer, records, stampStart)
	} else {
		err = writeGIF(cfg, renderer, records)
	}
	if err != nil {
		return err
	}
	if n := renderer.Dropped(); n > 0 {
		log.Warn().Uint64("deltas", n).Msg("Deltas outside the canvas were dropped during rendering")
	}
	return nil
}

// loadMeta reads the metadata header of the input when it is a saved
// intermediate file.
func loadMeta() (heatengine.Meta, bool, error) {
	if !cli.LoadIntermediate {
		return heatengine.Meta{}, false, nil
	}
	if cli.Input == "" {
		return heatengine.Meta{}, false, errors.New("--load-intermediate needs --input")
	}

	f, err := os.Open(cli.Input)
	if err != nil {
		return heatengine.Meta{}, false, err
	}
	defer f.Close()

	meta, err := heatengine.ReadMeta(f)
	if err != nil {
		return heatengine.Meta{}, false, fmt.Errorf("reading metadata from %s: %w", cli.Input, err)
	}
	return meta, true, nil
}

// resolveConfig reconciles flags, stored metadata and defaults. Flags
// win; height and sec-per-frame have no default and must come from one
// of the two.
func resolveConfig(meta heatengine.Meta, haveMeta bool) (runConfig, error) {
	cfg := runConfig{height: cli.Height, secPerFrame: cli.SecPerFrame}
	if cfg.height == 0 && haveMeta {
		cfg.height = meta.Height
	}
	if cfg.height == 0 {
		return cfg, errors.New("--height not given and no intermediate metadata to take it from")
	}
	if cfg.secPerFrame == 0 && haveMeta {
		cfg.secPerFrame = meta.SecPerFrame
	}
	if cfg.secPerFrame == 0 {
		return cfg, errors.New("--sec-per-frame not given and no intermediate metadata to take it from")
	}

	cfg.bbox = heatengine.WorldBBox
	switch {
	case cli.BBox != nil:
		cfg.bbox = *cli.BBox
	case haveMeta:
		cfg.bbox = meta.BBox
	}

	switch {
	case cli.Centre != nil:
		cfg.centre = *cli.Centre
	case haveMeta:
		cfg.centre = meta.Centre
	}

	cfg.kind = heatengine.ProjectionEquirect
	switch {
	case cli.Ortho:
		cfg.kind = heatengine.ProjectionOrtho
	case cli.Equirect:
	case haveMeta && meta.Projection != "":
		cfg.kind = meta.Projection
	}

	// A saved intermediate knows its own canvas; rederive only when the
	// user overrides the height.
	if haveMeta && cli.Height == 0 && meta.Width > 0 {
		cfg.width = meta.Width
	} else {
		cfg.width = heatengine.CanvasWidth(cfg.kind, cfg.height, cfg.bbox)
	}
	return cfg, nil
}

// fetchIfRemote resolves http(s) inputs through the download cache and
// passes local paths straight through.
func fetchIfRemote(input string) (string, error) {
	if !utils.IsURL(input) {
		return input, nil
	}
	path, err := utils.FetchToCache(input, cli.CacheDir)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", input, err)
	}
	return path, nil
}

func loadFrames() ([]heatengine.FrameRecord, error) {
	log.Info().Str("path", cli.Input).Msg("Reading intermediate frames")
	f, err := os.Open(cli.Input)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	_, records, err := heatengine.ReadIntermediate(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", cli.Input, err)
	}
	return records, nil
}

// aggregate runs the ingest pass and returns the dense frame sequence
// plus the unix time of frame 0, for absolute date stamps.
func aggregate(ctx context.Context, cfg runConfig) ([]heatengine.FrameRecord, int64, error) {
	proj := heatengine.NewProjector(cfg.kind, cfg.bbox, cfg.centre, cfg.width, cfg.height)
	agg := heatengine.NewAggregator(proj, cfg.secPerFrame)

	if cli.SpillDir != "" {
		store, err := utils.OpenCountStore(cli.SpillDir)
		if err != nil {
			return nil, 0, fmt.Errorf("opening spill store: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Warn().Err(err).Msg("Closing spill store")
			}
		}()
		agg.SetSpill(store, spillMaxPairs)
	}

	var src sources.Source
	switch {
	case cli.Demo > 0:
		src = sources.Synthetic{Events: cli.Demo, Seed: 1, Start: heatengine.Epoch}
	case cli.Input != "":
		path, err := fetchIfRemote(cli.Input)
		if err != nil {
			return nil, 0, err
		}
		src = sources.PBF{Path: path, Workers: cli.PBFWorkers}
	default:
		return nil, 0, errors.New("--input or --demo required")
	}

	err := src.Each(ctx, func(ev sources.Event) error {
		return agg.Record(ev.Lat, ev.Lon, ev.Timestamp)
	})
	if err != nil {
		return nil, 0, err
	}

	records, err := agg.Finalize()
	if err != nil {
		return nil, 0, err
	}

	stats := agg.Stats()
	log.Info().
		Uint64("events", stats.Events).
		Uint64("off_canvas", stats.OffCanvas).
		Int("frames", len(records)).
		Int("spill_flushes", stats.Flushes).
		Msg("Aggregation complete")

	stampStart := int64(-1)
	if stats.Events > 0 {
		stampStart = heatengine.FrameStart(stats.FirstFrame, cfg.secPerFrame)
	}
	return records, stampStart, nil
}

func saveIntermediate(cfg runConfig, records []heatengine.FrameRecord) error {
	meta := heatengine.Meta{
		Version:     appVersion,
		Height:      cfg.height,
		Width:       cfg.width,
		SecPerFrame: cfg.secPerFrame,
		BBox:        cfg.bbox,
		Centre:      cfg.centre,
		Projection:  cfg.kind,
	}

	log.Info().Str("path", cli.Output).Int("frames", len(records)).Msg("Saving intermediate frames")
	f, err := os.Create(cli.Output)
	if err != nil {
		return err
	}
	if err := heatengine.WriteIntermediate(f, meta, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeGIF(cfg runConfig, renderer *heatengine.Renderer, records []heatengine.FrameRecord) error {
	if cli.ColourRamp == "" {
		return errors.New("--colour-ramp required for GIF output")
	}
	ramp, err := heatengine.LoadRamp(cli.ColourRamp)
	if err != nil {
		return err
	}

	g := encode.NewGIF(int(cfg.width), int(cfg.height), ramp)
	for i := range records {
		g.AddFrame(renderer.RenderFrame(records[i]))
	}

	f, err := os.Create(cli.Output)
	if err != nil {
		return err
	}
	if err := g.Encode(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	log.Info().Str("path", cli.Output).Int("frames", g.FrameCount()).Msg("Animation written")
	return nil
}

func writePNGFrames(cfg runConfig, renderer *heatengine.Renderer, records []heatengine.FrameRecord, stampStart int64) error {
	seq := &encode.FrameSequence{
		Prefix: cli.Output,
		Width:  int(cfg.width),
		Height: int(cfg.height),
	}

	if cli.Basemap != "" {
		proj := heatengine.NewProjector(cfg.kind, cfg.bbox, cfg.centre, cfg.width, cfg.height)
		xy, ok := proj.(encode.XYProjector)
		if !ok {
			return fmt.Errorf("projection %s cannot place basemap geometry", cfg.kind)
		}
		path, err := fetchIfRemote(cli.Basemap)
		if err != nil {
			return err
		}
		img, err := encode.RenderBasemap(path, xy, int(cfg.width), int(cfg.height))
		if err != nil {
			return fmt.Errorf("rendering basemap: %w", err)
		}
		seq.Basemap = img
	}
	if cli.Stamp {
		seq.Stamper = encode.NewStamper(cfg.secPerFrame, stampStart)
	}

	for i := range records {
		if err := seq.WriteFrame(renderer.RenderFrame(records[i])); err != nil {
			return err
		}
	}
	seq.Finish()
	return nil
}
