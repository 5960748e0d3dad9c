package sources

import (
	"context"
	"fmt"
	"os"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/rs/zerolog/log"
)

// PBF streams node versions out of a full-history OpenStreetMap PBF
// file. Ways and relations carry no coordinates and are skipped at the
// decoder, as are deleted node versions.
type PBF struct {
	Path string
	// Workers sets the number of PBF block decoders. Nodes come back in
	// file order either way.
	Workers int
}

const logEveryNodes = 10_000_000

func (p PBF) Each(ctx context.Context, fn func(Event) error) error {
	f, err := os.Open(p.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	workers := p.Workers
	if workers < 1 {
		workers = 1
	}

	log.Info().
		Str("path", p.Path).
		Int64("size_mb", info.Size()/(1<<20)).
		Int("workers", workers).
		Msg("Scanning planet file")

	scanner := osmpbf.New(ctx, f, workers)
	defer scanner.Close()
	scanner.SkipWays = true
	scanner.SkipRelations = true

	var nodes, deleted uint64
	for scanner.Scan() {
		node, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if !node.Visible {
			deleted++
			continue
		}
		nodes++
		if nodes%logEveryNodes == 0 {
			log.Debug().
				Uint64("nodes", nodes).
				Int64("read_mb", scanner.FullyScannedBytes()/(1<<20)).
				Int64("size_mb", info.Size()/(1<<20)).
				Msg("Scan progress")
		}
		if err := fn(Event{Lat: node.Lat, Lon: node.Lon, Timestamp: node.Timestamp.Unix()}); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanning %s: %w", p.Path, err)
	}

	log.Info().
		Uint64("nodes", nodes).
		Uint64("deleted", deleted).
		Msg("Planet file scanned")
	return nil
}
