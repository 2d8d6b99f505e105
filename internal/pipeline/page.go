// Package pipeline feeds classifier output through the reading-order pass and
// on into narration.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"koescroll/internal/domain/page"
	"koescroll/internal/narration"
	"koescroll/internal/reading"

	"github.com/sirupsen/logrus"
)

// Page runs one page worth of regions through ordering and narration.
type Page struct {
	reader     *reading.Engine
	narrator   *narration.Engine
	prefetcher *narration.Prefetcher
}

// New builds a pipeline. narrator and prefetcher may be nil when only
// ordering is needed.
func New(reader *reading.Engine, narrator *narration.Engine, prefetcher *narration.Prefetcher) *Page {
	if reader == nil {
		reader = reading.NewEngine()
	}
	return &Page{reader: reader, narrator: narrator, prefetcher: prefetcher}
}

// Script orders regions into a page script.
func (p *Page) Script(regions []page.TextRegion) page.Script {
	return p.reader.Process(regions)
}

// Narrate orders regions and plays the result. The script is returned so a
// caller can remember where playback stopped.
func (p *Page) Narrate(ctx context.Context, regions []page.TextRegion, opts narration.PlaybackOptions) (page.Script, error) {
	script := p.Script(regions)
	if p.narrator == nil {
		return script, fmt.Errorf("pipeline has no narrator")
	}
	if len(script) == 0 {
		logrus.Info("Nothing to narrate on this page")
		return script, nil
	}
	return script, p.narrator.PlayScript(ctx, script, opts)
}

// Prefetch orders regions and warms the narration cache for them.
func (p *Page) Prefetch(ctx context.Context, regions []page.TextRegion, opts narration.PlaybackOptions) (narration.PrefetchReport, error) {
	if p.prefetcher == nil {
		return narration.PrefetchReport{}, fmt.Errorf("pipeline has no prefetcher")
	}
	return p.prefetcher.Prefetch(ctx, p.Script(regions), opts)
}

// ReadRegions decodes classifier output: either a bare JSON array of regions
// or an object with a "regions" array. Regions that do not decode, such as
// one with a non-numeric box, are dropped like any other malformed region.
func ReadRegions(r io.Reader) ([]page.TextRegion, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read regions: %w", err)
	}
	body = bytes.TrimSpace(body)

	var raw []json.RawMessage
	if len(body) > 0 && body[0] == '{' {
		var doc struct {
			Regions []json.RawMessage `json:"regions"`
		}
		err = json.Unmarshal(body, &doc)
		raw = doc.Regions
	} else {
		err = json.Unmarshal(body, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse regions: %w", err)
	}

	regions := make([]page.TextRegion, 0, len(raw))
	for i, msg := range raw {
		var region page.TextRegion
		if err := json.Unmarshal(msg, &region); err != nil {
			logrus.WithError(err).WithField("region", i).Debug("Dropping undecodable region")
			continue
		}
		regions = append(regions, region)
	}
	return regions, nil
}

// LoadRegions reads classifier output from a file; "-" means stdin.
func LoadRegions(path string) ([]page.TextRegion, error) {
	if path == "-" {
		return ReadRegions(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open regions: %w", err)
	}
	defer f.Close()
	return ReadRegions(f)
}
