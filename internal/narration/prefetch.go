package narration

import (
	"context"
	"sync/atomic"

	"koescroll/internal/domain/page"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const DefaultPrefetchWorkers = 3

// PrefetchReport counts what a prefetch run did.
type PrefetchReport struct {
	Cached      int
	Synthesized int
	Failed      int
}

// Prefetcher warms the narration cache ahead of playback so lines start
// without waiting on the network.
type Prefetcher struct {
	engine  *Engine
	workers int
	limiter *rate.Limiter
}

// NewPrefetcher runs up to workers syntheses at once. perSecond limits how
// often a request is started; zero or less means unlimited.
func NewPrefetcher(engine *Engine, workers int, perSecond float64) *Prefetcher {
	if workers <= 0 {
		workers = DefaultPrefetchWorkers
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Prefetcher{
		engine:  engine,
		workers: workers,
		limiter: rate.NewLimiter(limit, workers),
	}
}

// Prefetch resolves a voice for every line and synthesizes the ones not yet
// cached. Individual failures are counted, not returned; only cancellation
// of ctx fails the call.
func (p *Prefetcher) Prefetch(ctx context.Context, lines []page.ScriptLine, opts PlaybackOptions) (PrefetchReport, error) {
	var cached, synthesized, failed atomic.Int64

	e := p.engine
	if e.cache == nil {
		return PrefetchReport{}, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i, line := range lines {
		key, category := speaker(line)
		voiceID := e.voices.GetVoice(ctx, key, category, line.VoiceArchetype)
		req, _ := e.request(line.Text, voiceID, opts)
		if req.Text == "" {
			continue
		}
		cacheKey := CacheKey(req.Text, req.VoiceID, req.Stability, req.Style)
		if _, ok := e.cache.Get(ctx, cacheKey); ok {
			cached.Add(1)
			continue
		}

		idx := i
		g.Go(func() error {
			if err := p.limiter.Wait(gctx); err != nil {
				return err
			}
			_, _, _, err := e.primaryAudio(gctx, req)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				logrus.WithError(err).WithField("line", idx).Warn("Prefetch failed")
				return nil
			}
			synthesized.Add(1)
			return nil
		})
	}

	err := g.Wait()
	report := PrefetchReport{
		Cached:      int(cached.Load()),
		Synthesized: int(synthesized.Load()),
		Failed:      int(failed.Load()),
	}
	logrus.WithFields(logrus.Fields{
		"cached":      report.Cached,
		"synthesized": report.Synthesized,
		"failed":      report.Failed,
	}).Info("Prefetch complete")
	if ctxErr := ctx.Err(); ctxErr != nil {
		return report, ctxErr
	}
	return report, err
}
