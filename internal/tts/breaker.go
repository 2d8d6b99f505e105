package tts

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// BreakerState is the state of a circuit breaker.
type BreakerState uint32

const (
	Closed   BreakerState = iota // calls pass through
	Open                         // calls fail fast
	HalfOpen                     // one trial call decides
)

func (s BreakerState) String() string {
	return [...]string{"closed", "open", "half-open"}[s]
}

const (
	DefaultBreakerThreshold = 3
	DefaultBreakerCooldown  = 30 * time.Second
)

// Guarded wraps a provider with a circuit breaker so a dead cloud provider is
// skipped for a cool-down instead of costing a timeout on every line.
type Guarded struct {
	Synthesizer

	threshold   int32
	cooldown    time.Duration
	state       atomic.Uint32
	failures    atomic.Int32
	lastFailure atomic.Int64 // unix nano
}

// NewGuarded wraps s. Non-positive arguments select the defaults.
func NewGuarded(s Synthesizer, threshold int, cooldown time.Duration) *Guarded {
	if threshold <= 0 {
		threshold = DefaultBreakerThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultBreakerCooldown
	}
	g := &Guarded{Synthesizer: s, threshold: int32(threshold), cooldown: cooldown}
	g.state.Store(uint32(Closed))
	return g
}

// State returns the current breaker state.
func (g *Guarded) State() BreakerState {
	return BreakerState(g.state.Load())
}

func (g *Guarded) Synthesize(ctx context.Context, req Request) (Audio, error) {
	if err := g.allow(); err != nil {
		return Audio{}, err
	}
	audio, err := g.Synthesizer.Synthesize(ctx, req)
	switch {
	case err == nil:
		g.success()
	case errors.Is(err, context.Canceled):
		// the caller gave up; an abandoned trial reopens so another can run
		g.move(HalfOpen, Open)
	default:
		g.failure()
	}
	return audio, err
}

// allow lets every call through while closed and exactly one trial call through
// once the cool-down has passed.
func (g *Guarded) allow() error {
	switch g.State() {
	case Closed:
		return nil
	case Open:
		if time.Since(time.Unix(0, g.lastFailure.Load())) > g.cooldown && g.move(Open, HalfOpen) {
			return nil
		}
	}
	return fmt.Errorf("%s circuit open: %w", g.Name(), ErrUnavailable)
}

func (g *Guarded) success() {
	g.failures.Store(0)
	if g.State() == HalfOpen {
		g.transition(Closed)
	}
}

func (g *Guarded) failure() {
	g.lastFailure.Store(time.Now().UnixNano())
	count := g.failures.Add(1)

	switch g.State() {
	case HalfOpen:
		g.transition(Open)
	case Closed:
		if count >= g.threshold {
			g.transition(Open)
		}
	}
}

// move changes state only if it is still from.
func (g *Guarded) move(from, to BreakerState) bool {
	if !g.state.CompareAndSwap(uint32(from), uint32(to)) {
		return false
	}
	g.entered(from, to)
	return true
}

func (g *Guarded) transition(to BreakerState) {
	from := BreakerState(g.state.Swap(uint32(to)))
	if from == to {
		return
	}
	g.entered(from, to)
}

func (g *Guarded) entered(from, to BreakerState) {
	if to == Closed {
		g.failures.Store(0)
	}
	logrus.WithFields(logrus.Fields{
		"provider": g.Name(),
		"from":     from.String(),
		"to":       to.String(),
		"failures": g.failures.Load(),
	}).Info("Synthesis circuit breaker changed state")
}
