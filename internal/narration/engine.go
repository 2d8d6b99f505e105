// Package narration turns an ordered page script into speech: it picks a
// delivery for each line, synthesizes or reuses cached audio, falls back to
// on-device speech when the cloud voice fails, and plays lines one at a time.
package narration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"koescroll/internal/domain/page"
	"koescroll/internal/narration/audio"
	"koescroll/internal/tts"
	"koescroll/internal/voice"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	MinSpeed = 0.5
	MaxSpeed = 2.0

	DefaultLinePause = 350 * time.Millisecond
)

// ErrLineSkipped is returned by PlayLine when neither the primary provider
// nor the fallback produced playable audio.
var ErrLineSkipped = errors.New("narration: line skipped")

// Notice reports a line that was narrated in degraded mode, or not at all.
type Notice struct {
	Text     string
	Provider string
	Fallback string
	Err      error
}

func (n Notice) String() string {
	if n.Fallback == "" {
		return fmt.Sprintf("%s unavailable, line skipped: %v", n.Provider, n.Err)
	}
	return fmt.Sprintf("%s unavailable, using %s: %v", n.Provider, n.Fallback, n.Err)
}

// Config wires an Engine. Primary and Player are required; the rest may be
// left zero.
type Config struct {
	Primary  tts.Synthesizer
	Fallback tts.Synthesizer
	Player   audio.Player
	Cache    *Cache
	Voices   *voice.Session
	// Timeout bounds each synthesis call.
	Timeout   time.Duration
	LinePause time.Duration
	OnNotice  func(Notice)
}

// PlaybackOptions are the per-call reader settings.
type PlaybackOptions struct {
	// Speed is the global multiplier; zero means 1.0.
	Speed       float64
	Dictionary  Dictionary
	StartIndex  int
	OnLineStart func(index int, line page.ScriptLine)
}

type operation struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Engine narrates one stream of lines at a time. Starting a new PlayScript
// or PlayLine stops whatever was running before.
type Engine struct {
	primary  tts.Synthesizer
	fallback tts.Synthesizer
	player   audio.Player
	cache    *Cache
	voices   *voice.Session
	timeout  time.Duration
	pause    time.Duration
	notify   func(Notice)

	flight singleflight.Group

	mu      sync.Mutex
	current *operation
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Primary == nil {
		return nil, errors.New("narration engine needs a synthesizer")
	}
	if cfg.Player == nil {
		return nil, errors.New("narration engine needs a player")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = tts.DefaultTimeout
	}
	if cfg.LinePause < 0 {
		cfg.LinePause = 0
	} else if cfg.LinePause == 0 {
		cfg.LinePause = DefaultLinePause
	}
	if cfg.Voices == nil {
		cfg.Voices = voice.NewSession(nil, voice.StandardDefaults(), "")
	}
	return &Engine{
		primary:  cfg.Primary,
		fallback: cfg.Fallback,
		player:   cfg.Player,
		cache:    cfg.Cache,
		voices:   cfg.Voices,
		timeout:  cfg.Timeout,
		pause:    cfg.LinePause,
		notify:   cfg.OnNotice,
	}, nil
}

// Voices returns the session used to bind speakers to voices.
func (e *Engine) Voices() *voice.Session {
	return e.voices
}

// ClampSpeed limits a playback rate to [MinSpeed, MaxSpeed].
func ClampSpeed(speed float64) float64 {
	if speed < MinSpeed {
		return MinSpeed
	}
	if speed > MaxSpeed {
		return MaxSpeed
	}
	return speed
}

func globalSpeed(speed float64) float64 {
	if speed <= 0 {
		return 1
	}
	return ClampSpeed(speed)
}

// PlayScript narrates lines in order, starting at opts.StartIndex. It
// returns when the script ends or Stop is called; a stopped script is not
// resumed. Failing lines are reported through the notice callback and
// skipped.
func (e *Engine) PlayScript(ctx context.Context, lines []page.ScriptLine, opts PlaybackOptions) error {
	opCtx, end := e.begin(ctx)
	defer end()

	start := opts.StartIndex
	if start < 0 {
		start = 0
	}

	for i := start; i < len(lines); i++ {
		if opCtx.Err() != nil {
			break
		}
		line := lines[i]
		if opts.OnLineStart != nil {
			opts.OnLineStart(i, line)
		}

		key, category := speaker(line)
		voiceID := e.voices.GetVoice(opCtx, key, category, line.VoiceArchetype)

		if err := e.speak(opCtx, line.Text, voiceID, opts); err != nil && opCtx.Err() == nil {
			logrus.WithError(err).WithField("line", i).Warn("Skipping line")
		}

		if i < len(lines)-1 && !e.wait(opCtx) {
			break
		}
	}
	return ctx.Err()
}

// PlayLine narrates a single piece of text with an explicit voice.
func (e *Engine) PlayLine(ctx context.Context, text, voiceID string, opts PlaybackOptions) error {
	opCtx, end := e.begin(ctx)
	defer end()

	err := e.speak(opCtx, text, voiceID, opts)
	if opCtx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Stop halts playback and any synthesis in flight. It is safe to call when
// nothing is playing.
func (e *Engine) Stop() {
	e.mu.Lock()
	op := e.current
	e.mu.Unlock()
	if op != nil {
		op.cancel()
	}
	e.player.Stop()
}

// TogglePause pauses or resumes the current clip and reports whether audio
// is now playing.
func (e *Engine) TogglePause() bool {
	if e.player.IsPaused() {
		e.player.Resume()
		return e.player.IsPlaying()
	}
	if e.player.IsPlaying() {
		e.player.Pause()
	}
	return e.player.IsPlaying()
}

// begin cancels the running operation, waits for it to unwind and registers
// a new one.
func (e *Engine) begin(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	op := &operation{cancel: cancel, done: make(chan struct{})}

	e.mu.Lock()
	prev := e.current
	e.current = op
	e.mu.Unlock()

	if prev != nil {
		prev.cancel()
	}
	e.player.Stop()
	if prev != nil {
		<-prev.done
	}

	return ctx, func() {
		cancel()
		e.mu.Lock()
		if e.current == op {
			e.current = nil
		}
		e.mu.Unlock()
		close(op.done)
	}
}

func (e *Engine) wait(ctx context.Context) bool {
	if e.pause <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(e.pause)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// speaker returns the memory key and category for a line. Narration boxes
// without a character fall back to the narrator.
func speaker(line page.ScriptLine) (string, string) {
	category := string(line.CharacterType)
	if category == "" && line.Role == page.RoleNarration {
		category = string(page.Narrator)
	}
	key := line.SpeakerKey()
	if key == "" {
		key = category
	}
	return key, category
}

func (e *Engine) request(text, voiceID string, opts PlaybackOptions) (tts.Request, Delivery) {
	d := DetectSceneEmotion(text)
	return tts.Request{
		Text:            strings.TrimSpace(opts.Dictionary.Apply(text)),
		VoiceID:         voiceID,
		Stability:       d.Stability,
		SimilarityBoost: SimilarityBoost,
		Style:           d.Style,
		Speed:           ClampSpeed(d.Speed * globalSpeed(opts.Speed)),
	}, d
}

func (e *Engine) speak(ctx context.Context, text, voiceID string, opts PlaybackOptions) error {
	e.player.Stop()

	req, d := e.request(text, voiceID, opts)
	if req.Text == "" {
		return nil
	}
	log := logrus.WithFields(logrus.Fields{
		"voice":    voiceID,
		"delivery": d.Label,
		"rate":     req.Speed,
	})

	clip, key, cached, err := e.primaryAudio(ctx, req)
	if err == nil {
		log.WithField("cached", cached).Debug("Playing line")
		err = e.play(ctx, clip, req.Speed)
		if err == nil || ctx.Err() != nil {
			return ctx.Err()
		}
		if cached && errors.Is(err, audio.ErrDecode) {
			if rmErr := e.cache.Remove(ctx, key); rmErr != nil {
				log.WithError(rmErr).Warn("Failed to evict corrupt clip")
			}
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return e.degrade(ctx, req, err)
}

// primaryAudio returns cached audio for req or synthesizes it with the
// primary provider. Concurrent requests for the same key share one call.
func (e *Engine) primaryAudio(ctx context.Context, req tts.Request) (tts.Audio, string, bool, error) {
	key := CacheKey(req.Text, req.VoiceID, req.Stability, req.Style)
	if e.cache != nil {
		if data, ok := e.cache.Get(ctx, key); ok && len(data) > 0 {
			return tts.Audio{Data: data, Format: tts.SniffFormat(data)}, key, true, nil
		}
	}

	// The shared call ignores caller cancellation; the synthesis timeout
	// still bounds it. Each caller stops waiting on its own ctx.
	results := e.flight.DoChan(key, func() (interface{}, error) {
		flightCtx := context.WithoutCancel(ctx)
		clip, err := e.synthesize(flightCtx, e.primary, req)
		if err != nil {
			return nil, err
		}
		e.store(flightCtx, key, clip)
		return clip, nil
	})
	select {
	case res := <-results:
		if res.Err != nil {
			return tts.Audio{}, key, false, res.Err
		}
		return res.Val.(tts.Audio), key, false, nil
	case <-ctx.Done():
		return tts.Audio{}, key, false, ctx.Err()
	}
}

// store caches clip unless the provider baked the playback rate into it;
// the key does not carry the rate.
func (e *Engine) store(ctx context.Context, key string, clip tts.Audio) {
	if e.cache == nil || clip.RateApplied {
		return
	}
	if err := e.cache.Put(ctx, key, clip.Data); err != nil {
		logrus.WithError(err).Warn("Narration cache write failed")
	}
}

func (e *Engine) synthesize(ctx context.Context, s tts.Synthesizer, req tts.Request) (clip tts.Audio, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", s.Name(), r)
		}
	}()

	clip, err = s.Synthesize(ctx, req)
	if err != nil {
		return tts.Audio{}, err
	}
	if len(clip.Data) == 0 {
		return tts.Audio{}, fmt.Errorf("%s returned no audio", s.Name())
	}
	if clip.Format == "" {
		clip.Format = tts.SniffFormat(clip.Data)
	}
	return clip, nil
}

func (e *Engine) play(ctx context.Context, clip tts.Audio, rate float64) error {
	if clip.RateApplied {
		rate = 1
	}
	return e.player.Play(ctx, clip, rate)
}

// degrade narrates req with the fallback provider after the primary path
// failed with cause. Fallback audio is never cached.
func (e *Engine) degrade(ctx context.Context, req tts.Request, cause error) error {
	n := Notice{Text: req.Text, Provider: e.primary.Name(), Err: cause}
	if e.fallback != nil {
		n.Fallback = e.fallback.Name()
	}
	logrus.WithError(cause).WithFields(logrus.Fields{
		"provider": n.Provider,
		"fallback": n.Fallback,
	}).Warn("Primary synthesis failed")
	if e.notify != nil {
		e.notify(n)
	}

	if e.fallback == nil {
		return fmt.Errorf("%w: %v", ErrLineSkipped, cause)
	}

	clip, err := e.synthesize(ctx, e.fallback, req)
	if err == nil {
		err = e.play(ctx, clip, req.Speed)
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s: %v", ErrLineSkipped, e.fallback.Name(), err)
	}
	return nil
}
