package narration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"koescroll/internal/domain/page"
	"koescroll/internal/narration/audio"
	"koescroll/internal/storage"
	"koescroll/internal/tts"
	"koescroll/internal/voice"
)

type playback struct {
	clip tts.Audio
	rate float64
}

// fakePlayer records clips instead of playing them. When hold is set, Play
// blocks until the channel is closed or ctx is cancelled.
type fakePlayer struct {
	mu       sync.Mutex
	plays    []playback
	reject   tts.Format
	hold     chan struct{}
	started  chan struct{}
	playing  bool
	paused   bool
	stopCall int
}

func (p *fakePlayer) Play(ctx context.Context, clip tts.Audio, rate float64) error {
	p.mu.Lock()
	p.plays = append(p.plays, playback{clip: clip, rate: rate})
	if clip.Format == p.reject {
		p.mu.Unlock()
		return fmt.Errorf("%w: test", audio.ErrDecode)
	}
	p.playing = true
	hold, started := p.hold, p.started
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.playing = false
		p.paused = false
		p.mu.Unlock()
	}()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopCall++
}

func (p *fakePlayer) Pause() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing || p.paused {
		return false
	}
	p.paused = true
	return true
}

func (p *fakePlayer) Resume() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		return false
	}
	p.paused = false
	return true
}

func (p *fakePlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing && !p.paused
}

func (p *fakePlayer) IsPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *fakePlayer) played() []playback {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]playback(nil), p.plays...)
}

type mp3Synth struct{}

func (mp3Synth) Name() string { return "mp3" }

func (mp3Synth) Synthesize(ctx context.Context, req tts.Request) (tts.Audio, error) {
	return tts.Audio{Data: []byte("ID3 not really an mp3"), Format: tts.FormatMP3}, nil
}

type panicSynth struct{}

func (panicSynth) Name() string { return "panic" }

func (panicSynth) Synthesize(ctx context.Context, req tts.Request) (tts.Audio, error) {
	panic("boom")
}

type harness struct {
	engine   *Engine
	primary  *tts.Mock
	fallback *tts.Mock
	player   *fakePlayer
	cache    *Cache
	notices  []Notice
}

func newHarness(t *testing.T, primary tts.Synthesizer) *harness {
	t.Helper()
	h := &harness{
		fallback: tts.NewMock(),
		player:   &fakePlayer{},
		cache:    NewCache(storage.NewMemory(0)),
	}
	if primary == nil {
		h.primary = tts.NewMock()
		primary = h.primary
	}
	var mu sync.Mutex
	e, err := NewEngine(Config{
		Primary:   primary,
		Fallback:  h.fallback,
		Player:    h.player,
		Cache:     h.cache,
		Voices:    voice.NewSession(voice.NewMemory(storage.NewMemory(0)), voice.StandardDefaults(), "test"),
		Timeout:   time.Second,
		LinePause: -1,
		OnNotice: func(n Notice) {
			mu.Lock()
			h.notices = append(h.notices, n)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	h.engine = e
	return h
}

func script(texts ...string) []page.ScriptLine {
	lines := make([]page.ScriptLine, 0, len(texts))
	for i, text := range texts {
		lines = append(lines, page.ScriptLine{TextRegion: page.TextRegion{
			Role:          page.RoleDialogue,
			CharacterType: page.Hero,
			Text:          text,
			PanelNumber:   1,
			ReadingOrder:  i,
		}})
	}
	return lines
}

func TestNewEngineRequiresCollaborators(t *testing.T) {
	if _, err := NewEngine(Config{Player: &fakePlayer{}}); err == nil {
		t.Error("NewEngine() without synthesizer: want error")
	}
	if _, err := NewEngine(Config{Primary: tts.NewMock()}); err == nil {
		t.Error("NewEngine() without player: want error")
	}
}

func TestPlayScriptUsesCacheOnReplay(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	lines := script("Hello there.", "RUN!!")

	var started []int
	opts := PlaybackOptions{OnLineStart: func(i int, _ page.ScriptLine) { started = append(started, i) }}
	if err := h.engine.PlayScript(ctx, lines, opts); err != nil {
		t.Fatalf("PlayScript() error = %v", err)
	}
	if err := h.engine.PlayScript(ctx, lines, PlaybackOptions{}); err != nil {
		t.Fatalf("PlayScript() replay error = %v", err)
	}

	if got := len(h.primary.Requests()); got != 2 {
		t.Errorf("primary requests = %d, want 2", got)
	}
	if got := len(h.player.played()); got != 4 {
		t.Errorf("plays = %d, want 4", got)
	}
	if len(started) != 2 || started[0] != 0 || started[1] != 1 {
		t.Errorf("OnLineStart indices = %v", started)
	}
	if len(h.notices) != 0 {
		t.Errorf("unexpected notices: %v", h.notices)
	}
}

func TestPlayScriptDelivery(t *testing.T) {
	h := newHarness(t, nil)
	lines := script("RUN!!")
	lines[0].Character = "Naruto"

	if err := h.engine.PlayScript(context.Background(), lines, PlaybackOptions{Speed: 2}); err != nil {
		t.Fatal(err)
	}

	reqs := h.primary.Requests()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	req := reqs[0]
	if req.Stability != 0.3 || req.Style != 0.7 || req.SimilarityBoost != SimilarityBoost {
		t.Errorf("request delivery = %+v", req)
	}
	if req.VoiceID != voice.VoiceJosh {
		t.Errorf("voice = %q, want hero voice %q", req.VoiceID, voice.VoiceJosh)
	}
	if got := h.player.played()[0].rate; got != MaxSpeed {
		t.Errorf("rate = %v, want clamped %v", got, MaxSpeed)
	}
}

func TestDictionaryDoesNotChangeDelivery(t *testing.T) {
	h := newHarness(t, nil)
	opts := PlaybackOptions{Dictionary: Dictionary{{Original: "run", Phonetic: "ran"}}}

	if err := h.engine.PlayLine(context.Background(), "run", voice.VoiceAdam, opts); err != nil {
		t.Fatal(err)
	}
	req := h.primary.Requests()[0]
	if req.Text != "ran" {
		t.Errorf("spoken text = %q, want %q", req.Text, "ran")
	}
	if req.Stability != DeliveryAction.Stability || req.Speed != DeliveryAction.Speed {
		t.Errorf("delivery = %+v, want action", req)
	}
}

func TestFallbackIsNotCached(t *testing.T) {
	primary := tts.NewMock()
	primary.Err = errors.New("429 too many requests")
	h := newHarness(t, primary)
	ctx := context.Background()

	if err := h.engine.PlayScript(ctx, script("One.", "Two."), PlaybackOptions{}); err != nil {
		t.Fatal(err)
	}

	if len(h.notices) != 2 {
		t.Fatalf("notices = %d, want one per failed line", len(h.notices))
	}
	if h.notices[0].Fallback != h.fallback.Name() {
		t.Errorf("notice = %v", h.notices[0])
	}
	if got := len(h.fallback.Requests()); got != 2 {
		t.Errorf("fallback requests = %d, want 2", got)
	}
	if got := len(h.player.played()); got != 2 {
		t.Errorf("plays = %d, want 2", got)
	}
	stats, err := h.cache.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 0 {
		t.Errorf("cache entries = %d, fallback audio must not be cached", stats.Entries)
	}
}

func TestDecodeFailureFallsBack(t *testing.T) {
	h := newHarness(t, mp3Synth{})
	h.player.reject = tts.FormatMP3

	if err := h.engine.PlayLine(context.Background(), "Hello.", voice.VoiceAdam, PlaybackOptions{}); err != nil {
		t.Fatalf("PlayLine() error = %v", err)
	}
	plays := h.player.played()
	if len(plays) != 2 || plays[1].clip.Format != tts.FormatWAV {
		t.Fatalf("plays = %+v, want rejected mp3 then fallback wav", plays)
	}
	if len(h.notices) != 1 || !errors.Is(h.notices[0].Err, audio.ErrDecode) {
		t.Errorf("notices = %v", h.notices)
	}
}

func TestPanickingProviderFallsBack(t *testing.T) {
	h := newHarness(t, panicSynth{})
	if err := h.engine.PlayLine(context.Background(), "Hello.", voice.VoiceAdam, PlaybackOptions{}); err != nil {
		t.Fatalf("PlayLine() error = %v", err)
	}
	if len(h.notices) != 1 || len(h.fallback.Requests()) != 1 {
		t.Errorf("notices = %v, fallback requests = %d", h.notices, len(h.fallback.Requests()))
	}
}

func TestPlayLineSkippedWhenEverythingFails(t *testing.T) {
	h := newHarness(t, panicSynth{})
	h.fallback.Err = errors.New("espeak not installed")

	err := h.engine.PlayLine(context.Background(), "Hello.", voice.VoiceAdam, PlaybackOptions{})
	if !errors.Is(err, ErrLineSkipped) {
		t.Errorf("PlayLine() error = %v, want ErrLineSkipped", err)
	}
}

func TestFailingLineDoesNotAbortScript(t *testing.T) {
	h := newHarness(t, panicSynth{})
	h.fallback.Err = errors.New("espeak not installed")

	if err := h.engine.PlayScript(context.Background(), script("One.", "Two.", "Three."), PlaybackOptions{}); err != nil {
		t.Fatalf("PlayScript() error = %v", err)
	}
	if got := len(h.notices); got != 3 {
		t.Errorf("notices = %d, want 3", got)
	}
}

func TestStartIndex(t *testing.T) {
	h := newHarness(t, nil)
	var started []int
	opts := PlaybackOptions{
		StartIndex:  2,
		OnLineStart: func(i int, _ page.ScriptLine) { started = append(started, i) },
	}
	if err := h.engine.PlayScript(context.Background(), script("a", "b", "c", "d"), opts); err != nil {
		t.Fatal(err)
	}
	if len(started) != 2 || started[0] != 2 || started[1] != 3 {
		t.Errorf("started = %v, want [2 3]", started)
	}
}

func TestStopTerminatesScript(t *testing.T) {
	h := newHarness(t, nil)
	h.player.hold = make(chan struct{})
	h.player.started = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		done <- h.engine.PlayScript(context.Background(), script("one", "two", "three"), PlaybackOptions{})
	}()

	select {
	case <-h.player.started:
	case <-time.After(2 * time.Second):
		t.Fatal("playback never started")
	}
	h.engine.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("PlayScript() after Stop = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("PlayScript did not return after Stop")
	}
	if got := len(h.player.played()); got != 1 {
		t.Errorf("plays = %d, want 1", got)
	}

	h.engine.Stop()
}

func TestNewPlaybackReplacesRunning(t *testing.T) {
	h := newHarness(t, nil)
	h.player.hold = make(chan struct{})
	h.player.started = make(chan struct{}, 1)

	first := make(chan error, 1)
	go func() {
		first <- h.engine.PlayScript(context.Background(), script("one", "two"), PlaybackOptions{})
	}()
	<-h.player.started

	h.player.mu.Lock()
	h.player.hold = nil
	h.player.mu.Unlock()

	if err := h.engine.PlayLine(context.Background(), "interrupt", voice.VoiceAdam, PlaybackOptions{}); err != nil {
		t.Fatalf("PlayLine() error = %v", err)
	}
	select {
	case err := <-first:
		if err != nil {
			t.Errorf("first PlayScript() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first operation still running")
	}
	plays := h.player.played()
	if len(plays) != 2 {
		t.Errorf("plays = %d, want 2", len(plays))
	}
}

func TestTogglePause(t *testing.T) {
	h := newHarness(t, nil)
	if h.engine.TogglePause() {
		t.Error("TogglePause() with nothing playing = true")
	}

	h.player.hold = make(chan struct{})
	h.player.started = make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- h.engine.PlayLine(context.Background(), "long line", voice.VoiceAdam, PlaybackOptions{})
	}()
	<-h.player.started

	if h.engine.TogglePause() {
		t.Error("TogglePause() while playing = true, want paused")
	}
	if !h.engine.TogglePause() {
		t.Error("TogglePause() while paused = false, want playing")
	}

	close(h.player.hold)
	if err := <-done; err != nil {
		t.Errorf("PlayLine() = %v", err)
	}
}

func TestPrefetchWarmsCache(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	lines := script("One.", "Two!!", "Three...", "One.")

	report, err := NewPrefetcher(h.engine, 2, 0).Prefetch(ctx, lines, PlaybackOptions{})
	if err != nil {
		t.Fatalf("Prefetch() error = %v", err)
	}
	if report.Failed != 0 || report.Synthesized+report.Cached != 4 {
		t.Errorf("report = %+v", report)
	}
	before := len(h.primary.Requests())

	if err := h.engine.PlayScript(ctx, lines, PlaybackOptions{}); err != nil {
		t.Fatal(err)
	}
	if after := len(h.primary.Requests()); after != before {
		t.Errorf("playback synthesized %d lines after prefetch", after-before)
	}
}

func TestPrefetchCountsFailures(t *testing.T) {
	primary := tts.NewMock()
	primary.Err = errors.New("401 unauthorized")
	h := newHarness(t, primary)

	report, err := NewPrefetcher(h.engine, 1, 100).Prefetch(context.Background(), script("a", "b"), PlaybackOptions{})
	if err != nil {
		t.Fatalf("Prefetch() error = %v", err)
	}
	if report.Failed != 2 {
		t.Errorf("report = %+v, want 2 failures", report)
	}
	if len(h.fallback.Requests()) != 0 {
		t.Error("prefetch must not use the fallback")
	}
}

func TestClampSpeed(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{0.1, MinSpeed},
		{1, 1},
		{1.5, 1.5},
		{3, MaxSpeed},
	}
	for _, tt := range tests {
		if got := ClampSpeed(tt.in); got != tt.want {
			t.Errorf("ClampSpeed(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// hangingSynth never answers; it returns only when ctx ends.
type hangingSynth struct{}

func (hangingSynth) Name() string { return "hanging" }

func (hangingSynth) Synthesize(ctx context.Context, req tts.Request) (tts.Audio, error) {
	<-ctx.Done()
	return tts.Audio{}, ctx.Err()
}

func TestHangingProviderTimesOutToFallback(t *testing.T) {
	h := newHarness(t, hangingSynth{})
	h.engine.timeout = 50 * time.Millisecond

	done := make(chan error, 1)
	go func() {
		done <- h.engine.PlayLine(context.Background(), "Hello.", voice.VoiceAdam, PlaybackOptions{})
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("PlayLine() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("PlayLine did not return after the synthesis timeout")
	}

	if len(h.notices) != 1 || !errors.Is(h.notices[0].Err, context.DeadlineExceeded) {
		t.Errorf("notices = %v, want one timeout notice", h.notices)
	}
	if got := len(h.fallback.Requests()); got != 1 {
		t.Errorf("fallback requests = %d, want 1", got)
	}
	plays := h.player.played()
	if len(plays) != 1 || plays[0].clip.Format != tts.FormatWAV {
		t.Errorf("plays = %+v, want the fallback clip", plays)
	}
}

// brokenStore fails every operation.
type brokenStore struct{}

var errDiskGone = errors.New("disk unavailable")

func (brokenStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, errDiskGone
}
func (brokenStore) Set(ctx context.Context, key string, value []byte) error { return errDiskGone }
func (brokenStore) Remove(ctx context.Context, key string) error            { return errDiskGone }
func (brokenStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	return nil, errDiskGone
}

func TestUnavailableCacheIsAMiss(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.cache = NewCache(brokenStore{})
	ctx := context.Background()

	if _, ok := h.engine.cache.Get(ctx, CacheKey("One.", voice.VoiceJosh, 0.6, 0.3)); ok {
		t.Error("Get() on a failing store reported a hit")
	}

	if err := h.engine.PlayScript(ctx, script("One.", "Two."), PlaybackOptions{}); err != nil {
		t.Fatalf("PlayScript() error = %v", err)
	}
	if got := len(h.primary.Requests()); got != 2 {
		t.Errorf("primary requests = %d, want 2", got)
	}
	if got := len(h.player.played()); got != 2 {
		t.Errorf("plays = %d, want 2", got)
	}
	if len(h.notices) != 0 {
		t.Errorf("notices = %v, cache failures must not degrade narration", h.notices)
	}
}

// gatedSynth blocks each call until release is closed or ctx ends.
type gatedSynth struct {
	started chan struct{}
	release chan struct{}
	mu      sync.Mutex
	calls   int
}

func (s *gatedSynth) Name() string { return "gated" }

func (s *gatedSynth) Synthesize(ctx context.Context, req tts.Request) (tts.Audio, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	select {
	case s.started <- struct{}{}:
	default:
	}
	select {
	case <-s.release:
		return tts.Audio{Data: tts.SilentWAV(time.Millisecond), Format: tts.FormatWAV}, nil
	case <-ctx.Done():
		return tts.Audio{}, ctx.Err()
	}
}

func TestPlaybackSurvivesCancelledPrefetchFlight(t *testing.T) {
	synth := &gatedSynth{started: make(chan struct{}, 1), release: make(chan struct{})}
	h := newHarness(t, synth)
	opts := PlaybackOptions{}
	req, _ := h.engine.request("Hello.", voice.VoiceAdam, opts)

	prefetchCtx, cancelPrefetch := context.WithCancel(context.Background())
	prefetched := make(chan error, 1)
	go func() {
		_, _, _, err := h.engine.primaryAudio(prefetchCtx, req)
		prefetched <- err
	}()
	<-synth.started
	cancelPrefetch()
	if err := <-prefetched; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller error = %v, want context.Canceled", err)
	}

	played := make(chan error, 1)
	go func() {
		played <- h.engine.PlayLine(context.Background(), "Hello.", voice.VoiceAdam, opts)
	}()
	time.Sleep(20 * time.Millisecond)
	close(synth.release)

	if err := <-played; err != nil {
		t.Fatalf("PlayLine() error = %v", err)
	}
	if len(h.notices) != 0 {
		t.Errorf("notices = %v, playback must not inherit the cancelled flight", h.notices)
	}
	synth.mu.Lock()
	calls := synth.calls
	synth.mu.Unlock()
	if calls != 1 {
		t.Errorf("provider calls = %d, want 1 shared call", calls)
	}
}
