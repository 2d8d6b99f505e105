package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"koescroll/internal/tts"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/sirupsen/logrus"
)

const (
	DefaultSampleRate = beep.SampleRate(44100)

	resampleQuality = 4
	// upper bound on waiting for the mixer to drain a halted clip
	haltTimeout = time.Second
)

// Speaker plays clips on the default output device using beep.
type Speaker struct {
	sampleRate beep.SampleRate

	initOnce sync.Once
	initErr  error

	mu      sync.Mutex
	ctrl    *beep.Ctrl
	playing bool
}

// NewSpeaker returns a speaker that mixes at DefaultSampleRate. The device
// is opened lazily on first use.
func NewSpeaker() *Speaker {
	return &Speaker{sampleRate: DefaultSampleRate}
}

func (s *Speaker) init() error {
	s.initOnce.Do(func() {
		s.initErr = speaker.Init(s.sampleRate, s.sampleRate.N(time.Second/10))
		if s.initErr != nil {
			s.initErr = fmt.Errorf("failed to open audio device: %w", s.initErr)
		}
	})
	return s.initErr
}

func (s *Speaker) Play(ctx context.Context, clip tts.Audio, rate float64) error {
	streamer, format, err := Decode(clip)
	if err != nil {
		return err
	}
	defer streamer.Close()

	if err := s.init(); err != nil {
		return err
	}

	var src beep.Streamer = beep.Resample(resampleQuality, format.SampleRate, s.sampleRate, streamer)
	if rate > 0 && rate != 1 {
		src = beep.ResampleRatio(resampleQuality, rate, src)
	}

	ctrl := &beep.Ctrl{Streamer: src}
	done := make(chan struct{})

	s.mu.Lock()
	s.haltLocked()
	s.ctrl = ctrl
	s.playing = true
	s.mu.Unlock()

	speaker.Play(beep.Seq(ctrl, beep.Callback(func() {
		close(done)
	})))

	var ctxErr error
	select {
	case <-done:
	case <-ctx.Done():
		ctxErr = ctx.Err()
		s.mu.Lock()
		if s.ctrl == ctrl {
			s.haltLocked()
		}
		s.mu.Unlock()
		s.awaitDrain(done)
	}

	s.mu.Lock()
	if s.ctrl == ctrl {
		s.ctrl = nil
		s.playing = false
	}
	s.mu.Unlock()

	if ctxErr != nil {
		return ctxErr
	}
	if err := streamer.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

func (s *Speaker) awaitDrain(done <-chan struct{}) {
	select {
	case <-done:
	case <-time.After(haltTimeout):
		logrus.Warn("Audio mixer did not release halted clip")
	}
}

// haltLocked detaches the current clip; the mixer then runs its callback.
func (s *Speaker) haltLocked() {
	if s.ctrl == nil {
		return
	}
	speaker.Lock()
	s.ctrl.Streamer = nil
	s.ctrl.Paused = false
	speaker.Unlock()
	s.playing = false
}

// Stop halts the current clip. It is safe to call when nothing plays.
func (s *Speaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.haltLocked()
}

func (s *Speaker) Pause() bool {
	return s.setPaused(true)
}

func (s *Speaker) Resume() bool {
	return s.setPaused(false)
}

func (s *Speaker) setPaused(paused bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctrl == nil {
		return false
	}
	speaker.Lock()
	if s.ctrl.Streamer == nil {
		speaker.Unlock()
		return false
	}
	changed := s.ctrl.Paused != paused
	s.ctrl.Paused = paused
	speaker.Unlock()
	s.playing = !paused
	return changed
}

func (s *Speaker) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *Speaker) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctrl == nil {
		return false
	}
	speaker.Lock()
	defer speaker.Unlock()
	return s.ctrl.Paused
}
