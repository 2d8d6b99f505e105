package tts

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Mock produces silent audio sized to the text. It records every request and
// can be told to fail, which makes it useful offline and in tests.
type Mock struct {
	// PerWord is the simulated speaking time per word.
	PerWord time.Duration
	// Err, when set, is returned from every call.
	Err error
	// Quiet suppresses the console notice.
	Quiet bool

	mu       sync.Mutex
	requests []Request
}

// NewMock returns a mock provider.
func NewMock() *Mock {
	return &Mock{PerWord: 50 * time.Millisecond, Quiet: true}
}

func (m *Mock) Name() string {
	return string(ProviderMock)
}

func (m *Mock) Synthesize(ctx context.Context, req Request) (Audio, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	failure := m.Err
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Audio{}, err
	}
	if failure != nil {
		return Audio{}, failure
	}

	words := len(strings.Fields(req.Text))
	if !m.Quiet {
		color.Yellow("🔊 Reading aloud... (simulated, %d words)", words)
	}
	return Audio{Data: SilentWAV(time.Duration(words) * m.PerWord), Format: FormatWAV}, nil
}

// Requests returns a copy of every request seen so far.
func (m *Mock) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Voices returns the single mock voice.
func (m *Mock) Voices(ctx context.Context) ([]string, error) {
	return []string{"mock-voice"}, nil
}
