// Package tts holds the speech synthesis providers: cloud voices, the
// on-device engines used when the cloud is unavailable, and a silent mock.
package tts

import "context"

// Format identifies the container of synthesized audio.
type Format string

const (
	FormatMP3 Format = "mp3"
	FormatWAV Format = "wav"
)

// Request describes one line to synthesize. Stability, SimilarityBoost and
// Style are in [0, 1]; Speed is a multiplier around 1.0.
type Request struct {
	Text            string
	VoiceID         string
	Stability       float64
	SimilarityBoost float64
	Style           float64
	Speed           float64
}

// Audio is the encoded result of a synthesis call.
type Audio struct {
	Data   []byte
	Format Format
	// RateApplied is set when the provider already rendered Request.Speed,
	// so playback must not speed the clip up again.
	RateApplied bool
}

// Synthesizer turns text into encoded audio.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, req Request) (Audio, error)
}

// VoiceLister is implemented by providers that can enumerate their voices.
type VoiceLister interface {
	Voices(ctx context.Context) ([]string, error)
}

// SniffFormat guesses the container from the leading bytes.
func SniffFormat(data []byte) Format {
	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE" {
		return FormatWAV
	}
	return FormatMP3
}
