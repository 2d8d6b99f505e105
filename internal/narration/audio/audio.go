// Package audio decodes synthesized clips and plays them through the
// system speaker.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"koescroll/internal/tts"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
)

// ErrDecode reports audio bytes that could not be decoded.
var ErrDecode = errors.New("audio: cannot decode clip")

// Player plays one clip at a time. Play blocks until the clip ends, Stop is
// called, or ctx is cancelled; it returns ctx.Err() in the last case.
type Player interface {
	Play(ctx context.Context, clip tts.Audio, rate float64) error
	Stop()
	// Pause and Resume report whether the state changed.
	Pause() bool
	Resume() bool
	IsPlaying() bool
	IsPaused() bool
}

// Decode opens a clip as a beep stream.
func Decode(clip tts.Audio) (beep.StreamSeekCloser, beep.Format, error) {
	format := clip.Format
	if format == "" {
		format = tts.SniffFormat(clip.Data)
	}

	var (
		streamer beep.StreamSeekCloser
		f        beep.Format
		err      error
	)
	switch format {
	case tts.FormatWAV:
		streamer, f, err = wav.Decode(bytes.NewReader(clip.Data))
	case tts.FormatMP3:
		streamer, f, err = mp3.Decode(io.NopCloser(bytes.NewReader(clip.Data)))
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return streamer, f, nil
}
