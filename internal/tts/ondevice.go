package tts

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// renderToFile runs a command that writes a WAV file to the path it is given
// and returns the file contents.
func renderToFile(ctx context.Context, provider string, build func(out string) *exec.Cmd) (Audio, error) {
	tmp, err := os.CreateTemp("", "koescroll-*.wav")
	if err != nil {
		return Audio{}, fmt.Errorf("failed to create temp audio file: %w", err)
	}
	out := tmp.Name()
	tmp.Close()
	defer os.Remove(out)

	cmd := build(out)
	if output, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return Audio{}, ctx.Err()
		}
		return Audio{}, newSynthesisError(provider, KindBadResponse,
			fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output))))
	}

	data, err := os.ReadFile(out)
	if err != nil || len(data) == 0 {
		return Audio{}, newSynthesisError(provider, KindBadResponse, fmt.Errorf("no audio produced: %v", err))
	}
	return Audio{Data: data, Format: FormatWAV, RateApplied: true}, nil
}
