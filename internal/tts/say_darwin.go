//go:build darwin

package tts

import (
	"context"
	"os/exec"
	"strconv"
)

// Say renders speech with the macOS built-in 'say' command.
type Say struct {
	voice string
}

func newPlatformSynthesizer(voice string) (Synthesizer, error) {
	if _, err := exec.LookPath("say"); err != nil {
		return newESpeakSynthesizer(voice)
	}
	return &Say{voice: voice}, nil
}

func (s *Say) Name() string {
	return string(ProviderPlatform)
}

func (s *Say) Synthesize(ctx context.Context, req Request) (Audio, error) {
	return renderToFile(ctx, s.Name(), func(out string) *exec.Cmd {
		args := []string{"-o", out, "--data-format=LEI16@22050", "-r", strconv.Itoa(wordsPerMinute(req.Speed))}
		if s.voice != "" && s.voice != "default" {
			args = append(args, "-v", s.voice)
		}
		args = append(args, "--", req.Text)
		return exec.CommandContext(ctx, "say", args...)
	})
}
