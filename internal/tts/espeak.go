package tts

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ESpeak renders speech on-device with eSpeak or eSpeak-NG, writing WAV to
// stdout. Cancelling the context kills the process.
type ESpeak struct {
	path  string
	voice string
}

// NewESpeak locates the eSpeak executable. voice may be empty.
func NewESpeak(voice string) (*ESpeak, error) {
	path, err := findESpeakExecutable()
	if err != nil {
		return nil, fmt.Errorf("eSpeak not found: %w", err)
	}
	return &ESpeak{path: path, voice: voice}, nil
}

// newESpeakSynthesizer returns an untyped nil Synthesizer on failure.
func newESpeakSynthesizer(voice string) (Synthesizer, error) {
	e, err := NewESpeak(voice)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func findESpeakExecutable() (string, error) {
	for _, candidate := range []string{"espeak-ng", "espeak"} {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("eSpeak executable not found in PATH")
}

func (e *ESpeak) Name() string {
	return string(ProviderESpeak)
}

func (e *ESpeak) args(req Request) []string {
	args := []string{"--stdout"}
	if e.voice != "" && e.voice != "default" {
		args = append(args, "-v", e.voice)
	}
	args = append(args, "-s", strconv.Itoa(wordsPerMinute(req.Speed)))
	// "--" keeps lines starting with a dash from being read as flags
	return append(args, "--", req.Text)
}

func (e *ESpeak) Synthesize(ctx context.Context, req Request) (Audio, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.path, e.args(req)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Audio{}, ctx.Err()
		}
		return Audio{}, newSynthesisError(e.Name(), KindBadResponse,
			fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String())))
	}
	if stdout.Len() == 0 {
		return Audio{}, newSynthesisError(e.Name(), KindBadResponse, fmt.Errorf("no audio produced"))
	}
	return Audio{Data: stdout.Bytes(), Format: FormatWAV, RateApplied: true}, nil
}

// Voices lists the installed eSpeak voices.
func (e *ESpeak) Voices(ctx context.Context) ([]string, error) {
	output, err := exec.CommandContext(ctx, e.path, "--voices").Output()
	if err != nil {
		return nil, err
	}
	return parseESpeakVoices(string(output)), nil
}

// parseESpeakVoices reads the VoiceName column of `espeak --voices`. The
// columns are: Pty Language Age/Gender VoiceName File Other Languages.
func parseESpeakVoices(output string) []string {
	const nameColumn = 3

	var voices []string
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) <= nameColumn || fields[0] == "Pty" {
			continue
		}
		voices = append(voices, fields[nameColumn])
	}
	return voices
}
