//go:build windows

package tts

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
)

// SAPI renders speech with the Windows Speech API through PowerShell. The
// text travels in an environment variable so it is never parsed as script.
type SAPI struct {
	voice string
}

const sapiScript = `Add-Type -AssemblyName System.Speech;
$synth = New-Object System.Speech.Synthesis.SpeechSynthesizer;
if ($env:KOESCROLL_VOICE) { $synth.SelectVoice($env:KOESCROLL_VOICE) };
$synth.Rate = [int]$env:KOESCROLL_RATE;
$synth.SetOutputToWaveFile($env:KOESCROLL_OUT);
$synth.Speak($env:KOESCROLL_TEXT);
$synth.Dispose()`

func newPlatformSynthesizer(voice string) (Synthesizer, error) {
	if _, err := exec.LookPath("powershell"); err != nil {
		return newESpeakSynthesizer(voice)
	}
	return &SAPI{voice: voice}, nil
}

func (s *SAPI) Name() string {
	return string(ProviderPlatform)
}

// sapiRate maps a speed multiplier onto the SAPI -10..10 range.
func sapiRate(speed float64) int {
	if speed <= 0 {
		speed = 1
	}
	return int(math.Max(-10, math.Min(10, math.Round((speed-1)*10))))
}

func (s *SAPI) Synthesize(ctx context.Context, req Request) (Audio, error) {
	return renderToFile(ctx, s.Name(), func(out string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, "powershell", "-NoProfile", "-Command", sapiScript)
		voice := ""
		if s.voice != "default" {
			voice = s.voice
		}
		cmd.Env = append(os.Environ(),
			"KOESCROLL_TEXT="+req.Text,
			"KOESCROLL_OUT="+out,
			"KOESCROLL_VOICE="+voice,
			fmt.Sprintf("KOESCROLL_RATE=%d", sapiRate(req.Speed)),
		)
		return cmd
	})
}
