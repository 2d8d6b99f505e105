//go:build !darwin && !windows

package tts

func newPlatformSynthesizer(voice string) (Synthesizer, error) {
	return newESpeakSynthesizer(voice)
}
