package tts

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

type ProviderType string

const (
	ProviderMock       ProviderType = "mock"
	ProviderElevenLabs ProviderType = "elevenlabs"
	ProviderGoogle     ProviderType = "google"
	ProviderESpeak     ProviderType = "espeak"
	ProviderPlatform   ProviderType = "platform" // say on macOS, SAPI on Windows, eSpeak elsewhere
	ProviderNone       ProviderType = "none"
	ProviderAuto       ProviderType = "auto"
)

func (p ProviderType) String() string {
	return string(p)
}

// Config selects and configures the primary and fallback providers.
type Config struct {
	Provider string
	Fallback string
	Timeout  time.Duration

	ElevenLabs ElevenLabsConfig
	Google     GoogleConfig
	// LocalVoice is the voice name handed to the on-device engine.
	LocalVoice string

	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// NewSynthesizer builds the primary provider named by cfg.Provider. Cloud
// providers are wrapped in a circuit breaker.
func NewSynthesizer(ctx context.Context, cfg Config) (Synthesizer, error) {
	if cfg.ElevenLabs.APIKey == "" {
		cfg.ElevenLabs.APIKey = os.Getenv("ELEVENLABS_API_KEY")
	}

	provider := ProviderType(cfg.Provider)
	if provider == ProviderAuto || provider == "" {
		provider = bestProvider(cfg)
		logrus.WithField("provider", provider).Info("Auto-selected synthesis provider")
	}

	switch provider {
	case ProviderMock:
		return NewMock(), nil

	case ProviderElevenLabs:
		if cfg.ElevenLabs.Timeout <= 0 {
			cfg.ElevenLabs.Timeout = cfg.Timeout
		}
		el, err := NewElevenLabs(cfg.ElevenLabs)
		if err != nil {
			return nil, err
		}
		return NewGuarded(el, cfg.BreakerThreshold, cfg.BreakerCooldown), nil

	case ProviderGoogle:
		g, err := NewGoogle(ctx, cfg.Google)
		if err != nil {
			return nil, err
		}
		return NewGuarded(g, cfg.BreakerThreshold, cfg.BreakerCooldown), nil

	case ProviderESpeak:
		return newESpeakSynthesizer(cfg.LocalVoice)

	case ProviderPlatform:
		return newPlatformSynthesizer(cfg.LocalVoice)

	default:
		return nil, fmt.Errorf("unsupported synthesis provider: %s", cfg.Provider)
	}
}

// NewFallback builds the degraded provider used when the primary fails. It
// returns nil, nil when fallback is disabled.
func NewFallback(cfg Config) (Synthesizer, error) {
	switch ProviderType(cfg.Fallback) {
	case ProviderNone:
		return nil, nil
	case ProviderMock:
		return NewMock(), nil
	case ProviderESpeak:
		return newESpeakSynthesizer(cfg.LocalVoice)
	case ProviderPlatform, ProviderAuto, "":
		return newPlatformSynthesizer(cfg.LocalVoice)
	default:
		return nil, fmt.Errorf("unsupported fallback provider: %s", cfg.Fallback)
	}
}

// bestProvider picks the best available provider for this machine.
func bestProvider(cfg Config) ProviderType {
	if cfg.ElevenLabs.APIKey != "" {
		return ProviderElevenLabs
	}
	if hasGoogleCredentials() {
		return ProviderGoogle
	}
	return ProviderPlatform
}

// AvailableProviders returns the providers that can be built here.
func AvailableProviders(cfg Config) []ProviderType {
	providers := []ProviderType{ProviderMock}
	if cfg.ElevenLabs.APIKey != "" {
		providers = append(providers, ProviderElevenLabs)
	}
	if hasGoogleCredentials() {
		providers = append(providers, ProviderGoogle)
	}
	if _, err := findESpeakExecutable(); err == nil {
		providers = append(providers, ProviderESpeak)
	}
	return append(providers, ProviderPlatform)
}
