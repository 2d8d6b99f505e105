package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/sirupsen/logrus"
)

const (
	DefaultElevenLabsURL   = "https://api.elevenlabs.io"
	DefaultElevenLabsModel = "eleven_multilingual_v2"

	elevenLabsOutput  = "mp3_44100_128"
	minElevenLabsSize = 128
)

// ElevenLabsConfig configures the ElevenLabs provider.
type ElevenLabsConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// ElevenLabs synthesizes speech with the ElevenLabs text-to-speech API.
type ElevenLabs struct {
	client  *httpkit.Client
	apiKey  string
	model   string
	baseURL string
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

type elevenLabsRequest struct {
	Text          string                  `json:"text"`
	ModelID       string                  `json:"model_id"`
	VoiceSettings elevenLabsVoiceSettings `json:"voice_settings"`
}

type elevenLabsVoices struct {
	Voices []struct {
		VoiceID string `json:"voice_id"`
		Name    string `json:"name"`
	} `json:"voices"`
}

// NewElevenLabs builds the provider. An API key is required.
func NewElevenLabs(cfg ElevenLabsConfig) (*ElevenLabs, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("elevenlabs: api key is not configured")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultElevenLabsModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultElevenLabsURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &ElevenLabs{
		client:  httpkit.New(cfg.Timeout),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: cfg.BaseURL,
	}, nil
}

func (e *ElevenLabs) Name() string {
	return string(ProviderElevenLabs)
}

func (e *ElevenLabs) endpoint(parts ...string) (string, error) {
	u, err := url.JoinPath(e.baseURL, parts...)
	if err != nil {
		return "", fmt.Errorf("invalid elevenlabs url: %w", err)
	}
	return u, nil
}

func (e *ElevenLabs) Synthesize(ctx context.Context, req Request) (Audio, error) {
	if req.VoiceID == "" {
		return Audio{}, newSynthesisError(e.Name(), KindNotFound, errors.New("no voice id"))
	}

	endpoint, err := e.endpoint("v1", "text-to-speech", req.VoiceID)
	if err != nil {
		return Audio{}, newSynthesisError(e.Name(), KindNetwork, err)
	}
	endpoint += "?output_format=" + elevenLabsOutput

	body, err := json.Marshal(elevenLabsRequest{
		Text:    req.Text,
		ModelID: e.model,
		VoiceSettings: elevenLabsVoiceSettings{
			Stability:       req.Stability,
			SimilarityBoost: req.SimilarityBoost,
			Style:           req.Style,
			UseSpeakerBoost: true,
		},
	})
	if err != nil {
		return Audio{}, fmt.Errorf("failed to encode elevenlabs request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Audio{}, newSynthesisError(e.Name(), KindNetwork, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("xi-api-key", e.apiKey)

	data, err := e.client.DoRequest(httpReq)
	if err != nil {
		return Audio{}, newSynthesisError(e.Name(), classifyHTTPError(ctx, err), err)
	}
	if len(data) < minElevenLabsSize {
		return Audio{}, newSynthesisError(e.Name(), KindBadResponse,
			fmt.Errorf("audio payload too short (%d bytes)", len(data)))
	}

	logrus.WithFields(logrus.Fields{
		"voice": req.VoiceID,
		"bytes": len(data),
	}).Debug("ElevenLabs synthesis complete")

	return Audio{Data: data, Format: FormatMP3}, nil
}

// Voices lists the voice ids available to the account.
func (e *ElevenLabs) Voices(ctx context.Context) ([]string, error) {
	endpoint, err := e.endpoint("v1", "voices")
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", e.apiKey)

	data, err := e.client.DoRequest(req)
	if err != nil {
		return nil, newSynthesisError(e.Name(), classifyHTTPError(ctx, err), err)
	}

	var resp elevenLabsVoices
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, newSynthesisError(e.Name(), KindBadResponse, err)
	}
	voices := make([]string, 0, len(resp.Voices))
	for _, v := range resp.Voices {
		voices = append(voices, fmt.Sprintf("%s (%s)", v.VoiceID, v.Name))
	}
	return voices, nil
}

func classifyHTTPError(ctx context.Context, err error) Kind {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	msg := err.Error()
	switch {
	case containsAny(msg, "429", "Too Many Requests", "quota"):
		return KindRateLimited
	case containsAny(msg, "401", "403", "Unauthorized", "Forbidden"):
		return KindAuth
	case containsAny(msg, "404", "Not Found"):
		return KindNotFound
	}
	return KindNetwork
}
