package tts

import (
	"context"
	"fmt"
	"os"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"github.com/sirupsen/logrus"
	texttospeechpb "google.golang.org/genproto/googleapis/cloud/texttospeech/v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	DefaultGoogleLanguage = "en-US"
	DefaultGoogleVoice    = "en-US-Chirp3-HD-Charon"
)

// GoogleConfig configures the Google Cloud provider. VoiceMap translates
// character voice ids into Google voice names; ids that already look like a
// Google voice name are used as is.
type GoogleConfig struct {
	Language     string
	DefaultVoice string
	VoiceMap     map[string]string
}

// Google synthesizes speech with Google Cloud Text-to-Speech.
type Google struct {
	client *texttospeech.Client
	cfg    GoogleConfig
}

// NewGoogle dials the Cloud TTS API using application default credentials.
func NewGoogle(ctx context.Context, cfg GoogleConfig) (*Google, error) {
	if cfg.Language == "" {
		cfg.Language = DefaultGoogleLanguage
	}
	if cfg.DefaultVoice == "" {
		cfg.DefaultVoice = DefaultGoogleVoice
	}
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create TTS client: %w", err)
	}
	return &Google{client: client, cfg: cfg}, nil
}

func (g *Google) Name() string {
	return string(ProviderGoogle)
}

func (g *Google) voiceName(voiceID string) string {
	if name, ok := g.cfg.VoiceMap[voiceID]; ok && name != "" {
		return name
	}
	if strings.HasPrefix(voiceID, g.cfg.Language+"-") {
		return voiceID
	}
	return g.cfg.DefaultVoice
}

func (g *Google) Synthesize(ctx context.Context, req Request) (Audio, error) {
	name := g.voiceName(req.VoiceID)

	// Speed is applied at playback so cached clips stay rate-independent.
	audioCfg := &texttospeechpb.AudioConfig{
		AudioEncoding: texttospeechpb.AudioEncoding_MP3,
	}

	resp, err := g.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: req.Text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: g.cfg.Language,
			Name:         name,
		},
		AudioConfig: audioCfg,
	})
	if err != nil {
		return Audio{}, newSynthesisError(g.Name(), classifyGRPCError(err), err)
	}
	if len(resp.AudioContent) == 0 {
		return Audio{}, newSynthesisError(g.Name(), KindBadResponse, fmt.Errorf("empty audio content"))
	}

	logrus.WithFields(logrus.Fields{
		"voice": name,
		"bytes": len(resp.AudioContent),
	}).Debug("Google synthesis complete")

	return Audio{Data: resp.AudioContent, Format: FormatMP3}, nil
}

// Voices lists the Google voices for the configured language.
func (g *Google) Voices(ctx context.Context) ([]string, error) {
	resp, err := g.client.ListVoices(ctx, &texttospeechpb.ListVoicesRequest{LanguageCode: g.cfg.Language})
	if err != nil {
		return nil, newSynthesisError(g.Name(), classifyGRPCError(err), err)
	}
	voices := make([]string, 0, len(resp.Voices))
	for _, v := range resp.Voices {
		voices = append(voices, v.Name)
	}
	return voices, nil
}

// Close releases the underlying gRPC connection.
func (g *Google) Close() error {
	return g.client.Close()
}

func classifyGRPCError(err error) Kind {
	switch status.Code(err) {
	case codes.ResourceExhausted:
		return KindRateLimited
	case codes.Unauthenticated, codes.PermissionDenied:
		return KindAuth
	case codes.NotFound, codes.InvalidArgument:
		return KindNotFound
	default:
		return KindNetwork
	}
}

// hasGoogleCredentials checks if Google Cloud credentials are available
func hasGoogleCredentials() bool {
	_, ok := os.LookupEnv("GOOGLE_APPLICATION_CREDENTIALS")
	return ok
}
