// Package app wires the koescroll commands to the reading, voice and
// narration packages.
package app

import (
	"context"
	"fmt"
	"os"
	"sync"

	"koescroll/internal/cli/scheme/colours"
	"koescroll/internal/config"
	"koescroll/internal/narration"
	"koescroll/internal/narration/audio"
	"koescroll/internal/pipeline"
	"koescroll/internal/reading"
	"koescroll/internal/storage"
	"koescroll/internal/tts"
	"koescroll/internal/voice"

	"github.com/sirupsen/logrus"
)

// KoeScroll holds the long-lived state shared by every command.
type KoeScroll struct {
	Settings config.Settings

	store  storage.Store
	memory *voice.Memory
	cache  *narration.Cache
	reader *reading.Engine

	// stdin is where interactive controls are read from
	stdin *os.File

	mu       sync.Mutex
	narrator *narration.Engine

	ctx    context.Context
	Cancel context.CancelFunc
}

// New opens persistent storage and prepares the reading engine. Speech
// providers are only built when a command needs them.
func New(settings config.Settings) (*KoeScroll, error) {
	file, err := storage.NewFile(settings.StorageDir)
	if err != nil {
		return nil, err
	}
	store := storage.NewLayered(storage.NewMemory(settings.HotTTL), file)

	reader := settings.Reading
	if reader.PanelGap <= 0 {
		reader.PanelGap = reading.DefaultPanelGap
	}
	if reader.RowTolerance <= 0 {
		reader.RowTolerance = reading.DefaultRowTolerance
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &KoeScroll{
		Settings: settings,
		store:    store,
		memory:   voice.NewMemory(store),
		cache:    narration.NewCache(store),
		reader:   &reader,
		stdin:    os.Stdin,
		ctx:      ctx,
		Cancel:   cancel,
	}, nil
}

// Stop halts any narration in progress.
func (ks *KoeScroll) Stop() {
	ks.mu.Lock()
	e := ks.narrator
	ks.mu.Unlock()
	if e != nil {
		e.Stop()
	}
}

// buildNarrator creates the narration engine for one reading session.
func (ks *KoeScroll) buildNarrator(source string, player audio.Player) (*narration.Engine, error) {
	primary, err := tts.NewSynthesizer(ks.ctx, ks.Settings.TTS)
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesis provider: %w", err)
	}
	fallback, err := tts.NewFallback(ks.Settings.TTS)
	if err != nil {
		logrus.WithError(err).Warn("On-device fallback unavailable")
		fallback = nil
	}

	session := voice.NewSession(ks.memory, ks.Settings.Voices, source)
	logrus.WithFields(logrus.Fields{
		"session":  session.ID,
		"provider": primary.Name(),
	}).Debug("Narration session started")

	e, err := narration.NewEngine(narration.Config{
		Primary:   primary,
		Fallback:  fallback,
		Player:    player,
		Cache:     ks.cache,
		Voices:    session,
		Timeout:   ks.Settings.TTS.Timeout,
		LinePause: ks.Settings.LinePause,
		OnNotice: func(n narration.Notice) {
			colours.Warning.Printf("⚠️  %s\n", n)
		},
	})
	if err != nil {
		return nil, err
	}

	ks.mu.Lock()
	ks.narrator = e
	ks.mu.Unlock()
	return e, nil
}

func (ks *KoeScroll) pipeline(e *narration.Engine) *pipeline.Page {
	var prefetcher *narration.Prefetcher
	if e != nil {
		prefetcher = narration.NewPrefetcher(e, ks.Settings.PrefetchWorkers, ks.Settings.PrefetchRate)
	}
	return pipeline.New(ks.reader, e, prefetcher)
}

func (ks *KoeScroll) dictionary() narration.Dictionary {
	if ks.Settings.DictionaryPath == "" {
		return nil
	}
	d, err := narration.LoadDictionary(ks.Settings.DictionaryPath)
	if err != nil {
		colours.Warning.Printf("⚠️  Pronunciation dictionary ignored: %v\n", err)
		return nil
	}
	return d
}
