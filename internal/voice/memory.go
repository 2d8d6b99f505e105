package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"koescroll/internal/storage"

	"github.com/sirupsen/logrus"
)

const (
	memoryKey = "voice_memory"

	// shorter keys are only matched exactly
	minFuzzyRunes = 3
)

// ErrCorruptMemory reports a stored record that could not be decoded.
var ErrCorruptMemory = errors.New("voice memory is corrupt")

// Binding records which voice a character speaks with.
type Binding struct {
	CharacterKey   string `json:"characterKey"`
	VoiceID        string `json:"voiceId"`
	PersonalityTag string `json:"personalityTag"`
	SourceLabel    string `json:"sourceLabel"`
	Timestamp      int64  `json:"timestamp"`
}

// Memory is the persisted, fuzzy-matchable record of character voices.
// All bindings live under one key of the backing store.
type Memory struct {
	store storage.Store
	now   func() time.Time
	mu    sync.Mutex
}

// NewMemory returns a voice memory persisted in store.
func NewMemory(store storage.Store) *Memory {
	return &Memory{store: store, now: time.Now}
}

func (m *Memory) load(ctx context.Context) ([]Binding, error) {
	data, ok, err := m.store.Get(ctx, memoryKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read voice memory: %w", err)
	}
	if !ok || len(data) == 0 {
		return nil, nil
	}
	var bindings []Binding
	if err := json.Unmarshal(data, &bindings); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptMemory, err)
	}
	return bindings, nil
}

func (m *Memory) save(ctx context.Context, bindings []Binding) error {
	data, err := json.Marshal(bindings)
	if err != nil {
		return fmt.Errorf("failed to encode voice memory: %w", err)
	}
	if err := m.store.Set(ctx, memoryKey, data); err != nil {
		return fmt.Errorf("failed to write voice memory: %w", err)
	}
	return nil
}

// SaveVoice stores a binding, replacing any earlier one for the same key.
func (m *Memory) SaveVoice(ctx context.Context, key, voiceID, tag, sourceLabel string) error {
	key = NormalizeKey(key)
	if key == "" || voiceID == "" {
		return fmt.Errorf("voice binding needs a character key and a voice id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	bindings, err := m.load(ctx)
	switch {
	case errors.Is(err, ErrCorruptMemory):
		// a corrupt record is replaced rather than blocking new bindings
		logrus.WithError(err).Warn("Discarding unreadable voice memory")
		bindings = nil
	case err != nil:
		return err
	}

	kept := bindings[:0]
	for _, b := range bindings {
		if b.CharacterKey != key {
			kept = append(kept, b)
		}
	}
	kept = append(kept, Binding{
		CharacterKey:   key,
		VoiceID:        voiceID,
		PersonalityTag: tag,
		SourceLabel:    sourceLabel,
		Timestamp:      m.now().UnixMilli(),
	})

	if err := m.save(ctx, kept); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"character": key,
		"voice":     voiceID,
		"source":    sourceLabel,
	}).Debug("Saved voice binding")
	return nil
}

// SuggestVoice finds the voice bound to key. An exact match wins; otherwise a
// stored key containing the query (or contained by it) matches, preferring
// the most recent binding. ok is false when nothing matches.
func (m *Memory) SuggestVoice(ctx context.Context, key string) (string, bool, error) {
	key = NormalizeKey(key)
	if key == "" {
		return "", false, nil
	}

	m.mu.Lock()
	bindings, err := m.load(ctx)
	m.mu.Unlock()
	if err != nil {
		return "", false, err
	}

	for _, b := range bindings {
		if b.CharacterKey == key {
			return b.VoiceID, true, nil
		}
	}

	for i := len(bindings) - 1; i >= 0; i-- {
		b := bindings[i]
		if fuzzyMatch(b.CharacterKey, key) {
			return b.VoiceID, true, nil
		}
	}
	return "", false, nil
}

// ListAll returns every binding, oldest first.
func (m *Memory) ListAll(ctx context.Context) ([]Binding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(ctx)
}

func fuzzyMatch(stored, query string) bool {
	shorter := stored
	if utf8.RuneCountInString(query) < utf8.RuneCountInString(stored) {
		shorter = query
	}
	if utf8.RuneCountInString(shorter) < minFuzzyRunes {
		return false
	}
	return strings.Contains(stored, query) || strings.Contains(query, stored)
}
