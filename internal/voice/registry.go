// Package voice binds speaking characters to synthetic voices and keeps those
// bindings stable within a reading session and across sessions.
package voice

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const manualTag = "manual"

// Session resolves character voices for one reading session. Voices are
// locked on first resolution so a character never changes voice while the
// session lives, even if the persisted memory changes underneath it.
type Session struct {
	ID string

	memory   *Memory
	defaults Defaults
	source   string

	mu    sync.RWMutex
	locks map[string]string
}

// NewSession starts a session backed by memory. source labels bindings the
// session creates, typically the title being read; it may be empty.
func NewSession(memory *Memory, defaults Defaults, source string) *Session {
	if defaults.Fallback == "" {
		defaults.Fallback = DefaultVoice
	}
	return &Session{
		ID:       uuid.NewString(),
		memory:   memory,
		defaults: defaults,
		source:   source,
		locks:    make(map[string]string),
	}
}

// GetVoice returns the voice for characterKey. It always returns a voice:
// session lock, then persisted memory, then archetype, category, the key
// itself as a category, and finally the global fallback.
func (s *Session) GetVoice(ctx context.Context, characterKey, category, archetype string) string {
	key := NormalizeKey(characterKey)
	log := logrus.WithFields(logrus.Fields{"session": s.ID, "character": key})

	if v, ok := s.locked(key); ok {
		return v
	}

	if s.memory != nil && key != "" {
		v, ok, err := s.memory.SuggestVoice(ctx, key)
		if err != nil {
			log.WithError(err).Warn("Voice memory unavailable, using defaults")
		} else if ok {
			log.WithField("voice", v).Debug("Voice restored from memory")
			return s.lockIfAbsent(key, v)
		}
	}

	voiceID, tag := s.resolveDefault(key, NormalizeKey(category), NormalizeKey(archetype))

	if s.memory != nil && key != "" {
		label := s.source
		if label == "" {
			label = "Auto: " + tag
		}
		if err := s.memory.SaveVoice(ctx, key, voiceID, tag, label); err != nil {
			log.WithError(err).Warn("Failed to persist voice binding")
		}
	}

	log.WithFields(logrus.Fields{"voice": voiceID, "tag": tag}).Debug("Voice assigned")
	return s.lockIfAbsent(key, voiceID)
}

func (s *Session) resolveDefault(key, category, archetype string) (string, string) {
	if v, ok := lookup(s.defaults.Archetypes, archetype); ok {
		return v, archetype
	}
	if v, ok := lookup(s.defaults.Categories, category); ok {
		return v, category
	}
	if v, ok := lookup(s.defaults.Categories, key); ok {
		return v, key
	}
	return s.defaults.Fallback, "default"
}

// LockVoice pins characterKey to voiceID for the rest of the session.
func (s *Session) LockVoice(characterKey, voiceID string) {
	s.lock(NormalizeKey(characterKey), voiceID)
}

// Override pins and persists a user-chosen voice.
func (s *Session) Override(ctx context.Context, characterKey, voiceID string) error {
	key := NormalizeKey(characterKey)
	if key == "" || voiceID == "" {
		return fmt.Errorf("override needs a character and a voice")
	}
	s.lock(key, voiceID)
	if s.memory == nil {
		return nil
	}
	label := s.source
	if label == "" {
		label = "Manual"
	}
	return s.memory.SaveVoice(ctx, key, voiceID, manualTag, label)
}

// Locked returns a copy of the current session locks.
func (s *Session) Locked() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.locks))
	for k, v := range s.locks {
		out[k] = v
	}
	return out
}

func (s *Session) locked(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.locks[key]
	return v, ok
}

func (s *Session) lock(key, voiceID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks[key] = voiceID
	return voiceID
}

// lockIfAbsent keeps an existing lock, so concurrent first lookups agree.
func (s *Session) lockIfAbsent(key, voiceID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.locks[key]; ok {
		return v
	}
	s.locks[key] = voiceID
	return voiceID
}
