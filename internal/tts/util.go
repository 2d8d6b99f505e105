package tts

import (
	"strings"
	"time"
)

// DefaultTimeout bounds a single synthesis call.
const DefaultTimeout = 20 * time.Second

// speaking rate of the on-device engines at 1.0x
const baseWordsPerMinute = 175

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func wordsPerMinute(speed float64) int {
	if speed <= 0 {
		speed = 1
	}
	return int(baseWordsPerMinute * speed)
}
