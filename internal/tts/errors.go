package tts

import (
	"errors"
	"fmt"
)

// ErrUnavailable marks every failure that should send a line to the fallback
// provider. Match it with errors.Is.
var ErrUnavailable = errors.New("speech synthesis unavailable")

// Kind classifies why a provider failed.
type Kind string

const (
	KindNetwork     Kind = "network"
	KindRateLimited Kind = "rate_limited"
	KindAuth        Kind = "auth"
	KindBadResponse Kind = "bad_response"
	KindNotFound    Kind = "not_found"
)

// SynthesisError is returned by providers when a call fails.
type SynthesisError struct {
	Provider   string
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *SynthesisError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s synthesis failed (%s, status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s synthesis failed (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

func (e *SynthesisError) Is(target error) bool {
	return target == ErrUnavailable
}

func newSynthesisError(provider string, kind Kind, err error) *SynthesisError {
	return &SynthesisError{Provider: provider, Kind: kind, Err: err}
}
