// Package mock provides test doubles for the vad package interfaces.
package mock

import (
	"sync"

	"github.com/MrWong99/glyphoxa/pkg/vad"
)

// Engine is a mock implementation of vad.Engine.
type Engine struct {
	mu sync.Mutex

	// Session is returned by NewSession. If nil, a new default *Session is
	// returned on each call.
	Session vad.SessionHandle

	// NewSessionErr, if non-nil, is returned as the error from NewSession.
	NewSessionErr error

	// NewSessionCalls records every Config passed to NewSession, in order.
	NewSessionCalls []vad.Config
}

// NewSession records the call and returns Session, NewSessionErr.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.NewSessionCalls = append(e.NewSessionCalls, cfg)
	if e.NewSessionErr != nil {
		return nil, e.NewSessionErr
	}
	if e.Session != nil {
		return e.Session, nil
	}
	return &Session{}, nil
}

var _ vad.Engine = (*Engine)(nil)

// Session is a mock implementation of vad.SessionHandle. By default (Speech
// false, IsSpeechFunc nil) every frame is classified as non-speech; set
// Speech or IsSpeechFunc to drive specific per-frame responses (e.g. by
// frame index).
type Session struct {
	mu sync.Mutex

	// Speech is returned by IsSpeech when IsSpeechFunc is nil.
	Speech bool

	// IsSpeechFunc, if non-nil, overrides Speech and is called with the
	// per-session frame counter (0-indexed).
	IsSpeechFunc func(callIndex int, frame []byte) bool

	// IsSpeechErr, if non-nil, is returned by every IsSpeech call.
	IsSpeechErr error

	calls     int
	closeOnce sync.Once
}

// IsSpeech records the call and returns the configured classification.
func (s *Session) IsSpeech(frame []byte) (bool, error) {
	s.mu.Lock()
	idx := s.calls
	s.calls++
	s.mu.Unlock()

	if s.IsSpeechErr != nil {
		return false, s.IsSpeechErr
	}
	if s.IsSpeechFunc != nil {
		return s.IsSpeechFunc(idx, frame), nil
	}
	return s.Speech, nil
}

// Close is a no-op; calling it more than once is safe.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {})
	return nil
}

var _ vad.SessionHandle = (*Session)(nil)
