// Package webrtc implements vad.Engine using the libwebrtcvad cgo binding
// github.com/baabaaox/go-webrtcvad, the WebRTC project's own voice activity
// detector. Each session owns one underlying VAD instance, matching
// libwebrtcvad's stateful, single-stream design.
package webrtc

import (
	"fmt"
	"sync"

	webrtcvad "github.com/baabaaox/go-webrtcvad"

	"github.com/MrWong99/glyphoxa/pkg/vad"
)

// Engine creates libwebrtcvad-backed sessions. The zero value is ready to
// use.
type Engine struct{}

var _ vad.Engine = Engine{}

// NewSession creates a new libwebrtcvad instance configured for cfg's
// sample rate and mode. Returns an error if the sample rate is unsupported
// by libwebrtcvad (8000, 16000, 32000, or 48000) or initialisation fails.
func (Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	switch cfg.SampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return nil, fmt.Errorf("%w: unsupported sample rate %d", vad.ErrInvalidFrame, cfg.SampleRate)
	}

	inst := webrtcvad.Create()
	if inst == nil {
		return nil, fmt.Errorf("webrtcvad: create failed")
	}
	if err := webrtcvad.Init(inst); err != nil {
		return nil, fmt.Errorf("webrtcvad: init: %w", err)
	}
	if err := webrtcvad.SetMode(inst, modeToLibrary(cfg.Mode)); err != nil {
		webrtcvad.Free(inst)
		return nil, fmt.Errorf("webrtcvad: set mode: %w", err)
	}

	return &session{
		inst:       inst,
		sampleRate: cfg.SampleRate,
		frameSz:    cfg.FrameSamples(),
	}, nil
}

// modeToLibrary maps the spec's named modes onto libwebrtcvad's 0-3 scale.
// {normal, low_bitrate, aggressive, very_aggressive} per spec.md 4.2.
func modeToLibrary(m vad.Mode) int {
	switch m {
	case vad.ModeNormal:
		return 0
	case vad.ModeLowBitrate:
		return 1
	case vad.ModeAggressive:
		return 2
	case vad.ModeVeryAggressive:
		return 3
	default:
		return 2
	}
}

type session struct {
	mu         sync.Mutex
	inst       webrtcvad.VadInst
	sampleRate int
	frameSz    int
	closed     bool
}

// IsSpeech classifies one frame. frame must be exactly frameSz*2 bytes of
// little-endian 16-bit mono PCM (the session's configured frame size).
func (s *session) IsSpeech(frame []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, fmt.Errorf("webrtcvad: session closed")
	}
	if len(frame) != s.frameSz*2 {
		return false, vad.ErrInvalidFrame
	}

	isVoice, err := webrtcvad.Process(s.inst, s.sampleRate, frame, s.frameSz)
	if err != nil {
		return false, fmt.Errorf("webrtcvad: process: %w", err)
	}
	return isVoice, nil
}

// Close releases the underlying libwebrtcvad instance. Safe to call more
// than once.
func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	webrtcvad.Free(s.inst)
	return nil
}

var _ vad.SessionHandle = (*session)(nil)
