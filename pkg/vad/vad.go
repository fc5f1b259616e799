// Package vad defines the two-stage voice activity classifier used to gate
// speech into the per-user segmenter.
//
// Stage 1 is a cheap energy prefilter computed in-package (Gate); stage 2 is
// an Engine, an interface implemented by a real classifier (pkg/vad/webrtc)
// or a deterministic test stub (pkg/vad/mock). A frame only reaches stage 2
// once it has passed the energy prefilter — this keeps the common case (a
// silent frame) free of the stage-2 call.
//
// Implementations must be safe for concurrent use across different sessions;
// a single SessionHandle is owned by exactly one participant's segmenter and
// must not be shared across goroutines.
package vad

import "errors"

// ErrInvalidFrame is returned when a caller supplies a frame of the wrong
// length or sample rate. It is a fatal configuration error per spec — the
// caller should abort the session rather than retry.
var ErrInvalidFrame = errors.New("vad: invalid frame")

// Mode selects the aggressiveness of the stage-2 WebRTC-style classifier.
type Mode int

const (
	ModeNormal Mode = iota
	ModeLowBitrate
	ModeAggressive
	ModeVeryAggressive
)

// Config holds the parameters for a VAD session.
type Config struct {
	// SampleRate is the audio sample rate in Hz. The gate operates on 16 kHz
	// mono per the canonical internal format (pkg/pcm.Canonical).
	SampleRate int

	// FrameMs is the duration of each audio frame in milliseconds. Default 30.
	FrameMs int

	// EnergyThresholdDB is the RMS dBFS threshold below which a frame is
	// declared inactive without consulting stage 2. Default -45.
	EnergyThresholdDB float64

	// Mode selects the stage-2 classifier's aggressiveness.
	Mode Mode
}

// FrameSamples returns the number of samples in one frame at the configured
// sample rate and frame duration.
func (c Config) FrameSamples() int {
	return c.SampleRate * c.FrameMs / 1000
}

// Engine is the factory for stage-2 VAD sessions.
type Engine interface {
	// NewSession creates a new stage-2 session with the given configuration.
	NewSession(cfg Config) (SessionHandle, error)
}

// SessionHandle represents an open stage-2 classification session carrying
// adaptive state across frames.
type SessionHandle interface {
	// IsSpeech classifies a single frame of little-endian 16-bit PCM and
	// returns true if it contains voice. Returns ErrInvalidFrame if frame
	// does not match the session's configured frame size.
	IsSpeech(frame []byte) (bool, error)

	// Close releases resources associated with the session. Safe to call
	// more than once.
	Close() error
}
