// Package voiceplatform defines the narrow boundary between a capture
// source (the voice-platform client library: gateway login, voice
// handshake, channel join, and the chat command surface) and the core
// transcription pipeline (C1-C6). The capture source and chat command
// surface are explicitly out of scope — this package specifies only the
// interface the core consumes (a [Sink]) and exposes (a [Platform]) at
// that boundary.
//
// Concrete adapters for a specific platform live in subpackages, e.g.
// voiceplatform/discord.
package voiceplatform

import "context"

// Sink is the push interface a capture source drives. It corresponds to
// spec.md's "process boundary (capture source -> C6)" and "process
// boundary (text source -> C6)".
//
// Implementations must be safe for concurrent use: a capture source may
// call IngestStereo48 from one goroutine per participant.
type Sink interface {
	// IngestStereo48 hands off interleaved stereo 16-bit LE PCM samples at
	// 48 kHz for participantID. Blocking DSP work runs in-line; callers
	// should not call this from a goroutine they cannot afford to block
	// briefly.
	IngestStereo48(ctx context.Context, participantID string, stereo48 []byte) error

	// FlushAll is an idempotent signal invoked when the upstream platform
	// reports that every participant has stopped speaking (e.g. a
	// channel-wide silence timeout). Safe to call even when no participant
	// has buffered audio.
	FlushAll()

	// LogText appends a text-origin entry for a chat message sent
	// alongside the voice session.
	LogText(userID, displayName string, createdTs float64, text string)
}

// Connection represents an active attachment to one voice channel. It is
// obtained from [Platform.Connect] and remains valid until Disconnect is
// called.
type Connection interface {
	// Disconnect tears down the platform connection. Safe to call more
	// than once; subsequent calls are no-ops.
	Disconnect() error
}

// Platform is the entry point for a voice-channel capture source.
// Implementations wrap a platform-specific client library and drive sink
// with captured audio and text messages.
type Platform interface {
	// Connect joins the voice channel identified by channelID and begins
	// delivering captured audio/text to sink until the returned
	// [Connection] is disconnected.
	Connect(ctx context.Context, channelID string, sink Sink) (Connection, error)
}
