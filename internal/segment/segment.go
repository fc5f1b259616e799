// Package segment accumulates per-participant PCM frames into finalized
// utterance segments, gated by a two-stage voice activity classifier.
//
// One Segmenter exists per speaking participant. It buffers raw mono 16 kHz
// PCM as it arrives, frames it for classification, and applies the
// silence/length rules described for the coordinator's pipeline: short
// silences are stitched back into an in-progress segment, long silences or a
// length cap finalize it. Segments are delivered to a caller-supplied
// callback rather than a channel, so the segmenter never holds a reference
// back to its owner.
package segment

import "errors"

// ErrClosed is returned by Ingest after Close has been called.
var ErrClosed = errors.New("segment: segmenter closed")

// Classifier classifies a single fixed-length PCM frame as active (speech)
// or inactive (silence). Implementations carry their own adaptive state and
// are not safe for concurrent use across distinct sessions; vad.Gate
// satisfies this interface.
type Classifier interface {
	Classify(frame []byte) (active bool, err error)
}

// Config tunes the segmenter's silence/length rules. Zero values are
// replaced with the documented defaults by NewSegmenter.
type Config struct {
	// SampleRate is the canonical mono sample rate in Hz. Default 16000.
	SampleRate int

	// FrameMs is the VAD frame duration in milliseconds. Default 30.
	FrameMs int

	// SilenceGapMs is the contiguous trailing silence, in milliseconds,
	// that finalizes an in-progress segment. Default 1250.
	SilenceGapMs int

	// MinSegmentMs is the minimum active duration a segment must reach
	// before it may be finalized. Default 200.
	MinSegmentMs int

	// MaxSegmentMs finalizes an in-progress segment once active duration
	// reaches this length, regardless of silence. Default 30000.
	MaxSegmentMs int
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.FrameMs <= 0 {
		c.FrameMs = 30
	}
	if c.SilenceGapMs <= 0 {
		c.SilenceGapMs = 1250
	}
	if c.MinSegmentMs <= 0 {
		c.MinSegmentMs = 200
	}
	if c.MaxSegmentMs <= 0 {
		c.MaxSegmentMs = 30000
	}
	return c
}

// frameSamples returns samples per VAD frame.
func (c Config) frameSamples() int {
	return c.SampleRate * c.FrameMs / 1000
}

// frameBytes returns bytes per VAD frame (16-bit mono PCM).
func (c Config) frameBytes() int {
	return c.frameSamples() * 2
}

// VoiceSegment is an immutable finalized utterance, ready to ship to the
// inference transport.
type VoiceSegment struct {
	ParticipantID string
	Index         uint32
	StartedTs     float64
	CapturedTs    float64
	DurationMs    uint32
	PCM           []byte
	Prompt        string
}
