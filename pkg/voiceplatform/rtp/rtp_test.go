package rtp_test

import (
	"testing"

	voicertp "github.com/MrWong99/glyphoxa/pkg/voiceplatform/rtp"
)

func TestSequenceTracker_FirstPacketIsNotAGap(t *testing.T) {
	tr := voicertp.NewSequenceTracker()
	if gap := tr.Observe(voicertp.Header(100, 0, 1)); gap != 0 {
		t.Errorf("gap = %d, want 0", gap)
	}
}

func TestSequenceTracker_ContiguousIsNotAGap(t *testing.T) {
	tr := voicertp.NewSequenceTracker()
	tr.Observe(voicertp.Header(100, 0, 1))
	if gap := tr.Observe(voicertp.Header(101, 0, 1)); gap != 0 {
		t.Errorf("gap = %d, want 0", gap)
	}
}

func TestSequenceTracker_DetectsGap(t *testing.T) {
	tr := voicertp.NewSequenceTracker()
	tr.Observe(voicertp.Header(100, 0, 1))
	if gap := tr.Observe(voicertp.Header(105, 0, 1)); gap != 4 {
		t.Errorf("gap = %d, want 4", gap)
	}
}

func TestSequenceTracker_TracksPerSSRCIndependently(t *testing.T) {
	tr := voicertp.NewSequenceTracker()
	tr.Observe(voicertp.Header(100, 0, 1))
	tr.Observe(voicertp.Header(500, 0, 2))
	if gap := tr.Observe(voicertp.Header(101, 0, 1)); gap != 0 {
		t.Errorf("ssrc 1 gap = %d, want 0", gap)
	}
	if gap := tr.Observe(voicertp.Header(501, 0, 2)); gap != 0 {
		t.Errorf("ssrc 2 gap = %d, want 0", gap)
	}
}

func TestSequenceTracker_WraparoundIsContiguous(t *testing.T) {
	tr := voicertp.NewSequenceTracker()
	tr.Observe(voicertp.Header(65535, 0, 1))
	if gap := tr.Observe(voicertp.Header(0, 0, 1)); gap != 0 {
		t.Errorf("gap = %d, want 0 across wraparound", gap)
	}
}
