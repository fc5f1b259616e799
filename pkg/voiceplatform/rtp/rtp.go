// Package rtp provides a thin sequence-tracking helper on top of
// pion/rtp's header type, used by capture-source adapters (e.g.
// voiceplatform/discord) to detect dropped packets ahead of Opus
// decode.
package rtp

import "github.com/pion/rtp"

// SequenceTracker detects gaps in an RTP sequence-number stream, keyed by
// SSRC. It does not reorder or buffer packets; it only reports whether the
// most recently observed sequence number was contiguous with the previous
// one for that SSRC.
type SequenceTracker struct {
	last map[uint32]uint16
	seen map[uint32]bool
}

// NewSequenceTracker returns an empty tracker.
func NewSequenceTracker() *SequenceTracker {
	return &SequenceTracker{
		last: make(map[uint32]uint16),
		seen: make(map[uint32]bool),
	}
}

// Observe records hdr's sequence number for hdr.SSRC and reports how many
// packets were skipped since the previous observation for that SSRC (0 for
// the first packet on an SSRC, or for two contiguous sequence numbers).
// Sequence-number wraparound at 65535 is treated as contiguous.
func (t *SequenceTracker) Observe(hdr rtp.Header) (gap uint16) {
	prev, ok := t.last[hdr.SSRC]
	t.last[hdr.SSRC] = hdr.SequenceNumber
	if !ok {
		t.seen[hdr.SSRC] = true
		return 0
	}
	return hdr.SequenceNumber - prev - 1
}

// Header builds an rtp.Header from the fields discordgo's pre-parsed voice
// packets expose. discordgo does not hand callers the raw RTP bytes to
// re-parse with rtp.Packet.Unmarshal, so adapters construct the header
// directly from the fields they do get.
func Header(sequence uint16, timestamp uint32, ssrc uint32) rtp.Header {
	return rtp.Header{
		SequenceNumber: sequence,
		Timestamp:      timestamp,
		SSRC:           ssrc,
	}
}
