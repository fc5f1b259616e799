package segment_test

import (
	"math"
	"testing"
	"time"

	"github.com/MrWong99/glyphoxa/internal/segment"
)

const testSampleRate = 16000

// ampClassifier is the deterministic test stub described for C3: a
// capability classify(frame) -> {active, inactive} driven by peak amplitude
// rather than any real VAD logic.
type ampClassifier struct {
	threshold int16
	err       error
	errAfter  int
	calls     int
}

func (c *ampClassifier) Classify(frame []byte) (bool, error) {
	c.calls++
	if c.err != nil && c.calls > c.errAfter {
		return false, c.err
	}
	for i := 0; i+1 < len(frame); i += 2 {
		v := int16(uint16(frame[i]) | uint16(frame[i+1])<<8)
		if v > c.threshold || v < -c.threshold {
			return true, nil
		}
	}
	return false, nil
}

func sine(durationMs int, amplitude int16, freqHz float64) []byte {
	n := testSampleRate * durationMs / 1000
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(testSampleRate)
		v := int16(float64(amplitude) * math.Sin(2*math.Pi*freqHz*t))
		out[i*2] = byte(uint16(v))
		out[i*2+1] = byte(uint16(v) >> 8)
	}
	return out
}

func silence(durationMs int) []byte {
	return make([]byte, testSampleRate*durationMs/1000*2)
}

// feedInFrames ingests pcm one VAD frame at a time, mirroring how a capture
// source delivers small real-time chunks rather than one giant buffer.
func feedInFrames(t *testing.T, s *segment.Segmenter, pcm []byte, frameBytes int) {
	t.Helper()
	for off := 0; off < len(pcm); off += frameBytes {
		end := off + frameBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		if err := s.Ingest(pcm[off:end]); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}
}

// flushAfterSilenceGap waits out the default 1250ms silence gap in wall-clock
// time and then calls Flush, driving the wall-clock fallback the background
// ticker would take once the capture source stops delivering audio.
func flushAfterSilenceGap(t *testing.T, s *segment.Segmenter) {
	t.Helper()
	time.Sleep(1300 * time.Millisecond)
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func newTestSegmenter(t *testing.T, classifier segment.Classifier) (*segment.Segmenter, *[]segment.VoiceSegment) {
	t.Helper()
	var got []segment.VoiceSegment
	s := segment.NewSegmenter("participant-a", classifier, segment.Config{}, func(seg segment.VoiceSegment) {
		got = append(got, seg)
	}, segment.WithFlushInterval(0))
	t.Cleanup(func() { _ = s.Close() })
	return s, &got
}

const frameBytes = testSampleRate * 30 / 1000 * 2 // 30ms @ 16kHz, 16-bit mono

func TestSegmenter_PureTone(t *testing.T) {
	s, got := newTestSegmenter(t, &ampClassifier{threshold: 1000})

	feedInFrames(t, s, sine(5000, 10000, 440), frameBytes)
	flushAfterSilenceGap(t, s)

	if len(*got) != 1 {
		t.Fatalf("segments = %d, want 1", len(*got))
	}
	seg := (*got)[0]
	if seg.Index != 0 {
		t.Errorf("index = %d, want 0", seg.Index)
	}
	if seg.DurationMs < 4970 || seg.DurationMs > 5030 {
		t.Errorf("duration = %dms, want ~5000ms", seg.DurationMs)
	}
	if seg.StartedTs > seg.CapturedTs {
		t.Errorf("started_ts %v > captured_ts %v", seg.StartedTs, seg.CapturedTs)
	}
}

func TestSegmenter_TwoUtterancesWithSilence(t *testing.T) {
	s, got := newTestSegmenter(t, &ampClassifier{threshold: 1000})

	pcm := append(sine(1500, 10000, 440), silence(2000)...)
	pcm = append(pcm, sine(1500, 10000, 440)...)
	feedInFrames(t, s, pcm, frameBytes)
	flushAfterSilenceGap(t, s)

	if len(*got) != 2 {
		t.Fatalf("segments = %d, want 2", len(*got))
	}
	for i, seg := range *got {
		if seg.Index != uint32(i) {
			t.Errorf("segment %d: index = %d, want %d", i, seg.Index, i)
		}
		if seg.DurationMs < 1470 || seg.DurationMs > 1530 {
			t.Errorf("segment %d: duration = %dms, want ~1500ms", i, seg.DurationMs)
		}
	}
}

func TestSegmenter_ShortBlip(t *testing.T) {
	s, got := newTestSegmenter(t, &ampClassifier{threshold: 1000})

	pcm := append(sine(100, 10000, 440), silence(2000)...)
	feedInFrames(t, s, pcm, frameBytes)

	if len(*got) != 0 {
		t.Fatalf("segments = %d, want 0 (below min_segment_ms)", len(*got))
	}
}

func TestSegmenter_StitchBack(t *testing.T) {
	s, got := newTestSegmenter(t, &ampClassifier{threshold: 1000})

	pcm := append(sine(1000, 10000, 440), silence(500)...)
	pcm = append(pcm, sine(1000, 10000, 440)...)
	feedInFrames(t, s, pcm, frameBytes)
	flushAfterSilenceGap(t, s)

	if len(*got) != 1 {
		t.Fatalf("segments = %d, want 1", len(*got))
	}
	seg := (*got)[0]
	if seg.DurationMs < 2470 || seg.DurationMs > 2530 {
		t.Errorf("duration = %dms, want ~2500ms", seg.DurationMs)
	}

	// the stitched silence must appear in the PCM between the two sine
	// intervals: byte offset 32000 (1.0s @16kHz*2 bytes) through 48000
	// should be all zero.
	silenceStart := testSampleRate * 1 * 2
	silenceEnd := silenceStart + testSampleRate/2*2
	if silenceEnd > len(seg.PCM) {
		t.Fatalf("pcm too short: %d bytes", len(seg.PCM))
	}
	for i := silenceStart; i < silenceEnd; i++ {
		if seg.PCM[i] != 0 {
			t.Fatalf("expected stitched silence at byte %d, got %d", i, seg.PCM[i])
		}
	}
}

func TestSegmenter_MaxLengthCap(t *testing.T) {
	s, got := newTestSegmenter(t, &ampClassifier{threshold: 1000})

	feedInFrames(t, s, sine(35000, 10000, 440), frameBytes)

	if len(*got) != 1 {
		t.Fatalf("segments = %d, want 1", len(*got))
	}
	seg := (*got)[0]
	if seg.DurationMs < 30000 || seg.DurationMs > 30030 {
		t.Errorf("duration = %dms, want 30000-30030ms (cap + 1 frame overshoot)", seg.DurationMs)
	}
}

func TestSegmenter_IndicesAreContiguousAcrossSegments(t *testing.T) {
	s, got := newTestSegmenter(t, &ampClassifier{threshold: 1000})

	var pcm []byte
	for i := 0; i < 3; i++ {
		pcm = append(pcm, sine(500, 10000, 440)...)
		pcm = append(pcm, silence(1500)...)
	}
	feedInFrames(t, s, pcm, frameBytes)

	if len(*got) != 3 {
		t.Fatalf("segments = %d, want 3", len(*got))
	}
	for i, seg := range *got {
		if seg.Index != uint32(i) {
			t.Errorf("segment %d has index %d", i, seg.Index)
		}
	}
}

func TestSegmenter_ClassifierErrorPropagates(t *testing.T) {
	cl := &ampClassifier{threshold: 1000, err: segment.ErrClosed, errAfter: 2}
	var got []segment.VoiceSegment
	s := segment.NewSegmenter("participant-a", cl, segment.Config{}, func(seg segment.VoiceSegment) {
		got = append(got, seg)
	}, segment.WithFlushInterval(0))
	defer s.Close()

	pcm := sine(500, 10000, 440)
	var lastErr error
	for off := 0; off < len(pcm); off += frameBytes {
		end := off + frameBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		if err := s.Ingest(pcm[off:end]); err != nil {
			lastErr = err
			break
		}
	}
	if lastErr == nil {
		t.Fatal("expected classifier error to propagate from Ingest")
	}
}

func TestSegmenter_CloseIsIdempotent(t *testing.T) {
	s, _ := newTestSegmenter(t, &ampClassifier{threshold: 1000})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestSegmenter_IngestAfterCloseFails(t *testing.T) {
	s, _ := newTestSegmenter(t, &ampClassifier{threshold: 1000})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Ingest(silence(30)); err != segment.ErrClosed {
		t.Fatalf("Ingest after Close: got %v, want ErrClosed", err)
	}
}
