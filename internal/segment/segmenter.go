package segment

import (
	"sync"
	"time"
)

// Clock returns the current wall-clock time as Unix epoch seconds. The
// segmenter uses it only to stamp StartedTs (and from it CapturedTs) of each
// segment. Tests may inject a deterministic clock; production code uses
// defaultClock.
type Clock func() float64

func defaultClock() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// Option configures a Segmenter at construction time.
type Option func(*Segmenter)

// WithClock overrides the clock used for segment timestamps. The silence
// measured by Flush's wall-clock fallback always uses time.Now, not this clock.
func WithClock(c Clock) Option {
	return func(s *Segmenter) { s.clock = c }
}

// WithFlushInterval overrides the background flush ticker period. Zero
// disables the background flusher (tests that drive flushes explicitly via
// Ingest typically want this).
func WithFlushInterval(d time.Duration) Option {
	return func(s *Segmenter) { s.flushInterval = d }
}

// Segmenter accumulates one participant's PCM stream into VoiceSegments.
// Ingest and the background flusher may run on different goroutines; a
// mutex serializes access to the buffering state. Flush uses a non-blocking
// TryLock so an overlapping background tick is coalesced rather than queued.
type Segmenter struct {
	participantID string
	classifier    Classifier
	cfg           Config
	onSegment     func(VoiceSegment)
	clock         Clock
	flushInterval time.Duration

	mu sync.Mutex

	carry          []byte
	inSpeech       bool
	frames         []byte
	pendingSilence []byte
	startedTs      float64
	silenceSamples int
	activeSamples  int
	lastFrameWall  time.Time
	nextIndex      uint32

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewSegmenter creates a Segmenter for one participant. onSegment is invoked
// synchronously from within Ingest or the background flusher whenever a
// segment finalizes; it must not block and must not call back into this
// Segmenter.
func NewSegmenter(participantID string, classifier Classifier, cfg Config, onSegment func(VoiceSegment), opts ...Option) *Segmenter {
	s := &Segmenter{
		participantID: participantID,
		classifier:    classifier,
		cfg:           cfg.withDefaults(),
		onSegment:     onSegment,
		clock:         defaultClock,
		flushInterval: time.Second,
		done:          make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.flushInterval > 0 {
		s.wg.Add(1)
		go s.tickerLoop()
	}
	return s
}

func (s *Segmenter) tickerLoop() {
	defer s.wg.Done()
	t := time.NewTicker(s.flushInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			_ = s.Flush()
		case <-s.done:
			return
		}
	}
}

// Ingest appends raw mono 16 kHz 16-bit LE PCM to the segmenter's buffer and
// immediately attempts to process whatever whole frames are now available.
// Audio is never dropped here; Ingest blocks briefly if a background flush
// is in progress.
func (s *Segmenter) Ingest(pcm []byte) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}

	s.mu.Lock()
	s.carry = append(s.carry, pcm...)
	seg, err := s.processLocked()
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if seg != nil {
		s.onSegment(*seg)
	}
	return nil
}

// Flush re-evaluates the silence/length rules against currently buffered
// frames without requiring new audio; it drives the wall-clock fallback
// path used by the background ticker. A Flush already in progress (on
// another goroutine) causes this call to return immediately without doing
// any work — overlapping flushes are coalesced, not queued.
func (s *Segmenter) Flush() error {
	if !s.mu.TryLock() {
		return nil
	}
	seg, err := s.processLocked()
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if seg != nil {
		s.onSegment(*seg)
	}
	return nil
}

// Close stops the background flusher. It does not flush pending audio.
func (s *Segmenter) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	s.wg.Wait()
	return nil
}

// processLocked runs one flush pass: frame whatever is in s.carry, classify
// each whole frame, update segment state, and finalize if the resulting
// state crosses the silence-gap or max-length threshold. Caller must hold
// s.mu.
func (s *Segmenter) processLocked() (*VoiceSegment, error) {
	frameSz := s.cfg.frameBytes()
	frameSamples := s.cfg.frameSamples()

	n := len(s.carry) / frameSz
	processed := n * frameSz

	for i := 0; i < n; i++ {
		frame := s.carry[i*frameSz : (i+1)*frameSz]
		active, err := s.classifier.Classify(frame)
		if err != nil {
			return nil, err
		}

		switch {
		case active && !s.inSpeech:
			s.inSpeech = true
			s.startedTs = s.clock()
			s.frames = append(s.frames[:0:0], frame...)
			s.pendingSilence = s.pendingSilence[:0]
			s.silenceSamples = 0
			s.activeSamples = frameSamples
		case active && s.inSpeech:
			if len(s.pendingSilence) > 0 {
				s.frames = append(s.frames, s.pendingSilence...)
				s.pendingSilence = s.pendingSilence[:0]
			}
			s.frames = append(s.frames, frame...)
			s.silenceSamples = 0
			s.activeSamples += frameSamples
		case !active && s.inSpeech:
			s.pendingSilence = append(s.pendingSilence, frame...)
			s.silenceSamples += frameSamples
		default:
			// inactive, not in speech: drop.
		}

		s.lastFrameWall = time.Now()
	}

	s.carry = append([]byte(nil), s.carry[processed:]...)

	if !s.inSpeech {
		return nil, nil
	}

	var silentMs int
	if n > 0 {
		silentMs = s.silenceSamples * 1000 / s.cfg.SampleRate
	} else if !s.lastFrameWall.IsZero() {
		silentMs = int(time.Since(s.lastFrameWall).Milliseconds())
	}
	durMs := s.activeSamples * 1000 / s.cfg.SampleRate

	if durMs < s.cfg.MinSegmentMs {
		return nil, nil
	}
	if silentMs >= s.cfg.SilenceGapMs || durMs >= s.cfg.MaxSegmentMs {
		return s.finalizeLocked(), nil
	}
	return nil, nil
}

// finalizeLocked trims trailing un-stitched silence (already excluded from
// s.frames), emits a VoiceSegment, and resets speech state. carry and
// nextIndex survive the reset. Caller must hold s.mu.
func (s *Segmenter) finalizeLocked() *VoiceSegment {
	trimmedSamples := len(s.frames) / 2
	durationMs := trimmedSamples * 1000 / s.cfg.SampleRate

	seg := &VoiceSegment{
		ParticipantID: s.participantID,
		Index:         s.nextIndex,
		StartedTs:     s.startedTs,
		CapturedTs:    s.startedTs + float64(trimmedSamples)/float64(s.cfg.SampleRate),
		DurationMs:    uint32(durationMs),
		PCM:           s.frames,
	}
	s.nextIndex++

	s.inSpeech = false
	s.frames = nil
	s.pendingSilence = nil
	s.silenceSamples = 0
	s.activeSamples = 0
	s.startedTs = 0

	return seg
}
