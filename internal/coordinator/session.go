// Package coordinator owns the wiring between the audio pipeline (C1-C3),
// the inference transport (C4), and the session log (C5): one Session per
// active voice session, binding per-participant segmenters to a shared
// rolling prompt context and display-name cache.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/glyphoxa/internal/asrclient"
	"github.com/MrWong99/glyphoxa/internal/displayname"
	"github.com/MrWong99/glyphoxa/internal/observe"
	"github.com/MrWong99/glyphoxa/internal/sessionlog"
	"github.com/MrWong99/glyphoxa/internal/segment"
	"github.com/MrWong99/glyphoxa/pkg/pcm"
	"github.com/MrWong99/glyphoxa/pkg/vad"
	"github.com/MrWong99/glyphoxa/pkg/voiceplatform"
)

// Compile-time assertion that Session satisfies the capture-source push
// interface.
var _ voiceplatform.Sink = (*Session)(nil)

// ErrAlreadyActive is returned by Start when the Session has already been
// started.
var ErrAlreadyActive = errors.New("coordinator: session already active")

// ErrNotActive is returned by operations that require a started Session.
var ErrNotActive = errors.New("coordinator: session not active")

const inputSampleRate = 48000

// Config holds the tunables a Session needs beyond its collaborators.
type Config struct {
	// DataDir is the parent directory under which this session's log.jsonl
	// is written: DataDir/SessionName/log.jsonl.
	DataDir string

	// SessionName identifies this session on disk.
	SessionName string

	// GuildID scopes display-name cache lookups.
	GuildID string

	// BasePrompt is prefixed to the rolling context window when composing
	// a segment's prompt. Corresponds to configuration's asr_prompt.
	BasePrompt string

	// ContextWords bounds the rolling prompt context FIFO. Corresponds to
	// configuration's asr_context_words. Default 40.
	ContextWords int

	VAD     vad.Config
	Segment segment.Config
}

// Session binds C1-C5 for one active voice session. Exactly one Session
// instance corresponds to one spec.md "session start()"/"stop()" pair.
type Session struct {
	cfg       Config
	engine    vad.Engine
	transport asrclient.Transport
	resolver  *displayname.Resolver
	metrics   *observe.Metrics
	promptCtx *promptContext

	mu         sync.Mutex
	active     bool
	logWriter  *sessionlog.Writer
	segmenters map[string]*segment.Segmenter

	ctx       context.Context
	cancel    context.CancelFunc
	fatalOnce sync.Once
}

// New creates a Session. engine backs every participant's C2 stage-2
// classifier; transport is the C4 client; resolver may be nil, in which
// case display names always fall back to the raw participant id. metrics
// may be nil, in which case observations are skipped.
func New(cfg Config, engine vad.Engine, transport asrclient.Transport, resolver *displayname.Resolver, metrics *observe.Metrics) *Session {
	if cfg.VAD.SampleRate <= 0 {
		cfg.VAD.SampleRate = pcm.Canonical.SampleRate
	}
	// The segmenter frames audio at the same rate/duration the VAD gate
	// classifies at; deriving one from the other keeps them from silently
	// drifting out of sync.
	cfg.Segment.SampleRate = cfg.VAD.SampleRate
	cfg.Segment.FrameMs = cfg.VAD.FrameMs

	return &Session{
		cfg:        cfg,
		engine:     engine,
		transport:  transport,
		resolver:   resolver,
		metrics:    metrics,
		promptCtx:  newPromptContext(cfg.ContextWords),
		segmenters: make(map[string]*segment.Segmenter),
	}
}

// Start opens the session log and starts the inference transport.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return ErrAlreadyActive
	}

	path := filepath.Join(s.cfg.DataDir, s.cfg.SessionName, "log.jsonl")
	w, err := sessionlog.OpenWriter(path)
	if err != nil {
		return fmt.Errorf("coordinator: open session log: %w", err)
	}

	sessCtx, cancel := context.WithCancel(ctx)
	s.ctx = sessCtx
	s.cancel = cancel

	s.transport.Start(sessCtx)
	s.logWriter = w
	s.active = true

	slog.Info("coordinator: session started", "session", s.cfg.SessionName, "log_path", path)
	return nil
}

// Done returns a channel that closes when the session aborts: either its
// parent context was canceled, or a session log write failed. The session
// log is a consistency boundary, so the first write failure is fatal —
// callers select on Done alongside their own shutdown signal and treat its
// closure as a reason to tear the process down rather than continue running
// with a log that is silently dropping entries.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		return nil
	}
	return ctx.Done()
}

// Stop closes the inference transport and the session log, per spec.md
// §4.6 ("closes C4 and C5"). Any in-flight sends are dropped. Every
// participant segmenter's background flusher is stopped.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return ErrNotActive
	}

	var eg errgroup.Group
	for id, seg := range s.segmenters {
		id, seg := id, seg
		eg.Go(func() error {
			if err := seg.Close(); err != nil {
				slog.Warn("coordinator: segmenter close error", "participant_id", id, "error", err)
			}
			return nil
		})
	}
	_ = eg.Wait()
	s.segmenters = make(map[string]*segment.Segmenter)

	var stopErr error
	if err := s.transport.Close(); err != nil {
		slog.Warn("coordinator: transport close error", "session", s.cfg.SessionName, "error", err)
		stopErr = err
	}
	if err := s.logWriter.Close(); err != nil {
		slog.Warn("coordinator: log writer close error", "session", s.cfg.SessionName, "error", err)
		stopErr = err
	}

	if s.cancel != nil {
		s.cancel()
	}
	s.active = false
	s.logWriter = nil
	s.ctx = nil
	s.cancel = nil
	s.fatalOnce = sync.Once{}

	slog.Info("coordinator: session stopped", "session", s.cfg.SessionName)
	return stopErr
}

// IngestStereo48 hands 48 kHz interleaved stereo PCM off to C1 (downmix +
// resample) and then C3 (the participant's segmenter), creating the
// segmenter lazily on first audio from this participant. It also fires an
// asynchronous display-name resolution for participantID; resolution
// failures never block or fail ingestion.
func (s *Session) IngestStereo48(ctx context.Context, participantID string, stereo48 []byte) error {
	seg, err := s.segmenterFor(participantID)
	if err != nil {
		return err
	}

	samples := pcm.ToInt16(stereo48)
	mono, err := pcm.Downmix(samples, 2)
	if err != nil {
		return fmt.Errorf("coordinator: downmix: %w", err)
	}
	resampled := pcm.Resample(mono, inputSampleRate, s.cfg.VAD.SampleRate)

	if s.resolver != nil {
		s.resolver.ResolveAsync(ctx, s.cfg.GuildID, participantID)
	}

	return seg.Ingest(pcm.FromInt16(resampled))
}

// FlushAll re-evaluates every active participant's segmenter immediately.
// Idempotent: safe to call when no segmenter has buffered audio, and safe
// to call concurrently with ingestion.
func (s *Session) FlushAll() {
	s.mu.Lock()
	segmenters := make([]*segment.Segmenter, 0, len(s.segmenters))
	for _, seg := range s.segmenters {
		segmenters = append(segmenters, seg)
	}
	s.mu.Unlock()

	var eg errgroup.Group
	for _, seg := range segmenters {
		seg := seg
		eg.Go(func() error {
			if err := seg.Flush(); err != nil {
				slog.Warn("coordinator: flush error", "error", err)
			}
			return nil
		})
	}
	_ = eg.Wait()
}

// OnTranscription resolves the participant's display name from cache
// (falling back to the raw id), appends a voice-origin log entry, and
// feeds the transcription text into the rolling prompt context.
func (s *Session) OnTranscription(t asrclient.Transcription) {
	name := t.ID
	if s.resolver != nil {
		if cached, ok := s.resolver.Cached(s.cfg.GuildID, t.ID); ok {
			name = cached
		}
	}

	s.appendLog(sessionlog.Entry{
		UserID:      t.ID,
		DisplayName: name,
		StartTs:     t.CaptureTs,
		EndTs:       t.EndTs,
		Origin:      sessionlog.OriginVoice,
		Text:        t.Text,
	})
	s.promptCtx.Add(t.Text)
}

// OnWorkerError logs a non-fatal error message from the ASR worker. It
// does not touch the session log or the rolling prompt context.
func (s *Session) OnWorkerError(e asrclient.WorkerError) {
	slog.Warn("coordinator: worker error", "code", e.Code, "message", e.Message, "details", e.Details)
	if s.metrics != nil {
		s.metrics.RecordWorkerError(context.Background(), e.Code)
	}
}

// LogText appends a text-origin log entry for a chat message and feeds its
// text into the rolling prompt context.
func (s *Session) LogText(userID, displayName string, createdTs float64, text string) {
	s.appendLog(sessionlog.Entry{
		UserID:      userID,
		DisplayName: displayName,
		StartTs:     createdTs,
		EndTs:       createdTs,
		Origin:      sessionlog.OriginText,
		Text:        text,
	})
	s.promptCtx.Add(text)
}

// PromptForNextSegment composes the configured base prompt with the
// current rolling context window.
func (s *Session) PromptForNextSegment() string {
	window := s.promptCtx.Snapshot()
	switch {
	case s.cfg.BasePrompt == "":
		return window
	case window == "":
		return s.cfg.BasePrompt
	default:
		return s.cfg.BasePrompt + " " + window
	}
}

// appendLog writes e to the session log. A write failure is fatal per
// spec: the session log is a consistency boundary and silent truncation is
// unacceptable, so the first failure cancels the session context instead of
// letting the caller continue as if nothing happened. sessionlog.Writer
// poisons itself after one failure and returns the same cached error on
// every later call, so without this the session would keep running while
// silently dropping every subsequent entry.
func (s *Session) appendLog(e sessionlog.Entry) {
	s.mu.Lock()
	w := s.logWriter
	cancel := s.cancel
	s.mu.Unlock()

	if w == nil {
		slog.Warn("coordinator: dropping log entry, session not active", "user_id", e.UserID)
		return
	}
	err := w.Append(e)
	if err != nil {
		slog.Error("coordinator: session log write failed, aborting session", "session", s.cfg.SessionName, "error", err)
		s.fatalOnce.Do(func() {
			if cancel != nil {
				cancel()
			}
		})
	}
	if s.metrics != nil {
		s.metrics.RecordLogWrite(context.Background(), err == nil)
	}
}

// segmenterFor returns the existing segmenter for participantID, creating
// one on first use. The new segmenter's onSegment callback snapshots the
// current prompt and enqueues the finalized segment on the transport.
func (s *Session) segmenterFor(participantID string) (*segment.Segmenter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return nil, ErrNotActive
	}
	if seg, ok := s.segmenters[participantID]; ok {
		return seg, nil
	}

	gate, err := vad.NewGate(s.cfg.VAD, s.engine)
	if err != nil {
		return nil, fmt.Errorf("coordinator: new vad gate for %s: %w", participantID, err)
	}

	seg := segment.NewSegmenter(participantID, gate, s.cfg.Segment, func(vs segment.VoiceSegment) {
		prompt := s.PromptForNextSegment()
		out := asrclient.NewOutboundSegment(vs.ParticipantID, vs.Index, s.cfg.Segment.SampleRate, vs.StartedTs, vs.CapturedTs, vs.PCM, prompt)
		s.transport.SendSegment(out)
		if s.metrics != nil {
			s.metrics.RecordSegmentEmitted(context.Background(), vs.ParticipantID, float64(vs.DurationMs)/1000)
		}
	})
	s.segmenters[participantID] = seg
	return seg, nil
}
