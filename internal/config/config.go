// Package config provides the configuration schema, loader, and hot-reload
// watcher for the transcription pipeline.
package config

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Session SessionConfig `yaml:"session"`
	VAD     VADConfig     `yaml:"vad"`
	Segment SegmentConfig `yaml:"segment"`
	ASR     ASRConfig     `yaml:"asr"`
}

// ServerConfig holds process-wide settings.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the listen address for the Prometheus /metrics and
	// /healthz HTTP endpoints. Default ":9090".
	MetricsAddr string `yaml:"metrics_addr"`
}

// LogLevel is a validated log verbosity name.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IsValid reports whether l is one of the recognized log levels.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	default:
		return false
	}
}

// SessionConfig holds session-scoped on-disk settings.
type SessionConfig struct {
	// DataDir is the parent directory under which each session's
	// <session_name>/log.jsonl is written.
	DataDir string `yaml:"data_dir"`
}

// VADConfig configures the two-stage voice activity classifier (C2).
type VADConfig struct {
	// DBThreshold is the stage-1 RMS energy prefilter threshold in dBFS.
	DBThreshold float64 `yaml:"vad_db_threshold"`

	// FrameMs is the VAD frame duration in milliseconds.
	FrameMs int `yaml:"vad_frame_ms"`

	// WebrtcMode selects the stage-2 classifier's aggressiveness
	// (0=normal, 1=low-bitrate, 2=aggressive, 3=very-aggressive).
	WebrtcMode int `yaml:"webrtc_vad_mode"`
}

// SegmentConfig configures the per-participant segmenter (C3).
type SegmentConfig struct {
	// SilenceGapMs is the contiguous trailing silence that finalizes an
	// in-progress segment.
	SilenceGapMs int `yaml:"silence_gap_ms"`

	// MinSegmentMs is the minimum active duration a segment must reach
	// before it may be finalized.
	MinSegmentMs int `yaml:"min_segment_ms"`

	// MaxSegmentMs finalizes an in-progress segment once active duration
	// reaches this length, regardless of silence.
	MaxSegmentMs int `yaml:"max_segment_ms"`
}

// ASRConfig configures the inference transport (C4) and the rolling
// prompt context fed to it.
type ASRConfig struct {
	// ServiceURL is the ASR worker's WebSocket endpoint.
	ServiceURL string `yaml:"ai_service_url"`

	// Prompt is the base prompt prefixed to the rolling context window.
	Prompt string `yaml:"asr_prompt"`

	// ContextWords bounds the rolling prompt context FIFO.
	ContextWords int `yaml:"asr_context_words"`
}
