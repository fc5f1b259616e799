package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/glyphoxa/internal/config"
)

const validYAML = `
server:
  log_level: info
session:
  data_dir: /var/lib/transcribe/sessions
vad:
  vad_db_threshold: -45
  vad_frame_ms: 30
  webrtc_vad_mode: 2
segment:
  silence_gap_ms: 1250
  min_segment_ms: 200
  max_segment_ms: 30000
asr:
  ai_service_url: "wss://asr.internal/v1/stream"
  asr_prompt: "Transcribe the following tabletop session audio."
  asr_context_words: 40
`

func TestLoadFromReader_ValidConfig(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.LogLevel != config.LogLevelInfo {
		t.Errorf("LogLevel = %q, want info", cfg.Server.LogLevel)
	}
	if cfg.ASR.ServiceURL != "wss://asr.internal/v1/stream" {
		t.Errorf("ServiceURL = %q", cfg.ASR.ServiceURL)
	}
	if cfg.VAD.WebrtcMode != 2 {
		t.Errorf("WebrtcMode = %d, want 2", cfg.VAD.WebrtcMode)
	}
}

func TestLoadFromReader_AppliesDefaults(t *testing.T) {
	t.Parallel()
	minimal := `
session:
  data_dir: /tmp/sessions
asr:
  ai_service_url: "wss://asr.internal/v1/stream"
`
	cfg, err := config.LoadFromReader(strings.NewReader(minimal))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.LogLevel != config.LogLevelInfo {
		t.Errorf("default LogLevel = %q, want info", cfg.Server.LogLevel)
	}
	if cfg.VAD.FrameMs != 30 {
		t.Errorf("default VAD.FrameMs = %d, want 30", cfg.VAD.FrameMs)
	}
	if cfg.Segment.MaxSegmentMs != 30000 {
		t.Errorf("default Segment.MaxSegmentMs = %d, want 30000", cfg.Segment.MaxSegmentMs)
	}
	if cfg.ASR.ContextWords != 40 {
		t.Errorf("default ASR.ContextWords = %d, want 40", cfg.ASR.ContextWords)
	}
}

func TestLoadFromReader_RejectsUnknownFields(t *testing.T) {
	t.Parallel()
	bad := `
session:
  data_dir: /tmp/sessions
asr:
  ai_service_url: "wss://asr.internal"
typo_field: true
`
	_, err := config.LoadFromReader(strings.NewReader(bad))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestLoadFromReader_MissingServiceURL(t *testing.T) {
	t.Parallel()
	bad := `
session:
  data_dir: /tmp/sessions
`
	_, err := config.LoadFromReader(strings.NewReader(bad))
	if err == nil {
		t.Fatal("expected error for missing asr.ai_service_url, got nil")
	}
	if !strings.Contains(err.Error(), "ai_service_url") {
		t.Errorf("error should mention ai_service_url, got: %v", err)
	}
}

func TestLoadFromReader_MissingDataDir(t *testing.T) {
	t.Parallel()
	bad := `
asr:
  ai_service_url: "wss://asr.internal"
`
	_, err := config.LoadFromReader(strings.NewReader(bad))
	if err == nil {
		t.Fatal("expected error for missing session.data_dir, got nil")
	}
}

func TestLoadFromReader_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	bad := `
server:
  log_level: verbose
session:
  data_dir: /tmp/sessions
asr:
  ai_service_url: "wss://asr.internal"
`
	_, err := config.LoadFromReader(strings.NewReader(bad))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
}

func TestLoadFromReader_WebrtcModeOutOfRange(t *testing.T) {
	t.Parallel()
	bad := `
session:
  data_dir: /tmp/sessions
asr:
  ai_service_url: "wss://asr.internal"
vad:
  webrtc_vad_mode: 7
`
	_, err := config.LoadFromReader(strings.NewReader(bad))
	if err == nil {
		t.Fatal("expected error for out-of-range webrtc_vad_mode, got nil")
	}
}

func TestLoadFromReader_MinSegmentNotLessThanMax(t *testing.T) {
	t.Parallel()
	bad := `
session:
  data_dir: /tmp/sessions
asr:
  ai_service_url: "wss://asr.internal"
segment:
  min_segment_ms: 30000
  max_segment_ms: 1000
`
	_, err := config.LoadFromReader(strings.NewReader(bad))
	if err == nil {
		t.Fatal("expected error for min_segment_ms >= max_segment_ms, got nil")
	}
}

func TestLoadFromReader_AggregatesMultipleErrors(t *testing.T) {
	t.Parallel()
	bad := `
server:
  log_level: verbose
vad:
  webrtc_vad_mode: 9
`
	_, err := config.LoadFromReader(strings.NewReader(bad))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	msg := err.Error()
	for _, want := range []string{"log_level", "webrtc_vad_mode", "ai_service_url", "data_dir"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected aggregated error to mention %q, got: %v", want, msg)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load("/nonexistent/path/to/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
