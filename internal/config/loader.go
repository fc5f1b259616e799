package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	// webrtc_vad_mode is preset to aggressive (2) before decoding rather than
	// in applyDefaults, because 0 is itself a valid mode (normal).
	cfg := &Config{VAD: VADConfig{WebrtcMode: 2}}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills in zero-valued fields with the documented defaults,
// mirroring the component defaults in pkg/vad and internal/segment so a
// minimal config file is usable as-is.
func applyDefaults(cfg *Config) {
	if cfg.VAD.FrameMs <= 0 {
		cfg.VAD.FrameMs = 30
	}
	if cfg.VAD.DBThreshold == 0 {
		cfg.VAD.DBThreshold = -45
	}
	if cfg.Segment.SilenceGapMs <= 0 {
		cfg.Segment.SilenceGapMs = 1250
	}
	if cfg.Segment.MinSegmentMs <= 0 {
		cfg.Segment.MinSegmentMs = 200
	}
	if cfg.Segment.MaxSegmentMs <= 0 {
		cfg.Segment.MaxSegmentMs = 30000
	}
	if cfg.ASR.ContextWords <= 0 {
		cfg.ASR.ContextWords = 40
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogLevelInfo
	}
	if cfg.Server.MetricsAddr == "" {
		cfg.Server.MetricsAddr = ":9090"
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.ASR.ServiceURL == "" {
		errs = append(errs, errors.New("asr.ai_service_url is required"))
	}

	if cfg.Session.DataDir == "" {
		errs = append(errs, errors.New("session.data_dir is required"))
	}

	if cfg.VAD.WebrtcMode < 0 || cfg.VAD.WebrtcMode > 3 {
		errs = append(errs, fmt.Errorf("vad.webrtc_vad_mode %d is out of range [0, 3]", cfg.VAD.WebrtcMode))
	}

	if cfg.Segment.MinSegmentMs > 0 && cfg.Segment.MaxSegmentMs > 0 && cfg.Segment.MinSegmentMs >= cfg.Segment.MaxSegmentMs {
		errs = append(errs, fmt.Errorf("segment.min_segment_ms (%d) must be less than segment.max_segment_ms (%d)", cfg.Segment.MinSegmentMs, cfg.Segment.MaxSegmentMs))
	}

	return errors.Join(errs...)
}
