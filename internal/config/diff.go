package config

// ConfigDiff describes what changed between two configs: log level, ASR
// service URL, prompt and context window, and VAD/segment thresholds.
// cmd/transcribed applies only a log-level change live; every other change is
// logged, and a running [coordinator.Session] keeps the values it was created
// with until the process restarts.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	ServiceURLChanged bool
	NewServiceURL     string

	PromptChanged      bool
	NewPrompt          string
	ContextWordsChanged bool
	NewContextWords     int

	VADChanged     bool
	NewVAD         VADConfig
	SegmentChanged bool
	NewSegment     SegmentConfig
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.ASR.ServiceURL != new.ASR.ServiceURL {
		d.ServiceURLChanged = true
		d.NewServiceURL = new.ASR.ServiceURL
	}

	if old.ASR.Prompt != new.ASR.Prompt {
		d.PromptChanged = true
		d.NewPrompt = new.ASR.Prompt
	}

	if old.ASR.ContextWords != new.ASR.ContextWords {
		d.ContextWordsChanged = true
		d.NewContextWords = new.ASR.ContextWords
	}

	if old.VAD != new.VAD {
		d.VADChanged = true
		d.NewVAD = new.VAD
	}

	if old.Segment != new.Segment {
		d.SegmentChanged = true
		d.NewSegment = new.Segment
	}

	return d
}
