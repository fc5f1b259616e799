package vad

import "math"

// minRMS avoids taking log10(0); matches spec.md 4.2's 1e-9 floor.
const minRMS = 1e-9

// Gate is the two-stage classifier described in spec.md 4.2: a cheap RMS
// energy prefilter, followed by a stage-2 Engine session consulted only
// when the prefilter passes. One Gate is created per participant; it is
// not safe for concurrent use (the owning segmenter calls it from a single
// goroutine).
type Gate struct {
	cfg     Config
	stage2  SessionHandle
	frameSz int
}

// NewGate creates a Gate backed by a stage-2 session obtained from engine.
// Returns ErrInvalidFrame-wrapping errors unchanged from the engine.
func NewGate(cfg Config, engine Engine) (*Gate, error) {
	if cfg.FrameMs <= 0 {
		cfg.FrameMs = 30
	}
	if cfg.EnergyThresholdDB == 0 {
		cfg.EnergyThresholdDB = -45
	}
	sess, err := engine.NewSession(cfg)
	if err != nil {
		return nil, err
	}
	return &Gate{
		cfg:     cfg,
		stage2:  sess,
		frameSz: cfg.FrameSamples() * 2, // bytes: int16 mono
	}, nil
}

// Classify runs the two-stage pipeline against one frame of little-endian
// 16-bit mono PCM. It returns ErrInvalidFrame if frame's length does not
// match the configured frame size.
func (g *Gate) Classify(frame []byte) (active bool, err error) {
	if len(frame) != g.frameSz {
		return false, ErrInvalidFrame
	}

	if !energyPasses(frame, g.cfg.EnergyThresholdDB) {
		return false, nil
	}

	return g.stage2.IsSpeech(frame)
}

// Close releases the stage-2 session.
func (g *Gate) Close() error {
	return g.stage2.Close()
}

// energyPasses reports whether frame's RMS energy, expressed in dBFS,
// is at or above thresholdDB.
func energyPasses(frame []byte, thresholdDB float64) bool {
	n := len(frame) / 2
	if n == 0 {
		return false
	}

	var sumSq float64
	for i := 0; i < n; i++ {
		sample := int16(uint16(frame[i*2]) | uint16(frame[i*2+1])<<8)
		v := float64(sample) / 32768.0
		sumSq += v * v
	}
	rms := math.Sqrt(sumSq / float64(n))
	if rms < minRMS {
		rms = minRMS
	}
	db := 20 * math.Log10(rms)
	return db >= thresholdDB
}
