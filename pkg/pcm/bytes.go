package pcm

import "encoding/binary"

// ToInt16 decodes little-endian 16-bit signed PCM bytes into samples.
// Trailing odd bytes are dropped.
func ToInt16(b []byte) []int16 {
	n := len(b) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2 : i*2+2]))
	}
	return out
}

// FromInt16 encodes samples as little-endian 16-bit signed PCM bytes.
func FromInt16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(s))
	}
	return out
}

// DurationMs returns the duration, in milliseconds, of n mono samples at
// the given sample rate.
func DurationMs(sampleCount, sampleRate int) int {
	if sampleRate <= 0 {
		return 0
	}
	return sampleCount * 1000 / sampleRate
}
