// Package pcm provides sample-rate and channel conversion for raw 16-bit
// signed little-endian PCM audio.
//
// It normalises the stereo 48 kHz audio the capture source delivers into the
// mono 16 kHz format the voice activity detector and recognizer expect.
// Conversion is pure and allocation-only; there is no per-stream state.
package pcm

import "math"

// Format describes the sample rate and channel count of a PCM buffer.
type Format struct {
	SampleRate int
	Channels   int
}

// Canonical is the internal format all segments are normalised to before
// being handed to the VAD gate and the inference transport.
var Canonical = Format{SampleRate: 16000, Channels: 1}

// Downmix averages interleaved stereo samples into mono with saturating
// clamp to the int16 range. For channels == 1 the input is returned
// unchanged (identity). Any other channel count is a fatal configuration
// error reported via ErrUnsupportedChannels.
func Downmix(samples []int16, channels int) ([]int16, error) {
	switch channels {
	case 1:
		return samples, nil
	case 2:
		out := make([]int16, len(samples)/2)
		for i := range out {
			l := int32(samples[i*2])
			r := int32(samples[i*2+1])
			out[i] = clampInt16((l + r) / 2)
		}
		return out, nil
	default:
		return nil, ErrUnsupportedChannels
	}
}

// Resample performs linear interpolation from fromHz to toHz. The output
// length is round(len(samples) * toHz / fromHz), minimum 1 (unless the
// input is empty, in which case the output is empty). If fromHz == toHz
// the input is returned unchanged.
func Resample(samples []int16, fromHz, toHz int) []int16 {
	if fromHz == toHz || len(samples) == 0 {
		return samples
	}

	n := len(samples)
	dstLen := int(math.Round(float64(n) * float64(toHz) / float64(fromHz)))
	if dstLen < 1 {
		dstLen = 1
	}

	out := make([]int16, dstLen)
	ratioInv := float64(fromHz) / float64(toHz)

	for i := 0; i < dstLen; i++ {
		s := float64(i) * ratioInv
		i0 := int(math.Floor(s))
		if i0 >= n {
			i0 = n - 1
		}
		i1 := i0 + 1
		if i1 >= n {
			i1 = n - 1
		}
		t := s - float64(i0)

		interp := float64(samples[i0])*(1-t) + float64(samples[i1])*t
		out[i] = clampInt16(int32(math.Round(interp)))
	}
	return out
}

// clampInt16 saturates v to the signed 16-bit range.
func clampInt16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
