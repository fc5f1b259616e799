package pcm

import "errors"

// ErrUnsupportedChannels is returned by Downmix when the channel count is
// neither 1 (mono, identity) nor 2 (stereo). It is a fatal configuration
// error: the caller should abort the session rather than retry.
var ErrUnsupportedChannels = errors.New("pcm: unsupported channel count")
