package asrclient

import "encoding/base64"

// protocolVersion is the only wire protocol version this client speaks.
const protocolVersion = 1

// PCMFormat describes the sample layout of segment PCM carried on the wire.
type PCMFormat struct {
	SampleRate  int `json:"sr"`
	Channels    int `json:"channels"`
	SampleWidth int `json:"sample_width"`
}

// OutboundSegment is the audio.segment message sent to the ASR worker.
type OutboundSegment struct {
	V          int       `json:"v"`
	Type       string    `json:"type"`
	ID         string    `json:"id"`
	Index      uint32    `json:"index"`
	PCMFormat  PCMFormat `json:"pcm_format"`
	StartedTs  float64   `json:"started_ts"`
	CaptureTs  float64   `json:"capture_ts"`
	DataB64    string    `json:"data_b64"`
	Prompt     string    `json:"prompt,omitempty"`
}

// NewOutboundSegment builds the wire message for one finalized segment. pcm
// is mono 16-bit LE PCM; it is base64-encoded into the message.
func NewOutboundSegment(id string, index uint32, sampleRate int, startedTs, captureTs float64, pcm []byte, prompt string) OutboundSegment {
	return OutboundSegment{
		V:    protocolVersion,
		Type: "audio.segment",
		ID:   id,
		Index: index,
		PCMFormat: PCMFormat{
			SampleRate:  sampleRate,
			Channels:    1,
			SampleWidth: 16,
		},
		StartedTs: startedTs,
		CaptureTs: captureTs,
		DataB64:   base64.StdEncoding.EncodeToString(pcm),
		Prompt:    prompt,
	}
}

// inboundEnvelope is parsed first to discriminate message type before
// unmarshaling into the concrete payload.
type inboundEnvelope struct {
	V    int    `json:"v"`
	Type string `json:"type"`
}

// Transcription is the transcription message received from the ASR worker
// for a previously-sent segment.
type Transcription struct {
	V         int     `json:"v"`
	Type      string  `json:"type"`
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	CaptureTs float64 `json:"capture_ts"`
	EndTs     float64 `json:"end_ts"`
}

// WorkerError is the non-fatal error message received from the ASR worker.
type WorkerError struct {
	V       int    `json:"v"`
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
