// Package mock provides a test double for asrclient.Transport.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/glyphoxa/internal/asrclient"
)

// Transport is a mock implementation of asrclient.Transport. It records every
// segment passed to SendSegment and lets tests inject inbound messages by
// calling DeliverTranscription / DeliverWorkerError directly.
type Transport struct {
	mu sync.Mutex

	Started bool
	Closed  bool
	Sent    []asrclient.OutboundSegment

	OnTranscription asrclient.TranscriptionHandler
	OnWorkerError   asrclient.WorkerErrorHandler
}

func (t *Transport) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Started = true
}

func (t *Transport) SendSegment(seg asrclient.OutboundSegment) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Sent = append(t.Sent, seg)
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Closed = true
	return nil
}

// DeliverTranscription simulates an inbound transcription message, as the
// real Client would dispatch it from its read loop.
func (t *Transport) DeliverTranscription(tr asrclient.Transcription) {
	t.mu.Lock()
	h := t.OnTranscription
	t.mu.Unlock()
	if h != nil {
		h(tr)
	}
}

// DeliverWorkerError simulates an inbound error message.
func (t *Transport) DeliverWorkerError(e asrclient.WorkerError) {
	t.mu.Lock()
	h := t.OnWorkerError
	t.mu.Unlock()
	if h != nil {
		h(e)
	}
}

// SentSegments returns a snapshot of everything passed to SendSegment.
func (t *Transport) SentSegments() []asrclient.OutboundSegment {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]asrclient.OutboundSegment, len(t.Sent))
	copy(out, t.Sent)
	return out
}

var _ asrclient.Transport = (*Transport)(nil)
