package coordinator

import (
	"strings"
	"sync"
)

const defaultContextWords = 40

// promptContext is a bounded FIFO of whitespace-separated words, fed by
// every transcription and text-channel message seen during a session. It
// is used to prime the next outbound segment's prompt field, giving the
// recognizer recent context (names, jargon) without any summarization.
type promptContext struct {
	mu       sync.Mutex
	capacity int
	words    []string
}

func newPromptContext(capacity int) *promptContext {
	if capacity <= 0 {
		capacity = defaultContextWords
	}
	return &promptContext{capacity: capacity}
}

// Add appends text's words to the rolling window, dropping the oldest
// words once capacity is exceeded.
func (p *promptContext) Add(text string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.words = append(p.words, fields...)
	if over := len(p.words) - p.capacity; over > 0 {
		p.words = p.words[over:]
	}
}

// Snapshot returns the current window as a single space-joined string.
func (p *promptContext) Snapshot() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.Join(p.words, " ")
}
