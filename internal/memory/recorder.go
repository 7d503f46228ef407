// internal/memory/recorder.go
package memory

import (
	"strings"
	"sync"
)

// Recorder captures decoded characters for a message slot. It is used as an
// engine sink and stops accepting input once the slot is full.
type Recorder struct {
	mu   sync.Mutex
	buf  []byte
	done chan struct{}
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		buf:  make([]byte, 0, MaxMessageLength),
		done: make(chan struct{}),
	}
}

// Consume appends c. Leading spaces are skipped.
func (r *Recorder) Consume(c byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.buf) == MaxMessageLength {
		return
	}
	if c == ' ' && len(r.buf) == 0 {
		return
	}
	r.buf = append(r.buf, c)
	if len(r.buf) == MaxMessageLength {
		close(r.done)
	}
}

// Done is closed when the recorder is full.
func (r *Recorder) Done() <-chan struct{} {
	return r.done
}

// Len returns the number of characters recorded.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}

// Text returns the recording without the trailing word space.
func (r *Recorder) Text() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.TrimRight(string(r.buf), " ")
}
