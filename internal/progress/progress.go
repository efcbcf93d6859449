package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a single line of human-readable transfer status. Events are ordered
// within one operation; no ordering is guaranteed across operations.
type Event struct {
	OpID uuid.UUID
	Text string
	Time time.Time
}

// Sink receives progress events. Implementations must be safe for concurrent
// use, since multiple operations publish to the same sink.
type Sink interface {
	Publish(Event)
}

// Emit formats a message and publishes it on behalf of an operation.
func Emit(s Sink, opID uuid.UUID, format string, v ...interface{}) {
	if s == nil {
		return
	}

	s.Publish(Event{
		OpID: opID,
		Text: fmt.Sprintf(format, v...),
		Time: time.Now(),
	})
}

// WriterSink appends one line per event to an io.Writer.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Publish(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprintln(s.w, e.Text)
}

// MemorySink retains every published event, in publish order.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Publish(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, e)
}

// Events returns a copy of everything published so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Event, len(s.events))
	copy(out, s.events)

	return out
}

// Lines returns the text of every published event, in publish order.
func (s *MemorySink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]string, len(s.events))
	for i, e := range s.events {
		lines[i] = e.Text
	}

	return lines
}
