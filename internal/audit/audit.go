package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Event is the canonical audit record for session and navigation activity.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Role      string            `json:"role,omitempty"`
	Route     string            `json:"route,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives session and navigation events from the [Dispatcher]
// worker. Implementations must be safe for use from that goroutine while
// the caller reads their output.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink discards every event. It backs a store built without an audit
// sink, so emitting never needs a nil check.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink hands events to an in-process consumer, typically a test or
// a UI panel listing recent logins and denied navigations.
type ChannelSink struct {
	events chan Event
}

// NewChannelSink returns a sink whose channel holds up to buffer events
// (at least one).
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{events: make(chan Event, max(buffer, 1))}
}

// Emit waits for room in the channel; a cancelled ctx drops the event. The
// dispatcher owns backpressure, so waiting here only stalls its worker.
func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events is the receive side, in emission order.
func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink appends one JSON object per line to w, the format the CLI
// prints when auditing is enabled. Each event is a single Write call, so
// lines from concurrent writers never interleave.
type JSONWriterSink struct {
	mu  sync.Mutex
	w   io.Writer
	buf bytes.Buffer
	err error
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{w: w}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.w == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf.Reset()
	if err := json.NewEncoder(&s.buf).Encode(event); err != nil {
		s.recordErr(err)
		return
	}
	if _, err := s.w.Write(s.buf.Bytes()); err != nil {
		s.recordErr(err)
	}
}

// Err returns the first encode or write failure, or nil. Emit keeps going
// after a failure; later lines may still land.
func (s *JSONWriterSink) Err() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *JSONWriterSink) recordErr(err error) {
	if s.err == nil {
		s.err = err
	}
}
