// Package stream carries orchestrator events to a client transport.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"vibedocs/internal/pipeline"
)

// Sink receives events in order.
type Sink interface {
	Send(ev pipeline.Event) error
}

// ErrIncomplete reports a run whose channel closed before complete.
var ErrIncomplete = errors.New("stream ended before complete")

// Pump forwards events until the channel closes. A failing sink stops the
// pump; the caller cancels the run's context so the orchestrator stops too.
func Pump(events <-chan pipeline.Event, sink Sink) error {
	completed := false
	for ev := range events {
		if err := sink.Send(ev); err != nil {
			return err
		}
		if ev.Type == pipeline.EventComplete {
			completed = true
		}
	}
	if !completed {
		return ErrIncomplete
	}
	return nil
}

// SSE writes `data: <json>\n\n` frames and flushes after each one.
type SSE struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSE sends the event-stream headers. It fails when w cannot flush.
func NewSSE(w http.ResponseWriter) (*SSE, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &SSE{w: w, flusher: flusher}, nil
}

func (s *SSE) Send(ev pipeline.Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", raw); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Func adapts a function to Sink.
type Func func(pipeline.Event) error

func (f Func) Send(ev pipeline.Event) error { return f(ev) }
