package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// errStreamingUnsupported is returned when the ResponseWriter cannot flush.
var errStreamingUnsupported = errors.New("streaming unsupported by connection")

// sseWriter streams JSON events over Server-Sent Events.
type sseWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

// newSSEWriter prepares the connection for SSE and returns a writer.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, errStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	return &sseWriter{w: w, f: f}, nil
}

// send writes one named event with a JSON payload and flushes immediately.
func (s *sseWriter) send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode sse payload: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return fmt.Errorf("write sse event: %w", err)
	}
	s.f.Flush()
	return nil
}
