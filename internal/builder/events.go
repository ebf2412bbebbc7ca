package builder

import (
	"github.com/google/uuid"

	"github.com/locaith-ai/studio/internal/project"
)

// EventKind identifies a pipeline event.
type EventKind string

const (
	// EventMessage announces a newly appended conversation message.
	EventMessage EventKind = "message"
	// EventLog carries the updated log portion of the streaming assistant message.
	EventLog EventKind = "log"
	// EventPreview carries the artifact text streamed so far.
	EventPreview EventKind = "preview"
	// EventProgress carries the derived progress percentage.
	EventProgress EventKind = "progress"
	// EventDone signals normal completion; Artifact holds the final document.
	EventDone EventKind = "done"
	// EventStopped signals user-initiated cancellation.
	EventStopped EventKind = "stopped"
	// EventFailed signals a terminal stream failure.
	EventFailed EventKind = "failed"
)

// Event is one UI-facing update emitted by a generation run.
// Exactly one of the payload fields is meaningful per kind.
type Event struct {
	Kind      EventKind        `json:"kind"`
	MessageID uuid.UUID        `json:"messageId,omitempty"`
	Text      string           `json:"text,omitempty"`
	Percent   int              `json:"percent,omitempty"`
	Artifact  string           `json:"artifact,omitempty"`
	Message   *project.Message `json:"message,omitempty"`
}

// EmitFunc receives pipeline events in chunk-arrival order.
// Returning from the function must be fast; slow consumers should buffer.
type EmitFunc func(Event)
