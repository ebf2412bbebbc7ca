// Package project provides project persistence for the studio builder.
//
// A Project is the aggregate the builder works on: the current artifact (the
// generated HTML document), the ordered conversation that produced it, and the
// metadata needed to list and reopen it. Projects are owned by exactly one user;
// concurrent writers are not modeled (last-write-wins).
//
// Persistence is write-behind: the Autosaver coalesces frequent state changes
// into at most one store write per idle window.
package project

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role constants define valid message roles for type safety.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ActionKind identifies a follow-up operation a message offers to the user.
type ActionKind string

const (
	// ActionDownload offers the current artifact as a downloadable bundle.
	ActionDownload ActionKind = "download"
	// ActionRetry offers to regenerate with an error-fixing prompt.
	ActionRetry ActionKind = "retry"
)

// Action is a user-triggerable follow-up attached to a message.
type Action struct {
	Kind    ActionKind      `json:"kind"`
	Label   string          `json:"label"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message is one turn in a project conversation.
//
// While an assistant message is streaming, Content holds only the narrative
// log portion of the response; the artifact portion is tracked separately on
// the project. Messages are append-only: they are mutated in place while
// streaming and frozen once Streaming is cleared, never deleted.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Streaming bool      `json:"streaming,omitempty"`
	Action    *Action   `json:"action,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewUserMessage creates a frozen user message.
func NewUserMessage(content string) *Message {
	return &Message{
		ID:        uuid.New(),
		Role:      RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewAssistantMessage creates an assistant message in streaming state.
func NewAssistantMessage() *Message {
	return &Message{
		ID:        uuid.New(),
		Role:      RoleAssistant,
		Streaming: true,
		CreatedAt: time.Now(),
	}
}

// Project is the aggregate unit persisted to the store.
//
// Zero values:
//   - ID: uuid.Nil until the first successful insert
//   - Slug: "" until minted on insert; preserved across updates
//   - Artifact: "" before the first completed generation
type Project struct {
	ID           uuid.UUID  `json:"id"`
	OwnerID      string     `json:"ownerId"`
	Name         string     `json:"name"`
	Slug         string     `json:"slug"`
	Artifact     string     `json:"artifact,omitempty"`
	Messages     []*Message `json:"messages,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	LastEditedAt time.Time  `json:"lastEditedAt"`
}

// Snapshot is the state pair handed to the Autosaver. Only the most recent
// snapshot inside an idle window is ever written.
type Snapshot struct {
	Name     string
	Artifact string
	Messages []*Message
}
