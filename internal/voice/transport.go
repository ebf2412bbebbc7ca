package voice

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// ToolDecl declares a tool to the speech service during setup.
type ToolDecl struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// SetupConfig is the first client message on a new channel.
type SetupConfig struct {
	VoiceName         string     `json:"voiceName"`
	SystemInstruction string     `json:"systemInstruction,omitempty"`
	Tools             []ToolDecl `json:"tools,omitempty"`
}

// ToolCall is a server-initiated tool invocation. Every call must be answered
// exactly once, keyed by ID.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolResponse answers one ToolCall.
type ToolResponse struct {
	ID     string         `json:"id"`
	Result map[string]any `json:"result"`
}

// ClientMessage is the outbound frame envelope.
type ClientMessage struct {
	Setup        *SetupConfig  `json:"setup,omitempty"`
	AudioFrame   string        `json:"audioFrame,omitempty"`
	ToolResponse *ToolResponse `json:"toolResponse,omitempty"`
}

// ServerMessage is the inbound frame envelope. Exactly one of the fields is
// set per message, except ToolCalls which may carry several calls at once.
type ServerMessage struct {
	AudioFrame string     `json:"audioFrame,omitempty"`
	Transcript string     `json:"transcript,omitempty"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Transport is the duplex channel to the speech service.
type Transport interface {
	Send(msg ClientMessage) error
	// Receive blocks until the next server message or a terminal error.
	Receive() (ServerMessage, error)
	Close() error
}

// Dialer opens a Transport and performs the setup handshake.
type Dialer func(ctx context.Context, setup SetupConfig) (Transport, error)

// wsTransport is the production Transport over a websocket.
type wsTransport struct {
	conn *websocket.Conn

	// gorilla permits one concurrent writer; audio frames and tool responses
	// come from different goroutines.
	writeMu sync.Mutex
}

// NewWebSocketDialer returns a Dialer for the speech endpoint.
func NewWebSocketDialer(endpoint string) Dialer {
	return func(ctx context.Context, setup SetupConfig) (Transport, error) {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("dial speech service: %w", err)
		}
		t := &wsTransport{conn: conn}
		if err := t.Send(ClientMessage{Setup: &setup}); err != nil {
			conn.Close()
			return nil, fmt.Errorf("send setup: %w", err)
		}
		return t, nil
	}
}

func (t *wsTransport) Send(msg ClientMessage) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteJSON(msg)
}

func (t *wsTransport) Receive() (ServerMessage, error) {
	var msg ServerMessage
	if err := t.conn.ReadJSON(&msg); err != nil {
		return ServerMessage{}, err
	}
	return msg, nil
}

func (t *wsTransport) Close() error {
	t.writeMu.Lock()
	_ = t.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	t.writeMu.Unlock()
	return t.conn.Close()
}
