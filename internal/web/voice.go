package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/locaith-ai/studio/internal/log"
	"github.com/locaith-ai/studio/internal/voice"
)

// voiceHandler bridges a browser websocket to the live speech session. The
// browser is the microphone and the speaker: it sends captured PCM frames and
// control messages, and receives scheduled playback, transcripts, and
// navigation events.
type voiceHandler struct {
	dialer     voice.Dialer
	answerer   voice.Answerer
	quoter     voice.Quoter
	workspaces *workspaceManager

	voiceName    string
	frameSamples int
	dedupWindow  time.Duration
	logger       log.Logger
	upgrader     websocket.Upgrader
}

func newVoiceHandler(dialer voice.Dialer, answerer voice.Answerer, quoter voice.Quoter, workspaces *workspaceManager, voiceName string, frameSamples int, dedupWindow time.Duration, allowedOrigins []string, logger log.Logger) *voiceHandler {
	originSet := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originSet[o] = struct{}{}
	}
	return &voiceHandler{
		dialer:       dialer,
		answerer:     answerer,
		quoter:       quoter,
		workspaces:   workspaces,
		voiceName:    voiceName,
		frameSamples: frameSamples,
		dedupWindow:  dedupWindow,
		logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := originSet[origin]
				return ok
			},
		},
	}
}

// browserMessage is what the browser sends over the bridge socket.
type browserMessage struct {
	AudioFrame string `json:"audioFrame,omitempty"`
	Muted      *bool  `json:"muted,omitempty"`
	Disconnect bool   `json:"disconnect,omitempty"`
}

// bridgeEvent is what the server pushes to the browser.
type bridgeEvent struct {
	AudioFrame string  `json:"audioFrame,omitempty"`
	StartMs    int64   `json:"startMs,omitempty"`
	Transcript string  `json:"transcript,omitempty"`
	Level      float64 `json:"level,omitempty"`
	Navigate   string  `json:"navigate,omitempty"`
	Halt       bool    `json:"halt,omitempty"`
	State      string  `json:"state,omitempty"`
	Error      string  `json:"error,omitempty"`
}

func (h *voiceHandler) serve(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no_user", "no user identity", h.logger)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	bridge := newBrowserBridge(conn, h.frameSamples, h.logger)

	registry := voice.NewRegistry(h.logger)
	registry.Register(voice.NewNavigateTool(func(feature string) {
		bridge.push(bridgeEvent{Navigate: feature})
	}))
	registry.Register(voice.NewSubmitPromptTool(func(ctx context.Context, prompt string) error {
		ws, err := h.workspaces.get(userID)
		if err != nil {
			return err
		}
		// Events from a voice-initiated build are not streamed anywhere; the
		// autosaver still persists the result.
		return ws.pipeline.Run(ctx, prompt, nil)
	}, h.dedupWindow, nil))
	if h.quoter != nil {
		registry.Register(voice.NewQuoteTool(h.quoter))
	}
	if h.answerer != nil {
		registry.Register(voice.NewKnowledgeTool(h.answerer))
	}

	session, err := voice.NewSession(voice.SessionConfig{
		Dialer:       h.dialer,
		Capture:      bridge,
		Sink:         bridge,
		Tools:        registry,
		Logger:       h.logger,
		VoiceName:    h.voiceName,
		OnTranscript: func(text string) { bridge.push(bridgeEvent{Transcript: text}) },
		OnLevel:      func(level float64) { bridge.push(bridgeEvent{Level: level}) },
	})
	if err != nil {
		h.logger.Error("create voice session", "error", err)
		return
	}

	if err := session.Connect(r.Context()); err != nil {
		bridge.push(bridgeEvent{Error: err.Error(), State: voice.StateIdle.String()})
		return
	}
	bridge.push(bridgeEvent{State: voice.StateConnected.String()})

	// Pump browser messages until the socket dies or the browser asks to
	// disconnect. Bridge reads feed the session's capture channel.
	bridge.pump(session)

	session.Disconnect()
	bridge.push(bridgeEvent{State: voice.StateIdle.String()})
}

// browserBridge adapts one websocket to the session's Capture and Sink.
type browserBridge struct {
	conn         *websocket.Conn
	frameSamples int
	logger       log.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	frames  chan []int16
	pending []int16
	stopped bool
}

func newBrowserBridge(conn *websocket.Conn, frameSamples int, logger log.Logger) *browserBridge {
	if frameSamples <= 0 {
		frameSamples = voice.DefaultFrameSamples
	}
	return &browserBridge{conn: conn, frameSamples: frameSamples, logger: logger}
}

// Start implements voice.Capture.
func (b *browserBridge) Start(context.Context) (<-chan []int16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = make(chan []int16, 32)
	b.pending = nil
	b.stopped = false
	return b.frames, nil
}

// Stop implements voice.Capture.
func (b *browserBridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped || b.frames == nil {
		return
	}
	b.stopped = true
	close(b.frames)
}

// Play implements voice.Sink: playback frames go to the browser with their
// scheduled start so the client clock can honor the timeline.
func (b *browserBridge) Play(start time.Time, pcm []int16) {
	b.push(bridgeEvent{
		AudioFrame: voice.EncodePCM16(pcm),
		StartMs:    start.UnixMilli(),
	})
}

// Halt implements voice.Sink.
func (b *browserBridge) Halt() {
	b.push(bridgeEvent{Halt: true})
}

func (b *browserBridge) push(e bridgeEvent) {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if err := b.conn.WriteJSON(e); err != nil {
		b.logger.Debug("bridge write failed", "error", err)
	}
}

// pump reads browser messages until the socket closes. Audio frames feed the
// capture channel; mute toggles forward to the session. Frames arriving while
// the capture channel is full are dropped, stale audio is worse than lost
// audio.
func (b *browserBridge) pump(session *voice.Session) {
	for {
		var msg browserMessage
		if err := b.conn.ReadJSON(&msg); err != nil {
			b.flush()
			return
		}
		switch {
		case msg.Disconnect:
			b.flush()
			return
		case msg.Muted != nil:
			if err := session.SetMuted(*msg.Muted); err != nil {
				b.logger.Debug("set muted", "error", err)
			}
		case msg.AudioFrame != "":
			pcm, err := voice.DecodePCM16(msg.AudioFrame)
			if err != nil {
				b.logger.Debug("drop undecodable browser frame", "error", err)
				continue
			}
			b.enqueue(pcm)
		}
	}
}

// enqueue re-frames browser audio into fixed-size capture frames. Browsers
// chunk audio by their own buffer sizes; the speech channel carries frames of
// frameSamples samples each.
func (b *browserBridge) enqueue(pcm []int16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped || b.frames == nil {
		return
	}
	b.pending = append(b.pending, pcm...)
	for len(b.pending) >= b.frameSamples {
		frame := make([]int16, b.frameSamples)
		copy(frame, b.pending)
		b.pending = b.pending[b.frameSamples:]
		select {
		case b.frames <- frame:
		default:
		}
	}
}

// flush forwards the partial frame left in the buffer so trailing speech is
// not lost when the browser stops capturing.
func (b *browserBridge) flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped || b.frames == nil || len(b.pending) == 0 {
		return
	}
	frame := b.pending
	b.pending = nil
	select {
	case b.frames <- frame:
	default:
	}
}
