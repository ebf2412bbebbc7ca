// Package voice manages the live audio session with the speech service: a
// duplex channel carrying base64 PCM frames, transcripts, and tool calls. The
// connection lifecycle is an explicit state machine; teardown runs in a fixed
// order so no component outlives the session.
package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/locaith-ai/studio/internal/log"
)

// DefaultFrameSamples is the outbound capture frame size in samples.
const DefaultFrameSamples = 4096

// Capture is the microphone source. Start returns a channel of PCM frames
// that closes when Stop is called or the device fails.
type Capture interface {
	Start(ctx context.Context) (<-chan []int16, error)
	Stop()
}

// SessionConfig contains all required parameters for a Session.
type SessionConfig struct {
	Dialer  Dialer
	Capture Capture
	Tools   *Registry
	Sink    Sink
	Logger  log.Logger

	VoiceName         string
	SystemInstruction string
	SampleRate        int

	// OnTranscript receives text fragments as the service emits them. Optional.
	OnTranscript func(string)
	// OnLevel receives the level of every captured frame, muted or not, for
	// local volume visualization. Optional.
	OnLevel func(float64)

	// Clock overrides time.Now for the playback scheduler. Tests only.
	Clock func() time.Time
}

func (cfg SessionConfig) validate() error {
	if cfg.Dialer == nil {
		return errors.New("dialer is required")
	}
	if cfg.Capture == nil {
		return errors.New("capture is required")
	}
	if cfg.Tools == nil {
		return errors.New("tool registry is required")
	}
	if cfg.Sink == nil {
		return errors.New("playback sink is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Session is one live audio session. At most one connection is active at a
// time; Connect while Connecting or Connected is a no-op.
//
// Session is safe for concurrent use.
type Session struct {
	mu        sync.Mutex
	state     State
	connGen   uint64
	transport Transport
	cancel    context.CancelFunc

	muted   atomic.Bool
	sending atomic.Bool
	wg      sync.WaitGroup

	dialer    Dialer
	capture   Capture
	registry  *Registry
	scheduler *Scheduler
	logger    log.Logger

	voiceName    string
	sysInstr     string
	onTranscript func(string)
	onLevel      func(float64)
}

// NewSession creates a Session with required configuration.
func NewSession(cfg SessionConfig) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Session{
		state:        StateIdle,
		dialer:       cfg.Dialer,
		capture:      cfg.Capture,
		registry:     cfg.Tools,
		scheduler:    NewScheduler(cfg.Sink, cfg.SampleRate, cfg.Clock),
		logger:       cfg.Logger,
		voiceName:    cfg.VoiceName,
		sysInstr:     cfg.SystemInstruction,
		onTranscript: cfg.OnTranscript,
		onLevel:      cfg.OnLevel,
	}, nil
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Muted reports whether outbound audio is suppressed. Only meaningful while
// Connected.
func (s *Session) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateConnected && s.muted.Load()
}

// SetMuted toggles outbound suppression. While muted, captured frames are
// still measured for the level callback but never transmitted.
func (s *Session) SetMuted(muted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected {
		return ErrNotConnected
	}
	s.muted.Store(muted)
	return nil
}

// Connect starts the microphone, dials the speech service, and begins the
// send and receive loops. Calling Connect while a connection is pending or
// established does nothing.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		s.logger.Debug("connect ignored", "state", s.state.String())
		return nil
	}
	s.state = StateConnecting
	s.connGen++
	gen := s.connGen
	s.mu.Unlock()

	frames, err := s.capture.Start(ctx)
	if err != nil {
		s.releaseConnect(gen, false)
		return ClassifyMicError(err)
	}

	setup := SetupConfig{
		VoiceName:         s.voiceName,
		SystemInstruction: s.sysInstr,
		Tools:             s.registry.Declarations(),
	}
	transport, err := s.dialer(ctx, setup)
	if err != nil {
		s.releaseConnect(gen, true)
		return fmt.Errorf("connect speech service: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if s.state != StateConnecting || s.connGen != gen {
		// Disconnect won the race while the dial was in flight. The teardown
		// already stopped the microphone; discard the late channel and stay
		// out of the loops.
		s.mu.Unlock()
		cancel()
		_ = transport.Close()
		s.logger.Debug("connect superseded during dial, discarding channel")
		return nil
	}
	s.transport = transport
	s.cancel = cancel
	s.state = StateConnected
	s.muted.Store(false)
	s.sending.Store(true)
	s.mu.Unlock()

	s.wg.Add(2)
	go s.sendLoop(loopCtx, frames, transport)
	go s.readLoop(loopCtx, transport)

	s.logger.Info("voice session connected", "voice", s.voiceName)
	return nil
}

// Disconnect tears the session down and blocks until both loops have exited.
// Safe to call in any state.
func (s *Session) Disconnect() {
	s.cleanup()
	s.wg.Wait()
}

// releaseConnect undoes a failed connect attempt. It is a no-op when the
// attempt no longer owns the session, so a cleanup that ran during the dial
// is never undone and a newer attempt's capture channel is never stopped.
func (s *Session) releaseConnect(gen uint64, stopCapture bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnecting || s.connGen != gen {
		return
	}
	if stopCapture {
		s.capture.Stop()
	}
	s.state = StateIdle
}

// cleanup runs the fixed teardown order: stop transmitting, cancel the loops,
// stop the microphone, close the channel, halt scheduled playback. It never
// waits for the loops, so the read loop may call it after a server error.
func (s *Session) cleanup() {
	s.mu.Lock()
	if s.state != StateConnected && s.state != StateConnecting {
		s.mu.Unlock()
		return
	}
	s.state = StateDisconnected
	transport := s.transport
	cancel := s.cancel
	s.transport = nil
	s.cancel = nil
	s.mu.Unlock()

	s.sending.Store(false)
	if cancel != nil {
		cancel()
	}
	s.capture.Stop()
	if transport != nil {
		_ = transport.Close()
	}
	s.scheduler.Reset()

	s.mu.Lock()
	s.muted.Store(false)
	s.state = StateIdle
	s.mu.Unlock()
	s.logger.Info("voice session closed")
}

// sendLoop forwards captured frames. Every frame is measured so the local
// meter works while muted; muted frames are not transmitted.
func (s *Session) sendLoop(ctx context.Context, frames <-chan []int16, transport Transport) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if s.onLevel != nil {
				s.onLevel(Level(frame))
			}
			if !s.sending.Load() || s.muted.Load() {
				continue
			}
			if err := transport.Send(ClientMessage{AudioFrame: EncodePCM16(frame)}); err != nil {
				s.logger.Warn("send audio frame", "error", err)
				return
			}
		}
	}
}

// readLoop consumes server messages until the channel dies. A server error,
// wire or in-band, triggers the same full cleanup as a user disconnect.
func (s *Session) readLoop(ctx context.Context, transport Transport) {
	defer s.wg.Done()
	for {
		msg, err := transport.Receive()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error("speech channel failed", "error", err)
				s.cleanup()
			}
			return
		}

		switch {
		case msg.Error != "":
			s.logger.Error("speech service error", "error", msg.Error)
			s.cleanup()
			return

		case msg.AudioFrame != "":
			seq := s.scheduler.Reserve()
			pcm, err := DecodePCM16(msg.AudioFrame)
			if err != nil {
				s.logger.Warn("drop undecodable frame", "error", err)
				// Releases the slot so later frames are not blocked.
				s.scheduler.Complete(seq, nil)
				continue
			}
			s.scheduler.Complete(seq, pcm)

		case msg.Transcript != "":
			if s.onTranscript != nil {
				s.onTranscript(msg.Transcript)
			}

		case len(msg.ToolCalls) > 0:
			for _, call := range msg.ToolCalls {
				s.wg.Add(1)
				go func(call ToolCall) {
					defer s.wg.Done()
					resp := s.registry.Dispatch(ctx, call)
					if err := transport.Send(ClientMessage{ToolResponse: &resp}); err != nil {
						s.logger.Warn("send tool response", "call_id", call.ID, "error", err)
					}
				}(call)
			}
		}
	}
}
