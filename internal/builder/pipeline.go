package builder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/locaith-ai/studio/internal/log"
	"github.com/locaith-ai/studio/internal/project"
)

// User-facing notices appended to the conversation by the pipeline.
// Raw service errors are never shown; failures surface as FailureNotice only.
const (
	StoppedNotice = "Generation stopped by user."
	FailureNotice = "Something went wrong while generating your website. Please try again."
	DoneNotice    = "Your website is ready. Preview it on the right or download it below."
	DownloadLabel = "Download website"
)

// GenerationRequest is the input to one generation stream.
// PriorArtifact carries the current document for incremental regeneration
// requests; empty for a first build.
type GenerationRequest struct {
	Prompt        string
	PriorArtifact string
}

// Generator abstracts the generation streaming service.
// Implementations call onChunk once per received text chunk, in order, and
// return the stream's terminal error (nil on normal completion, the context's
// error on cancellation).
type Generator interface {
	Stream(ctx context.Context, req GenerationRequest, onChunk func(ctx context.Context, text string) error) error
}

// PipelineConfig contains all required parameters for a Pipeline.
type PipelineConfig struct {
	Generator   Generator
	Saver       *project.Autosaver
	Logger      log.Logger
	DedupWindow time.Duration // identical-prompt suppression window

	// Now is the clock used for dedup bookkeeping. Nil means time.Now.
	Now func() time.Time
}

// validate checks if all required parameters are present.
func (cfg PipelineConfig) validate() error {
	if cfg.Generator == nil {
		return errors.New("generator is required")
	}
	if cfg.Saver == nil {
		return errors.New("saver is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Pipeline drives website generation for one project session.
//
// It owns the conversation and the current artifact, runs at most one
// generation at a time, suppresses duplicate submissions, and queues every
// state change on the Autosaver. All guard state (last submitted prompt,
// in-flight flag) is scoped to the Pipeline instance, so concurrent sessions
// never share it.
//
// Pipeline is safe for concurrent use.
type Pipeline struct {
	gen         Generator
	saver       *project.Autosaver
	logger      log.Logger
	dedupWindow time.Duration
	now         func() time.Time

	mu           sync.Mutex
	name         string
	artifact     string
	messages     []*project.Message
	lastPrompt   string
	lastPromptAt time.Time
	running      bool
	cancel       context.CancelFunc
}

// NewPipeline creates a Pipeline with required configuration.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	dedupWindow := cfg.DedupWindow
	if dedupWindow <= 0 {
		dedupWindow = 5 * time.Second
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Pipeline{
		gen:         cfg.Generator,
		saver:       cfg.Saver,
		logger:      cfg.Logger,
		dedupWindow: dedupWindow,
		now:         now,
	}, nil
}

// Resume loads a persisted project into the pipeline so generation continues
// the existing conversation and regenerates against the existing artifact.
func (p *Pipeline) Resume(proj *project.Project) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.name = proj.Name
	p.artifact = proj.Artifact
	p.messages = append([]*project.Message(nil), proj.Messages...)
	p.saver.Resume(proj)
}

// Artifact returns the current committed artifact.
func (p *Pipeline) Artifact() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.artifact
}

// Name returns the project name, minted from the first prompt if the user
// never supplied one.
func (p *Pipeline) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

// Messages returns a copy of the conversation for thread-safe access.
func (p *Pipeline) Messages() []*project.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	result := make([]*project.Message, len(p.messages))
	copy(result, p.messages)
	return result
}

// Stop cancels the in-flight generation, if any. The run winds down
// cooperatively: the message is marked not-streaming, annotated as stopped,
// and the state is persisted as-is.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run executes one generation: it appends the user turn and a streaming
// assistant turn, consumes the chunk stream, and finalizes the conversation
// and artifact according to how the stream ends.
//
// Returns ErrDuplicatePrompt when an identical prompt arrives inside the dedup
// window, ErrBusy when a different prompt arrives mid-run, and ErrGeneration
// on terminal stream failure. Cancellation is not an error.
func (p *Pipeline) Run(ctx context.Context, prompt string, emit EmitFunc) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return fmt.Errorf("%w: empty prompt", ErrGeneration)
	}
	if emit == nil {
		emit = func(Event) {}
	}

	p.mu.Lock()
	now := p.now()
	if prompt == p.lastPrompt && now.Sub(p.lastPromptAt) < p.dedupWindow {
		p.mu.Unlock()
		p.logger.Debug("duplicate prompt suppressed", "prompt_length", len(prompt))
		return ErrDuplicatePrompt
	}
	if p.running {
		p.mu.Unlock()
		return ErrBusy
	}
	p.running = true
	p.lastPrompt = prompt
	p.lastPromptAt = now
	if p.name == "" {
		p.name = project.NameFromPrompt(prompt)
	}
	prior := p.artifact

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	user := project.NewUserMessage(prompt)
	asst := project.NewAssistantMessage()
	p.messages = append(p.messages, user, asst)
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.cancel = nil
		p.mu.Unlock()
		cancel()
	}()

	emit(Event{Kind: EventMessage, Message: copyMessage(user)})
	emit(Event{Kind: EventMessage, Message: copyMessage(asst)})
	emit(Event{Kind: EventProgress})

	parser := NewParser()
	tracker := &progressTracker{}

	onChunk := func(ctx context.Context, text string) error {
		// Cancellation is checked at each yield point.
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		parser.Append(text)
		logText := parser.LogText()

		p.mu.Lock()
		asst.Content = logText
		live := prior
		if parser.MarkerSeen() {
			live = parser.ArtifactText()
		}
		snap := p.snapshotLocked(live)
		p.mu.Unlock()

		emit(Event{Kind: EventLog, MessageID: asst.ID, Text: logText})
		if parser.MarkerSeen() {
			emit(Event{Kind: EventPreview, Artifact: parser.ArtifactText()})
		}
		emit(Event{Kind: EventProgress, Percent: tracker.observe(parser)})

		p.saver.Queue(snap)
		return nil
	}

	err := p.gen.Stream(runCtx, GenerationRequest{Prompt: prompt, PriorArtifact: prior}, onChunk)

	switch {
	case runCtx.Err() != nil || errors.Is(err, context.Canceled):
		return p.finishStopped(ctx, asst, parser, tracker, emit)
	case err != nil:
		return p.finishFailed(asst, prior, tracker, emit, err)
	default:
		return p.finishDone(ctx, asst, parser, tracker, emit)
	}
}

// finishStopped handles user-initiated cancellation: the partial state is kept
// and persisted as-is, with no artifact finalization forced.
func (p *Pipeline) finishStopped(ctx context.Context, asst *project.Message, parser *Parser, tracker *progressTracker, emit EmitFunc) error {
	p.mu.Lock()
	asst.Streaming = false
	if asst.Content != "" && !strings.HasSuffix(asst.Content, "\n") {
		asst.Content += "\n"
	}
	asst.Content += StoppedNotice
	if parser.MarkerSeen() {
		p.artifact = parser.ArtifactText()
	}
	snap := p.snapshotLocked(p.artifact)
	p.mu.Unlock()

	emit(Event{Kind: EventStopped, MessageID: asst.ID, Text: asst.Content, Percent: tracker.current()})

	p.saver.Queue(snap)
	p.saver.Flush(context.WithoutCancel(ctx))
	p.logger.Info("generation stopped by user")
	return nil
}

// finishFailed handles terminal stream errors: the in-progress message becomes
// a generic failure notice and the artifact is not altered. A snapshot with
// the prior artifact is queued so the store converges back to it even if a
// mid-stream save already carried partial output.
func (p *Pipeline) finishFailed(asst *project.Message, prior string, _ *progressTracker, emit EmitFunc, cause error) error {
	p.mu.Lock()
	asst.Streaming = false
	asst.Content = FailureNotice
	snap := p.snapshotLocked(prior)
	p.mu.Unlock()

	emit(Event{Kind: EventFailed, MessageID: asst.ID, Text: FailureNotice})

	p.saver.Queue(snap)
	p.logger.Error("generation stream failed", "error", cause)
	return fmt.Errorf("%w: %v", ErrGeneration, cause)
}

// finishDone handles normal completion: the final artifact text becomes the
// project's current artifact, a terminal message carrying the download action
// is appended, and progress reaches 100.
func (p *Pipeline) finishDone(ctx context.Context, asst *project.Message, parser *Parser, tracker *progressTracker, emit EmitFunc) error {
	p.mu.Lock()
	asst.Streaming = false
	if parser.MarkerSeen() {
		p.artifact = parser.ArtifactText()
	}
	done := &project.Message{
		ID:        uuid.New(),
		Role:      project.RoleAssistant,
		Content:   DoneNotice,
		Action:    &project.Action{Kind: project.ActionDownload, Label: DownloadLabel},
		CreatedAt: time.Now(),
	}
	p.messages = append(p.messages, done)
	artifact := p.artifact
	snap := p.snapshotLocked(artifact)
	p.mu.Unlock()

	emit(Event{Kind: EventMessage, Message: copyMessage(done)})
	emit(Event{Kind: EventProgress, Percent: tracker.complete()})
	emit(Event{Kind: EventDone, Artifact: artifact})

	p.saver.Queue(snap)
	p.saver.Flush(context.WithoutCancel(ctx))
	p.logger.Info("generation completed",
		"artifact_bytes", len(artifact),
		"steps", parser.Steps())
	return nil
}

// snapshotLocked builds an Autosaver snapshot. Caller must hold p.mu.
func (p *Pipeline) snapshotLocked(artifact string) project.Snapshot {
	messages := make([]*project.Message, len(p.messages))
	for i, m := range p.messages {
		c := *m
		messages[i] = &c
	}
	return project.Snapshot{
		Name:     p.name,
		Artifact: artifact,
		Messages: messages,
	}
}

// copyMessage returns an independent copy for event payloads, so consumers
// never observe in-place streaming mutations mid-marshal.
func copyMessage(m *project.Message) *project.Message {
	c := *m
	return &c
}
