package project

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Identity resolves the current authenticated principal.
// The Autosaver does not own auth; it queries this at write time and silently
// skips the write when no principal is present.
type Identity interface {
	CurrentUser(ctx context.Context) (string, bool)
}

// Writer is the subset of Store the Autosaver needs.
// Defined here so tests can substitute an in-memory store.
type Writer interface {
	Insert(ctx context.Context, p *Project) error
	Update(ctx context.Context, p *Project) error
}

// defaultWriteTimeout bounds a single store write issued by the timer goroutine.
const defaultWriteTimeout = 10 * time.Second

// Autosaver coalesces frequent project-state changes into at most one store
// write per idle window.
//
// Each Queue call (re)starts an idle timer; only when the timer elapses without
// another Queue does a write occur, and only the most recent snapshot is ever
// written. Write failures are logged and swallowed - persistence must never
// interrupt the interactive experience. The next elapsed window naturally
// re-attempts with the latest state, so transient failures self-heal.
//
// An Autosaver is scoped to one project session and is safe for concurrent use.
type Autosaver struct {
	store    Writer
	identity Identity
	logger   *slog.Logger
	window   time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending *Snapshot
	current Project // carries ID/Slug/Name identity across saves
	closed  bool

	wg sync.WaitGroup
}

// NewAutosaver creates an Autosaver for a single project session.
// window <= 0 falls back to the default idle window.
func NewAutosaver(store Writer, identity Identity, window time.Duration, logger *slog.Logger) *Autosaver {
	if logger == nil {
		logger = slog.Default()
	}
	if window <= 0 {
		window = 2 * time.Second
	}
	return &Autosaver{
		store:    store,
		identity: identity,
		logger:   logger,
		window:   window,
	}
}

// Resume seeds the Autosaver with an already-persisted project so subsequent
// writes are updates that preserve the existing slug.
func (a *Autosaver) Resume(p *Project) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = *p
}

// Current returns a copy of the project identity as of the last successful
// write. Before the first insert its ID is uuid.Nil and its Slug is empty.
func (a *Autosaver) Current() Project {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Queue records the latest state and (re)starts the idle timer.
// Intermediate snapshots queued inside one window are discarded.
func (a *Autosaver) Queue(snap Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}

	a.pending = &snap

	if a.timer == nil {
		a.timer = time.AfterFunc(a.window, a.onTimer)
		return
	}
	a.timer.Reset(a.window)
}

// onTimer runs on the timer goroutine when the idle window elapses.
func (a *Autosaver) onTimer() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.wg.Add(1)
	a.mu.Unlock()
	defer a.wg.Done()

	a.Flush(context.Background())
}

// Flush writes the pending snapshot immediately, if any.
// Called by the idle timer, on stream completion/cancellation, and on shutdown.
func (a *Autosaver) Flush(ctx context.Context) {
	a.mu.Lock()
	snap := a.pending
	a.pending = nil
	a.mu.Unlock()

	if snap == nil {
		return
	}

	owner, ok := a.identity.CurrentUser(ctx)
	if !ok {
		// No authenticated principal: skip silently. The state lives on in
		// memory and the next elapsed window re-attempts.
		a.logger.Debug("autosave skipped, no authenticated user")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	a.mu.Lock()
	p := a.current
	a.mu.Unlock()

	p.OwnerID = owner
	p.Artifact = snap.Artifact
	p.Messages = snap.Messages
	if snap.Name != "" {
		p.Name = snap.Name
	}

	var err error
	if p.ID == uuid.Nil {
		err = a.store.Insert(ctx, &p)
	} else {
		err = a.store.Update(ctx, &p)
	}
	if err != nil {
		// Swallowed: the next debounced write retries with fresher state.
		a.logger.Warn("autosave failed", "error", err, "project", p.ID)
		return
	}

	a.mu.Lock()
	a.current = p
	a.mu.Unlock()

	a.logger.Debug("autosaved project", "id", p.ID, "slug", p.Slug)
}

// Close stops the timer, flushes any pending snapshot, and waits for an
// in-flight timer write to finish. The Autosaver must not be used afterwards.
func (a *Autosaver) Close(ctx context.Context) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	if a.timer != nil {
		a.timer.Stop()
	}
	a.mu.Unlock()

	a.wg.Wait()
	a.Flush(ctx)
}
