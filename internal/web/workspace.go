package web

import (
	"context"
	"sync"
	"time"

	"github.com/locaith-ai/studio/internal/builder"
	"github.com/locaith-ai/studio/internal/log"
	"github.com/locaith-ai/studio/internal/project"
)

// sessionIdentity is the authenticated principal for one workspace. The
// autosaver queries it at write time; an empty id means writes are skipped.
type sessionIdentity struct {
	userID string
}

func (s sessionIdentity) CurrentUser(context.Context) (string, bool) {
	return s.userID, s.userID != ""
}

// workspace couples one user's generation pipeline with its autosaver. Both
// are scoped to a single project session.
type workspace struct {
	pipeline *builder.Pipeline
	saver    *project.Autosaver
}

// workspaceManager lazily creates one workspace per user. Dedup and busy state
// live on the workspace, never in package globals, so concurrent users cannot
// share guard state.
type workspaceManager struct {
	mu     sync.Mutex
	byUser map[string]*workspace

	store       project.Writer
	generator   builder.Generator
	saveWindow  time.Duration
	dedupWindow time.Duration
	logger      log.Logger
}

func newWorkspaceManager(store project.Writer, generator builder.Generator, saveWindow, dedupWindow time.Duration, logger log.Logger) *workspaceManager {
	return &workspaceManager{
		byUser:      make(map[string]*workspace),
		store:       store,
		generator:   generator,
		saveWindow:  saveWindow,
		dedupWindow: dedupWindow,
		logger:      logger,
	}
}

// get returns the user's workspace, creating it on first use.
func (m *workspaceManager) get(userID string) (*workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ws, ok := m.byUser[userID]; ok {
		return ws, nil
	}

	saver := project.NewAutosaver(m.store, sessionIdentity{userID: userID}, m.saveWindow, m.logger)
	pipeline, err := builder.NewPipeline(builder.PipelineConfig{
		Generator:   m.generator,
		Saver:       saver,
		Logger:      m.logger,
		DedupWindow: m.dedupWindow,
	})
	if err != nil {
		saver.Close(context.Background())
		return nil, err
	}

	ws := &workspace{pipeline: pipeline, saver: saver}
	m.byUser[userID] = ws
	return ws, nil
}

// closeAll flushes and closes every workspace. Used at server shutdown.
func (m *workspaceManager) closeAll(ctx context.Context) {
	m.mu.Lock()
	workspaces := make([]*workspace, 0, len(m.byUser))
	for _, ws := range m.byUser {
		workspaces = append(workspaces, ws)
	}
	m.byUser = make(map[string]*workspace)
	m.mu.Unlock()

	for _, ws := range workspaces {
		ws.pipeline.Stop()
		ws.saver.Close(ctx)
	}
}
