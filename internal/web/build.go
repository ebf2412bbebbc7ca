package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/locaith-ai/studio/internal/builder"
	"github.com/locaith-ai/studio/internal/log"
	"github.com/locaith-ai/studio/internal/project"
)

type buildRequest struct {
	Prompt    string `json:"prompt"`
	ProjectID string `json:"projectId,omitempty"`
}

// buildHandler owns the generation endpoints.
type buildHandler struct {
	workspaces *workspaceManager
	store      projectStore
	logger     log.Logger
}

// start streams one generation run as Server-Sent Events. The response stays
// open until the run finishes, fails, or is stopped.
func (h *buildHandler) start(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no_user", "no user identity", h.logger)
		return
	}

	var req buildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body", h.logger)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "prompt is required", h.logger)
		return
	}

	ws, err := h.workspaces.get(userID)
	if err != nil {
		h.logger.Error("create workspace", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
		return
	}

	// Resuming an existing project seeds the slug-preserving update path and
	// the prior artifact for incremental generation.
	if req.ProjectID != "" && h.store != nil {
		id, err := uuid.Parse(req.ProjectID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid project id", h.logger)
			return
		}
		proj, err := h.store.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, project.ErrNotFound) {
				writeError(w, http.StatusNotFound, "not_found", "project not found", h.logger)
				return
			}
			h.logger.Error("load project", "error", err, "project", id)
			writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
			return
		}
		if proj.OwnerID != userID {
			writeError(w, http.StatusNotFound, "not_found", "project not found", h.logger)
			return
		}
		ws.pipeline.Resume(proj)
		ws.saver.Resume(proj)
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming unsupported", h.logger)
		return
	}

	emit := func(e builder.Event) {
		if err := sse.send(string(e.Kind), e); err != nil {
			h.logger.Debug("sse write failed", "error", err)
		}
	}

	err = ws.pipeline.Run(r.Context(), req.Prompt, emit)
	switch {
	case err == nil:
		// Terminal event already emitted by the pipeline.
	case errors.Is(err, builder.ErrDuplicatePrompt):
		// Silent no-op: the identical request is already being satisfied.
		h.logger.Debug("duplicate prompt suppressed", "user", userID)
	case errors.Is(err, builder.ErrBusy):
		if sendErr := sse.send("failed", map[string]string{"message": "a generation is already running"}); sendErr != nil {
			h.logger.Debug("sse write failed", "error", sendErr)
		}
	default:
		h.logger.Error("generation failed", "error", err, "user", userID)
		// The pipeline already emitted the failure event with its notice.
	}
}

// stop cancels the user's in-flight generation. Always succeeds: stopping an
// idle pipeline is a no-op.
func (h *buildHandler) stop(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no_user", "no user identity", h.logger)
		return
	}

	ws, err := h.workspaces.get(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
		return
	}
	ws.pipeline.Stop()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"}, h.logger)
}
