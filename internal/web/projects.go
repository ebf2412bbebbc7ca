package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/locaith-ai/studio/internal/bundle"
	"github.com/locaith-ai/studio/internal/log"
	"github.com/locaith-ai/studio/internal/project"
)

const defaultProjectListLimit = 50

// projectStore is the slice of the project store the handlers consume.
type projectStore interface {
	Get(ctx context.Context, id uuid.UUID) (*project.Project, error)
	GetBySlug(ctx context.Context, slug string) (*project.Project, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]*project.Project, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// projectHandler owns the project read endpoints and the bundle download.
type projectHandler struct {
	store  projectStore
	logger log.Logger
	now    func() time.Time
}

func (h *projectHandler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no_user", "no user identity", h.logger)
		return
	}

	limit := defaultProjectListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	projects, err := h.store.ListByOwner(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("list projects", "error", err, "user", userID)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects}, h.logger)
}

func (h *projectHandler) get(w http.ResponseWriter, r *http.Request) {
	proj, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, proj, h.logger)
}

func (h *projectHandler) delete(w http.ResponseWriter, r *http.Request) {
	proj, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), proj.ID); err != nil {
		h.logger.Error("delete project", "error", err, "project", proj.ID)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// download streams the project's website as a zip bundle.
func (h *projectHandler) download(w http.ResponseWriter, r *http.Request) {
	proj, ok := h.load(w, r)
	if !ok {
		return
	}

	data, err := bundle.Build(proj.Name, proj.Artifact, h.now())
	if err != nil {
		if errors.Is(err, bundle.ErrEmptyArtifact) {
			writeError(w, http.StatusConflict, "no_artifact", "project has no website yet", h.logger)
			return
		}
		h.logger.Error("build bundle", "error", err, "project", proj.ID)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
		return
	}

	filename := proj.Slug
	if filename == "" {
		filename = "website"
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename+".zip"))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		h.logger.Debug("write bundle", "error", err)
	}
}

// load resolves the {id} path value, enforcing ownership. Projects belonging
// to other users present as not found.
func (h *projectHandler) load(w http.ResponseWriter, r *http.Request) (*project.Project, bool) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no_user", "no user identity", h.logger)
		return nil, false
	}

	raw := r.PathValue("id")
	var proj *project.Project
	var err error
	if id, parseErr := uuid.Parse(raw); parseErr == nil {
		proj, err = h.store.Get(r.Context(), id)
	} else {
		proj, err = h.store.GetBySlug(r.Context(), raw)
	}
	if err != nil {
		if errors.Is(err, project.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "project not found", h.logger)
			return nil, false
		}
		h.logger.Error("load project", "error", err, "ref", raw)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
		return nil, false
	}
	if proj.OwnerID != userID {
		writeError(w, http.StatusNotFound, "not_found", "project not found", h.logger)
		return nil, false
	}
	return proj, true
}
