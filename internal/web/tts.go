package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/locaith-ai/studio/internal/log"
	"github.com/locaith-ai/studio/internal/tts"
)

// ttsHandler proxies speech synthesis requests.
type ttsHandler struct {
	client *tts.Client
	logger log.Logger
}

func (h *ttsHandler) synthesize(w http.ResponseWriter, r *http.Request) {
	if h.client == nil {
		writeError(w, http.StatusServiceUnavailable, "tts_unconfigured", "speech synthesis is not configured", h.logger)
		return
	}

	var req tts.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body", h.logger)
		return
	}

	resp, err := h.client.Synthesize(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, tts.ErrMissingText):
			writeError(w, http.StatusBadRequest, "bad_request", "text is required", h.logger)
		default:
			h.logger.Error("synthesis failed", "error", err)
			writeError(w, http.StatusBadGateway, "synthesis_failed", "speech synthesis failed", h.logger)
		}
		return
	}

	writeJSON(w, http.StatusOK, resp, h.logger)
}
