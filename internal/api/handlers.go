package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/agevault/internal/apperr"
	"github.com/starford/agevault/internal/models"
	"github.com/starford/agevault/internal/pipelineservice"
)

const maxHistoryLimit = 500

// Handler holds API route handlers.
type Handler struct {
	svc *pipelineservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *pipelineservice.Service) *Handler {
	return &Handler{svc: svc}
}

// Status handles GET /api/status.
//
//	@Summary		Pipeline snapshot: files per stage, key presence, tick counters
//	@Tags			pipeline
//	@Produce		json
//	@Success		200	{object}	pipelineservice.Status
//	@Security		BearerAuth
//	@Router			/status [get]
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "status failed", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ListStage handles GET /api/stages/{stage}.
//
//	@Summary		List the files currently in one stage
//	@Tags			pipeline
//	@Produce		json
//	@Param			stage	path		string	true	"Stage"	Enums(local, encrypt, vault, decrypt)
//	@Success		200		{object}	StageListResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/stages/{stage} [get]
func (h *Handler) ListStage(w http.ResponseWriter, r *http.Request) {
	stage := models.Stage(chi.URLParam(r, "stage"))
	files, err := h.svc.ListStage(r.Context(), stage)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown stage", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "list stage failed", err)
		return
	}
	writeJSON(w, http.StatusOK, StageListResponse{Stage: stage, Files: files})
}

// History handles GET /api/history.
//
//	@Summary		Recent transcode outcomes, newest first
//	@Tags			pipeline
//	@Produce		json
//	@Param			limit	query		int	false	"Max entries (default 50, max 500)"
//	@Success		200		{object}	HistoryResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/history [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer", nil)
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	entries, err := h.svc.History(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "history failed", err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Entries: entries})
}
