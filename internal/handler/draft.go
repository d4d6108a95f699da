package handler

import (
	"log/slog"
	"net/http"

	"policyforge/internal/domain/models"
	"policyforge/internal/domain/services"
	"policyforge/internal/httputil"
)

// DraftHandler handles draft lifecycle HTTP requests
type DraftHandler struct {
	draftService services.DraftService
	logger       *slog.Logger
}

// NewDraftHandler creates a new draft handler
func NewDraftHandler(draftService services.DraftService, logger *slog.Logger) *DraftHandler {
	return &DraftHandler{
		draftService: draftService,
		logger:       logger,
	}
}

// HealthCheck reports service liveness
// GET /health
func (h *DraftHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ValidateDescription scores a proposed draft without creating anything
// POST /api/v1/drafts/validate
func (h *DraftHandler) ValidateDescription(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req services.CreateDraftRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.CreatedBy = userID

	report, err := h.draftService.ValidateDescription(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, report)
}

// InitializeDraft creates a draft with a seeded table of contents
// POST /api/v1/drafts/initialize
func (h *DraftHandler) InitializeDraft(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req services.CreateDraftRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.CreatedBy = userID

	draft, err := h.draftService.InitializeDraft(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, draft)
}

// ListDrafts returns draft summaries matching the query filters
// GET /api/v1/drafts
func (h *DraftHandler) ListDrafts(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	q := r.URL.Query()
	filters := models.DraftFilters{
		Title:     q.Get("title"),
		Country:   q.Get("country"),
		City:      q.Get("city"),
		CreatedBy: q.Get("created_by"),
		Industry:  q.Get("industry"),
		Function:  q.Get("function"),
	}

	drafts, err := h.draftService.ListDrafts(r.Context(), filters)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, drafts)
}

// GetDraft retrieves a full draft
// GET /api/v1/drafts/{id}
func (h *DraftHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "draft ID is required")
		return
	}

	draft, err := h.draftService.GetDraft(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, draft)
}

// DeleteDraft removes a draft and its tree
// DELETE /api/v1/drafts/{id}
func (h *DraftHandler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "draft ID is required")
		return
	}

	if err := h.draftService.DeleteDraft(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateMetadata applies partial changes to a draft's metadata
// PUT /api/v1/drafts/{id}/metadata
func (h *DraftHandler) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "draft ID is required")
		return
	}

	var req services.UpdateMetadataRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	draft, err := h.draftService.UpdateMetadata(r.Context(), id, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, draft)
}

// UpdateTOC replaces the draft's stored tree with the submitted structure
// PUT /api/v1/drafts/{id}/toc
func (h *DraftHandler) UpdateTOC(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "draft ID is required")
		return
	}

	var req struct {
		Topics []models.TOCUpdateItem `json:"topics"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	draft, err := h.draftService.UpdateTOC(r.Context(), id, req.Topics)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, draft)
}

// GetProgress reports content completion across the draft's tree
// GET /api/v1/drafts/{id}/progress
func (h *DraftHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "draft ID is required")
		return
	}

	progress, err := h.draftService.GetProgress(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, progress)
}

// ListFunctions returns the business functions drafts can be created for
// GET /api/v1/drafts/functions
func (h *DraftHandler) ListFunctions(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string][]string{
		"functions": h.draftService.Functions(),
	})
}
