package handler

import (
	"log/slog"
	"net/http"

	"policyforge/internal/domain/services"
	"policyforge/internal/httputil"
)

// EditorHandler handles per-draft editing session HTTP requests. Every
// operation returns the full editor state so the client can re-render
// without follow-up requests.
type EditorHandler struct {
	editorService services.EditorService
	logger        *slog.Logger
}

// NewEditorHandler creates a new editor handler
func NewEditorHandler(editorService services.EditorService, logger *slog.Logger) *EditorHandler {
	return &EditorHandler{
		editorService: editorService,
		logger:        logger,
	}
}

func (h *EditorHandler) respondState(w http.ResponseWriter, state *services.EditorState, err error) {
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, state)
}

// State returns the session's current view
// GET /api/v1/drafts/{id}/editor
func (h *EditorHandler) State(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}
	state, err := h.editorService.State(r.Context(), r.PathValue("id"))
	h.respondState(w, state, err)
}

// Select makes a node the session's active item
// POST /api/v1/drafts/{id}/editor/select
func (h *EditorHandler) Select(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	var req struct {
		NodeID string `json:"node_id"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state, err := h.editorService.Select(r.Context(), r.PathValue("id"), req.NodeID)
	h.respondState(w, state, err)
}

// SendMessage runs one generation turn against the selected node
// POST /api/v1/drafts/{id}/editor/message
func (h *EditorHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state, err := h.editorService.SendMessage(r.Context(), r.PathValue("id"), req.Message)
	h.respondState(w, state, err)
}

// GenerateNode selects a node and generates content for it
// POST /api/v1/drafts/{id}/topics/{topicID}/generate
func (h *EditorHandler) GenerateNode(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state, err := h.editorService.GenerateNode(r.Context(), r.PathValue("id"), r.PathValue("topicID"), req.Prompt)
	h.respondState(w, state, err)
}

// SaveNodeContent writes content for one node and persists it immediately.
// The node is selected first so the session state stays coherent.
// PUT /api/v1/drafts/{id}/topics/{topicID}/content
func (h *EditorHandler) SaveNodeContent(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	draftID := r.PathValue("id")
	if _, err := h.editorService.Select(r.Context(), draftID, r.PathValue("topicID")); err != nil {
		handleError(w, err)
		return
	}
	if _, err := h.editorService.EditContent(r.Context(), draftID, req.Content); err != nil {
		handleError(w, err)
		return
	}
	state, err := h.editorService.SaveContent(r.Context(), draftID)
	h.respondState(w, state, err)
}

// EditContent replaces the selected node's live content
// PUT /api/v1/drafts/{id}/editor/content
func (h *EditorHandler) EditContent(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state, err := h.editorService.EditContent(r.Context(), r.PathValue("id"), req.Content)
	h.respondState(w, state, err)
}

// SaveContent persists the selected node's content immediately
// POST /api/v1/drafts/{id}/editor/save
func (h *EditorHandler) SaveContent(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}
	state, err := h.editorService.SaveContent(r.Context(), r.PathValue("id"))
	h.respondState(w, state, err)
}

// RenameNode retitles a node in the working tree
// POST /api/v1/drafts/{id}/editor/toc/rename
func (h *EditorHandler) RenameNode(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	var req struct {
		NodeID     string `json:"node_id"`
		IsSubtopic bool   `json:"is_subtopic"`
		Title      string `json:"title"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state, err := h.editorService.RenameNode(r.Context(), r.PathValue("id"), req.NodeID, req.IsSubtopic, req.Title)
	h.respondState(w, state, err)
}

// DeleteNode removes a node from the working tree
// POST /api/v1/drafts/{id}/editor/toc/delete
func (h *EditorHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	var req struct {
		NodeID     string `json:"node_id"`
		IsSubtopic bool   `json:"is_subtopic"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state, err := h.editorService.DeleteNode(r.Context(), r.PathValue("id"), req.NodeID, req.IsSubtopic)
	h.respondState(w, state, err)
}

// AddTopic appends a new empty topic to the working tree
// POST /api/v1/drafts/{id}/editor/toc/topics
func (h *EditorHandler) AddTopic(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	var req struct {
		Title string `json:"title"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state, err := h.editorService.AddTopic(r.Context(), r.PathValue("id"), req.Title)
	h.respondState(w, state, err)
}

// AddSubtopic appends a new empty subtopic under a topic
// POST /api/v1/drafts/{id}/editor/toc/subtopics
func (h *EditorHandler) AddSubtopic(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	var req struct {
		ParentTopicID string `json:"parent_topic_id"`
		Title         string `json:"title"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state, err := h.editorService.AddSubtopic(r.Context(), r.PathValue("id"), req.ParentTopicID, req.Title)
	h.respondState(w, state, err)
}

// ReorderTopics moves a topic to a new position
// POST /api/v1/drafts/{id}/editor/toc/reorder
func (h *EditorHandler) ReorderTopics(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	var req struct {
		ParentTopicID string `json:"parent_topic_id,omitempty"`
		From          int    `json:"from"`
		To            int    `json:"to"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var state *services.EditorState
	var err error
	if req.ParentTopicID != "" {
		state, err = h.editorService.ReorderSubtopics(r.Context(), r.PathValue("id"), req.ParentTopicID, req.From, req.To)
	} else {
		state, err = h.editorService.ReorderTopics(r.Context(), r.PathValue("id"), req.From, req.To)
	}
	h.respondState(w, state, err)
}

// SaveTOC persists the working tree
// POST /api/v1/drafts/{id}/editor/toc/save
func (h *EditorHandler) SaveTOC(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}
	state, err := h.editorService.SaveTOC(r.Context(), r.PathValue("id"))
	h.respondState(w, state, err)
}

// TOCChat interprets a natural-language structural instruction
// POST /api/v1/drafts/{id}/toc/chat
func (h *EditorHandler) TOCChat(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state, err := h.editorService.TOCChat(r.Context(), r.PathValue("id"), req.Message)
	h.respondState(w, state, err)
}

// TOCConfirm applies the pending chat operation
// POST /api/v1/drafts/{id}/toc/confirm
func (h *EditorHandler) TOCConfirm(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}
	state, err := h.editorService.TOCConfirm(r.Context(), r.PathValue("id"))
	h.respondState(w, state, err)
}

// TOCCancel discards the pending chat operation
// POST /api/v1/drafts/{id}/toc/cancel
func (h *EditorHandler) TOCCancel(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}
	state, err := h.editorService.TOCCancel(r.Context(), r.PathValue("id"))
	h.respondState(w, state, err)
}

// TOCDismiss clears an acknowledged advisory reply
// POST /api/v1/drafts/{id}/toc/dismiss
func (h *EditorHandler) TOCDismiss(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}
	state, err := h.editorService.TOCDismiss(r.Context(), r.PathValue("id"))
	h.respondState(w, state, err)
}
