package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"policyforge/internal/domain/services"
	"policyforge/internal/httputil"
)

// ExportHandler handles document export HTTP requests
type ExportHandler struct {
	exportService services.ExportService
	logger        *slog.Logger
}

// NewExportHandler creates a new export handler
func NewExportHandler(exportService services.ExportService, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{
		exportService: exportService,
		logger:        logger,
	}
}

// ExportWord downloads the draft as a Word document
// POST /api/v1/drafts/{id}/export/word
func (h *ExportHandler) ExportWord(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	result, err := h.exportService.ExportWord(r.Context(), r.PathValue("id"), deleteAfterExport(r))
	if err != nil {
		handleError(w, err)
		return
	}

	writeAttachment(w, result)
}

// ExportPDF downloads the draft as a PDF
// POST /api/v1/drafts/{id}/export/pdf
func (h *ExportHandler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	result, err := h.exportService.ExportPDF(r.Context(), r.PathValue("id"), deleteAfterExport(r))
	if err != nil {
		handleError(w, err)
		return
	}

	writeAttachment(w, result)
}

// deleteAfterExport reads the flag from the body or the query string. The
// body is optional, so decode errors are ignored.
func deleteAfterExport(r *http.Request) bool {
	var req struct {
		DeleteAfterExport bool `json:"delete_after_export"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	return req.DeleteAfterExport || httputil.QueryBool(r, "delete_after_export")
}

func writeAttachment(w http.ResponseWriter, result *services.ExportResult) {
	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(result.Data)
}
