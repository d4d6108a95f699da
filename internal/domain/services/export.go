package services

import "context"

// ExportService renders a draft into downloadable documents
type ExportService interface {
	// ExportWord renders the draft as a Word-compatible document.
	ExportWord(ctx context.Context, draftID string, deleteAfter bool) (*ExportResult, error)

	// ExportPDF renders the draft as a PDF.
	ExportPDF(ctx context.Context, draftID string, deleteAfter bool) (*ExportResult, error)
}

// ExportResult is a rendered document ready to stream to the client
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}
