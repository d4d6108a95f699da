package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"policyforge/internal/domain/models"
	"policyforge/internal/domain/services"
)

// exportTimeout bounds headless rendering for a single export.
const exportTimeout = 2 * time.Minute

// exportService implements the ExportService interface
type exportService struct {
	drafts     services.DraftService
	chromePath string
	markdown   goldmark.Markdown
	logger     *slog.Logger
}

// NewExportService creates a new export service. chromePath may be empty,
// in which case the headless browser is resolved from the system path.
func NewExportService(drafts services.DraftService, chromePath string, logger *slog.Logger) services.ExportService {
	return &exportService{
		drafts:     drafts,
		chromePath: chromePath,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		),
		logger: logger,
	}
}

// ExportWord renders the draft as a Word-compatible HTML document. Word
// opens styled HTML served as application/msword; no OOXML writer needed.
func (s *exportService) ExportWord(ctx context.Context, draftID string, deleteAfter bool) (*services.ExportResult, error) {
	draft, err := s.drafts.GetDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}

	htmlDoc, err := s.renderHTML(draft)
	if err != nil {
		return nil, err
	}

	result := &services.ExportResult{
		Filename:    exportFilename(draft.Metadata.Title, "doc"),
		ContentType: "application/msword",
		Data:        []byte(htmlDoc),
	}

	if err := s.finishExport(ctx, draft, "word", deleteAfter); err != nil {
		return nil, err
	}
	return result, nil
}

// ExportPDF renders the draft to PDF through a headless browser.
func (s *exportService) ExportPDF(ctx context.Context, draftID string, deleteAfter bool) (*services.ExportResult, error) {
	draft, err := s.drafts.GetDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}

	htmlDoc, err := s.renderHTML(draft)
	if err != nil {
		return nil, err
	}

	pdfData, err := s.printToPDF(ctx, htmlDoc)
	if err != nil {
		return nil, err
	}

	result := &services.ExportResult{
		Filename:    exportFilename(draft.Metadata.Title, "pdf"),
		ContentType: "application/pdf",
		Data:        pdfData,
	}

	if err := s.finishExport(ctx, draft, "pdf", deleteAfter); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *exportService) finishExport(ctx context.Context, draft *models.Draft, format string, deleteAfter bool) error {
	s.logger.Info("draft exported", "id", draft.ID, "format", format, "delete_after", deleteAfter)
	if !deleteAfter {
		return nil
	}
	return s.drafts.DeleteDraft(ctx, draft.ID)
}

// renderHTML assembles the full document: title page metadata, then every
// topic and subtopic in order with its markdown content converted to HTML.
func (s *exportService) renderHTML(draft *models.Draft) (string, error) {
	var body strings.Builder

	body.WriteString(fmt.Sprintf("<h1>%s</h1>\n", html.EscapeString(draft.Metadata.Title)))
	if client := draft.Metadata.ClientMetadata.Name; client != "" {
		body.WriteString(fmt.Sprintf("<p class=\"meta\">Prepared for %s</p>\n", html.EscapeString(client)))
	}
	body.WriteString(fmt.Sprintf("<p class=\"meta\">%s</p>\n", draft.Metadata.ModifiedAt.Format("2 January 2006")))

	for i := range draft.TOC {
		topic := &draft.TOC[i]
		body.WriteString(fmt.Sprintf("<h2>%d. %s</h2>\n", topic.Order, html.EscapeString(topic.Topic)))
		if err := s.writeContent(&body, topic.Content); err != nil {
			return "", err
		}
		for j := range topic.Subtopics {
			sub := &topic.Subtopics[j]
			body.WriteString(fmt.Sprintf("<h3>%d.%d %s</h3>\n", topic.Order, sub.Order, html.EscapeString(sub.Topic)))
			if err := s.writeContent(&body, sub.Content); err != nil {
				return "", err
			}
		}
	}

	return fmt.Sprintf(documentTemplate, html.EscapeString(draft.Metadata.Title), body.String()), nil
}

func (s *exportService) writeContent(body *strings.Builder, content string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(content), &buf); err != nil {
		return fmt.Errorf("failed to convert markdown: %w", err)
	}
	body.Write(buf.Bytes())
	return nil
}

// printToPDF renders the HTML in headless Chromium and prints it to A4.
func (s *exportService) printToPDF(ctx context.Context, htmlDoc string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, exportTimeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if s.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(s.chromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	// Base64 data URL handles every special character in the document
	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(htmlDoc))

	var pdfData []byte
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdfData, _, err = page.PrintToPDF().
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				WithMarginTop(0.75).
				WithMarginBottom(0.75).
				WithMarginLeft(0.75).
				WithMarginRight(0.75).
				WithPrintBackground(true).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	if len(pdfData) == 0 {
		return nil, fmt.Errorf("PDF generation produced empty result")
	}
	return pdfData, nil
}

// exportFilename derives the download name from the draft title.
func exportFilename(title, ext string) string {
	name := strings.TrimSpace(title)
	if name == "" {
		name = "draft"
	}
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		return r
	}, name)
	return name + "." + ext
}

const documentTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>%s</title>
<style>
  body { font-family: Georgia, 'Times New Roman', serif; color: #1a1a1a; line-height: 1.6; max-width: 48em; margin: 0 auto; padding: 2em; }
  h1 { font-size: 1.9em; border-bottom: 2px solid #1a1a1a; padding-bottom: 0.3em; }
  h2 { font-size: 1.4em; margin-top: 1.8em; }
  h3 { font-size: 1.15em; margin-top: 1.4em; }
  p.meta { color: #555; margin: 0.2em 0; }
  table { border-collapse: collapse; width: 100%%; }
  th, td { border: 1px solid #999; padding: 0.4em 0.6em; text-align: left; }
</style>
</head>
<body>
%s
</body>
</html>`
