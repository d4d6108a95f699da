package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"policyforge/internal/domain/models"
	"policyforge/internal/domain/services"
)

// fakeDraftService serves a single draft to the export service.
type fakeDraftService struct {
	services.DraftService
	draft   *models.Draft
	deleted []string
}

func (f *fakeDraftService) GetDraft(ctx context.Context, id string) (*models.Draft, error) {
	return f.draft, nil
}

func (f *fakeDraftService) DeleteDraft(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func exportDraft() *models.Draft {
	return &models.Draft{
		ID: "d1",
		Metadata: models.DraftMetadata{
			Title:          "Access & Control Policy",
			ClientMetadata: models.ClientMetadata{Name: "Acme <Group>"},
			ModifiedAt:     time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
		},
		TOC: []models.Topic{
			{
				TopicID: "t1", Topic: "Introduction", Order: 1,
				Content: "This policy **applies** to all staff.",
				Subtopics: []models.Subtopic{
					{SubtopicID: "s1", Topic: "Purpose", Order: 1, Content: "- account provisioning\n- access reviews"},
				},
			},
			{TopicID: "t2", Topic: "Scope", Order: 2},
		},
	}
}

func TestRenderHTMLNumbersAndEscapes(t *testing.T) {
	svc := NewExportService(&fakeDraftService{draft: exportDraft()}, "", testLogger()).(*exportService)

	doc, err := svc.renderHTML(exportDraft())
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	for _, want := range []string{
		"<h1>Access &amp; Control Policy</h1>",
		"Prepared for Acme &lt;Group&gt;",
		"14 March 2026",
		"<h2>1. Introduction</h2>",
		"<h3>1.1 Purpose</h3>",
		"<h2>2. Scope</h2>",
		"<strong>applies</strong>",
		"<li>account provisioning</li>",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q", want)
		}
	}
}

func TestRenderHTMLSkipsEmptyContent(t *testing.T) {
	svc := NewExportService(&fakeDraftService{draft: exportDraft()}, "", testLogger()).(*exportService)

	draft := exportDraft()
	draft.TOC[1].Content = "   \n"
	doc, err := svc.renderHTML(draft)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(doc, "<h2>") != 2 {
		t.Error("topic headings missing")
	}
}

func TestExportWordProducesMswordDocument(t *testing.T) {
	drafts := &fakeDraftService{draft: exportDraft()}
	svc := NewExportService(drafts, "", testLogger())

	result, err := svc.ExportWord(context.Background(), "d1", false)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if result.ContentType != "application/msword" {
		t.Errorf("unexpected content type %s", result.ContentType)
	}
	if result.Filename != "Access & Control Policy.doc" {
		t.Errorf("unexpected filename %s", result.Filename)
	}
	if len(result.Data) == 0 {
		t.Error("empty document")
	}
	if len(drafts.deleted) != 0 {
		t.Error("draft deleted without delete_after")
	}
}

func TestExportWordDeleteAfter(t *testing.T) {
	drafts := &fakeDraftService{draft: exportDraft()}
	svc := NewExportService(drafts, "", testLogger())

	if _, err := svc.ExportWord(context.Background(), "d1", true); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if len(drafts.deleted) != 1 || drafts.deleted[0] != "d1" {
		t.Errorf("draft not deleted: %v", drafts.deleted)
	}
}

func TestExportFilename(t *testing.T) {
	cases := []struct {
		title, ext, want string
	}{
		{"Access Control Policy", "pdf", "Access Control Policy.pdf"},
		{"Q1: plans/targets?", "doc", "Q1- plans-targets-.doc"},
		{"  ", "pdf", "draft.pdf"},
	}
	for _, tc := range cases {
		if got := exportFilename(tc.title, tc.ext); got != tc.want {
			t.Errorf("exportFilename(%q, %q) = %q, want %q", tc.title, tc.ext, got, tc.want)
		}
	}
}
