package service

import (
	"context"
	"errors"
	"testing"

	"policyforge/internal/domain"
	"policyforge/internal/domain/models"
	"policyforge/internal/domain/services"
	"policyforge/internal/genai"
	"policyforge/internal/templates"
)

func newDraftService(t *testing.T, repo *fakeDraftRepo, gen *fakeGenerator) services.DraftService {
	t.Helper()
	registry, err := templates.NewRegistry()
	if err != nil {
		t.Fatalf("load templates: %v", err)
	}
	return NewDraftService(repo, fakeTxManager{}, gen, registry, nil, testLogger())
}

func createRequest() *services.CreateDraftRequest {
	return &services.CreateDraftRequest{
		Title:       "Access Control Policy",
		Description: "A policy governing password rules, account provisioning and access reviews.",
		Function:    "IT Security",
		CreatedBy:   "user-1",
		Client:      models.ClientMetadata{Name: "Acme", Country: "Netherlands", City: "Amsterdam", Industry: "Finance"},
		DetailLevel: 3,
	}
}

func TestInitializeDraftSeedsFromTemplate(t *testing.T) {
	repo := newFakeDraftRepo()
	svc := newDraftService(t, repo, &fakeGenerator{})

	draft, err := svc.InitializeDraft(context.Background(), createRequest())
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	if draft.Metadata.TOCSource != models.TOCSourceSimilaritySearch {
		t.Errorf("expected similarity_search source, got %s", draft.Metadata.TOCSource)
	}
	if draft.Metadata.MostSimilarPolicyID == "" {
		t.Error("expected a reference policy id")
	}
	if len(draft.TOC) == 0 {
		t.Fatal("expected a seeded tree")
	}
	for i, topic := range draft.TOC {
		if topic.Order != i+1 {
			t.Errorf("topic %d has order %d", i, topic.Order)
		}
		if topic.SourceTopicID == "" {
			t.Errorf("topic %d missing source link", i)
		}
	}

	stored, err := repo.GetDraft(context.Background(), draft.ID)
	if err != nil {
		t.Fatalf("draft not persisted: %v", err)
	}
	if len(stored.TOC) != len(draft.TOC) {
		t.Error("persisted tree differs from returned tree")
	}
}

func TestInitializeDraftFallsBackToGeneratedTOC(t *testing.T) {
	repo := newFakeDraftRepo()
	svc := newDraftService(t, repo, &fakeGenerator{})

	req := createRequest()
	req.Function = "Finance" // no templates for this function
	req.Description = "Quarterly expense reimbursement thresholds and approval chains."

	draft, err := svc.InitializeDraft(context.Background(), req)
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	if draft.Metadata.TOCSource != models.TOCSourceAIGenerated {
		t.Errorf("expected ai_generated source, got %s", draft.Metadata.TOCSource)
	}
	if draft.Metadata.MostSimilarPolicyID != "" {
		t.Error("generated outline must not carry a reference policy id")
	}
	if len(draft.TOC) != 2 {
		t.Errorf("expected the generated outline, got %d topics", len(draft.TOC))
	}
}

func TestInitializeDraftEnforcesQualityGate(t *testing.T) {
	repo := newFakeDraftRepo()
	gen := &fakeGenerator{
		validate: func(genai.ValidateRequest) (*genai.ValidateResponse, error) {
			return &genai.ValidateResponse{
				QualityScore: 35,
				Issues:       []string{"description too vague"},
				Suggestions:  []string{"name the systems in scope"},
			}, nil
		},
	}
	svc := newDraftService(t, repo, gen)

	_, err := svc.InitializeDraft(context.Background(), createRequest())
	if err == nil {
		t.Fatal("expected the quality gate to reject the draft")
	}

	var gateErr *domain.QualityGateError
	if !errors.As(err, &gateErr) {
		t.Fatalf("expected QualityGateError, got %v", err)
	}
	if gateErr.Score != 35 || len(gateErr.Issues) != 1 {
		t.Errorf("unexpected gate error: %+v", gateErr)
	}
	if !errors.Is(err, domain.ErrValidation) {
		t.Error("quality gate error should classify as validation")
	}
	if len(repo.drafts) != 0 {
		t.Error("rejected draft must not be persisted")
	}
}

func TestValidateDescriptionReportsImprovedText(t *testing.T) {
	gen := &fakeGenerator{
		validate: func(genai.ValidateRequest) (*genai.ValidateResponse, error) {
			return &genai.ValidateResponse{
				QualityScore:        42,
				ImprovedDescription: "A sharper description.",
			}, nil
		},
	}
	svc := newDraftService(t, newFakeDraftRepo(), gen)

	report, err := svc.ValidateDescription(context.Background(), createRequest())
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if report.Acceptable {
		t.Error("score 42 must not be acceptable")
	}
	if report.ImprovedDescription != "A sharper description." {
		t.Errorf("improved description not forwarded: %q", report.ImprovedDescription)
	}
}

func TestInitializeDraftRejectsInvalidRequest(t *testing.T) {
	svc := newDraftService(t, newFakeDraftRepo(), &fakeGenerator{})

	req := createRequest()
	req.Title = ""
	if _, err := svc.InitializeDraft(context.Background(), req); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error for empty title, got %v", err)
	}
}

func TestInitializeDraftBoundsDetailLevel(t *testing.T) {
	svc := newDraftService(t, newFakeDraftRepo(), &fakeGenerator{})

	for _, level := range []int{-1, 6} {
		req := createRequest()
		req.DetailLevel = level
		if _, err := svc.InitializeDraft(context.Background(), req); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("detail level %d should be rejected, got %v", level, err)
		}
	}

	// Zero means unset and passes
	req := createRequest()
	req.DetailLevel = 0
	if _, err := svc.InitializeDraft(context.Background(), req); err != nil {
		t.Errorf("unset detail level rejected: %v", err)
	}
}

func TestUpdateTOCPreservesSurvivingContent(t *testing.T) {
	repo := newFakeDraftRepo()
	draft := seedDraft(t, repo, "d1")
	repo.drafts["d1"].TOC[0].Content = "intro text"
	repo.drafts["d1"].TOC[0].ConversationHistory = []models.ConversationEntry{{UserMessage: "q", AIResponse: "a"}}

	svc := newDraftService(t, repo, &fakeGenerator{})

	// Reorder existing topics and add a new one with a temporary id
	items := []models.TOCUpdateItem{
		{ID: "t2", Topic: "Scope"},
		{ID: "t1", Topic: "Introduction", Subtopics: []models.TOCUpdateItem{{ID: "s1", Topic: "Purpose"}}},
		{ID: "temp_abc", Topic: "Enforcement"},
	}
	updated, err := svc.UpdateTOC(context.Background(), draft.ID, items)
	if err != nil {
		t.Fatalf("update toc failed: %v", err)
	}

	if len(updated.TOC) != 3 {
		t.Fatalf("expected 3 topics, got %d", len(updated.TOC))
	}
	if updated.TOC[0].TopicID != "t2" || updated.TOC[0].Order != 1 {
		t.Errorf("reorder not applied: %+v", updated.TOC[0])
	}
	intro := updated.TOC[1]
	if intro.Content != "intro text" || len(intro.ConversationHistory) != 1 {
		t.Errorf("surviving node lost its content: %+v", intro)
	}
	added := updated.TOC[2]
	if added.Topic != "Enforcement" || added.TopicID == "temp_abc" || added.TopicID == "" {
		t.Errorf("temporary id not replaced: %+v", added)
	}
}

func TestUpdateTOCRejectsEmptyTree(t *testing.T) {
	repo := newFakeDraftRepo()
	seedDraft(t, repo, "d1")
	svc := newDraftService(t, repo, &fakeGenerator{})

	if _, err := svc.UpdateTOC(context.Background(), "d1", nil); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestUpdateMetadataAppliesPartialChanges(t *testing.T) {
	repo := newFakeDraftRepo()
	seedDraft(t, repo, "d1")
	svc := newDraftService(t, repo, &fakeGenerator{})

	title := "Revised Access Policy"
	updated, err := svc.UpdateMetadata(context.Background(), "d1", &services.UpdateMetadataRequest{Title: &title})
	if err != nil {
		t.Fatalf("update metadata failed: %v", err)
	}
	if updated.Metadata.Title != title {
		t.Errorf("title not updated: %q", updated.Metadata.Title)
	}
	if updated.Metadata.Description == "" {
		t.Error("untouched fields must survive")
	}

	empty := ""
	if _, err := svc.UpdateMetadata(context.Background(), "d1", &services.UpdateMetadataRequest{Title: &empty}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error for empty title, got %v", err)
	}
}

func TestGetProgress(t *testing.T) {
	repo := newFakeDraftRepo()
	seedDraft(t, repo, "d1")
	repo.drafts["d1"].TOC[0].Content = "intro text"
	svc := newDraftService(t, repo, &fakeGenerator{})

	progress, err := svc.GetProgress(context.Background(), "d1")
	if err != nil {
		t.Fatalf("progress failed: %v", err)
	}
	if progress.Total != 3 || progress.Completed != 1 {
		t.Errorf("unexpected progress: %+v", progress)
	}
}

func TestDeleteDraft(t *testing.T) {
	repo := newFakeDraftRepo()
	seedDraft(t, repo, "d1")
	svc := newDraftService(t, repo, &fakeGenerator{})

	if err := svc.DeleteDraft(context.Background(), "d1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := svc.GetDraft(context.Background(), "d1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
	if err := svc.DeleteDraft(context.Background(), "d1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("double delete should be not found, got %v", err)
	}
}

func TestFunctionsCatalog(t *testing.T) {
	svc := newDraftService(t, newFakeDraftRepo(), &fakeGenerator{})
	functions := svc.Functions()
	if len(functions) != 3 {
		t.Errorf("expected 3 functions, got %v", functions)
	}
}
