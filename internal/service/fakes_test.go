package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"policyforge/internal/domain"
	"policyforge/internal/domain/models"
	"policyforge/internal/domain/repositories"
	"policyforge/internal/genai"
	"policyforge/internal/toc"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeDraftRepo is an in-memory DraftRepository.
type fakeDraftRepo struct {
	mu           sync.Mutex
	drafts       map[string]*models.Draft
	fail         error
	contentSaves int
}

func newFakeDraftRepo() *fakeDraftRepo {
	return &fakeDraftRepo{drafts: make(map[string]*models.Draft)}
}

func (r *fakeDraftRepo) CreateDraft(ctx context.Context, draft *models.Draft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	if _, ok := r.drafts[draft.ID]; ok {
		return fmt.Errorf("draft %s already exists: %w", draft.ID, domain.ErrConflict)
	}
	clone := *draft
	clone.TOC = toc.Clone(draft.TOC)
	r.drafts[draft.ID] = &clone
	return nil
}

func (r *fakeDraftRepo) GetDraft(ctx context.Context, id string) (*models.Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.drafts[id]
	if !ok {
		return nil, fmt.Errorf("draft %s: %w", id, domain.ErrNotFound)
	}
	clone := *stored
	clone.TOC = toc.Clone(stored.TOC)
	return &clone, nil
}

func (r *fakeDraftRepo) ListDrafts(ctx context.Context, filters models.DraftFilters) ([]models.DraftSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	summaries := []models.DraftSummary{}
	for _, d := range r.drafts {
		if filters.Title != "" && !strings.Contains(strings.ToLower(d.Metadata.Title), strings.ToLower(filters.Title)) {
			continue
		}
		if filters.Function != "" && !strings.Contains(strings.ToLower(d.Metadata.Function), strings.ToLower(filters.Function)) {
			continue
		}
		client := d.Metadata.ClientMetadata
		summaries = append(summaries, models.DraftSummary{
			DraftID:        d.ID,
			Title:          d.Metadata.Title,
			Description:    d.Metadata.Description,
			CreatedBy:      d.Metadata.CreatedBy,
			CreatedAt:      d.Metadata.CreatedAt,
			ModifiedAt:     d.Metadata.ModifiedAt,
			ClientMetadata: &client,
			Function:       d.Metadata.Function,
		})
	}
	return summaries, nil
}

func (r *fakeDraftRepo) UpdateMetadata(ctx context.Context, id string, m *models.DraftMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.drafts[id]
	if !ok {
		return fmt.Errorf("draft %s: %w", id, domain.ErrNotFound)
	}
	stored.Metadata = *m
	return nil
}

func (r *fakeDraftRepo) UpdateTOCStructure(ctx context.Context, draftID string, topics []models.Topic) ([]models.Topic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.drafts[draftID]
	if !ok {
		return nil, fmt.Errorf("draft %s: %w", draftID, domain.ErrNotFound)
	}
	out := toc.Clone(topics)
	for i := range out {
		if toc.IsTempID(out[i].TopicID) {
			out[i].TopicID = uuid.New().String()
		}
		for j := range out[i].Subtopics {
			if toc.IsTempID(out[i].Subtopics[j].SubtopicID) {
				out[i].Subtopics[j].SubtopicID = uuid.New().String()
			}
		}
	}
	stored.TOC = toc.Clone(out)
	return out, nil
}

func (r *fakeDraftRepo) UpdateNodeContent(ctx context.Context, draftID, nodeID string, isSubtopic bool, content, summary string, history []models.ConversationEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contentSaves++
	if r.fail != nil {
		return r.fail
	}
	stored, ok := r.drafts[draftID]
	if !ok {
		return fmt.Errorf("draft %s: %w", draftID, domain.ErrNotFound)
	}
	if toc.FindItem(stored.TOC, nodeID) == nil {
		return fmt.Errorf("node %s: %w", nodeID, domain.ErrNotFound)
	}
	stored.TOC = toc.SetContent(stored.TOC, nodeID, isSubtopic, content, history)
	return nil
}

// ContentSaves counts UpdateNodeContent calls, including failed ones.
func (r *fakeDraftRepo) ContentSaves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.contentSaves
}

// SetFail makes mutating calls return err until cleared.
func (r *fakeDraftRepo) SetFail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = err
}

func (r *fakeDraftRepo) DeleteDraft(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.drafts[id]; !ok {
		return fmt.Errorf("draft %s: %w", id, domain.ErrNotFound)
	}
	delete(r.drafts, id)
	return nil
}

// fakeTxManager runs the function without a real transaction.
type fakeTxManager struct{}

func (fakeTxManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	return fn(ctx)
}

// fakeGenerator scripts the generation service per call.
type fakeGenerator struct {
	validate  func(genai.ValidateRequest) (*genai.ValidateResponse, error)
	toc       func(genai.TOCRequest) (*genai.TOCResponse, error)
	generate  func(genai.GenerateRequest) (*genai.GenerateResponse, error)
	interpret func(genai.TOCChatRequest) (*models.TOCOperation, error)
}

func (g *fakeGenerator) ValidateDescription(ctx context.Context, req genai.ValidateRequest) (*genai.ValidateResponse, error) {
	if g.validate == nil {
		return &genai.ValidateResponse{QualityScore: 90}, nil
	}
	return g.validate(req)
}

func (g *fakeGenerator) GenerateTOC(ctx context.Context, req genai.TOCRequest) (*genai.TOCResponse, error) {
	if g.toc == nil {
		return &genai.TOCResponse{Topics: []genai.TOCTopic{{Topic: "Introduction"}, {Topic: "Scope"}}}, nil
	}
	return g.toc(req)
}

func (g *fakeGenerator) GenerateContent(ctx context.Context, req genai.GenerateRequest) (*genai.GenerateResponse, error) {
	if g.generate == nil {
		return &genai.GenerateResponse{Content: "generated text"}, nil
	}
	return g.generate(req)
}

func (g *fakeGenerator) InterpretTOCChat(ctx context.Context, req genai.TOCChatRequest) (*models.TOCOperation, error) {
	if g.interpret == nil {
		return &models.TOCOperation{Interpretation: "noted", RequiresConfirmation: false}, nil
	}
	return g.interpret(req)
}

// seedDraft installs a draft with a known tree directly into the repo.
func seedDraft(t *testing.T, repo *fakeDraftRepo, id string) *models.Draft {
	t.Helper()
	draft := &models.Draft{
		ID: id,
		Metadata: models.DraftMetadata{
			Title:       "Access Control Policy",
			Description: "Rules for account provisioning and access reviews.",
			Function:    "IT Security",
		},
		TOC: []models.Topic{
			{
				TopicID: "t1", Topic: "Introduction", Order: 1,
				Subtopics: []models.Subtopic{
					{SubtopicID: "s1", Topic: "Purpose", Order: 1},
				},
			},
			{TopicID: "t2", Topic: "Scope", Order: 2, Subtopics: []models.Subtopic{}},
		},
	}
	if err := repo.CreateDraft(context.Background(), draft); err != nil {
		t.Fatalf("seed draft: %v", err)
	}
	return draft
}
