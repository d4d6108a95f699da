// Package service implements the business logic behind the HTTP handlers:
// draft lifecycle, the editing session engine, and document export.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"policyforge/internal/config"
	"policyforge/internal/domain"
	"policyforge/internal/domain/models"
	"policyforge/internal/domain/repositories"
	"policyforge/internal/domain/services"
	"policyforge/internal/genai"
	"policyforge/internal/templates"
	"policyforge/internal/toc"
)

// draftService implements the DraftService interface
type draftService struct {
	draftRepo repositories.DraftRepository
	txManager repositories.TransactionManager
	generator genai.Generator
	templates *templates.Registry
	sessions  sessionCloser
	logger    *slog.Logger
}

// sessionCloser lets draft deletion evict the live editing session without
// depending on the full editor service.
type sessionCloser interface {
	CloseSession(draftID string)
}

// NewDraftService creates a new draft service
func NewDraftService(
	draftRepo repositories.DraftRepository,
	txManager repositories.TransactionManager,
	generator genai.Generator,
	registry *templates.Registry,
	sessions sessionCloser,
	logger *slog.Logger,
) services.DraftService {
	return &draftService{
		draftRepo: draftRepo,
		txManager: txManager,
		generator: generator,
		templates: registry,
		sessions:  sessions,
		logger:    logger,
	}
}

// ValidateDescription scores a proposed draft without creating anything.
func (s *draftService) ValidateDescription(ctx context.Context, req *services.CreateDraftRequest) (*services.DescriptionReport, error) {
	if err := s.validateCreateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	resp, err := s.generator.ValidateDescription(ctx, genai.ValidateRequest{
		Title:       req.Title,
		Description: req.Description,
		Function:    req.Function,
		DetailLevel: req.DetailLevel,
	})
	if err != nil {
		return nil, err
	}

	return &services.DescriptionReport{
		QualityScore:        resp.QualityScore,
		Acceptable:          resp.QualityScore >= config.MinDescriptionQuality,
		Issues:              resp.Issues,
		Suggestions:         resp.Suggestions,
		ImprovedDescription: resp.ImprovedDescription,
	}, nil
}

// InitializeDraft validates the request, enforces the quality gate, seeds
// the table of contents, and creates the draft. The outline comes from the
// best-matching reference policy when one exists, otherwise it is generated.
func (s *draftService) InitializeDraft(ctx context.Context, req *services.CreateDraftRequest) (*models.Draft, error) {
	report, err := s.ValidateDescription(ctx, req)
	if err != nil {
		return nil, err
	}
	if !report.Acceptable {
		return nil, &domain.QualityGateError{
			Score:       report.QualityScore,
			Issues:      report.Issues,
			Suggestions: report.Suggestions,
		}
	}

	now := time.Now().UTC()
	draft := &models.Draft{
		ID: uuid.New().String(),
		Metadata: models.DraftMetadata{
			Title:                  req.Title,
			Description:            req.Description,
			CreatedBy:              req.CreatedBy,
			CreatedAt:              now,
			ModifiedAt:             now,
			ClientMetadata:         req.Client,
			Function:               req.Function,
			ClientSpecificRequests: req.ClientSpecificRequests,
			SectorSpecificComments: req.SectorSpecificComments,
			Regulations:            req.Regulations,
			DetailLevel:            req.DetailLevel,
		},
	}

	if policy, ok := s.templates.BestMatch(req.Function, req.Description); ok {
		draft.TOC = templates.SeedTOC(policy)
		draft.Metadata.TOCSource = models.TOCSourceSimilaritySearch
		draft.Metadata.MostSimilarPolicyID = policy.PolicyID
	} else {
		tree, err := s.generateTOC(ctx, req)
		if err != nil {
			return nil, err
		}
		draft.TOC = tree
		draft.Metadata.TOCSource = models.TOCSourceAIGenerated
	}

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		return s.draftRepo.CreateDraft(txCtx, draft)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("draft initialized",
		"id", draft.ID,
		"title", draft.Metadata.Title,
		"function", draft.Metadata.Function,
		"toc_source", draft.Metadata.TOCSource,
		"topics", len(draft.TOC),
	)
	return draft, nil
}

func (s *draftService) generateTOC(ctx context.Context, req *services.CreateDraftRequest) ([]models.Topic, error) {
	var regulations []string
	if req.Regulations != "" {
		regulations = []string{req.Regulations}
	}

	resp, err := s.generator.GenerateTOC(ctx, genai.TOCRequest{
		Title:       req.Title,
		Description: req.Description,
		Function:    req.Function,
		DetailLevel: req.DetailLevel,
		Client:      req.Client,
		Regulations: regulations,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Topics) == 0 {
		return nil, fmt.Errorf("%w: generation service returned an empty outline", domain.ErrUnavailable)
	}

	tree := make([]models.Topic, 0, len(resp.Topics))
	for i, tt := range resp.Topics {
		topic := models.Topic{
			TopicID:             uuid.New().String(),
			Topic:               tt.Topic,
			Order:               i + 1,
			ConversationHistory: []models.ConversationEntry{},
			Subtopics:           make([]models.Subtopic, 0, len(tt.Subtopics)),
		}
		for j, ts := range tt.Subtopics {
			topic.Subtopics = append(topic.Subtopics, models.Subtopic{
				SubtopicID:          uuid.New().String(),
				Topic:               ts.Topic,
				Order:               j + 1,
				ConversationHistory: []models.ConversationEntry{},
			})
		}
		tree = append(tree, topic)
	}
	return tree, nil
}

// ListDrafts returns summaries matching the filters.
func (s *draftService) ListDrafts(ctx context.Context, filters models.DraftFilters) ([]models.DraftSummary, error) {
	return s.draftRepo.ListDrafts(ctx, filters)
}

// GetDraft retrieves a full draft.
func (s *draftService) GetDraft(ctx context.Context, id string) (*models.Draft, error) {
	return s.draftRepo.GetDraft(ctx, id)
}

// DeleteDraft removes a draft, its tree, and any live editing session.
func (s *draftService) DeleteDraft(ctx context.Context, id string) error {
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		return s.draftRepo.DeleteDraft(txCtx, id)
	})
	if err != nil {
		return err
	}

	if s.sessions != nil {
		s.sessions.CloseSession(id)
	}
	s.logger.Info("draft deleted", "id", id)
	return nil
}

// UpdateMetadata replaces a draft's editable metadata.
func (s *draftService) UpdateMetadata(ctx context.Context, id string, req *services.UpdateMetadataRequest) (*models.Draft, error) {
	draft, err := s.draftRepo.GetDraft(ctx, id)
	if err != nil {
		return nil, err
	}

	m := &draft.Metadata
	if req.Title != nil {
		m.Title = *req.Title
	}
	if req.Description != nil {
		m.Description = *req.Description
	}
	if req.Client != nil {
		m.ClientMetadata = *req.Client
	}
	if req.Function != nil {
		m.Function = *req.Function
	}
	if req.ClientSpecificRequests != nil {
		m.ClientSpecificRequests = *req.ClientSpecificRequests
	}
	if req.SectorSpecificComments != nil {
		m.SectorSpecificComments = *req.SectorSpecificComments
	}
	if req.Regulations != nil {
		m.Regulations = *req.Regulations
	}
	if req.DetailLevel != nil {
		m.DetailLevel = *req.DetailLevel
	}

	if err := s.validateMetadata(m); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if err := s.draftRepo.UpdateMetadata(ctx, id, m); err != nil {
		return nil, err
	}
	return s.draftRepo.GetDraft(ctx, id)
}

// UpdateTOC reconciles the stored tree with the submitted structure. The
// wire shape carries only structure; content and conversation history are
// taken from the stored tree for surviving nodes.
func (s *draftService) UpdateTOC(ctx context.Context, id string, items []models.TOCUpdateItem) (*models.Draft, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: toc must contain at least one topic", domain.ErrValidation)
	}

	draft, err := s.draftRepo.GetDraft(ctx, id)
	if err != nil {
		return nil, err
	}

	tree := mergeTOCUpdate(draft.TOC, items)

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		_, err := s.draftRepo.UpdateTOCStructure(txCtx, id, tree)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.sessions != nil {
		// The stored structure changed under any live session; drop it so
		// the next request rebuilds from the database.
		s.sessions.CloseSession(id)
	}

	s.logger.Info("draft toc updated", "id", id, "topics", len(tree))
	return s.draftRepo.GetDraft(ctx, id)
}

// mergeTOCUpdate builds the full tree for persistence: structure from the
// submitted items, content and history from the stored tree where the node
// survives.
func mergeTOCUpdate(stored []models.Topic, items []models.TOCUpdateItem) []models.Topic {
	tree := make([]models.Topic, 0, len(items))
	for i, item := range items {
		topic := models.Topic{
			TopicID:             item.ID,
			Topic:               item.Topic,
			Order:               i + 1,
			SourceTopicID:       item.SourceTopicID,
			ConversationHistory: []models.ConversationEntry{},
			Subtopics:           make([]models.Subtopic, 0, len(item.Subtopics)),
		}
		if existing := toc.FindTopic(stored, item.ID); existing != nil {
			topic.Content = existing.Content
			topic.Summary = existing.Summary
			topic.ConversationHistory = existing.ConversationHistory
			if topic.SourceTopicID == "" {
				topic.SourceTopicID = existing.SourceTopicID
			}
		}
		for j, subItem := range item.Subtopics {
			sub := models.Subtopic{
				SubtopicID:          subItem.ID,
				Topic:               subItem.Topic,
				Order:               j + 1,
				SourceSubtopicID:    subItem.SourceSubtopicID,
				ConversationHistory: []models.ConversationEntry{},
			}
			if _, existing := toc.FindSubtopic(stored, subItem.ID); existing != nil {
				sub.Content = existing.Content
				sub.Summary = existing.Summary
				sub.ConversationHistory = existing.ConversationHistory
				if sub.SourceSubtopicID == "" {
					sub.SourceSubtopicID = existing.SourceSubtopicID
				}
			}
			topic.Subtopics = append(topic.Subtopics, sub)
		}
		tree = append(tree, topic)
	}
	return tree
}

// GetProgress reports content completion across the draft's tree.
func (s *draftService) GetProgress(ctx context.Context, id string) (*models.DraftProgress, error) {
	draft, err := s.draftRepo.GetDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	progress := toc.Progress(draft.TOC)
	return &progress, nil
}

// Functions lists the business functions drafts can be created for.
func (s *draftService) Functions() []string {
	return s.templates.Functions()
}

func (s *draftService) validateCreateRequest(req *services.CreateDraftRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Title, validation.Required, validation.Length(1, config.MaxDraftTitleLength)),
		validation.Field(&req.Description, validation.Required),
		validation.Field(&req.Function, validation.Required),
		// Zero means unset; a set level must fall within bounds.
		validation.Field(&req.DetailLevel,
			validation.When(req.DetailLevel != 0,
				validation.Min(config.MinDetailLevel), validation.Max(config.MaxDetailLevel))),
	)
}

func (s *draftService) validateMetadata(m *models.DraftMetadata) error {
	return validation.ValidateStruct(m,
		validation.Field(&m.Title, validation.Required, validation.Length(1, config.MaxDraftTitleLength)),
		validation.Field(&m.Description, validation.Required),
		validation.Field(&m.DetailLevel,
			validation.When(m.DetailLevel != 0,
				validation.Min(config.MinDetailLevel), validation.Max(config.MaxDetailLevel))),
	)
}
