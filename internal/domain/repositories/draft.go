package repositories

import (
	"context"

	"policyforge/internal/domain/models"
)

// DraftRepository persists drafts and their topic trees. Structural writes
// run inside a transaction supplied via the context; single-node content
// writes are standalone.
type DraftRepository interface {
	// CreateDraft inserts the draft with its full seeded tree.
	CreateDraft(ctx context.Context, draft *models.Draft) error

	// GetDraft assembles a draft with its ordered topics and subtopics.
	GetDraft(ctx context.Context, id string) (*models.Draft, error)

	// ListDrafts returns summaries matching the filters, newest first.
	ListDrafts(ctx context.Context, filters models.DraftFilters) ([]models.DraftSummary, error)

	// UpdateMetadata replaces the draft's metadata fields.
	UpdateMetadata(ctx context.Context, id string, metadata *models.DraftMetadata) error

	// UpdateTOCStructure reconciles the stored tree with the given one:
	// missing nodes are removed, temporary ids are replaced with real ones,
	// and the resulting tree is returned. Runs inside a transaction.
	UpdateTOCStructure(ctx context.Context, draftID string, topics []models.Topic) ([]models.Topic, error)

	// UpdateNodeContent writes one node's content, summary, and
	// conversation history.
	UpdateNodeContent(ctx context.Context, draftID, nodeID string, isSubtopic bool, content, summary string, history []models.ConversationEntry) error

	// DeleteDraft removes the draft and its tree.
	DeleteDraft(ctx context.Context, id string) error
}
