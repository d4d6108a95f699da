package services

import (
	"context"

	"policyforge/internal/domain/models"
)

// DraftService handles draft lifecycle business logic
type DraftService interface {
	// ValidateDescription scores a proposed draft without creating anything.
	ValidateDescription(ctx context.Context, req *CreateDraftRequest) (*DescriptionReport, error)

	// InitializeDraft validates the request, enforces the quality gate, and
	// creates the draft with a seeded table of contents.
	InitializeDraft(ctx context.Context, req *CreateDraftRequest) (*models.Draft, error)

	// ListDrafts returns summaries matching the filters.
	ListDrafts(ctx context.Context, filters models.DraftFilters) ([]models.DraftSummary, error)

	// GetDraft retrieves a full draft.
	GetDraft(ctx context.Context, id string) (*models.Draft, error)

	// DeleteDraft removes a draft and its tree.
	DeleteDraft(ctx context.Context, id string) error

	// UpdateMetadata replaces a draft's editable metadata.
	UpdateMetadata(ctx context.Context, id string, req *UpdateMetadataRequest) (*models.Draft, error)

	// UpdateTOC reconciles the stored tree with the submitted structure,
	// preserving generated content on surviving nodes.
	UpdateTOC(ctx context.Context, id string, topics []models.TOCUpdateItem) (*models.Draft, error)

	// GetProgress reports content completion across the draft's tree.
	GetProgress(ctx context.Context, id string) (*models.DraftProgress, error)

	// Functions lists the business functions drafts can be created for.
	Functions() []string
}

// CreateDraftRequest carries everything needed to validate and create a draft
type CreateDraftRequest struct {
	Title                  string                `json:"title"`
	Description            string                `json:"description"`
	Function               string                `json:"function"`
	CreatedBy              string                `json:"-"`
	Client                 models.ClientMetadata `json:"client_metadata"`
	ClientSpecificRequests string                `json:"client_specific_requests,omitempty"`
	SectorSpecificComments string                `json:"sector_specific_comments,omitempty"`
	Regulations            string                `json:"regulations,omitempty"`
	DetailLevel            int                   `json:"detail_level,omitempty"`
}

// DescriptionReport is the quality verdict on a draft description
type DescriptionReport struct {
	QualityScore        int      `json:"quality_score"`
	Acceptable          bool     `json:"acceptable"`
	Issues              []string `json:"issues,omitempty"`
	Suggestions         []string `json:"suggestions,omitempty"`
	ImprovedDescription string   `json:"improved_description,omitempty"`
}

// UpdateMetadataRequest carries the editable metadata fields. Nil pointers
// leave the stored value untouched.
type UpdateMetadataRequest struct {
	Title                  *string                `json:"title,omitempty"`
	Description            *string                `json:"description,omitempty"`
	Client                 *models.ClientMetadata `json:"client_metadata,omitempty"`
	Function               *string                `json:"function,omitempty"`
	ClientSpecificRequests *string                `json:"client_specific_requests,omitempty"`
	SectorSpecificComments *string                `json:"sector_specific_comments,omitempty"`
	Regulations            *string                `json:"regulations,omitempty"`
	DetailLevel            *int                   `json:"detail_level,omitempty"`
}
