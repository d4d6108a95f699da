package services

import (
	"context"

	"policyforge/internal/domain/models"
)

// EditorService runs the per-draft editing session: node selection, content
// generation, manual and automatic saves, and structural edits including
// the TOC chat workflow.
type EditorService interface {
	// Select makes the node the session's active item, seeding its state on
	// first visit.
	Select(ctx context.Context, draftID, nodeID string) (*EditorState, error)

	// SendMessage runs one generation turn against the selected node.
	SendMessage(ctx context.Context, draftID, message string) (*EditorState, error)

	// GenerateNode selects the node and runs one generation turn against it.
	GenerateNode(ctx context.Context, draftID, nodeID, prompt string) (*EditorState, error)

	// EditContent replaces the selected node's live content and arms autosave.
	EditContent(ctx context.Context, draftID, content string) (*EditorState, error)

	// SaveContent persists the selected node's content immediately and
	// advances the selection to the next item in document order.
	SaveContent(ctx context.Context, draftID string) (*EditorState, error)

	// State returns the session's current view without changing anything.
	State(ctx context.Context, draftID string) (*EditorState, error)

	// RenameNode, DeleteNode, AddTopic, AddSubtopic, ReorderTopics, and
	// ReorderSubtopics apply direct structural edits to the working tree.
	RenameNode(ctx context.Context, draftID, nodeID string, isSubtopic bool, title string) (*EditorState, error)
	DeleteNode(ctx context.Context, draftID, nodeID string, isSubtopic bool) (*EditorState, error)
	AddTopic(ctx context.Context, draftID, title string) (*EditorState, error)
	AddSubtopic(ctx context.Context, draftID, parentTopicID, title string) (*EditorState, error)
	ReorderTopics(ctx context.Context, draftID string, from, to int) (*EditorState, error)
	ReorderSubtopics(ctx context.Context, draftID, parentTopicID string, from, to int) (*EditorState, error)

	// SaveTOC persists the working tree when it differs from the stored one.
	SaveTOC(ctx context.Context, draftID string) (*EditorState, error)

	// TOCChat interprets a natural-language structural instruction and, when
	// confirmable, prepares a preview.
	TOCChat(ctx context.Context, draftID, message string) (*EditorState, error)

	// TOCConfirm applies the pending operation; TOCCancel and TOCDismiss
	// discard it.
	TOCConfirm(ctx context.Context, draftID string) (*EditorState, error)
	TOCCancel(ctx context.Context, draftID string) (*EditorState, error)
	TOCDismiss(ctx context.Context, draftID string) (*EditorState, error)

	// CloseSession evicts the draft's session, used on draft deletion.
	CloseSession(draftID string)
}

// EditorState is the full session view returned by every editor operation.
type EditorState struct {
	DraftID     string                     `json:"draft_id"`
	Selected    *models.SelectedItem       `json:"selected,omitempty"`
	Node        *models.NodeState          `json:"node,omitempty"`
	TOC         []models.Topic             `json:"toc"`
	TOCDirty    bool                       `json:"toc_dirty"`
	ChatState   string                     `json:"chat_state"`
	ChatHistory []models.ConversationEntry `json:"chat_history,omitempty"`
	PendingOp   *models.TOCOperation       `json:"pending_operation,omitempty"`
	TOCPreview  []models.Topic             `json:"toc_preview,omitempty"`
	Progress    models.DraftProgress       `json:"progress"`
}
