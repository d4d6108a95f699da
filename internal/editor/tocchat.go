package editor

import (
	"time"

	"policyforge/internal/domain"
	"policyforge/internal/domain/models"
)

// ChatState is the lifecycle phase of the draft-level TOC chat.
type ChatState string

const (
	// StateIdle means no request is outstanding and no preview is pending.
	StateIdle ChatState = "idle"
	// StateAwaitingReply means a chat message has been sent and the
	// interpretation has not come back yet.
	StateAwaitingReply ChatState = "awaiting_reply"
	// StatePreviewReady means a confirmable operation and its preview tree
	// are waiting for the user's decision.
	StatePreviewReady ChatState = "preview_ready"
	// StateAcknowledged means the reply was advisory only. The user can
	// read and dismiss it; there is nothing to confirm.
	StateAcknowledged ChatState = "acknowledged"
)

// TOCChat holds the draft-level conversation that drives structural edits
// through natural language. Unlike node conversations it is not persisted;
// it exists for the life of the editing session. All methods are safe for
// concurrent use through the session's own locking, so this type stays
// lock-free.
type TOCChat struct {
	state     ChatState
	history   []models.ConversationEntry
	pendingOp *models.TOCOperation
	preview   []models.Topic
}

// NewTOCChat returns an idle chat.
func NewTOCChat() *TOCChat {
	return &TOCChat{state: StateIdle}
}

// State returns the current phase.
func (c *TOCChat) State() ChatState {
	return c.state
}

// History returns a copy of the conversation so far.
func (c *TOCChat) History() []models.ConversationEntry {
	return append([]models.ConversationEntry(nil), c.history...)
}

// Pending returns the operation awaiting confirmation, or nil.
func (c *TOCChat) Pending() *models.TOCOperation {
	if c.pendingOp == nil {
		return nil
	}
	op := *c.pendingOp
	return &op
}

// Preview returns the proposed tree, or nil when no preview is pending.
func (c *TOCChat) Preview() []models.Topic {
	return c.preview
}

// Begin records the outgoing message and moves to awaiting. Starting a new
// exchange while one is outstanding is a conflict; starting one while a
// preview is pending discards the preview, matching the rule that a new
// instruction supersedes an unconfirmed one.
func (c *TOCChat) Begin(message string) error {
	if c.state == StateAwaitingReply {
		return domain.ErrConflict
	}
	c.pendingOp = nil
	c.preview = nil
	c.history = append(c.history, models.ConversationEntry{
		Timestamp:   time.Now(),
		UserMessage: message,
	})
	c.state = StateAwaitingReply
	return nil
}

// ResolveReply completes the outstanding exchange with the interpreted
// operation. A confirmable operation carries a preview tree and parks in
// preview_ready; an advisory one (topic suggestions, or an interpretation
// error) parks in acknowledged with nothing to confirm.
func (c *TOCChat) ResolveReply(op *models.TOCOperation, preview []models.Topic) {
	if c.state != StateAwaitingReply {
		return
	}
	c.fillReply(op.Interpretation)

	if op.RequiresConfirmation && op.Error == "" && op.Action != models.ActionSuggestTopics {
		c.pendingOp = op
		c.preview = preview
		c.state = StatePreviewReady
		return
	}
	c.pendingOp = op
	c.preview = nil
	c.state = StateAcknowledged
}

// FailReply completes the outstanding exchange with an error message and
// returns the chat to idle.
func (c *TOCChat) FailReply(message string) {
	if c.state != StateAwaitingReply {
		return
	}
	c.fillReply(message)
	c.pendingOp = nil
	c.preview = nil
	c.state = StateIdle
}

func (c *TOCChat) fillReply(response string) {
	if len(c.history) == 0 {
		return
	}
	c.history[len(c.history)-1].AIResponse = response
}

// Confirm hands back the pending operation and its preview for application
// and resets the chat. Confirming with nothing pending, or with an
// advisory-only reply, is a conflict.
func (c *TOCChat) Confirm() (*models.TOCOperation, []models.Topic, error) {
	if c.state != StatePreviewReady || c.pendingOp == nil {
		return nil, nil, domain.ErrConflict
	}
	op := c.pendingOp
	preview := c.preview
	c.reset()
	return op, preview, nil
}

// Cancel discards the pending operation and preview.
func (c *TOCChat) Cancel() {
	c.reset()
}

// Dismiss clears an acknowledged advisory reply. It is also safe on a
// pending preview, where it behaves like Cancel.
func (c *TOCChat) Dismiss() {
	c.reset()
}

func (c *TOCChat) reset() {
	c.pendingOp = nil
	c.preview = nil
	c.state = StateIdle
}
