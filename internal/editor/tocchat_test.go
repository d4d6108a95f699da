package editor

import (
	"errors"
	"testing"

	"policyforge/internal/domain"
	"policyforge/internal/domain/models"
)

func previewTree() []models.Topic {
	return []models.Topic{{TopicID: "t1", Topic: "Introduction", Order: 1}}
}

func TestTOCChatConfirmableFlow(t *testing.T) {
	c := NewTOCChat()
	if c.State() != StateIdle {
		t.Fatalf("new chat should be idle, got %s", c.State())
	}

	if err := c.Begin("add a topic called Security"); err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	if c.State() != StateAwaitingReply {
		t.Fatalf("expected awaiting_reply, got %s", c.State())
	}

	op := &models.TOCOperation{
		Action:               models.ActionAddTopic,
		Parameters:           map[string]any{"topic_name": "Security"},
		Interpretation:       "Add a new topic named Security.",
		RequiresConfirmation: true,
	}
	c.ResolveReply(op, previewTree())

	if c.State() != StatePreviewReady {
		t.Fatalf("expected preview_ready, got %s", c.State())
	}
	if c.Pending() == nil || c.Pending().Action != models.ActionAddTopic {
		t.Errorf("pending operation missing")
	}
	if len(c.Preview()) != 1 {
		t.Errorf("preview tree missing")
	}

	confirmed, preview, err := c.Confirm()
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if confirmed.Action != models.ActionAddTopic || len(preview) != 1 {
		t.Errorf("confirm returned wrong payload")
	}
	if c.State() != StateIdle || c.Pending() != nil {
		t.Errorf("confirm should reset the chat")
	}

	history := c.History()
	if len(history) != 1 || history[0].AIResponse != "Add a new topic named Security." {
		t.Errorf("unexpected history: %+v", history)
	}
}

func TestTOCChatRejectsOverlappingExchanges(t *testing.T) {
	c := NewTOCChat()
	if err := c.Begin("first"); err != nil {
		t.Fatal(err)
	}
	if err := c.Begin("second"); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected conflict for overlapping exchange, got %v", err)
	}
}

func TestTOCChatNewMessageSupersedesPendingPreview(t *testing.T) {
	c := NewTOCChat()
	c.Begin("remove the Scope topic")
	c.ResolveReply(&models.TOCOperation{
		Action: models.ActionRemoveTopic, Interpretation: "Remove Scope.", RequiresConfirmation: true,
	}, previewTree())

	if err := c.Begin("actually, rename it instead"); err != nil {
		t.Fatalf("begin over a pending preview should succeed: %v", err)
	}
	if c.Pending() != nil || c.Preview() != nil {
		t.Error("new message should discard the unconfirmed preview")
	}
}

func TestTOCChatSuggestionsAreNotConfirmable(t *testing.T) {
	c := NewTOCChat()
	c.Begin("what topics am I missing?")
	c.ResolveReply(&models.TOCOperation{
		Action:               models.ActionSuggestTopics,
		Interpretation:       "Consider adding Incident Response and Training.",
		RequiresConfirmation: true,
	}, nil)

	if c.State() != StateAcknowledged {
		t.Fatalf("suggestions should park in acknowledged, got %s", c.State())
	}
	if _, _, err := c.Confirm(); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("confirming a suggestion should be a conflict, got %v", err)
	}

	c.Dismiss()
	if c.State() != StateIdle {
		t.Errorf("dismiss should return to idle, got %s", c.State())
	}
}

func TestTOCChatInterpretationErrorIsAdvisory(t *testing.T) {
	c := NewTOCChat()
	c.Begin("do something ambiguous")
	c.ResolveReply(&models.TOCOperation{
		Interpretation:       "I could not map that to a structural change.",
		RequiresConfirmation: true,
		Error:                "ambiguous instruction",
	}, nil)

	if c.State() != StateAcknowledged || c.Preview() != nil {
		t.Errorf("an errored interpretation must not produce a preview")
	}
}

func TestTOCChatCancelDiscardsPreview(t *testing.T) {
	c := NewTOCChat()
	c.Begin("reorder the topics")
	c.ResolveReply(&models.TOCOperation{
		Action: models.ActionReorderTopics, Interpretation: "Move Scope first.", RequiresConfirmation: true,
	}, previewTree())

	c.Cancel()
	if c.State() != StateIdle || c.Pending() != nil || c.Preview() != nil {
		t.Error("cancel should discard the pending operation and preview")
	}
	if _, _, err := c.Confirm(); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("confirm after cancel should be a conflict, got %v", err)
	}
}

func TestTOCChatFailReplyReturnsToIdle(t *testing.T) {
	c := NewTOCChat()
	c.Begin("add a topic")
	c.FailReply("Sorry, I encountered an error processing your request.")

	if c.State() != StateIdle {
		t.Fatalf("expected idle after failure, got %s", c.State())
	}
	history := c.History()
	if len(history) != 1 || history[0].AIResponse == "" {
		t.Errorf("failure message not recorded: %+v", history)
	}
}
