package editor

import (
	"testing"
	"time"

	"policyforge/internal/domain/models"
)

func seededStore() *Store {
	s := NewStore()
	s.SeedFromDraft(&models.Draft{
		TOC: []models.Topic{
			{
				TopicID: "t1", Topic: "Introduction", Order: 1, Content: "intro text",
				ConversationHistory: []models.ConversationEntry{
					{UserMessage: "write an intro", AIResponse: "intro text"},
				},
				Subtopics: []models.Subtopic{
					{SubtopicID: "s1", Topic: "Purpose", Order: 1},
				},
			},
			{TopicID: "t2", Topic: "Scope", Order: 2},
		},
	})
	return s
}

func TestSeedFromDraftSelectsFirstTopic(t *testing.T) {
	s := seededStore()

	sel := s.Selected()
	if sel == nil || sel.ID != "t1" || sel.Type != models.NodeTypeTopic {
		t.Fatalf("expected first topic selected, got %+v", sel)
	}
	if got := s.Generated("t1"); got != "intro text" {
		t.Errorf("expected seeded content, got %q", got)
	}
	conv := s.Conversation("t1")
	if len(conv) != 1 || conv[0].FullContent != "intro text" {
		t.Errorf("expected seeded conversation, got %+v", conv)
	}
}

func TestSelectSeedsOnlyOnFirstVisit(t *testing.T) {
	s := NewStore()

	item := &models.SelectedItem{
		ID: "t1", Type: models.NodeTypeTopic, Title: "Introduction", Content: "persisted",
		ConversationHistory: []models.ConversationEntry{{UserMessage: "q", AIResponse: "a"}},
	}
	s.Select(item)

	if got := s.Generated("t1"); got != "persisted" {
		t.Fatalf("first select should seed content, got %q", got)
	}

	// Local edit, then navigate away and back
	s.SetGenerated("t1", "locally edited")
	s.Select(&models.SelectedItem{ID: "t2", Type: models.NodeTypeTopic})
	s.Select(item)

	if got := s.Generated("t1"); got != "locally edited" {
		t.Errorf("re-select must not clobber in-memory content, got %q", got)
	}
	if len(s.Conversation("t1")) != 1 {
		t.Errorf("re-select must not re-seed the conversation")
	}
}

func TestResolveExchangeContentResponse(t *testing.T) {
	s := seededStore()

	token := s.AppendExchange("t2", "draft the scope section")
	if conv := s.Conversation("t2"); len(conv) != 1 || conv[0].AIResponse != "" {
		t.Fatalf("expected one provisional entry, got %+v", conv)
	}

	updated := s.ResolveExchange(token, GenerationResult{
		Content:     "scope content",
		Summary:     "scope content",
		SourcesUsed: []string{"ISO 27001", "internal access standard"},
		WordCount:   2,
	})
	if !updated {
		t.Fatal("content response should report an update")
	}
	if got := s.Generated("t2"); got != "scope content" {
		t.Errorf("generated content not updated: %q", got)
	}
	if !s.HasUnsaved("t2") {
		t.Error("content response should mark the node dirty")
	}
	conv := s.Conversation("t2")
	if conv[0].FullContent != "scope content" || conv[0].IsChatResponse {
		t.Errorf("unexpected resolved entry: %+v", conv[0])
	}
	if len(conv[0].SourcesUsed) != 2 || conv[0].SourcesUsed[0] != "ISO 27001" {
		t.Errorf("sources not recorded: %+v", conv[0].SourcesUsed)
	}
	if conv[0].WordCount != 2 {
		t.Errorf("word count not recorded: %d", conv[0].WordCount)
	}
}

func TestResolveExchangeChatResponseLeavesContentAlone(t *testing.T) {
	s := seededStore()

	token := s.AppendExchange("t1", "what should this section cover?")
	updated := s.ResolveExchange(token, GenerationResult{
		Content:        "It should cover the policy rationale.",
		Summary:        "It should cover...",
		IsChatResponse: true,
	})

	if updated {
		t.Error("chat response must not report a content update")
	}
	if got := s.Generated("t1"); got != "intro text" {
		t.Errorf("chat response clobbered content: %q", got)
	}
	if s.HasUnsaved("t1") {
		t.Error("chat response must not mark the node dirty")
	}
	conv := s.Conversation("t1")
	last := conv[len(conv)-1]
	if !last.IsChatResponse || last.FullContent != "" {
		t.Errorf("unexpected chat entry: %+v", last)
	}
}

func TestStaleCompletionLandsOnOriginNode(t *testing.T) {
	s := seededStore()

	// Generation dispatched while t1 is selected
	token := s.AppendExchange("t1", "rewrite the intro")

	// User navigates away before it completes
	s.Select(&models.SelectedItem{ID: "t2", Type: models.NodeTypeTopic, Title: "Scope"})

	s.ResolveExchange(token, GenerationResult{Content: "new intro", Summary: "new intro"})

	if got := s.Generated("t1"); got != "new intro" {
		t.Errorf("completion should update the origin node, got %q", got)
	}
	if got := s.Generated("t2"); got != "" {
		t.Errorf("completion must not touch the currently selected node, got %q", got)
	}
	if s.SelectedID() != "t2" {
		t.Errorf("completion must not change the selection")
	}
}

func TestFailExchangeRecordsErrorOnly(t *testing.T) {
	s := seededStore()

	token := s.AppendExchange("t2", "draft the scope section")
	s.FailExchange(token, "Sorry, I encountered an error processing your request.")

	conv := s.Conversation("t2")
	if conv[0].AIResponse == "" {
		t.Error("failure message not recorded")
	}
	if s.Generated("t2") != "" || s.HasUnsaved("t2") {
		t.Error("failure must not touch content or the dirty flag")
	}
}

func TestResolveExchangeStaleTokenIsNoOp(t *testing.T) {
	s := NewStore()
	if s.ResolveExchange(ExchangeToken{NodeID: "gone", Index: 3}, GenerationResult{Content: "x", Summary: "x"}) {
		t.Error("resolving a token for unknown state should be a no-op")
	}
}

func TestMarkSavedClearsDirtyOnlyWhenCurrent(t *testing.T) {
	s := seededStore()
	now := time.Now()

	s.SetGenerated("t2", "v1")
	s.MarkSaved("t2", "v1", now)
	if s.HasUnsaved("t2") {
		t.Error("saving the live content should clear the dirty flag")
	}

	state := s.Snapshot("t2")
	if state.CurrentContent != "v1" || state.LastSavedAt == nil {
		t.Errorf("unexpected snapshot after save: %+v", state)
	}

	// Save races with a newer edit: the snapshot persisted is v1 but the
	// live content moved on to v2.
	s.SetGenerated("t2", "v2")
	s.MarkSaved("t2", "v1", now.Add(time.Second))
	if !s.HasUnsaved("t2") {
		t.Error("a newer edit must keep the node dirty after a stale save completes")
	}
}

func TestCaptureSave(t *testing.T) {
	s := seededStore()

	if _, _, ok := s.CaptureSave("t2"); ok {
		t.Error("empty content should not be capturable")
	}

	token := s.AppendExchange("t2", "draft the scope section")
	s.ResolveExchange(token, GenerationResult{Content: "scope content", Summary: "scope content"})

	content, history, ok := s.CaptureSave("t2")
	if !ok || content != "scope content" {
		t.Fatalf("expected capture of live content, got %q ok=%v", content, ok)
	}
	if len(history) != 1 || history[0].AIResponse != "scope content" {
		t.Errorf("unexpected persisted history: %+v", history)
	}
}

func TestForgetDropsNodeState(t *testing.T) {
	s := seededStore()
	s.Select(&models.SelectedItem{ID: "s1", Type: models.NodeTypeSubtopic, ParentTopicID: "t1"})

	s.Forget("s1")

	if s.Selected() != nil {
		t.Error("forgetting the selected node should clear the selection")
	}
	if len(s.Conversation("s1")) != 0 || s.Generated("s1") != "" {
		t.Error("node state not dropped")
	}
}
