// Package editor implements the per-draft editing session engine: the
// generation state store, the autosave scheduler, and the TOC chat state
// machine. One session exists per draft; all of its state is keyed by node
// id so that operations on different nodes never interfere.
package editor

import (
	"sync"
	"time"

	"policyforge/internal/config"
	"policyforge/internal/domain/models"
	"policyforge/internal/utils"
)

// ExchangeToken identifies one provisional conversation entry. It is
// captured when an exchange starts and carried through the asynchronous
// completion, so a slow response still lands on the node that started it
// rather than on whatever node is selected when it arrives.
type ExchangeToken struct {
	NodeID string
	Index  int
}

// Store is the single source of truth for all per-node chat, content, and
// save state of one draft's editing session. Every mutation takes the lock
// and replaces whole values; readers get copies.
type Store struct {
	mu            sync.Mutex
	selected      *models.SelectedItem
	conversations map[string][]models.ExtendedConversationEntry
	generated     map[string]string
	current       map[string]string
	unsaved       map[string]bool
	lastSavedAt   map[string]time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		conversations: make(map[string][]models.ExtendedConversationEntry),
		generated:     make(map[string]string),
		current:       make(map[string]string),
		unsaved:       make(map[string]bool),
		lastSavedAt:   make(map[string]time.Time),
	}
}

// SeedFromDraft initializes the store from a freshly loaded draft:
// conversations are rebuilt in extended form from each node's persisted
// history, generated and current content start from the persisted content,
// and the first topic becomes the selection.
func (s *Store) SeedFromDraft(draft *models.Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range draft.TOC {
		topic := &draft.TOC[i]
		s.seedNodeLocked(topic.TopicID, topic.Content, topic.ConversationHistory)
		for j := range topic.Subtopics {
			sub := &topic.Subtopics[j]
			s.seedNodeLocked(sub.SubtopicID, sub.Content, sub.ConversationHistory)
		}
	}

	if len(draft.TOC) > 0 {
		first := &draft.TOC[0]
		s.selected = &models.SelectedItem{
			ID:                  first.TopicID,
			Type:                models.NodeTypeTopic,
			Title:               first.Topic,
			Content:             first.Content,
			ConversationHistory: append([]models.ConversationEntry(nil), first.ConversationHistory...),
		}
	}
}

func (s *Store) seedNodeLocked(nodeID, content string, history []models.ConversationEntry) {
	s.conversations[nodeID] = extendHistory(history)
	s.generated[nodeID] = content
	s.current[nodeID] = content
}

// extendHistory converts persisted entries to their in-session form.
// full_content is derived from the response itself and the summary is the
// truncated preview shown in chat bubbles.
func extendHistory(history []models.ConversationEntry) []models.ExtendedConversationEntry {
	out := make([]models.ExtendedConversationEntry, 0, len(history))
	for _, entry := range history {
		out = append(out, models.ExtendedConversationEntry{
			ConversationEntry: entry,
			FullContent:       entry.AIResponse,
			Summary:           utils.TruncateChars(entry.AIResponse, config.SummaryMaxChars),
		})
	}
	return out
}

// Select makes the item the active node. On the first selection of an id
// the conversation and generated content are seeded from the node's
// persisted state; on later selections in-memory state always wins, so
// local edits and in-flight conversations survive navigating away and back.
func (s *Store) Select(item *models.SelectedItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selected = item

	if existing := s.conversations[item.ID]; len(existing) == 0 {
		s.conversations[item.ID] = extendHistory(item.ConversationHistory)
	}
	if _, ok := s.generated[item.ID]; !ok {
		s.generated[item.ID] = item.Content
	}
}

// Selected returns the current selection pointer, or nil.
func (s *Store) Selected() *models.SelectedItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return nil
	}
	item := *s.selected
	return &item
}

// SelectedID returns the id of the current selection, or "".
func (s *Store) SelectedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return ""
	}
	return s.selected.ID
}

// AppendExchange records a provisional entry for instant feedback before
// the generation call resolves, and returns the token its completion
// handler must use.
func (s *Store) AppendExchange(nodeID, userMessage string) ExchangeToken {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.conversations[nodeID]
	entries = append(entries, models.ExtendedConversationEntry{
		ConversationEntry: models.ConversationEntry{
			Timestamp:   time.Now(),
			UserMessage: userMessage,
		},
	})
	s.conversations[nodeID] = entries

	return ExchangeToken{NodeID: nodeID, Index: len(entries) - 1}
}

// GenerationResult carries everything a completed generation turn writes
// back into the conversation.
type GenerationResult struct {
	Content        string
	Summary        string
	SourcesUsed    []string
	WordCount      int
	IsChatResponse bool
}

// ResolveExchange completes a provisional entry with the generation result.
// Content-classified responses overwrite the node's generated content and
// set the dirty flag; conversational replies leave content and dirty flag
// exactly as they were. Returns true when content was updated.
// A stale token (entry gone after a session rebuild) is a no-op.
func (s *Store) ResolveExchange(token ExchangeToken, result GenerationResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.conversations[token.NodeID]
	if token.Index < 0 || token.Index >= len(entries) {
		return false
	}

	entry := entries[token.Index]
	entry.AIResponse = result.Content
	entry.FullContent = result.Content
	entry.Summary = result.Summary
	entry.SourcesUsed = result.SourcesUsed
	entry.WordCount = result.WordCount
	entry.IsChatResponse = result.IsChatResponse
	if result.IsChatResponse {
		entry.FullContent = ""
	}
	entries[token.Index] = entry
	s.conversations[token.NodeID] = entries

	if result.IsChatResponse || result.Content == "" {
		return false
	}
	s.generated[token.NodeID] = result.Content
	s.unsaved[token.NodeID] = true
	return true
}

// FailExchange records a user-visible error on the provisional entry.
// Generated content is left untouched.
func (s *Store) FailExchange(token ExchangeToken, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.conversations[token.NodeID]
	if token.Index < 0 || token.Index >= len(entries) {
		return
	}
	entries[token.Index].AIResponse = message
	s.conversations[token.NodeID] = entries
}

// SetGenerated replaces a node's live editing content and marks it dirty.
func (s *Store) SetGenerated(nodeID, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generated[nodeID] = content
	s.unsaved[nodeID] = true
}

// Generated returns a node's live editing content.
func (s *Store) Generated(nodeID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generated[nodeID]
}

// HasUnsaved reports the node's dirty flag.
func (s *Store) HasUnsaved(nodeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsaved[nodeID]
}

// MarkUnsaved sets the node's dirty flag explicitly.
func (s *Store) MarkUnsaved(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsaved[nodeID] = true
}

// MarkSaved records a successful persistence of the given content snapshot.
// The dirty flag clears only if the live content still equals the snapshot:
// when a save races with a newer edit, the newer edit keeps the node dirty
// and the next save cycle picks it up. Last completion wins on the local
// cache; the database row is the arbiter of persisted truth.
func (s *Store) MarkSaved(nodeID, content string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current[nodeID] = content
	s.lastSavedAt[nodeID] = at
	s.unsaved[nodeID] = s.generated[nodeID] != content
}

// CaptureSave atomically snapshots what a persistence call should carry:
// the node's live content and its conversation history in persisted form.
// ok is false when there is nothing to save.
func (s *Store) CaptureSave(nodeID string) (content string, history []models.ConversationEntry, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	content = s.generated[nodeID]
	if content == "" {
		return "", nil, false
	}
	return content, persistedHistoryLocked(s.conversations[nodeID]), true
}

// PersistedHistory returns the node's conversation in its durable form:
// only timestamp, user message, and response survive.
func (s *Store) PersistedHistory(nodeID string) []models.ConversationEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return persistedHistoryLocked(s.conversations[nodeID])
}

func persistedHistoryLocked(entries []models.ExtendedConversationEntry) []models.ConversationEntry {
	out := make([]models.ConversationEntry, 0, len(entries))
	for _, entry := range entries {
		response := entry.AIResponse
		if response == "" {
			response = entry.FullContent
		}
		out = append(out, models.ConversationEntry{
			Timestamp:   entry.Timestamp,
			UserMessage: entry.UserMessage,
			AIResponse:  response,
		})
	}
	return out
}

// Conversation returns a copy of the node's extended conversation.
func (s *Store) Conversation(nodeID string) []models.ExtendedConversationEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ExtendedConversationEntry(nil), s.conversations[nodeID]...)
}

// Snapshot returns a read-only view of one node's session state.
func (s *Store) Snapshot(nodeID string) models.NodeState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := models.NodeState{
		NodeID:            nodeID,
		Conversation:      append([]models.ExtendedConversationEntry(nil), s.conversations[nodeID]...),
		GeneratedContent:  s.generated[nodeID],
		CurrentContent:    s.current[nodeID],
		HasUnsavedContent: s.unsaved[nodeID],
	}
	if at, ok := s.lastSavedAt[nodeID]; ok {
		savedAt := at
		state.LastSavedAt = &savedAt
	}
	return state
}

// Rekey moves a node's state to a new id, used when persistence replaces a
// temporary id with a real one. Content typed into an unsaved node survives
// the id swap.
func (s *Store) Rekey(oldID, newID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if oldID == newID {
		return
	}
	if entries, ok := s.conversations[oldID]; ok {
		s.conversations[newID] = entries
		delete(s.conversations, oldID)
	}
	if content, ok := s.generated[oldID]; ok {
		s.generated[newID] = content
		delete(s.generated, oldID)
	}
	if content, ok := s.current[oldID]; ok {
		s.current[newID] = content
		delete(s.current, oldID)
	}
	if dirty, ok := s.unsaved[oldID]; ok {
		s.unsaved[newID] = dirty
		delete(s.unsaved, oldID)
	}
	if at, ok := s.lastSavedAt[oldID]; ok {
		s.lastSavedAt[newID] = at
		delete(s.lastSavedAt, oldID)
	}
	if s.selected != nil && s.selected.ID == oldID {
		s.selected.ID = newID
	}
}

// Forget drops all state for a node, used when a confirmed TOC operation
// removes it. In-flight completions for the node become no-ops.
func (s *Store) Forget(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, nodeID)
	delete(s.generated, nodeID)
	delete(s.current, nodeID)
	delete(s.unsaved, nodeID)
	delete(s.lastSavedAt, nodeID)
	if s.selected != nil && s.selected.ID == nodeID {
		s.selected = nil
	}
}
