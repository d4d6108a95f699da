package models

import "time"

// NodeType distinguishes the two levels of the TOC tree.
type NodeType string

const (
	NodeTypeTopic    NodeType = "topic"
	NodeTypeSubtopic NodeType = "subtopic"
)

// SelectedItem is the pointer to the node currently active in an editing
// session. ParentTopicID is set only for subtopics.
type SelectedItem struct {
	ID                  string              `json:"id"`
	Type                NodeType            `json:"type"`
	Title               string              `json:"title"`
	Content             string              `json:"content"`
	ConversationHistory []ConversationEntry `json:"conversation_history"`
	ParentTopicID       string              `json:"parent_topic_id,omitempty"`
}

// ExtendedConversationEntry is the in-session superset of ConversationEntry.
// FullContent holds the complete generated text when the exchange produced
// document content; Summary is the truncated chat-bubble preview.
// SourcesUsed and WordCount describe the generated text. Only the embedded
// ConversationEntry fields are persisted.
type ExtendedConversationEntry struct {
	ConversationEntry
	FullContent    string   `json:"full_content,omitempty"`
	Summary        string   `json:"summary,omitempty"`
	SourcesUsed    []string `json:"sources_used,omitempty"`
	WordCount      int      `json:"word_count,omitempty"`
	IsChatResponse bool     `json:"is_chat_response,omitempty"`
}

// NodeState is a read-only snapshot of one node's session state.
type NodeState struct {
	NodeID            string                      `json:"node_id"`
	Conversation      []ExtendedConversationEntry `json:"conversation"`
	GeneratedContent  string                      `json:"generated_content"`
	CurrentContent    string                      `json:"current_content"`
	HasUnsavedContent bool                        `json:"has_unsaved_content"`
	LastSavedAt       *time.Time                  `json:"last_saved_at,omitempty"`
}
