// Package genai is the HTTP client for the remote generation service. The
// service runs retrieval and drafting server-side; this package only
// shapes requests, enforces timeouts, and classifies failures.
package genai

import (
	"policyforge/internal/domain/models"
)

// ValidateRequest asks the generation service to score a draft description
// before any expensive work starts.
type ValidateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Function    string `json:"function"`
	DetailLevel int    `json:"detail_level,omitempty"`
}

// ValidateResponse carries the quality verdict. Scores run 0-100; drafts
// below the service threshold come back with issues and suggestions, and
// usually an improved description the caller can offer as a starting point.
type ValidateResponse struct {
	QualityScore        int      `json:"quality_score"`
	Issues              []string `json:"issues,omitempty"`
	Suggestions         []string `json:"suggestions,omitempty"`
	ImprovedDescription string   `json:"improved_description,omitempty"`
}

// TOCRequest asks for a generated table of contents when no stored
// template matches the draft's function.
type TOCRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Function    string                `json:"function"`
	DetailLevel int                   `json:"detail_level,omitempty"`
	Client      models.ClientMetadata `json:"client,omitempty"`
	Regulations []string              `json:"regulations,omitempty"`
}

// TOCTopic and TOCSubtopic are the generated outline nodes. They carry no
// ids; the caller assigns them.
type TOCTopic struct {
	Topic     string        `json:"topic"`
	Subtopics []TOCSubtopic `json:"subtopics,omitempty"`
}

type TOCSubtopic struct {
	Topic string `json:"topic"`
}

// TOCResponse is the generated outline.
type TOCResponse struct {
	Topics []TOCTopic `json:"topics"`
}

// GenerateRequest carries one chat turn for a single node. The full
// conversation and the node's current content travel with every turn so
// the service needs no session state of its own.
type GenerateRequest struct {
	DraftID             string                     `json:"draft_id"`
	NodeID              string                     `json:"node_id"`
	NodeTitle           string                     `json:"node_title"`
	NodeType            models.NodeType            `json:"node_type"`
	ParentTopic         string                     `json:"parent_topic,omitempty"`
	Prompt              string                     `json:"prompt"`
	CurrentContent      string                     `json:"current_content,omitempty"`
	ConversationHistory []models.ConversationEntry `json:"conversation_history,omitempty"`
	Metadata            models.DraftMetadata       `json:"metadata"`
}

// GenerateResponse is the service's reply to one turn. IsChatResponse
// marks conversational replies that must not replace document content.
// SourcesUsed lists the retrieval references the text was drafted from;
// WordCount may be omitted, in which case the caller derives it.
type GenerateResponse struct {
	Content        string   `json:"content"`
	Summary        string   `json:"summary,omitempty"`
	SourcesUsed    []string `json:"sources_used,omitempty"`
	WordCount      int      `json:"word_count,omitempty"`
	IsChatResponse bool     `json:"is_chat_response"`
}

// TOCChatRequest carries a natural-language structural instruction together
// with the current tree, so the service can interpret references like
// "the third topic".
type TOCChatRequest struct {
	DraftID string         `json:"draft_id"`
	Message string         `json:"message"`
	TOC     []models.Topic `json:"toc"`
}
