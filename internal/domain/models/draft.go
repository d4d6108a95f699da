package models

import (
	"time"
)

// TOC source tags recorded in draft metadata at creation time.
const (
	TOCSourceSimilaritySearch = "similarity_search"
	TOCSourceAIGenerated      = "ai_generated"
)

// ClientMetadata describes the client organization a policy is drafted for.
type ClientMetadata struct {
	Name     string `json:"name"`
	Country  string `json:"country"`
	City     string `json:"city"`
	Industry string `json:"industry"`
}

// ConversationEntry is one persisted prompt/response exchange on a node.
type ConversationEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	UserMessage string    `json:"user_message"`
	AIResponse  string    `json:"ai_response"`
}

// Subtopic is a second-level section of the table of contents.
// Order is 1-based and contiguous within the parent topic's subtopic list.
type Subtopic struct {
	SubtopicID          string              `json:"subtopic_id"`
	Topic               string              `json:"topic"`
	Order               int                 `json:"order"`
	SourceSubtopicID    string              `json:"source_subtopic_id,omitempty"`
	Content             string              `json:"content"`
	Summary             string              `json:"summary"`
	ConversationHistory []ConversationEntry `json:"conversation_history"`
}

// Topic is a top-level section of the table of contents.
// Order is 1-based and contiguous across the draft's topic list.
type Topic struct {
	TopicID             string              `json:"topic_id"`
	Topic               string              `json:"topic"`
	Order               int                 `json:"order"`
	SourceTopicID       string              `json:"source_topic_id,omitempty"`
	Content             string              `json:"content"`
	Summary             string              `json:"summary"`
	ConversationHistory []ConversationEntry `json:"conversation_history"`
	Subtopics           []Subtopic          `json:"subtopics"`
}

// DraftMetadata carries everything about a draft except its TOC.
type DraftMetadata struct {
	Title                  string         `json:"title"`
	Description            string         `json:"description"`
	CreatedBy              string         `json:"created_by"`
	CreatedAt              time.Time      `json:"created_at"`
	ModifiedAt             time.Time      `json:"modified_at"`
	ClientMetadata         ClientMetadata `json:"client_metadata"`
	Function               string         `json:"function"`
	MostSimilarPolicyID    string         `json:"most_similar_policy_id,omitempty"`
	TOCSource              string         `json:"toc_source,omitempty"`
	ClientSpecificRequests string         `json:"client_specific_requests,omitempty"`
	SectorSpecificComments string         `json:"sector_specific_comments,omitempty"`
	Regulations            string         `json:"regulations,omitempty"`
	DetailLevel            int            `json:"detail_level,omitempty"`
}

// Draft is the aggregate root: metadata plus the ordered topic tree.
type Draft struct {
	ID       string        `json:"id"`
	Metadata DraftMetadata `json:"metadata"`
	TOC      []Topic       `json:"toc"`
}

// DraftSummary is the listing projection of a draft (no TOC, no content).
type DraftSummary struct {
	DraftID             string          `json:"draft_id"`
	Title               string          `json:"title"`
	Description         string          `json:"description"`
	CreatedBy           string          `json:"created_by"`
	CreatedAt           time.Time       `json:"created_at"`
	ModifiedAt          time.Time       `json:"modified_at"`
	MostSimilarPolicyID string          `json:"most_similar_policy_id,omitempty"`
	ClientMetadata      *ClientMetadata `json:"client_metadata,omitempty"`
	Function            string          `json:"function,omitempty"`
}

// DraftFilters narrows draft listings. Empty fields match everything.
type DraftFilters struct {
	Title     string
	Country   string
	City      string
	CreatedBy string
	Industry  string
	Function  string
}

// DraftProgress reports how much of a draft's TOC has generated content.
type DraftProgress struct {
	Total      int     `json:"total"`
	Completed  int     `json:"completed"`
	Percentage float64 `json:"percentage"`
	Remaining  int     `json:"remaining"`
}

// TOCUpdateItem is the wire shape of one node in a TOC structure update.
// Nodes with temp_-prefixed ids are assigned real ids during persistence.
type TOCUpdateItem struct {
	ID               string          `json:"id"`
	Topic            string          `json:"topic"`
	Order            int             `json:"order"`
	SourceTopicID    string          `json:"source_topic_id,omitempty"`
	SourceSubtopicID string          `json:"source_subtopic_id,omitempty"`
	Subtopics        []TOCUpdateItem `json:"subtopics,omitempty"`
}
