package models

// TOC operation actions returned by the TOC chat service.
const (
	ActionAddTopic       = "add_topic"
	ActionRemoveTopic    = "remove_topic"
	ActionRenameTopic    = "rename_topic"
	ActionAddSubtopic    = "add_subtopic"
	ActionRemoveSubtopic = "remove_subtopic"
	ActionReorderTopics  = "reorder_topics"
	// ActionSuggestTopics is advisory only: it is acknowledged, never applied.
	ActionSuggestTopics = "suggest_topics"
)

// TOCOperation is a structural change proposed by the TOC chat workflow.
// It stays pending until the user confirms or cancels it.
type TOCOperation struct {
	Action               string         `json:"action"`
	Parameters           map[string]any `json:"parameters"`
	Interpretation       string         `json:"interpretation"`
	RequiresConfirmation bool           `json:"requires_confirmation"`
	Error                string         `json:"error,omitempty"`
}
