package config

import "time"

const (
	// MaxDraftTitleLength is the maximum length for draft titles.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255) and provide
	// reasonable UX (titles should be short and descriptive).
	MaxDraftTitleLength = 255

	// MaxTopicTitleLength is the maximum length for topic and subtopic
	// titles. Same as draft titles for consistency.
	MaxTopicTitleLength = 255

	// MaxPromptLength caps free-text generation prompts. Longer prompts
	// blow the generation service's context budget.
	MaxPromptLength = 4000

	// MinDescriptionQuality is the lowest quality score the validation
	// service may return for draft creation to proceed.
	MinDescriptionQuality = 50

	// MinDetailLevel / MaxDetailLevel bound the requested detail level.
	MinDetailLevel = 1
	MaxDetailLevel = 5

	// AutosaveDebounce is the quiet period after the last edit to a node
	// before its content is persisted automatically.
	AutosaveDebounce = 5 * time.Second

	// SessionTTL is how long an idle editing session is kept alive.
	// Expired sessions drop their timers; unsaved state is rebuilt from
	// the persisted draft on the next request.
	SessionTTL = 30 * time.Minute

	// GenerationTimeout bounds generation and TOC chat calls. Server-side
	// retrieval plus generation can take minutes.
	GenerationTimeout = 5 * time.Minute

	// SummaryMaxWords is the chat-bubble preview cut for messages.
	SummaryMaxWords = 20

	// SummaryMaxChars is the preview cut applied when seeding a node's
	// conversation from its persisted history.
	SummaryMaxChars = 100
)
