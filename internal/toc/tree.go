// Package toc holds the pure transformations over a draft's table of
// contents. Every function returns a new tree and leaves its input intact;
// callers always apply them to the latest snapshot, never to stale copies.
package toc

import (
	"strings"

	"github.com/google/uuid"

	"policyforge/internal/domain/models"
)

// TempIDPrefix marks client-generated node ids that have not been persisted
// yet. Persistence assigns real ids to these nodes.
const TempIDPrefix = "temp_"

// NewTempID returns a fresh temporary node id.
func NewTempID() string {
	return TempIDPrefix + uuid.New().String()
}

// IsTempID reports whether a node id is a temporary, unpersisted one.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// Clone returns a deep copy of the tree. Snapshots taken for dirty
// detection and previews must not share slices with the working copy.
func Clone(topics []models.Topic) []models.Topic {
	if topics == nil {
		return nil
	}
	out := make([]models.Topic, len(topics))
	for i, t := range topics {
		out[i] = t
		out[i].ConversationHistory = cloneHistory(t.ConversationHistory)
		out[i].Subtopics = make([]models.Subtopic, len(t.Subtopics))
		for j, s := range t.Subtopics {
			out[i].Subtopics[j] = s
			out[i].Subtopics[j].ConversationHistory = cloneHistory(s.ConversationHistory)
		}
	}
	return out
}

func cloneHistory(history []models.ConversationEntry) []models.ConversationEntry {
	if history == nil {
		return nil
	}
	out := make([]models.ConversationEntry, len(history))
	copy(out, history)
	return out
}

// FindTopic returns the topic with the given id, or nil.
func FindTopic(topics []models.Topic, topicID string) *models.Topic {
	for i := range topics {
		if topics[i].TopicID == topicID {
			return &topics[i]
		}
	}
	return nil
}

// FindSubtopic returns the subtopic with the given id and its parent topic,
// or nil for both.
func FindSubtopic(topics []models.Topic, subtopicID string) (*models.Topic, *models.Subtopic) {
	for i := range topics {
		for j := range topics[i].Subtopics {
			if topics[i].Subtopics[j].SubtopicID == subtopicID {
				return &topics[i], &topics[i].Subtopics[j]
			}
		}
	}
	return nil, nil
}

// FindItem resolves a node id (topic or subtopic) to a selection pointer.
// Returns nil when the id is not in the tree; callers treat that as a
// recoverable condition since edits can race with deletions.
func FindItem(topics []models.Topic, nodeID string) *models.SelectedItem {
	if topic := FindTopic(topics, nodeID); topic != nil {
		return &models.SelectedItem{
			ID:                  topic.TopicID,
			Type:                models.NodeTypeTopic,
			Title:               topic.Topic,
			Content:             topic.Content,
			ConversationHistory: cloneHistory(topic.ConversationHistory),
		}
	}
	if parent, sub := FindSubtopic(topics, nodeID); sub != nil {
		return &models.SelectedItem{
			ID:                  sub.SubtopicID,
			Type:                models.NodeTypeSubtopic,
			Title:               sub.Topic,
			Content:             sub.Content,
			ConversationHistory: cloneHistory(sub.ConversationHistory),
			ParentTopicID:       parent.TopicID,
		}
	}
	return nil
}

// Rename replaces a node's title. A missing id is a no-op, not an error:
// a rename can legitimately arrive after the node was deleted.
func Rename(topics []models.Topic, nodeID string, isSubtopic bool, title string) []models.Topic {
	out := Clone(topics)
	if isSubtopic {
		if _, sub := FindSubtopic(out, nodeID); sub != nil {
			sub.Topic = title
		}
		return out
	}
	if topic := FindTopic(out, nodeID); topic != nil {
		topic.Topic = title
	}
	return out
}

// Delete removes a node from its parent's list. Order values are not
// touched here; Renumber is a separate pass applied after every
// structural mutation.
func Delete(topics []models.Topic, nodeID string, isSubtopic bool) []models.Topic {
	out := Clone(topics)
	if isSubtopic {
		for i := range out {
			for j := range out[i].Subtopics {
				if out[i].Subtopics[j].SubtopicID == nodeID {
					out[i].Subtopics = append(out[i].Subtopics[:j], out[i].Subtopics[j+1:]...)
					return out
				}
			}
		}
		return out
	}
	for i := range out {
		if out[i].TopicID == nodeID {
			return append(out[:i], out[i+1:]...)
		}
	}
	return out
}

// Renumber reassigns contiguous 1-based order values to every topic and to
// every subtopic list.
func Renumber(topics []models.Topic) []models.Topic {
	out := Clone(topics)
	for i := range out {
		out[i].Order = i + 1
		for j := range out[i].Subtopics {
			out[i].Subtopics[j].Order = j + 1
		}
	}
	return out
}

// InsertTopic appends a new empty topic with a temporary id.
func InsertTopic(topics []models.Topic, title string) []models.Topic {
	out := Clone(topics)
	out = append(out, models.Topic{
		TopicID:             NewTempID(),
		Topic:               title,
		Order:               len(out) + 1,
		ConversationHistory: []models.ConversationEntry{},
		Subtopics:           []models.Subtopic{},
	})
	return out
}

// InsertSubtopic appends a new empty subtopic to the given parent topic and
// renumbers the parent's subtopic list. A missing parent is a no-op.
func InsertSubtopic(topics []models.Topic, parentTopicID, title string) []models.Topic {
	out := Clone(topics)
	parent := FindTopic(out, parentTopicID)
	if parent == nil {
		return out
	}
	parent.Subtopics = append(parent.Subtopics, models.Subtopic{
		SubtopicID:          NewTempID(),
		Topic:               title,
		ConversationHistory: []models.ConversationEntry{},
	})
	for j := range parent.Subtopics {
		parent.Subtopics[j].Order = j + 1
	}
	return out
}

// ReorderTopics moves the topic at from to position to and renumbers.
// Out-of-range indices leave the tree unchanged.
func ReorderTopics(topics []models.Topic, from, to int) []models.Topic {
	out := Clone(topics)
	if from < 0 || from >= len(out) || to < 0 || to >= len(out) || from == to {
		return out
	}
	moved := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]models.Topic{moved}, out[to:]...)...)
	for i := range out {
		out[i].Order = i + 1
	}
	return out
}

// ReorderSubtopics moves a subtopic within its parent topic and renumbers
// the parent's subtopic list.
func ReorderSubtopics(topics []models.Topic, parentTopicID string, from, to int) []models.Topic {
	out := Clone(topics)
	parent := FindTopic(out, parentTopicID)
	if parent == nil {
		return out
	}
	subs := parent.Subtopics
	if from < 0 || from >= len(subs) || to < 0 || to >= len(subs) || from == to {
		return out
	}
	moved := subs[from]
	subs = append(subs[:from], subs[from+1:]...)
	subs = append(subs[:to], append([]models.Subtopic{moved}, subs[to:]...)...)
	for j := range subs {
		subs[j].Order = j + 1
	}
	parent.Subtopics = subs
	return out
}

// HasChanges reports whether two trees differ in structure or content:
// titles, order, node presence, or content fields. It is a deterministic
// structural walk, safe to use as the gate for the Save TOC action.
func HasChanges(original, current []models.Topic) bool {
	if len(original) != len(current) {
		return true
	}
	for i := range original {
		if topicDiffers(&original[i], &current[i]) {
			return true
		}
	}
	return false
}

func topicDiffers(a, b *models.Topic) bool {
	if a.TopicID != b.TopicID || a.Topic != b.Topic || a.Order != b.Order ||
		a.SourceTopicID != b.SourceTopicID || a.Content != b.Content || a.Summary != b.Summary {
		return true
	}
	if len(a.Subtopics) != len(b.Subtopics) {
		return true
	}
	for j := range a.Subtopics {
		sa, sb := &a.Subtopics[j], &b.Subtopics[j]
		if sa.SubtopicID != sb.SubtopicID || sa.Topic != sb.Topic || sa.Order != sb.Order ||
			sa.SourceSubtopicID != sb.SourceSubtopicID || sa.Content != sb.Content || sa.Summary != sb.Summary {
			return true
		}
	}
	return false
}

// NextItem returns the next node in document order after the current
// selection: a topic advances into its first subtopic, then to the next
// sibling topic; a subtopic advances to the next subtopic in the same
// parent, then to the topic after the parent. Returns nil at the end of
// the document.
func NextItem(topics []models.Topic, current *models.SelectedItem) *models.SelectedItem {
	if current == nil || len(topics) == 0 {
		return nil
	}

	if current.Type == models.NodeTypeTopic {
		idx := topicIndex(topics, current.ID)
		if idx == -1 {
			return nil
		}
		if len(topics[idx].Subtopics) > 0 {
			return subtopicItem(&topics[idx], &topics[idx].Subtopics[0])
		}
		if idx+1 < len(topics) {
			return FindItem(topics, topics[idx+1].TopicID)
		}
		return nil
	}

	parent, _ := FindSubtopic(topics, current.ID)
	if parent == nil {
		return nil
	}
	for j := range parent.Subtopics {
		if parent.Subtopics[j].SubtopicID == current.ID {
			if j+1 < len(parent.Subtopics) {
				return subtopicItem(parent, &parent.Subtopics[j+1])
			}
			break
		}
	}
	idx := topicIndex(topics, parent.TopicID)
	if idx != -1 && idx+1 < len(topics) {
		return FindItem(topics, topics[idx+1].TopicID)
	}
	return nil
}

func topicIndex(topics []models.Topic, topicID string) int {
	for i := range topics {
		if topics[i].TopicID == topicID {
			return i
		}
	}
	return -1
}

func subtopicItem(parent *models.Topic, sub *models.Subtopic) *models.SelectedItem {
	return &models.SelectedItem{
		ID:                  sub.SubtopicID,
		Type:                models.NodeTypeSubtopic,
		Title:               sub.Topic,
		Content:             sub.Content,
		ConversationHistory: cloneHistory(sub.ConversationHistory),
		ParentTopicID:       parent.TopicID,
	}
}

// Progress counts nodes with non-empty content across the whole tree.
func Progress(topics []models.Topic) models.DraftProgress {
	var total, completed int
	for i := range topics {
		total++
		if strings.TrimSpace(topics[i].Content) != "" {
			completed++
		}
		for j := range topics[i].Subtopics {
			total++
			if strings.TrimSpace(topics[i].Subtopics[j].Content) != "" {
				completed++
			}
		}
	}
	progress := models.DraftProgress{
		Total:     total,
		Completed: completed,
		Remaining: total - completed,
	}
	if total > 0 {
		progress.Percentage = float64(completed) / float64(total) * 100
	}
	return progress
}

// SetContent updates a node's content and conversation history in place on
// a cloned tree, keeping the canonical tree and the session store in
// agreement after a successful persistence. Missing ids are a no-op.
func SetContent(topics []models.Topic, nodeID string, isSubtopic bool, content string, history []models.ConversationEntry) []models.Topic {
	out := Clone(topics)
	if isSubtopic {
		if _, sub := FindSubtopic(out, nodeID); sub != nil {
			sub.Content = content
			sub.ConversationHistory = cloneHistory(history)
		}
		return out
	}
	if topic := FindTopic(out, nodeID); topic != nil {
		topic.Content = content
		topic.ConversationHistory = cloneHistory(history)
	}
	return out
}
