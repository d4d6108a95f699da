package editor

import (
	"log/slog"
	"sync"
	"time"

	"policyforge/internal/domain"
	"policyforge/internal/domain/models"
	"policyforge/internal/toc"
)

// Session is the live editing state of one draft: the node-keyed store, the
// TOC chat, the autosave scheduler, and the working copy of the tree. The
// session mutex guards the tree and the chat; the store carries its own
// lock so completion handlers never block tree reads.
type Session struct {
	mu        sync.Mutex
	draftID   string
	metadata  models.DraftMetadata
	store     *Store
	chat      *TOCChat
	autosave  *Scheduler
	tree      []models.Topic
	savedTree []models.Topic
	closed    bool
}

// NewSession builds a session from a freshly loaded draft. The save
// callback is invoked by the autosave scheduler after the debounce period.
func NewSession(draft *models.Draft, debounce time.Duration, save SaveFunc, logger *slog.Logger) *Session {
	s := &Session{
		draftID:   draft.ID,
		metadata:  draft.Metadata,
		store:     NewStore(),
		chat:      NewTOCChat(),
		tree:      toc.Clone(draft.TOC),
		savedTree: toc.Clone(draft.TOC),
	}
	s.autosave = NewScheduler(debounce, save, logger)
	s.store.SeedFromDraft(draft)
	return s
}

// DraftID returns the draft this session belongs to.
func (s *Session) DraftID() string {
	return s.draftID
}

// Metadata returns the draft metadata the session was built from.
func (s *Session) Metadata() models.DraftMetadata {
	return s.metadata
}

// Store returns the session's generation state store.
func (s *Session) Store() *Store {
	return s.store
}

// Autosave returns the session's autosave scheduler.
func (s *Session) Autosave() *Scheduler {
	return s.autosave
}

// Tree returns a deep copy of the working tree.
func (s *Session) Tree() []models.Topic {
	s.mu.Lock()
	defer s.mu.Unlock()
	return toc.Clone(s.tree)
}

// UpdateTree applies a structural transformation to the working tree under
// the session lock and returns the result. The transformation receives the
// latest tree, never a stale snapshot.
func (s *Session) UpdateTree(fn func([]models.Topic) []models.Topic) []models.Topic {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree = fn(s.tree)
	return toc.Clone(s.tree)
}

// SavedTree returns a deep copy of the last persisted tree snapshot.
func (s *Session) SavedTree() []models.Topic {
	s.mu.Lock()
	defer s.mu.Unlock()
	return toc.Clone(s.savedTree)
}

// TOCDirty reports whether the working tree differs from the last
// persisted snapshot.
func (s *Session) TOCDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return toc.HasChanges(s.savedTree, s.tree)
}

// MarkTreeSaved records the given tree as both the working copy and the
// persisted snapshot, typically with real ids assigned in place of
// temporary ones.
func (s *Session) MarkTreeSaved(tree []models.Topic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree = toc.Clone(tree)
	s.savedTree = toc.Clone(tree)
}

// SyncNodeContent writes a successfully persisted node's content into both
// the working tree and the persisted snapshot, so a content save never
// shows up as a structural change.
func (s *Session) SyncNodeContent(nodeID string, isSubtopic bool, content string, history []models.ConversationEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree = toc.SetContent(s.tree, nodeID, isSubtopic, content, history)
	s.savedTree = toc.SetContent(s.savedTree, nodeID, isSubtopic, content, history)
}

// SelectNode resolves the id against the working tree and makes it the
// active node. Returns ErrNotFound when the id is not in the tree.
func (s *Session) SelectNode(nodeID string) (*models.SelectedItem, error) {
	s.mu.Lock()
	item := toc.FindItem(s.tree, nodeID)
	s.mu.Unlock()
	if item == nil {
		return nil, domain.ErrNotFound
	}
	s.store.Select(item)
	return item, nil
}

// NextAfter returns the node following the current selection in document
// order, or nil at the end of the document.
func (s *Session) NextAfter(current *models.SelectedItem) *models.SelectedItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return toc.NextItem(s.tree, current)
}

// ChatBegin, ChatResolve, ChatFail, ChatConfirm, ChatCancel, ChatDismiss,
// ChatHistory, ChatPending, ChatPreview, and ChatState expose the TOC chat
// under the session lock.

func (s *Session) ChatBegin(message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chat.Begin(message)
}

func (s *Session) ChatResolve(op *models.TOCOperation, preview []models.Topic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chat.ResolveReply(op, preview)
}

func (s *Session) ChatFail(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chat.FailReply(message)
}

func (s *Session) ChatConfirm() (*models.TOCOperation, []models.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chat.Confirm()
}

func (s *Session) ChatCancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chat.Cancel()
}

func (s *Session) ChatDismiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chat.Dismiss()
}

func (s *Session) ChatHistory() []models.ConversationEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chat.History()
}

func (s *Session) ChatPending() *models.TOCOperation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chat.Pending()
}

func (s *Session) ChatPreview() []models.Topic {
	s.mu.Lock()
	defer s.mu.Unlock()
	return toc.Clone(s.chat.Preview())
}

func (s *Session) ChatState() ChatState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chat.State()
}

// Close stops the autosave scheduler. Idempotent; called on eviction.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.autosave.Stop()
}
