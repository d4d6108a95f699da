package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"policyforge/internal/config"
	"policyforge/internal/domain"
	"policyforge/internal/domain/models"
	"policyforge/internal/domain/repositories"
	"policyforge/internal/domain/services"
	"policyforge/internal/editor"
	"policyforge/internal/genai"
	"policyforge/internal/toc"
	"policyforge/internal/utils"
)

// generationErrorMessage is shown in the conversation when a generation
// call fails. The exchange stays in the history; content is untouched.
const generationErrorMessage = "Sorry, I encountered an error processing your request. Please try again."

// autosaveTimeout bounds the background persistence call a timer triggers.
const autosaveTimeout = 30 * time.Second

// editorService implements the EditorService interface
type editorService struct {
	draftRepo repositories.DraftRepository
	txManager repositories.TransactionManager
	generator genai.Generator
	registry  *editor.Registry
	debounce  time.Duration
	logger    *slog.Logger
}

// NewEditorService creates a new editor service
func NewEditorService(
	draftRepo repositories.DraftRepository,
	txManager repositories.TransactionManager,
	generator genai.Generator,
	registry *editor.Registry,
	logger *slog.Logger,
) services.EditorService {
	return &editorService{
		draftRepo: draftRepo,
		txManager: txManager,
		generator: generator,
		registry:  registry,
		debounce:  config.AutosaveDebounce,
		logger:    logger,
	}
}

// session returns the draft's live editing session, building one from the
// persisted draft when none exists.
func (s *editorService) session(ctx context.Context, draftID string) (*editor.Session, error) {
	return s.registry.GetOrCreate(draftID, func() (*editor.Session, error) {
		draft, err := s.draftRepo.GetDraft(ctx, draftID)
		if err != nil {
			return nil, err
		}
		return editor.NewSession(draft, s.debounce, s.autosaveFunc(draftID), s.logger), nil
	})
}

// autosaveFunc builds the callback one draft's scheduler fires. It runs on
// a timer goroutine, so it carries its own context and leaves the dirty
// flag set on failure; the next edit re-arms the timer.
func (s *editorService) autosaveFunc(draftID string) editor.SaveFunc {
	return func(nodeID string) {
		sess, ok := s.registry.Get(draftID)
		if !ok {
			return
		}
		store := sess.Store()
		if !store.HasUnsaved(nodeID) {
			return
		}
		content, history, ok := store.CaptureSave(nodeID)
		if !ok {
			return
		}
		item := toc.FindItem(sess.Tree(), nodeID)
		if item == nil {
			// Node removed from the working tree while dirty; nothing to
			// persist it against.
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), autosaveTimeout)
		defer cancel()

		isSubtopic := item.Type == models.NodeTypeSubtopic
		summary := utils.MessageSummary(content, config.SummaryMaxWords)
		if err := s.draftRepo.UpdateNodeContent(ctx, draftID, nodeID, isSubtopic, content, summary, history); err != nil {
			s.logger.Warn("autosave failed", "draft_id", draftID, "node_id", nodeID, "error", err)
			return
		}

		store.MarkSaved(nodeID, content, time.Now().UTC())
		sess.SyncNodeContent(nodeID, isSubtopic, content, history)
		s.logger.Debug("autosaved node content", "draft_id", draftID, "node_id", nodeID)
	}
}

// Select makes the node the session's active item.
func (s *editorService) Select(ctx context.Context, draftID, nodeID string) (*services.EditorState, error) {
	sess, err := s.session(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if _, err := sess.SelectNode(nodeID); err != nil {
		return nil, fmt.Errorf("node %s: %w", nodeID, err)
	}
	return s.state(sess), nil
}

// SendMessage runs one generation turn against the selected node. The node
// id is captured before the call, so a completion that arrives after the
// user navigated away still lands on the node that started it. Failures
// are recorded in the conversation rather than returned: the session stays
// usable and the node's content is untouched.
func (s *editorService) SendMessage(ctx context.Context, draftID, message string) (*services.EditorState, error) {
	sess, err := s.session(ctx, draftID)
	if err != nil {
		return nil, err
	}
	selected := sess.Store().Selected()
	if selected == nil {
		return nil, fmt.Errorf("%w: no item selected", domain.ErrValidation)
	}
	if err := validatePrompt(message); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	store := sess.Store()
	token := store.AppendExchange(selected.ID, message)

	resp, err := s.generator.GenerateContent(ctx, genai.GenerateRequest{
		DraftID:             draftID,
		NodeID:              selected.ID,
		NodeTitle:           selected.Title,
		NodeType:            selected.Type,
		ParentTopic:         selected.ParentTopicID,
		Prompt:              message,
		CurrentContent:      store.Generated(selected.ID),
		ConversationHistory: store.PersistedHistory(selected.ID),
		Metadata:            sess.Metadata(),
	})
	if err != nil {
		s.logger.Warn("content generation failed",
			"draft_id", draftID, "node_id", selected.ID, "error", err)
		store.FailExchange(token, generationErrorMessage)
		return s.state(sess), nil
	}

	summary := resp.Summary
	if summary == "" {
		summary = utils.MessageSummary(resp.Content, config.SummaryMaxWords)
	}
	wordCount := resp.WordCount
	if !resp.IsChatResponse && wordCount == 0 {
		wordCount = utils.CountWords(resp.Content)
	}
	if store.ResolveExchange(token, editor.GenerationResult{
		Content:        resp.Content,
		Summary:        summary,
		SourcesUsed:    resp.SourcesUsed,
		WordCount:      wordCount,
		IsChatResponse: resp.IsChatResponse,
	}) {
		sess.Autosave().Arm(selected.ID)
	}
	return s.state(sess), nil
}

// GenerateNode selects the node and runs one generation turn against it.
func (s *editorService) GenerateNode(ctx context.Context, draftID, nodeID, prompt string) (*services.EditorState, error) {
	if _, err := s.Select(ctx, draftID, nodeID); err != nil {
		return nil, err
	}
	if prompt == "" {
		prompt = "Generate the content for this section."
	}
	return s.SendMessage(ctx, draftID, prompt)
}

// EditContent replaces the selected node's live content and arms autosave.
func (s *editorService) EditContent(ctx context.Context, draftID, content string) (*services.EditorState, error) {
	sess, err := s.session(ctx, draftID)
	if err != nil {
		return nil, err
	}
	selected := sess.Store().Selected()
	if selected == nil {
		return nil, fmt.Errorf("%w: no item selected", domain.ErrValidation)
	}

	sess.Store().SetGenerated(selected.ID, content)
	sess.Autosave().Arm(selected.ID)
	return s.state(sess), nil
}

// SaveContent persists the selected node's content immediately and advances
// the selection to the next item in document order.
func (s *editorService) SaveContent(ctx context.Context, draftID string) (*services.EditorState, error) {
	sess, err := s.session(ctx, draftID)
	if err != nil {
		return nil, err
	}
	selected := sess.Store().Selected()
	if selected == nil {
		return nil, fmt.Errorf("%w: no item selected", domain.ErrValidation)
	}

	store := sess.Store()
	content, history, ok := store.CaptureSave(selected.ID)
	if !ok {
		return nil, fmt.Errorf("%w: no content to save", domain.ErrValidation)
	}

	// The manual save persists what the timer would have; drop the timer.
	sess.Autosave().Cancel(selected.ID)

	isSubtopic := selected.Type == models.NodeTypeSubtopic
	summary := utils.MessageSummary(content, config.SummaryMaxWords)
	if err := s.draftRepo.UpdateNodeContent(ctx, draftID, selected.ID, isSubtopic, content, summary, history); err != nil {
		return nil, err
	}

	store.MarkSaved(selected.ID, content, time.Now().UTC())
	sess.SyncNodeContent(selected.ID, isSubtopic, content, history)
	s.logger.Info("node content saved", "draft_id", draftID, "node_id", selected.ID)

	if next := sess.NextAfter(selected); next != nil {
		if _, err := sess.SelectNode(next.ID); err != nil {
			s.logger.Warn("failed to advance selection", "draft_id", draftID, "node_id", next.ID, "error", err)
		}
	}
	return s.state(sess), nil
}

// State returns the session's current view without changing anything.
func (s *editorService) State(ctx context.Context, draftID string) (*services.EditorState, error) {
	sess, err := s.session(ctx, draftID)
	if err != nil {
		return nil, err
	}
	return s.state(sess), nil
}

// RenameNode retitles a node in the working tree.
func (s *editorService) RenameNode(ctx context.Context, draftID, nodeID string, isSubtopic bool, title string) (*services.EditorState, error) {
	if err := validateTitle(title); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	sess, err := s.session(ctx, draftID)
	if err != nil {
		return nil, err
	}
	sess.UpdateTree(func(tree []models.Topic) []models.Topic {
		return toc.Rename(tree, nodeID, isSubtopic, title)
	})
	return s.state(sess), nil
}

// DeleteNode removes a node from the working tree and renumbers.
func (s *editorService) DeleteNode(ctx context.Context, draftID, nodeID string, isSubtopic bool) (*services.EditorState, error) {
	sess, err := s.session(ctx, draftID)
	if err != nil {
		return nil, err
	}
	sess.UpdateTree(func(tree []models.Topic) []models.Topic {
		return toc.Renumber(toc.Delete(tree, nodeID, isSubtopic))
	})
	return s.state(sess), nil
}

// AddTopic appends a new empty topic to the working tree.
func (s *editorService) AddTopic(ctx context.Context, draftID, title string) (*services.EditorState, error) {
	if err := validateTitle(title); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	sess, err := s.session(ctx, draftID)
	if err != nil {
		return nil, err
	}
	sess.UpdateTree(func(tree []models.Topic) []models.Topic {
		return toc.InsertTopic(tree, title)
	})
	return s.state(sess), nil
}

// AddSubtopic appends a new empty subtopic under the given topic.
func (s *editorService) AddSubtopic(ctx context.Context, draftID, parentTopicID, title string) (*services.EditorState, error) {
	if err := validateTitle(title); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	sess, err := s.session(ctx, draftID)
	if err != nil {
		return nil, err
	}
	sess.UpdateTree(func(tree []models.Topic) []models.Topic {
		return toc.InsertSubtopic(tree, parentTopicID, title)
	})
	return s.state(sess), nil
}

// ReorderTopics moves a topic to a new position.
func (s *editorService) ReorderTopics(ctx context.Context, draftID string, from, to int) (*services.EditorState, error) {
	sess, err := s.session(ctx, draftID)
	if err != nil {
		return nil, err
	}
	sess.UpdateTree(func(tree []models.Topic) []models.Topic {
		return toc.ReorderTopics(tree, from, to)
	})
	return s.state(sess), nil
}

// ReorderSubtopics moves a subtopic within its parent topic.
func (s *editorService) ReorderSubtopics(ctx context.Context, draftID, parentTopicID string, from, to int) (*services.EditorState, error) {
	sess, err := s.session(ctx, draftID)
	if err != nil {
		return nil, err
	}
	sess.UpdateTree(func(tree []models.Topic) []models.Topic {
		return toc.ReorderSubtopics(tree, parentTopicID, from, to)
	})
	return s.state(sess), nil
}

// SaveTOC persists the working tree when it differs from the stored one.
// Temporary ids are replaced by real ones; session state typed into new
// nodes moves with them, and state of removed nodes is dropped.
func (s *editorService) SaveTOC(ctx context.Context, draftID string) (*services.EditorState, error) {
	sess, err := s.session(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if !sess.TOCDirty() {
		return s.state(sess), nil
	}

	working := sess.Tree()
	previous := sess.SavedTree()

	var persisted []models.Topic
	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		var txErr error
		persisted, txErr = s.draftRepo.UpdateTOCStructure(txCtx, draftID, working)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	store := sess.Store()
	for i := range working {
		if toc.IsTempID(working[i].TopicID) {
			store.Rekey(working[i].TopicID, persisted[i].TopicID)
		}
		for j := range working[i].Subtopics {
			if toc.IsTempID(working[i].Subtopics[j].SubtopicID) {
				store.Rekey(working[i].Subtopics[j].SubtopicID, persisted[i].Subtopics[j].SubtopicID)
			}
		}
	}
	for _, removed := range removedNodeIDs(previous, persisted) {
		store.Forget(removed)
	}

	sess.MarkTreeSaved(persisted)
	s.logger.Info("draft toc saved", "draft_id", draftID, "topics", len(persisted))
	return s.state(sess), nil
}

// removedNodeIDs lists node ids present in the previous tree but absent
// from the current one.
func removedNodeIDs(previous, current []models.Topic) []string {
	present := map[string]bool{}
	for i := range current {
		present[current[i].TopicID] = true
		for j := range current[i].Subtopics {
			present[current[i].Subtopics[j].SubtopicID] = true
		}
	}
	var removed []string
	for i := range previous {
		if !present[previous[i].TopicID] {
			removed = append(removed, previous[i].TopicID)
		}
		for j := range previous[i].Subtopics {
			if !present[previous[i].Subtopics[j].SubtopicID] {
				removed = append(removed, previous[i].Subtopics[j].SubtopicID)
			}
		}
	}
	return removed
}

// TOCChat interprets a natural-language structural instruction. Confirmable
// interpretations produce a preview tree; advisory ones are acknowledged.
func (s *editorService) TOCChat(ctx context.Context, draftID, message string) (*services.EditorState, error) {
	sess, err := s.session(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if err := validatePrompt(message); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if err := sess.ChatBegin(message); err != nil {
		return nil, fmt.Errorf("%w: a toc chat request is already in progress", err)
	}

	op, err := s.generator.InterpretTOCChat(ctx, genai.TOCChatRequest{
		DraftID: draftID,
		Message: message,
		TOC:     sess.Tree(),
	})
	if err != nil {
		s.logger.Warn("toc chat failed", "draft_id", draftID, "error", err)
		sess.ChatFail(generationErrorMessage)
		return s.state(sess), nil
	}

	var preview []models.Topic
	if op.RequiresConfirmation && op.Error == "" && op.Action != models.ActionSuggestTopics {
		preview, err = applyTOCOperation(sess.Tree(), op)
		if err != nil {
			op.Error = err.Error()
		}
	}
	sess.ChatResolve(op, preview)
	return s.state(sess), nil
}

// TOCConfirm applies the pending operation to the working tree. The
// operation is re-applied to the latest tree rather than replayed from the
// stored preview, so direct edits made in between are not lost. The result
// stays unsaved until SaveTOC.
func (s *editorService) TOCConfirm(ctx context.Context, draftID string) (*services.EditorState, error) {
	sess, err := s.session(ctx, draftID)
	if err != nil {
		return nil, err
	}
	op, _, err := sess.ChatConfirm()
	if err != nil {
		return nil, fmt.Errorf("%w: no pending toc operation", err)
	}

	applied, err := applyTOCOperation(sess.Tree(), op)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConflict, err)
	}
	sess.UpdateTree(func([]models.Topic) []models.Topic {
		return applied
	})

	s.logger.Info("toc operation confirmed", "draft_id", draftID, "action", op.Action)
	return s.state(sess), nil
}

// TOCCancel discards the pending operation and preview.
func (s *editorService) TOCCancel(ctx context.Context, draftID string) (*services.EditorState, error) {
	sess, err := s.session(ctx, draftID)
	if err != nil {
		return nil, err
	}
	sess.ChatCancel()
	return s.state(sess), nil
}

// TOCDismiss clears an acknowledged advisory reply.
func (s *editorService) TOCDismiss(ctx context.Context, draftID string) (*services.EditorState, error) {
	sess, err := s.session(ctx, draftID)
	if err != nil {
		return nil, err
	}
	sess.ChatDismiss()
	return s.state(sess), nil
}

// CloseSession evicts the draft's session.
func (s *editorService) CloseSession(draftID string) {
	if sess, ok := s.registry.Get(draftID); ok {
		sess.Close()
	}
	s.registry.Remove(draftID)
}

// applyTOCOperation maps an interpreted operation onto the tree. Parameters
// arrive as loosely typed JSON; anything missing or unresolvable is an
// error the chat reports instead of a preview.
func applyTOCOperation(tree []models.Topic, op *models.TOCOperation) ([]models.Topic, error) {
	switch op.Action {
	case models.ActionAddTopic:
		name, ok := stringParam(op.Parameters, "topic_name")
		if !ok {
			return nil, fmt.Errorf("missing topic_name parameter")
		}
		return toc.InsertTopic(tree, name), nil

	case models.ActionRemoveTopic:
		id, ok := stringParam(op.Parameters, "topic_id")
		if !ok {
			return nil, fmt.Errorf("missing topic_id parameter")
		}
		if toc.FindTopic(tree, id) == nil {
			return nil, fmt.Errorf("topic %s is not in the table of contents", id)
		}
		return toc.Renumber(toc.Delete(tree, id, false)), nil

	case models.ActionRenameTopic:
		id, ok := stringParam(op.Parameters, "topic_id")
		name, nameOK := stringParam(op.Parameters, "new_name")
		if !ok || !nameOK {
			return nil, fmt.Errorf("missing topic_id or new_name parameter")
		}
		if toc.FindTopic(tree, id) == nil {
			return nil, fmt.Errorf("topic %s is not in the table of contents", id)
		}
		return toc.Rename(tree, id, false, name), nil

	case models.ActionAddSubtopic:
		parentID, ok := stringParam(op.Parameters, "parent_topic_id")
		name, nameOK := stringParam(op.Parameters, "subtopic_name")
		if !ok || !nameOK {
			return nil, fmt.Errorf("missing parent_topic_id or subtopic_name parameter")
		}
		if toc.FindTopic(tree, parentID) == nil {
			return nil, fmt.Errorf("topic %s is not in the table of contents", parentID)
		}
		return toc.InsertSubtopic(tree, parentID, name), nil

	case models.ActionRemoveSubtopic:
		id, ok := stringParam(op.Parameters, "subtopic_id")
		if !ok {
			return nil, fmt.Errorf("missing subtopic_id parameter")
		}
		if _, sub := toc.FindSubtopic(tree, id); sub == nil {
			return nil, fmt.Errorf("subtopic %s is not in the table of contents", id)
		}
		return toc.Renumber(toc.Delete(tree, id, true)), nil

	case models.ActionReorderTopics:
		order, ok := stringSliceParam(op.Parameters, "topic_order")
		if !ok {
			return nil, fmt.Errorf("missing topic_order parameter")
		}
		return reorderByIDs(tree, order)

	default:
		return nil, fmt.Errorf("unsupported action %q", op.Action)
	}
}

// reorderByIDs rebuilds the topic list in the given id order. Every topic
// must appear exactly once.
func reorderByIDs(tree []models.Topic, order []string) ([]models.Topic, error) {
	if len(order) != len(tree) {
		return nil, fmt.Errorf("topic_order must list all %d topics", len(tree))
	}
	out := make([]models.Topic, 0, len(tree))
	seen := map[string]bool{}
	for _, id := range order {
		if seen[id] {
			return nil, fmt.Errorf("topic %s listed twice", id)
		}
		seen[id] = true
		topic := toc.FindTopic(tree, id)
		if topic == nil {
			return nil, fmt.Errorf("topic %s is not in the table of contents", id)
		}
		out = append(out, *topic)
	}
	return toc.Renumber(out), nil
}

func stringParam(params map[string]any, key string) (string, bool) {
	value, ok := params[key].(string)
	return value, ok && value != ""
}

func stringSliceParam(params map[string]any, key string) ([]string, bool) {
	raw, ok := params[key].([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func validatePrompt(message string) error {
	return validation.Validate(message,
		validation.Required, validation.Length(1, config.MaxPromptLength))
}

func validateTitle(title string) error {
	return validation.Validate(title,
		validation.Required, validation.Length(1, config.MaxTopicTitleLength))
}

// state builds the full session view.
func (s *editorService) state(sess *editor.Session) *services.EditorState {
	tree := sess.Tree()
	state := &services.EditorState{
		DraftID:     sess.DraftID(),
		TOC:         tree,
		TOCDirty:    sess.TOCDirty(),
		ChatState:   string(sess.ChatState()),
		ChatHistory: sess.ChatHistory(),
		PendingOp:   sess.ChatPending(),
		TOCPreview:  sess.ChatPreview(),
		Progress:    toc.Progress(tree),
	}
	if selected := sess.Store().Selected(); selected != nil {
		state.Selected = selected
		node := sess.Store().Snapshot(selected.ID)
		state.Node = &node
	}
	return state
}
