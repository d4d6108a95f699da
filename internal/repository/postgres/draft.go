package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"policyforge/internal/domain"
	"policyforge/internal/domain/models"
	"policyforge/internal/domain/repositories"
	"policyforge/internal/toc"
)

// PostgresDraftRepository implements the DraftRepository interface
type PostgresDraftRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewDraftRepository creates a new draft repository
func NewDraftRepository(config *RepositoryConfig) repositories.DraftRepository {
	return &PostgresDraftRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// CreateDraft inserts the draft row and its full seeded tree. Callers wrap
// this in a transaction so a partial tree never becomes visible.
func (r *PostgresDraftRepository) CreateDraft(ctx context.Context, draft *models.Draft) error {
	exec := GetExecutor(ctx, r.pool)

	query := fmt.Sprintf(`
		INSERT INTO %s (id, title, description, created_by, created_at, modified_at,
			client_name, client_country, client_city, client_industry, function,
			most_similar_policy_id, toc_source, client_specific_requests,
			sector_specific_comments, regulations, detail_level)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, r.tables.Drafts)

	m := &draft.Metadata
	_, err := exec.Exec(ctx, query,
		draft.ID, m.Title, m.Description, m.CreatedBy, m.CreatedAt, m.ModifiedAt,
		m.ClientMetadata.Name, m.ClientMetadata.Country, m.ClientMetadata.City,
		m.ClientMetadata.Industry, m.Function, m.MostSimilarPolicyID, m.TOCSource,
		m.ClientSpecificRequests, m.SectorSpecificComments, m.Regulations, m.DetailLevel,
	)
	if err != nil {
		if IsPgDuplicateError(err) {
			return fmt.Errorf("draft %s already exists: %w", draft.ID, domain.ErrConflict)
		}
		return fmt.Errorf("create draft: %w", err)
	}

	for i := range draft.TOC {
		if err := r.insertTopic(ctx, exec, draft.ID, &draft.TOC[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresDraftRepository) insertTopic(ctx context.Context, exec repositories.DBTX, draftID string, topic *models.Topic) error {
	history, err := marshalHistory(topic.ConversationHistory)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, draft_id, title, sort_order, source_topic_id, content, summary, conversation_history)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.tables.Topics)

	_, err = exec.Exec(ctx, query,
		topic.TopicID, draftID, topic.Topic, topic.Order,
		topic.SourceTopicID, topic.Content, topic.Summary, history,
	)
	if err != nil {
		return fmt.Errorf("create topic: %w", err)
	}

	for j := range topic.Subtopics {
		if err := r.insertSubtopic(ctx, exec, topic.TopicID, &topic.Subtopics[j]); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresDraftRepository) insertSubtopic(ctx context.Context, exec repositories.DBTX, topicID string, sub *models.Subtopic) error {
	history, err := marshalHistory(sub.ConversationHistory)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, topic_id, title, sort_order, source_subtopic_id, content, summary, conversation_history)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.tables.Subtopics)

	_, err = exec.Exec(ctx, query,
		sub.SubtopicID, topicID, sub.Topic, sub.Order,
		sub.SourceSubtopicID, sub.Content, sub.Summary, history,
	)
	if err != nil {
		return fmt.Errorf("create subtopic: %w", err)
	}
	return nil
}

// GetDraft assembles a draft from its three tables.
func (r *PostgresDraftRepository) GetDraft(ctx context.Context, id string) (*models.Draft, error) {
	exec := GetExecutor(ctx, r.pool)

	query := fmt.Sprintf(`
		SELECT id, title, description, created_by, created_at, modified_at,
			client_name, client_country, client_city, client_industry, function,
			most_similar_policy_id, toc_source, client_specific_requests,
			sector_specific_comments, regulations, detail_level
		FROM %s
		WHERE id = $1
	`, r.tables.Drafts)

	var draft models.Draft
	m := &draft.Metadata
	err := exec.QueryRow(ctx, query, id).Scan(
		&draft.ID, &m.Title, &m.Description, &m.CreatedBy, &m.CreatedAt, &m.ModifiedAt,
		&m.ClientMetadata.Name, &m.ClientMetadata.Country, &m.ClientMetadata.City,
		&m.ClientMetadata.Industry, &m.Function, &m.MostSimilarPolicyID, &m.TOCSource,
		&m.ClientSpecificRequests, &m.SectorSpecificComments, &m.Regulations, &m.DetailLevel,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("draft %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get draft: %w", err)
	}

	topics, err := r.loadTopics(ctx, exec, id)
	if err != nil {
		return nil, err
	}
	draft.TOC = topics
	return &draft, nil
}

func (r *PostgresDraftRepository) loadTopics(ctx context.Context, exec repositories.DBTX, draftID string) ([]models.Topic, error) {
	query := fmt.Sprintf(`
		SELECT id, title, sort_order, source_topic_id, content, summary, conversation_history
		FROM %s
		WHERE draft_id = $1
		ORDER BY sort_order ASC
	`, r.tables.Topics)

	rows, err := exec.Query(ctx, query, draftID)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	defer rows.Close()

	topics := []models.Topic{}
	index := map[string]int{}
	for rows.Next() {
		var topic models.Topic
		var history []byte
		if err := rows.Scan(&topic.TopicID, &topic.Topic, &topic.Order,
			&topic.SourceTopicID, &topic.Content, &topic.Summary, &history); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		if topic.ConversationHistory, err = unmarshalHistory(history); err != nil {
			return nil, err
		}
		topic.Subtopics = []models.Subtopic{}
		index[topic.TopicID] = len(topics)
		topics = append(topics, topic)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topics: %w", err)
	}

	query = fmt.Sprintf(`
		SELECT s.id, s.topic_id, s.title, s.sort_order, s.source_subtopic_id,
			s.content, s.summary, s.conversation_history
		FROM %s s
		JOIN %s t ON s.topic_id = t.id
		WHERE t.draft_id = $1
		ORDER BY s.sort_order ASC
	`, r.tables.Subtopics, r.tables.Topics)

	subRows, err := exec.Query(ctx, query, draftID)
	if err != nil {
		return nil, fmt.Errorf("list subtopics: %w", err)
	}
	defer subRows.Close()

	for subRows.Next() {
		var sub models.Subtopic
		var topicID string
		var history []byte
		if err := subRows.Scan(&sub.SubtopicID, &topicID, &sub.Topic, &sub.Order,
			&sub.SourceSubtopicID, &sub.Content, &sub.Summary, &history); err != nil {
			return nil, fmt.Errorf("scan subtopic: %w", err)
		}
		if sub.ConversationHistory, err = unmarshalHistory(history); err != nil {
			return nil, err
		}
		if i, ok := index[topicID]; ok {
			topics[i].Subtopics = append(topics[i].Subtopics, sub)
		}
	}
	if err := subRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subtopics: %w", err)
	}

	return topics, nil
}

// ListDrafts returns summaries matching the filters, newest first. Filters
// are case-insensitive substring matches.
func (r *PostgresDraftRepository) ListDrafts(ctx context.Context, filters models.DraftFilters) ([]models.DraftSummary, error) {
	exec := GetExecutor(ctx, r.pool)

	query := fmt.Sprintf(`
		SELECT id, title, description, created_by, created_at, modified_at,
			most_similar_policy_id, client_name, client_country, client_city,
			client_industry, function
		FROM %s
	`, r.tables.Drafts)

	where := ""
	args := []interface{}{}
	addFilter := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		clause := fmt.Sprintf("%s ILIKE '%%' || $%d || '%%'", column, len(args))
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
	}
	addFilter("title", filters.Title)
	addFilter("client_country", filters.Country)
	addFilter("client_city", filters.City)
	addFilter("created_by", filters.CreatedBy)
	addFilter("client_industry", filters.Industry)
	addFilter("function", filters.Function)

	rows, err := exec.Query(ctx, query+where+" ORDER BY modified_at DESC", args...)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	defer rows.Close()

	summaries := []models.DraftSummary{}
	for rows.Next() {
		var s models.DraftSummary
		var client models.ClientMetadata
		if err := rows.Scan(&s.DraftID, &s.Title, &s.Description, &s.CreatedBy,
			&s.CreatedAt, &s.ModifiedAt, &s.MostSimilarPolicyID,
			&client.Name, &client.Country, &client.City, &client.Industry, &s.Function); err != nil {
			return nil, fmt.Errorf("scan draft summary: %w", err)
		}
		s.ClientMetadata = &client
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate drafts: %w", err)
	}

	return summaries, nil
}

// UpdateMetadata replaces the draft's editable metadata and bumps
// modified_at.
func (r *PostgresDraftRepository) UpdateMetadata(ctx context.Context, id string, m *models.DraftMetadata) error {
	exec := GetExecutor(ctx, r.pool)

	query := fmt.Sprintf(`
		UPDATE %s
		SET title = $1, description = $2, modified_at = $3,
			client_name = $4, client_country = $5, client_city = $6, client_industry = $7,
			function = $8, client_specific_requests = $9, sector_specific_comments = $10,
			regulations = $11, detail_level = $12
		WHERE id = $13
	`, r.tables.Drafts)

	result, err := exec.Exec(ctx, query,
		m.Title, m.Description, time.Now().UTC(),
		m.ClientMetadata.Name, m.ClientMetadata.Country, m.ClientMetadata.City,
		m.ClientMetadata.Industry, m.Function, m.ClientSpecificRequests,
		m.SectorSpecificComments, m.Regulations, m.DetailLevel, id,
	)
	if err != nil {
		return fmt.Errorf("update draft metadata: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("draft %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// UpdateTOCStructure reconciles the stored tree with the given one inside
// the caller's transaction. Nodes absent from the tree are deleted,
// temporary ids are replaced with fresh uuids, and every surviving node's
// title, order, and content fields are written from the tree. Returns the
// tree with real ids assigned.
func (r *PostgresDraftRepository) UpdateTOCStructure(ctx context.Context, draftID string, topics []models.Topic) ([]models.Topic, error) {
	exec := GetExecutor(ctx, r.pool)
	out := toc.Clone(topics)

	// Assign real ids before computing the keep sets
	for i := range out {
		if toc.IsTempID(out[i].TopicID) {
			out[i].TopicID = uuid.New().String()
		}
		for j := range out[i].Subtopics {
			if toc.IsTempID(out[i].Subtopics[j].SubtopicID) {
				out[i].Subtopics[j].SubtopicID = uuid.New().String()
			}
		}
	}

	keepTopics := []string{}
	keepSubtopics := []string{}
	for i := range out {
		keepTopics = append(keepTopics, out[i].TopicID)
		for j := range out[i].Subtopics {
			keepSubtopics = append(keepSubtopics, out[i].Subtopics[j].SubtopicID)
		}
	}

	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE topic_id IN (SELECT id FROM %s WHERE draft_id = $1)
		AND NOT (id = ANY($2))
	`, r.tables.Subtopics, r.tables.Topics)
	if _, err := exec.Exec(ctx, query, draftID, keepSubtopics); err != nil {
		return nil, fmt.Errorf("prune subtopics: %w", err)
	}

	query = fmt.Sprintf(`
		DELETE FROM %s
		WHERE draft_id = $1 AND NOT (id = ANY($2))
	`, r.tables.Topics)
	if _, err := exec.Exec(ctx, query, draftID, keepTopics); err != nil {
		return nil, fmt.Errorf("prune topics: %w", err)
	}

	for i := range out {
		if err := r.upsertTopic(ctx, exec, draftID, &out[i]); err != nil {
			return nil, err
		}
	}

	if err := r.touchModified(ctx, exec, draftID); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresDraftRepository) upsertTopic(ctx context.Context, exec repositories.DBTX, draftID string, topic *models.Topic) error {
	history, err := marshalHistory(topic.ConversationHistory)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, draft_id, title, sort_order, source_topic_id, content, summary, conversation_history)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title, sort_order = EXCLUDED.sort_order,
			source_topic_id = EXCLUDED.source_topic_id, content = EXCLUDED.content,
			summary = EXCLUDED.summary, conversation_history = EXCLUDED.conversation_history
	`, r.tables.Topics)

	_, err = exec.Exec(ctx, query,
		topic.TopicID, draftID, topic.Topic, topic.Order,
		topic.SourceTopicID, topic.Content, topic.Summary, history,
	)
	if err != nil {
		return fmt.Errorf("upsert topic: %w", err)
	}

	for j := range topic.Subtopics {
		if err := r.upsertSubtopic(ctx, exec, topic.TopicID, &topic.Subtopics[j]); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresDraftRepository) upsertSubtopic(ctx context.Context, exec repositories.DBTX, topicID string, sub *models.Subtopic) error {
	history, err := marshalHistory(sub.ConversationHistory)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, topic_id, title, sort_order, source_subtopic_id, content, summary, conversation_history)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET topic_id = EXCLUDED.topic_id, title = EXCLUDED.title,
			sort_order = EXCLUDED.sort_order, source_subtopic_id = EXCLUDED.source_subtopic_id,
			content = EXCLUDED.content, summary = EXCLUDED.summary,
			conversation_history = EXCLUDED.conversation_history
	`, r.tables.Subtopics)

	_, err = exec.Exec(ctx, query,
		sub.SubtopicID, topicID, sub.Topic, sub.Order,
		sub.SourceSubtopicID, sub.Content, sub.Summary, history,
	)
	if err != nil {
		return fmt.Errorf("upsert subtopic: %w", err)
	}
	return nil
}

// UpdateNodeContent writes one node's content, summary, and conversation
// history, and bumps the draft's modified_at.
func (r *PostgresDraftRepository) UpdateNodeContent(ctx context.Context, draftID, nodeID string, isSubtopic bool, content, summary string, history []models.ConversationEntry) error {
	exec := GetExecutor(ctx, r.pool)

	historyJSON, err := marshalHistory(history)
	if err != nil {
		return err
	}

	var query string
	if isSubtopic {
		query = fmt.Sprintf(`
			UPDATE %s s
			SET content = $1, summary = $2, conversation_history = $3
			FROM %s t
			WHERE s.id = $4 AND s.topic_id = t.id AND t.draft_id = $5
		`, r.tables.Subtopics, r.tables.Topics)
	} else {
		query = fmt.Sprintf(`
			UPDATE %s
			SET content = $1, summary = $2, conversation_history = $3
			WHERE id = $4 AND draft_id = $5
		`, r.tables.Topics)
	}

	result, err := exec.Exec(ctx, query, content, summary, historyJSON, nodeID, draftID)
	if err != nil {
		return fmt.Errorf("update node content: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("node %s in draft %s: %w", nodeID, draftID, domain.ErrNotFound)
	}

	return r.touchModified(ctx, exec, draftID)
}

// DeleteDraft removes the draft and its tree. Callers wrap this in a
// transaction.
func (r *PostgresDraftRepository) DeleteDraft(ctx context.Context, id string) error {
	exec := GetExecutor(ctx, r.pool)

	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE topic_id IN (SELECT id FROM %s WHERE draft_id = $1)
	`, r.tables.Subtopics, r.tables.Topics)
	if _, err := exec.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("delete subtopics: %w", err)
	}

	query = fmt.Sprintf(`DELETE FROM %s WHERE draft_id = $1`, r.tables.Topics)
	if _, err := exec.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("delete topics: %w", err)
	}

	query = fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Drafts)
	result, err := exec.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("draft %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *PostgresDraftRepository) touchModified(ctx context.Context, exec repositories.DBTX, draftID string) error {
	query := fmt.Sprintf(`UPDATE %s SET modified_at = $1 WHERE id = $2`, r.tables.Drafts)
	if _, err := exec.Exec(ctx, query, time.Now().UTC(), draftID); err != nil {
		return fmt.Errorf("touch draft: %w", err)
	}
	return nil
}

func marshalHistory(history []models.ConversationEntry) ([]byte, error) {
	if history == nil {
		history = []models.ConversationEntry{}
	}
	data, err := json.Marshal(history)
	if err != nil {
		return nil, fmt.Errorf("marshal conversation history: %w", err)
	}
	return data, nil
}

func unmarshalHistory(data []byte) ([]models.ConversationEntry, error) {
	if len(data) == 0 {
		return []models.ConversationEntry{}, nil
	}
	var history []models.ConversationEntry
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("unmarshal conversation history: %w", err)
	}
	return history, nil
}
