// Package templates holds the embedded reference policy outlines used to
// seed a new draft's table of contents. When a draft's function has a
// reference policy whose keywords overlap the description, its outline is
// copied in; otherwise the caller falls back to a generated outline.
package templates

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"policyforge/internal/domain/models"
)

//go:embed config/*.yaml
var configFiles embed.FS

// Registry manages the reference policy outlines across all functions.
type Registry struct {
	functions map[string]*FunctionTemplates
	order     []string
	mu        sync.RWMutex
}

// NewRegistry loads the embedded template files.
func NewRegistry() (*Registry, error) {
	r := &Registry{
		functions: make(map[string]*FunctionTemplates),
	}

	for _, name := range []string{"hr", "it_security", "compliance"} {
		if err := r.loadFunctionFile(name); err != nil {
			return nil, fmt.Errorf("failed to load %s templates: %w", name, err)
		}
	}
	return r, nil
}

func (r *Registry) loadFunctionFile(name string) error {
	filename := fmt.Sprintf("config/%s.yaml", name)
	data, err := configFiles.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filename, err)
	}

	var ft FunctionTemplates
	if err := yaml.Unmarshal(data, &ft); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", filename, err)
	}

	r.mu.Lock()
	r.functions[normalizeFunction(ft.Function)] = &ft
	r.order = append(r.order, ft.Function)
	r.mu.Unlock()
	return nil
}

func normalizeFunction(function string) string {
	return strings.ToLower(strings.TrimSpace(function))
}

// Functions returns the supported business functions in file order.
func (r *Registry) Functions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// BestMatch finds the reference policy for the function whose keywords best
// overlap the description. ok is false when the function is unknown or no
// policy scores a single keyword hit, in which case the caller generates
// the outline instead.
func (r *Registry) BestMatch(function, description string) (*Policy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ft, ok := r.functions[normalizeFunction(function)]
	if !ok {
		return nil, false
	}

	haystack := strings.ToLower(description)
	var best *Policy
	bestScore := 0
	for i := range ft.Policies {
		score := 0
		for _, kw := range ft.Policies[i].Keywords {
			if strings.Contains(haystack, strings.ToLower(kw)) {
				score++
			}
		}
		if score > bestScore {
			best = &ft.Policies[i]
			bestScore = score
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

// SeedTOC copies a reference policy's outline into a fresh topic tree with
// new node ids, contiguous order values, and source ids pointing back at
// the reference nodes.
func SeedTOC(policy *Policy) []models.Topic {
	topics := make([]models.Topic, 0, len(policy.Topics))
	for i, tt := range policy.Topics {
		topic := models.Topic{
			TopicID:             uuid.New().String(),
			Topic:               tt.Title,
			Order:               i + 1,
			SourceTopicID:       tt.ID,
			ConversationHistory: []models.ConversationEntry{},
			Subtopics:           make([]models.Subtopic, 0, len(tt.Subtopics)),
		}
		for j, ts := range tt.Subtopics {
			topic.Subtopics = append(topic.Subtopics, models.Subtopic{
				SubtopicID:          uuid.New().String(),
				Topic:               ts.Title,
				Order:               j + 1,
				SourceSubtopicID:    ts.ID,
				ConversationHistory: []models.ConversationEntry{},
			})
		}
		topics = append(topics, topic)
	}
	return topics
}
