package editor

import (
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Registry tracks the live editing session per draft. Sessions expire
// after the idle TTL; eviction stops their autosave timers, and the next
// request rebuilds the session from the persisted draft.
type Registry struct {
	mu       sync.Mutex
	sessions *cache.Cache
	ttl      time.Duration
	logger   *slog.Logger
}

// NewRegistry creates a registry whose sessions expire after ttl of
// inactivity.
func NewRegistry(ttl time.Duration, logger *slog.Logger) *Registry {
	c := cache.New(ttl, ttl/2)
	c.OnEvicted(func(draftID string, value interface{}) {
		logger.Debug("editing session evicted", "draft_id", draftID)
		if session, ok := value.(*Session); ok {
			session.Close()
		}
	})
	return &Registry{sessions: c, ttl: ttl, logger: logger}
}

// Get returns the draft's live session, refreshing its TTL.
func (r *Registry) Get(draftID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	value, ok := r.sessions.Get(draftID)
	if !ok {
		return nil, false
	}
	session := value.(*Session)
	r.sessions.Set(draftID, session, r.ttl)
	return session, true
}

// GetOrCreate returns the draft's live session, building one via create if
// none exists. Creation is serialized so concurrent requests for the same
// draft share a single session.
func (r *Registry) GetOrCreate(draftID string, create func() (*Session, error)) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if value, ok := r.sessions.Get(draftID); ok {
		session := value.(*Session)
		r.sessions.Set(draftID, session, r.ttl)
		return session, nil
	}

	session, err := create()
	if err != nil {
		return nil, err
	}
	r.sessions.Set(draftID, session, r.ttl)
	r.logger.Debug("editing session created", "draft_id", draftID)
	return session, nil
}

// Remove evicts the draft's session immediately, used when a draft is
// deleted.
func (r *Registry) Remove(draftID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions.Delete(draftID)
}
