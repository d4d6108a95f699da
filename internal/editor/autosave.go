package editor

import (
	"log/slog"
	"sync"
	"time"
)

// SaveFunc persists one node's live content. It runs on a timer goroutine
// and must do its own error handling; the scheduler only sequences calls.
type SaveFunc func(nodeID string)

// Scheduler debounces persistence per node: each edit re-arms that node's
// timer, and the save fires only after a quiet period. Saves for one node
// never overlap; an edit arriving while its save is in flight re-arms the
// timer as soon as the save completes.
type Scheduler struct {
	mu       sync.Mutex
	debounce time.Duration
	save     SaveFunc
	logger   *slog.Logger
	timers   map[string]*time.Timer
	inFlight map[string]bool
	pending  map[string]bool
	stopped  bool
}

// NewScheduler creates a scheduler that invokes save after debounce of
// inactivity on a node.
func NewScheduler(debounce time.Duration, save SaveFunc, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		debounce: debounce,
		save:     save,
		logger:   logger,
		timers:   make(map[string]*time.Timer),
		inFlight: make(map[string]bool),
		pending:  make(map[string]bool),
	}
}

// Arm starts or resets the node's debounce timer.
func (s *Scheduler) Arm(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if timer, ok := s.timers[nodeID]; ok {
		timer.Stop()
	}
	s.timers[nodeID] = time.AfterFunc(s.debounce, func() {
		s.fire(nodeID)
	})
}

// Cancel drops the node's pending timer, used when a manual save has
// already persisted the content the timer was going to.
func (s *Scheduler) Cancel(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[nodeID]; ok {
		timer.Stop()
		delete(s.timers, nodeID)
	}
	delete(s.pending, nodeID)
}

func (s *Scheduler) fire(nodeID string) {
	s.mu.Lock()
	delete(s.timers, nodeID)
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if s.inFlight[nodeID] {
		s.pending[nodeID] = true
		s.mu.Unlock()
		return
	}
	s.inFlight[nodeID] = true
	s.mu.Unlock()

	s.save(nodeID)

	s.mu.Lock()
	delete(s.inFlight, nodeID)
	rearm := s.pending[nodeID] && !s.stopped
	delete(s.pending, nodeID)
	s.mu.Unlock()

	if rearm {
		s.logger.Debug("re-arming autosave after in-flight save", "node_id", nodeID)
		s.Arm(nodeID)
	}
}

// Stop cancels every timer. In-flight saves run to completion; nothing new
// fires afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	for id := range s.pending {
		delete(s.pending, id)
	}
}
