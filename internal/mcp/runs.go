package mcp

import (
	"sync"
	"time"

	"auditor/internal/court"
	"auditor/internal/fanout"
)

// DefaultMaxRuns bounds how many finished runs the server remembers.
var DefaultMaxRuns = 32

// Run is one finished audit held in memory for get_verdict.
type Run struct {
	ID       string
	Case     court.Case
	Verdict  *court.Verdict
	Failures []fanout.WorkerFailure
	Events   []fanout.Event
	Elapsed  time.Duration
	Finished time.Time
}

// RunStore keeps the most recent runs, oldest evicted first. Runs live
// only as long as the server process.
type RunStore struct {
	mu    sync.Mutex
	max   int
	order []string
	runs  map[string]*Run
}

// NewRunStore returns a store holding at most max runs (DefaultMaxRuns when max <= 0).
func NewRunStore(max int) *RunStore {
	if max <= 0 {
		max = DefaultMaxRuns
	}
	return &RunStore{max: max, runs: make(map[string]*Run)}
}

// Put records a run, evicting the oldest when full.
func (s *RunStore) Put(r *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[r.ID]; !ok {
		s.order = append(s.order, r.ID)
	}
	s.runs[r.ID] = r
	for len(s.order) > s.max {
		delete(s.runs, s.order[0])
		s.order = s.order[1:]
	}
}

// Get returns a run by id.
func (s *RunStore) Get(id string) (*Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	return r, ok
}

// List returns the stored runs, newest first.
func (s *RunStore) List() []*Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Run, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.runs[s.order[i]])
	}
	return out
}

// Len returns the number of stored runs.
func (s *RunStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}
