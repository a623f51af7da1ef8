package pipeline

import (
	"sync"
	"time"

	"github.com/dgallion1/speclint/internal/report"
)

// Run is a stored validation result.
type Run struct {
	ID        string            `json:"run_id"`
	Report    *report.Report    `json:"report"`
	Documents []DocumentSummary `json:"documents"`
	CreatedAt time.Time         `json:"created_at"`
	Duration  time.Duration     `json:"duration_ns"`
}

// RunStore is a thread-safe in-memory run registry with TTL eviction.
type RunStore struct {
	mu   sync.Mutex
	runs map[string]*Run
	ttl  time.Duration
}

func NewRunStore(ttl time.Duration) *RunStore {
	return &RunStore{
		runs: make(map[string]*Run),
		ttl:  ttl,
	}
}

func (s *RunStore) Put(run *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
}

func (s *RunStore) Get(id string) *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[id]
}

// Len returns the number of stored runs.
func (s *RunStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}

// Cleanup removes expired runs.
func (s *RunStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, run := range s.runs {
		if now.Sub(run.CreatedAt) > s.ttl {
			delete(s.runs, id)
		}
	}
}
