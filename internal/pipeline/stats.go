package pipeline

import (
	"sort"
	"sync"
	"time"
)

type runSample struct {
	at         time.Time
	durationMs int64
	documents  int
	failed     bool
}

// StatsSnapshot aggregates the runs inside the rolling window.
type StatsSnapshot struct {
	Runs       int     `json:"runs"`
	FailedRuns int     `json:"failed_runs"`
	Documents  int     `json:"documents"`
	MinMs      int64   `json:"min_ms"`
	MaxMs      int64   `json:"max_ms"`
	AvgMs      float64 `json:"avg_ms"`
	P50Ms      float64 `json:"p50_ms"`
	P95Ms      float64 `json:"p95_ms"`
}

// RunStats tracks recent validation runs within a rolling window.
type RunStats struct {
	mu      sync.Mutex
	samples []runSample
	window  time.Duration
	now     func() time.Time
}

func NewRunStats(window time.Duration) *RunStats {
	if window <= 0 {
		window = time.Hour
	}
	return &RunStats{
		samples: make([]runSample, 0, 64),
		window:  window,
		now:     time.Now,
	}
}

// Record adds one finished run.
func (s *RunStats) Record(d time.Duration, documents int, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.pruneLocked(now)
	s.samples = append(s.samples, runSample{
		at:         now,
		durationMs: max(d.Milliseconds(), 0),
		documents:  documents,
		failed:     failed,
	})
}

func (s *RunStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(s.now())
	if len(s.samples) == 0 {
		return StatsSnapshot{}
	}

	snap := StatsSnapshot{Runs: len(s.samples)}
	durations := make([]int64, 0, len(s.samples))
	var sum int64
	for _, sm := range s.samples {
		durations = append(durations, sm.durationMs)
		sum += sm.durationMs
		snap.Documents += sm.documents
		if sm.failed {
			snap.FailedRuns++
		}
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	snap.MinMs = durations[0]
	snap.MaxMs = durations[len(durations)-1]
	snap.AvgMs = float64(sum) / float64(len(durations))
	snap.P50Ms = percentile(durations, 50)
	snap.P95Ms = percentile(durations, 95)
	return snap
}

func (s *RunStats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	keep := s.samples[:0]
	for _, sm := range s.samples {
		if !sm.at.Before(cutoff) {
			keep = append(keep, sm)
		}
	}
	s.samples = keep
}

// percentile interpolates linearly between the closest ranks.
func percentile(sorted []int64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := float64(len(sorted)-1) * pct / 100
	lo := int(idx)
	if lo >= len(sorted)-1 {
		return float64(sorted[len(sorted)-1])
	}
	w := idx - float64(lo)
	return float64(sorted[lo]) + (float64(sorted[lo+1]-sorted[lo]) * w)
}
