package api

import (
	"sync"
	"time"

	"kickbase-market-lab/internal/orchestrator"
)

// Snapshot holds the result of the latest successful pipeline run.
type Snapshot struct {
	mu      sync.RWMutex
	result  *orchestrator.RunResult
	lastErr error
	lastRun time.Time
}

// NewSnapshot creates an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{}
}

// Set stores a run outcome. A failed run keeps the previous result.
func (s *Snapshot) Set(result *orchestrator.RunResult, err error, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun = at
	s.lastErr = err
	if err == nil && result != nil {
		s.result = result
	}
}

// Get returns the latest successful result, nil before the first one.
func (s *Snapshot) Get() *orchestrator.RunResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// Status returns the time and error of the latest run attempt.
func (s *Snapshot) Status() (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun, s.lastErr
}
