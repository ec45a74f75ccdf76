package services

import (
	"fmt"
	"sync"
	"time"
)

// RunStatus describes the terminal state of a matching run.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunAborted   RunStatus = "aborted"
)

// RunRecord is one party's persisted view of a finished run. The match count
// is the only protocol output that is ever stored; tokens and shares are not.
type RunRecord struct {
	RunID      string    `json:"run_id"`
	PartyIndex int       `json:"party_index"`
	Capacity   int       `json:"capacity"`
	MatchCount int       `json:"match_count"`
	Status     RunStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// RunStore persists run outcomes.
type RunStore interface {
	SaveRun(record *RunRecord) error
	GetRun(runID string) (*RunRecord, error)
	ListRuns() ([]*RunRecord, error)
	Close() error
}

// MemoryRunStore implements RunStore with in-memory storage.
// Suitable for testing and single-instance deployments.
type MemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]*RunRecord
	ids  []string // insertion order
}

// NewMemoryRunStore creates an empty in-memory store.
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: make(map[string]*RunRecord)}
}

// SaveRun stores or overwrites the record for its run ID.
func (s *MemoryRunStore) SaveRun(record *RunRecord) error {
	if record.RunID == "" {
		return fmt.Errorf("run record has empty run ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *record
	if _, exists := s.runs[record.RunID]; !exists {
		s.ids = append(s.ids, record.RunID)
	}
	s.runs[record.RunID] = &cp
	return nil
}

// GetRun returns the record for a run ID.
func (s *MemoryRunStore) GetRun(runID string) (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	cp := *record
	return &cp, nil
}

// ListRuns returns all records in insertion order.
func (s *MemoryRunStore) ListRuns() ([]*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*RunRecord, 0, len(s.ids))
	for _, id := range s.ids {
		cp := *s.runs[id]
		out = append(out, &cp)
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryRunStore) Close() error {
	return nil
}
