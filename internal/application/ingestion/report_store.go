package ingestion

import (
	"fmt"
	"sync"

	"github.com/feedsync/backend/internal/domain/ingestion"
	"github.com/feedsync/backend/internal/domain/shared"
)

const defaultReportCapacity = 50

// ReportStore keeps the most recent run reports in memory
type ReportStore struct {
	mu       sync.RWMutex
	capacity int
	order    []string
	reports  map[string]*ingestion.RunReport
}

// NewReportStore creates a store holding at most capacity reports
func NewReportStore(capacity int) *ReportStore {
	if capacity <= 0 {
		capacity = defaultReportCapacity
	}
	return &ReportStore{
		capacity: capacity,
		reports:  make(map[string]*ingestion.RunReport, capacity),
	}
}

// Put adds a report, evicting the oldest when full
func (s *ReportStore) Put(r *ingestion.RunReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reports[r.ID]; !ok {
		s.order = append(s.order, r.ID)
	}
	s.reports[r.ID] = r

	for len(s.order) > s.capacity {
		delete(s.reports, s.order[0])
		s.order = s.order[1:]
	}
}

// Get returns a snapshot of the report with id
func (s *ReportStore) Get(id string) (ingestion.RunSummary, error) {
	s.mu.RLock()
	r, ok := s.reports[id]
	s.mu.RUnlock()
	if !ok {
		return ingestion.RunSummary{}, fmt.Errorf("run %q: %w", id, shared.ErrNotFound)
	}
	return r.Snapshot(), nil
}

// Recent returns snapshots of the stored reports, newest first
func (s *ReportStore) Recent(limit int) []ingestion.RunSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.order) {
		limit = len(s.order)
	}
	out := make([]ingestion.RunSummary, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.reports[s.order[i]].Snapshot())
	}
	return out
}
