package ingestion

import (
	"sync"
	"time"

	"github.com/feedsync/backend/internal/domain/supplier"
)

// SupplierStatus is the outcome of one supplier cycle
type SupplierStatus string

const (
	SupplierSucceeded SupplierStatus = "success"
	SupplierFailed    SupplierStatus = "failed"
	SupplierSkipped   SupplierStatus = "skipped"
	// SupplierEmpty means the feed was read but produced no products
	SupplierEmpty SupplierStatus = "empty"
)

// SupplierResult records what happened to one supplier during a run
type SupplierResult struct {
	SupplierID       string              `json:"supplier_id"`
	SupplierName     string              `json:"supplier_name"`
	Status           SupplierStatus      `json:"status"`
	ConfiguredFormat supplier.FormatType `json:"configured_format"`
	DetectedFormat   supplier.FormatType `json:"detected_format,omitempty"`
	BytesFetched     int                 `json:"bytes_fetched"`
	Parsed           int                 `json:"parsed"`
	Canonical        int                 `json:"canonical"`
	Duplicates       int                 `json:"duplicates"`
	Written          int                 `json:"written"`
	Stage            string              `json:"stage,omitempty"`
	Error            string              `json:"error,omitempty"`
	StartedAt        time.Time           `json:"started_at"`
	Duration         time.Duration       `json:"duration"`
}

// Fail marks the result failed. msg must already be masked.
func (r *SupplierResult) Fail(err error, msg string) {
	r.Status = SupplierFailed
	r.Stage = Stage(err)
	r.Error = msg
}

// RunStatus is the lifecycle state of an ingestion run
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunReport aggregates per-supplier results of one batch run.
// It is safe for concurrent reads while the run appends results.
type RunReport struct {
	mu sync.RWMutex

	ID          string
	Trigger     string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
	Suppliers   []SupplierResult
}

// NewRunReport starts a report for a run
func NewRunReport(id, trigger string) *RunReport {
	return &RunReport{
		ID:        id,
		Trigger:   trigger,
		Status:    RunRunning,
		StartedAt: time.Now(),
	}
}

// Add appends a supplier result
func (r *RunReport) Add(result SupplierResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Suppliers = append(r.Suppliers, result)
}

// Complete marks the run completed
func (r *RunReport) Complete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.Status = RunCompleted
	r.CompletedAt = &now
}

// Fail marks the whole run failed, e.g. when the registry is unreadable
func (r *RunReport) Fail(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.Status = RunFailed
	r.Error = msg
	r.CompletedAt = &now
}

// RunSummary is a point-in-time copy of a report
type RunSummary struct {
	ID          string           `json:"id"`
	Trigger     string           `json:"trigger"`
	Status      RunStatus        `json:"status"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Error       string           `json:"error,omitempty"`
	Written     int              `json:"written"`
	Failed      int              `json:"failed"`
	Suppliers   []SupplierResult `json:"suppliers"`
}

// Snapshot copies the report for readers
func (r *RunReport) Snapshot() RunSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := RunSummary{
		ID:          r.ID,
		Trigger:     r.Trigger,
		Status:      r.Status,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		Error:       r.Error,
		Suppliers:   make([]SupplierResult, len(r.Suppliers)),
	}
	copy(s.Suppliers, r.Suppliers)
	for _, res := range r.Suppliers {
		s.Written += res.Written
		if res.Status == SupplierFailed {
			s.Failed++
		}
	}
	return s
}
