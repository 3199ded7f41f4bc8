package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"pdfqa/internal/domain"
)

// JobStatus is the lifecycle state of an ingestion job.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobDone      JobStatus = "done"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Job is the externally visible state of one ingestion.
type Job struct {
	ID         string               `json:"job_id"`
	Source     string               `json:"source"`
	Status     JobStatus            `json:"status"`
	Done       int                  `json:"done"`
	Total      int                  `json:"total"`
	Message    string               `json:"message,omitempty"`
	Error      string               `json:"error,omitempty"`
	Report     *domain.IngestReport `json:"report,omitempty"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt *time.Time           `json:"finished_at,omitempty"`
}

type jobEntry struct {
	job    Job
	cancel context.CancelFunc
}

type jobTable struct {
	mu   sync.Mutex
	jobs map[string]*jobEntry
}

func newJobTable() *jobTable {
	return &jobTable{jobs: make(map[string]*jobEntry)}
}

func (t *jobTable) start(source string, cancel context.CancelFunc) Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := &jobEntry{
		job:    Job{ID: uuid.NewString(), Source: source, Status: JobRunning, StartedAt: time.Now().UTC()},
		cancel: cancel,
	}
	t.jobs[e.job.ID] = e
	return e.job
}

func (t *jobTable) progress(id string, p domain.Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.jobs[id]; ok {
		e.job.Done, e.job.Total = p.Done, p.Total
	}
}

func (t *jobTable) finish(id string, status JobStatus, report *domain.IngestReport, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.jobs[id]
	if !ok {
		return
	}
	now := time.Now().UTC()
	e.job.Status = status
	e.job.FinishedAt = &now
	e.job.Report = report
	if report != nil {
		e.job.Message = report.Message()
	}
	if err != nil {
		e.job.Error = err.Error()
	}
	e.cancel = nil
}

func (t *jobTable) get(id string) (Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.jobs[id]
	if !ok {
		return Job{}, false
	}
	return e.job, true
}

// cancel reports whether the job exists and whether it was still running.
func (t *jobTable) cancel(id string) (found, running bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.jobs[id]
	if !ok {
		return false, false
	}
	if e.cancel == nil {
		return true, false
	}
	e.cancel()
	return true, true
}

func (t *jobTable) cancelAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.jobs {
		if e.cancel != nil {
			e.cancel()
		}
	}
}
