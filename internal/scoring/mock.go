package scoring

import (
	"context"
	"log/slog"
	"sync"
)

// MockWorkflow accepts every valid request and records it. It backs local
// development when no webhook is configured.
type MockWorkflow struct {
	mu       sync.Mutex
	requests []Request
	logger   *slog.Logger

	// Err, when set, is returned from Submit instead of recording.
	Err error
}

// NewMockWorkflow creates a recording workflow.
func NewMockWorkflow(logger *slog.Logger) *MockWorkflow {
	return &MockWorkflow{logger: logger}
}

// Submit records req.
func (m *MockWorkflow) Submit(_ context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.requests = append(m.requests, req)
	m.logger.Info("mock scoring request accepted", "candidate_id", req.CandidateID, "job_id", req.JobID)
	return nil
}

// Requests returns a copy of the recorded requests.
func (m *MockWorkflow) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

var _ Workflow = (*MockWorkflow)(nil)
