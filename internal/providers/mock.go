package providers

import (
	"context"
	"sync"
	"time"
)

const MockName = "mock"

// MockProvider is a Provider for testing.
type MockProvider struct {
	// Configurable behavior
	Latency   time.Duration
	Err       error
	FailAfter int // Fail after N requests (0 = never)

	// Responses are returned in order; the last one repeats once the list
	// is exhausted. Empty means ResponseText.
	Responses    []string
	ResponseText string
	Truncated    bool

	mu       sync.Mutex
	requests []*ExtractRequest
}

// NewMockProvider creates a mock with a canned response.
func NewMockProvider(text string) *MockProvider {
	return &MockProvider{ResponseText: text}
}

// Name returns the provider identifier.
func (m *MockProvider) Name() string {
	return MockName
}

// Extract records the request and returns the configured response.
func (m *MockProvider) Extract(ctx context.Context, req *ExtractRequest) (*ExtractResult, error) {
	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	count := len(m.requests)
	text := m.ResponseText
	if len(m.Responses) > 0 {
		idx := count - 1
		if idx >= len(m.Responses) {
			idx = len(m.Responses) - 1
		}
		text = m.Responses[idx]
	}
	m.mu.Unlock()

	if m.Err != nil && (m.FailAfter == 0 || count > m.FailAfter) {
		return nil, m.Err
	}

	return &ExtractResult{
		Text:          text,
		Truncated:     m.Truncated,
		Provider:      MockName,
		ModelUsed:     "mock-model",
		ExecutionTime: m.Latency,
	}, nil
}

// Requests returns a copy of every request seen so far.
func (m *MockProvider) Requests() []*ExtractRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ExtractRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestCount returns the number of Extract calls.
func (m *MockProvider) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

var _ Provider = (*MockProvider)(nil)
