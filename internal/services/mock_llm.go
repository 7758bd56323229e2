package services

import (
	"context"
	"sync"
)

// MockLLM is a mock implementation of LLMService for testing
type MockLLM struct {
	GenerateResponseFunc func(ctx context.Context, req Request) (string, error)

	// Responses are returned in order when GenerateResponseFunc is nil.
	// Once exhausted the last entry repeats.
	Responses []MockResponse
	Model     string

	// Track calls for testing
	GenerateResponseCalls []Request

	mu sync.Mutex // protects all fields above
}

type MockResponse struct {
	Text string
	Err  error
}

// NewMockLLM creates a new mock LLM service that replies with the given texts in order
func NewMockLLM(texts ...string) *MockLLM {
	m := &MockLLM{
		Model:                 "mock-model",
		GenerateResponseCalls: make([]Request, 0),
	}
	for _, t := range texts {
		m.Responses = append(m.Responses, MockResponse{Text: t})
	}
	return m
}

func (m *MockLLM) ModelName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Model
}

// GenerateResponse mocks response generation
func (m *MockLLM) GenerateResponse(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := len(m.GenerateResponseCalls)
	m.GenerateResponseCalls = append(m.GenerateResponseCalls, req)

	if m.GenerateResponseFunc != nil {
		return m.GenerateResponseFunc(ctx, req)
	}

	if len(m.Responses) == 0 {
		return "Mock response", nil
	}
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	r := m.Responses[idx]
	return r.Text, r.Err
}

// Push appends a queued response
func (m *MockLLM) Push(text string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, MockResponse{Text: text, Err: err})
}

// SetGenerateResponseError sets up the mock to always fail
func (m *MockLLM) SetGenerateResponseError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateResponseFunc = func(ctx context.Context, req Request) (string, error) {
		return "", err
	}
}

// Reset clears all call tracking
func (m *MockLLM) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateResponseCalls = make([]Request, 0)
}

// GetCalls returns a copy of the call tracking data in a thread-safe way
func (m *MockLLM) GetCalls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]Request, len(m.GenerateResponseCalls))
	copy(calls, m.GenerateResponseCalls)
	return calls
}

var _ LLMService = (*MockLLM)(nil)
