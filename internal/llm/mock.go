package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is a scriptable Client for tests. Responses are consumed in
// order; Handle, when set, takes precedence and may route on the prompt.
type MockClient struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	// Handle, if non-nil, is invoked instead of the response queue.
	Handle func(prompt Prompt) (string, error)
	// Calls records every prompt seen, in order.
	Calls []Prompt
}

// NewMockClient queues the given responses.
func NewMockClient(responses ...string) *MockClient {
	return &MockClient{Responses: responses}
}

func (m *MockClient) Complete(_ context.Context, prompt Prompt) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, prompt)
	if m.Handle != nil {
		return m.Handle(prompt)
	}
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", fmt.Errorf("mock client: no response queued for %q", prompt.Title)
	}
	next := m.Responses[0]
	m.Responses = m.Responses[1:]
	return next, nil
}

// CallCount reports how many prompts have been issued.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
