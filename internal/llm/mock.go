package llm

import (
	"context"
	"strings"
	"sync"
)

// MockAdapter permite tests sin llamar a un LLM real.
type MockAdapter struct {
	Fragments []string
	Err       error
	// StreamErr se reporta después de emitir Fragments.
	StreamErr error

	mu       sync.Mutex
	Requests []CompletionRequest
}

func (m *MockAdapter) Name() string { return "mock" }

func (m *MockAdapter) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	m.record(req)
	if m.Err != nil {
		return CompletionResult{}, m.Err
	}
	return CompletionResult{Content: strings.Join(m.Fragments, ""), Model: req.Model, Usage: &Usage{}}, nil
}

func (m *MockAdapter) CompleteStreaming(ctx context.Context, req CompletionRequest, sink StreamSink) {
	m.record(req)
	life := newStreamLifecycle(sink)
	if m.Err != nil {
		life.fail(m.Err)
		return
	}
	life.connect()
	var content strings.Builder
	for _, f := range m.Fragments {
		content.WriteString(f)
		if err := life.fragment(sink, f); err != nil {
			return
		}
	}
	if m.StreamErr != nil {
		life.fail(m.StreamErr)
		return
	}
	life.complete(CompletionResult{Content: content.String(), Model: req.Model, Usage: &Usage{}})
}

func (m *MockAdapter) LastRequest() (CompletionRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return CompletionRequest{}, false
	}
	return m.Requests[len(m.Requests)-1], true
}

func (m *MockAdapter) record(req CompletionRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
}
