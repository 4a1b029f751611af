// Package testutil provides test doubles for the llm package.
package testutil

import (
	"context"
	"sync"

	"github.com/c360studio/sleuthbench/llm"
)

// MockInvoker is a thread-safe scripted invoker for pipeline tests.
//
// Usage:
//
//	// Echo every prompt
//	mock := &MockInvoker{Fn: func(msgs []llm.Message) llm.InvocationResult {
//	    return llm.InvocationResult{Content: "noted", AttemptCount: 1}
//	}}
//
//	// Scripted results in sequence, then empties
//	mock := &MockInvoker{Results: []llm.InvocationResult{
//	    {Content: "first", AttemptCount: 1},
//	    {AttemptCount: 5}, // zero response after retries
//	}}
type MockInvoker struct {
	mu sync.Mutex

	// Fn computes the result per call; takes precedence over Results.
	Fn func(messages []llm.Message) llm.InvocationResult

	// Results are returned in sequence; once exhausted, empty results with
	// AttemptCount 1 are returned.
	Results []llm.InvocationResult

	calls       []Call
	resultIndex int
}

// Call captures one invocation for verification.
type Call struct {
	Worker   string
	Messages []llm.Message
}

// Invoke implements llm.Invoker.
func (m *MockInvoker) Invoke(_ context.Context, worker string, messages []llm.Message) llm.InvocationResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Call{Worker: worker, Messages: messages})

	if m.Fn != nil {
		return m.Fn(messages)
	}

	if m.resultIndex < len(m.Results) {
		res := m.Results[m.resultIndex]
		m.resultIndex++
		return res
	}

	return llm.InvocationResult{AttemptCount: 1}
}

// Calls returns the captured invocations in order.
func (m *MockInvoker) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of invocations made.
func (m *MockInvoker) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastUserPrompt returns the content of the last user message of the last
// call, or empty when nothing was captured.
func (m *MockInvoker) LastUserPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.calls) == 0 {
		return ""
	}
	msgs := m.calls[len(m.calls)-1].Messages
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			return msgs[i].Content
		}
	}
	return ""
}
