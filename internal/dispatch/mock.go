package dispatch

import (
	"context"
	"fmt"
	"sync"
)

// MockBackend records every dispatch and returns a synthetic success. Used
// in tests to observe pipeline hand-offs without any transport.
type MockBackend struct {
	mu       sync.Mutex
	messages []Message

	// FailWith, when non-empty, is returned instead of queued.
	FailWith Status
}

func NewMockBackend() *MockBackend {
	return &MockBackend{}
}

func (b *MockBackend) Dispatch(_ context.Context, msg Message) Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailWith != "" {
		return Result{Status: b.FailWith}
	}
	b.messages = append(b.messages, msg)
	return Result{
		TaskID: fmt.Sprintf("mock-%d", len(b.messages)),
		Status: StatusQueued,
	}
}

// Messages returns a copy of everything dispatched so far.
func (b *MockBackend) Messages() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Message, len(b.messages))
	copy(out, b.messages)
	return out
}

// Reset clears recorded messages.
func (b *MockBackend) Reset() {
	b.mu.Lock()
	b.messages = nil
	b.mu.Unlock()
}
