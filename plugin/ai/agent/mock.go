package agent

import (
	"context"
	"sync"

	"github.com/hrygo/personaflow/plugin/ai/generation"
	"github.com/hrygo/personaflow/plugin/ai/recollection"
)

// GenerateFunc scripts one generation purpose.
type GenerateFunc func(ctx context.Context, req *generation.Request) (string, error)

// MockGenerator is a scripted Generator keyed by Request.Purpose.
// Purposes without a handler fail with a backend error.
type MockGenerator struct {
	Handlers map[string]GenerateFunc

	mu    sync.Mutex
	calls []*generation.Request
}

// NewMockGenerator creates a MockGenerator with fixed replies per purpose.
func NewMockGenerator(replies map[string]string) *MockGenerator {
	m := &MockGenerator{Handlers: make(map[string]GenerateFunc, len(replies))}
	for purpose, reply := range replies {
		m.Handlers[purpose] = Reply(reply)
	}
	return m
}

// Reply returns a handler that always answers text.
func Reply(text string) GenerateFunc {
	return func(context.Context, *generation.Request) (string, error) {
		return text, nil
	}
}

// Fail returns a handler that always fails with kind.
func Fail(kind generation.FailureKind) GenerateFunc {
	return func(_ context.Context, req *generation.Request) (string, error) {
		return "", &generation.Error{Kind: kind, Purpose: req.Purpose}
	}
}

func (m *MockGenerator) GenerateText(ctx context.Context, req *generation.Request) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	handler, ok := m.Handlers[req.Purpose]
	m.mu.Unlock()

	if !ok {
		return "", &generation.Error{Kind: generation.FailureBackendError, Purpose: req.Purpose}
	}
	return handler(ctx, req)
}

// Calls returns the requests made for purpose, or all requests when purpose is "".
func (m *MockGenerator) Calls(purpose string) []*generation.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*generation.Request, 0, len(m.calls))
	for _, c := range m.calls {
		if purpose == "" || c.Purpose == purpose {
			out = append(out, c)
		}
	}
	return out
}

// RetrieveFunc scripts a Retriever.
type RetrieveFunc func(ctx context.Context, personaID, query string, limit int) ([]*recollection.Recollection, error)

// Retrieve implements Retriever.
func (f RetrieveFunc) Retrieve(ctx context.Context, personaID, query string, limit int) ([]*recollection.Recollection, error) {
	return f(ctx, personaID, query, limit)
}
