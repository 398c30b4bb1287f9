package ai

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
)

// MockEmbeddingService is a deterministic EmbeddingService for tests and offline demos.
// Each axis keyword contributes one dimension counting its occurrences in the text,
// plus a small constant dimension so texts with no keyword are not zero vectors.
type MockEmbeddingService struct {
	Axes  []string
	calls atomic.Int64
}

// NewMockEmbeddingService creates a mock embedder over the given keyword axes.
func NewMockEmbeddingService(axes ...string) *MockEmbeddingService {
	return &MockEmbeddingService{Axes: axes}
}

func (m *MockEmbeddingService) Embed(_ context.Context, text string) ([]float32, error) {
	m.calls.Add(1)
	return m.vector(text), nil
}

func (m *MockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.calls.Add(1)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = m.vector(text)
	}
	return out, nil
}

func (m *MockEmbeddingService) Dimensions() int {
	return len(m.Axes) + 1
}

// Calls returns how many Embed/EmbedBatch calls were made.
func (m *MockEmbeddingService) Calls() int64 {
	return m.calls.Load()
}

func (m *MockEmbeddingService) vector(text string) []float32 {
	v := make([]float32, len(m.Axes)+1)
	for i, axis := range m.Axes {
		v[i] = float32(strings.Count(text, axis))
	}
	v[len(m.Axes)] = 0.1
	return Normalize(v)
}

// MockLLMService is a scripted LLMService. Handler decides each reply.
type MockLLMService struct {
	Handler func(ctx context.Context, messages []Message, opts ChatOptions) (string, error)

	mu    sync.Mutex
	calls [][]Message
}

func (m *MockLLMService) Chat(ctx context.Context, messages []Message, opts ...ChatOption) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, messages)
	m.mu.Unlock()

	if m.Handler == nil {
		return "", nil
	}
	return m.Handler(ctx, messages, ApplyChatOptions(0, 0, opts...))
}

// Calls returns a copy of the recorded message lists.
func (m *MockLLMService) Calls() [][]Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]Message, len(m.calls))
	copy(out, m.calls)
	return out
}
