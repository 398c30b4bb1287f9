package ai

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbeddingService(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *EmbeddingConfig
		expectError bool
	}{
		{"SiliconFlow config", &EmbeddingConfig{Provider: "siliconflow", Model: "BAAI/bge-m3", Dimensions: 1024, APIKey: "k"}, false},
		{"OpenAI config with cache", &EmbeddingConfig{Provider: "openai", Model: "text-embedding-3-small", Dimensions: 1536, APIKey: "k", CacheSize: 10}, false},
		{"Unsupported provider", &EmbeddingConfig{Provider: "unsupported"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewEmbeddingService(tt.cfg)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cfg.Dimensions, svc.Dimensions())
		})
	}
}

func TestEmbeddingServiceEmbedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "bge", req["model"])
		w.Header().Set("Content-Type", "application/json")
		// Out of order on purpose: results are placed by index.
		_, _ = w.Write([]byte(`{"object":"list","data":[
			{"object":"embedding","index":1,"embedding":[0,2]},
			{"object":"embedding","index":0,"embedding":[3,4]}
		],"model":"bge"}`))
	}))
	defer srv.Close()

	svc, err := NewEmbeddingService(&EmbeddingConfig{Provider: "openai", Model: "bge", Dimensions: 2, APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	vectors, err := svc.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, vectors[0], 1e-6)
	assert.InDeltaSlice(t, []float32{0, 1}, vectors[1], 1e-6)

	_, err = svc.EmbedBatch(context.Background(), nil)
	assert.Error(t, err)
}

func TestCachedEmbeddingService(t *testing.T) {
	inner := NewMockEmbeddingService("家", "工作")
	svc, err := NewCachedEmbeddingService(inner, 16)
	require.NoError(t, err)
	cached := svc.(*cachedEmbeddingService)

	first, err := svc.Embed(context.Background(), "你小时候家里什么样")
	require.NoError(t, err)
	cached.Wait()

	second, err := svc.Embed(context.Background(), "你小时候家里什么样")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), inner.Calls())
	assert.Equal(t, 3, svc.Dimensions())
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	assert.InDelta(t, 1.0, math.Hypot(float64(v[0]), float64(v[1])), 1e-6)
	assert.Equal(t, []float32{0, 0}, Normalize([]float32{0, 0}))
}

// dot is the cosine of two unit vectors.
func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func TestMockEmbeddingService(t *testing.T) {
	m := NewMockEmbeddingService("家", "工作")
	family, _ := m.Embed(context.Background(), "小时候家里很热闹，家人常常一起吃饭")
	query, _ := m.Embed(context.Background(), "你小时候家里什么样")
	work, _ := m.Embed(context.Background(), "第一份工作是在中学教语文，工作很忙")

	assert.Greater(t, dot(family, query), float32(0.9))
	assert.Less(t, dot(work, query), float32(0.1))
}
