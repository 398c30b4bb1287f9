package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLLMService(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *LLMConfig
		expectError bool
	}{
		{"DeepSeek config", &LLMConfig{Provider: "deepseek", Model: "deepseek-chat", APIKey: "k", BaseURL: "https://api.deepseek.com"}, false},
		{"SiliconFlow config", &LLMConfig{Provider: "siliconflow", Model: "Qwen/Qwen2.5-7B-Instruct", APIKey: "k"}, false},
		{"Anthropic config", &LLMConfig{Provider: "anthropic", Model: "claude-sonnet-4-5", APIKey: "k"}, false},
		{"Unsupported provider", &LLMConfig{Provider: "unknown"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewLLMService(tt.cfg)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, svc)
		})
	}
}

func TestOpenAIServiceChat(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"你好呀"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	svc, err := NewLLMService(&LLMConfig{Provider: "openai", Model: "gpt-test", APIKey: "k", BaseURL: srv.URL, MaxTokens: 256, Temperature: 0.5})
	require.NoError(t, err)

	out, err := svc.Chat(context.Background(), FormatMessages("你是教师甲", "你好", nil), WithJSONMode(), WithMaxTokens(64))
	require.NoError(t, err)
	assert.Equal(t, "你好呀", out)

	assert.Equal(t, "gpt-test", captured["model"])
	assert.EqualValues(t, 64, captured["max_tokens"])
	assert.Equal(t, map[string]any{"type": "json_object"}, captured["response_format"])
	msgs := captured["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
}

func TestOpenAIServiceChat_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[]}`))
	}))
	defer srv.Close()

	svc, err := NewLLMService(&LLMConfig{Provider: "openai", Model: "m", APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = svc.Chat(context.Background(), []Message{UserMessage("hi")})
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestApplyChatOptions(t *testing.T) {
	o := ApplyChatOptions(1024, 0.7)
	assert.Equal(t, 1024, o.MaxTokens)
	require.NotNil(t, o.Temperature)
	assert.Equal(t, float32(0.7), *o.Temperature)
	assert.False(t, o.JSONMode)

	o = ApplyChatOptions(1024, 0.7, WithTemperature(0), WithJSONMode())
	assert.Equal(t, float32(0), *o.Temperature)
	assert.True(t, o.JSONMode)
}

func TestSplitSystem(t *testing.T) {
	system, turns := splitSystem([]Message{
		SystemPrompt("a"),
		UserMessage("u1"),
		{Role: "assistant", Content: "a1"},
		SystemPrompt("b"),
		UserMessage("u2"),
	})
	assert.Equal(t, "a\n\nb", system)
	assert.Len(t, turns, 3)
}

func TestFormatMessages(t *testing.T) {
	msgs := FormatMessages("sys", "now", []Message{UserMessage("before"), {Role: "assistant", Content: "reply"}})
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "now", msgs[3].Content)

	msgs = FormatMessages("", "only", nil)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].Role)
}
