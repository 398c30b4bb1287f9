package generation

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/personaflow/plugin/ai"
)

func replyWith(reply string, err error) *ai.MockLLMService {
	return &ai.MockLLMService{
		Handler: func(context.Context, []ai.Message, ai.ChatOptions) (string, error) {
			return reply, err
		},
	}
}

func TestGenerateText(t *testing.T) {
	llm := replyWith("  你好，我是教师甲。  ", nil)
	client := NewClient(llm)

	out, err := client.GenerateText(context.Background(), &Request{
		Purpose: "direct",
		System:  "你是教师甲",
		User:    "你好",
		History: []ai.Message{ai.UserMessage("之前的话")},
	})
	require.NoError(t, err)
	assert.Equal(t, "你好，我是教师甲。", out)

	calls := llm.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 3)
	assert.Equal(t, "system", calls[0][0].Role)
	assert.Equal(t, "之前的话", calls[0][1].Content)
	assert.Equal(t, "你好", calls[0][2].Content)
}

func TestGenerateTextFailures(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		err      error
		wantKind FailureKind
		sentinel error
	}{
		{"blank output", "   \n", nil, FailureEmptyResponse, ErrEmptyResponse},
		{"no choices", "", ai.ErrEmptyCompletion, FailureEmptyResponse, ErrEmptyResponse},
		{"api error", "", errors.New("status 500: internal error"), FailureBackendError, ErrBackend},
		{"dial failure", "", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, FailureUnreachable, ErrUnreachable},
		{"dns failure", "", errors.New(`Post "https://api.example": dial tcp: lookup api.example: no such host`), FailureUnreachable, ErrUnreachable},
		{"deadline", "", context.DeadlineExceeded, FailureBackendError, ErrBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(replyWith(tt.reply, tt.err))
			out, err := client.GenerateText(context.Background(), &Request{Purpose: "reflex"})
			assert.Empty(t, out)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, KindOf(err))
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, tt.wantKind == FailureUnreachable, IsUnreachable(err))
			assert.Contains(t, err.Error(), "reflex")
		})
	}
}

func TestGenerateStructured(t *testing.T) {
	var jsonMode atomic.Bool
	var system atomic.Value
	llm := &ai.MockLLMService{
		Handler: func(_ context.Context, msgs []ai.Message, o ai.ChatOptions) (string, error) {
			jsonMode.Store(o.JSONMode)
			system.Store(msgs[0].Content)
			return "```json\n{\"title\": \"t\", \"content\": \"c\"}\n```", nil
		},
	}
	client := NewClient(llm)

	result, err := client.GenerateStructured(context.Background(), &Request{Purpose: "author", System: "生成记忆"}, []string{"title", "content"})
	require.NoError(t, err)
	assert.True(t, jsonMode.Load())
	assert.True(t, strings.Contains(system.Load().(string), "title, content"))
	assert.Equal(t, StageFenced, result.Stage)
	assert.True(t, result.Complete())
}

func TestGenerateStructuredGibberish(t *testing.T) {
	client := NewClient(replyWith("抱歉，我无法生成。", nil))

	result, err := client.GenerateStructured(context.Background(), &Request{Purpose: "author"}, []string{"title"})
	require.NoError(t, err)
	assert.Equal(t, StageUnparsed, result.Stage)
	assert.Equal(t, ErrorMarker, result.ErrorMarker)
	assert.Equal(t, "抱歉，我无法生成。", result.Raw)
}

func TestGenerateStructuredBackendFailure(t *testing.T) {
	client := NewClient(replyWith("", errors.New("status 401")))
	result, err := client.GenerateStructured(context.Background(), &Request{Purpose: "author"}, nil)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrBackend)
}

func TestClientMaxConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	llm := &ai.MockLLMService{
		Handler: func(context.Context, []ai.Message, ai.ChatOptions) (string, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			inFlight.Add(-1)
			return "ok", nil
		},
	}
	client := NewClient(llm, WithMaxConcurrency(2), WithRateLimit(0, 0))

	done := make(chan struct{})
	for i := 0; i < 6; i++ {
		go func() {
			_, _ = client.GenerateText(context.Background(), &Request{Purpose: "p"})
			done <- struct{}{}
		}()
	}
	for i := 0; i < 6; i++ {
		<-done
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestClientAcquireHonoursContext(t *testing.T) {
	client := NewClient(replyWith("ok", nil), WithRateLimit(0.001, 1))
	_, err := client.GenerateText(context.Background(), &Request{Purpose: "p"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = client.GenerateText(ctx, &Request{Purpose: "p"})
	assert.ErrorIs(t, err, ErrBackend)
}

func TestTruncateForLog(t *testing.T) {
	assert.Equal(t, "短", truncateForLog("短", 5))
	assert.Equal(t, "一二...", truncateForLog("一二三四", 2))
}
