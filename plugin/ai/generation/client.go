// Package generation wraps an LLMService with the two calls the persona core
// needs: free text and structured (JSON) text with a repair ladder.
package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/hrygo/personaflow/plugin/ai"
	"github.com/hrygo/personaflow/plugin/ai/timeout"
)

// Request is one generation call.
type Request struct {
	// Purpose names the caller (classify, reflex, supplement...) for logs and errors.
	Purpose     string
	System      string
	User        string
	History     []ai.Message
	MaxTokens   int
	Temperature *float32
}

// Client is safe for concurrent use by many turns.
type Client struct {
	llm     ai.LLMService
	limiter *rate.Limiter
	sem     *semaphore.Weighted
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimit caps backend calls per second. rps <= 0 disables the limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMaxConcurrency caps in-flight backend calls. n <= 0 disables the cap.
func WithMaxConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a generation client over llm.
func NewClient(llm ai.LLMService, opts ...Option) *Client {
	c := &Client{llm: llm, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateText returns the trimmed reply. Failures are *Error values:
// FailureEmptyResponse for blank output, FailureUnreachable for connection
// failures, FailureBackendError otherwise.
func (c *Client) GenerateText(ctx context.Context, req *Request) (string, error) {
	out, err := c.chat(ctx, req, false)
	if err != nil {
		return "", err
	}
	return out, nil
}

// GenerateStructured asks for a JSON object and repairs the reply through the
// parser ladder. Malformed output never produces an error: it yields a result
// with Stage == StageUnparsed and the ErrorMarker set. Errors are returned only
// when the backend call itself fails.
func (c *Client) GenerateStructured(ctx context.Context, req *Request, expectedFields []string) (*StructuredResult, error) {
	structured := *req
	if len(expectedFields) > 0 {
		structured.System = strings.TrimSpace(req.System) +
			"\n\n只输出一个 JSON 对象，必须包含字段：" + strings.Join(expectedFields, ", ") + "。"
	}

	raw, err := c.chat(ctx, &structured, true)
	if err != nil {
		return nil, err
	}

	result := Repair(raw, expectedFields)
	if !result.Parsed() {
		c.logger.Warn("Generation: structured output unparsed",
			"purpose", req.Purpose,
			"raw", truncateForLog(raw, timeout.MaxTruncateLength),
		)
	} else if result.Stage != StageStrict || len(result.Missing) > 0 {
		c.logger.Debug("Generation: structured output repaired",
			"purpose", req.Purpose,
			"stage", result.Stage,
			"missing", result.Missing,
		)
	}
	return result, nil
}

func (c *Client) chat(ctx context.Context, req *Request, jsonMode bool) (string, error) {
	if err := c.acquire(ctx); err != nil {
		return "", &Error{Kind: FailureBackendError, Purpose: req.Purpose, Err: err}
	}
	defer c.release()

	opts := make([]ai.ChatOption, 0, 3)
	if req.MaxTokens > 0 {
		opts = append(opts, ai.WithMaxTokens(req.MaxTokens))
	}
	if req.Temperature != nil {
		opts = append(opts, ai.WithTemperature(*req.Temperature))
	}
	if jsonMode {
		opts = append(opts, ai.WithJSONMode())
	}

	start := time.Now()
	raw, err := c.llm.Chat(ctx, ai.FormatMessages(req.System, req.User, req.History), opts...)
	latency := time.Since(start)
	if err != nil {
		genErr := classify(req.Purpose, err)
		c.logger.Warn("Generation: call failed",
			"purpose", req.Purpose,
			"kind", genErr.Kind,
			"latency_ms", latency.Milliseconds(),
			"error", err,
		)
		return "", genErr
	}

	out := strings.TrimSpace(raw)
	if out == "" {
		return "", &Error{Kind: FailureEmptyResponse, Purpose: req.Purpose}
	}

	c.logger.Debug("Generation: call completed",
		"purpose", req.Purpose,
		"latency_ms", latency.Milliseconds(),
		"output_runes", utf8.RuneCountInString(out),
	)
	return out, nil
}

func (c *Client) acquire(ctx context.Context) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}
	if c.sem != nil {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("concurrency wait: %w", err)
		}
	}
	return nil
}

func (c *Client) release() {
	if c.sem != nil {
		c.sem.Release(1)
	}
}

// truncateForLog truncates a string to maxLen runes for logging.
func truncateForLog(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}
