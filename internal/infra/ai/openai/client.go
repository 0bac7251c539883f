// Package openai adapts github.com/sashabaranov/go-openai into the AI
// Collaborator Adapter port (C4): a single fallback-safe Analyze call.
package openai

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/privoscope/privoscope/internal/infra/ai/prompt"
)

const (
	maxRetries   = 3
	backoffBase  = 200 * time.Millisecond
	backoffCap   = 2 * time.Second
	jitterFactor = 0.2
)

// Client wraps the OpenAI SDK with the timeout, retry, and token-budget
// discipline the adapter contract requires (spec §4.4).
type Client struct {
	inner       *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration

	tokenBudget    int64 // 0 means unbounded
	tokensSpent    int64 // atomic
	logger         hclog.Logger
	randSource     *rand.Rand
}

// Config collects the adapter's per-call knobs (spec §6 configuration surface).
type Config struct {
	APIKey      string
	ModelID     string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	TokenBudget int64
	Logger      hclog.Logger
}

// NewClient constructs an adapter client. An empty APIKey still returns a
// usable client whose calls will fail closed (Analyze returns ok=false).
func NewClient(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	return &Client{
		inner:       openai.NewClient(cfg.APIKey),
		model:       cfg.ModelID,
		maxTokens:   maxTokens,
		temperature: float32(cfg.Temperature),
		timeout:     timeout,
		tokenBudget: cfg.TokenBudget,
		logger:      logger,
		randSource:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Stats is a per-call metrics snapshot (spec §4.4).
type Stats struct {
	Attempted bool
	Succeeded bool
	LatencyMS int64
	ModelID   string
}

// Analyze sends promptText/extraContext to the configured model and returns
// its raw text response. It never raises: any transport, auth, quota, or
// precondition failure returns ("", false) so the caller's deterministic
// fallback runs instead (spec §4.4 Failure policy).
func (c *Client) Analyze(ctx context.Context, promptText, extraContext string) (string, bool) {
	text, _ := c.AnalyzeWithStats(ctx, promptText, extraContext)
	return text, text != ""
}

// AnalyzeWithStats is the same call with the per-call Stats the adapter
// contract requires for metrics (spec §4.4).
func (c *Client) AnalyzeWithStats(ctx context.Context, promptText, extraContext string) (string, Stats) {
	start := time.Now()
	stats := Stats{ModelID: c.model}

	if c.tokenBudget > 0 && atomic.LoadInt64(&c.tokensSpent) >= c.tokenBudget {
		c.logger.Warn("ai token budget exhausted, skipping call")
		return "", stats
	}

	model := c.model
	if model == "" {
		model = "gpt-4o-mini"
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		stats.Attempted = true
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		text, usage, err := c.call(callCtx, model, promptText, extraContext)
		cancel()

		if err == nil {
			atomic.AddInt64(&c.tokensSpent, int64(usage))
			stats.Succeeded = true
			stats.LatencyMS = time.Since(start).Milliseconds()
			return text, stats
		}
		lastErr = err
		if !isRetryable(err) {
			break
		}
		if attempt < maxRetries-1 {
			time.Sleep(c.backoffDelay(attempt))
		}
	}

	c.logger.Warn("ai adapter call failed, falling back", "error", lastErr)
	stats.LatencyMS = time.Since(start).Milliseconds()
	return "", stats
}

func (c *Client) call(ctx context.Context, model, promptText, extraContext string) (string, int, error) {
	req := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.SystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: prompt.UserPrompt(promptText, extraContext)},
		},
	}
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = c.maxTokens
	} else {
		req.MaxTokens = c.maxTokens
	}

	resp, err := c.inner.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", 0, err
	}
	if len(resp.Choices) == 0 {
		return "", 0, errors.New("empty choices in completion response")
	}
	return resp.Choices[0].Message.Content, resp.Usage.TotalTokens, nil
}

// backoffDelay implements the contractual retry schedule: base 200ms,
// cap 2s, jitter +-20% (spec §4.8 Retries).
func (c *Client) backoffDelay(attempt int) time.Duration {
	d := backoffBase * time.Duration(1<<uint(attempt))
	if d > backoffCap {
		d = backoffCap
	}
	jitter := float64(d) * jitterFactor * (2*c.randSource.Float64() - 1)
	return d + time.Duration(jitter)
}

// isRetryable limits retries to transport/5xx conditions, per the adapter
// contract's "idempotent operations" retry scope (spec §4.8).
func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return errors.As(err, new(*openai.RequestError))
}
