// Package ollama talks to an Ollama-compatible generation endpoint to
// classify tax documents and review a whole return.
package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/infrastructure/resilience"
)

const defaultTimeout = 180 * time.Second

type Options struct {
	BaseURL    string
	Model      string
	EmbedModel string
	Timeout    time.Duration

	// RateLimitRPS paces outgoing requests; zero disables pacing.
	RateLimitRPS float64
	MaxAttempts  int

	// OnRetry is called before each backoff wait with the operation name and
	// the retry reason ("rate_limited" or "unavailable").
	OnRetry func(operation, reason string)
}

type Client struct {
	baseURL    string
	model      string
	embedModel string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
	attempts   int
	onRetry    func(operation, reason string)
}

// New builds a client. A nil executor gets the default breaker settings.
func New(opts Options, executor *resilience.Executor) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}

	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		burst := int(opts.RateLimitRPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), burst)
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		model:      opts.Model,
		embedModel: opts.EmbedModel,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		executor:   executor,
		attempts:   opts.MaxAttempts,
		onRetry:    opts.OnRetry,
	}
}

type generateRequest struct {
	Model   string         `json:"model"`
	System  string         `json:"system,omitempty"`
	Prompt  string         `json:"prompt"`
	Images  []string       `json:"images,omitempty"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// generate returns the raw response text of a single non-streaming call.
func (c *Client) generate(ctx context.Context, operation string, req generateRequest) (string, error) {
	req.Model = c.model
	req.Stream = false
	if req.Options == nil {
		req.Options = map[string]any{"temperature": 0}
	}

	var response generateResponse
	if err := c.call(ctx, operation, "/api/generate", req, &response); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func (c *Client) call(ctx context.Context, operation, path string, payload, out any) error {
	name := "ollama." + operation
	policy := AnalysisRetryPolicy(c.attempts, func(reason string, _ error) {
		if c.onRetry != nil {
			c.onRetry(name, reason)
		}
	})
	err := c.executor.ExecuteWithPolicy(ctx, name, policy, func(ctx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		return c.postJSON(ctx, path, payload, out, operation)
	}, classifyAnalysisError)
	return normalizeServiceError(operation, err)
}
