// Package ai wraps the Google GenAI provider behind the two capabilities the
// application needs: embed(text) -> vector and generate(prompt) -> text.
//
// The client owns the cross-cutting concerns of talking to a paid remote
// model API:
//   - a hard deadline per call (a hung provider call must surface as a
//     failure, not stall the event's task forever)
//   - outbound pacing with a token bucket, so a burst of Slack events does
//     not stampede the API
//   - an LRU memoization cache for embeddings keyed by exact input text
//
// It records Prometheus counters for provider traffic and embedding cache
// effectiveness.
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/answerbase/go-knowledge-bot/internal/cache"
	"github.com/answerbase/go-knowledge-bot/internal/observability"
)

var (
	// llmRequests counts generation calls issued to the provider.
	llmRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "llm_requests_total",
		Help: "Total generation requests sent to the model provider.",
	})

	// embeddingRequests counts embedding calls issued to the provider
	// (cache hits do not reach the provider and are not counted here).
	embeddingRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "embedding_requests_total",
		Help: "Total embedding requests sent to the model provider.",
	})

	// providerErrors counts failed provider calls by capability.
	providerErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "provider_errors_total",
		Help: "Total failed provider calls.",
	}, []string{"capability"})
)

func init() {
	prometheus.MustRegister(llmRequests, embeddingRequests, providerErrors)
}

// Options configures a Client.
type Options struct {
	// Model is the generation model id (e.g. "gemini-2.5-flash").
	Model string
	// EmbedModel is the embedding model id (e.g. "gemini-embedding-001").
	EmbedModel string
	// CallTimeout bounds every provider call. Values <= 0 default to 30s.
	CallTimeout time.Duration
	// RPS/Burst pace outbound calls. RPS 0 disables pacing.
	RPS   float64
	Burst int
	// EmbedCacheSize bounds the embedding memoization cache. Values < 1
	// default to 10000.
	EmbedCacheSize int
}

// Client is a thin, concurrency-safe wrapper over the GenAI SDK.
type Client struct {
	genai      *genai.Client
	model      string
	embedModel string
	timeout    time.Duration
	limiter    *rate.Limiter
	embCache   *cache.LRU[[]float32]
}

// NewClient builds a Client from an already constructed SDK client. The SDK
// client is shared between generation and embeddings.
func NewClient(gc *genai.Client, opts Options) *Client {
	if opts.Model == "" {
		opts.Model = "gemini-2.5-flash"
	}
	if opts.EmbedModel == "" {
		opts.EmbedModel = "gemini-embedding-001"
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 30 * time.Second
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	if opts.EmbedCacheSize < 1 {
		opts.EmbedCacheSize = 10000
	}

	var lim *rate.Limiter
	if opts.RPS > 0 {
		lim = rate.NewLimiter(rate.Limit(opts.RPS), opts.Burst)
	}
	return &Client{
		genai:      gc,
		model:      opts.Model,
		embedModel: opts.EmbedModel,
		timeout:    opts.CallTimeout,
		limiter:    lim,
		embCache:   cache.NewLRU[[]float32](opts.EmbedCacheSize),
	}
}

// Dial creates the underlying SDK client with an API key and wraps it.
func Dial(ctx context.Context, apiKey string, opts Options) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("ai: create genai client: %w", err)
	}
	return NewClient(gc, opts), nil
}

// Embed returns the embedding vector for text. Results are memoized by exact
// input text; a hit returns the prior vector verbatim.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.embCache.Get(text); ok {
		observability.CacheHits.WithLabelValues("embedding").Inc()
		return v, nil
	}
	observability.CacheMisses.WithLabelValues("embedding").Inc()

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	embeddingRequests.Inc()
	resp, err := c.genai.Models.EmbedContent(ctx,
		c.embedModel,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.EmbedContentConfig{TaskType: "SEMANTIC_SIMILARITY"},
	)
	if err != nil {
		providerErrors.WithLabelValues("embed").Inc()
		return nil, fmt.Errorf("ai: embed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		providerErrors.WithLabelValues("embed").Inc()
		return nil, fmt.Errorf("ai: embed: empty embedding response")
	}

	vec := resp.Embeddings[0].Values
	c.embCache.Set(text, vec)
	return vec, nil
}

// Generate sends prompt to the generation model and returns the raw text of
// the first candidate.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	llmRequests.Inc()
	resp, err := c.genai.Models.GenerateContent(ctx,
		c.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{Temperature: genai.Ptr(float32(0.2))},
	)
	if err != nil {
		providerErrors.WithLabelValues("generate").Inc()
		return "", fmt.Errorf("ai: generate: %w", err)
	}
	out := resp.Text()
	if out == "" {
		providerErrors.WithLabelValues("generate").Inc()
		return "", fmt.Errorf("ai: generate: empty response")
	}
	return out, nil
}

// wait blocks until the pacing limiter admits a call, honoring ctx.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("ai: pacing: %w", err)
	}
	return nil
}
