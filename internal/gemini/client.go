// Package gemini wraps the Google Generative AI SDK for embeddings and answers.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"pdfqa/internal/prompt"
)

// Config configures the Gemini client.
type Config struct {
	APIKeyEnv       string
	EmbeddingModel  string
	GenerationModel string
	// Instructions are appended to every generation prompt.
	Instructions string
	// RequestsPerMinute throttles calls when positive. Requests wait, they are never retried.
	RequestsPerMinute int
	// Breaker fails calls fast after repeated errors.
	Breaker bool
}

// Client implements both domain.Embedder and domain.Generator.
// The SDK client is created on first use so that a missing key
// surfaces at the first remote call instead of at startup.
type Client struct {
	cfg     Config
	logger  *zap.Logger
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker

	mu     sync.Mutex
	client *genai.Client
}

// NewClient creates a client. No network calls are made.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "GOOGLE_GENERATIVE_AI_KEY"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "models/text-embedding-004"
	}
	if cfg.GenerationModel == "" {
		cfg.GenerationModel = "gemini-1.5-flash"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{cfg: cfg, logger: logger}
	if cfg.RequestsPerMinute > 0 {
		burst := cfg.RequestsPerMinute / 10
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), burst)
	}
	if cfg.Breaker {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "gemini",
			MaxRequests: 1,
			Interval:    30 * time.Second,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state changed",
					zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
			},
		})
	}
	return c
}

func (c *Client) Name() string { return "gemini" }

// Embed returns the embedding of text from the configured embedding model.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := c.call(ctx, func(client *genai.Client) (any, error) {
		resp, err := client.EmbeddingModel(c.cfg.EmbeddingModel).EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, err
		}
		if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
			return nil, errors.New("no embedding returned")
		}
		return resp.Embedding.Values, nil
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	return out.([]float32), nil
}

// Generate answers query from the retrieved context.
func (c *Client) Generate(ctx context.Context, query, retrieved string) (string, error) {
	p := prompt.Build(query, retrieved, c.cfg.Instructions)
	out, err := c.call(ctx, func(client *genai.Client) (any, error) {
		resp, err := client.GenerativeModel(c.cfg.GenerationModel).GenerateContent(ctx, genai.Text(p))
		if err != nil {
			return nil, err
		}
		text := responseText(resp)
		if text == "" {
			return nil, errors.New("empty response")
		}
		return text, nil
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return out.(string), nil
}

// Close releases the SDK client if one was created.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

func (c *Client) call(ctx context.Context, fn func(*genai.Client) (any, error)) (any, error) {
	client, err := c.sdk()
	if err != nil {
		return nil, err
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if c.breaker == nil {
		return fn(client)
	}
	return c.breaker.Execute(func() (interface{}, error) { return fn(client) })
}

func (c *Client) sdk() (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	key := os.Getenv(c.cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", c.cfg.APIKeyEnv)
	}
	// the SDK client outlives any single request context
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(key))
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}
