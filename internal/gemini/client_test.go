package gemini

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
)

func TestNewClient_defaults(t *testing.T) {
	c := NewClient(Config{}, nil)
	if c.cfg.APIKeyEnv != "GOOGLE_GENERATIVE_AI_KEY" {
		t.Errorf("api key env: %q", c.cfg.APIKeyEnv)
	}
	if c.cfg.EmbeddingModel != "models/text-embedding-004" || c.cfg.GenerationModel != "gemini-1.5-flash" {
		t.Errorf("models: %+v", c.cfg)
	}
	if c.limiter != nil || c.breaker != nil {
		t.Error("limiter and breaker should be off by default")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close without use: %v", err)
	}
}

func TestNewClient_limiterAndBreaker(t *testing.T) {
	c := NewClient(Config{RequestsPerMinute: 5, Breaker: true}, zap.NewNop())
	if c.limiter == nil {
		t.Error("expected limiter")
	}
	if c.limiter.Burst() != 1 {
		t.Errorf("burst: %d", c.limiter.Burst())
	}
	if c.breaker == nil {
		t.Error("expected breaker")
	}
}

func TestMissingKeyFailsAtFirstCall(t *testing.T) {
	c := NewClient(Config{APIKeyEnv: "PDFQA_TEST_UNSET_GEMINI_KEY"}, zap.NewNop())
	ctx := context.Background()
	if _, err := c.Embed(ctx, "x"); err == nil || !strings.Contains(err.Error(), "PDFQA_TEST_UNSET_GEMINI_KEY") {
		t.Errorf("Embed: expected missing key error, got %v", err)
	}
	if _, err := c.Generate(ctx, "q", "c"); err == nil {
		t.Error("Generate: expected missing key error")
	}
}

func TestResponseText(t *testing.T) {
	if got := responseText(nil); got != "" {
		t.Errorf("nil response: %q", got)
	}
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("Total revenue "), genai.Text("is 100.")}},
		}},
	}
	if got := responseText(resp); got != "Total revenue is 100." {
		t.Errorf("got %q", got)
	}
	empty := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}
	if got := responseText(empty); got != "" {
		t.Errorf("no content: %q", got)
	}
}

func TestLive(t *testing.T) {
	if os.Getenv("GOOGLE_GENERATIVE_AI_KEY") == "" {
		t.Skip("GOOGLE_GENERATIVE_AI_KEY not set")
	}
	c := NewClient(Config{}, zap.NewNop())
	defer c.Close()
	vec, err := c.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("embedding error: %v", err)
	}
	if len(vec) == 0 {
		t.Fatal("empty embedding")
	}
}
