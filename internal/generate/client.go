// Package generate wraps the Gemini API for website generation and short
// question answering. It owns prompt assembly, proactive rate limiting, and a
// circuit breaker; retry policy is deliberately asymmetric (streaming builds
// are never retried automatically, the knowledge path gets one bounded retry).
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/locaith-ai/studio/internal/builder"
	"github.com/locaith-ai/studio/internal/log"
)

// systemInstruction is the build protocol the streaming parser depends on:
// narrative log lines first, one [BUILD] line per completed step, then the
// complete HTML document starting at <!DOCTYPE html.
const systemInstruction = `You are a website generator.
First, narrate your plan briefly. Emit a line starting with [BUILD] for each
completed build step. When the plan is done, output the complete website as a
single self-contained HTML document starting with <!DOCTYPE html. Do not wrap
the document in markdown code fences. Inline all CSS and JavaScript.`

// regenerationPreamble frames incremental requests that carry a prior artifact.
const regenerationPreamble = `Update the following existing website according to the instruction.
Keep everything that the instruction does not ask to change.

Existing website:
`

// Config contains all required parameters for a Client.
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
	Logger      log.Logger

	// RateLimiter throttles outbound requests. Nil installs the default
	// (10 req/s sustained, burst of 30).
	RateLimiter *rate.Limiter
}

// validate checks if all required parameters are present.
func (cfg Config) validate() error {
	if cfg.APIKey == "" {
		return errors.New("api key is required")
	}
	if cfg.Model == "" {
		return errors.New("model is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Client is the generation service client.
// It implements builder.Generator.
//
// Client is safe for concurrent use.
type Client struct {
	models      contentStreamer
	model       string
	temperature float32
	logger      log.Logger

	rateLimiter *rate.Limiter
	breaker     *CircuitBreaker
	retryConfig RetryConfig
}

// contentStreamer is the slice of the genai SDK the client consumes.
// Narrow on purpose: tests substitute a fake.
type contentStreamer interface {
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) func(func(*genai.GenerateContentResponse, error) bool)
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// genaiModels adapts *genai.Models to contentStreamer.
type genaiModels struct {
	m *genai.Models
}

func (g genaiModels) GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) func(func(*genai.GenerateContentResponse, error) bool) {
	return g.m.GenerateContentStream(ctx, model, contents, config)
}

func (g genaiModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return g.m.GenerateContent(ctx, model, contents, config)
}

// New creates a Client with required configuration.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	rl := cfg.RateLimiter
	if rl == nil {
		rl = rate.NewLimiter(10, 30)
	}

	c := &Client{
		models:      genaiModels{m: gc.Models},
		model:       cfg.Model,
		temperature: cfg.Temperature,
		logger:      cfg.Logger,
		rateLimiter: rl,
		breaker:     NewCircuitBreaker(DefaultCircuitBreakerConfig()),
		retryConfig: DefaultRetryConfig(),
	}

	c.logger.Info("generation client initialized", "model", c.model)
	return c, nil
}

// Stream runs one generation and forwards each text chunk to onChunk in
// arrival order. The stream is never retried: a mid-stream retry would replay
// log text the parser has already consumed.
func (c *Client) Stream(ctx context.Context, req builder.GenerationRequest, onChunk func(context.Context, string) error) error {
	if err := c.breaker.Allow(); err != nil {
		return fmt.Errorf("service unavailable: %w", err)
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	config := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(c.temperature),
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
	}

	chunks := 0
	for resp, err := range c.models.GenerateContentStream(ctx, c.model, buildContents(req), config) {
		if err != nil {
			// Distinguish cancellation: the pipeline treats it as a clean stop.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.breaker.Failure()
			return fmt.Errorf("generate stream: %w", err)
		}

		text := resp.Text()
		if text == "" {
			continue
		}
		chunks++
		if err := onChunk(ctx, text); err != nil {
			return err
		}
	}

	c.breaker.Success()
	c.logger.Debug("generation stream finished", "chunks", chunks)
	return nil
}

// buildContents assembles the conversation for one request. Incremental
// requests embed the prior artifact so the model edits instead of starting
// over.
func buildContents(req builder.GenerationRequest) []*genai.Content {
	prompt := req.Prompt
	if req.PriorArtifact != "" {
		var b strings.Builder
		b.WriteString(regenerationPreamble)
		b.WriteString(req.PriorArtifact)
		b.WriteString("\n\nInstruction: ")
		b.WriteString(req.Prompt)
		prompt = b.String()
	}
	return []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
}
