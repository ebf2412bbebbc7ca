package generate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// ErrEmptyAnswer is returned when the model produces no usable text.
var ErrEmptyAnswer = errors.New("model returned an empty answer")

// answerInstruction keeps voice answers short enough to speak.
const answerInstruction = `Answer the question concisely in two or three spoken
sentences. Plain prose only, no markdown, no lists.`

// Answer runs a single non-streaming question for the voice assistant's
// knowledge tool. Unlike Stream it retries once with backoff when the service
// reports a transient condition, since a short answer can safely be re-asked.
func (c *Client) Answer(ctx context.Context, question string) (string, error) {
	if err := c.breaker.Allow(); err != nil {
		return "", fmt.Errorf("service unavailable: %w", err)
	}

	config := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(c.temperature),
		SystemInstruction: genai.NewContentFromText(answerInstruction, genai.RoleUser),
	}
	contents := []*genai.Content{genai.NewContentFromText(question, genai.RoleUser)}

	interval := c.retryConfig.InitialInterval
	var lastErr error
	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying answer", "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(interval):
			}
			interval = min(interval*2, c.retryConfig.MaxInterval)
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}

		resp, err := c.models.GenerateContent(ctx, c.model, contents, config)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			c.breaker.Failure()
			lastErr = err
			if retryableError(err) {
				continue
			}
			return "", fmt.Errorf("generate answer: %w", err)
		}

		c.breaker.Success()
		text := resp.Text()
		if text == "" {
			return "", ErrEmptyAnswer
		}
		return text, nil
	}

	return "", fmt.Errorf("generate answer: %w", lastErr)
}
