package generate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/locaith-ai/studio/internal/builder"
	"github.com/locaith-ai/studio/internal/log"
)

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: text}}}},
		},
	}
}

// fakeStreamer replays canned chunks for streams and canned responses for
// unary calls.
type fakeStreamer struct {
	chunks    []string
	streamErr error

	answers    []string
	answerErrs []error
	unaryCalls int
}

func (f *fakeStreamer) GenerateContentStream(ctx context.Context, _ string, _ []*genai.Content, _ *genai.GenerateContentConfig) func(func(*genai.GenerateContentResponse, error) bool) {
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, c := range f.chunks {
			if ctx.Err() != nil {
				yield(nil, ctx.Err())
				return
			}
			if !yield(textResponse(c), nil) {
				return
			}
		}
		if f.streamErr != nil {
			yield(nil, f.streamErr)
		}
	}
}

func (f *fakeStreamer) GenerateContent(_ context.Context, _ string, _ []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	i := f.unaryCalls
	f.unaryCalls++
	if i < len(f.answerErrs) && f.answerErrs[i] != nil {
		return nil, f.answerErrs[i]
	}
	if i < len(f.answers) {
		return textResponse(f.answers[i]), nil
	}
	return textResponse(""), nil
}

func newTestClient(models contentStreamer) *Client {
	rc := DefaultRetryConfig()
	rc.InitialInterval = time.Millisecond
	return &Client{
		models:      models,
		model:       "test-model",
		logger:      log.NewNop(),
		rateLimiter: rate.NewLimiter(rate.Inf, 1),
		breaker:     NewCircuitBreaker(DefaultCircuitBreakerConfig()),
		retryConfig: rc,
	}
}

func TestClient_Stream_ForwardsChunksInOrder(t *testing.T) {
	fake := &fakeStreamer{chunks: []string{"a", "", "b", "c"}}
	c := newTestClient(fake)

	var got []string
	err := c.Stream(context.Background(), builder.GenerationRequest{Prompt: "build"}, func(_ context.Context, s string) error {
		got = append(got, s)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	// Empty chunks are skipped, order preserved.
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %d chunks, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestClient_Stream_NeverRetries(t *testing.T) {
	fake := &fakeStreamer{chunks: []string{"a"}, streamErr: errors.New("503 service unavailable")}
	c := newTestClient(fake)

	err := c.Stream(context.Background(), builder.GenerationRequest{Prompt: "build"}, func(context.Context, string) error { return nil })
	if err == nil {
		t.Fatal("Stream returned nil, want the stream error")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("Stream error = %v, want the underlying 503 surfaced", err)
	}
}

func TestClient_Stream_CancellationSurfacesAsContextError(t *testing.T) {
	fake := &fakeStreamer{chunks: []string{"a", "b"}}
	c := newTestClient(fake)

	ctx, cancel := context.WithCancel(context.Background())
	err := c.Stream(ctx, builder.GenerationRequest{Prompt: "build"}, func(context.Context, string) error {
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Stream = %v, want context.Canceled", err)
	}
}

func TestClient_Stream_CallbackErrorStopsStream(t *testing.T) {
	fake := &fakeStreamer{chunks: []string{"a", "b", "c"}}
	c := newTestClient(fake)

	sentinel := errors.New("downstream full")
	seen := 0
	err := c.Stream(context.Background(), builder.GenerationRequest{Prompt: "build"}, func(context.Context, string) error {
		seen++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("Stream = %v, want callback error", err)
	}
	if seen != 1 {
		t.Errorf("callback ran %d times after erroring, want 1", seen)
	}
}

func TestClient_Answer_RetriesOnceOnUnavailable(t *testing.T) {
	fake := &fakeStreamer{
		answerErrs: []error{errors.New("503 service unavailable"), nil},
		answers:    []string{"", "Paris is the capital of France."},
	}
	c := newTestClient(fake)

	got, err := c.Answer(context.Background(), "capital of France?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if got != "Paris is the capital of France." {
		t.Errorf("Answer = %q", got)
	}
	if fake.unaryCalls != 2 {
		t.Errorf("unary calls = %d, want 2 (one retry)", fake.unaryCalls)
	}
}

func TestClient_Answer_BoundedRetry(t *testing.T) {
	unavailable := errors.New("503 service unavailable")
	fake := &fakeStreamer{answerErrs: []error{unavailable, unavailable, unavailable}}
	c := newTestClient(fake)

	_, err := c.Answer(context.Background(), "anything")
	if err == nil {
		t.Fatal("Answer returned nil, want error after exhausting retries")
	}
	if fake.unaryCalls != 2 {
		t.Errorf("unary calls = %d, want 2 (initial + one retry)", fake.unaryCalls)
	}
}

func TestClient_Answer_NonRetryableFailsImmediately(t *testing.T) {
	fake := &fakeStreamer{answerErrs: []error{errors.New("400 invalid argument")}}
	c := newTestClient(fake)

	_, err := c.Answer(context.Background(), "anything")
	if err == nil {
		t.Fatal("Answer returned nil, want error")
	}
	if fake.unaryCalls != 1 {
		t.Errorf("unary calls = %d, want 1 (no retry on a client error)", fake.unaryCalls)
	}
}

func TestBuildContents_EmbedsPriorArtifact(t *testing.T) {
	req := builder.GenerationRequest{
		Prompt:        "make the header blue",
		PriorArtifact: "<!DOCTYPE html><html>old</html>",
	}
	contents := buildContents(req)
	if len(contents) != 1 {
		t.Fatalf("got %d contents, want 1", len(contents))
	}
	text := contents[0].Parts[0].Text
	if !strings.Contains(text, req.PriorArtifact) {
		t.Error("prior artifact not embedded in prompt")
	}
	if !strings.Contains(text, req.Prompt) {
		t.Error("instruction not embedded in prompt")
	}
	if !strings.Contains(text, "Update the following existing website") {
		t.Error("regeneration preamble missing")
	}
}

func TestRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", errors.New("Rate Limit exceeded"), true},
		{"quota", errors.New("quota exceeded for project"), true},
		{"503", errors.New("http 503"), true},
		{"unavailable", errors.New("service UNAVAILABLE"), true},
		{"timeout", errors.New("i/o timeout"), true},
		{"bad request", errors.New("400 invalid argument"), false},
		{"auth", errors.New("401 unauthorized"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryableError(tt.err); got != tt.want {
				t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
