package voice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/locaith-ai/studio/internal/log"
)

func TestSubmitPromptTool_DuplicateSuppressedButAnswered(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	submits := 0
	_, handler := NewSubmitPromptTool(func(context.Context, string) error {
		submits++
		return nil
	}, 5*time.Second, func() time.Time { return clock })

	args := map[string]any{"prompt": "build a landing page"}

	res, err := handler(context.Background(), args)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if res["status"] != "submitted" {
		t.Errorf("first status = %v, want submitted", res["status"])
	}

	// Inside the window the duplicate is suppressed but still acknowledged.
	clock = clock.Add(2 * time.Second)
	res, err = handler(context.Background(), args)
	if err != nil {
		t.Fatalf("duplicate submit: %v", err)
	}
	if res["status"] != "duplicate ignored" {
		t.Errorf("duplicate status = %v, want duplicate ignored", res["status"])
	}
	if submits != 1 {
		t.Fatalf("submits = %d, want 1", submits)
	}

	// Past the window the same prompt goes through again.
	clock = clock.Add(6 * time.Second)
	if _, err := handler(context.Background(), args); err != nil {
		t.Fatalf("third submit: %v", err)
	}
	if submits != 2 {
		t.Fatalf("submits = %d, want 2", submits)
	}
}

func TestSubmitPromptTool_MissingPrompt(t *testing.T) {
	_, handler := NewSubmitPromptTool(func(context.Context, string) error {
		t.Fatal("submit called with empty prompt")
		return nil
	}, time.Second, nil)

	res, err := handler(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if _, ok := res["error"]; !ok {
		t.Error("missing prompt did not produce an error payload")
	}
}

type staticAnswerer struct {
	answer string
	err    error
}

func (a staticAnswerer) Answer(context.Context, string) (string, error) { return a.answer, a.err }

func TestKnowledgeTool(t *testing.T) {
	_, handler := NewKnowledgeTool(staticAnswerer{answer: "About 300,000 km/s."})
	res, err := handler(context.Background(), map[string]any{"question": "speed of light?"})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if res["answer"] != "About 300,000 km/s." {
		t.Errorf("answer = %v", res["answer"])
	}

	_, handler = NewKnowledgeTool(staticAnswerer{err: errors.New("model down")})
	if _, err := handler(context.Background(), map[string]any{"question": "anything"}); err == nil {
		t.Error("handler swallowed the answerer error")
	}
}

type staticQuoter struct {
	price    float64
	currency string
}

func (q staticQuoter) Quote(context.Context, string) (float64, string, error) {
	return q.price, q.currency, nil
}

func TestQuoteTool(t *testing.T) {
	_, handler := NewQuoteTool(staticQuoter{price: 42.5, currency: "EUR"})
	res, err := handler(context.Background(), map[string]any{"symbol": "ACME"})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if res["price"] != 42.5 || res["currency"] != "EUR" || res["symbol"] != "ACME" {
		t.Errorf("result = %v", res)
	}
}

func TestRegistry_DeclarationsFollowRegistrationOrder(t *testing.T) {
	r := NewRegistry(log.NewNop())
	navDecl, navHandler := NewNavigateTool(func(string) {})
	r.Register(navDecl, navHandler)
	kDecl, kHandler := NewKnowledgeTool(staticAnswerer{answer: "x"})
	r.Register(kDecl, kHandler)

	decls := r.Declarations()
	if len(decls) != 2 || decls[0].Name != ToolNavigate || decls[1].Name != ToolKnowledge {
		t.Errorf("declarations = %+v", decls)
	}
}

func TestNavigateTool(t *testing.T) {
	var target string
	_, handler := NewNavigateTool(func(feature string) { target = feature })

	res, err := handler(context.Background(), map[string]any{"feature": "marketplace"})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if target != "marketplace" {
		t.Errorf("navigated to %q", target)
	}
	if res["status"] != "navigated" {
		t.Errorf("result = %v", res)
	}
}
