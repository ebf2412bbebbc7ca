package voice

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/locaith-ai/studio/internal/log"
)

// Tool names the speech service may invoke.
const (
	ToolNavigate     = "navigate_to_feature"
	ToolSubmitPrompt = "submit_prompt"
	ToolPriceQuote   = "fetch_price_quote"
	ToolKnowledge    = "answer_question"
)

// Handler executes one tool call. The returned map becomes the response
// payload; an error is converted to a human-readable error payload so the
// service still receives exactly one response.
type Handler func(ctx context.Context, args map[string]any) (map[string]any, error)

// Registry maps tool names to handlers.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	decls    []ToolDecl
	logger   log.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger log.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Register adds a tool. Re-registering a name replaces the handler but not
// the declaration.
func (r *Registry) Register(decl ToolDecl, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[decl.Name]; !exists {
		r.decls = append(r.decls, decl)
	}
	r.handlers[decl.Name] = h
}

// Declarations returns the tool schemas for the setup handshake.
func (r *Registry) Declarations() []ToolDecl {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolDecl, len(r.decls))
	copy(out, r.decls)
	return out
}

// Dispatch executes one call and always produces exactly one response for its
// id. Unknown tool names get an explicit "not supported" response instead of
// being dropped, so the service never waits forever.
func (r *Registry) Dispatch(ctx context.Context, call ToolCall) ToolResponse {
	r.mu.RLock()
	h, ok := r.handlers[call.Name]
	r.mu.RUnlock()

	if !ok {
		r.logger.Warn("unknown tool requested", "tool", call.Name, "call_id", call.ID)
		return ToolResponse{ID: call.ID, Result: map[string]any{
			"error": "tool not supported: " + call.Name,
		}}
	}

	result, err := h(ctx, call.Args)
	if err != nil {
		r.logger.Error("tool handler failed", "tool", call.Name, "call_id", call.ID, "error", err)
		return ToolResponse{ID: call.ID, Result: map[string]any{
			"error": "the " + call.Name + " tool failed, please try again",
		}}
	}
	if result == nil {
		result = map[string]any{"status": "ok"}
	}
	return ToolResponse{ID: call.ID, Result: result}
}

// NewNavigateTool routes the user to a named feature screen.
func NewNavigateTool(navigate func(feature string)) (ToolDecl, Handler) {
	decl := ToolDecl{
		Name:        ToolNavigate,
		Description: "Navigate the user to a feature of the studio.",
		Parameters: map[string]any{
			"feature": "name of the destination feature",
		},
	}
	return decl, func(_ context.Context, args map[string]any) (map[string]any, error) {
		feature, _ := args["feature"].(string)
		if feature == "" {
			return map[string]any{"error": "missing feature name"}, nil
		}
		navigate(feature)
		return map[string]any{"status": "navigated", "feature": feature}, nil
	}
}

// NewSubmitPromptTool fills and submits a build prompt on the user's behalf.
// An identical prompt inside the dedup window is acknowledged without
// resubmitting, so the service still gets its one response.
func NewSubmitPromptTool(submit func(ctx context.Context, prompt string) error, window time.Duration, now func() time.Time) (ToolDecl, Handler) {
	if now == nil {
		now = time.Now
	}

	var mu sync.Mutex
	var lastPrompt string
	var lastAt time.Time

	decl := ToolDecl{
		Name:        ToolSubmitPrompt,
		Description: "Fill the build form with a prompt and submit it.",
		Parameters: map[string]any{
			"prompt": "the website description to submit",
		},
	}
	return decl, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		prompt, _ := args["prompt"].(string)
		prompt = strings.TrimSpace(prompt)
		if prompt == "" {
			return map[string]any{"error": "missing prompt"}, nil
		}

		mu.Lock()
		ts := now()
		if prompt == lastPrompt && window > 0 && ts.Sub(lastAt) < window {
			mu.Unlock()
			return map[string]any{"status": "duplicate ignored"}, nil
		}
		lastPrompt, lastAt = prompt, ts
		mu.Unlock()

		if err := submit(ctx, prompt); err != nil {
			return nil, err
		}
		return map[string]any{"status": "submitted"}, nil
	}
}

// Quoter fetches an external price quote.
type Quoter interface {
	Quote(ctx context.Context, symbol string) (price float64, currency string, err error)
}

// NewQuoteTool fetches a live price quote for a symbol.
func NewQuoteTool(q Quoter) (ToolDecl, Handler) {
	decl := ToolDecl{
		Name:        ToolPriceQuote,
		Description: "Fetch the current price quote for a symbol.",
		Parameters: map[string]any{
			"symbol": "ticker or asset symbol",
		},
	}
	return decl, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		symbol, _ := args["symbol"].(string)
		if symbol == "" {
			return map[string]any{"error": "missing symbol"}, nil
		}
		price, currency, err := q.Quote(ctx, symbol)
		if err != nil {
			return nil, err
		}
		return map[string]any{"symbol": symbol, "price": price, "currency": currency}, nil
	}
}

// Answerer produces a short spoken-style answer to a general question.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// NewKnowledgeTool answers general knowledge questions through the generation
// client.
func NewKnowledgeTool(a Answerer) (ToolDecl, Handler) {
	decl := ToolDecl{
		Name:        ToolKnowledge,
		Description: "Answer a general knowledge question concisely.",
		Parameters: map[string]any{
			"question": "the question to answer",
		},
	}
	return decl, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		question, _ := args["question"].(string)
		if question == "" {
			return map[string]any{"error": "missing question"}, nil
		}
		answer, err := a.Answer(ctx, question)
		if err != nil {
			return nil, err
		}
		return map[string]any{"answer": answer}, nil
	}
}
