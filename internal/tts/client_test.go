package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/locaith-ai/studio/internal/log"
)

func TestSynthesize_APIKeyPath(t *testing.T) {
	var gotKey string
	var gotReq Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(Response{AudioContent: "QUJD", ContentType: "audio/mpeg"})
	}))
	defer srv.Close()

	c, err := New(context.Background(), Config{
		Endpoint:     srv.URL,
		APIKey:       "test-key",
		DefaultVoice: "Aoede",
		DefaultRate:  1.1,
		Logger:       log.NewNop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	resp, err := c.Synthesize(context.Background(), Request{Text: "hello"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if gotKey != "test-key" {
		t.Errorf("key param = %q, want test-key", gotKey)
	}
	if gotReq.VoiceName != "Aoede" || gotReq.SpeakingRate != 1.1 {
		t.Errorf("defaults not applied: %+v", gotReq)
	}
	if resp.AudioContent != "QUJD" || resp.ContentType != "audio/mpeg" {
		t.Errorf("response = %+v", resp)
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	c, err := New(context.Background(), Config{
		Endpoint: "http://unused",
		APIKey:   "k",
		Logger:   log.NewNop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Synthesize(context.Background(), Request{}); !errors.Is(err, ErrMissingText) {
		t.Fatalf("Synthesize = %v, want ErrMissingText", err)
	}
}

func TestSynthesize_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exhausted", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := New(context.Background(), Config{Endpoint: srv.URL, APIKey: "k", Logger: log.NewNop()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Synthesize(context.Background(), Request{Text: "hi"}); !errors.Is(err, ErrSynthesis) {
		t.Fatalf("Synthesize = %v, want ErrSynthesis", err)
	}
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{Endpoint: "http://x", Logger: log.NewNop()})
	if !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("New = %v, want ErrNoCredentials", err)
	}
}
