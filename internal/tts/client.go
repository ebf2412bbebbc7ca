// Package tts proxies text-to-speech synthesis. Authentication is chosen at
// construction time: a static API key when configured, otherwise an OAuth2
// service-account token source.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/locaith-ai/studio/internal/log"
)

const synthesisScope = "https://www.googleapis.com/auth/cloud-platform"

var (
	// ErrMissingText is returned when a request has no text to synthesize.
	ErrMissingText = errors.New("text is required")

	// ErrNoCredentials is returned when neither an API key nor a service
	// account file is configured.
	ErrNoCredentials = errors.New("no tts credentials configured")

	// ErrSynthesis wraps upstream synthesis failures.
	ErrSynthesis = errors.New("speech synthesis failed")
)

// Request is one synthesis request.
type Request struct {
	Text         string  `json:"text"`
	VoiceName    string  `json:"voiceName"`
	SpeakingRate float64 `json:"speakingRate"`
}

// Response is the synthesized audio.
type Response struct {
	AudioContent string `json:"audioContent"` // base64-encoded audio
	ContentType  string `json:"contentType"`
}

// Config contains all required parameters for a Client.
type Config struct {
	Endpoint string
	// APIKey authenticates via query parameter when set.
	APIKey string
	// CredentialsFile is a service-account JSON file, used when APIKey is
	// empty.
	CredentialsFile string

	// DefaultVoice and DefaultRate fill requests that omit them.
	DefaultVoice string
	DefaultRate  float64

	Logger log.Logger

	// HTTPClient overrides the authenticated client. Tests only.
	HTTPClient *http.Client
}

func (cfg Config) validate() error {
	if cfg.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.APIKey == "" && cfg.CredentialsFile == "" && cfg.HTTPClient == nil {
		return ErrNoCredentials
	}
	return nil
}

// Client is the synthesis client.
//
// Client is safe for concurrent use.
type Client struct {
	endpoint     string
	apiKey       string
	httpClient   *http.Client
	logger       log.Logger
	defaultVoice string
	defaultRate  float64
}

// New creates a Client with required configuration. With an API key the
// underlying client is plain HTTP; otherwise the service-account file is
// loaded and a token source installed.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		if cfg.APIKey != "" {
			httpClient = &http.Client{Timeout: 30 * time.Second}
		} else {
			data, err := os.ReadFile(cfg.CredentialsFile)
			if err != nil {
				return nil, fmt.Errorf("read service account file: %w", err)
			}
			creds, err := google.CredentialsFromJSON(ctx, data, synthesisScope)
			if err != nil {
				return nil, fmt.Errorf("parse service account credentials: %w", err)
			}
			httpClient = oauth2.NewClient(ctx, creds.TokenSource)
			httpClient.Timeout = 30 * time.Second
		}
	}

	return &Client{
		endpoint:     cfg.Endpoint,
		apiKey:       cfg.APIKey,
		httpClient:   httpClient,
		logger:       cfg.Logger,
		defaultVoice: cfg.DefaultVoice,
		defaultRate:  cfg.DefaultRate,
	}, nil
}

// Synthesize converts text to audio.
func (c *Client) Synthesize(ctx context.Context, req Request) (Response, error) {
	if req.Text == "" {
		return Response{}, ErrMissingText
	}
	if req.VoiceName == "" {
		req.VoiceName = c.defaultVoice
	}
	if req.SpeakingRate == 0 {
		req.SpeakingRate = c.defaultRate
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encode synthesis request: %w", err)
	}

	endpoint := c.endpoint
	if c.apiKey != "" {
		endpoint += "?key=" + url.QueryEscape(c.apiKey)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build synthesis request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error("synthesis request rejected", "status", resp.StatusCode, "body", string(snippet))
		return Response{}, fmt.Errorf("%w: status %d", ErrSynthesis, resp.StatusCode)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, fmt.Errorf("decode synthesis response: %w", err)
	}
	if out.ContentType == "" {
		out.ContentType = "audio/mpeg"
	}
	return out, nil
}
