// Package web is the HTTP surface of the studio: the generation SSE endpoint,
// project reads, the bundle download, the TTS proxy, and the voice bridge.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/locaith-ai/studio/internal/builder"
	"github.com/locaith-ai/studio/internal/log"
	"github.com/locaith-ai/studio/internal/project"
	"github.com/locaith-ai/studio/internal/tts"
	"github.com/locaith-ai/studio/internal/voice"
)

// ServerConfig contains configuration for creating the HTTP server.
type ServerConfig struct {
	Logger    log.Logger
	Generator builder.Generator // Required
	Store     *project.Store    // Optional: nil disables persistence and project routes
	TTS       *tts.Client       // Optional: nil disables the synthesis proxy
	Dialer    voice.Dialer      // Optional: nil disables the voice bridge
	Answerer  voice.Answerer    // Optional: knowledge tool backend
	Quoter    voice.Quoter      // Optional: price quote tool backend
	Pool      *pgxpool.Pool     // Optional: nil disables database readiness checks

	VoiceName    string
	FrameSamples int // Samples per outbound audio frame; 0 = voice.DefaultFrameSamples
	SaveWindow   time.Duration
	DedupWindow  time.Duration
	CORSOrigins  []string
	TrustProxy   bool
	RateRPS      float64 // 0 = default 5 tokens/sec
	RateBurst    int     // 0 = default 60
	IsDev        bool
}

// Server is the studio HTTP server.
type Server struct {
	handler    http.Handler
	workspaces *workspaceManager
	logger     log.Logger
}

// NewServer creates a server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Generator == nil {
		return nil, errors.New("generator is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	var storeWriter project.Writer
	var storeReader projectStore
	if cfg.Store != nil {
		storeWriter = cfg.Store
		storeReader = cfg.Store
	} else {
		storeWriter = discardWriter{}
	}

	workspaces := newWorkspaceManager(storeWriter, cfg.Generator, cfg.SaveWindow, cfg.DedupWindow, logger)

	mux := http.NewServeMux()

	bh := &buildHandler{workspaces: workspaces, store: storeReader, logger: logger}
	mux.HandleFunc("POST /api/v1/build", bh.start)
	mux.HandleFunc("POST /api/v1/build/stop", bh.stop)

	if storeReader != nil {
		ph := &projectHandler{store: storeReader, logger: logger, now: time.Now}
		mux.HandleFunc("GET /api/v1/projects", ph.list)
		mux.HandleFunc("GET /api/v1/projects/{id}", ph.get)
		mux.HandleFunc("DELETE /api/v1/projects/{id}", ph.delete)
		mux.HandleFunc("GET /api/v1/projects/{id}/bundle", ph.download)
	}

	th := &ttsHandler{client: cfg.TTS, logger: logger}
	mux.HandleFunc("POST /api/v1/tts", th.synthesize)

	if cfg.Dialer != nil {
		vh := newVoiceHandler(cfg.Dialer, cfg.Answerer, cfg.Quoter, workspaces,
			cfg.VoiceName, cfg.FrameSamples, cfg.DedupWindow, cfg.CORSOrigins, logger)
		mux.HandleFunc("GET /api/v1/voice", vh.serve)
	}

	rps := cfg.RateRPS
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(rps, burst)

	// Middleware stack, outermost first:
	//   Recovery -> Logging -> CORS -> RateLimit -> User -> Routes
	// CORS before RateLimit so preflight OPTIONS gets proper headers.
	var handler http.Handler = mux
	handler = userMiddleware(cfg.IsDev)(handler)
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", handler)

	return &Server{handler: topMux, workspaces: workspaces, logger: logger}, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then drains connections and flushes
// every workspace.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	s.logger.Info("shutting down http server")
	err := srv.Shutdown(shutdownCtx)
	s.workspaces.closeAll(shutdownCtx)
	return err
}

// discardWriter drops writes when no store is configured. The builder and
// autosaver behave exactly as in production, state just stays in memory.
type discardWriter struct{}

func (discardWriter) Insert(context.Context, *project.Project) error { return nil }
func (discardWriter) Update(context.Context, *project.Project) error { return nil }
