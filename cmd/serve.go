package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/locaith-ai/studio/db"
	"github.com/locaith-ai/studio/internal/config"
	"github.com/locaith-ai/studio/internal/generate"
	"github.com/locaith-ai/studio/internal/log"
	"github.com/locaith-ai/studio/internal/project"
	"github.com/locaith-ai/studio/internal/tts"
	"github.com/locaith-ai/studio/internal/voice"
	"github.com/locaith-ai/studio/internal/web"
)

var serveFlags struct {
	debug      bool
	skipMigrat bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the studio HTTP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveFlags.debug, "debug", false, "enable debug logging")
	serveCmd.Flags().BoolVar(&serveFlags.skipMigrat, "skip-migrations", false, "do not run database migrations at startup")
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	level := slog.LevelInfo
	if serveFlags.debug {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level, JSON: true})
	logger.Info("starting studio server", "version", Version)

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if !serveFlags.skipMigrat {
		if err := db.Migrate(cfg.DatabaseURL(), logger); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL())
	if err != nil {
		return fmt.Errorf("creating connection pool: %w", err)
	}
	defer pool.Close()

	store, err := project.NewStore(pool, logger.With("component", "store"))
	if err != nil {
		return fmt.Errorf("creating project store: %w", err)
	}

	generator, err := generate.New(ctx, generate.Config{
		APIKey:      cfg.GeminiAPIKey,
		Model:       cfg.ModelName,
		Temperature: cfg.Temperature,
		Logger:      logger.With("component", "generate"),
	})
	if err != nil {
		return fmt.Errorf("creating generation client: %w", err)
	}

	// TTS is optional: without credentials the proxy endpoint reports
	// unconfigured instead of failing startup.
	var ttsClient *tts.Client
	if err := cfg.ValidateTTS(); err == nil {
		ttsClient, err = tts.New(ctx, tts.Config{
			Endpoint:        cfg.TTSEndpoint,
			APIKey:          cfg.TTSAPIKey,
			CredentialsFile: cfg.TTSCredentialsFile,
			DefaultVoice:    cfg.VoiceName,
			DefaultRate:     cfg.TTSSpeakingRate,
			Logger:          logger.With("component", "tts"),
		})
		if err != nil {
			return fmt.Errorf("creating tts client: %w", err)
		}
	} else {
		logger.Warn("tts disabled", "reason", err)
	}

	var dialer voice.Dialer
	if cfg.SpeechEndpoint != "" {
		dialer = voice.NewWebSocketDialer(cfg.SpeechEndpoint)
	}

	var quoter voice.Quoter
	if cfg.PriceEndpoint != "" {
		quoter = voice.NewPriceClient(cfg.PriceEndpoint)
	}

	server, err := web.NewServer(web.ServerConfig{
		Logger:      logger.With("component", "web"),
		Generator:   generator,
		Store:       store,
		TTS:         ttsClient,
		Dialer:      dialer,
		Answerer:    generator,
		Quoter:      quoter,
		Pool:        pool,
		VoiceName:    cfg.VoiceName,
		FrameSamples: cfg.FrameSamples,
		SaveWindow:   cfg.SaveIdleWindow,
		DedupWindow:  cfg.PromptDedupWindow,
		CORSOrigins:  cfg.CORSOrigins,
		TrustProxy:   cfg.TrustProxy,
		RateRPS:      cfg.RateLimitRPS,
		RateBurst:    cfg.RateLimitBurst,
		IsDev:        cfg.PostgresSSLMode == "disable",
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	return server.Run(ctx, cfg.ListenAddr)
}
