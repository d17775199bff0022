package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/stupiduntilnot/helpdesk/internal/chat"
	"github.com/stupiduntilnot/helpdesk/internal/config"
	"github.com/stupiduntilnot/helpdesk/internal/httpapi"
	"github.com/stupiduntilnot/helpdesk/internal/identity"
	"github.com/stupiduntilnot/helpdesk/internal/llm"
	"github.com/stupiduntilnot/helpdesk/internal/retry"
	"github.com/stupiduntilnot/helpdesk/internal/store"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "helpdeskd").Logger()

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found or could not be loaded")
	}

	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	verifier := identity.NewClient(cfg.IdentityBaseURL, cfg.IdentityTimeout)

	completer, err := newCompleter(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build completion provider")
	}

	orch := chat.NewOrchestrator(
		verifier,
		st,
		completer,
		cfg.HistoryWindow,
		cfg.ProviderTimeout,
		retry.Policy{MaxRetries: cfg.ProviderRetries},
		log,
	)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: httpapi.NewRouter(orch, log),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Str("provider", cfg.ModelProvider).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown incomplete")
	}
}

// newCompleter selects the completion provider from config.
func newCompleter(cfg config.ServerConfig) (llm.Completer, error) {
	switch cfg.ModelProvider {
	case config.ProviderOpenAI:
		return llm.NewOpenAIClient(
			cfg.OpenAIAPIKey,
			cfg.OpenAIChatURL,
			cfg.OpenAIModel,
			cfg.SystemPrompt,
			cfg.Temperature,
			cfg.MaxOutputTokens,
			cfg.ProviderTimeout,
		), nil
	case config.ProviderAnthropic:
		return llm.NewAnthropicClient(
			cfg.AnthropicAPIKey,
			cfg.AnthropicModel,
			cfg.SystemPrompt,
			cfg.Temperature,
			cfg.MaxOutputTokens,
			cfg.ProviderTimeout,
		), nil
	default:
		return nil, errors.New("unknown model provider " + cfg.ModelProvider)
	}
}
