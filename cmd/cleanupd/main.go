package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/stupiduntilnot/helpdesk/internal/cleanup"
	"github.com/stupiduntilnot/helpdesk/internal/config"
	"github.com/stupiduntilnot/helpdesk/internal/identity"
	"github.com/stupiduntilnot/helpdesk/internal/store"
)

func main() {
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "cleanupd").Logger()

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found or could not be loaded")
	}

	cfg, err := config.LoadCleanupConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	ids := identity.NewClient(cfg.IdentityBaseURL, cfg.IdentityTimeout)
	sweeper := cleanup.NewSweeper(ids, st, cfg.GracePeriod, cfg.PageSize, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runSweep(ctx, sweeper, log)
	if *once {
		return
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return
		case <-ticker.C:
			runSweep(ctx, sweeper, log)
		}
	}
}

func runSweep(ctx context.Context, sweeper *cleanup.Sweeper, log zerolog.Logger) {
	if _, err := sweeper.Sweep(ctx); err != nil {
		log.Error().Err(err).Msg("sweep aborted")
	}
}
