package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/civilian24601/amon-hen/internal/app"
	"github.com/civilian24601/amon-hen/internal/config"
	"github.com/civilian24601/amon-hen/internal/storage"
)

func main() {
	mode := flag.String("mode", "run", "Run mode (run, api, ingest, enrich, recluster, digest, seed, status, search, validate-sources)")
	query := flag.String("query", "", "Query text for search mode")
	limit := flag.Int("limit", 10, "Result limit for search mode")
	days := flag.Int("days", 7, "Days of history for seed mode")

	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.SQLitePath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer store.Close()

	application := app.New(cfg, store, &logger)

	if err := runMode(ctx, application, *mode, *query, *limit, *days); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("application stopped")
			return
		}

		logger.Fatal().Err(err).Msg("application error")
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	if cfg.Environment == "local" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			Level(level).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

func runMode(ctx context.Context, application *app.App, mode, query string, limit, days int) error {
	switch mode {
	case "run":
		return application.Run(ctx)
	case "api":
		return application.RunAPI(ctx)
	case "ingest":
		return application.RunIngest(ctx)
	case "enrich":
		return application.RunEnrich(ctx)
	case "recluster":
		return application.RunRecluster(ctx)
	case "digest":
		return application.RunDigest(ctx)
	case "seed":
		return application.RunSeed(ctx, days)
	case "status":
		return application.RunStatus(ctx)
	case "search":
		return application.RunSearch(ctx, query, limit)
	case "validate-sources":
		return application.RunValidateSources(ctx)
	default:
		log.Fatalf("Usage: %s --mode=[run|api|ingest|enrich|recluster|digest|seed|status|search|validate-sources]", os.Args[0])

		return nil
	}
}
