package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"stockstudio/internal/asset"
	"stockstudio/internal/fetch"
	"stockstudio/internal/llm"
	"stockstudio/internal/pipeline"
	"stockstudio/internal/server"
	"stockstudio/internal/storage"
)

const (
	logFileName    = "stockstudio.log"
	defaultBind    = "127.0.0.1:8384"
	defaultCacheDB = "generation-cache.db"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	// Optional .env file for local development
	_ = godotenv.Load()

	// JOURNAL_STREAM is set by systemd when running as a service; journald
	// handles log capture there, so skip the log file.
	if _, underSystemd := os.LookupEnv("JOURNAL_STREAM"); underSystemd {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open log file")
		}
		defer logFile.Close()

		consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr}
		fileWriter := zerolog.ConsoleWriter{Out: logFile, NoColor: true}
		log.Logger = log.Output(io.MultiWriter(consoleWriter, fileWriter))

		log.Info().Str("logFile", logFileName).Msg("logging to file")
	}

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		log.Fatal().Msg("GEMINI_API_KEY is not set")
	}

	bind := os.Getenv("STOCKSTUDIO_BIND")
	if bind == "" {
		bind = defaultBind
	}
	cacheDB := os.Getenv("STOCKSTUDIO_CACHE_DB")
	if cacheDB == "" {
		cacheDB = defaultCacheDB
	}
	spoolDir := os.Getenv("STOCKSTUDIO_SPOOL_DIR")

	// Create context that cancels on SIGINT or SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cacheStore, err := storage.NewSQLiteStore(cacheDB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize generation cache")
	}
	defer cacheStore.Close()
	log.Info().Str("dbPath", cacheDB).Msg("generation cache initialized")

	geminiGenerator, err := llm.NewGeminiGenerator(ctx, apiKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize gemini generator")
	}
	generator := llm.NewCachedGenerator(geminiGenerator, cacheStore)
	log.Info().Msg("gemini generator initialized")

	store, err := asset.NewStore(spoolDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize asset store")
	}
	defer store.Close()

	pipe := pipeline.New(store, generator)
	srv := server.New(bind, store, pipe, fetch.NewImageFetcher())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("shutdown with error")
	} else {
		log.Info().Msg("shutdown complete")
	}
}
