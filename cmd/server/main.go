package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ticketfire/backend/internal/config"
	"github.com/ticketfire/backend/internal/db"
	"github.com/ticketfire/backend/internal/geocode"
	"github.com/ticketfire/backend/internal/httpapi"
	"github.com/ticketfire/backend/internal/language"
	"github.com/ticketfire/backend/internal/nlp"
	"github.com/ticketfire/backend/internal/pipeline"
	"github.com/ticketfire/backend/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "ticketfire-backend").Logger()

	ctx := context.Background()
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure schema")
	}

	var nlpClient nlp.Client
	if cfg.NLPBaseURL == "" {
		nlpClient = nlp.NewMockClient()
		logger.Info().Msg("using mock NLP client")
	} else {
		nlpClient = nlp.NewHTTPClient(cfg.NLPBaseURL, cfg.NLPAPIKey, cfg.NLPModelID)
	}
	pool := nlp.NewPool(nlpClient, nlp.Settings{ModelID: cfg.NLPModelID, Concurrency: cfg.NLPConcurrency})

	detector := language.New()
	geocoder := geocode.NewProvider(cfg.GeocoderBaseURL, cfg.GeocoderAPIKey, cfg.GeocoderConcurrency)

	orch := pipeline.New(store, pool, detector, geocoder, cfg.MaxBatch, logger)
	sessions := session.NewStore()

	router := httpapi.Router(cfg, store, orch, pool, sessions, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
