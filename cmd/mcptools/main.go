// Command mcptools runs the read-only ticket Q&A tool surface as a
// JSON-RPC-over-stdio process, one request object per line, so it can be
// wired up as a tool source for an LLM-driven Q&A agent without sharing
// a process with the HTTP server.
package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ticketfire/backend/internal/config"
	"github.com/ticketfire/backend/internal/db"
	"github.com/ticketfire/backend/internal/mcptools"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "ticketfire-mcptools").Logger()

	ctx := context.Background()
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	srv := mcptools.New(store, logger)
	if err := srv.Serve(os.Stdin, os.Stdout); err != nil {
		logger.Fatal().Err(err).Msg("mcp tool server stopped")
	}
}
