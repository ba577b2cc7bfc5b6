package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvloznov/ledgerscan/internal/config"
	infraBQ "github.com/dvloznov/ledgerscan/internal/infra/bigquery"
	"github.com/dvloznov/ledgerscan/internal/ingest"
	"github.com/dvloznov/ledgerscan/internal/logger"
)

// The worker runs the stuck-document reaper against the shared document
// store. Processing itself happens in the API process, which owns the
// in-memory queue; the reaper is safe to run anywhere because the store's
// status transitions guard against double-claiming.
func main() {
	cfg := config.Load()
	log := logger.NewWithLevel(cfg.LogLevel)

	if cfg.ProjectID == "" {
		log.Fatal().Msg("GCP_PROJECT is required")
	}

	ctx := context.Background()

	docStore, err := infraBQ.NewDocumentStore(ctx, cfg.ProjectID, cfg.Dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create document store")
	}
	defer docStore.Close()

	reaper := ingest.NewReaper(docStore, cfg.StuckRunAge, cfg.ReaperSchedule, log)
	if err := reaper.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start reaper")
	}

	log.Info().
		Str("schedule", cfg.ReaperSchedule).
		Dur("max_age", cfg.StuckRunAge).
		Msg("Worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker...")
	reaper.Stop()
	log.Info().Msg("Worker exited")
}
