package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/dvloznov/ledgerscan/internal/domain"
)

// Reaper periodically fails documents stuck in Processing. A document left
// Processing past the configured age means its run died without reaching a
// terminal state, which would otherwise look like progress forever.
type Reaper struct {
	store    DocumentStore
	maxAge   time.Duration
	schedule string
	cron     *cron.Cron
	log      zerolog.Logger
}

func NewReaper(store DocumentStore, maxAge time.Duration, schedule string, log zerolog.Logger) *Reaper {
	return &Reaper{
		store:    store,
		maxAge:   maxAge,
		schedule: schedule,
		cron:     cron.New(),
		log:      log.With().Str("component", "reaper").Logger(),
	}
}

// Start registers the sweep on the cron schedule and starts it.
func (r *Reaper) Start() error {
	_, err := r.cron.AddFunc(r.schedule, func() {
		if err := r.Sweep(context.Background()); err != nil {
			r.log.Error().Err(err).Msg("sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("Start: registering schedule %q: %w", r.schedule, err)
	}
	r.cron.Start()
	r.log.Info().Str("schedule", r.schedule).Dur("max_age", r.maxAge).Msg("reaper started")
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (r *Reaper) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

// Sweep marks every document stuck in Processing longer than maxAge as
// Failed.
func (r *Reaper) Sweep(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-r.maxAge)
	stuck, err := r.store.StuckProcessing(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("Sweep: listing stuck documents: %w", err)
	}

	for _, doc := range stuck {
		doc.Status = domain.StatusFailed
		doc.ProcessingMessage = "processing did not finish and was aborted"
		doc.UpdatedAt = time.Now().UTC()
		if err := r.store.Update(ctx, doc); err != nil {
			r.log.Error().Err(err).Str("document_id", doc.ID).Msg("failing stuck document failed")
			continue
		}
		r.log.Warn().Str("document_id", doc.ID).Msg("stuck document failed by reaper")
	}
	if len(stuck) > 0 {
		r.log.Info().Int("count", len(stuck)).Msg("sweep complete")
	}
	return nil
}
