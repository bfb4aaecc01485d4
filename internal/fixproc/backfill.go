package fixproc

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"soar/internal/elevation"
	"soar/internal/model"
	"soar/internal/repo"
)

// Backfill fills in altitude-AGL for fixes written before elevation was
// available: a producer/consumer pipeline with N worker consumers
// pulling batches from a bounded channel, the same shape as the intake
// worker pools.
type Backfill struct {
	Fixes     repo.FixRepo
	Elevation *elevation.Cache
	Log       zerolog.Logger

	Workers   int
	BatchSize int
	Interval  time.Duration // how often the producer polls for eligible fixes
}

const (
	defaultBackfillWorkers   = 5
	defaultBackfillBatchSize = 200
	defaultBackfillInterval  = 30 * time.Second
)

// NewBackfill builds a Backfill job with default worker count, batch
// size, and poll interval.
func NewBackfill(fixes repo.FixRepo, elev *elevation.Cache, log zerolog.Logger) *Backfill {
	return &Backfill{
		Fixes: fixes, Elevation: elev, Log: log,
		Workers: defaultBackfillWorkers, BatchSize: defaultBackfillBatchSize, Interval: defaultBackfillInterval,
	}
}

// Run polls for eligible fixes (altitude_agl_valid=false,
// altitude_msl_feet set, older than 1 hour, is_active=true) and backfills
// them with N worker goroutines until ctx is cancelled.
func (b *Backfill) Run(ctx context.Context) error {
	work := make(chan *model.Fix, b.BatchSize)

	done := make(chan struct{})
	for i := 0; i < b.Workers; i++ {
		go func() {
			b.consume(ctx, work)
			done <- struct{}{}
		}()
	}

	ticker := time.NewTicker(b.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := b.produce(ctx, work); err != nil {
				b.Log.Warn().Err(err).Msg("backfill: producer query failed")
			}
		case <-ctx.Done():
			close(work)
			for i := 0; i < b.Workers; i++ {
				<-done
			}
			return nil
		}
	}
}

func (b *Backfill) produce(ctx context.Context, work chan<- *model.Fix) error {
	olderThan := time.Now().UTC().Add(-backfillDeadline)
	fixes, err := b.Fixes.PendingAGLBackfill(ctx, olderThan, b.BatchSize)
	if err != nil {
		return fmt.Errorf("pending agl backfill: %w", err)
	}
	for _, f := range fixes {
		select {
		case work <- f:
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

func (b *Backfill) consume(ctx context.Context, work <-chan *model.Fix) {
	for f := range work {
		if f.AltitudeMSLFeet == nil {
			continue
		}
		groundM, ok, err := b.Elevation.Lookup(ctx, f.Latitude, f.Longitude)
		if err != nil {
			b.Log.Debug().Err(err).Int64("fix_id", f.ID).Msg("backfill elevation lookup failed")
			continue
		}
		if !ok {
			continue
		}
		agl := elevation.AGL(*f.AltitudeMSLFeet, groundM)
		if err := b.Fixes.UpdateAGL(ctx, f.ID, agl); err != nil {
			b.Log.Warn().Err(err).Int64("fix_id", f.ID).Msg("backfill update agl failed")
		}
	}
}
