package fixproc

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"soar/internal/model"
	"soar/internal/repo"
)

// Writer batches fixes onto one transactional insert: it accumulates up
// to BatchSize fixes or FlushEvery elapsed, whichever comes first, then
// performs one batch insert.
type Writer struct {
	Fixes repo.FixRepo
	Log   zerolog.Logger

	BatchSize int
	FlushEvery time.Duration

	in chan *model.Fix
	done chan struct{}
}

const (
	defaultBatchSize  = 100
	defaultFlushEvery = 100 * time.Millisecond
	queueCapacity     = 4096
)

// NewWriter builds a Writer. Call Run in its own goroutine to start the
// flush loop; Enqueue blocks once the internal queue fills.
func NewWriter(fixes repo.FixRepo, log zerolog.Logger) *Writer {
	return &Writer{
		Fixes: fixes, Log: log,
		BatchSize: defaultBatchSize, FlushEvery: defaultFlushEvery,
		in: make(chan *model.Fix, queueCapacity), done: make(chan struct{}),
	}
}

// Enqueue hands one fix to the writer, blocking if the queue is full or
// returning early if ctx is cancelled.
func (w *Writer) Enqueue(ctx context.Context, f *model.Fix) error {
	select {
	case w.in <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the queue, flushing on whichever comes first: BatchSize
// fixes accumulated, or the next tick of a FlushEvery timer that restarts
// after every flush or tick.
// Run returns once ctx is cancelled and the queue has been drained.
func (w *Writer) Run(ctx context.Context) error {
	defer close(w.done)

	batch := make([]*model.Fix, 0, w.BatchSize)
	timer := time.NewTimer(w.FlushEvery)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := w.Fixes.InsertBatch(context.Background(), batch); err != nil {
			w.Log.Error().Err(err).Int("batch_size", len(batch)).Msg("fix batch insert failed")
		}
		batch = batch[:0]
	}

	for {
		select {
		case f := <-w.in:
			batch = append(batch, f)
			if len(batch) >= w.BatchSize {
				flush()
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(w.FlushEvery)
			}
		case <-timer.C:
			flush()
			timer.Reset(w.FlushEvery)
		case <-ctx.Done():
			w.drainRemaining(&batch)
			flush()
			return nil
		}
	}
}

// drainRemaining pulls any fixes already queued before shutdown so they
// aren't lost between the cancellation and the final flush.
func (w *Writer) drainRemaining(batch *[]*model.Fix) {
	for {
		select {
		case f := <-w.in:
			*batch = append(*batch, f)
		default:
			return
		}
	}
}
