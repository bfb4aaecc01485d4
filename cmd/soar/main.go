// Command soar is the root entry point dispatching to one subcommand per
// long-running process: an ingest connector, the background worker set,
// or a one-shot maintenance job.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"soar/internal/accumulator"
	"soar/internal/beast"
	"soar/internal/config"
	"soar/internal/elevation"
	"soar/internal/fixproc"
	"soar/internal/flighttrack"
	"soar/internal/geofence"
	"soar/internal/ingest"
	"soar/internal/instancelock"
	"soar/internal/logging"
	"soar/internal/magnetic"
	"soar/internal/metrics"
	"soar/internal/pubsub"
	"soar/internal/shutdown"
	"soar/internal/storage"
)

func usage(w *os.File) {
	fmt.Fprintln(w, "soar - commands:")
	fmt.Fprintln(w, "  ingest-aprs     run the APRS-IS connector")
	fmt.Fprintln(w, "  ingest-beast    run the Beast/Mode-S connector")
	fmt.Fprintln(w, "  ingest-sbs      run the SBS/BaseStation connector")
	fmt.Fprintln(w, "  run-workers     run backfill + metrics with no connector (for worker-only deploys)")
	fmt.Fprintln(w, "  backfill-agl    run only the AGL backfill job")
	fmt.Fprintln(w, "  geofence-check  one-shot: check all aircraft's latest fix against their geofences")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	cmd := strings.ToLower(os.Args[1])

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logging.New(cmd, cfg.Env == config.EnvDevelopment)

	lock, err := instancelock.Acquire("", cmd)
	if err != nil {
		log.Fatal().Err(err).Msg("instance lock")
	}
	defer lock.Release()

	ctx, stop := shutdown.Signal()
	defer stop()

	switch cmd {
	case "ingest-aprs":
		runIngestAPRS(ctx, cfg, log)
	case "ingest-beast":
		runIngestBeast(ctx, cfg, log)
	case "ingest-sbs":
		runIngestSBS(ctx, cfg, log)
	case "run-workers":
		runWorkers(ctx, cfg, log)
	case "backfill-agl":
		runBackfillAGL(ctx, cfg, log)
	case "geofence-check":
		runGeofenceCheck(ctx, cfg, log)
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
}

// storageConfigFromEnv builds storage.Config from the POSTGRES_HOST and
// CLICKHOUSE_HOST environment variables, taking every other setting (and
// either host when unset) from storage.DefaultConfig()'s local
// development defaults. cfg.DatabaseURL is validated
// as the fatal-startup gate, but the two concrete stores still take
// their own structured settings.
func storageConfigFromEnv() storage.Config {
	c := storage.DefaultConfig()
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		c.Postgres.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	return c
}

type platform struct {
	db        *storage.DB
	bus       *pubsub.Bus
	processor *fixproc.Processor
	writerCtx context.Context
	stopWriter context.CancelFunc
}

// buildPlatform wires the repositories, enrichment caches, flight
// tracker, geofence detector, pub/sub bus, and fix processor every
// ingest subcommand shares. Shutdown order: stop accepting new messages
// (caller's job, by cancelling ctx before this returns), drain, flush
// the writer, then close the bus and DB.
func buildPlatform(ctx context.Context, cfg config.Config, log zerolog.Logger) (*platform, func(), error) {
	db, err := storage.Open(ctx, storageConfigFromEnv())
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}

	bus, err := pubsub.Open(cfg.NATSURL)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("open pubsub: %w", err)
	}

	elev := elevation.New(elevation.NoopFetcher{})
	wmm, err := magnetic.NewWMMSource()
	var mag *magnetic.Cache
	if err != nil {
		log.Warn().Err(err).Msg("magnetic WMM source unavailable, declination enrichment disabled")
	} else {
		mag = magnetic.NewCache(wmm)
	}
	tracker := flighttrack.New(nil)
	members := geofence.NewMembership()
	notifier := geofence.LoggingNotifier{Log: log}

	writerCtx, stopWriter := context.WithCancel(context.Background())
	writer := fixproc.NewWriter(storage.FixRepo{DB: db.CH}, log)
	writerDone := make(chan struct{})
	go func() {
		writer.Run(writerCtx)
		close(writerDone)
	}()

	proc := fixproc.New(
		storage.AircraftRepo{DB: db.PG}, storage.GeofenceRepo{DB: db.PG}, storage.FlightRepo{DB: db.PG},
		elev, mag, tracker, members, notifier, bus, writer, log,
	)

	p := &platform{db: db, bus: bus, processor: proc, writerCtx: writerCtx, stopWriter: stopWriter}
	cleanup := func() {
		stopWriter()
		<-writerDone
		bus.Close()
		db.Close()
	}
	return p, cleanup, nil
}

func runIngestAPRS(ctx context.Context, cfg config.Config, log zerolog.Logger) {
	p, cleanup, err := buildPlatform(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build platform")
	}
	defer cleanup()

	handler := ingest.AircraftPositionHandler(p.processor, log)
	dispatcher := ingest.NewAPRSDispatcher(ctx, aprsWorkerCount(), 256, handler)

	conn := &ingest.APRSConnector{
		Cfg: cfg.APRS, Raw: storage.RawMessageRepo{DB: p.db.CH}, Receivers: storage.ReceiverRepo{DB: p.db.PG},
		Processor: p.processor, Log: log, Dispatcher: dispatcher,
	}
	runMetricsAnd(ctx, cfg, log, conn.Run)
}

func runIngestBeast(ctx context.Context, cfg config.Config, log zerolog.Logger) {
	p, cleanup, err := buildPlatform(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build platform")
	}
	defer cleanup()

	acc := accumulator.New()
	cpr := beast.NewCPRDecoder()
	handler := ingest.BeastHandler(acc, cpr, p.processor, log)
	dispatcher := ingest.NewBeastDispatcher(ctx, 50, 256, acc, cpr, handler)

	conn := &ingest.BeastConnector{
		Cfg: cfg.Beast, Raw: storage.RawMessageRepo{DB: p.db.CH}, Log: log, Dispatcher: dispatcher,
	}
	runMetricsAnd(ctx, cfg, log, conn.Run)
}

func runIngestSBS(ctx context.Context, cfg config.Config, log zerolog.Logger) {
	p, cleanup, err := buildPlatform(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build platform")
	}
	defer cleanup()

	acc := accumulator.New()
	handler := ingest.SBSHandler(acc, p.processor, log)
	dispatcher := ingest.NewSBSDispatcher(ctx, 50, 256, handler)

	conn := &ingest.SBSConnector{
		Cfg: cfg.SBS, Raw: storage.RawMessageRepo{DB: p.db.CH}, Log: log, Dispatcher: dispatcher,
	}
	runMetricsAnd(ctx, cfg, log, conn.Run)
}

// runWorkers runs just the background jobs (AGL backfill) plus the
// metrics endpoint, for deployments that split connector processes from
// worker processes.
func runWorkers(ctx context.Context, cfg config.Config, log zerolog.Logger) {
	p, cleanup, err := buildPlatform(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build platform")
	}
	defer cleanup()

	backfill := fixproc.NewBackfill(storage.FixRepo{DB: p.db.CH}, p.processor.Elevation, log)
	runMetricsAnd(ctx, cfg, log, backfill.Run)
}

func runBackfillAGL(ctx context.Context, cfg config.Config, log zerolog.Logger) {
	p, cleanup, err := buildPlatform(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build platform")
	}
	defer cleanup()

	backfill := fixproc.NewBackfill(storage.FixRepo{DB: p.db.CH}, p.processor.Elevation, log)
	if err := backfill.Run(ctx); err != nil {
		log.Error().Err(err).Msg("backfill exited")
	}
}

// runGeofenceCheck re-evaluates geofence membership for every aircraft
// with a recent fix, for operators who just edited a geofence definition
// and want exits detected without waiting on the next live fix. It reuses
// the AGL-pending query as a stand-in "recent fixes" feed; a dedicated
// latest-fix-per-aircraft query belongs here once the CRUD layer exists.
func runGeofenceCheck(ctx context.Context, cfg config.Config, log zerolog.Logger) {
	p, cleanup, err := buildPlatform(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build platform")
	}
	defer cleanup()

	fixes, err := storage.FixRepo{DB: p.db.CH}.PendingAGLBackfill(ctx, time.Now().Add(100*365*24*time.Hour), 10000)
	if err != nil {
		log.Fatal().Err(err).Msg("load fixes for geofence sweep")
	}

	checked := 0
	for _, fx := range fixes {
		if err := p.processor.CheckGeofences(ctx, fx); err != nil {
			log.Warn().Err(err).Int64("aircraft_id", fx.AircraftID).Msg("geofence check failed")
			continue
		}
		checked++
	}
	log.Info().Int("fixes_checked", checked).Msg("geofence-check sweep complete")
}

func runMetricsAnd(ctx context.Context, cfg config.Config, log zerolog.Logger, run func(context.Context) error) {
	metricsSrv := metrics.NewServer(cfg.MetricsPort)
	errCh := make(chan error, 2)
	go func() { errCh <- metricsSrv.Run(ctx) }()
	go func() { errCh <- run(ctx) }()

	<-ctx.Done()
	drainCtx, cancel := shutdown.WithDrainDeadline(ctx)
	defer cancel()
	for i := 0; i < 2; i++ {
		select {
		case err := <-errCh:
			if err != nil {
				log.Warn().Err(err).Msg("component exited with error during shutdown")
			}
		case <-drainCtx.Done():
			log.Warn().Msg("drain deadline exceeded, exiting")
			return
		}
	}
}

func aprsWorkerCount() int {
	n := 2
	if c := runtime.NumCPU(); c > 0 {
		n = c * 2
	}
	return n
}
