// Package metrics exposes SOAR's Prometheus counters and gauges, and the
// METRICS_PORT HTTP endpoint every long-running command binds.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DecodeErrors counts wire-format errors per protocol (error taxonomy #1).
var DecodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "soar",
	Name:      "decode_errors_total",
	Help:      "Messages rejected by a protocol decoder.",
}, []string{"protocol"})

// FixesEmitted counts, per protocol, the messages a connector decoded and
// dispatched toward the fix pipeline (for APRS, aircraft positions only).
// Not every counted message becomes a fix.
var FixesEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "soar",
	Name:      "fixes_emitted_total",
	Help:      "Decoded messages dispatched toward the fix pipeline.",
}, []string{"protocol"})

// FixesDroppedNoGround counts the accumulator's strict "on_ground
// missing" drop path.
var FixesDroppedNoGround = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "soar",
	Name:      "fixes_dropped_no_ground_total",
	Help:      "Fix candidates dropped because on_ground was never observed.",
})

// QueueDepth reports the current occupancy of a named bounded queue.
var QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "soar",
	Name:      "queue_depth",
	Help:      "Current number of items buffered in a bounded intake queue.",
}, []string{"queue"})

// FlightsOpened / FlightsClosed count takeoff/landing transitions.
var (
	FlightsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "soar", Name: "flights_opened_total", Help: "Takeoff transitions detected.",
	})
	FlightsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "soar", Name: "flights_closed_total", Help: "Landing transitions detected, by reason.",
	}, []string{"reason"}) // "landing" | "stale_timeout"
)

// GeofenceExits counts exit events recorded.
var GeofenceExits = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "soar", Name: "geofence_exits_total", Help: "Geofence exit transitions recorded.",
})

// NotificationsFailed counts email notifications that did not deliver
// (error taxonomy: user-visible failure updates a counter, row still
// persists).
var NotificationsFailed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "soar", Name: "geofence_notifications_failed_total", Help: "Geofence exit email sends that failed.",
})

// Server wraps the metrics HTTP listener.
type Server struct {
	httpServer *http.Server
}

// NewServer builds a metrics server bound to the given port, serving
// /metrics and a trivial /healthz.
func NewServer(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &Server{httpServer: &http.Server{
		Addr:              addrFor(port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

func addrFor(port int) string {
	if port <= 0 {
		port = 9090
	}
	return ":" + strconv.Itoa(port)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
