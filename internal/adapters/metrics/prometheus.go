// Package metrics exposes server activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/lottery/internal/app"
	"github.com/bft-labs/lottery/internal/domain"
)

const namespace = "lottery"

// Recorder implements app.SessionEventEmitter and app.EventEmitter.
// Each Recorder owns its registry so several servers can run in one
// process.
type Recorder struct {
	registry *prometheus.Registry

	sessionsActive   prometheus.Gauge
	sessionsTotal    *prometheus.CounterVec
	batches          *prometheus.CounterVec
	betsStored       prometheus.Counter
	agenciesFinished prometheus.Gauge
	winnerQueries    *prometheus.CounterVec
	serverState      prometheus.Gauge
}

// NewRecorder creates a Recorder with all collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Agency sessions currently open.",
		}),
		sessionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sessions",
				Name:      "closed_total",
				Help:      "Agency sessions closed, by outcome.",
			},
			[]string{"outcome"},
		),
		batches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "batches",
				Name:      "total",
				Help:      "BATCH messages processed, by result.",
			},
			[]string{"result"},
		),
		betsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bets",
			Name:      "stored_total",
			Help:      "Bets persisted.",
		}),
		agenciesFinished: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "agencies",
			Name:      "finished",
			Help:      "Agencies that have sent FIN.",
		}),
		winnerQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "winners",
				Name:      "served_total",
				Help:      "Winner lists sent, by agency.",
			},
			[]string{"agency"},
		),
		serverState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "state",
			Help:      "Server lifecycle state (0 stopped, 1 starting, 2 running, 3 stopping, 4 crashed).",
		}),
	}
	r.registry.MustRegister(
		r.sessionsActive,
		r.sessionsTotal,
		r.batches,
		r.betsStored,
		r.agenciesFinished,
		r.winnerQueries,
		r.serverState,
	)
	return r
}

// Registry returns the registry holding the recorder's collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler returns an HTTP handler serving the recorder's metrics.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) OnSessionOpened() {
	r.sessionsActive.Inc()
}

func (r *Recorder) OnSessionClosed(err error) {
	r.sessionsActive.Dec()
	r.sessionsTotal.WithLabelValues(outcome(err)).Inc()
}

func (r *Recorder) OnBatch(bets int, err error) {
	if err != nil {
		r.batches.WithLabelValues("rejected").Inc()
		return
	}
	r.batches.WithLabelValues("accepted").Inc()
	r.betsStored.Add(float64(bets))
}

func (r *Recorder) OnAgencyFinished(agency int) {
	r.agenciesFinished.Inc()
}

func (r *Recorder) OnWinnersServed(agency int, winners int) {
	r.winnerQueries.WithLabelValues(strconv.Itoa(agency)).Inc()
}

func (r *Recorder) OnStateChange(previous, current app.State, reason string) {
	r.serverState.Set(float64(current))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "completed"
	case errors.Is(err, domain.ErrShuttingDown), errors.Is(err, domain.ErrCancelled):
		return "shutdown"
	case errors.Is(err, domain.ErrConnectionClosed):
		return "disconnected"
	case errors.Is(err, domain.ErrMalformedMessage), errors.Is(err, domain.ErrUnrecognizedMessage):
		return "protocol_error"
	default:
		return "error"
	}
}

// Serve runs an HTTP server exposing /metrics on addr until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
