package main

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the game counters. A nil *Metrics records nothing.
type Metrics struct {
	registry       *prometheus.Registry
	guesses        *prometheus.CounterVec
	games          *prometheus.CounterVec
	sessionLoads   *prometheus.CounterVec
	snapshotErrors *prometheus.CounterVec
}

func newMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		guesses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "colordle_guesses_total",
			Help: "Guess submissions by outcome.",
		}, []string{"outcome"}),
		games: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "colordle_games_finished_total",
			Help: "Finished games by status and attempts used.",
		}, []string{"status", "attempts"}),
		sessionLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "colordle_session_loads_total",
			Help: "Session loads by how the game was obtained.",
		}, []string{"source"}),
		snapshotErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "colordle_snapshot_errors_total",
			Help: "Snapshot store failures by operation.",
		}, []string{"op"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.guesses, m.games, m.sessionLoads, m.snapshotErrors,
	)
	return m
}

func (m *Metrics) guess(outcome string) {
	if m == nil {
		return
	}
	m.guesses.WithLabelValues(outcome).Inc()
}

func (m *Metrics) gameFinished(status string, attempts int) {
	if m == nil {
		return
	}
	m.games.WithLabelValues(status, strconv.Itoa(attempts)).Inc()
}

func (m *Metrics) sessionLoaded(source string) {
	if m == nil {
		return
	}
	m.sessionLoads.WithLabelValues(source).Inc()
}

func (m *Metrics) snapshotError(op string) {
	if m == nil {
		return
	}
	m.snapshotErrors.WithLabelValues(op).Inc()
}

// handler exposes the registry in the prometheus text format.
func (m *Metrics) handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
