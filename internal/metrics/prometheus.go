// Package metrics exposes balancing and rating-update counters to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mkwab/internal/logic"
)

// Metrics is safe to use as a nil pointer, in which case nothing is recorded.
type Metrics struct {
	balances *prometheus.CounterVec
	spread   *prometheus.HistogramVec
	swaps    *prometheus.HistogramVec
	duration *prometheus.HistogramVec
	wins     *prometheus.CounterVec
	players  prometheus.Histogram
}

// New registers the collectors with reg, prometheus.DefaultRegisterer when nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		balances: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mkwab",
			Name:      "balances_total",
			Help:      "Balancing runs by team count and outcome.",
		}, []string{"teams", "status"}),
		spread: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mkwab",
			Name:      "spread_rating",
			Help:      "Difference between the strongest and weakest team after refinement.",
			Buckets:   []float64{0, 10, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"teams"}),
		swaps: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mkwab",
			Name:      "refinement_swaps",
			Help:      "Member exchanges performed by local refinement.",
			Buckets:   prometheus.LinearBuckets(0, 2, 10),
		}, []string{"teams"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mkwab",
			Name:      "balance_duration_seconds",
			Help:      "Wall time of one balancing run.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"teams"}),
		wins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mkwab",
			Name:      "wins_recorded_total",
			Help:      "Winner rating updates by team count.",
		}, []string{"teams"}),
		players: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mkwab",
			Name:      "assignment_players",
			Help:      "Selected players per assignment request.",
			Buckets:   prometheus.LinearBuckets(2, 2, 12),
		}),
	}
}

func (m *Metrics) ObserveBalance(k int, res logic.Result, took time.Duration, err error) {
	if m == nil {
		return
	}
	teams := strconv.Itoa(k)
	switch {
	case errors.Is(err, logic.ErrCapacity):
		m.balances.WithLabelValues(teams, "capacity").Inc()
		return
	case err != nil || !res.Computable():
		m.balances.WithLabelValues(teams, "error").Inc()
		return
	}
	m.balances.WithLabelValues(teams, "ok").Inc()
	m.spread.WithLabelValues(teams).Observe(float64(*res.Spread))
	m.swaps.WithLabelValues(teams).Observe(float64(res.Swaps))
	m.duration.WithLabelValues(teams).Observe(took.Seconds())
}

func (m *Metrics) ObservePlayers(n int) {
	if m == nil {
		return
	}
	m.players.Observe(float64(n))
}

func (m *Metrics) ObserveWin(k int) {
	if m == nil {
		return
	}
	m.wins.WithLabelValues(strconv.Itoa(k)).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
