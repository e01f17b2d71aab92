package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"mkwab/internal/logic"
)

func TestMetrics_ObserveBalance(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveBalance(2, logic.Result{Spread: ptr(100), Swaps: 3}, time.Millisecond, nil)
	m.ObserveBalance(2, logic.Result{}, 0, &logic.CapacityError{Players: 1, Teams: 2})
	m.ObserveBalance(3, logic.Result{}, 0, errors.New("boom"))
	m.ObserveWin(2)
	m.ObservePlayers(8)

	require.InDelta(t, 1, testutil.ToFloat64(m.balances.WithLabelValues("2", "ok")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.balances.WithLabelValues("2", "capacity")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.balances.WithLabelValues("3", "error")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.wins.WithLabelValues("2")), 0)
	require.Equal(t, 1, testutil.CollectAndCount(m.spread))
}

func ptr(v int) *int { return &v }

func TestMetrics_ObserveBalance_SkipsIncompleteResult(t *testing.T) {
	m := New(prometheus.NewRegistry())

	require.NotPanics(t, func() { m.ObserveBalance(2, logic.Result{}, 0, nil) })
	require.InDelta(t, 1, testutil.ToFloat64(m.balances.WithLabelValues("2", "error")), 0)
	require.Equal(t, 0, testutil.CollectAndCount(m.spread))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.ObserveBalance(2, logic.Result{}, 0, nil)
		m.ObserveWin(2)
		m.ObservePlayers(3)
	})
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg).ObserveWin(4)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), `mkwab_wins_recorded_total{teams="4"} 1`))
}
