package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/go-ordering-server/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counters(t *testing.T) {
	r := metrics.NewRecorder()

	r.Logins.WithLabelValues(metrics.OutcomeSuccess).Inc()
	r.Logins.WithLabelValues(metrics.OutcomeInvalid).Inc()
	r.Logins.WithLabelValues(metrics.OutcomeInvalid).Inc()
	r.Swept(3)
	r.Swept(0)

	require.Equal(t, 1.0, testutil.ToFloat64(r.Logins.WithLabelValues(metrics.OutcomeSuccess)))
	require.Equal(t, 2.0, testutil.ToFloat64(r.Logins.WithLabelValues(metrics.OutcomeInvalid)))
	require.Equal(t, 3.0, testutil.ToFloat64(r.ReplaySwept))
}

func TestRecorder_Handler(t *testing.T) {
	r := metrics.NewRecorder()
	r.ChallengesIssued.Inc()

	h := r.InstrumentHandler(r.Handler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "ordering_auth_challenges_issued_total 1")
	require.Equal(t, 1.0, testutil.ToFloat64(r.Requests.WithLabelValues("get", "200")))
}

func TestRecorder_Independent(t *testing.T) {
	a, b := metrics.NewRecorder(), metrics.NewRecorder()
	a.ChallengesIssued.Inc()
	require.Equal(t, 0.0, testutil.ToFloat64(b.ChallengesIssued))
}
