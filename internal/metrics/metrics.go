package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels
const (
	OutcomeSuccess   = "success"
	OutcomeInvalid   = "invalid"
	OutcomeRejected  = "rejected"
	OutcomeReplayed  = "replayed"
	OutcomeAnonymous = "anonymous"
	OutcomeError     = "error"
)

const namespace = "ordering"

// Recorder holds the auth counters on a private registry, so several
// servers can coexist in one process (tests).
type Recorder struct {
	registry *prometheus.Registry

	Logins             *prometheus.CounterVec
	ChallengesIssued   prometheus.Counter
	Refreshes          *prometheus.CounterVec
	IdentityResolution *prometheus.CounterVec
	ReplaySwept        prometheus.Counter
	Requests           *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		ChallengesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "challenges_issued_total",
			Help:      "Challenge tokens issued.",
		}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "refreshes_total",
			Help:      "Access token refresh attempts by outcome.",
		}, []string{"outcome"}),
		IdentityResolution: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "identity_resolutions_total",
			Help:      "Bearer token resolutions by outcome.",
		}, []string{"outcome"}),
		ReplaySwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "swept_total",
			Help:      "Expired replay guard entries removed by the sweeper.",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
	}

	r.registry.MustRegister(
		r.Logins,
		r.ChallengesIssued,
		r.Refreshes,
		r.IdentityResolution,
		r.ReplaySwept,
		r.Requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Swept adds n to the replay sweep counter. It matches replay.OnSweep.
func (r *Recorder) Swept(n int) {
	r.ReplaySwept.Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// InstrumentHandler counts requests by method and status code.
func (r *Recorder) InstrumentHandler(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerCounter(r.Requests, next)
}
