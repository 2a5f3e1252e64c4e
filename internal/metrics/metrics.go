package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Merge outcomes.
const (
	MergeSucceeded = "succeeded"
	MergeFailed    = "failed"
	MergeSkipped   = "skipped"
)

// Storefront holds the collectors of the storefront service. A nil *Storefront is a no-op.
type Storefront struct {
	breakerState    *prometheus.GaugeVec
	backendDuration *prometheus.HistogramVec
	merges          *prometheus.CounterVec
	cartFetches     *prometheus.CounterVec
	cartRollbacks   prometheus.Counter
	liveSessions    prometheus.Gauge
}

// New registers the storefront collectors on reg.
func New(reg prometheus.Registerer) *Storefront {
	if reg == nil {
		return nil
	}
	m := &Storefront{
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "storefront_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}, []string{"name"}),
		backendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_upstream_request_duration_seconds",
			Help:    "Duration of calls to upstream services.",
			Buckets: prometheus.DefBuckets,
		}, []string{"upstream", "method", "status"}),
		merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cart_merges_total",
			Help: "Guest cart merges by outcome.",
		}, []string{"outcome"}),
		cartFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cart_fetches_total",
			Help: "Cart fetches by result.",
		}, []string{"result"}),
		cartRollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_cart_rollbacks_total",
			Help: "Optimistic cart mutations rolled back.",
		}),
		liveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storefront_browser_sessions",
			Help: "Browser sessions held in memory.",
		}),
	}
	reg.MustRegister(m.breakerState, m.backendDuration, m.merges, m.cartFetches, m.cartRollbacks, m.liveSessions)
	return m
}

func (m *Storefront) SetBreakerState(name string, state float64) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(state)
}

func (m *Storefront) ObserveUpstream(upstream, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.backendDuration.WithLabelValues(upstream, method, label).Observe(d.Seconds())
}

func (m *Storefront) IncMerge(outcome string) {
	if m == nil {
		return
	}
	m.merges.WithLabelValues(outcome).Inc()
}

func (m *Storefront) IncCartFetch(result string) {
	if m == nil {
		return
	}
	m.cartFetches.WithLabelValues(result).Inc()
}

func (m *Storefront) IncCartRollback() {
	if m == nil {
		return
	}
	m.cartRollbacks.Inc()
}

func (m *Storefront) SetLiveSessions(n int) {
	if m == nil {
		return
	}
	m.liveSessions.Set(float64(n))
}
