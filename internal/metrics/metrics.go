// Package metrics collects run counters for the importer and optionally
// serves them in Prometheus exposition format.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Row rejection reasons.
const (
	ReasonBlankTitle        = "blank_title"
	ReasonUnsafe            = "unsafe"
	ReasonDuplicate         = "duplicate"
	ReasonUnsafeAfterEnrich = "unsafe_after_enrich"
	ReasonMissingStart      = "missing_start"
)

// Enrichment tiers.
const (
	TierJSONLD    = "jsonld"
	TierOpenGraph = "opengraph"
)

// Metrics holds the importer's counters on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	pagesFetched prometheus.Counter
	rowsEmitted  prometheus.Counter
	rowsRejected *prometheus.CounterVec
	enrichCalls  prometheus.Counter
	enrichHits   *prometheus.CounterVec
}

// New creates the counter set registered on a fresh registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "importer",
		Name:      "http_requests_total",
		Help:      "Outbound HTTP requests by component and status class",
	}, []string{"component", "code_class"})
	m.pagesFetched = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "importer",
		Name:      "pages_fetched_total",
		Help:      "Upstream event pages fetched",
	})
	m.rowsEmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "importer",
		Name:      "rows_emitted_total",
		Help:      "Candidate rows admitted to the output set",
	})
	m.rowsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "importer",
		Name:      "rows_rejected_total",
		Help:      "Events or timeslots dropped during normalization, by reason",
	}, []string{"reason"})
	m.enrichCalls = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "importer",
		Name:      "enrich_calls_total",
		Help:      "Source-page enrichment fetches attempted",
	})
	m.enrichHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "importer",
		Name:      "enrich_hits_total",
		Help:      "Enrichment results by tier that produced them",
	}, []string{"tier"})

	m.registry.MustRegister(
		m.httpRequests,
		m.pagesFetched,
		m.rowsEmitted,
		m.rowsRejected,
		m.enrichCalls,
		m.enrichHits,
	)

	return m
}

// RecordRequest counts one outbound request by status class (2xx, 4xx, ...).
// A zero code means the request never produced a response.
func (m *Metrics) RecordRequest(component string, code int) {
	class := "transport_error"
	if code > 0 {
		class = strconv.Itoa(code/100) + "xx"
	}

	m.httpRequests.WithLabelValues(component, class).Inc()
}

// RecordPage counts one fetched upstream page.
func (m *Metrics) RecordPage() { m.pagesFetched.Inc() }

// RecordRow counts one admitted candidate row.
func (m *Metrics) RecordRow() { m.rowsEmitted.Inc() }

// RecordRejection counts one dropped event or timeslot.
func (m *Metrics) RecordRejection(reason string) {
	m.rowsRejected.WithLabelValues(reason).Inc()
}

// RecordEnrichCall counts one enrichment fetch.
func (m *Metrics) RecordEnrichCall() { m.enrichCalls.Inc() }

// RecordEnrichHit counts one enrichment result by extraction tier.
func (m *Metrics) RecordEnrichHit(tier string) {
	m.enrichHits.WithLabelValues(tier).Inc()
}

// Handler returns the exposition handler for the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts the exposition listener on addr. It returns immediately; the
// listener lives for the remainder of the process.
func (m *Metrics) Serve(addr string) {
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	go func() {
		_ = http.ListenAndServe(addr, mux)
	}()
}
