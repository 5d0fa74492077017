package triage

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the triage subsystem.
type Metrics struct {
	TriagesTotal     *prometheus.CounterVec
	TriageDuration   *prometheus.HistogramVec
	TriageIDs        prometheus.Histogram
	TriageKEVHits    prometheus.Histogram
	TriageFindings   prometheus.Histogram
	LLMCallsTotal    *prometheus.CounterVec
	LLMDuration      prometheus.Histogram
	ExtractionsTotal *prometheus.CounterVec
	SearchesTotal    *prometheus.CounterVec
	SubmitsTotal     *prometheus.CounterVec
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TriagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_triages_total",
			Help: "Total triage runs by final status.",
		}, []string{"status"}),
		TriageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "warden_triage_duration_seconds",
			Help:    "Duration of triage runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s .. ~512s
		}, []string{"status", "model"}),
		TriageIDs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "warden_triage_identifiers",
			Help:    "CVE identifiers extracted per triage run.",
			Buckets: prometheus.LinearBuckets(0, 1, 16), // 0 .. 15
		}),
		TriageKEVHits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "warden_triage_kev_hits",
			Help:    "KEV registry hits per triage run.",
			Buckets: prometheus.LinearBuckets(0, 1, 8), // 0 .. 7
		}),
		TriageFindings: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "warden_triage_findings",
			Help:    "Findings returned per triage run.",
			Buckets: prometheus.LinearBuckets(0, 1, 16), // 0 .. 15
		}),
		LLMCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_llm_calls_total",
			Help: "Total classifier calls by outcome.",
		}, []string{"outcome"}),
		LLMDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "warden_llm_call_duration_seconds",
			Help:    "Duration of individual classifier calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s .. ~64s
		}),
		ExtractionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_extractions_total",
			Help: "Result extraction attempts by winning strategy.",
		}, []string{"strategy", "outcome"}),
		SearchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_search_lookups_total",
			Help: "Total enrichment search lookups by outcome.",
		}, []string{"outcome"}),
		SubmitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_submits_total",
			Help: "Total triage submissions by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.TriagesTotal,
		m.TriageDuration,
		m.TriageIDs,
		m.TriageKEVHits,
		m.TriageFindings,
		m.LLMCallsTotal,
		m.LLMDuration,
		m.ExtractionsTotal,
		m.SearchesTotal,
		m.SubmitsTotal,
	)

	return m
}

// SearchHook returns a callback for enrich.Builder.OnLookup that counts
// search lookups by outcome.
func (m *Metrics) SearchHook() func(ok bool) {
	return func(ok bool) {
		outcome := "success"
		if !ok {
			outcome = "error"
		}
		m.SearchesTotal.WithLabelValues(outcome).Inc()
	}
}

// Hooks returns an EngineHooks that increments the corresponding metrics.
func (m *Metrics) Hooks() EngineHooks {
	return EngineHooks{
		OnLLMCall: func(duration float64, ok bool) {
			outcome := "success"
			if !ok {
				outcome = "error"
			}
			m.LLMCallsTotal.WithLabelValues(outcome).Inc()
			m.LLMDuration.Observe(duration)
		},
		OnExtract: func(strategy string, ok bool) {
			outcome := "success"
			if !ok {
				outcome = "failure"
				strategy = "none"
			}
			m.ExtractionsTotal.WithLabelValues(strategy, outcome).Inc()
		},
		OnComplete: func(e *CompleteEvent) {
			m.TriagesTotal.WithLabelValues(string(e.Status)).Inc()
			m.TriageDuration.WithLabelValues(string(e.Status), e.Model).Observe(e.Duration)
			m.TriageIDs.Observe(float64(e.Identifiers))
			m.TriageKEVHits.Observe(float64(e.KEVHits))
			m.TriageFindings.Observe(float64(e.Findings))
		},
	}
}
