package cache

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks cache manager behavior. Constructed explicitly and
// registered on the registry owned by the serve command.
type Metrics struct {
	Hits          prometheus.Counter
	Misses        prometheus.Counter
	Coalesced     prometheus.Counter
	Invalidations prometheus.Counter
	Swept         prometheus.Counter
}

// NewMetrics creates and registers cache metrics. A nil registerer
// yields unregistered (but usable) collectors, handy in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rag_cache_hits_total",
			Help: "Number of cache lookups served from a live entry.",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rag_cache_misses_total",
			Help: "Number of cache lookups that triggered a compute.",
		}),
		Coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rag_cache_coalesced_total",
			Help: "Number of callers that joined an in-flight computation.",
		}),
		Invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rag_cache_invalidations_total",
			Help: "Number of entries removed by document invalidation.",
		}),
		Swept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rag_cache_swept_total",
			Help: "Number of expired entries removed by the background sweep.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Hits, m.Misses, m.Coalesced, m.Invalidations, m.Swept)
	}
	return m
}
